package domain

import (
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWalletRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     WalletRequest
		wantErr bool
	}{
		{"deposit", WalletRequest{Type: TxDeposit, Amount: d("100"), UPIRef: "UPI1"}, false},
		{"withdrawal", WalletRequest{Type: TxWithdrawal, Amount: d("99.99"), UserUPIID: "me@upi"}, false},
		{"deposit without reference", WalletRequest{Type: TxDeposit, Amount: d("100"), UPIRef: "  "}, true},
		{"withdrawal without upi id", WalletRequest{Type: TxWithdrawal, Amount: d("100")}, true},
		{"negative", WalletRequest{Type: TxDeposit, Amount: d("-5"), UPIRef: "UPI1"}, true},
		{"three decimals", WalletRequest{Type: TxDeposit, Amount: d("1.234"), UPIRef: "UPI1"}, true},
		{"trailing zeros", WalletRequest{Type: TxDeposit, Amount: d("10.500"), UPIRef: "UPI1"}, false},
		{"prize is not requestable", WalletRequest{Type: TxPrize, Amount: d("1")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReferences(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	assert.Equal(t, "ENTRY-Friday Nig-1700000000123", EntryReference("Friday Night Scrims", now))
	assert.Equal(t, "ENTRY-Solo-1700000000123", EntryReference("Solo", now))
	assert.Equal(t, "PRIZE-Friday Nig-RANK2-1700000000123", PrizeReference("Friday Night Scrims", 2, now))
	assert.Equal(t, "PRIZE-Friday Nig-1700000000123", PrizeReference("Friday Night Scrims", 0, now))
	assert.Equal(t, "REFUND-Friday Nig-1700000000123", RefundReference("Friday Night Scrims", now))

	// truncation counts runes, not bytes
	assert.Equal(t, "ENTRY-टूर्नामेंट-1700000000123", EntryReference("टूर्नामेंट", now))
}

func TestNewGatewayTransactionID(t *testing.T) {
	id := NewGatewayTransactionID(time.UnixMilli(1700000000123))
	assert.Regexp(t, regexp.MustCompile(`^TXN_1700000000123_[0-9a-f]{8}$`), id)
	assert.LessOrEqual(t, len(id), 38)
	assert.NotEqual(t, id, NewGatewayTransactionID(time.UnixMilli(1700000000123)))
}

func TestErrorMatching(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", ErrTournamentNotFound)
	assert.True(t, IsNotFoundError(wrapped))
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, "tournament not found", ErrTournamentNotFound.Error())

	assert.ErrorIs(t, InvalidInput("bad"), ErrInvalidInput)
	assert.ErrorIs(t, InvalidState("no"), ErrInvalidState)
	assert.False(t, IsNotFoundError(InvalidInput("bad")))
	assert.False(t, errors.Is(ErrInvalidInput, ErrNotFound))
}

func TestNotificationEvent_Valid(t *testing.T) {
	assert.True(t, (&NotificationEvent{Kind: EventUser, UserID: "u", Title: "hi"}).Valid())
	assert.False(t, (&NotificationEvent{Kind: EventUser, Title: "hi"}).Valid())
	assert.True(t, (&NotificationEvent{Kind: EventBroadcast, Message: "news"}).Valid())
	assert.False(t, (&NotificationEvent{Kind: EventAdmins}).Valid())
	assert.False(t, (&NotificationEvent{Kind: "sms", Title: "x"}).Valid())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "tournament:abc:results", ResultsKey("abc"))
	assert.Equal(t, "transactions:u1", TransactionsKey("u1"))
	assert.Equal(t, UserKey("u1"), UserTopic("u1"))
}
