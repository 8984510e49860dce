package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a wallet movement
type TransactionType string

const (
	TxDeposit         TransactionType = "deposit"
	TxWithdrawal      TransactionType = "withdrawal"
	TxTournamentEntry TransactionType = "tournament_entry"
	TxPrize           TransactionType = "prize"
	TxRefund          TransactionType = "refund"
)

// TransactionStatus is the approval state of a transaction
type TransactionStatus string

const (
	TxPending  TransactionStatus = "pending"
	TxApproved TransactionStatus = "approved"
	TxRejected TransactionStatus = "rejected"
)

// Transaction is a single wallet ledger row. Only Status changes after insert.
type Transaction struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	Username     string            `json:"username,omitempty"`
	Type         TransactionType   `json:"type"`
	Amount       decimal.Decimal   `json:"amount"`
	Status       TransactionStatus `json:"status"`
	UPIRef       string            `json:"upi_ref,omitempty"`
	UserUPIID    string            `json:"user_upi_id,omitempty"`
	TournamentID *string           `json:"tournament_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// WalletRequest is a user's deposit or withdrawal request
type WalletRequest struct {
	Type      TransactionType `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	UPIRef    string          `json:"upi_ref,omitempty"`
	UserUPIID string          `json:"user_upi_id,omitempty"`
}

// Validate checks the request for its declared type.
func (r *WalletRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return InvalidInput("amount must be positive")
	}
	if !r.Amount.Equal(r.Amount.Round(2)) {
		return InvalidInput("amount has more than two decimal places")
	}
	switch r.Type {
	case TxDeposit:
		if strings.TrimSpace(r.UPIRef) == "" {
			return InvalidInput("upi_ref is required for deposits")
		}
	case TxWithdrawal:
		if strings.TrimSpace(r.UserUPIID) == "" {
			return InvalidInput("user_upi_id is required for withdrawals")
		}
	default:
		return InvalidInput("type must be deposit or withdrawal")
	}
	return nil
}

// NewTransactionID returns an id for an internally created transaction.
func NewTransactionID() string {
	return uuid.New().String()
}

// NewGatewayTransactionID returns an id for a gateway-backed deposit.
// Gateways limit merchant transaction ids to 38 characters.
func NewGatewayTransactionID(now time.Time) string {
	return fmt.Sprintf("TXN_%d_%s", now.UnixMilli(), uuid.New().String()[:8])
}

// EntryReference builds the upi_ref recorded for a tournament entry fee.
func EntryReference(title string, now time.Time) string {
	return fmt.Sprintf("ENTRY-%s-%d", truncate(title, 10), now.UnixMilli())
}

// PrizeReference builds the upi_ref recorded for a prize payout.
func PrizeReference(title string, rank int, now time.Time) string {
	if rank > 0 {
		return fmt.Sprintf("PRIZE-%s-RANK%d-%d", truncate(title, 10), rank, now.UnixMilli())
	}
	return fmt.Sprintf("PRIZE-%s-%d", truncate(title, 10), now.UnixMilli())
}

// RefundReference builds the upi_ref recorded for a cancellation refund.
func RefundReference(title string, now time.Time) string {
	return fmt.Sprintf("REFUND-%s-%d", truncate(title, 10), now.UnixMilli())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
