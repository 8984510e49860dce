package service

import (
	"context"
	"testing"

	"github.com/arena-wallet/internal/config"
	"github.com/arena-wallet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletService_Deposit(t *testing.T) {
	h := newHarness(t, config.PolicyReverse)
	ctx := context.Background()

	userID := h.db.CreateUser(t, "tara", "0")

	txn, err := h.wallet.Request(ctx, userID, domain.WalletRequest{
		Type:   domain.TxDeposit,
		Amount: dec("250.50"),
		UPIRef: "UPI-98765",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxPending, txn.Status)
	assert.True(t, h.db.Balance(t, userID).IsZero(), "pending deposits do not move money")
	assert.Contains(t, h.rec.keys(domain.TopicAdmin), domain.KeyAllTxns)

	approved, err := h.wallet.Approve(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxApproved, approved.Status)
	assert.True(t, h.db.Balance(t, userID).Equal(dec("250.50")))
	assert.Contains(t, h.rec.titlesFor(userID), "Deposit approved")

	_, err = h.wallet.Approve(ctx, txn.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	_, err = h.wallet.Reject(ctx, txn.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.True(t, h.db.Balance(t, userID).Equal(dec("250.50")))
}

func TestWalletService_RejectedDepositLeavesBalance(t *testing.T) {
	h := newHarness(t, config.PolicyReverse)
	ctx := context.Background()

	userID := h.db.CreateUser(t, "yash", "20")
	txn, err := h.wallet.RequestDeposit(ctx, userID, domain.WalletRequest{Amount: dec("100"), UPIRef: "UPI-1"})
	require.NoError(t, err)

	rejected, err := h.wallet.Reject(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxRejected, rejected.Status)
	assert.True(t, h.db.Balance(t, userID).Equal(dec("20")))
}

func TestWalletService_Withdrawal(t *testing.T) {
	h := newHarness(t, config.PolicyReverse)
	ctx := context.Background()

	t.Run("reserves on request and returns on reject", func(t *testing.T) {
		userID := h.db.CreateUser(t, "sana", "300")

		txn, err := h.wallet.RequestWithdrawal(ctx, userID, domain.WalletRequest{Amount: dec("120"), UserUPIID: "sana@okaxis"})
		require.NoError(t, err)
		assert.Equal(t, domain.TxPending, txn.Status)
		assert.True(t, h.db.Balance(t, userID).Equal(dec("180")))

		_, err = h.wallet.Reject(ctx, txn.ID)
		require.NoError(t, err)
		assert.True(t, h.db.Balance(t, userID).Equal(dec("300")))
		assert.Contains(t, h.rec.titlesFor(userID), "Withdrawal rejected")
	})

	t.Run("approval keeps the reservation", func(t *testing.T) {
		userID := h.db.CreateUser(t, "kiran", "300")

		txn, err := h.wallet.RequestWithdrawal(ctx, userID, domain.WalletRequest{Amount: dec("300"), UserUPIID: "kiran@ybl"})
		require.NoError(t, err)

		_, err = h.wallet.Approve(ctx, txn.ID)
		require.NoError(t, err)
		assert.True(t, h.db.Balance(t, userID).IsZero())
	})

	t.Run("more than the balance", func(t *testing.T) {
		userID := h.db.CreateUser(t, "veer", "50")

		_, err := h.wallet.RequestWithdrawal(ctx, userID, domain.WalletRequest{Amount: dec("50.01"), UserUPIID: "veer@upi"})
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
		assert.True(t, h.db.Balance(t, userID).Equal(dec("50")))
		assert.Zero(t, h.db.CountTransactions(t, userID, domain.TxWithdrawal, domain.TxPending))
	})
}

func TestWalletService_RequestValidation(t *testing.T) {
	h := newHarness(t, config.PolicyReverse)
	ctx := context.Background()
	userID := h.db.CreateUser(t, "zoya", "100")

	tests := []struct {
		name string
		req  domain.WalletRequest
	}{
		{"unknown type", domain.WalletRequest{Type: "bonus", Amount: dec("10")}},
		{"deposit without reference", domain.WalletRequest{Type: domain.TxDeposit, Amount: dec("10")}},
		{"withdrawal without upi id", domain.WalletRequest{Type: domain.TxWithdrawal, Amount: dec("10")}},
		{"zero amount", domain.WalletRequest{Type: domain.TxDeposit, Amount: dec("0"), UPIRef: "x"}},
		{"fractional paise", domain.WalletRequest{Type: domain.TxDeposit, Amount: dec("1.005"), UPIRef: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.wallet.Request(ctx, userID, tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestWalletService_ListAndGet(t *testing.T) {
	h := newHarness(t, config.PolicyReverse)
	ctx := context.Background()

	owner := h.db.CreateUser(t, "owner", "0")
	other := h.db.CreateUser(t, "other", "0")
	adminID := h.db.CreateAdmin(t, "admin")

	txn, err := h.wallet.RequestDeposit(ctx, owner, domain.WalletRequest{Amount: dec("10"), UPIRef: "UPI-2"})
	require.NoError(t, err)

	mine, err := h.wallet.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, txn.ID, mine[0].ID)

	theirs, err := h.wallet.List(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, theirs)

	all, err := h.wallet.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	ownerProfile, err := h.db.Repo.GetProfile(ctx, owner)
	require.NoError(t, err)
	otherProfile, err := h.db.Repo.GetProfile(ctx, other)
	require.NoError(t, err)
	adminProfile, err := h.db.Repo.GetProfile(ctx, adminID)
	require.NoError(t, err)

	_, err = h.wallet.Get(ctx, txn.ID, ownerProfile)
	assert.NoError(t, err)
	_, err = h.wallet.Get(ctx, txn.ID, adminProfile)
	assert.NoError(t, err)
	_, err = h.wallet.Get(ctx, txn.ID, otherProfile)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
