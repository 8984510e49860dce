package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/arena-wallet/internal/config"
	"github.com/arena-wallet/internal/domain"
	"github.com/arena-wallet/internal/phonepe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentService_CreateOrder(t *testing.T) {
	h := newHarness(t, config.PolicyReverse)
	ctx := context.Background()

	userID := h.db.CreateUser(t, "rhea", "0")

	order, err := h.payments.CreateOrder(ctx, userID, CreateOrderRequest{Amount: dec("499")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(order.TransactionID, "TXN_"), order.TransactionID)
	assert.Equal(t, "https://pay.example.com/"+order.TransactionID, order.RedirectURL)

	require.Len(t, h.gateway.paid, 1)
	assert.Equal(t, userID, h.gateway.paid[0].UserID)
	assert.True(t, h.gateway.paid[0].Amount.Equal(dec("499")))

	txn, err := h.db.Repo.GetTransaction(ctx, order.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxDeposit, txn.Type)
	assert.Equal(t, domain.TxPending, txn.Status)
}

func TestPaymentService_CreateOrderGatewayFailure(t *testing.T) {
	h := newHarness(t, config.PolicyReverse)
	ctx := context.Background()

	userID := h.db.CreateUser(t, "manav", "0")
	h.gateway.payErr = errors.New("connection reset")

	_, err := h.payments.CreateOrder(ctx, userID, CreateOrderRequest{Amount: dec("100")})
	assert.ErrorIs(t, err, domain.ErrExternalService)
	assert.Zero(t, h.db.CountTransactions(t, userID, domain.TxDeposit, domain.TxPending))
}

func TestPaymentService_CreateOrderValidation(t *testing.T) {
	h := newHarness(t, config.PolicyReverse)
	ctx := context.Background()
	userID := h.db.CreateUser(t, "nila", "0")

	_, err := h.payments.CreateOrder(ctx, userID, CreateOrderRequest{Amount: dec("-1")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.payments.CreateOrder(ctx, userID, CreateOrderRequest{Amount: dec("0.001")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, h.gateway.paid)

	order, err := h.payments.CreateOrder(ctx, userID, CreateOrderRequest{Amount: dec("10.500")})
	require.NoError(t, err, "trailing zeros are still two decimal places")
	assert.NotEmpty(t, order.TransactionID)
}

func TestPaymentService_Callback(t *testing.T) {
	h := newHarness(t, config.PolicyReverse)
	ctx := context.Background()

	userID := h.db.CreateUser(t, "ira", "10")
	order, err := h.payments.CreateOrder(ctx, userID, CreateOrderRequest{Amount: dec("200")})
	require.NoError(t, err)

	t.Run("pending payment changes nothing", func(t *testing.T) {
		h.gateway.state = phonepe.StatePending
		result, err := h.payments.Callback(ctx, order.TransactionID)
		require.NoError(t, err)
		assert.False(t, result.Changed)
		assert.Equal(t, domain.TxPending, result.Status)
		assert.True(t, h.db.Balance(t, userID).Equal(dec("10")))
	})

	t.Run("success credits once", func(t *testing.T) {
		h.gateway.state = phonepe.StateSuccess

		first, err := h.payments.Callback(ctx, order.TransactionID)
		require.NoError(t, err)
		assert.True(t, first.Changed)
		assert.Equal(t, domain.TxApproved, first.Status)

		second, err := h.payments.Callback(ctx, order.TransactionID)
		require.NoError(t, err)
		assert.False(t, second.Changed)
		assert.Equal(t, domain.TxApproved, second.Status)

		assert.True(t, h.db.Balance(t, userID).Equal(dec("210")))
		assert.Contains(t, h.rec.titlesFor(userID), "Deposit successful")
	})

	t.Run("settled deposits skip the gateway", func(t *testing.T) {
		before := h.gateway.queries
		result, err := h.payments.Callback(ctx, order.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, phonepe.StateSuccess, result.State)
		assert.Equal(t, before, h.gateway.queries)
	})
}

func TestPaymentService_CallbackGatewayError(t *testing.T) {
	h := newHarness(t, config.PolicyReverse)
	ctx := context.Background()

	userID := h.db.CreateUser(t, "kabir", "5")
	order, err := h.payments.CreateOrder(ctx, userID, CreateOrderRequest{Amount: dec("300")})
	require.NoError(t, err)

	h.gateway.statusErr = &phonepe.StatusError{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED"}
	_, err = h.payments.Callback(ctx, order.TransactionID)
	assert.ErrorIs(t, err, domain.ErrExternalService)

	txn, err := h.db.Repo.GetTransaction(ctx, order.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxPending, txn.Status, "the deposit waits for a real answer")
	assert.True(t, h.db.Balance(t, userID).Equal(dec("5")))

	// Once the gateway answers, the same deposit settles normally
	h.gateway.statusErr = nil
	h.gateway.state = phonepe.StateSuccess
	result, err := h.payments.Callback(ctx, order.TransactionID)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.True(t, h.db.Balance(t, userID).Equal(dec("305")))
}

func TestPaymentService_CallbackUnknownTransaction(t *testing.T) {
	h := newHarness(t, config.PolicyReverse)

	_, err := h.payments.Callback(context.Background(), "TXN_1700000000000_deadbeef")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, h.gateway.queries, "unknown ids never reach the gateway")
}

func TestPaymentService_CallbackFailedPayment(t *testing.T) {
	h := newHarness(t, config.PolicyReverse)
	ctx := context.Background()

	userID := h.db.CreateUser(t, "dia", "0")
	order, err := h.payments.CreateOrder(ctx, userID, CreateOrderRequest{Amount: dec("75")})
	require.NoError(t, err)

	h.gateway.state = phonepe.StateFailed
	result, err := h.payments.Callback(ctx, order.TransactionID)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, domain.TxRejected, result.Status)
	assert.True(t, h.db.Balance(t, userID).IsZero())
	assert.Contains(t, h.rec.titlesFor(userID), "Payment failed")
}

func TestPaymentService_CallbackRejectsNonDeposits(t *testing.T) {
	h := newHarness(t, config.PolicyReverse)
	ctx := context.Background()

	userID := h.db.CreateUser(t, "anu", "100")
	txn, err := h.wallet.RequestWithdrawal(ctx, userID, domain.WalletRequest{Amount: dec("40"), UserUPIID: "anu@upi"})
	require.NoError(t, err)

	_, err = h.payments.Callback(ctx, txn.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.True(t, h.db.Balance(t, userID).Equal(dec("60")))

	_, err = h.payments.Callback(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
