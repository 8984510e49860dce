package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arena-wallet/internal/domain"
	"github.com/arena-wallet/internal/phonepe"
	"github.com/arena-wallet/internal/postgres"
	"github.com/shopspring/decimal"
)

// Gateway is the external payment provider
type Gateway interface {
	Pay(ctx context.Context, req phonepe.PayRequest) (*phonepe.PayResponse, error)
	Status(ctx context.Context, transactionID string) (*phonepe.StatusResponse, error)
}

// CreateOrderRequest is a user's request to top up through the gateway
type CreateOrderRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Order is a started checkout
type Order struct {
	TransactionID string               `json:"transaction_id"`
	RedirectURL   string               `json:"redirect_url,omitempty"`
	Gateway       *phonepe.PayResponse `json:"gateway"`
}

// CallbackResult reports what a gateway callback did to the transaction
type CallbackResult struct {
	TransactionID string                   `json:"transaction_id"`
	State         phonepe.State            `json:"state"`
	Status        domain.TransactionStatus `json:"status"`
	Changed       bool                     `json:"changed"`
}

// PaymentService bridges gateway deposits into the wallet
type PaymentService struct {
	repo    *postgres.Repository
	gateway Gateway
	fx      *Effects
	logger  *slog.Logger
	now     func() time.Time
}

// NewPaymentService creates a new payment service
func NewPaymentService(repo *postgres.Repository, gateway Gateway, fx *Effects, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		repo:    repo,
		gateway: gateway,
		fx:      fx,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateOrder records a pending deposit and starts a gateway checkout for it.
// If the gateway refuses, the pending row is removed again.
func (s *PaymentService) CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (*Order, error) {
	if !req.Amount.IsPositive() {
		return nil, domain.InvalidInput("amount must be positive")
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, domain.InvalidInput("amount has more than two decimal places")
	}
	if !validID(userID) {
		return nil, domain.ErrUserNotFound
	}

	txn := &domain.Transaction{
		ID:     domain.NewGatewayTransactionID(s.now()),
		UserID: userID,
		Type:   domain.TxDeposit,
		Amount: req.Amount,
		Status: domain.TxPending,
	}
	if err := s.repo.InsertTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}

	resp, err := s.gateway.Pay(ctx, phonepe.PayRequest{
		TransactionID: txn.ID,
		UserID:        userID,
		Amount:        req.Amount,
	})
	if err != nil {
		s.logger.Error("payment initiation failed", "transaction_id", txn.ID, "error", err)
		if delErr := s.repo.DeletePendingTransaction(ctx, txn.ID); delErr != nil {
			s.logger.Error("failed to remove pending order", "transaction_id", txn.ID, "error", delErr)
		}
		return nil, fmt.Errorf("%w: payment initiation failed", domain.ErrExternalService)
	}

	s.logger.Info("payment order created", "transaction_id", txn.ID, "user_id", userID, "amount", req.Amount.StringFixed(2))
	s.fx.walletChanged(ctx, userID)
	return &Order{
		TransactionID: txn.ID,
		RedirectURL:   resp.RedirectURL,
		Gateway:       resp,
	}, nil
}

// Status asks the gateway for a payment's state. Non-admins may only query
// their own transactions.
func (s *PaymentService) Status(ctx context.Context, transactionID string, viewer *domain.Profile) (*phonepe.StatusResponse, error) {
	txn, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !viewer.IsAdmin() && txn.UserID != viewer.ID {
		return nil, domain.ErrTransactionNotFound
	}

	resp, err := s.gateway.Status(ctx, transactionID)
	if err != nil {
		s.logger.Error("payment status check failed", "transaction_id", transactionID, "error", err)
		return nil, fmt.Errorf("%w: status check failed", domain.ErrExternalService)
	}
	return resp, nil
}

// Callback verifies a payment with the gateway and settles the deposit.
// Only a pending deposit changes, so repeated callbacks are harmless.
func (s *PaymentService) Callback(ctx context.Context, transactionID string) (*CallbackResult, error) {
	if transactionID == "" {
		return nil, domain.InvalidInput("transaction id is required")
	}

	// Unknown ids never reach the gateway
	current, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if current.Type != domain.TxDeposit {
		return nil, domain.InvalidInput("transaction is not a deposit")
	}
	if current.Status != domain.TxPending {
		s.logger.Info("payment callback ignored, already processed",
			"transaction_id", transactionID,
			"status", current.Status,
		)
		return &CallbackResult{
			TransactionID: transactionID,
			State:         settledState(current.Status),
			Status:        current.Status,
		}, nil
	}

	resp, err := s.gateway.Status(ctx, transactionID)
	if err != nil {
		s.logger.Error("payment verification failed", "transaction_id", transactionID, "error", err)
		return nil, fmt.Errorf("%w: payment verification failed", domain.ErrExternalService)
	}

	result := &CallbackResult{TransactionID: transactionID, State: resp.State, Status: current.Status}
	if resp.State == phonepe.StatePending {
		return result, nil
	}

	target := domain.TxRejected
	if resp.State == phonepe.StateSuccess {
		target = domain.TxApproved
	}

	var txn *domain.Transaction
	err = s.repo.WithTransaction(ctx, func(tx *postgres.Repository) error {
		locked, err := tx.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if locked.Type != domain.TxDeposit {
			return domain.InvalidInput("transaction is not a deposit")
		}
		if locked.Status != domain.TxPending {
			txn = locked
			return nil
		}
		txn, err = settlePending(ctx, tx, transactionID, target)
		if err != nil {
			return err
		}
		result.Changed = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("handling payment callback: %w", err)
	}
	result.Status = txn.Status

	if !result.Changed {
		s.logger.Info("payment callback ignored, already processed",
			"transaction_id", transactionID,
			"status", txn.Status,
		)
		return result, nil
	}

	s.logger.Info("payment callback processed",
		"transaction_id", transactionID,
		"state", resp.State,
		"status", txn.Status,
	)

	amount := txn.Amount.StringFixed(2)
	s.fx.walletChanged(ctx, txn.UserID)
	if txn.Status == domain.TxApproved {
		s.fx.notifyUser(ctx, txn.UserID, "Deposit successful",
			fmt.Sprintf("₹%s has been added to your wallet via PhonePe", amount), domain.NotifySuccess)
		s.fx.notifyAdmins(ctx, "Payment received",
			fmt.Sprintf("₹%s deposited successfully via PhonePe", amount), domain.NotifySuccess)
	} else {
		s.fx.notifyUser(ctx, txn.UserID, "Payment failed",
			fmt.Sprintf("Your deposit of ₹%s failed. Please try again", amount), domain.NotifyError)
	}
	return result, nil
}

// settledState is the gateway state a settled deposit reflects
func settledState(status domain.TransactionStatus) phonepe.State {
	if status == domain.TxApproved {
		return phonepe.StateSuccess
	}
	return phonepe.StateFailed
}
