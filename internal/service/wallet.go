package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arena-wallet/internal/domain"
	"github.com/arena-wallet/internal/postgres"
)

const transactionListLimit = 200

// WalletService runs deposit and withdrawal requests through their
// pending → approved | rejected lifecycle
type WalletService struct {
	repo   *postgres.Repository
	fx     *Effects
	logger *slog.Logger
}

// NewWalletService creates a new wallet service
func NewWalletService(repo *postgres.Repository, fx *Effects, logger *slog.Logger) *WalletService {
	return &WalletService{
		repo:   repo,
		fx:     fx,
		logger: logger,
	}
}

// Request dispatches on the request type
func (s *WalletService) Request(ctx context.Context, userID string, req domain.WalletRequest) (*domain.Transaction, error) {
	switch req.Type {
	case domain.TxDeposit:
		return s.RequestDeposit(ctx, userID, req)
	case domain.TxWithdrawal:
		return s.RequestWithdrawal(ctx, userID, req)
	}
	return nil, domain.InvalidInput("type must be deposit or withdrawal")
}

// RequestDeposit records a manual UPI deposit for an admin to verify. The
// balance does not change until approval.
func (s *WalletService) RequestDeposit(ctx context.Context, userID string, req domain.WalletRequest) (*domain.Transaction, error) {
	req.Type = domain.TxDeposit
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !validID(userID) {
		return nil, domain.ErrUserNotFound
	}

	txn := &domain.Transaction{
		UserID: userID,
		Type:   domain.TxDeposit,
		Amount: req.Amount,
		Status: domain.TxPending,
		UPIRef: req.UPIRef,
	}
	if err := s.repo.InsertTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("requesting deposit: %w", err)
	}

	s.logger.Info("deposit requested", "transaction_id", txn.ID, "user_id", userID, "amount", txn.Amount.StringFixed(2))
	s.fx.walletChanged(ctx, userID)
	s.alertAdmins(ctx, txn)
	return txn, nil
}

// RequestWithdrawal reserves the amount from the balance and records a
// pending withdrawal. Both happen in one transaction.
func (s *WalletService) RequestWithdrawal(ctx context.Context, userID string, req domain.WalletRequest) (*domain.Transaction, error) {
	req.Type = domain.TxWithdrawal
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !validID(userID) {
		return nil, domain.ErrUserNotFound
	}

	txn := &domain.Transaction{
		UserID:    userID,
		Type:      domain.TxWithdrawal,
		Amount:    req.Amount,
		Status:    domain.TxPending,
		UserUPIID: req.UserUPIID,
	}
	err := s.repo.WithTransaction(ctx, func(tx *postgres.Repository) error {
		if _, err := tx.DebitBalance(ctx, userID, req.Amount); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, txn)
	})
	if err != nil {
		return nil, fmt.Errorf("requesting withdrawal: %w", err)
	}

	s.logger.Info("withdrawal requested", "transaction_id", txn.ID, "user_id", userID, "amount", txn.Amount.StringFixed(2))
	s.fx.walletChanged(ctx, userID)
	s.alertAdmins(ctx, txn)
	return txn, nil
}

func (s *WalletService) alertAdmins(ctx context.Context, txn *domain.Transaction) {
	title := fmt.Sprintf("New %s request", txn.Type)
	message := fmt.Sprintf("A %s of ₹%s is waiting for review", txn.Type, txn.Amount.StringFixed(2))
	s.fx.notifyAdmins(ctx, title, message, domain.NotifyInfo)
	s.fx.alertAdminsByEmail(ctx, title, message, map[string]any{
		"transaction_id": txn.ID,
		"user_id":        txn.UserID,
		"type":           string(txn.Type),
		"amount":         txn.Amount.StringFixed(2),
		"upi_ref":        txn.UPIRef,
		"user_upi_id":    txn.UserUPIID,
	})
}

// Approve settles a pending transaction. Deposits credit the balance;
// withdrawals were debited on request and only change status.
func (s *WalletService) Approve(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.process(ctx, id, domain.TxApproved)
}

// Reject declines a pending transaction. Withdrawals give the reserved
// amount back; deposits never touched the balance.
func (s *WalletService) Reject(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.process(ctx, id, domain.TxRejected)
}

func (s *WalletService) process(ctx context.Context, id string, status domain.TransactionStatus) (*domain.Transaction, error) {
	var txn *domain.Transaction
	err := s.repo.WithTransaction(ctx, func(tx *postgres.Repository) error {
		var err error
		txn, err = settlePending(ctx, tx, id, status)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("processing transaction: %w", err)
	}

	s.logger.Info("transaction processed",
		"transaction_id", id,
		"type", txn.Type,
		"status", status,
		"amount", txn.Amount.StringFixed(2),
	)

	s.fx.walletChanged(ctx, txn.UserID)
	s.notifyOutcome(ctx, txn)
	return txn, nil
}

// settlePending locks a transaction and moves it out of pending, applying
// the balance effect its type and the new status call for. It must run
// inside a database transaction.
func settlePending(ctx context.Context, tx *postgres.Repository, id string, status domain.TransactionStatus) (*domain.Transaction, error) {
	txn, err := tx.GetTransactionForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.Status != domain.TxPending {
		return nil, domain.ErrAlreadyProcessed
	}

	switch {
	case txn.Type == domain.TxDeposit && status == domain.TxApproved:
		if _, err := tx.CreditBalance(ctx, txn.UserID, txn.Amount); err != nil {
			return nil, err
		}
	case txn.Type == domain.TxWithdrawal && status == domain.TxRejected:
		if _, err := tx.CreditBalance(ctx, txn.UserID, txn.Amount); err != nil {
			return nil, err
		}
	}

	if err := tx.SetTransactionStatus(ctx, id, status); err != nil {
		return nil, err
	}
	txn.Status = status
	return txn, nil
}

func (s *WalletService) notifyOutcome(ctx context.Context, txn *domain.Transaction) {
	amount := txn.Amount.StringFixed(2)
	switch {
	case txn.Status == domain.TxApproved && txn.Type == domain.TxDeposit:
		s.fx.notifyUser(ctx, txn.UserID, "Deposit approved",
			fmt.Sprintf("₹%s was added to your wallet", amount), domain.NotifySuccess)
	case txn.Status == domain.TxApproved:
		s.fx.notifyUser(ctx, txn.UserID, "Withdrawal approved",
			fmt.Sprintf("₹%s is on its way to your UPI account", amount), domain.NotifySuccess)
	case txn.Type == domain.TxDeposit:
		s.fx.notifyUser(ctx, txn.UserID, "Deposit rejected",
			fmt.Sprintf("Your deposit of ₹%s could not be verified", amount), domain.NotifyError)
	default:
		s.fx.notifyUser(ctx, txn.UserID, "Withdrawal rejected",
			fmt.Sprintf("₹%s was returned to your wallet", amount), domain.NotifyError)
	}
}

// List returns transactions newest first. An empty userID lists everyone's.
func (s *WalletService) List(ctx context.Context, userID string) ([]domain.Transaction, error) {
	if userID != "" && !validID(userID) {
		return nil, domain.ErrUserNotFound
	}
	txns, err := s.repo.ListTransactions(ctx, userID, transactionListLimit)
	if err != nil {
		return nil, err
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	return txns, nil
}

// Get returns one transaction. Non-admins may only read their own.
func (s *WalletService) Get(ctx context.Context, id string, viewer *domain.Profile) (*domain.Transaction, error) {
	txn, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !viewer.IsAdmin() && txn.UserID != viewer.ID {
		return nil, domain.ErrTransactionNotFound
	}
	return txn, nil
}
