package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arena-wallet/internal/domain"
	"github.com/arena-wallet/internal/postgres"
)

// LedgerService moves entry fees from wallets into tournaments
type LedgerService struct {
	repo   *postgres.Repository
	fx     *Effects
	logger *slog.Logger
	now    func() time.Time
}

// NewLedgerService creates a new ledger service
func NewLedgerService(repo *postgres.Repository, fx *Effects, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		repo:   repo,
		fx:     fx,
		logger: logger,
		now:    time.Now,
	}
}

// Join registers userID in a tournament and charges the entry fee. The seat,
// participant row, debit and entry transaction commit together or not at all.
func (s *LedgerService) Join(ctx context.Context, tournamentID, userID string) (*domain.JoinResult, error) {
	if !validID(tournamentID) {
		return nil, domain.ErrTournamentNotFound
	}
	if !validID(userID) {
		return nil, domain.ErrUserNotFound
	}

	var (
		result domain.JoinResult
		title  string
	)
	err := s.repo.WithTransaction(ctx, func(tx *postgres.Repository) error {
		t, err := tx.ReserveSeat(ctx, tournamentID)
		if err != nil {
			return err
		}
		title = t.Title

		if err := tx.AddParticipant(ctx, tournamentID, userID); err != nil {
			return err
		}

		balance, err := tx.DebitBalance(ctx, userID, t.EntryFee)
		if err != nil {
			return err
		}

		result = domain.JoinResult{
			TournamentID:   tournamentID,
			EntryFee:       t.EntryFee,
			NewBalance:     balance,
			CurrentPlayers: t.CurrentPlayers,
		}

		// Free tournaments leave no ledger row; amounts must be positive.
		if !t.EntryFee.IsPositive() {
			return nil
		}
		entry := &domain.Transaction{
			UserID:       userID,
			Type:         domain.TxTournamentEntry,
			Amount:       t.EntryFee,
			Status:       domain.TxApproved,
			UPIRef:       domain.EntryReference(t.Title, s.now()),
			TournamentID: &tournamentID,
		}
		if err := tx.InsertTransaction(ctx, entry); err != nil {
			return err
		}
		result.TransactionID = entry.ID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("joining tournament: %w", err)
	}

	s.logger.Info("tournament joined",
		"tournament_id", tournamentID,
		"user_id", userID,
		"entry_fee", result.EntryFee.StringFixed(2),
		"current_players", result.CurrentPlayers,
	)

	s.fx.tournamentChanged(ctx, tournamentID)
	s.fx.walletChanged(ctx, userID)
	s.fx.notifyUser(ctx, userID, "Tournament joined",
		fmt.Sprintf("You joined %s. Entry fee: ₹%s", title, result.EntryFee.StringFixed(2)),
		domain.NotifySuccess)

	return &result, nil
}
