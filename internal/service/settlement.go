package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arena-wallet/internal/config"
	"github.com/arena-wallet/internal/domain"
	"github.com/arena-wallet/internal/postgres"
	"github.com/shopspring/decimal"
)

// SettlementService records results and moves prize and refund money
type SettlementService struct {
	repo   *postgres.Repository
	fx     *Effects
	policy config.ResubmissionPolicy
	cache  *config.CacheConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewSettlementService creates a new settlement service
func NewSettlementService(
	repo *postgres.Repository,
	fx *Effects,
	cfg *config.SettlementConfig,
	cacheCfg *config.CacheConfig,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		repo:   repo,
		fx:     fx,
		policy: cfg.ResubmissionPolicy,
		cache:  cacheCfg,
		logger: logger,
		now:    time.Now,
	}
}

// Policy returns the configured resubmission policy
func (s *SettlementService) Policy() config.ResubmissionPolicy {
	return s.policy
}

// payout is a committed change to one user's prize money
type payout struct {
	userID string
	delta  decimal.Decimal
}

// SubmitResults stores results, pays prizes and completes the tournament.
// Everything happens in one transaction with the tournament row locked.
func (s *SettlementService) SubmitResults(ctx context.Context, tournamentID string, req domain.SubmitResultsRequest) (*domain.SettlementResult, error) {
	if !validID(tournamentID) {
		return nil, domain.ErrTournamentNotFound
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		settled *domain.SettlementResult
		payouts []payout
		title   string
	)
	err := s.repo.WithTransaction(ctx, func(tx *postgres.Repository) error {
		t, err := tx.GetTournamentForUpdate(ctx, tournamentID)
		if err != nil {
			return err
		}
		if t.Status != domain.StatusOngoing && t.Status != domain.StatusCompleted {
			return domain.InvalidState("results can only be submitted for ongoing or completed tournaments")
		}
		title = t.Title

		participants, err := tx.ParticipantSet(ctx, tournamentID)
		if err != nil {
			return err
		}
		for _, in := range req.Results {
			if !participants[in.UserID] {
				return domain.InvalidInput("user " + in.UserID + " is not a participant")
			}
		}

		results := domain.ComputeResults(t, req.Results)
		if err := tx.ReplaceResults(ctx, tournamentID, results); err != nil {
			return err
		}

		settled = &domain.SettlementResult{
			TournamentID:  tournamentID,
			Policy:        string(s.policy),
			Results:       results,
			TotalCredited: decimal.Zero,
			TotalReversed: decimal.Zero,
		}

		switch s.policy {
		case config.PolicyAdditive:
			payouts, err = s.payAdditive(ctx, tx, t, results, settled)
		default:
			payouts, err = s.payDelta(ctx, tx, t, results, settled)
		}
		if err != nil {
			return err
		}

		return tx.SetTournamentStatus(ctx, tournamentID, domain.StatusCompleted, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("submitting results: %w", err)
	}

	s.logger.Info("tournament settled",
		"tournament_id", tournamentID,
		"policy", s.policy,
		"results", len(settled.Results),
		"credited", settled.TotalCredited.StringFixed(2),
		"reversed", settled.TotalReversed.StringFixed(2),
	)

	s.fx.tournamentChanged(ctx, tournamentID, domain.ResultsKey(tournamentID), domain.KeyLeaderboard)
	for _, p := range payouts {
		s.fx.addWinnings(ctx, p.userID, p.delta)
		s.fx.walletChanged(ctx, p.userID)
		if p.delta.IsPositive() {
			s.fx.notifyUser(ctx, p.userID, "Prize credited",
				fmt.Sprintf("₹%s from %s was added to your wallet", p.delta.StringFixed(2), title),
				domain.NotifySuccess)
		} else {
			s.fx.notifyUser(ctx, p.userID, "Prize adjusted",
				fmt.Sprintf("Results for %s were corrected; ₹%s was deducted", title, p.delta.Neg().StringFixed(2)),
				domain.NotifyWarning)
		}
	}

	return settled, nil
}

// payAdditive credits every positive prize in full, regardless of earlier
// submissions.
func (s *SettlementService) payAdditive(ctx context.Context, tx *postgres.Repository, t *domain.Tournament, results []domain.Result, settled *domain.SettlementResult) ([]payout, error) {
	var payouts []payout
	for _, r := range results {
		if !r.PrizeWon.IsPositive() {
			continue
		}
		if err := s.creditPrize(ctx, tx, t, r.UserID, r.Rank, r.PrizeWon); err != nil {
			return nil, err
		}
		settled.TotalCredited = settled.TotalCredited.Add(r.PrizeWon)
		settled.WinnersCredited++
		payouts = append(payouts, payout{userID: r.UserID, delta: r.PrizeWon})
	}
	return payouts, nil
}

// payDelta brings each user's paid prize in line with the new results.
// Earlier prize rows of changed users are reversed and replaced by one row
// for the new amount; the balance moves by the difference only.
func (s *SettlementService) payDelta(ctx context.Context, tx *postgres.Repository, t *domain.Tournament, results []domain.Result, settled *domain.SettlementResult) ([]payout, error) {
	previous, err := tx.ApprovedPrizes(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	var payouts []payout
	for _, d := range domain.DiffPrizes(previous, results) {
		if d.Old.IsPositive() {
			if _, err := tx.ReversePrizes(ctx, t.ID, d.UserID); err != nil {
				return nil, err
			}
		}
		if d.New.IsPositive() {
			if err := s.recordPrize(ctx, tx, t, d.UserID, d.Rank, d.New); err != nil {
				return nil, err
			}
			settled.WinnersCredited++
		}

		delta := d.Amount()
		if _, err := tx.AdjustBalance(ctx, d.UserID, delta); err != nil {
			return nil, fmt.Errorf("adjusting prize for %s: %w", d.UserID, err)
		}
		if delta.IsPositive() {
			settled.TotalCredited = settled.TotalCredited.Add(delta)
		} else {
			settled.TotalReversed = settled.TotalReversed.Add(delta.Neg())
		}
		payouts = append(payouts, payout{userID: d.UserID, delta: delta})
	}
	return payouts, nil
}

// creditPrize records an approved prize transaction and credits the balance
func (s *SettlementService) creditPrize(ctx context.Context, tx *postgres.Repository, t *domain.Tournament, userID string, rank int, amount decimal.Decimal) error {
	if err := s.recordPrize(ctx, tx, t, userID, rank, amount); err != nil {
		return err
	}
	_, err := tx.CreditBalance(ctx, userID, amount)
	return err
}

func (s *SettlementService) recordPrize(ctx context.Context, tx *postgres.Repository, t *domain.Tournament, userID string, rank int, amount decimal.Decimal) error {
	tournamentID := t.ID
	return tx.InsertTransaction(ctx, &domain.Transaction{
		UserID:       userID,
		Type:         domain.TxPrize,
		Amount:       amount,
		Status:       domain.TxApproved,
		UPIRef:       domain.PrizeReference(t.Title, rank, s.now()),
		TournamentID: &tournamentID,
	})
}

// GetResults returns a tournament's results ordered by rank
func (s *SettlementService) GetResults(ctx context.Context, tournamentID string) ([]domain.Result, error) {
	if !validID(tournamentID) {
		return nil, domain.ErrTournamentNotFound
	}

	key := domain.ResultsKey(tournamentID)
	var cached []domain.Result
	if ok, _ := s.fx.Cache.Get(ctx, key, &cached); ok {
		return cached, nil
	}

	if _, err := s.repo.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	results, err := s.repo.ListResults(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []domain.Result{}
	}

	if err := s.fx.Cache.Set(ctx, key, results, s.cache.ResultsTTL); err != nil {
		s.logger.Warn("failed to cache results", "tournament_id", tournamentID, "error", err)
	}
	return results, nil
}

// Cancel refunds every participant's entry fee and cancels the tournament.
// A single failed refund rolls back all of them.
func (s *SettlementService) Cancel(ctx context.Context, tournamentID string) (*domain.CancelResult, error) {
	if !validID(tournamentID) {
		return nil, domain.ErrTournamentNotFound
	}

	var (
		result   *domain.CancelResult
		refunded []string
		title    string
		entryFee decimal.Decimal
	)
	err := s.repo.WithTransaction(ctx, func(tx *postgres.Repository) error {
		t, err := tx.GetTournamentForUpdate(ctx, tournamentID)
		if err != nil {
			return err
		}
		if t.Status != domain.StatusUpcoming && t.Status != domain.StatusOngoing {
			return domain.InvalidState("only upcoming or ongoing tournaments can be cancelled")
		}
		title = t.Title
		entryFee = t.EntryFee

		participants, err := tx.ListParticipants(ctx, tournamentID)
		if err != nil {
			return err
		}

		now := s.now()
		for _, p := range participants {
			refunded = append(refunded, p.UserID)
			if !t.EntryFee.IsPositive() {
				continue
			}
			if _, err := tx.CreditBalance(ctx, p.UserID, t.EntryFee); err != nil {
				return fmt.Errorf("refunding %s: %w", p.UserID, err)
			}
			err := tx.InsertTransaction(ctx, &domain.Transaction{
				UserID:       p.UserID,
				Type:         domain.TxRefund,
				Amount:       t.EntryFee,
				Status:       domain.TxApproved,
				UPIRef:       domain.RefundReference(t.Title, now),
				TournamentID: &tournamentID,
			})
			if err != nil {
				return err
			}
		}

		result = &domain.CancelResult{
			TournamentID:         tournamentID,
			RefundedParticipants: len(participants),
			RefundAmount:         t.EntryFee,
		}
		return tx.SetTournamentStatus(ctx, tournamentID, domain.StatusCancelled, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("cancelling tournament: %w", err)
	}

	s.logger.Info("tournament cancelled",
		"tournament_id", tournamentID,
		"refunded", result.RefundedParticipants,
		"entry_fee", entryFee.StringFixed(2),
	)

	s.fx.tournamentChanged(ctx, tournamentID)
	for _, userID := range refunded {
		s.fx.walletChanged(ctx, userID)
		s.fx.notifyUser(ctx, userID, "Tournament cancelled",
			fmt.Sprintf("%s was cancelled. ₹%s has been refunded to your wallet", title, entryFee.StringFixed(2)),
			domain.NotifyWarning)
	}
	return result, nil
}

// DeclareWinner pays the whole prize pool to a single winner and completes
// the tournament.
func (s *SettlementService) DeclareWinner(ctx context.Context, tournamentID string, req domain.DeclareWinnerRequest) (*domain.Tournament, error) {
	if !validID(tournamentID) {
		return nil, domain.ErrTournamentNotFound
	}
	if req.WinnerID == "" {
		return nil, domain.InvalidInput("winner_id is required")
	}

	var (
		updated *domain.Tournament
		prize   decimal.Decimal
	)
	err := s.repo.WithTransaction(ctx, func(tx *postgres.Repository) error {
		t, err := tx.GetTournamentForUpdate(ctx, tournamentID)
		if err != nil {
			return err
		}
		if t.Status != domain.StatusUpcoming && t.Status != domain.StatusOngoing {
			return domain.InvalidState("winner can only be declared before a tournament finishes")
		}

		participants, err := tx.ParticipantSet(ctx, tournamentID)
		if err != nil {
			return err
		}
		if !participants[req.WinnerID] {
			return domain.InvalidInput("winner is not a participant")
		}

		prize = t.PrizePool
		if prize.IsPositive() {
			if err := s.creditPrize(ctx, tx, t, req.WinnerID, 0, prize); err != nil {
				return err
			}
		}

		if err := tx.SetTournamentStatus(ctx, tournamentID, domain.StatusCompleted, &req.WinnerID); err != nil {
			return err
		}
		updated, err = tx.GetTournament(ctx, tournamentID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("declaring winner: %w", err)
	}

	s.logger.Info("winner declared",
		"tournament_id", tournamentID,
		"winner_id", req.WinnerID,
		"prize", prize.StringFixed(2),
	)

	s.fx.tournamentChanged(ctx, tournamentID, domain.KeyLeaderboard)
	s.fx.walletChanged(ctx, req.WinnerID)
	if prize.IsPositive() {
		s.fx.addWinnings(ctx, req.WinnerID, prize)
	}
	s.fx.notifyUser(ctx, req.WinnerID, "You won!",
		fmt.Sprintf("Congratulations! You won %s and ₹%s was added to your wallet", updated.Title, prize.StringFixed(2)),
		domain.NotifySuccess)
	return updated, nil
}
