package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arena-wallet/internal/config"
	"github.com/arena-wallet/internal/domain"
	"github.com/arena-wallet/internal/postgres"
	"github.com/google/uuid"
)

// TournamentService manages tournaments and their prize rules
type TournamentService struct {
	repo   *postgres.Repository
	fx     *Effects
	cache  *config.CacheConfig
	logger *slog.Logger
}

// NewTournamentService creates a new tournament service
func NewTournamentService(repo *postgres.Repository, fx *Effects, cacheCfg *config.CacheConfig, logger *slog.Logger) *TournamentService {
	return &TournamentService{
		repo:   repo,
		fx:     fx,
		cache:  cacheCfg,
		logger: logger,
	}
}

// validID reports whether id can name a uuid-keyed row. Anything else
// cannot exist, so callers answer not found without a query.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// List returns tournaments ordered by start date. Only the unfiltered list is cached.
func (s *TournamentService) List(ctx context.Context, status domain.TournamentStatus) ([]domain.Tournament, error) {
	if status != "" && !status.Valid() {
		return nil, domain.InvalidInput("unknown status filter")
	}
	if status == "" {
		var cached []domain.Tournament
		if ok, _ := s.fx.Cache.Get(ctx, domain.KeyTournaments, &cached); ok {
			return cached, nil
		}
	}

	tournaments, err := s.repo.ListTournaments(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("listing tournaments: %w", err)
	}
	if tournaments == nil {
		tournaments = []domain.Tournament{}
	}

	if status == "" {
		if err := s.fx.Cache.Set(ctx, domain.KeyTournaments, tournaments, s.cache.TournamentTTL); err != nil {
			s.logger.Warn("failed to cache tournaments", "error", err)
		}
	}
	return tournaments, nil
}

// Get returns a tournament with its prize rules
func (s *TournamentService) Get(ctx context.Context, id string) (*domain.Tournament, error) {
	if !validID(id) {
		return nil, domain.ErrTournamentNotFound
	}

	key := domain.TournamentKey(id)
	var cached domain.Tournament
	if ok, _ := s.fx.Cache.Get(ctx, key, &cached); ok {
		return &cached, nil
	}

	t, err := s.repo.GetTournament(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.fx.Cache.Set(ctx, key, t, s.cache.TournamentTTL); err != nil {
		s.logger.Warn("failed to cache tournament", "tournament_id", id, "error", err)
	}
	return t, nil
}

// Participants returns the users registered in a tournament
func (s *TournamentService) Participants(ctx context.Context, id string) ([]domain.Participant, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	participants, err := s.repo.ListParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	if participants == nil {
		participants = []domain.Participant{}
	}
	return participants, nil
}

// Create stores a new upcoming tournament
func (s *TournamentService) Create(ctx context.Context, req domain.CreateTournamentRequest) (*domain.Tournament, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	t := &domain.Tournament{
		Title:         req.Title,
		Game:          req.Game,
		EntryFee:      req.EntryFee,
		PrizePool:     req.PrizePool,
		PerKillReward: req.PerKillReward,
		StartDate:     req.StartDate,
		MaxPlayers:    req.MaxPlayers,
		Status:        domain.StatusUpcoming,
		Image:         req.Image,
		Description:   req.Description,
		Rules:         req.Rules,
		PrizeRules:    req.PrizeRules,
	}
	if t.PrizeRules == nil {
		t.PrizeRules = []domain.PrizeRule{}
	}

	err := s.repo.WithTransaction(ctx, func(tx *postgres.Repository) error {
		return tx.CreateTournament(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tournament created", "tournament_id", t.ID, "title", t.Title)
	s.fx.tournamentChanged(ctx, t.ID)
	return t, nil
}

// Update applies a partial update. Status may only move forward and never to
// completed or cancelled; those go through settlement.
func (s *TournamentService) Update(ctx context.Context, id string, req domain.UpdateTournamentRequest) (*domain.Tournament, error) {
	if !validID(id) {
		return nil, domain.ErrTournamentNotFound
	}

	var updated *domain.Tournament
	err := s.repo.WithTransaction(ctx, func(tx *postgres.Repository) error {
		t, err := tx.GetTournamentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := req.Apply(t); err != nil {
			return err
		}
		if err := tx.UpdateTournament(ctx, t); err != nil {
			return err
		}
		updated, err = tx.GetTournament(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.fx.tournamentChanged(ctx, id)
	return updated, nil
}

// Delete removes a tournament. Tournaments holding paid entries must be
// cancelled first so the fees are refunded.
func (s *TournamentService) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrTournamentNotFound
	}

	err := s.repo.WithTransaction(ctx, func(tx *postgres.Repository) error {
		t, err := tx.GetTournamentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !t.CanDelete() {
			return domain.InvalidState("tournament has participants; cancel it first")
		}
		return tx.DeleteTournament(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("tournament deleted", "tournament_id", id)
	s.fx.tournamentChanged(ctx, id, domain.ResultsKey(id))
	return nil
}
