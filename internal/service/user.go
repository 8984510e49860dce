package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arena-wallet/internal/config"
	"github.com/arena-wallet/internal/domain"
	"github.com/arena-wallet/internal/postgres"
)

// Me is the signed-in user's profile with the tournaments they joined
type Me struct {
	domain.Profile
	JoinedTournaments []string `json:"joined_tournaments"`
}

// UserService manages profiles and the winnings leaderboard
type UserService struct {
	repo   *postgres.Repository
	fx     *Effects
	cfg    *config.LeaderboardConfig
	logger *slog.Logger
}

// NewUserService creates a new user service
func NewUserService(repo *postgres.Repository, fx *Effects, cfg *config.LeaderboardConfig, logger *slog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		fx:     fx,
		cfg:    cfg,
		logger: logger,
	}
}

// Upsert creates or refreshes the profile for an identity provider user
func (s *UserService) Upsert(ctx context.Context, id string, req domain.UpsertProfileRequest) (*domain.Profile, error) {
	if !validID(id) {
		return nil, domain.InvalidInput("user id must be a uuid")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.repo.UpsertProfile(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("upserting profile: %w", err)
	}
	s.fx.invalidate(ctx, domain.UserTopic(id), domain.UserKey(id))
	return p, nil
}

// Get returns a profile
func (s *UserService) Get(ctx context.Context, id string) (*domain.Profile, error) {
	if !validID(id) {
		return nil, domain.ErrUserNotFound
	}
	return s.repo.GetProfile(ctx, id)
}

// Me returns a profile with the ids of joined tournaments
func (s *UserService) Me(ctx context.Context, id string) (*Me, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	joined, err := s.repo.JoinedTournamentIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	if joined == nil {
		joined = []string{}
	}
	return &Me{Profile: *p, JoinedTournaments: joined}, nil
}

// List returns every profile
func (s *UserService) List(ctx context.Context) ([]domain.Profile, error) {
	profiles, err := s.repo.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []domain.Profile{}
	}
	return profiles, nil
}

// Leaderboard returns the biggest prize winners with their usernames
func (s *UserService) Leaderboard(ctx context.Context, limit int) ([]domain.WinningsEntry, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}

	entries, err := s.fx.Board.Top(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("getting leaderboard: %w", err)
	}
	if len(entries) == 0 {
		return []domain.WinningsEntry{}, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	names, err := s.repo.Usernames(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to resolve leaderboard usernames", "error", err)
		return entries, nil
	}
	for i := range entries {
		entries[i].Username = names[entries[i].UserID]
	}
	return entries, nil
}
