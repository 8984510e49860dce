package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TournamentStatus is the lifecycle state of a tournament
type TournamentStatus string

const (
	StatusUpcoming  TournamentStatus = "upcoming"
	StatusOngoing   TournamentStatus = "ongoing"
	StatusCompleted TournamentStatus = "completed"
	StatusCancelled TournamentStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s TournamentStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions leave s.
func (s TournamentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether moving from s to next is allowed.
// Transitions only move forward; staying in place is allowed.
func (s TournamentStatus) CanTransition(next TournamentStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusUpcoming:
		return next == StatusOngoing || next == StatusCancelled
	case StatusOngoing:
		return next == StatusCompleted || next == StatusCancelled
	}
	return false
}

// PrizeRule maps a finishing rank to a fixed prize amount
type PrizeRule struct {
	Rank   int             `json:"rank"`
	Amount decimal.Decimal `json:"amount"`
}

// Tournament represents a tournament and its prize rules
type Tournament struct {
	ID             string              `json:"id"`
	Title          string              `json:"title"`
	Game           string              `json:"game"`
	EntryFee       decimal.Decimal     `json:"entry_fee"`
	PrizePool      decimal.Decimal     `json:"prize_pool"`
	PerKillReward  decimal.NullDecimal `json:"per_kill_reward"`
	StartDate      time.Time           `json:"start_date"`
	MaxPlayers     int                 `json:"max_players"`
	CurrentPlayers int                 `json:"current_players"`
	Status         TournamentStatus    `json:"status"`
	Image          string              `json:"image,omitempty"`
	Description    string              `json:"description,omitempty"`
	Rules          string              `json:"rules,omitempty"`
	RoomID         *string             `json:"room_id,omitempty"`
	RoomPassword   *string             `json:"room_password,omitempty"`
	WinnerID       *string             `json:"winner_id,omitempty"`
	PrizeRules     []PrizeRule         `json:"prize_distribution"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// SpotsLeft returns the remaining capacity.
func (t *Tournament) SpotsLeft() int {
	return t.MaxPlayers - t.CurrentPlayers
}

// RuleFor returns the prize rule for rank, if one exists.
func (t *Tournament) RuleFor(rank int) (PrizeRule, bool) {
	for _, r := range t.PrizeRules {
		if r.Rank == rank {
			return r, true
		}
	}
	return PrizeRule{}, false
}

// CreateTournamentRequest is the admin payload for a new tournament
type CreateTournamentRequest struct {
	Title         string              `json:"title"`
	Game          string              `json:"game"`
	EntryFee      decimal.Decimal     `json:"entry_fee"`
	PrizePool     decimal.Decimal     `json:"prize_pool"`
	PerKillReward decimal.NullDecimal `json:"per_kill_reward"`
	StartDate     time.Time           `json:"start_date"`
	MaxPlayers    int                 `json:"max_players"`
	Image         string              `json:"image,omitempty"`
	Description   string              `json:"description,omitempty"`
	Rules         string              `json:"rules,omitempty"`
	PrizeRules    []PrizeRule         `json:"prize_distribution"`
}

// Validate checks the request fields.
func (r *CreateTournamentRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	r.Game = strings.TrimSpace(r.Game)
	if r.Title == "" {
		return InvalidInput("title is required")
	}
	if r.Game == "" {
		return InvalidInput("game is required")
	}
	if r.EntryFee.IsNegative() {
		return InvalidInput("entry_fee must not be negative")
	}
	if r.PrizePool.IsNegative() {
		return InvalidInput("prize_pool must not be negative")
	}
	if r.PerKillReward.Valid && r.PerKillReward.Decimal.IsNegative() {
		return InvalidInput("per_kill_reward must not be negative")
	}
	if r.MaxPlayers <= 0 {
		return InvalidInput("max_players must be positive")
	}
	if r.StartDate.IsZero() {
		return InvalidInput("start_date is required")
	}
	return ValidatePrizeRules(r.PrizeRules)
}

// ValidatePrizeRules checks ranks are positive and unique and amounts positive.
func ValidatePrizeRules(rules []PrizeRule) error {
	seen := make(map[int]bool, len(rules))
	for _, rule := range rules {
		if rule.Rank < 1 {
			return InvalidInput("prize rank must be at least 1")
		}
		if !rule.Amount.IsPositive() {
			return InvalidInput("prize amount must be positive")
		}
		if seen[rule.Rank] {
			return InvalidInput("duplicate prize rank")
		}
		seen[rule.Rank] = true
	}
	return nil
}

// UpdateTournamentRequest carries the mutable fields of a tournament.
// Nil fields are left unchanged.
type UpdateTournamentRequest struct {
	Title         *string              `json:"title,omitempty"`
	Image         *string              `json:"image,omitempty"`
	Description   *string              `json:"description,omitempty"`
	Rules         *string              `json:"rules,omitempty"`
	StartDate     *time.Time           `json:"start_date,omitempty"`
	MaxPlayers    *int                 `json:"max_players,omitempty"`
	PrizePool     *decimal.Decimal     `json:"prize_pool,omitempty"`
	PerKillReward *decimal.NullDecimal `json:"per_kill_reward,omitempty"`
	Status        *TournamentStatus    `json:"status,omitempty"`
	RoomID        *string              `json:"room_id,omitempty"`
	RoomPassword  *string              `json:"room_password,omitempty"`
	PrizeRules    []PrizeRule          `json:"prize_distribution,omitempty"`
}

// Apply validates the request against t and mutates t in place.
// Completion and cancellation are reserved for settlement.
func (r *UpdateTournamentRequest) Apply(t *Tournament) error {
	if r.Status != nil {
		next := *r.Status
		if !next.Valid() {
			return InvalidInput("unknown status")
		}
		if next == StatusCompleted || next == StatusCancelled {
			if next != t.Status {
				return InvalidState("use the results or cancel endpoints to finish a tournament")
			}
		}
		if !t.Status.CanTransition(next) {
			return InvalidState("cannot move tournament from " + string(t.Status) + " to " + string(next))
		}
		t.Status = next
	}
	if t.Status.Terminal() && r.changesSetup() {
		return InvalidState("tournament is " + string(t.Status))
	}
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if title == "" {
			return InvalidInput("title is required")
		}
		t.Title = title
	}
	if r.Image != nil {
		t.Image = *r.Image
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	if r.Rules != nil {
		t.Rules = *r.Rules
	}
	if r.StartDate != nil {
		t.StartDate = *r.StartDate
	}
	if r.MaxPlayers != nil {
		if *r.MaxPlayers < t.CurrentPlayers || *r.MaxPlayers <= 0 {
			return InvalidInput("max_players cannot drop below current players")
		}
		t.MaxPlayers = *r.MaxPlayers
	}
	if r.PrizePool != nil {
		if r.PrizePool.IsNegative() {
			return InvalidInput("prize_pool must not be negative")
		}
		t.PrizePool = *r.PrizePool
	}
	if r.PerKillReward != nil {
		if r.PerKillReward.Valid && r.PerKillReward.Decimal.IsNegative() {
			return InvalidInput("per_kill_reward must not be negative")
		}
		t.PerKillReward = *r.PerKillReward
	}
	if r.RoomID != nil {
		t.RoomID = r.RoomID
	}
	if r.RoomPassword != nil {
		t.RoomPassword = r.RoomPassword
	}
	if r.PrizeRules != nil {
		if err := ValidatePrizeRules(r.PrizeRules); err != nil {
			return err
		}
		t.PrizeRules = r.PrizeRules
	}
	return nil
}

func (r *UpdateTournamentRequest) changesSetup() bool {
	return r.MaxPlayers != nil || r.PrizePool != nil || r.PerKillReward != nil || r.PrizeRules != nil
}

// CanDelete reports whether the tournament can be removed without
// stranding paid entry fees.
func (t *Tournament) CanDelete() bool {
	return t.CurrentPlayers == 0 || t.Status.Terminal()
}

// Participant is a user registered in a tournament
type Participant struct {
	TournamentID string    `json:"tournament_id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	JoinedAt     time.Time `json:"joined_at"`
}

// JoinResult describes a successful join
type JoinResult struct {
	TournamentID   string          `json:"tournament_id"`
	EntryFee       decimal.Decimal `json:"entry_fee"`
	NewBalance     decimal.Decimal `json:"new_balance"`
	CurrentPlayers int             `json:"current_players"`
	TransactionID  string          `json:"transaction_id"`
}

// CancelResult summarises a cancellation
type CancelResult struct {
	TournamentID         string          `json:"tournament_id"`
	RefundedParticipants int             `json:"refunded_participants"`
	RefundAmount         decimal.Decimal `json:"refund_amount"`
}
