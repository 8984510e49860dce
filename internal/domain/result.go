package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResultInput is one participant's placement as reported by an admin
type ResultInput struct {
	UserID string `json:"user_id"`
	Rank   int    `json:"rank"`
	Kills  int    `json:"kills"`
}

// Result is a stored placement with the prize it earned
type Result struct {
	ID           string          `json:"id"`
	TournamentID string          `json:"tournament_id"`
	UserID       string          `json:"user_id"`
	Username     string          `json:"username,omitempty"`
	Rank         int             `json:"rank"`
	Kills        int             `json:"kills"`
	PrizeWon     decimal.Decimal `json:"prize_won"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SubmitResultsRequest is the admin payload for settling a tournament
type SubmitResultsRequest struct {
	Results []ResultInput `json:"results"`
}

// Validate checks field ranges and rejects duplicate users.
func (r *SubmitResultsRequest) Validate() error {
	if len(r.Results) == 0 {
		return InvalidInput("results are required")
	}
	seen := make(map[string]bool, len(r.Results))
	for _, in := range r.Results {
		if in.UserID == "" {
			return InvalidInput("user_id is required")
		}
		if in.Rank < 1 {
			return InvalidInput("rank must be at least 1")
		}
		if in.Kills < 0 {
			return InvalidInput("kills must not be negative")
		}
		if seen[in.UserID] {
			return InvalidInput("duplicate result for user " + in.UserID)
		}
		seen[in.UserID] = true
	}
	return nil
}

// ComputePrize returns the rank prize plus the per-kill reward for kills.
func ComputePrize(t *Tournament, rank, kills int) decimal.Decimal {
	prize := decimal.Zero
	if rule, ok := t.RuleFor(rank); ok {
		prize = prize.Add(rule.Amount)
	}
	if t.PerKillReward.Valid {
		prize = prize.Add(t.PerKillReward.Decimal.Mul(decimal.NewFromInt(int64(kills))))
	}
	return prize
}

// ComputeResults turns inputs into results with prizes, preserving input order.
func ComputeResults(t *Tournament, inputs []ResultInput) []Result {
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		results = append(results, Result{
			TournamentID: t.ID,
			UserID:       in.UserID,
			Rank:         in.Rank,
			Kills:        in.Kills,
			PrizeWon:     ComputePrize(t, in.Rank, in.Kills),
		})
	}
	return results
}

// PrizeDelta is the change in a user's prize between two settlements
type PrizeDelta struct {
	UserID string
	Rank   int
	Old    decimal.Decimal
	New    decimal.Decimal
}

// Amount returns New minus Old.
func (d PrizeDelta) Amount() decimal.Decimal {
	return d.New.Sub(d.Old)
}

// DiffPrizes compares previously paid prizes with newly computed results.
// Users whose prize is unchanged are omitted. Users dropped from the new
// results appear with New equal to zero.
func DiffPrizes(previous map[string]decimal.Decimal, next []Result) []PrizeDelta {
	var deltas []PrizeDelta
	inNext := make(map[string]bool, len(next))
	for _, r := range next {
		inNext[r.UserID] = true
		old := previous[r.UserID]
		if old.Equal(r.PrizeWon) {
			continue
		}
		deltas = append(deltas, PrizeDelta{UserID: r.UserID, Rank: r.Rank, Old: old, New: r.PrizeWon})
	}
	for userID, old := range previous {
		if inNext[userID] || old.IsZero() {
			continue
		}
		deltas = append(deltas, PrizeDelta{UserID: userID, Old: old, New: decimal.Zero})
	}
	return deltas
}

// SettlementResult summarises a results submission
type SettlementResult struct {
	TournamentID    string          `json:"tournament_id"`
	Policy          string          `json:"policy"`
	Results         []Result        `json:"results"`
	TotalCredited   decimal.Decimal `json:"total_credited"`
	TotalReversed   decimal.Decimal `json:"total_reversed"`
	WinnersCredited int             `json:"winners_credited"`
}

// DeclareWinnerRequest is the legacy single-winner payload
type DeclareWinnerRequest struct {
	WinnerID string `json:"winner_id"`
}
