package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/arena-wallet/internal/domain"
	"github.com/jackc/pgx/v5"
)

const tournamentColumns = `
	id, title, game, entry_fee, prize_pool, per_kill_reward, start_date,
	max_players, current_players, status, image, description, rules,
	room_id, room_password, winner_id, created_at, updated_at`

func scanTournament(row pgx.Row) (*domain.Tournament, error) {
	var t domain.Tournament
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Game,
		&t.EntryFee,
		&t.PrizePool,
		&t.PerKillReward,
		&t.StartDate,
		&t.MaxPlayers,
		&t.CurrentPlayers,
		&t.Status,
		&t.Image,
		&t.Description,
		&t.Rules,
		&t.RoomID,
		&t.RoomPassword,
		&t.WinnerID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTournament inserts a tournament and its prize rules
func (r *Repository) CreateTournament(ctx context.Context, t *domain.Tournament) error {
	query := `
		INSERT INTO tournaments (title, game, entry_fee, prize_pool, per_kill_reward, start_date,
			max_players, status, image, description, rules)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, current_players, created_at, updated_at
	`
	err := r.q.QueryRow(ctx, query,
		t.Title,
		t.Game,
		t.EntryFee,
		t.PrizePool,
		t.PerKillReward,
		t.StartDate,
		t.MaxPlayers,
		string(t.Status),
		t.Image,
		t.Description,
		t.Rules,
	).Scan(&t.ID, &t.CurrentPlayers, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating tournament: %w", err)
	}

	return r.replacePrizeRules(ctx, t.ID, t.PrizeRules)
}

func (r *Repository) replacePrizeRules(ctx context.Context, tournamentID string, rules []domain.PrizeRule) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM prize_distributions WHERE tournament_id = $1`, tournamentID); err != nil {
		return fmt.Errorf("clearing prize rules: %w", err)
	}
	for _, rule := range rules {
		_, err := r.q.Exec(ctx,
			`INSERT INTO prize_distributions (tournament_id, rank, amount) VALUES ($1, $2, $3)`,
			tournamentID, rule.Rank, rule.Amount,
		)
		if err != nil {
			return fmt.Errorf("inserting prize rule: %w", err)
		}
	}
	return nil
}

// GetTournament retrieves a tournament with its prize rules
func (r *Repository) GetTournament(ctx context.Context, id string) (*domain.Tournament, error) {
	return r.getTournament(ctx, id, false)
}

// GetTournamentForUpdate retrieves a tournament and locks its row until the
// surrounding transaction ends.
func (r *Repository) GetTournamentForUpdate(ctx context.Context, id string) (*domain.Tournament, error) {
	return r.getTournament(ctx, id, true)
}

func (r *Repository) getTournament(ctx context.Context, id string, lock bool) (*domain.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	t, err := scanTournament(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTournamentNotFound
		}
		return nil, fmt.Errorf("getting tournament: %w", err)
	}

	rules, err := r.prizeRules(ctx, []string{t.ID})
	if err != nil {
		return nil, err
	}
	t.PrizeRules = rules[t.ID]
	return t, nil
}

// ListTournaments returns tournaments ordered by start date. An empty status
// returns all of them.
func (r *Repository) ListTournaments(ctx context.Context, status domain.TournamentStatus) ([]domain.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY start_date ASC, created_at DESC`

	rows, err := r.q.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("listing tournaments: %w", err)
	}
	defer rows.Close()

	var tournaments []domain.Tournament
	var ids []string
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tournament: %w", err)
		}
		tournaments = append(tournaments, *t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing tournaments: %w", err)
	}

	rules, err := r.prizeRules(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range tournaments {
		tournaments[i].PrizeRules = rules[tournaments[i].ID]
	}
	return tournaments, nil
}

func (r *Repository) prizeRules(ctx context.Context, tournamentIDs []string) (map[string][]domain.PrizeRule, error) {
	rules := make(map[string][]domain.PrizeRule, len(tournamentIDs))
	if len(tournamentIDs) == 0 {
		return rules, nil
	}

	rows, err := r.q.Query(ctx, `
		SELECT tournament_id, rank, amount
		FROM prize_distributions
		WHERE tournament_id = ANY($1::text[]::uuid[])
		ORDER BY tournament_id, rank`, tournamentIDs)
	if err != nil {
		return nil, fmt.Errorf("getting prize rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tournamentID string
		var rule domain.PrizeRule
		if err := rows.Scan(&tournamentID, &rule.Rank, &rule.Amount); err != nil {
			return nil, fmt.Errorf("scanning prize rule: %w", err)
		}
		rules[tournamentID] = append(rules[tournamentID], rule)
	}
	return rules, rows.Err()
}

// UpdateTournament persists the mutable fields and replaces the prize rules
func (r *Repository) UpdateTournament(ctx context.Context, t *domain.Tournament) error {
	query := `
		UPDATE tournaments SET
			title = $2, image = $3, description = $4, rules = $5, start_date = $6,
			max_players = $7, prize_pool = $8, per_kill_reward = $9, status = $10,
			room_id = $11, room_password = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.q.QueryRow(ctx, query,
		t.ID,
		t.Title,
		t.Image,
		t.Description,
		t.Rules,
		t.StartDate,
		t.MaxPlayers,
		t.PrizePool,
		t.PerKillReward,
		string(t.Status),
		t.RoomID,
		t.RoomPassword,
	).Scan(&t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTournamentNotFound
		}
		if isCheckViolation(err) {
			return domain.InvalidInput("max_players cannot drop below current players")
		}
		return fmt.Errorf("updating tournament: %w", err)
	}

	return r.replacePrizeRules(ctx, t.ID, t.PrizeRules)
}

// DeleteTournament removes a tournament with its rules, participants and results
func (r *Repository) DeleteTournament(ctx context.Context, id string) error {
	result, err := r.q.Exec(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting tournament: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrTournamentNotFound
	}
	return nil
}

// ReserveSeat increments current_players only while the tournament is
// upcoming and below capacity. The check and increment are one statement,
// so concurrent joins cannot oversell the last seat.
func (r *Repository) ReserveSeat(ctx context.Context, id string) (*domain.Tournament, error) {
	query := `
		UPDATE tournaments
		SET current_players = current_players + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'upcoming' AND current_players < max_players
		RETURNING` + tournamentColumns

	t, err := scanTournament(r.q.QueryRow(ctx, query, id))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reserving seat: %w", err)
	}

	// Nothing updated; find out why.
	current, err := r.GetTournament(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.StatusUpcoming {
		return nil, domain.InvalidState("tournament is " + string(current.Status))
	}
	return nil, domain.ErrTournamentFull
}

// SetTournamentStatus moves a tournament to status and optionally records a winner
func (r *Repository) SetTournamentStatus(ctx context.Context, id string, status domain.TournamentStatus, winnerID *string) error {
	result, err := r.q.Exec(ctx, `
		UPDATE tournaments
		SET status = $2, winner_id = COALESCE($3, winner_id), updated_at = NOW()
		WHERE id = $1`, id, string(status), winnerID)
	if err != nil {
		return fmt.Errorf("setting tournament status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrTournamentNotFound
	}
	return nil
}
