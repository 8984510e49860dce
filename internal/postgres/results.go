package postgres

import (
	"context"
	"fmt"

	"github.com/arena-wallet/internal/domain"
	"github.com/jackc/pgx/v5"
)

// ReplaceResults deletes a tournament's stored results and inserts results
// in their place. IDs and timestamps are filled in on the given slice.
func (r *Repository) ReplaceResults(ctx context.Context, tournamentID string, results []domain.Result) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM tournament_results WHERE tournament_id = $1`, tournamentID); err != nil {
		return fmt.Errorf("clearing results: %w", err)
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO tournament_results (tournament_id, user_id, rank, kills, prize_won)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	for i := range results {
		res := &results[i]
		batch.Queue(query, tournamentID, res.UserID, res.Rank, res.Kills, res.PrizeWon).QueryRow(func(row pgx.Row) error {
			return row.Scan(&res.ID, &res.CreatedAt)
		})
	}

	if err := r.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("inserting results: %w", err)
	}
	return nil
}

// sendBatch runs a batch on whatever the repository is bound to.
func (r *Repository) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	type batchSender interface {
		SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	}
	sender, ok := r.q.(batchSender)
	if !ok {
		return fmt.Errorf("batch not supported by %T", r.q)
	}
	return sender.SendBatch(ctx, batch).Close()
}

// ListResults returns a tournament's results ordered by rank
func (r *Repository) ListResults(ctx context.Context, tournamentID string) ([]domain.Result, error) {
	rows, err := r.q.Query(ctx, `
		SELECT tr.id, tr.tournament_id, tr.user_id, COALESCE(p.username, ''), tr.rank, tr.kills, tr.prize_won, tr.created_at
		FROM tournament_results tr
		LEFT JOIN profiles p ON p.id = tr.user_id
		WHERE tr.tournament_id = $1
		ORDER BY tr.rank, p.username`, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	defer rows.Close()

	var results []domain.Result
	for rows.Next() {
		var res domain.Result
		err := rows.Scan(&res.ID, &res.TournamentID, &res.UserID, &res.Username,
			&res.Rank, &res.Kills, &res.PrizeWon, &res.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
