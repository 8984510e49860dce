package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/arena-wallet/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const transactionColumns = `
	t.id, t.user_id, COALESCE(p.username, ''), t.type, t.amount, t.status,
	t.upi_ref, t.user_upi_id, t.tournament_id, t.created_at, t.updated_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Username,
		&tx.Type,
		&tx.Amount,
		&tx.Status,
		&tx.UPIRef,
		&tx.UserUPIID,
		&tx.TournamentID,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// InsertTransaction records a wallet transaction. ID defaults to a new UUID.
func (r *Repository) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		tx.ID = domain.NewTransactionID()
	}
	if tx.Status == "" {
		tx.Status = domain.TxPending
	}

	query := `
		INSERT INTO transactions (id, user_id, type, amount, status, upi_ref, user_upi_id, tournament_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := r.q.QueryRow(ctx, query,
		tx.ID,
		tx.UserID,
		string(tx.Type),
		tx.Amount,
		string(tx.Status),
		tx.UPIRef,
		tx.UserUPIID,
		tx.TournamentID,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("inserting transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction by ID
func (r *Repository) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.getTransaction(ctx, id, false)
}

// GetTransactionForUpdate retrieves a transaction and locks its row until the
// surrounding transaction ends.
func (r *Repository) GetTransactionForUpdate(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.getTransaction(ctx, id, true)
}

func (r *Repository) getTransaction(ctx context.Context, id string, lock bool) (*domain.Transaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions t
		LEFT JOIN profiles p ON p.id = t.user_id
		WHERE t.id = $1`
	if lock {
		query += ` FOR UPDATE OF t`
	}

	tx, err := scanTransaction(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("getting transaction: %w", err)
	}
	return tx, nil
}

// SetTransactionStatus moves a pending transaction to status. It fails with
// ErrAlreadyProcessed if the transaction is no longer pending.
func (r *Repository) SetTransactionStatus(ctx context.Context, id string, status domain.TransactionStatus) error {
	result, err := r.q.Exec(ctx, `
		UPDATE transactions SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, id, string(status))
	if err != nil {
		return fmt.Errorf("setting transaction status: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.GetTransaction(ctx, id); err != nil {
			return err
		}
		return domain.ErrAlreadyProcessed
	}
	return nil
}

// DeletePendingTransaction removes a transaction that never left pending
func (r *Repository) DeletePendingTransaction(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}
	return nil
}

// ListTransactions returns transactions newest first. An empty userID lists
// every user's transactions.
func (r *Repository) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions t
		LEFT JOIN profiles p ON p.id = t.user_id
		WHERE ($1::text = '' OR t.user_id::text = $1::text)
		ORDER BY t.created_at DESC, t.id
		LIMIT $2`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txns = append(txns, *tx)
	}
	return txns, rows.Err()
}

// ApprovedPrizes sums the approved prize payouts of a tournament per user
func (r *Repository) ApprovedPrizes(ctx context.Context, tournamentID string) (map[string]decimal.Decimal, error) {
	rows, err := r.q.Query(ctx, `
		SELECT user_id, SUM(amount)
		FROM transactions
		WHERE tournament_id = $1 AND type = 'prize' AND status = 'approved'
		GROUP BY user_id`, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("summing prizes: %w", err)
	}
	defer rows.Close()

	paid := make(map[string]decimal.Decimal)
	for rows.Next() {
		var userID string
		var amount decimal.Decimal
		if err := rows.Scan(&userID, &amount); err != nil {
			return nil, fmt.Errorf("scanning prize sum: %w", err)
		}
		paid[userID] = amount
	}
	return paid, rows.Err()
}

// ReversePrizes marks a user's approved prize payouts for a tournament as
// rejected and returns how many rows changed.
func (r *Repository) ReversePrizes(ctx context.Context, tournamentID, userID string) (int64, error) {
	result, err := r.q.Exec(ctx, `
		UPDATE transactions SET status = 'rejected', updated_at = NOW()
		WHERE tournament_id = $1 AND user_id = $2 AND type = 'prize' AND status = 'approved'`,
		tournamentID, userID)
	if err != nil {
		return 0, fmt.Errorf("reversing prizes: %w", err)
	}
	return result.RowsAffected(), nil
}

// WinningsTotals sums every user's approved prize payouts
func (r *Repository) WinningsTotals(ctx context.Context) (map[string]decimal.Decimal, error) {
	rows, err := r.q.Query(ctx, `
		SELECT user_id, SUM(amount)
		FROM transactions
		WHERE type = 'prize' AND status = 'approved'
		GROUP BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("summing winnings: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var userID string
		var amount decimal.Decimal
		if err := rows.Scan(&userID, &amount); err != nil {
			return nil, fmt.Errorf("scanning winnings: %w", err)
		}
		totals[userID] = amount
	}
	return totals, rows.Err()
}
