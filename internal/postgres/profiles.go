package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/arena-wallet/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const profileColumns = `id, username, email, balance, role, upi_id, avatar, created_at`

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(&p.ID, &p.Username, &p.Email, &p.Balance, &p.Role, &p.UPIID, &p.Avatar, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile creates or refreshes a profile from identity provider data.
// Balance and role are left untouched on update.
func (r *Repository) UpsertProfile(ctx context.Context, id string, req domain.UpsertProfileRequest) (*domain.Profile, error) {
	query := `
		INSERT INTO profiles (id, username, email, upi_id, avatar)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			upi_id = CASE WHEN EXCLUDED.upi_id = '' THEN profiles.upi_id ELSE EXCLUDED.upi_id END,
			avatar = CASE WHEN EXCLUDED.avatar = '' THEN profiles.avatar ELSE EXCLUDED.avatar END
		RETURNING ` + profileColumns

	p, err := scanProfile(r.q.QueryRow(ctx, query, id, req.Username, req.Email, req.UPIID, req.Avatar))
	if err != nil {
		return nil, fmt.Errorf("upserting profile: %w", err)
	}
	return p, nil
}

// GetProfile retrieves a profile by ID
func (r *Repository) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	p, err := scanProfile(r.q.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return p, nil
}

// ListProfiles returns every profile, newest first
func (r *Repository) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	rows, err := r.q.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// Usernames maps user IDs to usernames. Unknown IDs are omitted.
func (r *Repository) Usernames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	rows, err := r.q.Query(ctx, `SELECT id, username FROM profiles WHERE id = ANY($1::text[]::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("getting usernames: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning username: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

// AdminIDs returns the IDs of every admin profile
func (r *Repository) AdminIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT id FROM profiles WHERE role = 'admin'`)
	if err != nil {
		return nil, fmt.Errorf("listing admins: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning admin id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Recipients returns every non-admin profile with an email address
func (r *Repository) Recipients(ctx context.Context) ([]domain.Recipient, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, username, email FROM profiles
		WHERE role = 'user' AND email <> ''
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing recipients: %w", err)
	}
	defer rows.Close()

	var recipients []domain.Recipient
	for rows.Next() {
		var rc domain.Recipient
		if err := rows.Scan(&rc.ID, &rc.Username, &rc.Email); err != nil {
			return nil, fmt.Errorf("scanning recipient: %w", err)
		}
		recipients = append(recipients, rc)
	}
	return recipients, rows.Err()
}

// DebitBalance subtracts amount only if the balance covers it and returns the
// new balance. The check and the write are a single statement.
func (r *Repository) DebitBalance(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.q.QueryRow(ctx, `
		UPDATE profiles SET balance = balance - $2
		WHERE id = $1 AND balance >= $2
		RETURNING balance`, userID, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("debiting balance: %w", err)
	}

	if _, err := r.GetProfile(ctx, userID); err != nil {
		return decimal.Zero, err
	}
	return decimal.Zero, domain.ErrInsufficientBalance
}

// CreditBalance adds amount and returns the new balance
func (r *Repository) CreditBalance(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.q.QueryRow(ctx, `
		UPDATE profiles SET balance = balance + $2
		WHERE id = $1
		RETURNING balance`, userID, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("crediting balance: %w", err)
	}
	return balance, nil
}

// AdjustBalance credits a positive delta or debits a negative one.
func (r *Repository) AdjustBalance(ctx context.Context, userID string, delta decimal.Decimal) (decimal.Decimal, error) {
	if delta.IsNegative() {
		return r.DebitBalance(ctx, userID, delta.Neg())
	}
	return r.CreditBalance(ctx, userID, delta)
}
