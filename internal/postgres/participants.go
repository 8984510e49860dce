package postgres

import (
	"context"
	"fmt"

	"github.com/arena-wallet/internal/domain"
)

// AddParticipant registers a user in a tournament
func (r *Repository) AddParticipant(ctx context.Context, tournamentID, userID string) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO tournament_participants (tournament_id, user_id) VALUES ($1, $2)`,
		tournamentID, userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyJoined
		}
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("adding participant: %w", err)
	}
	return nil
}

// ListParticipants returns a tournament's participants in join order
func (r *Repository) ListParticipants(ctx context.Context, tournamentID string) ([]domain.Participant, error) {
	rows, err := r.q.Query(ctx, `
		SELECT tp.tournament_id, tp.user_id, p.username, tp.joined_at
		FROM tournament_participants tp
		JOIN profiles p ON p.id = tp.user_id
		WHERE tp.tournament_id = $1
		ORDER BY tp.joined_at, tp.user_id`, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.TournamentID, &p.UserID, &p.Username, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// ParticipantSet returns the IDs of a tournament's participants as a set
func (r *Repository) ParticipantSet(ctx context.Context, tournamentID string) (map[string]bool, error) {
	participants, err := r.ListParticipants(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(participants))
	for _, p := range participants {
		set[p.UserID] = true
	}
	return set, nil
}

// JoinedTournamentIDs returns the tournaments a user has joined
func (r *Repository) JoinedTournamentIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.q.Query(ctx,
		`SELECT tournament_id FROM tournament_participants WHERE user_id = $1 ORDER BY joined_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing joined tournaments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning tournament id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
