package repository

import (
	"context"
	"errors"
	"fmt"

	"relun-backend/internal/models"
)

// MatchRepository handles database operations for matches
type MatchRepository struct {
	db *DB
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(db *DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// CreateIfAbsent inserts the match unless its canonical pair already exists.
// It returns the stored match and whether this call created it.
func (r *MatchRepository) CreateIfAbsent(ctx context.Context, match *models.Match) (*models.Match, bool, error) {
	query := `
		INSERT INTO matches (id, user1_id, user2_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user1_id, user2_id) DO NOTHING
	`
	result, err := r.db.conn(ctx).Exec(ctx, query, match.ID, match.User1ID, match.User2ID, match.CreatedAt)
	if err != nil {
		return nil, false, mapErr(fmt.Errorf("failed to create match: %w", err))
	}
	if result.RowsAffected() == 1 {
		return match, true, nil
	}

	existing, err := r.GetByPair(ctx, match.User1ID, match.User2ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, fmt.Errorf("match for pair vanished after conflict: %w", err)
		}
		return nil, false, err
	}
	return existing, false, nil
}

// GetByID retrieves a match by ID
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	query := `SELECT id, user1_id, user2_id, created_at FROM matches WHERE id = $1`
	var m models.Match
	if err := r.db.conn(ctx).QueryRow(ctx, query, id).Scan(&m.ID, &m.User1ID, &m.User2ID, &m.CreatedAt); err != nil {
		return nil, mapErr(fmt.Errorf("failed to get match: %w", err))
	}
	return &m, nil
}

// GetByPair retrieves the match for a canonical pair
func (r *MatchRepository) GetByPair(ctx context.Context, user1ID, user2ID string) (*models.Match, error) {
	query := `SELECT id, user1_id, user2_id, created_at FROM matches WHERE user1_id = $1 AND user2_id = $2`
	var m models.Match
	if err := r.db.conn(ctx).QueryRow(ctx, query, user1ID, user2ID).Scan(&m.ID, &m.User1ID, &m.User2ID, &m.CreatedAt); err != nil {
		return nil, mapErr(fmt.Errorf("failed to get match by pair: %w", err))
	}
	return &m, nil
}

// ListByUser returns every match of userID, newest first
func (r *MatchRepository) ListByUser(ctx context.Context, userID string) ([]*models.Match, error) {
	query := `
		SELECT id, user1_id, user2_id, created_at
		FROM matches
		WHERE user1_id = $1 OR user2_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.conn(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to list matches: %w", err))
	}
	defer rows.Close()

	matches := []*models.Match{}
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(&m.ID, &m.User1ID, &m.User2ID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}
	return matches, nil
}

// Delete deletes a match by ID
func (r *MatchRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.conn(ctx).Exec(ctx, `DELETE FROM matches WHERE id = $1`, id)
	if err != nil {
		return mapErr(fmt.Errorf("failed to delete match: %w", err))
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
