package repository

import (
	"context"
	"fmt"

	"relun-backend/internal/models"
)

// SwipeRepository is the append-only swipe ledger
type SwipeRepository struct {
	db *DB
}

// NewSwipeRepository creates a new swipe repository
func NewSwipeRepository(db *DB) *SwipeRepository {
	return &SwipeRepository{db: db}
}

// Create appends a swipe. A second decision for the same pair returns ErrDuplicate.
func (r *SwipeRepository) Create(ctx context.Context, swipe *models.Swipe) error {
	query := `
		INSERT INTO swipes (id, actor_id, target_id, decision, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.conn(ctx).Exec(ctx, query,
		swipe.ID, swipe.ActorID, swipe.TargetID, string(swipe.Decision), swipe.CreatedAt,
	)
	if err != nil {
		return mapErr(fmt.Errorf("failed to create swipe: %w", err))
	}
	return nil
}

// HasPositive reports whether actor liked or super-liked target
func (r *SwipeRepository) HasPositive(ctx context.Context, actorID, targetID string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM swipes
			WHERE actor_id = $1 AND target_id = $2 AND decision IN ('like', 'super_like')
		)
	`
	var exists bool
	if err := r.db.conn(ctx).QueryRow(ctx, query, actorID, targetID).Scan(&exists); err != nil {
		return false, mapErr(fmt.Errorf("failed to check reciprocal swipe: %w", err))
	}
	return exists, nil
}

// ListByActor returns a page of the actor's swipes, newest first. An empty
// decision matches every decision.
func (r *SwipeRepository) ListByActor(ctx context.Context, actorID string, decision models.Decision, limit, offset int) ([]*models.Swipe, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM swipes WHERE actor_id = $1 AND ($2::text = '' OR decision = $2::text)`
	if err := r.db.conn(ctx).QueryRow(ctx, countQuery, actorID, string(decision)).Scan(&total); err != nil {
		return nil, 0, mapErr(fmt.Errorf("failed to count swipes: %w", err))
	}

	query := `
		SELECT id, actor_id, target_id, decision, created_at
		FROM swipes
		WHERE actor_id = $1 AND ($2::text = '' OR decision = $2::text)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.conn(ctx).Query(ctx, query, actorID, string(decision), limit, offset)
	if err != nil {
		return nil, 0, mapErr(fmt.Errorf("failed to list swipes: %w", err))
	}
	defer rows.Close()

	swipes := []*models.Swipe{}
	for rows.Next() {
		var s models.Swipe
		var d string
		if err := rows.Scan(&s.ID, &s.ActorID, &s.TargetID, &d, &s.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan swipe: %w", err)
		}
		s.Decision = models.Decision(d)
		swipes = append(swipes, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating swipes: %w", err)
	}
	return swipes, total, nil
}
