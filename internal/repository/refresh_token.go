package repository

import (
	"context"
	"fmt"

	"relun-backend/internal/models"
)

// RefreshTokenRepository stores issued refresh token ids
type RefreshTokenRepository struct {
	db *DB
}

// NewRefreshTokenRepository creates a new refresh token repository
func NewRefreshTokenRepository(db *DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create stores a refresh token
func (r *RefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `INSERT INTO refresh_tokens (id, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.conn(ctx).Exec(ctx, query, token.ID, token.UserID, token.ExpiresAt, token.CreatedAt); err != nil {
		return mapErr(fmt.Errorf("failed to create refresh token: %w", err))
	}
	return nil
}

// GetByID retrieves a refresh token by ID
func (r *RefreshTokenRepository) GetByID(ctx context.Context, id string) (*models.RefreshToken, error) {
	query := `SELECT id, user_id, expires_at, created_at FROM refresh_tokens WHERE id = $1`
	var t models.RefreshToken
	if err := r.db.conn(ctx).QueryRow(ctx, query, id).Scan(&t.ID, &t.UserID, &t.ExpiresAt, &t.CreatedAt); err != nil {
		return nil, mapErr(fmt.Errorf("failed to get refresh token: %w", err))
	}
	return &t, nil
}

// Delete removes a refresh token. ErrNotFound means it was already used.
func (r *RefreshTokenRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.conn(ctx).Exec(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, id)
	if err != nil {
		return mapErr(fmt.Errorf("failed to delete refresh token: %w", err))
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByUser removes every refresh token of a user
func (r *RefreshTokenRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.db.conn(ctx).Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return mapErr(fmt.Errorf("failed to delete refresh tokens: %w", err))
	}
	return nil
}
