package repository

import (
	"context"
	"fmt"

	"relun-backend/internal/models"
)

// PhotoRepository handles database operations for photos
type PhotoRepository struct {
	db *DB
}

// NewPhotoRepository creates a new photo repository
func NewPhotoRepository(db *DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// Create creates a new photo
func (r *PhotoRepository) Create(ctx context.Context, photo *models.Photo) error {
	query := `
		INSERT INTO photos (id, user_id, url, object_key, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.conn(ctx).Exec(ctx, query,
		photo.ID, photo.UserID, photo.URL, photo.ObjectKey, photo.Position, photo.CreatedAt,
	)
	if err != nil {
		return mapErr(fmt.Errorf("failed to create photo: %w", err))
	}
	return nil
}

// CountByUser returns how many photos a user has
func (r *PhotoRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM photos WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, mapErr(fmt.Errorf("failed to count photos: %w", err))
	}
	return n, nil
}

// ListByUser returns a user's photos in gallery order
func (r *PhotoRepository) ListByUser(ctx context.Context, userID string) ([]*models.Photo, error) {
	query := `
		SELECT id, user_id, url, object_key, position, created_at
		FROM photos
		WHERE user_id = $1
		ORDER BY position, created_at
	`
	rows, err := r.db.conn(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to list photos: %w", err))
	}
	defer rows.Close()

	photos := []*models.Photo{}
	for rows.Next() {
		var photo models.Photo
		if err := rows.Scan(
			&photo.ID, &photo.UserID, &photo.URL, &photo.ObjectKey, &photo.Position, &photo.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, &photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photos: %w", err)
	}
	return photos, nil
}

// GetForUser retrieves a photo owned by userID
func (r *PhotoRepository) GetForUser(ctx context.Context, id, userID string) (*models.Photo, error) {
	query := `
		SELECT id, user_id, url, object_key, position, created_at
		FROM photos
		WHERE id = $1 AND user_id = $2
	`
	var photo models.Photo
	err := r.db.conn(ctx).QueryRow(ctx, query, id, userID).Scan(
		&photo.ID, &photo.UserID, &photo.URL, &photo.ObjectKey, &photo.Position, &photo.CreatedAt,
	)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get photo: %w", err))
	}
	return &photo, nil
}

// Delete deletes a photo by ID
func (r *PhotoRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.conn(ctx).Exec(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return mapErr(fmt.Errorf("failed to delete photo: %w", err))
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Resequence renumbers a user's photos to 0..n-1 keeping their relative
// order, in one statement. The position uniqueness check is deferred to commit.
func (r *PhotoRepository) Resequence(ctx context.Context, userID string) error {
	query := `
		UPDATE photos p
		SET position = o.rn - 1
		FROM (
			SELECT id, row_number() OVER (ORDER BY position, created_at) AS rn
			FROM photos
			WHERE user_id = $1
		) o
		WHERE p.id = o.id AND p.position <> o.rn - 1
	`
	if _, err := r.db.conn(ctx).Exec(ctx, query, userID); err != nil {
		return mapErr(fmt.Errorf("failed to resequence photos: %w", err))
	}
	return nil
}
