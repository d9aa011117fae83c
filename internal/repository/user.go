package repository

import (
	"context"
	"fmt"
	"time"

	"relun-backend/internal/models"
)

const userColumns = `id, email, phone, full_name, date_of_birth, gender, is_active,
	is_email_verified, is_phone_verified, otp_hash, otp_expires_at, push_token,
	last_active_at, created_at, updated_at`

// UserRepository handles database operations for users
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Phone, &u.FullName, &u.DateOfBirth, &u.Gender, &u.IsActive,
		&u.IsEmailVerified, &u.IsPhoneVerified, &u.OTPHash, &u.OTPExpiresAt, &u.PushToken,
		&u.LastActiveAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.conn(ctx).Exec(ctx, query,
		user.ID, user.Email, user.Phone, user.FullName, user.DateOfBirth, user.Gender, user.IsActive,
		user.IsEmailVerified, user.IsPhoneVerified, user.OTPHash, user.OTPExpiresAt, user.PushToken,
		user.LastActiveAt, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return mapErr(fmt.Errorf("failed to create user: %w", err))
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get user: %w", err))
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.conn(ctx).QueryRow(ctx, query, email))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get user by email: %w", err))
	}
	return user, nil
}

// GetByPhone retrieves a user by phone
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	user, err := scanUser(r.db.conn(ctx).QueryRow(ctx, query, phone))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get user by phone: %w", err))
	}
	return user, nil
}

// Update writes every mutable user column
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET
			email = $2, phone = $3, full_name = $4, date_of_birth = $5, gender = $6,
			is_active = $7, is_email_verified = $8, is_phone_verified = $9,
			otp_hash = $10, otp_expires_at = $11, push_token = $12, last_active_at = $13,
			updated_at = $14
		WHERE id = $1
	`
	result, err := r.db.conn(ctx).Exec(ctx, query,
		user.ID, user.Email, user.Phone, user.FullName, user.DateOfBirth, user.Gender,
		user.IsActive, user.IsEmailVerified, user.IsPhoneVerified,
		user.OTPHash, user.OTPExpiresAt, user.PushToken, user.LastActiveAt, user.UpdatedAt,
	)
	if err != nil {
		return mapErr(fmt.Errorf("failed to update user: %w", err))
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastActive records user activity
func (r *UserRepository) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE users SET last_active_at = $2 WHERE id = $1`
	if _, err := r.db.conn(ctx).Exec(ctx, query, userID, at); err != nil {
		return mapErr(fmt.Errorf("failed to update last active: %w", err))
	}
	return nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	query := `UPDATE users SET push_token = $1, updated_at = now() WHERE id = $2`
	result, err := r.db.conn(ctx).Exec(ctx, query, pushToken, userID)
	if err != nil {
		return mapErr(fmt.Errorf("failed to update push token: %w", err))
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
