package memory

import (
	"context"
	"time"

	"relun-backend/internal/models"
)

// UserRepository is the in-memory user table
type UserRepository struct {
	s *Store
}

func (r *UserRepository) contactTaken(u models.User) error {
	for id, other := range r.s.t.users {
		if id == u.ID {
			continue
		}
		if u.Email != nil && other.Email != nil && *u.Email == *other.Email {
			return duplicate("users_email_key")
		}
		if u.Phone != nil && other.Phone != nil && *u.Phone == *other.Phone {
			return duplicate("users_phone_key")
		}
	}
	return nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.t.users[user.ID]; ok {
		return duplicate("users_pkey")
	}
	if err := r.contactTaken(*user); err != nil {
		return err
	}
	put(ctx, r.s.t.users, user.ID, *user)
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.t.users[id]
	if !ok {
		return nil, notFound("user")
	}
	return &u, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.t.users {
		if u.Email != nil && *u.Email == email {
			return &u, nil
		}
	}
	return nil, notFound("user")
}

// GetByPhone retrieves a user by phone
func (r *UserRepository) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.t.users {
		if u.Phone != nil && *u.Phone == phone {
			return &u, nil
		}
	}
	return nil, notFound("user")
}

// Update replaces the stored user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.t.users[user.ID]; !ok {
		return notFound("user")
	}
	if err := r.contactTaken(*user); err != nil {
		return err
	}
	put(ctx, r.s.t.users, user.ID, *user)
	return nil
}

// TouchLastActive records user activity
func (r *UserRepository) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.t.users[userID]
	if !ok {
		return nil
	}
	u.LastActiveAt = &at
	put(ctx, r.s.t.users, userID, u)
	return nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.t.users[userID]
	if !ok {
		return notFound("user")
	}
	u.PushToken = pushToken
	put(ctx, r.s.t.users, userID, u)
	return nil
}

// ProfileRepository is the in-memory profile table
type ProfileRepository struct {
	s *Store
}

// Create creates a new profile
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.t.users[profile.UserID]; !ok {
		return notFound("user")
	}
	if _, ok := r.s.t.profiles[profile.UserID]; ok {
		return duplicate("profiles_pkey")
	}
	put(ctx, r.s.t.profiles, profile.UserID, cloneProfile(*profile))
	return nil
}

// GetByUserID retrieves the profile owned by userID
func (r *ProfileRepository) GetByUserID(_ context.Context, userID string) (*models.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.t.profiles[userID]
	if !ok {
		return nil, notFound("profile")
	}
	p = cloneProfile(p)
	return &p, nil
}

// Update replaces the stored profile
func (r *ProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.t.profiles[profile.UserID]; !ok {
		return notFound("profile")
	}
	put(ctx, r.s.t.profiles, profile.UserID, cloneProfile(*profile))
	return nil
}

// RefreshTokenRepository is the in-memory refresh token table
type RefreshTokenRepository struct {
	s *Store
}

// Create stores a refresh token
func (r *RefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.t.refreshTokens[token.ID]; ok {
		return duplicate("refresh_tokens_pkey")
	}
	put(ctx, r.s.t.refreshTokens, token.ID, *token)
	return nil
}

// GetByID retrieves a refresh token by ID
func (r *RefreshTokenRepository) GetByID(_ context.Context, id string) (*models.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.t.refreshTokens[id]
	if !ok {
		return nil, notFound("refresh token")
	}
	return &t, nil
}

// Delete removes a refresh token
func (r *RefreshTokenRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.t.refreshTokens[id]; !ok {
		return notFound("refresh token")
	}
	del(ctx, r.s.t.refreshTokens, id)
	return nil
}

// DeleteByUser removes every refresh token of a user
func (r *RefreshTokenRepository) DeleteByUser(ctx context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, t := range r.s.t.refreshTokens {
		if t.UserID == userID {
			del(ctx, r.s.t.refreshTokens, id)
		}
	}
	return nil
}
