package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"relun-backend/internal/models"
	"relun-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const otpDigits = 6

// Contact identifies a user by email or phone. Email wins when both are set.
type Contact struct {
	Email string
	Phone string
}

func (c Contact) normalized() (Contact, error) {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = strings.TrimSpace(c.Phone)
	if c.Email == "" && c.Phone == "" {
		return c, validationError("email or phone is required")
	}
	return c, nil
}

func (c Contact) identifier() string {
	if c.Email != "" {
		return "email:" + c.Email
	}
	return "phone:" + c.Phone
}

// TokenPair is an access and refresh token issued together
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Session is the result of a successful code verification
type Session struct {
	TokenPair
	User                   *models.User    `json:"user"`
	Profile                *models.Profile `json:"profile"`
	NeedsProfileCompletion bool            `json:"needsProfileCompletion"`
	NeedsEmail             bool            `json:"needsEmail"`
	NeedsPhone             bool            `json:"needsPhone"`
}

// AuthDeps wires AuthService
type AuthDeps struct {
	Tx             Transactor
	Users          UserStore
	Profiles       ProfileStore
	RefreshTokens  RefreshTokenStore
	Tokens         *TokenService
	Throttle       OTPThrottle
	Blacklist      TokenBlacklist
	EmailSender    OTPSender
	SMSSender      OTPSender
	OTPTTL         time.Duration
	ResendInterval time.Duration
}

// AuthService handles one-time code login and token lifecycle
type AuthService struct {
	AuthDeps
	now         func() time.Time
	generateOTP func() (string, error)
}

// NewAuthService creates a new auth service
func NewAuthService(deps AuthDeps) *AuthService {
	if deps.OTPTTL <= 0 {
		deps.OTPTTL = 10 * time.Minute
	}
	return &AuthService{
		AuthDeps:    deps,
		now:         time.Now,
		generateOTP: generateOTP,
	}
}

// generateOTP returns a random 6 digit code
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

func (s *AuthService) findByContact(ctx context.Context, c Contact) (*models.User, error) {
	if c.Email != "" {
		return s.Users.GetByEmail(ctx, c.Email)
	}
	return s.Users.GetByPhone(ctx, c.Phone)
}

// createUser makes a user and its empty profile in one transaction
func (s *AuthService) createUser(ctx context.Context, c Contact) (*models.User, error) {
	now := s.now()
	user := &models.User{
		ID:        uuid.New().String(),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if c.Email != "" {
		user.Email = &c.Email
	} else {
		user.Phone = &c.Phone
	}
	profile := &models.Profile{
		UserID:       user.ID,
		Interests:    []string{},
		Segment:      models.SegmentRelationship,
		IsVisible:    true,
		ShowAge:      true,
		ShowDistance: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	applyCompleteness(user, profile)

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Users.Create(ctx, user); err != nil {
			return err
		}
		return s.Profiles.Create(ctx, profile)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Msg("User created")
	return user, nil
}

// RequestOTP issues a fresh code for the contact, creating the account on
// first use. It reports whether the account still lacks a name.
func (s *AuthService) RequestOTP(ctx context.Context, contact Contact) (bool, error) {
	c, err := contact.normalized()
	if err != nil {
		return false, err
	}

	allowed, err := s.Throttle.AllowOTP(ctx, c.identifier(), s.ResendInterval)
	if err != nil {
		return false, unavailableError(err, "failed to check code throttle")
	}
	if !allowed {
		return false, newError(ErrRateLimited, "a code was sent recently, try again later")
	}

	needsName, err := s.issueOTP(ctx, c)
	if err != nil {
		// nothing was delivered, so the slot goes back
		if relErr := s.Throttle.ReleaseOTP(ctx, c.identifier()); relErr != nil {
			log.Warn().Err(relErr).Msg("Failed to release code throttle")
		}
		return false, err
	}
	return needsName, nil
}

func (s *AuthService) issueOTP(ctx context.Context, c Contact) (bool, error) {
	user, err := s.findByContact(ctx, c)
	if errors.Is(err, repository.ErrNotFound) {
		user, err = s.createUser(ctx, c)
		if errors.Is(err, repository.ErrDuplicate) {
			// a concurrent request created it first
			user, err = s.findByContact(ctx, c)
		}
	}
	if err != nil {
		return false, storeError(err, "user")
	}
	if !user.IsActive {
		return false, ErrUserDisabled
	}

	code, err := s.generateOTP()
	if err != nil {
		return false, unavailableError(err, "failed to generate code")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return false, unavailableError(err, "failed to hash code")
	}

	now := s.now()
	expires := now.Add(s.OTPTTL)
	hashStr := string(hash)
	user.OTPHash = &hashStr
	user.OTPExpiresAt = &expires
	user.UpdatedAt = now
	if err := s.Users.Update(ctx, user); err != nil {
		return false, storeError(err, "user")
	}

	sender, dest := s.EmailSender, c.Email
	if c.Email == "" {
		sender, dest = s.SMSSender, c.Phone
	}
	if err := sender.SendOTP(ctx, dest, code); err != nil {
		return false, unavailableError(err, "failed to deliver code")
	}

	return user.FullName == "", nil
}

// VerifyOTP checks the code, consumes it and opens a session
func (s *AuthService) VerifyOTP(ctx context.Context, contact Contact, code string) (*Session, error) {
	c, err := contact.normalized()
	if err != nil {
		return nil, err
	}

	user, err := s.findByContact(ctx, c)
	if err != nil {
		return nil, storeError(err, "user")
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}
	if user.OTPHash == nil || user.OTPExpiresAt == nil {
		return nil, ErrNoOTPPending
	}

	now := s.now()
	if now.After(*user.OTPExpiresAt) {
		return nil, ErrOTPExpired
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.OTPHash), []byte(code)) != nil {
		return nil, ErrOTPInvalid
	}

	user.OTPHash = nil
	user.OTPExpiresAt = nil
	if c.Email != "" {
		user.IsEmailVerified = true
	} else {
		user.IsPhoneVerified = true
	}
	user.LastActiveAt = &now
	user.UpdatedAt = now
	if err := s.Users.Update(ctx, user); err != nil {
		return nil, storeError(err, "user")
	}

	profile, err := s.Profiles.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, storeError(err, "profile")
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Msg("User signed in")

	return &Session{
		TokenPair:              *pair,
		User:                   user,
		Profile:                profile,
		NeedsProfileCompletion: needsProfileCompletion(user, profile),
		NeedsEmail:             user.Email == nil,
		NeedsPhone:             user.Phone == nil,
	}, nil
}

// issuePair signs both tokens and stores the refresh token id
func (s *AuthService) issuePair(ctx context.Context, userID string) (*TokenPair, error) {
	access, _, err := s.Tokens.IssueAccess(userID)
	if err != nil {
		return nil, unavailableError(err, "failed to issue token")
	}
	refresh, claims, err := s.Tokens.IssueRefresh(userID)
	if err != nil {
		return nil, unavailableError(err, "failed to issue token")
	}

	record := &models.RefreshToken{
		ID:        claims.ID,
		UserID:    userID,
		ExpiresAt: claims.ExpiresAt.Time,
		CreatedAt: s.now(),
	}
	if err := s.RefreshTokens.Create(ctx, record); err != nil {
		return nil, storeError(err, "refresh token")
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh rotates a refresh token: the presented one is deleted and a new
// pair is issued in the same transaction
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.Tokens.Parse(refreshToken, RefreshToken)
	if err != nil {
		return nil, err
	}

	var pair *TokenPair
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		stored, err := s.RefreshTokens.GetByID(ctx, claims.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTokenRevoked
		}
		if err != nil {
			return storeError(err, "refresh token")
		}
		if stored.UserID != claims.UserID || s.now().After(stored.ExpiresAt) {
			return ErrInvalidToken
		}
		if err := s.RefreshTokens.Delete(ctx, claims.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTokenRevoked
			}
			return storeError(err, "refresh token")
		}

		user, err := s.Users.GetByID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidToken
			}
			return storeError(err, "user")
		}
		if !user.IsActive {
			return ErrUserDisabled
		}

		pair, err = s.issuePair(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Authenticate validates an access token and loads its active user
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*Claims, error) {
	claims, err := s.Tokens.Parse(accessToken, AccessToken)
	if err != nil {
		return nil, err
	}

	revoked, err := s.Blacklist.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return nil, unavailableError(err, "failed to check token")
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	user, err := s.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, storeError(err, "user")
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}
	return claims, nil
}

// Logout revokes the access token and deletes the given refresh token, or
// every refresh token of the user when none is given
func (s *AuthService) Logout(ctx context.Context, access *Claims, refreshToken string) error {
	if refreshToken != "" {
		claims, err := s.Tokens.Parse(refreshToken, RefreshToken)
		if err == nil && claims.UserID == access.UserID {
			if err := s.RefreshTokens.Delete(ctx, claims.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return storeError(err, "refresh token")
			}
		}
	} else if err := s.RefreshTokens.DeleteByUser(ctx, access.UserID); err != nil {
		return storeError(err, "refresh token")
	}

	if err := s.Blacklist.RevokeToken(ctx, access.ID, s.Tokens.Remaining(access)); err != nil {
		return unavailableError(err, "failed to revoke token")
	}

	log.Info().Str("user_id", access.UserID).Msg("User logged out")
	return nil
}

// Me returns the caller's account and profile
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, *models.Profile, error) {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, storeError(err, "user")
	}
	profile, err := s.Profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, nil, storeError(err, "profile")
	}
	return user, profile, nil
}

// UpdatePushToken stores the device token, or clears it when empty
func (s *AuthService) UpdatePushToken(ctx context.Context, userID, token string) error {
	var ptr *string
	if token = strings.TrimSpace(token); token != "" {
		ptr = &token
	}
	return storeError(s.Users.UpdatePushToken(ctx, userID, ptr), "user")
}

// TouchLastActive records presence for userID
func (s *AuthService) TouchLastActive(ctx context.Context, userID string) error {
	return storeError(s.Users.TouchLastActive(ctx, userID, s.now()), "user")
}
