package services

import (
	"context"
	"time"

	"relun-backend/internal/models"
	"relun-backend/internal/notify"
	"relun-backend/internal/repository"
)

// Transactor scopes a unit of work. Lock serializes holders of the same key
// until the surrounding transaction ends.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	Lock(ctx context.Context, key string) error
}

// UserStore persists users
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	TouchLastActive(ctx context.Context, userID string, at time.Time) error
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
}

// ProfileStore persists profiles
type ProfileStore interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
}

// PhotoStore persists the ordered photo gallery
type PhotoStore interface {
	Create(ctx context.Context, photo *models.Photo) error
	CountByUser(ctx context.Context, userID string) (int, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Photo, error)
	GetForUser(ctx context.Context, id, userID string) (*models.Photo, error)
	Delete(ctx context.Context, id string) error
	Resequence(ctx context.Context, userID string) error
}

// SwipeStore is the append-only swipe ledger
type SwipeStore interface {
	Create(ctx context.Context, swipe *models.Swipe) error
	HasPositive(ctx context.Context, actorID, targetID string) (bool, error)
	ListByActor(ctx context.Context, actorID string, decision models.Decision, limit, offset int) ([]*models.Swipe, int, error)
}

// MatchStore persists matches keyed by their canonical pair
type MatchStore interface {
	CreateIfAbsent(ctx context.Context, match *models.Match) (*models.Match, bool, error)
	GetByID(ctx context.Context, id string) (*models.Match, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Match, error)
	Delete(ctx context.Context, id string) error
}

// MessageStore persists chat messages
type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	ListByMatch(ctx context.Context, matchID string, limit, offset int) ([]*models.Message, int, error)
	LatestByMatch(ctx context.Context, matchID string) (*models.Message, error)
	MarkRead(ctx context.Context, matchID, receiverID string, at time.Time) (int, error)
	Delete(ctx context.Context, id string) error
	DeleteByMatch(ctx context.Context, matchID string) error
	CountUnread(ctx context.Context, receiverID string) (int, error)
}

// RefreshTokenStore persists issued refresh token ids
type RefreshTokenStore interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByID(ctx context.Context, id string) (*models.RefreshToken, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// CandidateStore answers discovery queries
type CandidateStore interface {
	FindCandidates(ctx context.Context, q repository.CandidateQuery) ([]*models.Candidate, error)
}

// ImageStore holds uploaded image bytes
type ImageStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// UnreadCache caches per-user unread message counts
type UnreadCache interface {
	GetUnreadCount(ctx context.Context, userID string) (int, bool, error)
	UnreadVersion(ctx context.Context, userID string) (int64, error)
	SetUnreadCount(ctx context.Context, userID string, n int, version int64) (bool, error)
	InvalidateUnread(ctx context.Context, userIDs ...string) error
}

// OTPThrottle limits how often codes are sent to one destination
type OTPThrottle interface {
	AllowOTP(ctx context.Context, identifier string, interval time.Duration) (bool, error)
	ReleaseOTP(ctx context.Context, identifier string) error
}

// TokenBlacklist tracks revoked access tokens
type TokenBlacklist interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// OTPSender dispatches one-time codes
type OTPSender interface {
	SendOTP(ctx context.Context, destination, code string) error
}

// Pusher delivers push notifications to a device
type Pusher interface {
	Push(ctx context.Context, deviceToken string, p notify.Push) error
}

// Recorder receives domain counters
type Recorder interface {
	SwipeRecorded(decision string)
	MatchCreated()
	MessageSent(channel string)
}
