package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"relun-backend/internal/cache"
	"relun-backend/internal/metrics"
	"relun-backend/internal/models"
	"relun-backend/internal/notify"
	"relun-backend/internal/repository/memory"
	"relun-backend/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

type capturedOTP struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *capturedOTP) SendOTP(_ context.Context, destination, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[destination] = code
	return nil
}

func (c *capturedOTP) last(destination string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[destination]
}

type sentPush struct {
	token string
	push  notify.Push
}

type fakePusher struct {
	mu     sync.Mutex
	pushes []sentPush
}

func (f *fakePusher) Push(_ context.Context, token string, p notify.Push) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, sentPush{token: token, push: p})
	return nil
}

func (f *fakePusher) sentTo(token string) []notify.Push {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notify.Push
	for _, p := range f.pushes {
		if p.token == token {
			out = append(out, p.push)
		}
	}
	return out
}

type testEnv struct {
	store      *memory.Store
	redis      *miniredis.Miniredis
	cache      *cache.RedisCache
	hub        *WSHub
	metrics    *metrics.Metrics
	otp        *capturedOTP
	pusher     *fakePusher
	images     *storage.MemoryImageStore
	tokens     *TokenService
	auth       *AuthService
	profiles   *ProfileService
	matches    *MatchService
	swipes     *SwipeService
	candidates *CandidateService
	chat       *ChatService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := cache.NewRedisCache(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = rc.Close() })

	env := &testEnv{
		store:   memory.New(),
		redis:   mr,
		cache:   rc,
		hub:     NewWSHub(),
		metrics: metrics.New(),
		otp:     &capturedOTP{codes: map[string]string{}},
		pusher:  &fakePusher{},
		images:  storage.NewMemoryImageStore(""),
		tokens:  NewTokenService("test-secret", "relun", time.Hour, 24*time.Hour),
	}
	s := env.store

	env.auth = NewAuthService(AuthDeps{
		Tx:             s,
		Users:          s.Users(),
		Profiles:       s.Profiles(),
		RefreshTokens:  s.RefreshTokens(),
		Tokens:         env.tokens,
		Throttle:       rc,
		Blacklist:      rc,
		EmailSender:    env.otp,
		SMSSender:      env.otp,
		OTPTTL:         10 * time.Minute,
		ResendInterval: time.Minute,
	})
	env.profiles = NewProfileService(s, s.Users(), s.Profiles(), s.Photos(), env.images)
	env.matches = NewMatchService(MatchDeps{
		Tx:       s,
		Users:    s.Users(),
		Profiles: s.Profiles(),
		Photos:   s.Photos(),
		Swipes:   s.Swipes(),
		Matches:  s.Matches(),
		Messages: s.Messages(),
		Unread:   rc,
		Hub:      env.hub,
		Pusher:   env.pusher,
		Metrics:  env.metrics,
	})
	env.swipes = NewSwipeService(s, s.Users(), s.Swipes(), env.matches, env.metrics)
	env.candidates = NewCandidateService(s.Profiles(), s.Candidates(), 50, 10, 50)
	env.chat = NewChatService(ChatDeps{
		Matches:  env.matches,
		Messages: s.Messages(),
		Unread:   rc,
		Hub:      env.hub,
		Metrics:  env.metrics,
	})
	return env
}

func strPtr(s string) *string { return &s }

// seedUser creates an active, visible user with a filled-in profile
func (e *testEnv) seedUser(t *testing.T, id string, loc *models.GeoPoint) *models.User {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	dob := time.Date(1995, 5, 17, 0, 0, 0, 0, time.UTC)
	user := &models.User{
		ID:          id,
		Email:       strPtr(id + "@example.com"),
		FullName:    "User " + id,
		DateOfBirth: &dob,
		Gender:      models.GenderFemale,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, e.store.Users().Create(ctx, user))
	require.NoError(t, e.store.Profiles().Create(ctx, &models.Profile{
		UserID:       id,
		Interests:    []string{},
		Segment:      models.SegmentRelationship,
		Location:     loc,
		IsVisible:    true,
		ShowAge:      true,
		ShowDistance: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
	return user
}

// matchUsers records mutual likes and returns the resulting match
func (e *testEnv) matchUsers(t *testing.T, a, b string) *models.Match {
	t.Helper()
	ctx := context.Background()
	_, err := e.swipes.RecordSwipe(ctx, a, b, models.DecisionLike)
	require.NoError(t, err)
	res, err := e.swipes.RecordSwipe(ctx, b, a, models.DecisionLike)
	require.NoError(t, err)
	require.True(t, res.IsMatch)
	return res.Match
}

// connect registers a socket session for userID
func (e *testEnv) connect(t *testing.T, userID string) *WSClient {
	t.Helper()
	c := NewWSClient(userID, 256)
	e.hub.Register(c)
	t.Cleanup(func() { e.hub.Unregister(c) })
	return c
}

func nextEvent(t *testing.T, c *WSClient) WSMessage {
	t.Helper()
	select {
	case frame := <-c.Outbound():
		var msg WSMessage
		require.NoError(t, json.Unmarshal(frame, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatalf("no event for %s", c.UserID)
	}
	return WSMessage{}
}

func assertNoEvent(t *testing.T, c *WSClient) {
	t.Helper()
	select {
	case frame := <-c.Outbound():
		t.Fatalf("unexpected event for %s: %s", c.UserID, frame)
	default:
	}
}
