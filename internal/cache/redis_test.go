package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedisCache(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestUnreadCount(t *testing.T) {
	c, mr := setup(t)
	ctx := context.Background()

	_, hit, err := c.GetUnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, hit)

	stored, err := c.SetUnreadCount(ctx, "u1", 4, 0)
	require.NoError(t, err)
	assert.True(t, stored)
	n, hit, err := c.GetUnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 4, n)
	assert.Equal(t, unreadTTL, mr.TTL(keyForUnread("u1")))

	require.NoError(t, c.InvalidateUnread(ctx, "u1", "u2"))
	_, hit, err = c.GetUnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestSetUnreadCountRejectsStaleVersion(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	version, err := c.UnreadVersion(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)

	// a message lands while the count is being computed
	require.NoError(t, c.InvalidateUnread(ctx, "u1"))

	stored, err := c.SetUnreadCount(ctx, "u1", 0, version)
	require.NoError(t, err)
	assert.False(t, stored)
	_, hit, err := c.GetUnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, hit)

	version, err = c.UnreadVersion(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	stored, err = c.SetUnreadCount(ctx, "u1", 1, version)
	require.NoError(t, err)
	assert.True(t, stored)
	n, hit, err := c.GetUnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, n)
}

func TestReleaseOTP(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	ok, err := c.AllowOTP(ctx, "a@example.com", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.ReleaseOTP(ctx, "a@example.com"))
	ok, err = c.AllowOTP(ctx, "a@example.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllowOTPThrottles(t *testing.T) {
	c, mr := setup(t)
	ctx := context.Background()

	ok, err := c.AllowOTP(ctx, "a@example.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AllowOTP(ctx, "a@example.com", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(61 * time.Second)
	ok, err = c.AllowOTP(ctx, "a@example.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRevokeToken(t *testing.T) {
	c, mr := setup(t)
	ctx := context.Background()

	revoked, err := c.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, c.RevokeToken(ctx, "jti-1", time.Minute))
	revoked, err = c.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Minute)
	revoked, err = c.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}
