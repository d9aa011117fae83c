package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	unreadTTL        = time.Hour
	unreadVersionTTL = 24 * time.Hour
)

// setIfCurrent stores the count in KEYS[1] only while the version in KEYS[2]
// still equals ARGV[2]
var setIfCurrent = redis.NewScript(`
local v = redis.call('GET', KEYS[2]) or '0'
if v ~= ARGV[2] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// RedisCache backs the unread counters, OTP resend throttle and access token
// revocation list
type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes a Redis client. Only addr is mandatory.
func NewRedisCache(addr, password string, db int) *RedisCache {
	opts := &redis.Options{
		Addr: addr,
	}
	if password != "" {
		opts.Password = password
	}
	if db != 0 {
		opts.DB = db
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

func keyForUnread(userID string) string {
	return fmt.Sprintf("chat:unread:%s", userID)
}

func keyForUnreadVersion(userID string) string {
	return fmt.Sprintf("chat:unread:%s:version", userID)
}

func keyForOTP(identifier string) string {
	return fmt.Sprintf("otp:throttle:%s", identifier)
}

func keyForRevoked(jti string) string {
	return fmt.Sprintf("auth:revoked:%s", jti)
}

// GetUnreadCount returns the cached unread count and whether it was present
func (c *RedisCache) GetUnreadCount(ctx context.Context, userID string) (int, bool, error) {
	val, err := c.Client.Get(ctx, keyForUnread(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt unread counter: %w", err)
	}
	return n, true, nil
}

// UnreadVersion returns the invalidation counter for userID. Read it before
// computing a count and pass it to SetUnreadCount.
func (c *RedisCache) UnreadVersion(ctx context.Context, userID string) (int64, error) {
	v, err := c.Client.Get(ctx, keyForUnreadVersion(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// SetUnreadCount caches n unless the count was invalidated after version was
// read. It reports whether the value was stored.
func (c *RedisCache) SetUnreadCount(ctx context.Context, userID string, n int, version int64) (bool, error) {
	stored, err := setIfCurrent.Run(ctx, c.Client,
		[]string{keyForUnread(userID), keyForUnreadVersion(userID)},
		n, strconv.FormatInt(version, 10), unreadTTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// InvalidateUnread drops cached counts and bumps their versions so fills that
// started earlier are discarded
func (c *RedisCache) InvalidateUnread(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := c.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			pipe.Del(ctx, keyForUnread(id))
			pipe.Incr(ctx, keyForUnreadVersion(id))
			pipe.Expire(ctx, keyForUnreadVersion(id), unreadVersionTTL)
		}
		return nil
	})
	return err
}

// AllowOTP reports whether a new code may be sent to identifier. A successful
// call blocks further codes for interval.
func (c *RedisCache) AllowOTP(ctx context.Context, identifier string, interval time.Duration) (bool, error) {
	if interval <= 0 {
		return true, nil
	}
	return c.Client.SetNX(ctx, keyForOTP(identifier), 1, interval).Result()
}

// ReleaseOTP frees the resend slot taken by AllowOTP
func (c *RedisCache) ReleaseOTP(ctx context.Context, identifier string) error {
	return c.Client.Del(ctx, keyForOTP(identifier)).Err()
}

// RevokeToken blacklists an access token id for ttl
func (c *RedisCache) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.Client.Set(ctx, keyForRevoked(jti), 1, ttl).Err()
}

// IsTokenRevoked reports whether an access token id was revoked
func (c *RedisCache) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := c.Client.Exists(ctx, keyForRevoked(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
