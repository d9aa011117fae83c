package cache

import (
	"context"
	"time"
)

// Nop stands in for Redis when none is configured: nothing is cached,
// nothing is throttled and no token is ever revoked
type Nop struct{}

func (Nop) Ping(context.Context) error { return nil }

func (Nop) GetUnreadCount(context.Context, string) (int, bool, error) { return 0, false, nil }

func (Nop) UnreadVersion(context.Context, string) (int64, error) { return 0, nil }

func (Nop) SetUnreadCount(context.Context, string, int, int64) (bool, error) { return false, nil }

func (Nop) InvalidateUnread(context.Context, ...string) error { return nil }

func (Nop) AllowOTP(context.Context, string, time.Duration) (bool, error) { return true, nil }

func (Nop) ReleaseOTP(context.Context, string) error { return nil }

func (Nop) RevokeToken(context.Context, string, time.Duration) error { return nil }

func (Nop) IsTokenRevoked(context.Context, string) (bool, error) { return false, nil }
