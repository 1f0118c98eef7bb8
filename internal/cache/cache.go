// Package cache wraps Redis for the pieces of the auth backend that need shared, expiring
// state across replicas: login attempt counters and the cleanup lock.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key does not exist.
var ErrMiss = errors.New("cache: key not found")

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	// DeleteIfEquals removes key only while it still holds value.
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
	// IncrementWithTTL increments key and starts its TTL when the key is new.
	IncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Close() error
	Ping(ctx context.Context) error
}

// LoginGuard throttles repeated failed logins per username and client address.
type LoginGuard interface {
	Allowed(ctx context.Context, username, clientIP string) bool
	RecordFailure(ctx context.Context, username, clientIP string)
	Reset(ctx context.Context, username, clientIP string)
}

// Locker hands out short-lived exclusive locks. TryLock reports false, with no error,
// when another holder has the lock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}
