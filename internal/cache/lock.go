package cache

import (
	"context"
	"time"

	"github.com/AtoyanMikhail/taskmanager/internal/logger"
	"github.com/google/uuid"
)

const LockPrefix = "lock:"

type redisLocker struct {
	cache  Cache
	logger logger.Logger
}

// NewLocker returns a Locker backed by SET NX PX. Each acquisition stores a random owner
// token and release only deletes the key while it still holds that token, so a lock that
// expired and was taken by another holder is left alone.
func NewLocker(c Cache, l logger.Logger) Locker {
	return &redisLocker{cache: c, logger: logger.Component(l, "locker")}
}

func (r *redisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	key = LockPrefix + key
	owner := uuid.NewString()

	ok, err := r.cache.SetNX(ctx, key, owner, ttl)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		released, err := r.cache.DeleteIfEquals(ctx, key, owner)
		if err != nil {
			r.logger.Warn("Failed to release lock", logger.String("key", key), logger.Error(err))
			return
		}
		if !released {
			r.logger.Warn("Lock expired before release", logger.String("key", key))
		}
	}
	return release, true, nil
}
