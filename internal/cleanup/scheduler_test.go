package cleanup

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AtoyanMikhail/taskmanager/internal/cache"
	"github.com/AtoyanMikhail/taskmanager/internal/config"
	"github.com/AtoyanMikhail/taskmanager/internal/logger"
	"github.com/AtoyanMikhail/taskmanager/internal/repository/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScheduler_Spec(t *testing.T) {
	sweeper := NewSweeper(memory.NewRefreshTokens(), 10, staleAfter, logger.NewNop())

	for _, spec := range []string{"0 3 * * *", "*/5 * * * *", "@hourly", "@every 30s"} {
		_, err := NewScheduler(sweeper, spec, logger.NewNop())
		assert.NoError(t, err, spec)
	}

	for _, spec := range []string{"", "not a cron", "61 * * * *", "0 0 3 * * *"} {
		_, err := NewScheduler(sweeper, spec, logger.NewNop())
		assert.ErrorContains(t, err, "invalid cleanup schedule", spec)
	}
}

func TestScheduler_RunOnce(t *testing.T) {
	now := time.Now()
	store := memory.NewRefreshTokens()
	eligible := seed(store, now, 3, 4, 2, 0)

	s, err := NewScheduler(NewSweeper(store, 2, staleAfter, logger.NewNop()), "@hourly", logger.NewNop(),
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	deleted, ran, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, int64(eligible), deleted)

	deleted, ran, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Zero(t, deleted)
}

// blockingRepo holds the first cleanup select until released.
type blockingRepo struct {
	*memory.RefreshTokens
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingRepo) FindCleanupCandidates(ctx context.Context, threshold time.Time, limit int) ([]uuid.UUID, error) {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return b.RefreshTokens.FindCleanupCandidates(ctx, threshold, limit)
}

func newBlockingRepo() *blockingRepo {
	return &blockingRepo{
		RefreshTokens: memory.NewRefreshTokens(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func TestScheduler_RunOnceNeverOverlaps(t *testing.T) {
	repo := newBlockingRepo()
	s, err := NewScheduler(NewSweeper(repo, 10, staleAfter, logger.NewNop()), "@hourly", logger.NewNop())
	require.NoError(t, err)

	firstDone := make(chan bool)
	go func() {
		_, ran, _ := s.RunOnce(context.Background())
		firstDone <- ran
	}()
	<-repo.entered

	_, ran, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)

	close(repo.release)
	assert.True(t, <-firstDone)

	_, ran, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
}

func setupLocker(t *testing.T) (cache.Locker, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCache(config.RedisConfig{Addr: mr.Addr()}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return cache.NewLocker(c, logger.NewNop()), mr
}

func TestScheduler_DistributedLock(t *testing.T) {
	locker, mr := setupLocker(t)
	now := time.Now()

	store := memory.NewRefreshTokens()
	seed(store, now, 0, 3, 0, 0)

	newScheduler := func() *Scheduler {
		s, err := NewScheduler(NewSweeper(store, 10, staleAfter, logger.NewNop()), "@hourly", logger.NewNop(),
			WithLocker(locker, time.Minute), WithClock(func() time.Time { return now }))
		require.NoError(t, err)
		return s
	}
	replicaA, replicaB := newScheduler(), newScheduler()

	// another replica is sweeping
	release, ok, err := locker.TryLock(context.Background(), lockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ran, err := replicaA.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Len(t, store.All(), 3)

	release()

	deleted, ran, err := replicaB.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, int64(3), deleted)
	assert.False(t, mr.Exists("lock:"+lockKey))
}

func TestScheduler_LockErrorIsReported(t *testing.T) {
	locker, mr := setupLocker(t)
	mr.Close()

	s, err := NewScheduler(NewSweeper(memory.NewRefreshTokens(), 10, staleAfter, logger.NewNop()), "@hourly",
		logger.NewNop(), WithLocker(locker, time.Minute))
	require.NoError(t, err)

	_, ran, err := s.RunOnce(context.Background())
	assert.ErrorContains(t, err, "failed to acquire cleanup lock")
	assert.False(t, ran)
}

func TestScheduler_StartStop(t *testing.T) {
	now := time.Now()
	store := memory.NewRefreshTokens()
	seed(store, now, 1, 2, 0, 0)

	s, err := NewScheduler(NewSweeper(store, 10, staleAfter, logger.NewNop()), "@every 1s", logger.NewNop(),
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return len(store.All()) == 1 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestCronLogger_Fields(t *testing.T) {
	fields := kvFields([]interface{}{"now", 1, "entry", 2, "dangling"})
	require.Len(t, fields, 2)
	assert.Equal(t, "now", fields[0].Key)
	assert.Equal(t, 2, fields[1].Value)

	fields = kvFields([]interface{}{42, "v"})
	assert.Equal(t, "42", fields[0].Key)

	cl := cronLogger{l: logger.NewNop()}
	cl.Info("wake", "now", time.Now())
	cl.Error(fmt.Errorf("boom"), "panic", "stack", "...")
}
