package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AtoyanMikhail/taskmanager/internal/cache"
	"github.com/AtoyanMikhail/taskmanager/internal/logger"
	"github.com/robfig/cron/v3"
)

const lockKey = "refresh_token_cleanup"

// Scheduler runs the sweeper on a cron schedule. A run never overlaps another one in the
// same process, and with a Locker configured, in any process sharing the lock.
type Scheduler struct {
	sweeper *Sweeper
	cron    *cron.Cron
	locker  cache.Locker
	lockTTL time.Duration
	now     func() time.Time
	logger  logger.Logger

	running sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

type SchedulerOption func(*Scheduler)

// WithLocker makes every run take a distributed lock held for at most ttl.
func WithLocker(locker cache.Locker, ttl time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler validates spec (standard 5-field cron or a descriptor such as @hourly) and
// registers the sweep job. Nothing runs until Start.
func NewScheduler(sweeper *Sweeper, spec string, l logger.Logger, opts ...SchedulerOption) (*Scheduler, error) {
	l = logger.Component(l, "cleanup_scheduler")
	cl := cronLogger{l: l}

	s := &Scheduler{
		sweeper: sweeper,
		now:     time.Now,
		logger:  l,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	if _, _, err := s.RunOnce(s.ctx); err != nil {
		s.logger.Error("Scheduled cleanup failed", logger.Error(err))
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Cleanup scheduler started")
}

// Stop stops scheduling, cancels a sweep in progress and waits for it until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		s.logger.Info("Cleanup scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce sweeps immediately. ran is false when another run holds the local or
// distributed lock; that is not an error.
func (s *Scheduler) RunOnce(ctx context.Context) (deleted int64, ran bool, err error) {
	if !s.running.TryLock() {
		s.logger.Info("Cleanup already running, skipping")
		return 0, false, nil
	}
	defer s.running.Unlock()

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, lockKey, s.lockTTL)
		if err != nil {
			return 0, false, fmt.Errorf("failed to acquire cleanup lock: %w", err)
		}
		if !ok {
			s.logger.Info("Cleanup lock held by another instance, skipping")
			return 0, false, nil
		}
		defer release()
	}

	deleted, err = s.sweeper.Sweep(ctx, s.now())
	return deleted, true, err
}

// cronLogger routes robfig/cron messages into the service logger.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(keysAndValues []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields = append(fields, logger.Any(key, keysAndValues[i+1]))
	}
	return fields
}
