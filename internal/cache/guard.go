package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/AtoyanMikhail/taskmanager/internal/logger"
)

const LoginAttemptPrefix = "login_attempt:"

type loginGuard struct {
	cache       Cache
	maxAttempts int64
	window      time.Duration
	logger      logger.Logger
}

// NewLoginGuard counts failed logins per username and client address within window.
// A nil cache or maxAttempts of 0 returns a guard that never throttles.
func NewLoginGuard(c Cache, maxAttempts int, window time.Duration, l logger.Logger) LoginGuard {
	if c == nil || maxAttempts <= 0 {
		return NopLoginGuard{}
	}
	return &loginGuard{
		cache:       c,
		maxAttempts: int64(maxAttempts),
		window:      window,
		logger:      logger.Component(l, "login_guard"),
	}
}

func attemptKey(username, clientIP string) string {
	return fmt.Sprintf("%s%s:%s", LoginAttemptPrefix, username, clientIP)
}

// Allowed reports whether another attempt may be made. Cache failures allow the attempt.
func (g *loginGuard) Allowed(ctx context.Context, username, clientIP string) bool {
	val, err := g.cache.Get(ctx, attemptKey(username, clientIP))
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return true
		}
		g.logger.Warn("Login guard unavailable, allowing attempt", logger.Error(err))
		return true
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		g.logger.Warn("Failed to parse login attempts count",
			logger.String("value", val),
			logger.Error(err))
		return true
	}

	if count >= g.maxAttempts {
		g.logger.Info("Login throttled",
			logger.String("username", username),
			logger.String("ip", clientIP),
			logger.Int64("attempts", count))
		return false
	}
	return true
}

func (g *loginGuard) RecordFailure(ctx context.Context, username, clientIP string) {
	count, err := g.cache.IncrementWithTTL(ctx, attemptKey(username, clientIP), g.window)
	if err != nil {
		g.logger.Warn("Failed to record login attempt", logger.Error(err))
		return
	}

	g.logger.Debug("Login attempt recorded",
		logger.String("username", username),
		logger.String("ip", clientIP),
		logger.Int64("attempts", count))
}

func (g *loginGuard) Reset(ctx context.Context, username, clientIP string) {
	if err := g.cache.Delete(ctx, attemptKey(username, clientIP)); err != nil {
		g.logger.Warn("Failed to reset login attempts", logger.Error(err))
	}
}

// NopLoginGuard allows every attempt.
type NopLoginGuard struct{}

func (NopLoginGuard) Allowed(context.Context, string, string) bool { return true }
func (NopLoginGuard) RecordFailure(context.Context, string, string) {}
func (NopLoginGuard) Reset(context.Context, string, string)         {}
