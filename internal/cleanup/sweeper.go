// Package cleanup deletes revoked and long-expired refresh tokens in bounded batches.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/AtoyanMikhail/taskmanager/internal/logger"
	"github.com/AtoyanMikhail/taskmanager/internal/repository"
)

type Sweeper struct {
	tokens     repository.RefreshTokenRepository
	batchSize  int
	staleAfter time.Duration
	logger     logger.Logger
}

// NewSweeper returns a Sweeper deleting at most batchSize rows per statement. Tokens are
// eligible once revoked, or once expired for longer than staleAfter.
func NewSweeper(tokens repository.RefreshTokenRepository, batchSize int, staleAfter time.Duration, l logger.Logger) *Sweeper {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Sweeper{
		tokens:     tokens,
		batchSize:  batchSize,
		staleAfter: staleAfter,
		logger:     logger.Component(l, "cleanup"),
	}
}

// Sweep deletes eligible tokens page by page until none are left and returns how many
// rows were removed. It stops between pages when ctx is done; anything left is picked up
// by the next run.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int64, error) {
	threshold := now.Add(-s.staleAfter)
	started := time.Now()

	s.logger.Info("Starting cleanup of expired and revoked refresh tokens",
		logger.Any("threshold", threshold),
		logger.Int("batch_size", s.batchSize))

	var total int64
	for batch := 1; ; batch++ {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("Cleanup interrupted",
				logger.Int64("deleted", total),
				logger.Error(err))
			return total, err
		}

		ids, err := s.tokens.FindCleanupCandidates(ctx, threshold, s.batchSize)
		if err != nil {
			return total, fmt.Errorf("failed to select cleanup batch %d: %w", batch, err)
		}
		if len(ids) == 0 {
			break
		}

		deleted, err := s.tokens.DeleteByIDs(ctx, ids)
		if err != nil {
			return total, fmt.Errorf("failed to delete cleanup batch %d: %w", batch, err)
		}
		total += deleted

		s.logger.Debug("Cleanup batch deleted",
			logger.Int("batch", batch),
			logger.Int64("deleted", deleted))

		// Rows selected but gone by the time of the delete were removed elsewhere.
		if deleted == 0 {
			break
		}
	}

	s.logger.Info("Cleaned up expired and revoked refresh tokens",
		logger.Int64("deleted", total),
		logger.Duration("elapsed", time.Since(started)))
	return total, nil
}
