package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AtoyanMikhail/taskmanager/internal/repository/models"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no row matches, including conditional updates that touched nothing.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
)

type RefreshTokenRepository interface {
	// Create inserts the token and fills ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, token *models.RefreshToken) error
	// FindActiveByHash returns the token with the given hash if it is not revoked and expires after now.
	FindActiveByHash(ctx context.Context, hashedToken string, now time.Time) (*models.RefreshToken, error)
	// RevokeActiveByHash sets revoked_at = now only if the token is still active, in one
	// statement, and returns the owning account. ErrNotFound means nothing was revoked.
	RevokeActiveByHash(ctx context.Context, hashedToken string, now time.Time) (uuid.UUID, error)
	// FindCleanupCandidates returns up to limit ids of tokens that are revoked or expired before threshold.
	FindCleanupCandidates(ctx context.Context, threshold time.Time, limit int) ([]uuid.UUID, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
	// WithinTx runs fn against a repository bound to one transaction. It commits when fn
	// returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx RefreshTokenRepository) error) error
}

type AccountRepository interface {
	// Create inserts the account and fills ID, CreatedAt and UpdatedAt. A username or email
	// clash yields ErrDuplicate.
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}
