// Package refresh persists refresh tokens by hash and implements their single-use lifecycle:
// issue, validate, revoke and rotate.
package refresh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/AtoyanMikhail/taskmanager/internal/apperrors"
	"github.com/AtoyanMikhail/taskmanager/internal/logger"
	"github.com/AtoyanMikhail/taskmanager/internal/repository"
	"github.com/AtoyanMikhail/taskmanager/internal/repository/models"
	"github.com/AtoyanMikhail/taskmanager/internal/token"
)

// HashToken returns the lower-case hex SHA-256 of the raw token. Only this value is stored.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func invalidOrExpired(err error) error {
	return apperrors.NewAuthError(apperrors.ReasonInvalidOrExpired, err)
}

type Store struct {
	tokens   repository.RefreshTokenRepository
	accounts repository.AccountRepository
	signer   *token.Signer
	ttl      time.Duration
	now      func() time.Time
	logger   logger.Logger
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(
	tokens repository.RefreshTokenRepository,
	accounts repository.AccountRepository,
	signer *token.Signer,
	ttl time.Duration,
	l logger.Logger,
	opts ...Option,
) *Store {
	s := &Store{
		tokens:   tokens,
		accounts: accounts,
		signer:   signer,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger.Component(l, "refresh_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue signs a new refresh token for the account and stores its hash.
func (s *Store) Issue(ctx context.Context, account *models.Account) (token.Issued, error) {
	return s.issue(ctx, s.tokens, account)
}

func (s *Store) issue(ctx context.Context, repo repository.RefreshTokenRepository, account *models.Account) (token.Issued, error) {
	issued, err := s.signer.Issue(account, token.UseRefresh, s.ttl)
	if err != nil {
		return token.Issued{}, err
	}

	record := &models.RefreshToken{
		AccountID:   account.ID,
		HashedToken: HashToken(issued.Token),
		ExpiresAt:   time.Unix(issued.ExpiresAt, 0).UTC(),
	}
	if err := repo.Create(ctx, record); err != nil {
		return token.Issued{}, fmt.Errorf("failed to store refresh token: %w", err)
	}

	s.logger.Debug("Refresh token issued",
		logger.String("account_id", account.ID.String()),
		logger.String("token_id", record.ID.String()))
	return issued, nil
}

// Validate returns the owner of a stored, unrevoked, unexpired token.
func (s *Store) Validate(ctx context.Context, raw string) (*models.Account, error) {
	record, err := s.tokens.FindActiveByHash(ctx, HashToken(raw), s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("Refresh token not found or no longer active")
			return nil, invalidOrExpired(err)
		}
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, record.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("Refresh token owner not found", logger.String("account_id", record.AccountID.String()))
			return nil, invalidOrExpired(err)
		}
		return nil, err
	}
	if !account.IsActive() {
		s.logger.Info("Refresh token owner is not active",
			logger.String("account_id", account.ID.String()),
			logger.String("status", string(account.Status)))
		return nil, invalidOrExpired(nil)
	}
	return account, nil
}

// Revoke marks the token revoked. Revoking a token that is unknown, expired or already
// revoked fails with the same error, so a token can be revoked at most once.
func (s *Store) Revoke(ctx context.Context, raw string) error {
	accountID, err := s.tokens.RevokeActiveByHash(ctx, HashToken(raw), s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("Refresh token not revoked, not found or no longer active")
			return invalidOrExpired(err)
		}
		return err
	}

	s.logger.Info("Refresh token revoked", logger.String("account_id", accountID.String()))
	return nil
}

// Rotate exchanges a valid token for a new one. Revoking the old token and storing the new
// one happen in one transaction: of several concurrent rotations of the same token exactly
// one succeeds, and a failure to store the new token leaves the old one usable.
func (s *Store) Rotate(ctx context.Context, raw string) (*models.Account, token.Issued, error) {
	account, err := s.Validate(ctx, raw)
	if err != nil {
		return nil, token.Issued{}, err
	}

	hash := HashToken(raw)
	var issued token.Issued
	err = s.tokens.WithinTx(ctx, func(tx repository.RefreshTokenRepository) error {
		if _, err := tx.RevokeActiveByHash(ctx, hash, s.now()); err != nil {
			return err
		}
		var err error
		issued, err = s.issue(ctx, tx, account)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("Refresh token already used or expired during rotation",
				logger.String("account_id", account.ID.String()))
			return nil, token.Issued{}, invalidOrExpired(err)
		}
		s.logger.Error("Refresh token rotation failed",
			logger.String("account_id", account.ID.String()),
			logger.Error(err))
		return nil, token.Issued{}, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	s.logger.Info("Refresh token rotated", logger.String("account_id", account.ID.String()))
	return account, issued, nil
}
