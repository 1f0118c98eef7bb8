// Package auth verifies credentials and drives the login, refresh, logout and registration flows.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AtoyanMikhail/taskmanager/internal/apperrors"
	"github.com/AtoyanMikhail/taskmanager/internal/cache"
	"github.com/AtoyanMikhail/taskmanager/internal/logger"
	"github.com/AtoyanMikhail/taskmanager/internal/password"
	"github.com/AtoyanMikhail/taskmanager/internal/refresh"
	"github.com/AtoyanMikhail/taskmanager/internal/repository"
	"github.com/AtoyanMikhail/taskmanager/internal/repository/models"
	"github.com/AtoyanMikhail/taskmanager/internal/token"
	"github.com/google/uuid"
)

const TokenTypeBearer = "Bearer"

type LoginInput struct {
	Username string
	Password string
	ClientIP string
}

type RegisterInput struct {
	Username string
	Password string
	Email    string
	FullName string
}

// TokenPair is returned by Login and Refresh. ExpiresAt is the access token expiry in epoch seconds.
type TokenPair struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	ExpiresAt    int64
}

func invalidCredentials() error {
	return apperrors.NewAuthError(apperrors.ReasonInvalidCredentials, nil)
}

type Service struct {
	accounts  repository.AccountRepository
	hasher    password.Hasher
	signer    *token.Signer
	refresh   *refresh.Store
	guard     cache.LoginGuard
	accessTTL time.Duration
	logger    logger.Logger
}

func NewService(
	accounts repository.AccountRepository,
	hasher password.Hasher,
	signer *token.Signer,
	store *refresh.Store,
	guard cache.LoginGuard,
	accessTTL time.Duration,
	l logger.Logger,
) *Service {
	if guard == nil {
		guard = cache.NopLoginGuard{}
	}
	return &Service{
		accounts:  accounts,
		hasher:    hasher,
		signer:    signer,
		refresh:   store,
		guard:     guard,
		accessTTL: accessTTL,
		logger:    logger.Component(l, "auth_service"),
	}
}

// Authenticate checks a username and password. An unknown username, a wrong password and
// an account that is not active all fail with the same error.
func (s *Service) Authenticate(ctx context.Context, username, plain string) (*models.Account, error) {
	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Burn(plain)
			s.logger.Info("Authentication failed: unknown username")
			return nil, invalidCredentials()
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if err := s.hasher.Verify(account.PasswordHash, plain); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			s.logger.Info("Authentication failed: wrong password",
				logger.String("account_id", account.ID.String()))
			return nil, invalidCredentials()
		}
		return nil, err
	}

	if !account.IsActive() {
		s.logger.Info("Authentication failed: account not active",
			logger.String("account_id", account.ID.String()),
			logger.String("status", string(account.Status)))
		return nil, invalidCredentials()
	}

	return account, nil
}

func (s *Service) Login(ctx context.Context, in LoginInput) (TokenPair, error) {
	if !s.guard.Allowed(ctx, in.Username, in.ClientIP) {
		return TokenPair{}, invalidCredentials()
	}

	account, err := s.Authenticate(ctx, in.Username, in.Password)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			s.guard.RecordFailure(ctx, in.Username, in.ClientIP)
		}
		return TokenPair{}, err
	}
	s.guard.Reset(ctx, in.Username, in.ClientIP)

	refreshToken, err := s.refresh.Issue(ctx, account)
	if err != nil {
		s.logger.Error("Failed to issue refresh token",
			logger.String("account_id", account.ID.String()),
			logger.Error(err))
		return TokenPair{}, err
	}

	pair, err := s.pair(account, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	s.logger.Info("Login succeeded", logger.String("account_id", account.ID.String()))
	return pair, nil
}

// Refresh rotates the refresh token and issues a new access token.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (TokenPair, error) {
	account, refreshToken, err := s.refresh.Rotate(ctx, rawRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return s.pair(account, refreshToken)
}

func (s *Service) Logout(ctx context.Context, rawRefresh string) error {
	return s.refresh.Revoke(ctx, rawRefresh)
}

func (s *Service) pair(account *models.Account, refreshToken token.Issued) (TokenPair, error) {
	access, err := s.signer.Issue(account, token.UseAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to issue access token: %w", err)
	}
	return TokenPair{
		AccessToken:  access.Token,
		TokenType:    TokenTypeBearer,
		RefreshToken: refreshToken.Token,
		ExpiresAt:    access.ExpiresAt,
	}, nil
}

// Register creates an active account with the user role.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	exists, err := s.accounts.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Info("Registration rejected: email taken")
		return nil, apperrors.Conflict("User already exists with this email")
	}

	exists, err = s.accounts.ExistsByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Info("Registration rejected: username taken", logger.String("username", in.Username))
		return nil, apperrors.Conflict("User already exists with this username")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         models.RoleUser,
		Status:       models.StatusActive,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("User already exists")
		}
		return nil, err
	}

	s.logger.Info("Account registered",
		logger.String("account_id", account.ID.String()),
		logger.String("username", account.Username))
	return account, nil
}

// Account loads the account behind a verified access token. A missing or inactive account
// is reported as an invalid token.
func (s *Service) Account(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewAuthError(apperrors.ReasonInvalidToken, err)
		}
		return nil, err
	}
	if !account.IsActive() {
		return nil, apperrors.NewAuthError(apperrors.ReasonInvalidToken, nil)
	}
	return account, nil
}
