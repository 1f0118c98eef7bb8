// Package memory holds map-backed repositories with the same semantics as the PostgreSQL ones,
// including the conditional revoke and all-or-nothing transactions. Tests of the service layer use it.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AtoyanMikhail/taskmanager/internal/repository"
	"github.com/AtoyanMikhail/taskmanager/internal/repository/models"
	"github.com/google/uuid"
)

var (
	_ repository.RefreshTokenRepository = (*RefreshTokens)(nil)
	_ repository.RefreshTokenRepository = (*tokenTx)(nil)
	_ repository.AccountRepository      = (*Accounts)(nil)
)

// RefreshTokens is an in-memory repository.RefreshTokenRepository.
type RefreshTokens struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]models.RefreshToken

	// FailCreate, when set, is returned by Create. Used to exercise rollback paths.
	FailCreate error
}

func NewRefreshTokens() *RefreshTokens {
	return &RefreshTokens{tokens: make(map[uuid.UUID]models.RefreshToken)}
}

// Seed stores tokens as they are, keeping any ID already set.
func (s *RefreshTokens) Seed(tokens ...models.RefreshToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tokens {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		s.tokens[t.ID] = t
	}
}

// All returns a snapshot of every stored token.
func (s *RefreshTokens) All() []models.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RefreshToken, 0, len(s.tokens))
	for _, t := range s.tokens {
		out = append(out, t)
	}
	return out
}

// ByHash returns the stored token with the given hash, if any.
func (s *RefreshTokens) ByHash(hash string) (models.RefreshToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.HashedToken == hash {
			return t, true
		}
	}
	return models.RefreshToken{}, false
}

func (s *RefreshTokens) Create(_ context.Context, token *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tokenTx{s: s}).create(token)
}

func (s *RefreshTokens) FindActiveByHash(_ context.Context, hashedToken string, now time.Time) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tokenTx{s: s}).findActive(hashedToken, now)
}

func (s *RefreshTokens) RevokeActiveByHash(_ context.Context, hashedToken string, now time.Time) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tokenTx{s: s}).revoke(hashedToken, now)
}

func (s *RefreshTokens) FindCleanupCandidates(_ context.Context, threshold time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tokenTx{s: s}).cleanupCandidates(threshold, limit), nil
}

func (s *RefreshTokens) DeleteByIDs(_ context.Context, ids []uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tokenTx{s: s}).delete(ids), nil
}

// WithinTx holds the store lock for the whole of fn, so transactions are serialized, and
// restores the previous state if fn fails.
func (s *RefreshTokens) WithinTx(_ context.Context, fn func(tx repository.RefreshTokenRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[uuid.UUID]models.RefreshToken, len(s.tokens))
	for k, v := range s.tokens {
		snapshot[k] = v
	}

	if err := fn(&tokenTx{s: s}); err != nil {
		s.tokens = snapshot
		return err
	}
	return nil
}

// tokenTx operates on the store without locking; the caller holds s.mu.
type tokenTx struct {
	s *RefreshTokens
}

func (t *tokenTx) Create(_ context.Context, token *models.RefreshToken) error {
	return t.create(token)
}

func (t *tokenTx) FindActiveByHash(_ context.Context, hashedToken string, now time.Time) (*models.RefreshToken, error) {
	return t.findActive(hashedToken, now)
}

func (t *tokenTx) RevokeActiveByHash(_ context.Context, hashedToken string, now time.Time) (uuid.UUID, error) {
	return t.revoke(hashedToken, now)
}

func (t *tokenTx) FindCleanupCandidates(_ context.Context, threshold time.Time, limit int) ([]uuid.UUID, error) {
	return t.cleanupCandidates(threshold, limit), nil
}

func (t *tokenTx) DeleteByIDs(_ context.Context, ids []uuid.UUID) (int64, error) {
	return t.delete(ids), nil
}

func (t *tokenTx) WithinTx(_ context.Context, fn func(tx repository.RefreshTokenRepository) error) error {
	return fn(t)
}

func (t *tokenTx) create(token *models.RefreshToken) error {
	if t.s.FailCreate != nil {
		return t.s.FailCreate
	}
	for _, existing := range t.s.tokens {
		if existing.HashedToken == token.HashedToken {
			return repository.ErrDuplicate
		}
	}
	now := time.Now()
	token.ID = uuid.New()
	token.CreatedAt = now
	token.UpdatedAt = now
	t.s.tokens[token.ID] = *token
	return nil
}

func (t *tokenTx) findActive(hash string, now time.Time) (*models.RefreshToken, error) {
	for _, existing := range t.s.tokens {
		if existing.HashedToken == hash && existing.IsActive(now) {
			found := existing
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *tokenTx) revoke(hash string, now time.Time) (uuid.UUID, error) {
	for id, existing := range t.s.tokens {
		if existing.HashedToken == hash && existing.IsActive(now) {
			existing.RevokedAt.Time = now
			existing.RevokedAt.Valid = true
			existing.UpdatedAt = now
			t.s.tokens[id] = existing
			return existing.AccountID, nil
		}
	}
	return uuid.Nil, repository.ErrNotFound
}

func (t *tokenTx) cleanupCandidates(threshold time.Time, limit int) []uuid.UUID {
	candidates := make([]models.RefreshToken, 0)
	for _, existing := range t.s.tokens {
		if existing.IsCleanupCandidate(threshold) {
			candidates = append(candidates, existing)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ExpiresAt.Before(candidates[j].ExpiresAt)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	ids := make([]uuid.UUID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	return ids
}

func (t *tokenTx) delete(ids []uuid.UUID) int64 {
	var deleted int64
	for _, id := range ids {
		if _, ok := t.s.tokens[id]; ok {
			delete(t.s.tokens, id)
			deleted++
		}
	}
	return deleted
}

// Accounts is an in-memory repository.AccountRepository.
type Accounts struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]models.Account
}

func NewAccounts() *Accounts {
	return &Accounts{accounts: make(map[uuid.UUID]models.Account)}
}

func (s *Accounts) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.Username == account.Username || strings.EqualFold(existing.Email, account.Email) {
			return repository.ErrDuplicate
		}
	}

	now := time.Now()
	account.ID = uuid.New()
	account.CreatedAt = now
	account.UpdatedAt = now
	s.accounts[account.ID] = *account
	return nil
}

func (s *Accounts) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &account, nil
}

func (s *Accounts) GetByUsername(_ context.Context, username string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, account := range s.accounts {
		if account.Username == username {
			found := account
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Accounts) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := s.GetByUsername(ctx, username)
	return err == nil, nil
}

func (s *Accounts) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, account := range s.accounts {
		if strings.EqualFold(account.Email, email) {
			return true, nil
		}
	}
	return false, nil
}
