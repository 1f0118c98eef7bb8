package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AtoyanMikhail/taskmanager/internal/logger"
	"github.com/AtoyanMikhail/taskmanager/internal/repository/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const refreshTokenColumns = `id, account_id, hashed_token, expires_at, revoked_at, created_at, updated_at`

type refreshTokenRepo struct {
	// db is nil when the repo is bound to a transaction.
	db *sqlx.DB
	q  sqlx.ExtContext
	l  logger.Logger
}

func NewRefreshTokenRepository(db *sqlx.DB, l logger.Logger) RefreshTokenRepository {
	return &refreshTokenRepo{db: db, q: db, l: l}
}

func (r *refreshTokenRepo) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (account_id, hashed_token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	err := r.q.QueryRowxContext(ctx, query, token.AccountID, token.HashedToken, token.ExpiresAt).
		Scan(&token.ID, &token.CreatedAt, &token.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("refresh token hash already stored: %w", ErrDuplicate)
		}
		r.l.Error("Failed to insert refresh token", logger.Error(err), logger.String("account_id", token.AccountID.String()))
		return fmt.Errorf("failed to insert refresh token: %w", err)
	}

	r.l.Debug("Refresh token created",
		logger.String("id", token.ID.String()),
		logger.String("account_id", token.AccountID.String()))
	return nil
}

func (r *refreshTokenRepo) FindActiveByHash(ctx context.Context, hashedToken string, now time.Time) (*models.RefreshToken, error) {
	query := `
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE hashed_token = $1 AND revoked_at IS NULL AND expires_at > $2`

	token := &models.RefreshToken{}
	if err := sqlx.GetContext(ctx, r.q, token, query, hashedToken, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	return token, nil
}

func (r *refreshTokenRepo) RevokeActiveByHash(ctx context.Context, hashedToken string, now time.Time) (uuid.UUID, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2, updated_at = $2
		WHERE hashed_token = $1 AND revoked_at IS NULL AND expires_at > $2
		RETURNING account_id`

	var accountID uuid.UUID
	if err := r.q.QueryRowxContext(ctx, query, hashedToken, now).Scan(&accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		r.l.Error("Failed to revoke refresh token", logger.Error(err))
		return uuid.Nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	r.l.Debug("Refresh token revoked", logger.String("account_id", accountID.String()))
	return accountID, nil
}

func (r *refreshTokenRepo) FindCleanupCandidates(ctx context.Context, threshold time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM refresh_tokens
		WHERE revoked_at IS NOT NULL OR expires_at < $1
		ORDER BY expires_at
		LIMIT $2`

	ids := []uuid.UUID{}
	if err := sqlx.SelectContext(ctx, r.q, &ids, query, threshold, limit); err != nil {
		return nil, fmt.Errorf("failed to find refresh tokens to clean up: %w", err)
	}

	return ids, nil
}

func (r *refreshTokenRepo) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	query := `DELETE FROM refresh_tokens WHERE id = ANY($1::uuid[])`

	result, err := r.q.ExecContext(ctx, query, pq.Array(raw))
	if err != nil {
		r.l.Error("Failed to delete refresh tokens", logger.Error(err), logger.Int("count", len(ids)))
		return 0, fmt.Errorf("failed to delete refresh tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

func (r *refreshTokenRepo) WithinTx(ctx context.Context, fn func(tx RefreshTokenRepository) error) (err error) {
	if r.db == nil {
		// already inside a transaction
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(&refreshTokenRepo{q: tx, l: r.l}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.l.Error("Failed to roll back transaction", logger.Error(rbErr))
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
