package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AtoyanMikhail/taskmanager/internal/logger"
	"github.com/AtoyanMikhail/taskmanager/internal/repository/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const accountColumns = `id, username, email, password_hash, full_name, role, status, created_at, updated_at`

type accountRepo struct {
	db *sqlx.DB
	l  logger.Logger
}

func NewAccountRepository(db *sqlx.DB, l logger.Logger) AccountRepository {
	return &accountRepo{db: db, l: l}
}

func (r *accountRepo) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (username, email, password_hash, full_name, role, status)
		VALUES (:username, :email, :password_hash, :full_name, :role, :status)
		RETURNING id, created_at, updated_at`

	stmt, err := r.db.PrepareNamedContext(ctx, query)
	if err != nil {
		r.l.Error("Failed to prepare query", logger.Error(err))
		return fmt.Errorf("failed to prepare query: %w", err)
	}
	defer stmt.Close()

	err = stmt.QueryRowxContext(ctx, account).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account %s: %w", account.Username, ErrDuplicate)
		}
		r.l.Error("Failed to execute insert query", logger.Error(err))
		return fmt.Errorf("failed to insert account: %w", err)
	}

	r.l.Info("Account created", logger.String("id", account.ID.String()), logger.String("username", account.Username))
	return nil
}

func (r *accountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account := &models.Account{}
	if err := r.db.GetContext(ctx, account, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

func (r *accountRepo) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`

	account := &models.Account{}
	if err := r.db.GetContext(ctx, account, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

func (r *accountRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`, username)
}

func (r *accountRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`, email)
}

func (r *accountRepo) exists(ctx context.Context, query string, arg string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, arg); err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}
	return exists, nil
}
