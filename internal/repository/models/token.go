package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a persisted refresh token. Only the hash of the raw token is stored.
type RefreshToken struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	AccountID   uuid.UUID    `db:"account_id" json:"account_id"`
	HashedToken string       `db:"hashed_token" json:"-"`
	ExpiresAt   time.Time    `db:"expires_at" json:"expires_at"`
	RevokedAt   sql.NullTime `db:"revoked_at" json:"revoked_at"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the token is neither revoked nor expired at now.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.RevokedAt.Valid && t.ExpiresAt.After(now)
}

// IsCleanupCandidate reports whether the sweeper may delete the token: it is revoked, or it
// expired before threshold.
func (t *RefreshToken) IsCleanupCandidate(threshold time.Time) bool {
	return t.RevokedAt.Valid || t.ExpiresAt.Before(threshold)
}
