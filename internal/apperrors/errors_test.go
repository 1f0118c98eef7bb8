package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthError_MatchesUnauthorized(t *testing.T) {
	cause := errors.New("row not found")
	err := fmt.Errorf("refresh: %w", NewAuthError(ReasonInvalidOrExpired, cause))

	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrConflict)

	var authErr *AuthError
	assert.True(t, errors.As(err, &authErr))
	assert.Equal(t, ReasonInvalidOrExpired, authErr.Reason)
	assert.Contains(t, err.Error(), "invalid_or_expired")
}

func TestValidationError(t *testing.T) {
	err := NewValidationError(map[string]string{
		"username": "is required",
		"email":    "must be a valid email",
	})

	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "validation failed: email: must be a valid email; username: is required", err.Error())
}

func TestConflict(t *testing.T) {
	err := Conflict("user already exists with this email")

	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "user already exists with this email: resource already exists", err.Error())
}

func TestReason_String(t *testing.T) {
	assert.Equal(t, "invalid_credentials", ReasonInvalidCredentials.String())
	assert.Equal(t, "invalid_token", ReasonInvalidToken.String())
	assert.Equal(t, "unknown", Reason(0).String())
}
