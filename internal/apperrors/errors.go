// Package apperrors defines the error classes surfaced by the auth backend. Callers match
// them with errors.Is / errors.As; the HTTP layer maps each class to one response shape.
package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthorized is the single externally visible authentication failure.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation marks malformed requests.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks attempts to create a resource that already exists.
	ErrConflict = errors.New("resource already exists")
)

// Reason records why authentication failed. It is for logs only.
type Reason int

const (
	ReasonInvalidCredentials Reason = iota + 1
	ReasonInvalidOrExpired
	ReasonInvalidToken
)

func (r Reason) String() string {
	switch r {
	case ReasonInvalidCredentials:
		return "invalid_credentials"
	case ReasonInvalidOrExpired:
		return "invalid_or_expired"
	case ReasonInvalidToken:
		return "invalid_token"
	default:
		return "unknown"
	}
}

// AuthError is an authentication failure. It always matches ErrUnauthorized.
type AuthError struct {
	Reason Reason
	Err    error
}

func NewAuthError(reason Reason, err error) *AuthError {
	return &AuthError{Reason: reason, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed (%s)", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrUnauthorized }

// ValidationError carries per-field messages keyed by the request field name.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Conflict wraps ErrConflict with a message naming the duplicated attribute.
func Conflict(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrConflict)
}
