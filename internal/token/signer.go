// Package token issues and verifies the HS256-signed JWTs used as access and refresh tokens.
package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AtoyanMikhail/taskmanager/internal/apperrors"
	"github.com/AtoyanMikhail/taskmanager/internal/repository/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinKeyLength is the minimum HS256 key size in bytes.
const MinKeyLength = 32

// Use tells access tokens apart from refresh tokens.
type Use string

const (
	UseAccess  Use = "access"
	UseRefresh Use = "refresh"
)

// ErrWrongUse is wrapped by VerifyAccess when a valid token was not issued for access.
var ErrWrongUse = errors.New("token not issued for this use")

// Claims is the claim set carried by every token.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Use    Use    `json:"use"`
	jwt.RegisteredClaims
}

// Issued is a freshly signed token and its expiry in epoch seconds.
type Issued struct {
	Token     string
	ExpiresAt int64
}

// FailureKind classifies why a token failed verification.
type FailureKind int

const (
	Malformed FailureKind = iota + 1
	Expired
	BadSignature
)

func (k FailureKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case Expired:
		return "expired"
	case BadSignature:
		return "bad_signature"
	default:
		return "unknown"
	}
}

// VerifyError is returned by Verify. Every kind matches apperrors.ErrUnauthorized, so callers
// outside this package see a single failure class; Kind is kept for logs.
type VerifyError struct {
	Kind FailureKind
	Err  error
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("token verification failed (%s): %v", e.Kind, e.Err)
}

func (e *VerifyError) Unwrap() error { return e.Err }

func (e *VerifyError) Is(target error) bool { return target == apperrors.ErrUnauthorized }

// Signer is immutable after construction and safe for concurrent use.
type Signer struct {
	key []byte
	now func() time.Time
}

type Option func(*Signer)

// WithClock overrides the time source used for iat, exp and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// NewSigner decodes the base64 secret and returns a Signer. A secret that does not decode
// or is shorter than MinKeyLength is rejected.
func NewSigner(secretBase64 string, opts ...Option) (*Signer, error) {
	key, err := decodeSecret(secretBase64)
	if err != nil {
		return nil, fmt.Errorf("invalid signing secret: %w", err)
	}
	if len(key) < MinKeyLength {
		return nil, fmt.Errorf("signing key is %d bytes, HS256 requires at least %d", len(key), MinKeyLength)
	}

	s := &Signer{key: key, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func decodeSecret(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("secret is empty")
	}
	key, err := base64.StdEncoding.DecodeString(secret)
	if err == nil {
		return key, nil
	}
	if key, urlErr := base64.URLEncoding.DecodeString(secret); urlErr == nil {
		return key, nil
	}
	return nil, err
}

// Issue signs a token of the given use for the account, valid for ttl.
func (s *Signer) Issue(account *models.Account, use Use, ttl time.Duration) (Issued, error) {
	now := s.now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		UserID: account.ID.String(),
		Email:  account.Email,
		Role:   string(account.Role),
		Use:    use,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   account.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return Issued{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return Issued{Token: signed, ExpiresAt: claims.ExpiresAt.Unix()}, nil
}

// Verify checks the signature, then expiry, and returns the claims.
func (s *Signer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		return nil, &VerifyError{Kind: classify(raw, err), Err: err}
	}
	return claims, nil
}

// VerifyAccess is Verify restricted to access tokens.
func (s *Signer) VerifyAccess(raw string) (*Claims, error) {
	claims, err := s.Verify(raw)
	if err != nil {
		return nil, err
	}
	if claims.Use != UseAccess {
		return nil, &VerifyError{Kind: Malformed, Err: fmt.Errorf("%w: got %q", ErrWrongUse, claims.Use)}
	}
	return claims, nil
}

// ExtractSubject verifies the token and returns its subject (the username).
func (s *Signer) ExtractSubject(raw string) (string, error) {
	claims, err := s.Verify(raw)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (s *Signer) keyFunc(*jwt.Token) (interface{}, error) {
	return s.key, nil
}

func classify(raw string, err error) FailureKind {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return BadSignature
	case errors.Is(err, jwt.ErrTokenMalformed) && nonCanonicalSignature(raw):
		return BadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return Expired
	default:
		return Malformed
	}
}

// nonCanonicalSignature reports whether header and claims decode strictly but the signature
// segment does not, e.g. when the unused trailing bits of its last character were altered.
func nonCanonicalSignature(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return false
	}
	strict := base64.RawURLEncoding.Strict()
	for _, part := range parts[:2] {
		if _, err := strict.DecodeString(part); err != nil {
			return false
		}
	}
	_, err := strict.DecodeString(parts[2])
	return err != nil
}
