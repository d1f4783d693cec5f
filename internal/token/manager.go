// Package token issues and verifies the signed, time-boxed identity tokens
// that back every session.
package token

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/deepgram/sessiond/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrCreateFailed = errors.New("token: create failed")
	ErrVerifyFailed = errors.New("token: verify failed")
)

const signingKeyInfo = "sessiond token signing v1"

// Clock supplies the current time used for iat, exp and expiry checks.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Config holds the settings a Manager is built from.
type Config struct {
	Secret []byte        `validate:"required,min=32"`
	TTL    time.Duration `validate:"gt=0"`
	Issuer string        `validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Manager signs and verifies HS256 tokens. It holds no mutable state and is safe
// for concurrent use.
type Manager struct {
	key    []byte
	ttl    time.Duration
	issuer string
	clock  Clock
	newID  func() (uuid.UUID, error)
	parser *jwt.Parser
}

type Option func(*Manager)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithIDSource replaces the jti generator.
func WithIDSource(fn func() (uuid.UUID, error)) Option {
	return func(m *Manager) { m.newID = fn }
}

func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid token config: %w", err)
	}

	key, err := DeriveSigningKey(cfg.Secret)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		key:    key,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		clock:  SystemClock{},
		newID:  uuid.NewRandom,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.clock.Now),
	)

	return m, nil
}

// DeriveSigningKey stretches the configured secret into a 32-byte HMAC key.
func DeriveSigningKey(secret []byte) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(signingKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return key, nil
}

// TTL reports the validity window of issued tokens.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create issues a fresh token for subject. Every call gets its own jti, so two
// tokens for the same subject never serialize identically.
func (m *Manager) Create(subject string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrCreateFailed)
	}

	now := m.clock.Now()
	if now.IsZero() {
		return "", fmt.Errorf("%w: clock unavailable", ErrCreateFailed)
	}

	id, err := m.newID()
	if err != nil {
		l := logger.For(logger.TOKEN)
		l.Error().Err(err).Msg("Failed to generate token id")
		return "", fmt.Errorf("%w: token id: %w", ErrCreateFailed, err)
	}

	claims := jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		ID:        id.String(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		l := logger.For(logger.TOKEN)
		l.Error().Err(err).Msg("Failed to sign token")
		return "", fmt.Errorf("%w: sign: %w", ErrCreateFailed, err)
	}

	return signed, nil
}

// Verify checks the signature, issuer and expiry of serialized and returns its subject.
// It never reissues; renewal is Verify followed by Create.
func (m *Manager) Verify(serialized string) (string, error) {
	var claims jwt.RegisteredClaims

	_, err := m.parser.ParseWithClaims(serialized, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.key, nil
	})
	if err != nil {
		l := logger.For(logger.TOKEN)
		l.Debug().Err(err).Msg("Token rejected")
		return "", fmt.Errorf("%w: %w", ErrVerifyFailed, err)
	}

	if claims.Subject == "" {
		l := logger.For(logger.TOKEN)
		l.Debug().Str("jti", claims.ID).Msg("Token rejected: missing subject")
		return "", fmt.Errorf("%w: missing subject", ErrVerifyFailed)
	}

	return claims.Subject, nil
}
