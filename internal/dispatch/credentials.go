package dispatch

import (
	"context"
	"crypto/subtle"
	"errors"
)

var ErrWrongCredentials = errors.New("dispatch: wrong username or password")

// CredentialVerifier decides whether a username/password pair authenticates,
// and which subject the issued token is for.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (subject string, err error)
}

// EqualCredentials accepts any non-empty pair whose username equals its password.
// It is a placeholder policy for development and tests.
type EqualCredentials struct{}

func (EqualCredentials) Verify(_ context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", ErrWrongCredentials
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(password)) != 1 {
		return "", ErrWrongCredentials
	}
	return username, nil
}
