// Package store persists sessions keyed by their current token string.
//
// A Store exposes only create, rename and delete. There is deliberately no
// lookup: a session is found by presenting its token, nothing else.
package store

import (
	"context"
	"errors"
)

var (
	// ErrInsertFailed means a session for the token already exists or the
	// backend refused the row.
	ErrInsertFailed = errors.New("store: insert failed")
	// ErrUpdateFailed means no session matched the old token, or the new
	// token collides with an existing session.
	ErrUpdateFailed = errors.New("store: update failed")
	ErrDeleteFailed = errors.New("store: delete failed")
	// ErrCommunicationFailed means the backend could not be reached. It is
	// distinct from the logic-level failures above.
	ErrCommunicationFailed = errors.New("store: communication failed")
)

// Session is the persisted authorization record.
type Session struct {
	Token string `json:"token"`
}

// Store is implemented by every session backend.
type Store interface {
	Create(ctx context.Context, token string) (Session, error)
	Update(ctx context.Context, oldToken, newToken string) (Session, error)
	// Delete removes the session for token. Deleting a missing token is not an error.
	Delete(ctx context.Context, token string) error
	Ping(ctx context.Context) error
	Close() error
}
