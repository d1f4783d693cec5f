package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/deepgram/sessiond/internal/logger"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]struct{}),
	}
}

func (s *MemoryStore) Create(ctx context.Context, token string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrCommunicationFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[token]; exists {
		l := logger.For(logger.STORE)
		l.Debug().Msg("Memory store refused duplicate session")
		return Session{}, fmt.Errorf("%w: duplicate token", ErrInsertFailed)
	}
	s.sessions[token] = struct{}{}

	return Session{Token: token}, nil
}

func (s *MemoryStore) Update(ctx context.Context, oldToken, newToken string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrCommunicationFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[oldToken]; !exists {
		l := logger.For(logger.STORE)
		l.Debug().Msg("Memory store has no session to rename")
		return Session{}, fmt.Errorf("%w: no session for token", ErrUpdateFailed)
	}
	if _, exists := s.sessions[newToken]; exists {
		l := logger.For(logger.STORE)
		l.Debug().Msg("Memory store refused rename onto a live token")
		return Session{}, fmt.Errorf("%w: new token already in use", ErrUpdateFailed)
	}

	delete(s.sessions, oldToken)
	s.sessions[newToken] = struct{}{}

	return Session{Token: newToken}, nil
}

func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommunicationFailed, err)
	}

	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()

	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	return nil
}

// Len reports how many sessions are live.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
