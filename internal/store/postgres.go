package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/deepgram/sessiond/internal/logger"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresDB is satisfied by *pgxpool.Pool.
type PostgresDB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore keeps one row per session in the sessions table.
type PostgresStore struct {
	db PostgresDB
}

func NewPostgresStore(db PostgresDB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the sessions table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return classifyPgErr(err, errors.New("store: ensure schema failed"))
	}
	return nil
}

// classifyPgErr treats anything the server answered with as a logic failure and
// everything else (dial, timeout, closed pool) as a communication failure.
func classifyPgErr(err, logicErr error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w: %s: %w", logicErr, pgErr.Code, err)
	}
	return fmt.Errorf("%w: %w", ErrCommunicationFailed, err)
}

func (s *PostgresStore) Create(ctx context.Context, token string) (Session, error) {
	if _, err := s.db.Exec(ctx, `INSERT INTO sessions (token) VALUES ($1)`, token); err != nil {
		l := logger.For(logger.POSTGRES)
		if isUniqueViolation(err) {
			return Session{}, fmt.Errorf("%w: duplicate token: %w", ErrInsertFailed, err)
		}
		l.Error().Err(err).Msg("Session insert failed")
		return Session{}, classifyPgErr(err, ErrInsertFailed)
	}
	return Session{Token: token}, nil
}

func (s *PostgresStore) Update(ctx context.Context, oldToken, newToken string) (Session, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE sessions SET token = $2, updated_at = now() WHERE token = $1`,
		oldToken, newToken,
	)
	if err != nil {
		l := logger.For(logger.POSTGRES)
		if isUniqueViolation(err) {
			return Session{}, fmt.Errorf("%w: new token already in use: %w", ErrUpdateFailed, err)
		}
		l.Error().Err(err).Msg("Session update failed")
		return Session{}, classifyPgErr(err, ErrUpdateFailed)
	}
	if tag.RowsAffected() == 0 {
		return Session{}, fmt.Errorf("%w: no session for token", ErrUpdateFailed)
	}

	return Session{Token: newToken}, nil
}

func (s *PostgresStore) Delete(ctx context.Context, token string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		l := logger.For(logger.POSTGRES)
		l.Error().Err(err).Msg("Session delete failed")
		return classifyPgErr(err, ErrDeleteFailed)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrCommunicationFailed, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
