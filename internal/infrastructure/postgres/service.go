package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/deepgram/sessiond/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pingTimeout = 3 * time.Second

type Options struct {
	MaxConns int32
	MinConns int32
}

// NewPool builds a pgxpool for url and checks that a connection can be acquired.
func NewPool(ctx context.Context, url string, opts Options) (*pgxpool.Pool, error) {
	l := logger.For(logger.POSTGRES)

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}

	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := Ping(ctx, pool); err != nil {
		l.Error().Err(err).Str("host", cfg.ConnConfig.Host).Msg("Failed to establish Postgres connection")
		pool.Close()
		return nil, err
	}

	l.Info().
		Str("host", cfg.ConnConfig.Host).
		Str("database", cfg.ConnConfig.Database).
		Int32("max_conns", cfg.MaxConns).
		Msg("Postgres pool established")

	return pool, nil
}

// Ping checks that a connection can be acquired within a short timeout.
func Ping(parent context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(parent, pingTimeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	conn.Release()
	return nil
}
