package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/deepgram/sessiond/internal/logger"
	"github.com/redis/go-redis/v9"
)

type Service struct {
	client *redis.Client
}

// NewService connects to the Redis server at url and verifies it with a PING.
// url may be a bare host:port or a redis:// URL.
func NewService(ctx context.Context, url, password string) (*Service, error) {
	l := logger.For(logger.REDIS)

	opts, err := parseOptions(url, password)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		l.Error().
			Err(err).
			Str("addr", opts.Addr).
			Msg("Failed to establish Redis connection")
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	l.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Redis connection established")

	return &Service{
		client: client,
	}, nil
}

func parseOptions(url, password string) (*redis.Options, error) {
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		if opts.Password == "" {
			opts.Password = password
		}
		return opts, nil
	}

	return &redis.Options{
		Addr:     url,
		Password: password,
		DB:       0,
	}, nil
}

// Client exposes the underlying client for the session store.
func (s *Service) Client() *redis.Client {
	return s.client
}

// Ping checks if Redis is accessible
func (s *Service) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *Service) Close() error {
	return s.client.Close()
}
