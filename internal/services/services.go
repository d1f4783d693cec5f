package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/deepgram/sessiond/internal/config"
	"github.com/deepgram/sessiond/internal/connections"
	"github.com/deepgram/sessiond/internal/dispatch"
	"github.com/deepgram/sessiond/internal/infrastructure/postgres"
	"github.com/deepgram/sessiond/internal/infrastructure/redis"
	"github.com/deepgram/sessiond/internal/logger"
	"github.com/deepgram/sessiond/internal/metrics"
	"github.com/deepgram/sessiond/internal/store"
	"github.com/deepgram/sessiond/internal/token"
)

const generatedSecretBytes = 32

type Services struct {
	tokenManager      *token.Manager
	sessionStore      store.Store
	dispatcher        *dispatch.Dispatcher
	metrics           *metrics.Metrics
	connectionManager *connections.Manager
	serverConfig      config.ServerConfig
}

// InitializeServices builds every long-lived component from the environment.
// The caller owns the returned Services and must Close it.
func InitializeServices(ctx context.Context) (*Services, error) {
	l := logger.For(logger.APP)
	l.Info().Msg("Initializing core services")

	serverConfig := config.GetServerConfig()

	secret, err := signingSecret()
	if err != nil {
		return nil, err
	}

	tokenManager, err := token.NewManager(token.Config{
		Secret: secret,
		TTL:    config.GetTokenTTL(),
		Issuer: config.GetTokenIssuer(),
	})
	if err != nil {
		l.Error().Err(err).Msg("Failed to initialize token manager")
		return nil, fmt.Errorf("failed to initialize token manager: %w", err)
	}
	l.Info().Dur("ttl", tokenManager.TTL()).Msg("Initializing token manager")

	sessionStore, err := newStore(ctx, tokenManager.TTL())
	if err != nil {
		l.Error().Err(err).Msg("Failed to initialize session store")
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	m := metrics.New()

	dispatcher := dispatch.New(tokenManager, sessionStore,
		dispatch.WithStoreTimeout(serverConfig.StoreTimeout),
		dispatch.WithObserver(m),
	)

	connectionManager := connections.NewManager(connections.TimeoutConfig{
		PongWait:   serverConfig.PongWait,
		PingPeriod: serverConfig.PingPeriod,
		WriteWait:  serverConfig.WriteWait,
	})

	l.Info().Msg("All services initialized successfully")

	return &Services{
		tokenManager:      tokenManager,
		sessionStore:      sessionStore,
		dispatcher:        dispatcher,
		metrics:           m,
		connectionManager: connectionManager,
		serverConfig:      serverConfig,
	}, nil
}

// signingSecret returns the configured secret, or a random one when none is set.
// Tokens signed with a random secret do not survive a restart.
func signingSecret() ([]byte, error) {
	secret := config.GetJWTSecret()
	if len(secret) > 0 {
		return secret, nil
	}

	l := logger.For(logger.APP)
	l.Warn().Msg("JWT_SECRET not set - generating a per-process secret, tokens will not survive a restart")

	secret = make([]byte, generatedSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate signing secret: %w", err)
	}
	return secret, nil
}

// newStore picks the session backend: Postgres, then Redis, then memory.
func newStore(ctx context.Context, ttl time.Duration) (store.Store, error) {
	l := logger.For(logger.STORE)

	if url := config.GetDatabaseURL(); url != "" {
		pool, err := postgres.NewPool(ctx, url, postgres.Options{MaxConns: config.GetDatabaseMaxConns()})
		if err != nil {
			return nil, err
		}
		s := store.NewPostgresStore(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		l.Info().Str("backend", "postgres").Msg("Initializing session store")
		return s, nil
	}

	if url := config.GetRedisURL(); url != "" {
		svc, err := redis.NewService(ctx, url, config.GetRedisPassword())
		if err != nil {
			return nil, err
		}
		l.Info().Str("backend", "redis").Msg("Initializing session store")
		return store.NewRedisStore(svc.Client(), ttl), nil
	}

	l.Warn().Msg("Neither DATABASE_URL nor REDIS_URL set - sessions are kept in memory and lost on restart")
	return store.NewMemoryStore(), nil
}

// GetTokenManager returns the token manager
func (s *Services) GetTokenManager() *token.Manager {
	return s.tokenManager
}

// GetSessionStore returns the session store
func (s *Services) GetSessionStore() store.Store {
	return s.sessionStore
}

// GetDispatcher returns the request dispatcher
func (s *Services) GetDispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

// GetMetrics returns the metrics registry
func (s *Services) GetMetrics() *metrics.Metrics {
	return s.metrics
}

// GetConnectionManager returns the streaming connection registry
func (s *Services) GetConnectionManager() *connections.Manager {
	return s.connectionManager
}

func (s *Services) GetServerConfig() config.ServerConfig {
	return s.serverConfig
}

// Close releases the session store.
func (s *Services) Close() error {
	return s.sessionStore.Close()
}
