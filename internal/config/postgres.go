package config

import (
	"github.com/deepgram/sessiond/internal/logger"
)

// GetDatabaseURL returns the Postgres connection string. Empty disables the Postgres store.
func GetDatabaseURL() string {
	l := logger.For(logger.CONFIG)
	value := GetEnvOrDefault("DATABASE_URL", "")
	if value == "" {
		l.Debug().Msg("Database URL not set")
	} else {
		l.Info().Msg("Database URL successfully loaded")
	}
	return value
}

// GetDatabaseMaxConns caps the Postgres pool. Zero keeps the pgx default.
func GetDatabaseMaxConns() int32 {
	return int32(parseEnvInt("DATABASE_MAX_CONNS", 0))
}
