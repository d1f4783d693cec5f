package config

import (
	"github.com/deepgram/sessiond/internal/logger"
)

func GetRedisURL() string {
	l := logger.For(logger.CONFIG)
	value := GetEnvOrDefault("REDIS_URL", "")
	if value == "" {
		l.Debug().Msg("Redis URL not set")
	} else {
		l.Info().Msg("Redis URL successfully loaded")
	}
	return value
}

func GetRedisPassword() string {
	return GetEnvOrDefault("REDIS_PASSWORD", "")
}
