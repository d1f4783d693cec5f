package config

import (
	"time"

	"github.com/deepgram/sessiond/internal/logger"
)

type RateLimitConfig struct {
	Enabled bool
	MaxHits int
	Window  time.Duration
}

func GetRateLimitConfig(key string) RateLimitConfig {
	enabled := parseEnvBool("RATELIMIT_ENABLED", false)

	configs := map[string]RateLimitConfig{
		"session": {
			Enabled: enabled,
			MaxHits: parseEnvInt("RATELIMIT_SESSION", 120), // 120 requests per minute
			Window:  time.Minute,
		},
		"stream": {
			Enabled: enabled,
			MaxHits: parseEnvInt("RATELIMIT_STREAM", 30), // 30 upgrades per minute
			Window:  time.Minute,
		},
	}

	if cfg, exists := configs[key]; exists {
		return cfg
	}

	l := logger.For(logger.CONFIG)
	l.Warn().Str("key", key).Msg("No rate limit config found")
	return RateLimitConfig{Enabled: false}
}
