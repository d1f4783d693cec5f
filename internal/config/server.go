package config

import (
	"time"
)

// ServerConfig holds the transport-level settings.
type ServerConfig struct {
	Addr          string
	StoreTimeout  time.Duration
	MaxFrameBytes int64
	PongWait      time.Duration
	PingPeriod    time.Duration
	WriteWait     time.Duration
}

func GetServerConfig() ServerConfig {
	pongWait := parseEnvDuration("WS_PONG_WAIT", 30*time.Second)

	return ServerConfig{
		Addr:          ":" + GetEnvOrDefault("PORT", "8080"),
		StoreTimeout:  parseEnvDuration("STORE_TIMEOUT", 5*time.Second),
		MaxFrameBytes: int64(parseEnvInt("MAX_FRAME_BYTES", 64*1024)),
		PongWait:      pongWait,
		PingPeriod:    parseEnvDuration("WS_PING_PERIOD", (pongWait*9)/10),
		WriteWait:     parseEnvDuration("WS_WRITE_WAIT", 10*time.Second),
	}
}
