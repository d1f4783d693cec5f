package config

import (
	"testing"
	"time"
)

func TestGetServerConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, key := range []string{"PORT", "STORE_TIMEOUT", "MAX_FRAME_BYTES", "WS_PONG_WAIT", "WS_PING_PERIOD", "WS_WRITE_WAIT"} {
			t.Setenv(key, "")
		}

		cfg := GetServerConfig()
		if cfg.Addr != ":8080" {
			t.Errorf("Addr = %q, want :8080", cfg.Addr)
		}
		if cfg.MaxFrameBytes != 64*1024 {
			t.Errorf("MaxFrameBytes = %d, want %d", cfg.MaxFrameBytes, 64*1024)
		}
		if cfg.PongWait != 30*time.Second || cfg.PingPeriod != 27*time.Second || cfg.WriteWait != 10*time.Second {
			t.Errorf("unexpected websocket timeouts: %+v", cfg)
		}
		if cfg.StoreTimeout != 5*time.Second {
			t.Errorf("StoreTimeout = %v, want 5s", cfg.StoreTimeout)
		}
	})

	t.Run("ping period follows pong wait", func(t *testing.T) {
		t.Setenv("WS_PONG_WAIT", "10s")
		t.Setenv("WS_PING_PERIOD", "")

		cfg := GetServerConfig()
		if cfg.PingPeriod != 9*time.Second {
			t.Errorf("PingPeriod = %v, want 9s", cfg.PingPeriod)
		}
	})

	t.Run("invalid integer uses default", func(t *testing.T) {
		t.Setenv("MAX_FRAME_BYTES", "lots")

		if got := GetServerConfig().MaxFrameBytes; got != 64*1024 {
			t.Errorf("MaxFrameBytes = %d, want default", got)
		}
	})
}

func TestGetRateLimitConfig(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		enabled     string
		override    string
		wantEnabled bool
		wantHits    int
	}{
		{"session defaults disabled", "session", "", "", false, 120},
		{"session enabled with override", "session", "true", "7", true, 7},
		{"stream enabled", "stream", "1", "", true, 30},
		{"unknown key disabled", "nope", "true", "", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RATELIMIT_ENABLED", tt.enabled)
			t.Setenv("RATELIMIT_SESSION", tt.override)
			t.Setenv("RATELIMIT_STREAM", "")

			cfg := GetRateLimitConfig(tt.key)
			if cfg.Enabled != tt.wantEnabled {
				t.Errorf("Enabled = %v, want %v", cfg.Enabled, tt.wantEnabled)
			}
			if cfg.MaxHits != tt.wantHits {
				t.Errorf("MaxHits = %d, want %d", cfg.MaxHits, tt.wantHits)
			}
		})
	}
}
