package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/deepgram/sessiond/internal/config"
	"github.com/deepgram/sessiond/internal/logger"
	"github.com/deepgram/sessiond/pkg/httpext"
	"github.com/deepgram/sessiond/pkg/ratelimit"
)

func RateLimit(limitKey string) func(http.Handler) http.Handler {
	return RateLimitWithConfig(limitKey, config.GetRateLimitConfig(limitKey))
}

func RateLimitWithConfig(limitKey string, cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	limiter := ratelimit.NewLimiter(cfg.Window, cfg.MaxHits)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			if !limiter.Allow(ip) {
				l := logger.For(logger.MIDDLEWARE)
				l.Warn().Str("ip", ip).Str("limit", limitKey).Msg("Rate limit exceeded")
				httpext.JsonError(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, otherwise the remote host.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
