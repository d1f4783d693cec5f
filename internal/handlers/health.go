package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/deepgram/sessiond/internal/logger"
	"github.com/deepgram/sessiond/pkg/httpext"
)

// Pinger is anything that can report liveness, typically the session store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
}

// HandleHealth reports 200 while the backend answers a ping within timeout.
func HandleHealth(pinger Pinger, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := pinger.Ping(ctx); err != nil {
			l := logger.For(logger.HANDLER)
			l.Warn().Err(err).Msg("Health check failed")
			httpext.JsonError(w, "Session store unavailable", http.StatusServiceUnavailable)
			return
		}

		httpext.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
