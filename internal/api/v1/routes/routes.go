package routes

import (
	"github.com/deepgram/sessiond/internal/handlers"
	"github.com/deepgram/sessiond/internal/middleware"
	"github.com/deepgram/sessiond/internal/services"
	"github.com/gorilla/mux"
)

// NewRouter builds the full HTTP surface over services.
func NewRouter(services *services.Services) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.AccessLog)

	RegisterOperationalRoutes(router, services)
	RegisterV1Routes(router, services)

	return router
}

// RegisterOperationalRoutes mounts health and metrics.
func RegisterOperationalRoutes(router *mux.Router, services *services.Services) {
	cfg := services.GetServerConfig()

	router.Handle("/healthz", handlers.HandleHealth(services.GetSessionStore(), cfg.StoreTimeout)).Methods("GET")
	router.Handle("/metrics", services.GetMetrics().Handler()).Methods("GET")
}

func RegisterV1Routes(router *mux.Router, services *services.Services) {
	cfg := services.GetServerConfig()

	v1 := router.PathPrefix("/v1").Subrouter()

	// Every route here carries the /v1 prefix matcher, and a later route that
	// matches it clears an earlier method mismatch. /session stays last so a
	// wrong method on it answers 405 instead of 404.

	// Long-lived stream of exchanges
	v1.Handle("/session/stream", middleware.RateLimit("stream")(
		handlers.NewStreamHandler(services.GetDispatcher(), services.GetConnectionManager(), cfg.MaxFrameBytes, services.GetMetrics()),
	)).Methods("GET")

	// Single request/response exchange
	v1.Handle("/session", middleware.RateLimit("session")(
		handlers.NewSessionHandler(services.GetDispatcher(), cfg.MaxFrameBytes, services.GetMetrics()),
	)).Methods("POST")
}
