package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deepgram/sessiond/internal/api/v1/routes"
	"github.com/deepgram/sessiond/internal/logger"
	"github.com/deepgram/sessiond/internal/services"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run(ctx context.Context) error {
	svc, err := services.InitializeServices(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close session store")
		}
	}()

	server := &http.Server{
		Addr:              svc.GetServerConfig().Addr,
		Handler:           setupRouter(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server starting")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")

	// Shutdown does not touch hijacked connections, so streams are closed first.
	closed := svc.GetConnectionManager().CloseAll()
	log.Info().Int("streams", closed).Msg("Closed streaming connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
		return err
	}

	log.Info().Msg("Server stopped")
	return nil
}

func setupRouter(svc *services.Services) *mux.Router {
	return routes.NewRouter(svc)
}
