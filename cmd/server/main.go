/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the vaccination reservation engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment
  2. Initialize structured logging
  3. Initialize SQLite store
  4. Create API handler with dependencies
  5. Configure HTTP router
  6. Start server with graceful shutdown

CONFIGURATION:
  Environment variables, VAXSCHED_-prefixed (see config/config.go):
    VAXSCHED_HTTP_PORT          HTTP server port (default: 8080)
    VAXSCHED_DATABASE_PATH      SQLite database path (default: vaxsched.db)
                                Use ":memory:" for in-memory database
    VAXSCHED_LOG_LEVEL          zerolog level (default: info)
    VAXSCHED_SHUTDOWN_TIMEOUT   Drain timeout on SIGINT/SIGTERM
    VAXSCHED_RATELIMIT_RPS      Mutating requests per second per host
    VAXSCHED_RATELIMIT_BURST    Token bucket burst per host

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (shutdown timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/vaxsched/reservation-engine/api"
	"github.com/vaxsched/reservation-engine/config"
	"github.com/vaxsched/reservation-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to initialize database")
	}
	defer store.Close()

	// Initialize handler and router
	handler := api.NewHandler(store, log)
	limiter := api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Close()
	router := api.NewRouter(handler, limiter)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
