package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/itineraryconcierge/internal/api/handlers"
	"github.com/zatekoja/itineraryconcierge/internal/api/routes"
	"github.com/zatekoja/itineraryconcierge/internal/application/services"
	"github.com/zatekoja/itineraryconcierge/internal/bootstrap"
	"github.com/zatekoja/itineraryconcierge/internal/infrastructure/observability"
	"github.com/zatekoja/itineraryconcierge/pkg/config"
	apperrors "github.com/zatekoja/itineraryconcierge/pkg/errors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	if _, err := observability.InitMetrics(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	engine, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize plan engine")
	}

	var mutator handlers.PlanMutator = unavailableMutator{}
	if engine.Coordinator != nil {
		mutator = engine.Coordinator
	}

	// With the memory backend events never leave this process, so streams
	// are served here as well.
	var sseHandler *handlers.SSEHandler
	if cfg.Engine.StoreBackend == "memory" {
		sseHandler = handlers.NewSSEHandler(engine.Events)
	}

	router := routes.NewRouter(
		handlers.NewChatHandler(mutator),
		handlers.NewPlanHandler(engine.Plans),
		sseHandler,
		handlers.NewHealthHandler(map[string]handlers.HealthCheck{"store": engine.Ping}),
		cfg.Server.AllowedOrigins,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		// Retrieval plus generation can take most of a minute.
		WriteTimeout: cfg.Engine.RetrievalTimeout + cfg.Engine.ModelTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if sseHandler != nil {
		server.WriteTimeout = 0
	}

	go func() {
		log.Info().Str("addr", serverAddr).Str("backend", cfg.Engine.StoreBackend).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}
	if err := engine.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing plan engine")
	}

	log.Info().Msg("Server stopped")
}

// unavailableMutator answers chat requests when no model is configured.
type unavailableMutator struct{}

func (unavailableMutator) Mutate(ctx context.Context, req services.MutationRequest) (*services.MutationResponse, error) {
	return nil, apperrors.NewGenerationError("no generative model is configured", nil)
}
