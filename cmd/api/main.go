// Package main provides the entrypoint for the VitaLink API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/vitalink/vitalink/internal/aggregate"
	"github.com/vitalink/vitalink/internal/api"
	"github.com/vitalink/vitalink/internal/api/middleware"
	"github.com/vitalink/vitalink/internal/database"
	"github.com/vitalink/vitalink/internal/identity"
	"github.com/vitalink/vitalink/internal/principal"
	"github.com/vitalink/vitalink/internal/secrets"
	"github.com/vitalink/vitalink/internal/sensor"
	"github.com/vitalink/vitalink/internal/telemetry"
	"github.com/vitalink/vitalink/internal/token"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "vitalink-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting VitaLink API")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryCfg := telemetry.ConfigFromEnv(serviceName, Version)

	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryCfg.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryCfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	ingestMetrics, err := middleware.NewIngestMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize ingest metrics")
		os.Exit(1)
	}

	// Load key material. A missing or empty key file is fatal: the service
	// must never start without real secrets.
	material, err := secrets.Load(secrets.ConfigFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load key material")
	}
	log.Info().Msg("key material loaded")

	// Apply schema migrations and connect to the database
	dbConfig := database.ConfigFromEnv()
	if err := database.RunMigrations(dbConfig.ConnectionString()); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	pool, err := database.ConnectWithRetry(ctx, dbConfig, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Initialize the credential store
	patientRepo := principal.NewPostgresPatientRepository(pool)
	physicianRepo := principal.NewPostgresPhysicianRepository(pool)
	principals := principal.NewService(patientRepo, physicianRepo)
	log.Info().Msg("credential store initialized")

	// Initialize the token service and identity resolver
	tokens := token.NewService(material.SigningKey)
	resolver := identity.NewResolver(tokens, principals)

	// Initialize the sample store behind a circuit breaker
	sampleRepo := sensor.NewBreakerRepository(sensor.NewPostgresRepository(pool), log)
	samples := sensor.NewService(sensor.ServiceConfig{
		Repository:   sampleRepo,
		IngestAPIKey: material.IngestAPIKey,
		Logger:       log,
	})
	log.Info().Msg("sample store initialized")

	// Initialize the aggregation service with an optional Redis summary cache
	var summaryCache aggregate.Cache
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		summaryCache = aggregate.NewRedisCache(redisClient, 60*time.Second)
		log.Info().Str("addr", redisAddr).Msg("summary cache enabled")
	}

	summaries := aggregate.NewService(aggregate.ServiceConfig{
		Samples: samples,
		Cache:   summaryCache,
		Logger:  log,
	})

	debugEndpoints := os.Getenv("DEBUG_ENDPOINTS") == "true"
	if debugEndpoints {
		log.Warn().Msg("debug endpoints enabled - unfiltered sample access is reachable")
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        metrics,
		IngestMetrics:  ingestMetrics,
		Principals:     principals,
		Tokens:         tokens,
		Samples:        samples,
		Summaries:      summaries,
		Resolver:       resolver,
		Ready:          pool.Ping,
		DebugEndpoints: debugEndpoints,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
