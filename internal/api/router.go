// Package api provides the HTTP API for VitaLink.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/vitalink/vitalink/internal/aggregate"
	"github.com/vitalink/vitalink/internal/api/handler"
	"github.com/vitalink/vitalink/internal/api/middleware"
	"github.com/vitalink/vitalink/internal/identity"
	"github.com/vitalink/vitalink/internal/principal"
	"github.com/vitalink/vitalink/internal/sensor"
	"github.com/vitalink/vitalink/internal/token"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version       string
	BuildTime     string
	Logger        zerolog.Logger
	ServiceName   string
	Metrics       *middleware.Metrics
	IngestMetrics *middleware.IngestMetrics
	Principals    *principal.Service
	Tokens        *token.Service
	Samples       *sensor.Service
	Summaries     *aggregate.Service
	Resolver      *identity.Resolver
	Ready         handler.ReadyCheck

	// DebugEndpoints mounts the unfiltered admin sample routes. Never enable
	// in production.
	DebugEndpoints bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "vitalink-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Ready)
	usersHandler := handler.NewUsersHandler(cfg.Principals, cfg.Tokens)
	physiciansHandler := handler.NewPhysiciansHandler(cfg.Principals, cfg.Tokens, cfg.Summaries, cfg.Resolver)
	sensorHandler := handler.NewSensorHandler(cfg.Samples, cfg.Summaries, cfg.IngestMetrics)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.Resolver)

	// Create rate limit middleware for different endpoint categories
	authRateLimit := middleware.RateLimitByIP(middleware.AuthRateLimit)         // 10 req/min
	ingestRateLimit := middleware.RateLimitByIP(middleware.IngestRateLimit)     // 300 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	// Ops endpoints (public)
	r.Route("/ops", func(r chi.Router) {
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
	})

	// Sensor endpoints - ingestion is API-key authenticated, reads need a
	// bearer token
	r.Route("/sensor", func(r chi.Router) {
		r.With(ingestRateLimit).Post("/", sensorHandler.Post)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByPrincipal(middleware.StandardRateLimit))
			r.Get("/", sensorHandler.Window)
			r.Get("/latest", sensorHandler.Latest)
			r.Get("/day", sensorHandler.Day)
		})
	})

	// Patient account endpoints
	r.Route("/users", func(r chi.Router) {
		// Registration and login (public) - strict rate limiting
		r.Group(func(r chi.Router) {
			r.Use(authRateLimit)
			r.Post("/register", usersHandler.Register)
			r.Post("/login", usersHandler.Login)
		})

		// Self-service (authenticated) - principal-based rate limiting
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByPrincipal(middleware.StandardRateLimit))
			r.Get("/me", usersHandler.Me)
			r.Post("/add-device", usersHandler.AddDevice)
			r.Delete("/delete-device/{deviceId}", usersHandler.DeleteDevice)
			r.Post("/update-measurement-settings", usersHandler.UpdateMeasurementSettings)
			r.Get("/measurement-settings/{deviceId}", usersHandler.MeasurementSettings)
			r.Post("/change-password", usersHandler.ChangePassword)
			r.Post("/assign-physician", usersHandler.AssignPhysician)
		})
	})

	// Physician endpoints
	r.Route("/physicians", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authRateLimit)
			r.Post("/register", physiciansHandler.Register)
			r.Post("/login", physiciansHandler.Login)
		})

		// Directory for the patient account flow; any authenticated principal
		// may read it.
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByPrincipal(middleware.StandardRateLimit))
			r.Get("/", physiciansHandler.List)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireKind(string(principal.KindPhysician)))
			r.Use(middleware.RateLimitByPrincipal(middleware.StandardRateLimit))
			r.Get("/patients", physiciansHandler.Patients)
		})

		// Subject addressing is allowed here, so credentials are resolved in
		// the handler rather than the auth middleware.
		r.With(standardRateLimit).Get("/patient-summary/{userId}", physiciansHandler.PatientSummary)
	})

	// Admin endpoints - unfiltered sample access, opt-in only
	if cfg.DebugEndpoints {
		adminHandler := handler.NewAdminHandler(cfg.Samples)
		r.Route("/admin", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/sensor", adminHandler.ListSamples)
			r.Delete("/sensor/{id}", adminHandler.DeleteSample)
		})
	}

	return r
}
