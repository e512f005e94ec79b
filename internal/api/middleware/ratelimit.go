package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/vitalink/vitalink/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// Requests per window
	RequestLimit int
	// Window duration
	WindowLength time.Duration
}

// Default rate limit configurations.
var (
	// AuthRateLimit applies to registration and login endpoints (10 req/min).
	AuthRateLimit = RateLimitConfig{
		RequestLimit: 10,
		WindowLength: time.Minute,
	}

	// IngestRateLimit applies to the sample ingestion endpoint (300 req/min).
	// Wearables post on a schedule; this only caps runaway firmware.
	IngestRateLimit = RateLimitConfig{
		RequestLimit: 300,
		WindowLength: time.Minute,
	}

	// StandardRateLimit applies to standard endpoints (100 req/min).
	StandardRateLimit = RateLimitConfig{
		RequestLimit: 100,
		WindowLength: time.Minute,
	}
)

// RateLimitByIP creates a rate limiter middleware using client IP address.
// Uses X-Forwarded-For header if present (extracted by chi's RealIP middleware).
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rateLimitExceededHandler),
	)
}

// RateLimitByPrincipal creates a rate limiter middleware keyed on the resolved
// principal. Falls back to IP-based rate limiting for unauthenticated requests.
func RateLimitByPrincipal(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keyByPrincipalOrIP),
		httprate.WithLimitHandler(rateLimitExceededHandler),
	)
}

// keyByPrincipalOrIP returns the principal ID if authenticated, otherwise the
// client IP.
func keyByPrincipalOrIP(r *http.Request) (string, error) {
	if ident := GetIdentity(r.Context()); ident != nil {
		return "principal:" + ident.PrincipalID, nil
	}
	return httprate.KeyByRealIP(r)
}

// rateLimitExceededHandler writes the error envelope when the limit is hit.
func rateLimitExceededHandler(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}

	// httprate doesn't expose the exact reset time, so use a conservative
	// estimate based on the window.
	w.Header().Set("Retry-After", strconv.Itoa(60))

	models.NewError("rate limit exceeded, try again later").Write(w, http.StatusTooManyRequests)
}
