package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/vitalink/vitalink/internal/api/models"
	"github.com/vitalink/vitalink/internal/identity"
)

// identityKey is the context key for the resolved caller identity.
type identityKey struct{}

// Auth creates authentication middleware that resolves the bearer token to an
// identity. Endpoints that allow subject addressing resolve credentials in the
// handler instead, so they are never mounted behind this middleware.
func Auth(resolver *identity.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				writeUnauthorized(w, r, "missing bearer token")
				return
			}

			ident, err := resolver.Resolve(r.Context(), identity.Credentials{BearerToken: token})
			if err != nil {
				switch {
				case errors.Is(err, identity.ErrUnauthorized):
					writeUnauthorized(w, r, "invalid token")
				case errors.Is(err, identity.ErrNotFound):
					writeUnauthorized(w, r, "unknown principal")
				default:
					models.NewError("authentication failed").Write(w, http.StatusInternalServerError)
				}
				return
			}

			ctx := context.WithValue(r.Context(), identityKey{}, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireKind restricts a route subtree to one principal kind. Must be mounted
// after Auth.
func RequireKind(kind string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := GetIdentity(r.Context())
			if ident == nil || string(ident.Kind) != kind {
				writeUnauthorized(w, r, "wrong principal kind")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the bearer token from the Authorization header.
// Returns an empty string when absent or malformed.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	const bearerPrefix = "Bearer "
	if len(authHeader) < len(bearerPrefix) ||
		!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}

	return authHeader[len(bearerPrefix):]
}

// writeUnauthorized writes a 401 Unauthorized response.
// Implemented directly here to avoid an import cycle with the response package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	requestID := GetRequestID(r.Context())
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	models.NewError(message).Write(w, http.StatusUnauthorized)
}

// GetIdentity retrieves the resolved caller identity from the context.
// Returns nil if not authenticated.
func GetIdentity(ctx context.Context) *identity.Identity {
	if ident, ok := ctx.Value(identityKey{}).(*identity.Identity); ok {
		return ident
	}
	return nil
}
