package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalink/vitalink/internal/api/middleware"
	"github.com/vitalink/vitalink/internal/identity"
	"github.com/vitalink/vitalink/internal/principal"
	"github.com/vitalink/vitalink/internal/token"
)

func newTestResolver(t *testing.T) (*identity.Resolver, *token.Service, *principal.Service) {
	t.Helper()

	principals := principal.NewService(
		principal.NewInMemoryPatientRepository(),
		principal.NewInMemoryPhysicianRepository(),
	)
	tokens := token.NewService([]byte("test-signing-key"))
	return identity.NewResolver(tokens, principals), tokens, principals
}

func TestAuth_MissingToken(t *testing.T) {
	resolver, _, _ := newTestResolver(t)

	handler := middleware.Auth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/sensor", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestAuth_GarbageToken(t *testing.T) {
	resolver, _, _ := newTestResolver(t)

	handler := middleware.Auth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/sensor", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_ValidPatientToken(t *testing.T) {
	resolver, tokens, principals := newTestResolver(t)

	patient, err := principals.RegisterPatient(context.Background(), "ada@example.com", "correct-horse", "dev-1")
	require.NoError(t, err)

	bearer, err := tokens.Issue(patient.Email, "")
	require.NoError(t, err)

	handler := middleware.Auth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := middleware.GetIdentity(r.Context())
		require.NotNil(t, ident)
		assert.Equal(t, patient.ID, ident.PrincipalID)
		assert.Equal(t, principal.KindPatient, ident.Kind)
		assert.Equal(t, []string{"dev-1"}, ident.DeviceIDs)

		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/sensor", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireKind_RejectsWrongKind(t *testing.T) {
	resolver, tokens, principals := newTestResolver(t)

	patient, err := principals.RegisterPatient(context.Background(), "ada@example.com", "correct-horse", "")
	require.NoError(t, err)

	bearer, err := tokens.Issue(patient.Email, "")
	require.NoError(t, err)

	chain := middleware.Auth(resolver)(
		middleware.RequireKind(string(principal.KindPhysician))(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be reached")
			}),
		),
	)

	req := httptest.NewRequest(http.MethodGet, "/physicians/patients", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	w := httptest.NewRecorder()

	chain.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"empty", "", ""},
		{"standard", "Bearer abc123", "abc123"},
		{"case insensitive prefix", "bearer abc123", "abc123"},
		{"no prefix", "abc123", ""},
		{"prefix only", "Bearer ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, middleware.BearerToken(req))
		})
	}
}

func TestGetIdentity_Unauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, middleware.GetIdentity(req.Context()))
}
