package handler

import (
	"context"

	"github.com/vitalink/vitalink/internal/api/middleware"
	"github.com/vitalink/vitalink/internal/identity"
)

// GetIdentity retrieves the resolved caller identity from the context.
// This is a convenience wrapper around middleware.GetIdentity.
func GetIdentity(ctx context.Context) *identity.Identity {
	return middleware.GetIdentity(ctx)
}
