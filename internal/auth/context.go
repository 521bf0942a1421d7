package auth

import (
	"context"

	"github.com/otiai10/playerauth/internal/player"
)

// Identity is what the middleware attaches to an authenticated request
type Identity struct {
	Claims       Claims
	IsSuperAdmin bool
	Profile      player.Profile
}

// contextKey type for context value keys
type contextKey string

const identityKey contextKey = "identity"

// WithIdentity adds the identity to context. It is stored by value, so
// handlers reading it get their own copy.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the identity from context
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// MustIdentity retrieves the identity or panics (for use after middleware)
func MustIdentity(ctx context.Context) Identity {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		panic("auth: identity not found in context")
	}
	return id
}
