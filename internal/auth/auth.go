// Package auth verifies Firebase ID tokens and provisions the caller's
// player profile before protected handlers run.
package auth

import (
	"context"

	"github.com/otiai10/playerauth/internal/player"
)

// Claims represents the decoded ID token claims (the verified identity)
type Claims struct {
	UID           string `json:"uid"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	ProviderID    string `json:"provider_id,omitempty"`
}

// TokenVerifier verifies ID tokens
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Claims, error)
}

// NewProfile builds the profile written on a subject's first login
func (c Claims) NewProfile(isSuperAdmin bool) player.Profile {
	return player.Profile{
		UID:           c.UID,
		Email:         c.Email,
		Name:          c.Name,
		EmailVerified: c.EmailVerified,
		Picture:       c.Picture,
		IsSuperAdmin:  isSuperAdmin,
	}
}
