package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	firebaseAuth "firebase.google.com/go/v4/auth"
)

// idTokenVerifier is an interface for verifying ID tokens
// Both firebaseAuth.Client and firebaseAuth.TenantClient implement this
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseAuth.Token, error)
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*firebaseAuth.Token, error)
}

// FirebaseTokenVerifier implements TokenVerifier using Firebase Admin SDK
type FirebaseTokenVerifier struct {
	verifier     idTokenVerifier
	tenantID     string
	checkRevoked bool
}

// Ensure FirebaseTokenVerifier implements TokenVerifier interface
var _ TokenVerifier = (*FirebaseTokenVerifier)(nil)

// FirebaseTokenVerifierConfig holds configuration for FirebaseTokenVerifier
type FirebaseTokenVerifierConfig struct {
	TenantID     string // Optional: for multi-tenant Identity Platform
	CheckRevoked bool   // Also reject tokens revoked or of disabled users
}

// NewFirebaseTokenVerifier creates a token verifier from an initialized Firebase app
func NewFirebaseTokenVerifier(ctx context.Context, app *firebase.App, cfg FirebaseTokenVerifierConfig) (*FirebaseTokenVerifier, error) {
	if app == nil {
		return nil, fmt.Errorf("firebase app is required")
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth client: %w", err)
	}

	var verifier idTokenVerifier

	if cfg.TenantID != "" {
		tenantClient, err := authClient.TenantManager.AuthForTenant(cfg.TenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to get tenant auth client for %s: %w", cfg.TenantID, err)
		}
		verifier = tenantClient
	} else {
		verifier = authClient
	}

	return &FirebaseTokenVerifier{
		verifier:     verifier,
		tenantID:     cfg.TenantID,
		checkRevoked: cfg.CheckRevoked,
	}, nil
}

// VerifyIDToken verifies a Firebase ID token and returns the decoded claims
func (v *FirebaseTokenVerifier) VerifyIDToken(ctx context.Context, idToken string) (*Claims, error) {
	var (
		token *firebaseAuth.Token
		err   error
	)
	if v.checkRevoked {
		token, err = v.verifier.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	} else {
		token, err = v.verifier.VerifyIDToken(ctx, idToken)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	return claimsFromToken(token), nil
}

func claimsFromToken(token *firebaseAuth.Token) *Claims {
	claims := &Claims{
		UID:           token.UID,
		Email:         getStringClaim(token.Claims, "email"),
		EmailVerified: getBoolClaim(token.Claims, "email_verified"),
		Name:          getStringClaim(token.Claims, "name"),
		Picture:       getStringClaim(token.Claims, "picture"),
		ProviderID:    token.Firebase.SignInProvider,
	}
	return claims
}

// getStringClaim safely extracts a string claim from the claims map
func getStringClaim(claims map[string]any, key string) string {
	val, ok := claims[key]
	if !ok {
		return ""
	}
	str, ok := val.(string)
	if !ok {
		return ""
	}
	return str
}

// getBoolClaim safely extracts a boolean claim from the claims map
func getBoolClaim(claims map[string]any, key string) bool {
	val, ok := claims[key]
	if !ok {
		return false
	}
	b, ok := val.(bool)
	if !ok {
		return false
	}
	return b
}
