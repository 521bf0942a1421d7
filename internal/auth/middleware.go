package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/otiai10/playerauth/internal/admin"
	"github.com/otiai10/playerauth/internal/logger"
	"github.com/otiai10/playerauth/internal/player"
)

const (
	bearerPrefix = "Bearer "

	// maxLoggedBody bounds how much of the request body goes into the entry log
	maxLoggedBody = 4 << 10

	failureMessage = "Authentication failed."

	tracerName = "github.com/otiai10/playerauth/internal/auth"
)

// Authenticator verifies the bearer token, resolves the admin flag and
// provisions the player profile for every request it guards
type Authenticator struct {
	verifier TokenVerifier
	admins   admin.Repository
	players  player.Repository
	log      *logger.Logger
	tracer   trace.Tracer
}

// AuthenticatorOption configures an Authenticator
type AuthenticatorOption func(*Authenticator)

// WithTracer sets the tracer for the "auth.Authenticate" span.
// The default comes from the global otel TracerProvider.
func WithTracer(tracer trace.Tracer) AuthenticatorOption {
	return func(a *Authenticator) {
		if tracer != nil {
			a.tracer = tracer
		}
	}
}

// NewAuthenticator creates an Authenticator. A nil logger uses logger.Default().
func NewAuthenticator(verifier TokenVerifier, admins admin.Repository, players player.Repository, log *logger.Logger, opts ...AuthenticatorOption) *Authenticator {
	if log == nil {
		log = logger.Default()
	}
	a := &Authenticator{
		verifier: verifier,
		admins:   admins,
		players:  players,
		log:      log,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FailureResponse is the body of every authentication failure
type FailureResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// requestEntry is logged for every request reaching the middleware
type requestEntry struct {
	Event  string `json:"event"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Body   string `json:"body,omitempty"`
}

// Middleware returns the http middleware.
// Requires Authorization header: Bearer <token>.
// Responds 400 with FailureResponse on any failure and does not call next.
// On success, adds the Identity to the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.log.Log(requestEntry{
			Event:  "Request: started",
			Method: r.Method,
			Path:   r.URL.Path,
			Body:   peekBody(r, maxLoggedBody),
		})

		id, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			a.logFailure(r, err)
			writeFailure(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// Authenticate runs token extraction, verification, admin lookup and
// profile lookup-or-create for one Authorization header value.
// Returned errors are *Error.
func (a *Authenticator) Authenticate(ctx context.Context, authHeader string) (id Identity, err error) {
	ctx, span := a.tracer.Start(ctx, "auth.Authenticate")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, string(KindOf(err)))
		}
		span.End()
	}()

	token, err := ExtractBearerToken(authHeader)
	if err != nil {
		return Identity{}, fail(KindMissingToken, err)
	}

	claims, err := a.verifier.VerifyIDToken(ctx, token)
	if err != nil {
		return Identity{}, fail(KindInvalidToken, err)
	}
	if claims == nil || claims.UID == "" {
		return Identity{}, fail(KindInvalidToken, fmt.Errorf("token has no subject"))
	}
	span.SetAttributes(attribute.String("enduser.id", claims.UID))

	isSuperAdmin, err := a.admins.IsSuperAdmin(ctx, claims.UID)
	if err != nil {
		return Identity{}, fail(KindStore, err)
	}

	profile, created, err := player.GetOrCreate(ctx, a.players, claims.NewProfile(isSuperAdmin))
	if err != nil {
		return Identity{}, fail(KindStore, err)
	}
	span.SetAttributes(
		attribute.Bool("player.super_admin", isSuperAdmin),
		attribute.Bool("player.created", created),
	)
	if created {
		a.log.Info("Created player profile", map[string]any{
			"uid":          claims.UID,
			"isSuperAdmin": isSuperAdmin,
		})
	}

	return Identity{
		Claims:       *claims,
		IsSuperAdmin: isSuperAdmin,
		Profile:      *profile,
	}, nil
}

// ExtractBearerToken returns the token following the case-sensitive
// "Bearer " prefix
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrMalformedHeader
	}
	token := strings.TrimPrefix(header, bearerPrefix)
	if strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

func (a *Authenticator) logFailure(r *http.Request, err error) {
	fields := map[string]any{
		"kind":   string(KindOf(err)),
		"error":  err.Error(),
		"method": r.Method,
		"path":   r.URL.Path,
	}
	if IsClientError(err) {
		a.log.Warn("Authentication failed", fields)
		return
	}
	a.log.Error("Authentication failed", fields)
}

// writeFailure writes the uniform authentication failure response
func writeFailure(w http.ResponseWriter, err error) {
	detail := err.Error()
	if authErr, ok := err.(*Error); ok {
		detail = authErr.Detail()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(FailureResponse{
		Message: failureMessage,
		Error:   detail,
	})
}

// peekBody reads up to limit bytes of the body for logging and restores it
// so downstream handlers still see the full body
func peekBody(r *http.Request, limit int64) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, limit))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
	if err != nil {
		return ""
	}
	return string(buf)
}
