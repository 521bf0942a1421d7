package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/otiai10/playerauth/internal/admin"
	"github.com/otiai10/playerauth/internal/logger"
	"github.com/otiai10/playerauth/internal/player"
)

// mockTokenVerifier implements TokenVerifier for testing
type mockTokenVerifier struct {
	claims *Claims
	err    error
	tokens []string
}

func (m *mockTokenVerifier) VerifyIDToken(ctx context.Context, idToken string) (*Claims, error) {
	m.tokens = append(m.tokens, idToken)
	if m.err != nil {
		return nil, m.err
	}
	return m.claims, nil
}

// failingAdmins implements admin.Repository and always fails
type failingAdmins struct{ err error }

func (f failingAdmins) IsSuperAdmin(ctx context.Context, uid string) (bool, error) {
	return false, f.err
}

// countingPlayers wraps a MemoryRepository and counts writes
type countingPlayers struct {
	*player.MemoryRepository
	creates   int
	createErr error
}

func (c *countingPlayers) Create(ctx context.Context, p player.Profile) error {
	c.creates++
	if c.createErr != nil {
		return c.createErr
	}
	return c.MemoryRepository.Create(ctx, p)
}

type fixture struct {
	verifier *mockTokenVerifier
	admins   *admin.MemoryRepository
	players  *countingPlayers
	logs     *bytes.Buffer
}

func newFixture(claims *Claims) *fixture {
	return &fixture{
		verifier: &mockTokenVerifier{claims: claims},
		admins:   admin.NewMemoryRepository(),
		players:  &countingPlayers{MemoryRepository: player.NewMemoryRepository()},
		logs:     &bytes.Buffer{},
	}
}

func (f *fixture) authenticator() *Authenticator {
	return NewAuthenticator(f.verifier, f.admins, f.players, logger.New(f.logs))
}

func decodeFailure(t *testing.T, rec *httptest.ResponseRecorder) FailureResponse {
	t.Helper()
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
	var resp FailureResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Message != "Authentication failed." {
		t.Errorf("expected message 'Authentication failed.', got '%s'", resp.Message)
	}
	return resp
}

func neverCalled(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called when authentication fails")
	})
}

func TestMiddleware_MissingAuthorizationHeader(t *testing.T) {
	f := newFixture(&Claims{UID: "u1"})
	handler := f.authenticator().Middleware(neverCalled(t))

	req := httptest.NewRequest(http.MethodGet, "/api/user/current", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := decodeFailure(t, rec)
	if resp.Error != "no token provided" {
		t.Errorf("expected error 'no token provided', got '%s'", resp.Error)
	}
	if len(f.verifier.tokens) != 0 {
		t.Error("verifier should not be called without a token")
	}
}

func TestMiddleware_InvalidAuthorizationFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "missing bearer prefix", header: "some-token"},
		{name: "lowercase bearer", header: "bearer some-token"},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "only bearer prefix", header: "Bearer "},
		{name: "empty after bearer", header: "Bearer"},
		{name: "whitespace token", header: "Bearer    "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(&Claims{UID: "u1"})
			handler := f.authenticator().Middleware(neverCalled(t))

			req := httptest.NewRequest(http.MethodGet, "/api/user/current", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			decodeFailure(t, rec)
			if f.players.Len() != 0 {
				t.Error("no profile should be written on failure")
			}
		})
	}
}

func TestMiddleware_TokenVerificationFailed(t *testing.T) {
	f := newFixture(nil)
	f.verifier.err = errors.New("ID token has expired")
	handler := f.authenticator().Middleware(neverCalled(t))

	req := httptest.NewRequest(http.MethodGet, "/api/user/current", nil)
	req.Header.Set("Authorization", "Bearer valid-looking-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := decodeFailure(t, rec)
	if resp.Error != "invalid or expired token" {
		t.Errorf("expected error 'invalid or expired token', got '%s'", resp.Error)
	}
	if diff := cmp.Diff([]string{"valid-looking-token"}, f.verifier.tokens); diff != "" {
		t.Errorf("verifier tokens mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(f.logs.String(), `"kind":"invalid_token"`) {
		t.Errorf("failure kind should be logged, got %s", f.logs.String())
	}
}

func TestMiddleware_TokenWithoutSubject(t *testing.T) {
	f := newFixture(&Claims{Email: "a@b.com"})
	handler := f.authenticator().Middleware(neverCalled(t))

	req := httptest.NewRequest(http.MethodGet, "/api/user/current", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	decodeFailure(t, rec)
}

func TestMiddleware_NewSubjectCreatesProfile(t *testing.T) {
	f := newFixture(&Claims{UID: "u1", Email: "a@b.com", EmailVerified: true})

	var got Identity
	handler := f.authenticator().Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Error("identity should be present in context")
			return
		}
		got = id
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/user/current", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	wantProfile := player.Profile{UID: "u1", Email: "a@b.com", EmailVerified: true, IsSuperAdmin: false}
	stored, err := f.players.Get(context.Background(), "u1")
	if err != nil || stored == nil {
		t.Fatalf("players/u1 should exist: %+v, %v", stored, err)
	}
	if diff := cmp.Diff(wantProfile, *stored); diff != "" {
		t.Errorf("stored profile mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantProfile, got.Profile); diff != "" {
		t.Errorf("context profile mismatch (-want +got):\n%s", diff)
	}
	if got.IsSuperAdmin {
		t.Error("admin flag should be false without an admins document")
	}
	if got.Claims.UID != "u1" {
		t.Errorf("expected claims UID u1, got %q", got.Claims.UID)
	}
	if f.players.creates != 1 {
		t.Errorf("expected one write, got %d", f.players.creates)
	}

	stored.Name = "mutated"
	again, _ := f.players.Get(context.Background(), "u1")
	if again.Name != "" {
		t.Error("the stored profile must not be shared with callers")
	}
}

func TestMiddleware_ExistingSubjectIsNotRewritten(t *testing.T) {
	f := newFixture(&Claims{UID: "u1", Email: "new@example.com", Name: "New Name"})
	existing := player.Profile{UID: "u1", Email: "old@example.com", IsSuperAdmin: true}
	if err := f.players.MemoryRepository.Create(context.Background(), existing); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var got Identity
	handler := f.authenticator().Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = MustIdentity(r.Context())
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/user/current", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if f.players.creates != 0 {
		t.Errorf("existing profile should not be rewritten, got %d writes", f.players.creates)
	}
	if diff := cmp.Diff(existing, got.Profile); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}
	if got.IsSuperAdmin {
		t.Error("admin flag comes from admins, not from the stored profile")
	}
}

func TestMiddleware_AdminFlag(t *testing.T) {
	tests := []struct {
		name     string
		adminDoc map[string]any
		want     bool
	}{
		{name: "no admin document", adminDoc: nil, want: false},
		{name: "isSuperAdmin true", adminDoc: map[string]any{"isSuperAdmin": true}, want: true},
		{name: "isSuperAdmin false", adminDoc: map[string]any{"isSuperAdmin": false}, want: false},
		{name: "field absent", adminDoc: map[string]any{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(&Claims{UID: "u1"})
			if tt.adminDoc != nil {
				f.admins.Set("u1", tt.adminDoc)
			}

			id, err := f.authenticator().Authenticate(context.Background(), "Bearer token")
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if id.IsSuperAdmin != tt.want {
				t.Errorf("IsSuperAdmin = %v, want %v", id.IsSuperAdmin, tt.want)
			}
			if id.Profile.IsSuperAdmin != tt.want {
				t.Errorf("new profile isSuperAdmin = %v, want %v", id.Profile.IsSuperAdmin, tt.want)
			}
		})
	}
}

func TestMiddleware_StoreFailures(t *testing.T) {
	storeErr := errors.New("rpc error: code = PermissionDenied")

	tests := []struct {
		name  string
		setup func(f *fixture) *Authenticator
	}{
		{
			name: "admin lookup fails",
			setup: func(f *fixture) *Authenticator {
				return NewAuthenticator(f.verifier, failingAdmins{err: storeErr}, f.players, logger.New(f.logs))
			},
		},
		{
			name: "profile create fails",
			setup: func(f *fixture) *Authenticator {
				f.players.createErr = storeErr
				return f.authenticator()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(&Claims{UID: "u1"})
			handler := tt.setup(f).Middleware(neverCalled(t))

			req := httptest.NewRequest(http.MethodGet, "/api/user/current", nil)
			req.Header.Set("Authorization", "Bearer valid-token")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			resp := decodeFailure(t, rec)
			if resp.Error != "profile lookup failed" {
				t.Errorf("expected error 'profile lookup failed', got '%s'", resp.Error)
			}
			if strings.Contains(rec.Body.String(), "PermissionDenied") {
				t.Error("store errors must not leak to the client")
			}
			logs := f.logs.String()
			if !strings.Contains(logs, `"level":"error"`) || !strings.Contains(logs, "PermissionDenied") {
				t.Errorf("store failure should be logged at error level with its cause, got %s", logs)
			}
		})
	}
}

func TestMiddleware_LogsRequestAndKeepsBody(t *testing.T) {
	f := newFixture(&Claims{UID: "u1"})

	var seenBody string
	handler := f.authenticator().Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seenBody = string(b)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/user/current", strings.NewReader(`{"score":10}`))
	req.Header.Set("Authorization", "Bearer valid-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seenBody != `{"score":10}` {
		t.Errorf("downstream handler should see the full body, got %q", seenBody)
	}

	firstLine := strings.SplitN(f.logs.String(), "\n", 2)[0]
	var entry struct {
		Timestamp string         `json:"timestamp"`
		Messages  []requestEntry `json:"messages"`
	}
	if err := json.Unmarshal([]byte(firstLine), &entry); err != nil {
		t.Fatalf("request log is not JSON: %v (%s)", err, firstLine)
	}
	want := []requestEntry{{Event: "Request: started", Method: "POST", Path: "/api/user/current", Body: `{"score":10}`}}
	if diff := cmp.Diff(want, entry.Messages); diff != "" {
		t.Errorf("request log mismatch (-want +got):\n%s", diff)
	}
	if entry.Timestamp == "" {
		t.Error("request log should carry a timestamp")
	}
}

func TestPeekBody_Truncates(t *testing.T) {
	body := strings.Repeat("x", 10)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	if got := peekBody(req, 4); got != "xxxx" {
		t.Errorf("peekBody() = %q, want %q", got, "xxxx")
	}
	rest, _ := io.ReadAll(req.Body)
	if string(rest) != body {
		t.Errorf("body after peek = %q, want %q", rest, body)
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "valid", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "empty header", header: "", wantErr: ErrMissingToken},
		{name: "wrong scheme", header: "Token abc", wantErr: ErrMalformedHeader},
		{name: "case sensitive", header: "BEARER abc", wantErr: ErrMalformedHeader},
		{name: "empty token", header: "Bearer ", wantErr: ErrMissingToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBearerToken(tt.header)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ExtractBearerToken() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractBearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}
