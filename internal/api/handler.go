package api

import (
	"encoding/json"
	"net/http"

	"github.com/otiai10/playerauth/internal/auth"
	"github.com/otiai10/playerauth/internal/logger"
	"github.com/otiai10/playerauth/internal/version"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse represents a plain message response
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Hash    string `json:"hash"`
	Version string `json:"version"`
}

// UserHandler handles the authenticated user's endpoints
type UserHandler struct {
	log *logger.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(log *logger.Logger) *UserHandler {
	return &UserHandler{log: log}
}

// GetCurrent handles GET /api/user/current.
// Returns the player profile attached by the auth middleware. Only the
// profile schema is returned: extra fields stored on players/{uid} by other
// writers are not included. A request that reached here without an identity
// is a wiring error and gets a 500.
func (h *UserHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.log.Error("identity missing from request context", map[string]any{
			"path": r.URL.Path,
		})
		writeError(w, "authentication context missing", http.StatusInternalServerError)
		return
	}

	writeJSON(w, id.Profile, http.StatusOK)
}

// Hello handles GET /hello
func Hello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, MessageResponse{Message: "Welcome"}, http.StatusOK)
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok", Hash: version.CommitHash, Version: version.Version}, http.StatusOK)
}

func writeJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Already wrote headers, can only log
		return
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, ErrorResponse{Error: message}, status)
}
