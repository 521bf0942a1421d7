package api

import (
	"net/http"

	"github.com/otiai10/playerauth/internal/auth"
	"github.com/otiai10/playerauth/internal/logger"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	Authenticator  *auth.Authenticator // nil leaves /api/ unauthenticated
	AllowedOrigins []string
	CORSDebug      bool
	Logger         *logger.Logger // nil uses logger.Default()
}

// NewRouter creates the HTTP handler with all routes and middleware configured.
// Everything under /api/ goes through the Authenticator; /hello and /health
// are public.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	mux := http.NewServeMux()
	registerPublicRoutes(mux)

	protectedMux := http.NewServeMux()
	registerUserRoutes(protectedMux, NewUserHandler(log))
	protectedMux.HandleFunc("/", notFound)

	var protected http.Handler = protectedMux
	if cfg.Authenticator != nil {
		protected = cfg.Authenticator.Middleware(protectedMux)
	}
	mux.Handle("/api/", protected)

	return Chain(
		RecoveryMiddleware(log),
		LoggingMiddleware(log),
		NewCORSMiddleware(CORSConfig{AllowedOrigins: cfg.AllowedOrigins, Debug: cfg.CORSDebug}),
		JSONContentTypeMiddleware,
	)(mux)
}

// registerPublicRoutes registers routes that don't require authentication
func registerPublicRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/hello", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			Hello(w, r)
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			Health(w, r)
		default:
			writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/", notFound)
}

// registerUserRoutes registers the current user's routes
func registerUserRoutes(mux *http.ServeMux, h *UserHandler) {
	mux.HandleFunc("/api/user/current", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.GetCurrent(w, r)
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, "not found", http.StatusNotFound)
}
