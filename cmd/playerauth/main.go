package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/otiai10/playerauth/internal/admin"
	"github.com/otiai10/playerauth/internal/api"
	"github.com/otiai10/playerauth/internal/auth"
	"github.com/otiai10/playerauth/internal/config"
	"github.com/otiai10/playerauth/internal/logger"
	"github.com/otiai10/playerauth/internal/player"
	"github.com/otiai10/playerauth/internal/store"
	"github.com/otiai10/playerauth/internal/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		logger.Default().Error("playerauth exited", map[string]any{"error": err})
		os.Exit(1)
	}
}

// run wires the service and blocks until a signal or a server error.
// Every error is returned so deferred cleanup runs before the process exits.
func run(args []string, stdout io.Writer) error {
	// Parse command-line flags
	fs := flag.NewFlagSet("playerauth", flag.ContinueOnError)
	memoryStore := fs.Bool("memory-store", false, "Keep player and admin documents in memory instead of Firestore")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Load .env file if it exists (for local development)
	// Silently ignore if file doesn't exist (production uses real env vars)
	_ = godotenv.Load(".env")

	cfg, err := config.Load(os.Getenv("PLAYERAUTH_CONFIG"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(stdout,
		logger.WithLevel(cfg.Logging.Level),
		logger.WithConsole(cfg.Logging.Format == "console"),
	)
	logger.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fsCfg := store.FirestoreConfig{
		ProjectID:       cfg.ProjectID(),
		Database:        cfg.Firebase.Database,
		CredentialsJSON: cfg.Firebase.ServiceAccount,
	}

	// The Firebase app is created once and shared by token verification
	app, err := store.NewFirebaseApp(ctx, fsCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize firebase: %w", err)
	}

	verifier, err := auth.NewFirebaseTokenVerifier(ctx, app, auth.FirebaseTokenVerifierConfig{
		TenantID:     cfg.Firebase.TenantID,
		CheckRevoked: cfg.Firebase.CheckRevoked,
	})
	if err != nil {
		return fmt.Errorf("failed to create firebase auth verifier: %w", err)
	}

	var (
		players   player.Repository
		admins    admin.Repository
		firestore *store.FirestoreClient
	)

	if *memoryStore {
		log.Warn("Using in-memory player and admin storage; data is lost on exit", nil)
		players = player.NewMemoryRepository()
		admins = admin.NewMemoryRepository()
	} else {
		firestore, err = store.NewFirestoreClient(ctx, fsCfg)
		if err != nil {
			return fmt.Errorf("failed to create firestore client: %w", err)
		}
		defer firestore.Close()

		log.Info("Firestore client ready", map[string]any{
			"project":  firestore.ProjectID(),
			"database": firestore.Database(),
		})
		players = player.NewFirestoreRepository(firestore.Client())
		admins = admin.NewFirestoreRepository(firestore.Client())
	}

	handler := api.NewRouter(api.RouterConfig{
		Authenticator:  auth.NewAuthenticator(verifier, admins, players, log),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         log,
	})

	server := api.NewServer(cfg.Addr(), handler)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Log("listening successfully on " + cfg.Server.Port)
	log.Info("playerauth started", map[string]any{
		"addr":    server.Addr(),
		"version": version.Version,
		"hash":    version.CommitHash,
	})

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var serveErr error
	select {
	case sig := <-sigChan:
		log.Info("Received signal", map[string]any{"signal": sig.String()})
	case serveErr = <-errCh:
		if serveErr != nil {
			log.Error("API server error", map[string]any{"error": serveErr})
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("API server shutdown error", map[string]any{"error": err})
	}

	log.Info("Goodbye!", nil)
	return serveErr
}
