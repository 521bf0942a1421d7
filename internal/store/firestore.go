package store

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/otiai10/playerauth/internal/logger"
)

// FirestoreClient wraps the Firestore client for data persistence
type FirestoreClient struct {
	client    *firestore.Client
	projectID string
	database  string
}

// Ensure FirestoreClient implements Store interface
var _ Store = (*FirestoreClient)(nil)

// FirestoreConfig holds configuration for the Firebase app and Firestore client
type FirestoreConfig struct {
	ProjectID       string // GCP Project ID (optional, detected from credentials when empty)
	Database        string // Database name (optional, defaults to "(default)")
	CredentialsJSON string // Service account JSON (optional, ADC when empty)
}

// clientOptions returns the credential options for Google API clients.
// Credentials are skipped when talking to the Firestore emulator.
func (c FirestoreConfig) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if c.CredentialsJSON != "" && os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(c.CredentialsJSON)))
	}
	return opts
}

// NewFirebaseApp initializes the Firebase Admin app once for the process.
// The returned app is passed to the token verifier; it has no teardown.
func NewFirebaseApp(ctx context.Context, cfg FirestoreConfig) (*firebase.App, error) {
	var fbCfg *firebase.Config
	if cfg.ProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbCfg, cfg.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase app: %w", err)
	}
	return app, nil
}

// NewFirestoreClient creates a new Firestore client.
// If FIRESTORE_EMULATOR_HOST is set, the client will connect to the emulator.
func NewFirestoreClient(ctx context.Context, cfg FirestoreConfig) (*FirestoreClient, error) {
	if emulatorHost := os.Getenv("FIRESTORE_EMULATOR_HOST"); emulatorHost != "" {
		logger.Default().Info("Using Firestore emulator", map[string]any{"host": emulatorHost})
	}

	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}

	database := cfg.Database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, database, cfg.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &FirestoreClient{
		client:    client,
		projectID: projectID,
		database:  database,
	}, nil
}

// Close releases resources held by the Firestore client
func (f *FirestoreClient) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}

// Client returns the underlying Firestore client
func (f *FirestoreClient) Client() *firestore.Client {
	return f.client
}

// ProjectID returns the GCP project ID
func (f *FirestoreClient) ProjectID() string {
	return f.projectID
}

// Database returns the Firestore database name
func (f *FirestoreClient) Database() string {
	return f.database
}
