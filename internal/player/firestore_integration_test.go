//go:build integration

package player

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/otiai10/playerauth/internal/store"
)

// TestFirestoreRepository_Integration runs against the Firestore emulator.
// Run with: FIRESTORE_EMULATOR_HOST=localhost:8080 go test -tags=integration ./internal/player/... -v
func TestFirestoreRepository_Integration(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set, skipping integration test")
	}

	ctx := context.Background()
	client, err := store.NewFirestoreClient(ctx, store.FirestoreConfig{ProjectID: "playerauth-test"})
	if err != nil {
		t.Fatalf("failed to create Firestore client: %v", err)
	}
	defer client.Close()

	repo := NewFirestoreRepository(client.Client())
	uid := "integration-test-" + time.Now().Format("20060102-150405.000")

	t.Run("missing profile", func(t *testing.T) {
		p, err := repo.Get(ctx, uid)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if p != nil {
			t.Fatalf("expected nil profile, got %+v", p)
		}
	})

	t.Run("create then get", func(t *testing.T) {
		if err := repo.Create(ctx, Profile{UID: uid, Email: "it@example.com"}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		p, err := repo.Get(ctx, uid)
		if err != nil || p == nil {
			t.Fatalf("Get after create: %+v, %v", p, err)
		}
		if p.Email != "it@example.com" || p.Name != "" || p.EmailVerified || p.IsSuperAdmin {
			t.Errorf("unexpected profile: %+v", p)
		}
	})

	t.Run("second create is rejected", func(t *testing.T) {
		err := repo.Create(ctx, Profile{UID: uid, Email: "other@example.com"})
		if err != ErrAlreadyExists {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}
