package player

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// collectionName is the Firestore collection for player profiles
	collectionName = "players"
)

// FirestoreRepository implements Repository interface using Firestore
type FirestoreRepository struct {
	client *firestore.Client
}

// Ensure FirestoreRepository implements Repository interface
var _ Repository = (*FirestoreRepository)(nil)

// NewFirestoreRepository creates a new FirestoreRepository
func NewFirestoreRepository(client *firestore.Client) *FirestoreRepository {
	return &FirestoreRepository{
		client: client,
	}
}

// Get retrieves a player profile by uid
//
// Parameters:
//   - ctx: Context for cancellation control
//   - uid: Subject id issued by the identity provider
//
// Returns:
//   - Pointer to the profile (nil if not found)
//   - Error if Firestore operation fails (nil for not found)
func (r *FirestoreRepository) Get(ctx context.Context, uid string) (*Profile, error) {
	doc, err := r.client.Collection(collectionName).Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	p := FromMap(doc.Data())
	if p.UID == "" {
		p.UID = doc.Ref.ID
	}
	return &p, nil
}

// Create writes players/{uid}. Firestore rejects the write when the document
// already exists, so concurrent first logins cannot overwrite each other.
func (r *FirestoreRepository) Create(ctx context.Context, p Profile) error {
	_, err := r.client.Collection(collectionName).Doc(p.UID).Create(ctx, p.ToMap())
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}
