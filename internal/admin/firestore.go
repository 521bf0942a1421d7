package admin

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// collectionName is the Firestore collection for administrators
	collectionName = "admins"
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

// IsSuperAdmin reads admins/{uid}
func (r *FirestoreRepository) IsSuperAdmin(ctx context.Context, uid string) (bool, error) {
	doc, err := r.client.Collection(collectionName).Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to get admin: %w", err)
	}
	return isSuperAdmin(doc.Data()), nil
}
