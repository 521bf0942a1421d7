package player

import (
	"context"
	"errors"
	"fmt"
)

// ErrAlreadyExists is returned by Create when players/{uid} already exists
var ErrAlreadyExists = errors.New("player profile already exists")

// Repository defines the interface for player profile storage
type Repository interface {
	// Get retrieves the profile stored under uid.
	// Returns (nil, nil) when the document does not exist.
	Get(ctx context.Context, uid string) (*Profile, error)

	// Create writes a new profile keyed by p.UID.
	// Returns ErrAlreadyExists if a profile is already stored.
	Create(ctx context.Context, p Profile) error
}

// GetOrCreate returns the stored profile for candidate.UID, writing candidate
// first if none exists. Existing profiles are returned unchanged. When a
// concurrent request creates the profile first, the stored one is returned.
// The boolean reports whether this call wrote the document.
func GetOrCreate(ctx context.Context, repo Repository, candidate Profile) (*Profile, bool, error) {
	if candidate.UID == "" {
		return nil, false, fmt.Errorf("player uid is required")
	}

	existing, err := repo.Get(ctx, candidate.UID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get player: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	err = repo.Create(ctx, candidate)
	switch {
	case err == nil:
		created := candidate
		return &created, true, nil
	case errors.Is(err, ErrAlreadyExists):
		winner, err := repo.Get(ctx, candidate.UID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to get player after create conflict: %w", err)
		}
		if winner == nil {
			return nil, false, fmt.Errorf("player %s reported as existing but not found", candidate.UID)
		}
		return winner, false, nil
	default:
		return nil, false, fmt.Errorf("failed to create player: %w", err)
	}
}
