package player

import (
	"context"
	"sync"
)

// MemoryRepository is an in-process Repository, used when no Firestore
// project is configured and in tests
type MemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// Ensure MemoryRepository implements Repository interface
var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty MemoryRepository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{profiles: make(map[string]Profile)}
}

// Get returns a copy of the stored profile, or nil if absent
func (r *MemoryRepository) Get(ctx context.Context, uid string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[uid]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Create stores p unless a profile with the same uid exists
func (r *MemoryRepository) Create(ctx context.Context, p Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[p.UID]; ok {
		return ErrAlreadyExists
	}
	r.profiles[p.UID] = p
	return nil
}

// Len returns the number of stored profiles
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}
