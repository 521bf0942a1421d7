package admin

import (
	"context"
	"sync"
)

// MemoryRepository keeps admin documents in process
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[string]map[string]any
}

// Ensure MemoryRepository implements Repository interface
var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty MemoryRepository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string]map[string]any)}
}

// Set stores the admin document for uid
func (r *MemoryRepository) Set(uid string, data map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := make(map[string]any, len(data))
	for k, v := range data {
		copied[k] = v
	}
	r.docs[uid] = copied
}

// IsSuperAdmin reads the stored document for uid
func (r *MemoryRepository) IsSuperAdmin(ctx context.Context, uid string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.docs[uid]
	if !ok {
		return false, nil
	}
	return isSuperAdmin(data), nil
}
