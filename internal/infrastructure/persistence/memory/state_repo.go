// Package memory provides an in-memory persistence gateway for tests and
// ephemeral sessions.
package memory

import (
	"context"
	"sync"

	"github.com/bnema/marlin/internal/domain/repository"
)

type stateRepo struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewStateRepository creates an empty in-memory state repository.
func NewStateRepository() repository.StateRepository {
	return &stateRepo{blobs: make(map[string][]byte)}
}

func (r *stateRepo) Get(_ context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	blob, ok := r.blobs[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

func (r *stateRepo) Set(_ context.Context, key string, blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := make([]byte, len(blob))
	copy(stored, blob)
	r.blobs[key] = stored
	return nil
}
