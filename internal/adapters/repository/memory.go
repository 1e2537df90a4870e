package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/proofkit/internal/domain/model"
	"github.com/okian/proofkit/pkg/metrics"
)

// MemoryStore is an in-process Store. Listing follows insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]model.ComposedArtifact
	order []string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]model.ComposedArtifact)}
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, a model.ComposedArtifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[a.ID]; ok {
		metrics.RecordErrorByComponent("repository", "already_exists")
		return fmt.Errorf("%w: %s", ErrAlreadyExists, a.ID)
	}
	s.byID[a.ID] = clone(a)
	s.order = append(s.order, a.ID)
	metrics.UpdateArtifactsStored(len(s.order))
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (model.ComposedArtifact, error) {
	if err := ctx.Err(); err != nil {
		return model.ComposedArtifact{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.ComposedArtifact{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return clone(a), nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]model.ComposedArtifact, error) {
	if limit < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := min(limit, len(s.order))
	out := make([]model.ComposedArtifact, 0, n)
	for i := len(s.order) - 1; i >= len(s.order)-n; i-- {
		out = append(out, clone(s.byID[s.order[i]]))
	}
	return out, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// clone detaches slices and the validation pointer from the caller's copy.
func clone(a model.ComposedArtifact) model.ComposedArtifact {
	if a.Validation != nil {
		return a.WithValidation(*a.Validation)
	}
	a.ItemIDs = a.Items()
	return a
}
