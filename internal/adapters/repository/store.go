// Package repository persists composed artifacts.
package repository

import (
	"context"

	"github.com/okian/proofkit/internal/domain/model"
)

// Store holds composed artifacts. Artifacts are immutable: an id is written once.
type Store interface {
	// Put stores a new artifact. Returns ErrAlreadyExists if the id is taken.
	Put(ctx context.Context, a model.ComposedArtifact) error

	// Get returns the artifact with id, or ErrNotFound.
	Get(ctx context.Context, id string) (model.ComposedArtifact, error)

	// List returns up to limit artifacts, most recently created first.
	List(ctx context.Context, limit int) ([]model.ComposedArtifact, error)

	// Count returns the number of stored artifacts.
	Count(ctx context.Context) int
}
