// Package catalog supplies selectable items and their declared references.
//
// The core only reads from a catalog. Items are returned as copies so a
// caller cannot mutate catalog state.
package catalog

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/okian/proofkit/internal/domain/model"
)

// Catalog is the read side of an item source.
type Catalog interface {
	// Items returns every item keyed by id.
	Items(ctx context.Context) (map[string]model.SelectableItem, error)
	// References returns every declared reference.
	References(ctx context.Context) ([]model.Reference, error)
}

// Resolve looks up ids in order. Every missing id is reported in one
// *UnknownItemError.
func Resolve(ctx context.Context, c Catalog, ids []string) ([]model.SelectableItem, error) {
	all, err := c.Items(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.SelectableItem, 0, len(ids))
	var missing []string
	for _, id := range ids {
		it, ok := all[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, it)
	}
	if len(missing) > 0 {
		return nil, &UnknownItemError{IDs: missing}
	}
	return out, nil
}

// ReferencesAmong returns declared references whose source is one of ids.
func ReferencesAmong(ctx context.Context, c Catalog, ids []string) ([]model.Reference, error) {
	refs, err := c.References(ctx)
	if err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]model.Reference, 0)
	for _, r := range refs {
		if _, ok := want[r.SourceID]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// Static is an in-memory catalog.
type Static struct {
	mu    sync.RWMutex
	items map[string]model.SelectableItem
	refs  []model.Reference
}

// NewStatic builds a catalog from items and refs. Items must have unique,
// non-empty ids and known kinds and statuses.
func NewStatic(items []model.SelectableItem, refs []model.Reference) (*Static, error) {
	s := &Static{}
	if err := s.Replace(items, refs); err != nil {
		return nil, err
	}
	return s, nil
}

// Replace swaps the catalog content atomically.
func (s *Static) Replace(items []model.SelectableItem, refs []model.Reference) error {
	idx, err := index(items)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.items = idx
	s.refs = slices.Clone(refs)
	s.mu.Unlock()
	return nil
}

// Items implements Catalog.
func (s *Static) Items(ctx context.Context) (map[string]model.SelectableItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.items), nil
}

// References implements Catalog.
func (s *Static) References(ctx context.Context) ([]model.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.refs), nil
}

// Len returns the number of items.
func (s *Static) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// index validates item structure. Risk impact and content hash are left to
// the domain so malformed data surfaces as invalid item data at composition.
func index(items []model.SelectableItem) (map[string]model.SelectableItem, error) {
	idx := make(map[string]model.SelectableItem, len(items))
	for i, it := range items {
		switch {
		case it.ID == "":
			return nil, fmt.Errorf("%w: item %d has no id", ErrInvalidCatalog, i)
		case !it.Kind.Valid():
			return nil, fmt.Errorf("%w: item %q has unknown kind %q", ErrInvalidCatalog, it.ID, it.Kind)
		case !it.Status.Valid():
			return nil, fmt.Errorf("%w: item %q has unknown status %q", ErrInvalidCatalog, it.ID, it.Status)
		case len(it.ContentHash) > model.MaxContentHashLen:
			return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, it.CheckContentHash())
		}
		if _, dup := idx[it.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate item id %q", ErrInvalidCatalog, it.ID)
		}
		idx[it.ID] = it
	}
	return idx, nil
}
