// Package ledger keeps the append-only verification history of published artifacts.
package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/proofkit/internal/domain/model"
)

// Journal durably stores accepted events. Seq is the event's zero-based
// position in its artifact's history.
type Journal interface {
	Append(ctx context.Context, seq uint64, ev model.VerificationEvent) error
	Replay(ctx context.Context, fn func(model.VerificationEvent) error) error
}

// history is one artifact's event log. Its mutex is the single writer lock
// for that artifact.
type history struct {
	mu       sync.Mutex
	events   []model.VerificationEvent
	actors   map[string]int
	byAction map[model.Action]int
}

func newHistory() *history {
	return &history{
		actors:   make(map[string]int),
		byAction: make(map[model.Action]int),
	}
}

func (h *history) last() (time.Time, bool) {
	if len(h.events) == 0 {
		return time.Time{}, false
	}
	return h.events[len(h.events)-1].Timestamp, true
}

func (h *history) append(ev model.VerificationEvent) {
	h.events = append(h.events, ev)
	h.actors[ev.ActorLabel]++
	h.byAction[ev.Action]++
}

// Ledger records verification events per artifact. Records for the same
// artifact are serialized; different artifacts proceed in parallel.
type Ledger struct {
	mu        sync.RWMutex
	histories map[string]*history

	journal Journal
	now     func() time.Time
	newID   func() string
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		histories: make(map[string]*history),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) historyFor(artifactID string, create bool) *history {
	l.mu.RLock()
	h, ok := l.histories[artifactID]
	l.mu.RUnlock()
	if ok || !create {
		return h
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok = l.histories[artifactID]; ok {
		return h
	}
	h = newHistory()
	l.histories[artifactID] = h
	return h
}

// Record appends ev to artifactID's history and returns the stored event.
// Artifact existence is not checked. An event earlier than the last recorded
// one fails with *OutOfOrderEventError and leaves the history unchanged;
// equal timestamps are accepted. Missing ids and timestamps are filled in.
func (l *Ledger) Record(ctx context.Context, artifactID string, ev model.VerificationEvent) (model.VerificationEvent, error) {
	if err := ctx.Err(); err != nil {
		return model.VerificationEvent{}, err
	}
	ev, err := l.normalize(artifactID, ev)
	if err != nil {
		return model.VerificationEvent{}, err
	}

	h := l.historyFor(artifactID, true)
	h.mu.Lock()
	defer h.mu.Unlock()

	if last, ok := h.last(); ok && ev.Timestamp.Before(last) {
		return model.VerificationEvent{}, &OutOfOrderEventError{ArtifactID: artifactID, EventTime: ev.Timestamp, LastTime: last}
	}
	if l.journal != nil {
		if err := l.journal.Append(ctx, uint64(len(h.events)), ev); err != nil {
			return model.VerificationEvent{}, fmt.Errorf("journal append: %w", err)
		}
	}
	h.append(ev)
	return ev, nil
}

func (l *Ledger) normalize(artifactID string, ev model.VerificationEvent) (model.VerificationEvent, error) {
	if artifactID == "" {
		return ev, invalidEvent("artifact id is required")
	}
	if ev.ArtifactID != "" && ev.ArtifactID != artifactID {
		return ev, invalidEvent("event belongs to artifact %q, not %q", ev.ArtifactID, artifactID)
	}
	if ev.ActorLabel == "" {
		return ev, invalidEvent("actor label is required")
	}
	if !ev.Action.Valid() {
		return ev, invalidEvent("unknown action %q", ev.Action)
	}
	ev.ArtifactID = artifactID
	if ev.ID == "" {
		ev.ID = l.newID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.now()
	}
	return ev, nil
}

// Stats returns totals for artifactID. Unknown artifacts have zero stats.
func (l *Ledger) Stats(artifactID string) model.LedgerStats {
	st := model.LedgerStats{ArtifactID: artifactID, ByAction: map[model.Action]int{}}
	h := l.historyFor(artifactID, false)
	if h == nil {
		return st
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	st.Total = len(h.events)
	st.UniqueVerifiers = len(h.actors)
	for a, n := range h.byAction {
		st.ByAction[a] = n
	}
	st.LastEventAt, _ = h.last()
	return st
}

// Last returns the timestamp of artifactID's most recent event. ok is false
// while the artifact has no history.
func (l *Ledger) Last(artifactID string) (ts time.Time, ok bool) {
	h := l.historyFor(artifactID, false)
	if h == nil {
		return time.Time{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last()
}

// Recompute derives stats from a full event sequence.
func Recompute(artifactID string, events []model.VerificationEvent) model.LedgerStats {
	st := model.LedgerStats{ArtifactID: artifactID, ByAction: map[model.Action]int{}}
	actors := make(map[string]struct{})
	for _, ev := range events {
		st.Total++
		st.ByAction[ev.Action]++
		actors[ev.ActorLabel] = struct{}{}
		if ev.Timestamp.After(st.LastEventAt) {
			st.LastEventAt = ev.Timestamp
		}
	}
	st.UniqueVerifiers = len(actors)
	return st
}

// Events returns a copy of artifactID's history in recorded order.
func (l *Ledger) Events(artifactID string) []model.VerificationEvent {
	h := l.historyFor(artifactID, false)
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.events)
}

// Recent returns up to limit events, most recent first.
func (l *Ledger) Recent(artifactID string, limit int) ([]model.VerificationEvent, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	h := l.historyFor(artifactID, false)
	if h == nil {
		return []model.VerificationEvent{}, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	n := min(limit, len(h.events))
	out := make([]model.VerificationEvent, 0, n)
	for i := len(h.events) - 1; i >= len(h.events)-n; i-- {
		out = append(out, h.events[i])
	}
	return out, nil
}

// Size returns the number of artifacts the ledger tracks.
func (l *Ledger) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.histories)
}

// Restore replays the journal into an empty ledger. Replayed events are
// re-checked for order and are not journaled again.
func (l *Ledger) Restore(ctx context.Context) (int, error) {
	if l.journal == nil {
		return 0, nil
	}
	n := 0
	err := l.journal.Replay(ctx, func(ev model.VerificationEvent) error {
		h := l.historyFor(ev.ArtifactID, true)
		h.mu.Lock()
		defer h.mu.Unlock()
		if last, ok := h.last(); ok && ev.Timestamp.Before(last) {
			return &OutOfOrderEventError{ArtifactID: ev.ArtifactID, EventTime: ev.Timestamp, LastTime: last}
		}
		h.append(ev)
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("restore ledger: %w", err)
	}
	return n, nil
}
