// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/proofkit/internal/adapters/catalog"
	eventqueue "github.com/okian/proofkit/internal/adapters/mq/queue"
	workerpool "github.com/okian/proofkit/internal/adapters/mq/worker"
	"github.com/okian/proofkit/internal/adapters/repository"
	"github.com/okian/proofkit/internal/domain/compose"
	"github.com/okian/proofkit/internal/domain/crossref"
	"github.com/okian/proofkit/internal/domain/dedupe"
	"github.com/okian/proofkit/internal/domain/eligibility"
	"github.com/okian/proofkit/internal/domain/ledger"
	"github.com/okian/proofkit/internal/domain/model"
	"github.com/okian/proofkit/internal/domain/proofhash"
	"github.com/okian/proofkit/pkg/logger"
	"github.com/okian/proofkit/pkg/metrics"
)

// Service composes artifacts, stores them and feeds verification events
// through the queue into the ledger.
type Service struct {
	mu sync.Mutex

	// Collaborators
	catalog catalog.Catalog
	store   repository.Store
	journal ledger.Journal

	// Built by Start
	validator  *crossref.Validator
	composer   *compose.Composer
	ledger     *ledger.Ledger
	deduper    dedupe.Deduper
	eventQueue *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool

	// Configuration
	workerCount  int
	queueSize    int
	dedupeSize   int
	crossrefOpts []crossref.Option
	composeOpts  []compose.Option
	ledgerOpts   []ledger.Option

	// Newest timestamp queued per artifact
	gateMu sync.Mutex
	marks  map[string]time.Time

	ready   atomic.Bool
	stopped bool

	logger logger.Logger
}

// New constructs a Service. Nothing runs until Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   50_000,
		dedupeSize:  200_000,
		store:       repository.NewMemoryStore(),
		marks:       make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		s.catalog, _ = catalog.NewStatic(nil, nil)
	}
	return s
}

// Start builds the domain components, replays the journal and starts the
// worker pool. Calling Start again is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready.Load() {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting proof service...")

	v, err := crossref.New(s.crossrefOpts...)
	if err != nil {
		return fmt.Errorf("cross-document validator: %w", err)
	}
	s.validator = v
	s.composer = compose.New(append(s.composeOpts, compose.WithValidator(v))...)

	ledgerOpts := s.ledgerOpts
	if s.journal != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithJournal(s.journal))
	}
	s.ledger = ledger.New(ledgerOpts...)
	restored, err := s.ledger.Restore(ctx)
	if err != nil {
		return err
	}
	metrics.UpdateLedgerArtifacts(s.ledger.Size())

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.ledger,
		workerpool.WithLogger(s.logger.Named("workers")),
		workerpool.WithResultHandler(s.onRecorded),
	)
	s.workerPool.Start(ctx)

	s.ready.Store(true)
	s.logger.Info(ctx, "proof service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Int("restored_events", restored),
		logger.Int("ledger_artifacts", s.ledger.Size()),
	)
	return nil
}

// onRecorded forgets the key of an event the ledger refused so a corrected
// resubmission is not reported as a duplicate.
func (s *Service) onRecorded(ctx context.Context, ev model.VerificationEvent, err error) {
	if err != nil {
		s.deduper.Unrecord(ctx, dedupe.Key(ev.ArtifactID, ev.ID))
	}
}

// Stop closes the queue and waits for queued events to reach the ledger.
// Reads keep working afterwards; new events are refused.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready.Load() || s.stopped {
		return nil
	}
	s.logger.Info(ctx, "stopping proof service...")
	s.stopped = true
	if err := s.workerPool.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info(ctx, "proof service stopped")
	return nil
}

func (s *Service) check() error {
	if !s.ready.Load() {
		return ErrNotStarted
	}
	return nil
}

// SeenAndRecord atomically checks if a dedupe key was seen and records it if
// not. Keys come from dedupe.Key.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	if s.check() != nil {
		return false
	}
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord removes a dedupe key from the seen set so it can be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	if s.check() != nil {
		return
	}
	s.deduper.Unrecord(ctx, id)
}

// Size returns the number of remembered event ids.
func (s *Service) Size() int64 {
	if s.check() != nil {
		return 0
	}
	return s.deduper.Size()
}

// Submit queues ev for asynchronous recording and returns it with its
// timestamp filled in. An event earlier than the newest one already accepted
// for its artifact fails with *ledger.OutOfOrderEventError, so everything
// that reaches the queue is in order. A full or closed queue fails with
// eventqueue.ErrFull.
func (s *Service) Submit(ctx context.Context, ev model.VerificationEvent) (model.VerificationEvent, error) {
	if err := s.check(); err != nil {
		return ev, err
	}
	s.gateMu.Lock()
	defer s.gateMu.Unlock()

	mark, ok := s.marks[ev.ArtifactID]
	if last, found := s.ledger.Last(ev.ArtifactID); found && (!ok || last.After(mark)) {
		mark, ok = last, true
	}
	if ev.Timestamp.IsZero() {
		// Arrival time, never behind the artifact's newest event.
		ev.Timestamp = time.Now().UTC()
		if ok && ev.Timestamp.Before(mark) {
			ev.Timestamp = mark
		}
	}
	if ok && ev.Timestamp.Before(mark) {
		metrics.RecordLedgerOutOfOrder()
		return ev, &ledger.OutOfOrderEventError{ArtifactID: ev.ArtifactID, EventTime: ev.Timestamp, LastTime: mark}
	}

	if !s.eventQueue.Enqueue(ctx, ev) {
		s.logger.Warn(ctx, "event rejected by queue",
			logger.String("event_id", ev.ID),
			logger.String("artifact_id", ev.ArtifactID),
		)
		return ev, fmt.Errorf("event %s: %w", ev.ID, eventqueue.ErrFull)
	}
	s.marks[ev.ArtifactID] = ev.Timestamp
	return ev, nil
}

// resolve turns a selection into items and references. Catalog references
// are used only for id selections that did not bring their own.
func (s *Service) resolve(ctx context.Context, sel model.Selection) ([]model.SelectableItem, []model.Reference, error) {
	items := sel.Items
	if !sel.Inline() {
		var err error
		items, err = catalog.Resolve(ctx, s.catalog, sel.ItemIDs)
		if err != nil {
			return nil, nil, err
		}
	}

	refs := sel.References
	if refs == nil && !sel.Inline() && len(sel.ItemIDs) > 0 {
		var err error
		refs, err = catalog.ReferencesAmong(ctx, s.catalog, sel.ItemIDs)
		if err != nil {
			return nil, nil, err
		}
	}
	return items, refs, nil
}

// CheckEligibility reports every unmet eligibility rule for sel.
func (s *Service) CheckEligibility(ctx context.Context, sel model.Selection) (eligibility.Result, error) {
	if err := s.check(); err != nil {
		return eligibility.Result{}, err
	}
	items, _, err := s.resolve(ctx, sel)
	if err != nil {
		return eligibility.Result{}, err
	}
	return eligibility.Check(items), nil
}

// Compose composes sel, attaches its cross-document validation and stores
// the artifact.
func (s *Service) Compose(ctx context.Context, sel model.Selection) (model.ComposedArtifact, error) {
	if err := s.check(); err != nil {
		return model.ComposedArtifact{}, err
	}
	start := time.Now()
	defer func() {
		metrics.RecordCompositionDuration(float64(time.Since(start).Microseconds()) / 1000)
	}()

	items, refs, err := s.resolve(ctx, sel)
	if err != nil {
		metrics.RecordComposition(outcome(err))
		return model.ComposedArtifact{}, err
	}
	art, err := s.composer.ComposeAndValidate(ctx, items, refs)
	if err != nil {
		metrics.RecordComposition(outcome(err))
		s.logger.Debug(ctx, "composition refused", logger.Error(err))
		return model.ComposedArtifact{}, err
	}
	if err := s.store.Put(ctx, art); err != nil {
		metrics.RecordComposition(outcome(err))
		return model.ComposedArtifact{}, fmt.Errorf("store artifact: %w", err)
	}

	metrics.RecordComposition("success")
	metrics.RecordRiskScore(art.RiskScore)
	if art.Validation != nil {
		metrics.RecordValidation(art.Validation.IsValid, art.Validation.Confidence, art.Validation.Severities())
	}
	s.logger.Info(ctx, "artifact composed",
		logger.String("artifact_id", art.ID),
		logger.Int("items", len(art.ItemIDs)),
		logger.Int("risk_score", art.RiskScore),
		logger.String("proof_hash", art.ProofHash),
	)
	return art, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, compose.ErrIneligible):
		return "ineligible"
	case errors.Is(err, model.ErrInvalidItemData):
		return "invalid_item_data"
	case errors.Is(err, catalog.ErrUnknownItem):
		return "unknown_item"
	default:
		return "error"
	}
}

// Validate runs cross-document validation over sel without composing.
func (s *Service) Validate(ctx context.Context, sel model.Selection) (model.ValidationResult, error) {
	if err := s.check(); err != nil {
		return model.ValidationResult{}, err
	}
	items, refs, err := s.resolve(ctx, sel)
	if err != nil {
		return model.ValidationResult{}, err
	}
	res := s.validator.Validate(items, refs)
	metrics.RecordValidation(res.IsValid, res.Confidence, res.Severities())
	return res, nil
}

// Artifact returns a stored artifact.
func (s *Service) Artifact(ctx context.Context, id string) (model.ComposedArtifact, error) {
	return s.store.Get(ctx, id)
}

// Artifacts returns up to limit artifacts, most recent first.
func (s *Service) Artifacts(ctx context.Context, limit int) ([]model.ComposedArtifact, error) {
	return s.store.List(ctx, limit)
}

// VerifyArtifact re-derives an artifact's proof hash from the catalog's
// current items. A changed risk impact or content hash shows as a mismatch;
// an item removed from the catalog is an error.
func (s *Service) VerifyArtifact(ctx context.Context, id string) (model.ProofCheck, error) {
	art, err := s.store.Get(ctx, id)
	if err != nil {
		return model.ProofCheck{}, err
	}
	items, err := catalog.Resolve(ctx, s.catalog, art.ItemIDs)
	if err != nil {
		return model.ProofCheck{}, err
	}
	recomputed, err := proofhash.Derive(items)
	if err != nil {
		return model.ProofCheck{}, err
	}
	return model.ProofCheck{
		ArtifactID: art.ID,
		ProofHash:  art.ProofHash,
		Recomputed: recomputed,
		Match:      recomputed == art.ProofHash,
	}, nil
}

// LedgerStats returns verification totals for an existing artifact.
func (s *Service) LedgerStats(ctx context.Context, artifactID string) (model.LedgerStats, error) {
	if err := s.check(); err != nil {
		return model.LedgerStats{}, err
	}
	if _, err := s.store.Get(ctx, artifactID); err != nil {
		return model.LedgerStats{}, err
	}
	return s.ledger.Stats(artifactID), nil
}

// RecentEvents returns up to limit events of an existing artifact, most
// recent first.
func (s *Service) RecentEvents(ctx context.Context, artifactID string, limit int) ([]model.VerificationEvent, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if _, err := s.store.Get(ctx, artifactID); err != nil {
		return nil, err
	}
	return s.ledger.Recent(artifactID, limit)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	ctx := context.Background()
	stats := map[string]any{
		"started":          s.ready.Load(),
		"worker_count":     s.workerCount,
		"queue_capacity":   s.queueSize,
		"dedupe_size":      s.dedupeSize,
		"artifacts_stored": s.store.Count(ctx),
	}
	if sized, ok := s.catalog.(interface{ Len() int }); ok {
		stats["catalog_items"] = sized.Len()
	}
	if s.check() == nil {
		stats["queue_length"] = s.eventQueue.Len(ctx)
		stats["ledger_artifacts"] = s.ledger.Size()
		stats["dedupe_entries"] = s.deduper.Size()
		stats["confidence_threshold"] = s.validator.Threshold()
	}
	return stats
}
