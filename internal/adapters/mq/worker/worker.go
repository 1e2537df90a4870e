// Package worker drains the event queue into the verification ledger.
//
// A single dispatcher reads the queue and routes each event to the worker
// that owns its artifact (FNV-1a of the artifact id modulo the pool size).
// One worker per artifact keeps per-artifact order equal to enqueue order
// while different artifacts are recorded in parallel.
package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/proofkit/internal/adapters/mq/queue"
	"github.com/okian/proofkit/internal/domain/ledger"
	"github.com/okian/proofkit/internal/domain/model"
	"github.com/okian/proofkit/pkg/logger"
	"github.com/okian/proofkit/pkg/metrics"
)

const (
	defaultShardBuffer = 256
	shutdownTimeout    = 30 * time.Second
)

// Event is what workers read off the queue.
type Event = queue.Event

// Recorder appends an event to an artifact's history.
type Recorder interface {
	Record(ctx context.Context, artifactID string, ev model.VerificationEvent) (model.VerificationEvent, error)
}

// Queue defines how the pool receives events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// ResultFunc observes the outcome of every processed event. err is nil when
// the event was recorded; stored is the event as the ledger kept it.
type ResultFunc func(ctx context.Context, stored model.VerificationEvent, err error)

// shard is one worker and its private inbox.
type shard struct {
	name   string
	in     chan Event
	logger logger.Logger
}

// Pool owns the dispatcher and the workers.
type Pool struct {
	queue    Queue
	recorder Recorder
	shards   []*shard

	bufferSize int
	onResult   ResultFunc
	logger     logger.Logger

	startOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	done      chan struct{}
}

// NewPool creates a pool of workerCount workers. workerCount < 1 selects
// runtime.NumCPU().
func NewPool(workerCount int, q Queue, r Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		queue:      q,
		recorder:   r,
		bufferSize: defaultShardBuffer,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("worker-pool")
	}

	p.shards = make([]*shard, workerCount)
	for i := range p.shards {
		name := "worker-" + strconv.Itoa(i)
		p.shards[i] = &shard{
			name:   name,
			in:     make(chan Event, p.bufferSize),
			logger: p.logger.Named(name),
		}
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.shards)
}

// ShardFor returns the index of the worker that owns artifactID.
func ShardFor(artifactID string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(artifactID))
	return int(h.Sum32() % uint32(n)) //nolint:gosec // n is a positive pool size
}

// Start launches the dispatcher and workers. They run until Shutdown; ctx
// only supplies values, its cancellation does not stop them.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		p.cancel = cancel

		for _, s := range p.shards {
			p.wg.Add(1)
			go p.run(runCtx, s)
		}
		p.wg.Add(1)
		go p.dispatch(runCtx)

		go func() {
			p.wg.Wait()
			close(p.done)
		}()
		p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.shards)))
	})
}

func (p *Pool) dispatch(ctx context.Context) {
	defer p.wg.Done()
	defer func() {
		for _, s := range p.shards {
			close(s.in)
		}
	}()

	for e := range p.queue.Dequeue(ctx) {
		s := p.shards[ShardFor(e.ArtifactID, len(p.shards))]
		select {
		case s.in <- e:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) run(ctx context.Context, s *shard) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-s.in:
			if !ok {
				return
			}
			p.process(ctx, s, e)
		}
	}
}

func (p *Pool) process(ctx context.Context, s *shard, e Event) { //nolint:gocritic // hugeParam: events travel by value
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	stored, err := p.recorder.Record(ctx, e.ArtifactID, e)
	switch {
	case err == nil:
		metrics.RecordLedgerEvent(string(stored.Action))
		if sized, ok := p.recorder.(interface{ Size() int }); ok {
			metrics.UpdateLedgerArtifacts(sized.Size())
		}
	case errors.Is(err, ledger.ErrOutOfOrderEvent):
		metrics.RecordLedgerOutOfOrder()
		metrics.RecordErrorByComponent("worker", "out_of_order")
		s.logger.Warn(ctx, "event rejected as out of order",
			logger.String("event_id", e.ID),
			logger.String("artifact_id", e.ArtifactID),
			logger.Error(err),
		)
	default:
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "record_failed")
		s.logger.Error(ctx, "failed to record event",
			logger.String("event_id", e.ID),
			logger.String("artifact_id", e.ArtifactID),
			logger.Error(err),
		)
	}
	if p.onResult != nil {
		if err != nil {
			stored = e
		}
		p.onResult(ctx, stored, err)
	}
}

// Shutdown closes the queue when it supports it, then waits for every queued
// event to be processed. If ctx expires first, workers are cancelled and the
// remaining events are dropped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	if p.cancel == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	select {
	case <-p.done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		p.logger.Warn(ctx, "worker pool shutdown timed out")
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}
