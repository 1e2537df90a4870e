package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/proofkit/internal/domain/model"
	"github.com/okian/proofkit/pkg/logger"
)

const percentageMultiplier = 100

type composeRequest struct {
	ItemIDs []string `json:"item_ids"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// outcome of a single submission.
type outcome int

const (
	accepted outcome = iota
	duplicate
	rejected
	failed
)

// tally collects what the server accepted per artifact.
type tally struct {
	mu   sync.Mutex
	want map[string]*expected
}

func newTally(ids []string) *tally {
	t := &tally{want: make(map[string]*expected, len(ids))}
	for _, id := range ids {
		t.want[id] = &expected{actors: make(map[string]struct{})}
	}
	return t
}

func (t *tally) accept(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	exp := t.want[ev.ArtifactID]
	exp.total++
	exp.actors[ev.ActorLabel] = struct{}{}
}

// Run composes the artifacts, submits the events, waits for the ledger and
// verifies its totals. The returned Stats are filled even when err != nil.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	cfg.withDefaults()
	log := logger.Get().Named("loadgen")
	stats := &Stats{StartTime: time.Now()}
	defer func() {
		stats.EndTime = time.Now()
		stats.Duration = stats.EndTime.Sub(stats.StartTime)
	}()

	log.Info(ctx, "starting load run",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("artifacts", cfg.Artifacts),
		logger.Int("actors", cfg.Actors),
		logger.Int("events_per_actor", cfg.EventsPerActor),
		logger.Int("workers", cfg.Workers),
	)
	c := newClient(cfg.BaseURL, cfg.Timeout)

	if err := checkHealth(ctx, c); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	ids, err := composeArtifacts(ctx, c, &cfg)
	if err != nil {
		return stats, fmt.Errorf("composition failed: %w", err)
	}
	stats.ArtifactsComposed = len(ids)

	events := generateEvents(&cfg, ids)
	stats.EventsGenerated = len(events)

	t := newTally(ids)
	if err := submitEvents(ctx, c, &cfg, events, t, stats); err != nil {
		return stats, fmt.Errorf("event submission failed: %w", err)
	}
	log.Info(ctx, "events submitted",
		logger.Int("accepted", stats.EventsAccepted),
		logger.Int("duplicate", stats.EventsDuplicate),
		logger.Int("rejected", stats.EventsRejected),
		logger.Int("failed", stats.EventsFailed),
		logger.Int("retries", stats.Retries),
	)

	if err := awaitLedger(ctx, c, &cfg, t); err != nil {
		return stats, err
	}
	logStats(ctx, log, stats)
	return stats, nil
}

func checkHealth(ctx context.Context, c *client) error {
	status, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK {
		return unexpected(http.MethodGet, "/healthz", status)
	}
	return nil
}

func composeArtifacts(ctx context.Context, c *client, cfg *Config) ([]string, error) {
	ids := make([]string, 0, cfg.Artifacts)
	for i := 0; i < cfg.Artifacts; i++ {
		var art model.ComposedArtifact
		status, err := c.do(ctx, http.MethodPost, "/compose", composeRequest{ItemIDs: cfg.ItemIDs}, &art)
		if err != nil {
			return nil, err
		}
		if status != http.StatusCreated {
			return nil, unexpected(http.MethodPost, "/compose", status)
		}
		ids = append(ids, art.ID)
	}
	return ids, nil
}

func submitEvents(ctx context.Context, c *client, cfg *Config, events []Event, t *tally, stats *Stats) error {
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for _, ev := range events {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, retries, err := submitOne(ctx, c, cfg, ev)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if out == accepted {
				t.accept(ev)
			}

			mu.Lock()
			defer mu.Unlock()
			stats.Retries += retries
			switch out {
			case accepted:
				stats.EventsAccepted++
			case duplicate:
				stats.EventsDuplicate++
			case rejected:
				stats.EventsRejected++
			case failed:
				stats.EventsFailed++
			}
			return nil
		})
	}
	return g.Wait()
}

// submitOne posts ev, retrying 429 responses with a growing delay.
func submitOne(ctx context.Context, c *client, cfg *Config, ev Event) (outcome, int, error) {
	path := "/artifacts/" + ev.ArtifactID + "/events"
	backoff := 10 * time.Millisecond

	for attempt := 0; ; attempt++ {
		var ack ackResponse
		status, err := c.do(ctx, http.MethodPost, path, ev, &ack)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return failed, attempt, ctx.Err()
			}
			return failed, attempt, nil
		case status == http.StatusAccepted:
			return accepted, attempt, nil
		case status == http.StatusOK && ack.Duplicate:
			return duplicate, attempt, nil
		case status == http.StatusTooManyRequests:
			if attempt >= cfg.MaxRetries {
				return rejected, attempt, nil
			}
		default:
			return failed, attempt, nil
		}

		select {
		case <-ctx.Done():
			return rejected, attempt, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func logStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var acceptRate, eventsPerSecond float64
	if stats.EventsGenerated > 0 {
		acceptRate = float64(stats.EventsAccepted) / float64(stats.EventsGenerated) * percentageMultiplier
	}
	if d := time.Since(stats.StartTime); d > 0 {
		eventsPerSecond = float64(stats.EventsGenerated) / d.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("artifacts", stats.ArtifactsComposed),
		logger.Int("events_generated", stats.EventsGenerated),
		logger.Int("events_accepted", stats.EventsAccepted),
		logger.Int("events_duplicate", stats.EventsDuplicate),
		logger.Int("events_rejected", stats.EventsRejected),
		logger.Int("events_failed", stats.EventsFailed),
		logger.Float64("accept_rate_pct", acceptRate),
		logger.Float64("events_per_second", eventsPerSecond),
	)
}
