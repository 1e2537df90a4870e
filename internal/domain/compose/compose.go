// Package compose turns an eligible item selection into an immutable artifact.
package compose

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/proofkit/internal/domain/eligibility"
	"github.com/okian/proofkit/internal/domain/model"
	"github.com/okian/proofkit/internal/domain/proofhash"
	"github.com/okian/proofkit/internal/domain/scoring"
)

// Composer mints artifacts. It holds no mutable state and may be shared.
type Composer struct {
	now        func() time.Time
	newID      func() string
	aggregator scoring.Aggregator
	validator  Validator
}

// New returns a Composer with a UTC wall clock, uuid ids and the mean aggregator.
func New(opts ...Option) *Composer {
	c := &Composer{
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
		aggregator: scoring.NewMeanAggregator(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose checks eligibility, aggregates risk, derives the proof hash and
// mints a new artifact, in that order. An ineligible selection fails with an
// *IneligibleError before any further work.
func (c *Composer) Compose(items []model.SelectableItem) (model.ComposedArtifact, error) {
	if res := eligibility.Check(items); !res.Eligible {
		return model.ComposedArtifact{}, &IneligibleError{Reasons: res.Reasons}
	}
	score, err := c.aggregator.Aggregate(items)
	if err != nil {
		return model.ComposedArtifact{}, err
	}
	hash, err := proofhash.Derive(items)
	if err != nil {
		return model.ComposedArtifact{}, err
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return model.ComposedArtifact{
		ID:        c.newID(),
		ItemIDs:   ids,
		RiskScore: score,
		ProofHash: hash,
		CreatedAt: c.now(),
	}, nil
}

// ComposeAndValidate composes items and attaches a cross-document validation
// computed alongside. An invalid validation result is attached, never fatal.
// Without a configured validator the artifact is returned as composed. Both
// halves are bounded CPU work, so the outcome does not depend on ctx.
func (c *Composer) ComposeAndValidate(_ context.Context, items []model.SelectableItem, refs []model.Reference) (model.ComposedArtifact, error) {
	if c.validator == nil {
		return c.Compose(items)
	}

	var g errgroup.Group
	var (
		artifact   model.ComposedArtifact
		validation model.ValidationResult
	)
	g.Go(func() error {
		var err error
		artifact, err = c.Compose(items)
		return err
	})
	g.Go(func() error {
		validation = c.validator.Validate(items, refs)
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.ComposedArtifact{}, err
	}
	return artifact.WithValidation(validation), nil
}
