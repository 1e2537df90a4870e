package compose

import (
	"time"

	"github.com/okian/proofkit/internal/domain/model"
	"github.com/okian/proofkit/internal/domain/scoring"
)

// Option applies a configuration option to the Composer.
type Option func(*Composer)

// WithClock sets the time source for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Composer) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator sets the artifact id source.
func WithIDGenerator(gen func() string) Option {
	return func(c *Composer) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// WithAggregator replaces the default mean risk aggregator.
func WithAggregator(a scoring.Aggregator) Option {
	return func(c *Composer) {
		if a != nil {
			c.aggregator = a
		}
	}
}

// Validator checks cross-document consistency for ComposeAndValidate.
type Validator interface {
	Validate(items []model.SelectableItem, refs []model.Reference) model.ValidationResult
}

// WithValidator sets the cross-document validator used by ComposeAndValidate.
func WithValidator(v Validator) Option {
	return func(c *Composer) {
		if v != nil {
			c.validator = v
		}
	}
}
