package crossref

import "github.com/okian/proofkit/internal/domain/model"

// Defaults for the confidence policy.
const (
	DefaultThreshold  = 70
	DefaultMinOverlap = 8
)

// DefaultWeights is the confidence penalty per issue of each severity.
func DefaultWeights() map[model.Severity]int {
	return map[model.Severity]int{
		model.SeverityLow:      2,
		model.SeverityMedium:   5,
		model.SeverityHigh:     15,
		model.SeverityCritical: 30,
	}
}

// Option applies a configuration option to the Validator.
type Option func(*Validator)

// WithWeights overrides severity penalties. Missing severities keep their defaults.
func WithWeights(w map[model.Severity]int) Option {
	return func(v *Validator) {
		for sev, n := range w {
			v.weights[sev] = n
		}
	}
}

// WithThreshold sets the minimum confidence for a valid result.
func WithThreshold(t int) Option {
	return func(v *Validator) {
		v.threshold = t
	}
}

// WithMinOverlap sets the shortest common content hash run treated as shared content.
func WithMinOverlap(n int) Option {
	return func(v *Validator) {
		v.minOverlap = n
	}
}
