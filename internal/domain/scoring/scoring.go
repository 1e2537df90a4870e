// Package scoring aggregates the risk impact of a selected item set into one score.
package scoring

import (
	"math"

	"github.com/okian/proofkit/internal/domain/model"
)

// ErrInvalidItemData is returned (wrapped) when an item's risk impact is out of range.
var ErrInvalidItemData = model.ErrInvalidItemData

// Aggregator combines item risk impacts into a composed score.
type Aggregator interface {
	Aggregate(items []model.SelectableItem) (int, error)
}

// Option applies a configuration option to a MeanAggregator.
type Option func(*MeanAggregator)

// WithClamp bounds the aggregated score to [lo, hi]. Ignored unless
// 0 <= lo <= hi <= 100.
func WithClamp(lo, hi int) Option {
	return func(m *MeanAggregator) {
		if lo >= model.MinRiskImpact && hi <= model.MaxRiskImpact && lo <= hi {
			m.lo, m.hi = lo, hi
		}
	}
}

// MeanAggregator scores a selection as the rounded arithmetic mean of its
// risk impacts. Status is not considered.
type MeanAggregator struct {
	lo, hi int
}

// NewMeanAggregator returns a MeanAggregator clamping to [0,100] by default.
func NewMeanAggregator(opts ...Option) *MeanAggregator {
	m := &MeanAggregator{lo: model.MinRiskImpact, hi: model.MaxRiskImpact}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Aggregate returns 0 for an empty selection, otherwise round(mean) half away
// from zero, clamped. Any out-of-range risk impact fails the whole call.
func (m *MeanAggregator) Aggregate(items []model.SelectableItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	sum := 0
	for _, it := range items {
		if err := it.CheckRiskImpact(); err != nil {
			return 0, err
		}
		sum += it.RiskImpact
	}
	mean := math.Round(float64(sum) / float64(len(items)))
	return min(max(int(mean), m.lo), m.hi), nil
}

var defaultAggregator = NewMeanAggregator()

// Aggregate scores items with the default mean policy.
func Aggregate(items []model.SelectableItem) (int, error) {
	return defaultAggregator.Aggregate(items)
}
