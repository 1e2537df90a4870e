// Package crossref validates the declared relationships between items and
// scores how well-formed they are.
package crossref

import (
	"fmt"
	"strings"

	"github.com/okian/proofkit/internal/domain/model"
)

// Issue descriptions.
const (
	DescDangling      = "dangling reference"
	DescOrphaned      = "orphaned reference"
	DescSelf          = "self reference"
	DescUnknownRel    = "unknown relationship"
	DescConflict      = "conflicting documents share content"
	DescUnconfirmed   = "declared conflict not corroborated by content"
	DescWrongSupersed = "expired item supersedes a live item"
)

// Validator applies the cross-document rules. It holds no mutable state and
// is safe for concurrent use.
type Validator struct {
	weights    map[model.Severity]int
	threshold  int
	minOverlap int
}

// New builds a Validator. It rejects weights that are negative or decrease
// with severity, so more or worse issues can never raise confidence.
func New(opts ...Option) (*Validator, error) {
	v := &Validator{
		weights:    DefaultWeights(),
		threshold:  DefaultThreshold,
		minOverlap: DefaultMinOverlap,
	}
	for _, opt := range opts {
		opt(v)
	}

	prev := 0
	for _, sev := range model.Severities {
		w := v.weights[sev]
		if w < prev {
			return nil, fmt.Errorf("%w: %s=%d", ErrInvalidWeights, sev, w)
		}
		prev = w
	}
	if v.threshold < 0 || v.threshold > 100 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidThreshold, v.threshold)
	}
	if v.minOverlap < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOverlap, v.minOverlap)
	}
	return v, nil
}

// Threshold returns the confidence threshold in use.
func (v *Validator) Threshold() int { return v.threshold }

// Validate checks every declared reference against items, in input order.
// One cross reference is emitted per declared reference.
func (v *Validator) Validate(items []model.SelectableItem, refs []model.Reference) model.ValidationResult {
	idx := model.IndexByID(items)
	res := model.ValidationResult{
		Issues:          []model.Issue{},
		CrossReferences: make([]model.CrossReference, 0, len(refs)),
	}
	raise := func(sev model.Severity, desc, suggestion string, ref model.Reference) {
		res.Issues = append(res.Issues, model.Issue{
			Description: desc,
			Severity:    sev,
			Suggestion:  suggestion,
			SourceID:    ref.SourceID,
			TargetID:    ref.TargetID,
		})
	}

	for _, ref := range refs {
		target, hasTarget := idx[ref.TargetID]
		source, hasSource := idx[ref.SourceID]

		kind := model.UnresolvedKind
		if hasTarget {
			kind = target.Kind
		}
		res.CrossReferences = append(res.CrossReferences, model.CrossReference{
			SourceID:     ref.SourceID,
			TargetID:     ref.TargetID,
			Relationship: ref.Relationship,
			Kind:         kind,
		})

		if !hasTarget {
			raise(model.SeverityMedium, DescDangling, "add the referenced item to the selection or drop the reference", ref)
		}
		if !hasSource {
			raise(model.SeverityMedium, DescOrphaned, "add the referring item to the selection or drop the reference", ref)
		}
		if !hasTarget || !hasSource {
			continue
		}
		if ref.SourceID == ref.TargetID {
			raise(model.SeverityLow, DescSelf, "remove the reference", ref)
			continue
		}

		switch ref.Relationship {
		case model.RelReferences:
		case model.RelConflicts:
			if v.overlaps(source.ContentHash, target.ContentHash) {
				raise(model.SeverityHigh, DescConflict, "resolve the conflict before publishing", ref)
			} else {
				raise(model.SeverityLow, DescUnconfirmed, "confirm the conflict or remove the declaration", ref)
			}
		case model.RelSupersedes:
			if source.Status == model.StatusExpired && target.Status != model.StatusExpired {
				raise(model.SeverityCritical, DescWrongSupersed, "reverse the relationship or renew the superseding item", ref)
			}
		default:
			raise(model.SeverityLow, DescUnknownRel, "use references, supersedes or conflicts", ref)
		}
	}

	res.Confidence = v.confidence(res.Issues)
	res.IsValid = res.Confidence >= v.threshold
	for _, is := range res.Issues {
		if is.Severity.Blocking() {
			res.IsValid = false
			break
		}
	}
	return res
}

func (v *Validator) confidence(issues []model.Issue) int {
	c := 100
	for _, is := range issues {
		c -= v.weights[is.Severity]
	}
	return min(max(c, 0), 100)
}

// overlaps reports whether the normalized hashes share a run of at least minOverlap bytes.
func (v *Validator) overlaps(a, b string) bool {
	return longestCommonRun(normalizeHash(a), normalizeHash(b)) >= v.minOverlap
}

// normalizeHash lowercases h and strips an "algo:" prefix. Only the first
// model.MaxContentHashLen bytes are compared, which bounds longestCommonRun.
func normalizeHash(h string) string {
	if len(h) > model.MaxContentHashLen {
		h = h[:model.MaxContentHashLen]
	}
	h = strings.ToLower(strings.TrimSpace(h))
	if i := strings.IndexByte(h, ':'); i >= 0 {
		h = h[i+1:]
	}
	return h
}

func longestCommonRun(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				best = max(best, cur[j])
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return best
}
