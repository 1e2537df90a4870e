// Package eligibility checks the structural preconditions for composing an artifact.
package eligibility

import "github.com/okian/proofkit/internal/domain/model"

// Reasons reported when a rule is not met.
const (
	ReasonEmpty        = "selection must not be empty"
	ReasonNotAllValid  = "all items must be valid"
	ReasonDuplicateIDs = "item ids must be unique"
)

// Result lists every unmet rule. Eligible is true iff Reasons is empty.
type Result struct {
	Eligible      bool     `json:"eligible"`
	Reasons       []string `json:"reasons"`
	IneligibleIDs []string `json:"ineligible_ids,omitempty"`
}

// Check evaluates every rule independently so callers see all problems at once.
func Check(items []model.SelectableItem) Result {
	res := Result{Reasons: []string{}}

	if len(items) == 0 {
		res.Reasons = append(res.Reasons, ReasonEmpty)
	}

	for _, it := range items {
		if it.Status != model.StatusValid {
			res.IneligibleIDs = append(res.IneligibleIDs, it.ID)
		}
	}
	if len(res.IneligibleIDs) > 0 {
		res.Reasons = append(res.Reasons, ReasonNotAllValid)
	}

	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.ID]; dup {
			res.Reasons = append(res.Reasons, ReasonDuplicateIDs)
			break
		}
		seen[it.ID] = struct{}{}
	}

	res.Eligible = len(res.Reasons) == 0
	return res
}
