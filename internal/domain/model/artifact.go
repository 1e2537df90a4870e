package model

import (
	"slices"
	"time"
)

// Severity grades a cross-document issue.
type Severity string

// Issue severities, lowest first.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every severity in ascending order.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Rank orders severities; unknown values rank below low.
func (s Severity) Rank() int {
	return slices.Index(Severities, s)
}

// Blocking reports whether an issue of this severity invalidates a result.
func (s Severity) Blocking() bool {
	return s.Rank() >= SeverityHigh.Rank()
}

// Issue is a single finding from cross-document validation.
type Issue struct {
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Suggestion  string   `json:"suggestion,omitempty"`
	SourceID    string   `json:"source_id,omitempty"`
	TargetID    string   `json:"target_id,omitempty"`
}

// UnresolvedKind marks a cross reference whose target is not in the item set.
const UnresolvedKind Kind = "unresolved"

// CrossReference describes one declared link as seen by the validator.
type CrossReference struct {
	SourceID     string       `json:"source_id"`
	TargetID     string       `json:"target_id"`
	Relationship Relationship `json:"relationship"`
	Kind         Kind         `json:"kind"`
}

// ValidationResult is the outcome of cross-document validation over an item set.
type ValidationResult struct {
	IsValid         bool             `json:"is_valid"`
	Confidence      int              `json:"confidence"`
	Issues          []Issue          `json:"issues"`
	CrossReferences []CrossReference `json:"cross_references"`
}

// Severities returns the severity of each issue, in order.
func (v ValidationResult) Severities() []string {
	out := make([]string, len(v.Issues))
	for i, is := range v.Issues {
		out[i] = string(is.Severity)
	}
	return out
}

// ComposedArtifact is the immutable result of a successful composition.
type ComposedArtifact struct {
	ID         string            `json:"id"`
	ItemIDs    []string          `json:"item_ids"`
	RiskScore  int               `json:"risk_score"`
	ProofHash  string            `json:"proof_hash"`
	CreatedAt  time.Time         `json:"created_at"`
	Validation *ValidationResult `json:"validation,omitempty"`
}

// Items returns a copy of the artifact's item ids.
func (a ComposedArtifact) Items() []string {
	return slices.Clone(a.ItemIDs)
}

// WithValidation returns a copy of a carrying v. The receiver is not modified.
func (a ComposedArtifact) WithValidation(v ValidationResult) ComposedArtifact {
	out := a
	out.ItemIDs = slices.Clone(a.ItemIDs)
	v.Issues = slices.Clone(v.Issues)
	v.CrossReferences = slices.Clone(v.CrossReferences)
	out.Validation = &v
	return out
}
