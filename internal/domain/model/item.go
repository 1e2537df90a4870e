// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"unicode"
)

// Risk impact bounds for a single item and for a composed score.
const (
	MinRiskImpact = 0
	MaxRiskImpact = 100
)

// MaxContentHashLen bounds a content hash in bytes.
const MaxContentHashLen = 256

// Kind classifies a selectable item.
type Kind string

// Item kinds.
const (
	KindDocument Kind = "document"
	KindBadge    Kind = "badge"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindDocument || k == KindBadge
}

// Hashable reports whether items of this kind contribute to a proof hash.
func (k Kind) Hashable() bool { return k.Valid() }

// Scorable reports whether items of this kind contribute to a risk score.
func (k Kind) Scorable() bool { return k.Valid() }

// Status is the lifecycle state of an item, owned by the catalog.
type Status string

// Item statuses.
const (
	StatusValid   Status = "valid"
	StatusPending Status = "pending"
	StatusExpired Status = "expired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusValid, StatusPending, StatusExpired:
		return true
	}
	return false
}

// SelectableItem is an evidentiary unit eligible for composition.
type SelectableItem struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Kind        Kind   `json:"kind" yaml:"kind"`
	ContentHash string `json:"content_hash" yaml:"content_hash"`
	RiskImpact  int    `json:"risk_impact" yaml:"risk_impact"`
	Status      Status `json:"status" yaml:"status"`
}

// CheckRiskImpact returns an InvalidItemDataError when the item's risk impact
// is outside [MinRiskImpact, MaxRiskImpact].
func (it SelectableItem) CheckRiskImpact() error {
	if it.RiskImpact < MinRiskImpact || it.RiskImpact > MaxRiskImpact {
		return &InvalidItemDataError{ItemID: it.ID, Field: "risk_impact", Reason: "out of range [0,100]"}
	}
	return nil
}

// CheckContentHash returns an InvalidItemDataError when the item's content
// hash is empty, longer than MaxContentHashLen or contains a control character.
func (it SelectableItem) CheckContentHash() error {
	switch {
	case it.ContentHash == "":
		return &InvalidItemDataError{ItemID: it.ID, Field: "content_hash", Reason: "empty"}
	case len(it.ContentHash) > MaxContentHashLen:
		return &InvalidItemDataError{ItemID: it.ID, Field: "content_hash", Reason: fmt.Sprintf("longer than %d bytes", MaxContentHashLen)}
	case strings.IndexFunc(it.ContentHash, unicode.IsControl) >= 0:
		return &InvalidItemDataError{ItemID: it.ID, Field: "content_hash", Reason: "contains control characters"}
	}
	return nil
}

// Relationship is the declared link type between two items.
type Relationship string

// Known relationships.
const (
	RelReferences Relationship = "references"
	RelSupersedes Relationship = "supersedes"
	RelConflicts  Relationship = "conflicts"
)

// Valid reports whether r is a known relationship.
func (r Relationship) Valid() bool {
	switch r {
	case RelReferences, RelSupersedes, RelConflicts:
		return true
	}
	return false
}

// Reference asserts that SourceID relates to TargetID.
type Reference struct {
	SourceID     string       `json:"source_id" yaml:"source_id"`
	TargetID     string       `json:"target_id" yaml:"target_id"`
	Relationship Relationship `json:"relationship" yaml:"relationship"`
}

// IndexByID maps item ids to items. Later duplicates win.
func IndexByID(items []SelectableItem) map[string]SelectableItem {
	idx := make(map[string]SelectableItem, len(items))
	for _, it := range items {
		idx[it.ID] = it
	}
	return idx
}
