package model

// Selection is a request to work on a set of items. Either ItemIDs are
// resolved against the catalog or Items are used as given. References,
// when nil, are taken from the catalog for the selected sources.
type Selection struct {
	ItemIDs    []string
	Items      []SelectableItem
	References []Reference
}

// Inline reports whether the selection carries its own items.
func (s Selection) Inline() bool {
	return len(s.Items) > 0
}

// ProofCheck compares an artifact's stored proof hash with one re-derived
// from the current item data.
type ProofCheck struct {
	ArtifactID string `json:"artifact_id"`
	ProofHash  string `json:"proof_hash"`
	Recomputed string `json:"recomputed"`
	Match      bool   `json:"match"`
}
