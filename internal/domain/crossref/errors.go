package crossref

import "errors"

// Sentinel kinds for validator construction.
var (
	ErrInvalidWeights   = errors.New("severity weights must be non-negative and non-decreasing")
	ErrInvalidThreshold = errors.New("confidence threshold must be within [0,100]")
	ErrInvalidOverlap   = errors.New("minimum conflict overlap must be positive")
)
