package compose

import (
	"errors"
	"strings"
)

// ErrIneligible marks a composition refused by the eligibility rules.
var ErrIneligible = errors.New("ineligible")

// IneligibleError carries every unmet eligibility rule.
type IneligibleError struct {
	Reasons []string
}

func (e *IneligibleError) Error() string {
	return "ineligible: " + strings.Join(e.Reasons, "; ")
}

// Is reports kind equality against ErrIneligible.
func (e *IneligibleError) Is(target error) bool {
	return target == ErrIneligible
}
