package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for this package.
var (
	ErrUnknownItem    = errors.New("unknown item")
	ErrInvalidCatalog = errors.New("invalid catalog")
)

// UnknownItemError lists requested ids the catalog does not hold.
type UnknownItemError struct {
	IDs []string
}

func (e *UnknownItemError) Error() string {
	return fmt.Sprintf("unknown item: %s", strings.Join(e.IDs, ", "))
}

// Is reports kind equality against ErrUnknownItem.
func (e *UnknownItemError) Is(target error) bool {
	return target == ErrUnknownItem
}
