package model

import (
	"errors"
	"fmt"
)

// ErrInvalidItemData marks malformed risk impact or content hash values.
var ErrInvalidItemData = errors.New("invalid item data")

// InvalidItemDataError carries the offending item and field.
type InvalidItemDataError struct {
	ItemID string
	Field  string
	Reason string
}

func (e *InvalidItemDataError) Error() string {
	return fmt.Sprintf("invalid item data: item %q %s: %s", e.ItemID, e.Field, e.Reason)
}

// Is reports kind equality against ErrInvalidItemData.
func (e *InvalidItemDataError) Is(target error) bool {
	return target == ErrInvalidItemData
}
