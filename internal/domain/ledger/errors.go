package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel kinds for this package.
var (
	ErrOutOfOrderEvent = errors.New("out of order event")
	ErrInvalidEvent    = errors.New("invalid event")
	ErrInvalidLimit    = errors.New("limit must be positive")
)

// OutOfOrderEventError reports an event older than the artifact's last event.
type OutOfOrderEventError struct {
	ArtifactID string
	EventTime  time.Time
	LastTime   time.Time
}

func (e *OutOfOrderEventError) Error() string {
	return fmt.Sprintf("out of order event for artifact %q: %s is before %s",
		e.ArtifactID, e.EventTime.Format(time.RFC3339Nano), e.LastTime.Format(time.RFC3339Nano))
}

// Is reports kind equality against ErrOutOfOrderEvent.
func (e *OutOfOrderEventError) Is(target error) bool {
	return target == ErrOutOfOrderEvent
}

func invalidEvent(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidEvent, fmt.Sprintf(format, args...))
}
