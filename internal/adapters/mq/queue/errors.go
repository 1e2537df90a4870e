package queue

import "errors"

// ErrFull is returned by callers that translate a refused Enqueue, whether
// the queue was full, closed or the caller's context was done.
var ErrFull = errors.New("event queue full")
