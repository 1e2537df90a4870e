package ledger

import "time"

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithJournal persists every accepted event before it becomes visible.
func WithJournal(j Journal) Option {
	return func(l *Ledger) {
		l.journal = j
	}
}

// WithClock sets the time source used for events recorded without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithIDGenerator sets the id source for events recorded without an id.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) {
		if gen != nil {
			l.newID = gen
		}
	}
}
