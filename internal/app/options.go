package service

import (
	"github.com/okian/proofkit/internal/adapters/catalog"
	"github.com/okian/proofkit/internal/adapters/repository"
	"github.com/okian/proofkit/internal/domain/compose"
	"github.com/okian/proofkit/internal/domain/crossref"
	"github.com/okian/proofkit/internal/domain/ledger"
	"github.com/okian/proofkit/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ledger workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued events.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many event ids are remembered for idempotency.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCatalog sets the item source. Defaults to an empty static catalog.
func WithCatalog(c catalog.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithStore sets the artifact store. Defaults to an in-memory store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithJournal persists ledger events and replays them on Start.
func WithJournal(j ledger.Journal) Option {
	return func(s *Service) {
		s.journal = j
	}
}

// WithCrossrefOptions configures the cross-document validator.
func WithCrossrefOptions(opts ...crossref.Option) Option {
	return func(s *Service) {
		s.crossrefOpts = append(s.crossrefOpts, opts...)
	}
}

// WithComposeOptions configures the composer. The validator is always the
// service's own.
func WithComposeOptions(opts ...compose.Option) Option {
	return func(s *Service) {
		s.composeOpts = append(s.composeOpts, opts...)
	}
}

// WithLedgerOptions configures the ledger. Prefer WithJournal for persistence.
func WithLedgerOptions(opts ...ledger.Option) Option {
	return func(s *Service) {
		s.ledgerOpts = append(s.ledgerOpts, opts...)
	}
}
