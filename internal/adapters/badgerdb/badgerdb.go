// Package badgerdb opens the embedded Badger database shared by the artifact
// repository and the ledger journal.
package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/okian/proofkit/pkg/logger"
)

// Config holds configuration for a Badger instance.
type Config struct {
	// Path is the data directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps all data in RAM. Used by tests and when no data dir is configured.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum garbage ratio that triggers a rewrite.
	GCDiscardRatio float64

	// Logger receives Badger's own log lines. Nil silences them.
	Logger logger.Logger
}

// DefaultConfig returns durable settings for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns settings for a throwaway database.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts logger.Logger to badger.Logger.
type badgerLogger struct {
	l logger.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(context.Background(), fmt.Sprintf(format, args...))
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(context.Background(), fmt.Sprintf(format, args...))
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Info(context.Background(), fmt.Sprintf(format, args...))
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(context.Background(), fmt.Sprintf(format, args...))
}

// DB wraps a Badger handle with its GC loop.
type DB struct {
	*badger.DB
	stop chan struct{}
	done chan struct{}
	log  logger.Logger
}

// Open opens the database described by cfg and starts value log GC when configured.
func Open(cfg Config) (*DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger path is required for a persistent database")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create data dir %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{l: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	db := &DB{DB: bdb, log: cfg.Logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		db.stop = make(chan struct{})
		db.done = make(chan struct{})
		go db.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return db, nil
}

func (d *DB) runGC(every time.Duration, ratio float64) {
	defer close(d.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-t.C:
			// ErrNoRewrite only means there was nothing to collect.
			if err := d.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) && d.log != nil {
				d.log.Warn(context.Background(), "badger value log gc failed", logger.Error(err))
			}
		}
	}
}

// Close stops GC and closes the database.
func (d *DB) Close() error {
	if d.stop != nil {
		close(d.stop)
		<-d.done
		d.stop = nil
	}
	return d.DB.Close()
}
