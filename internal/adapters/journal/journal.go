// Package journal persists accepted verification events in Badger so the
// ledger can be rebuilt after a restart.
package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/okian/proofkit/internal/adapters/badgerdb"
	"github.com/okian/proofkit/internal/domain/model"
	"github.com/okian/proofkit/pkg/metrics"
)

var prefix = []byte("event/")

// ErrCorrupt is returned by Replay when a stored record cannot be decoded.
var ErrCorrupt = errors.New("corrupt journal record")

// Badger is a ledger journal backed by Badger. Keys are
// event/<artifact id>/<big-endian seq>, so a prefix scan yields each
// artifact's events in the order they were accepted.
type Badger struct {
	db *badgerdb.DB
}

// NewBadger returns a journal writing to db.
func NewBadger(db *badgerdb.DB) *Badger {
	return &Badger{db: db}
}

func key(artifactID string, seq uint64) []byte {
	k := make([]byte, 0, len(prefix)+len(artifactID)+1+8)
	k = append(k, prefix...)
	k = append(k, artifactID...)
	k = append(k, '/')
	return binary.BigEndian.AppendUint64(k, seq)
}

// Append writes ev at position seq of its artifact's history.
func (b *Badger) Append(ctx context.Context, seq uint64, ev model.VerificationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(ev.ArtifactID, seq), raw)
	})
	if err != nil {
		metrics.RecordErrorByComponent("journal", "write_failed")
		return fmt.Errorf("append event %s: %w", ev.ID, err)
	}
	return nil
}

// Replay calls fn for every stored event. Events of one artifact arrive in
// sequence order. Replay stops at the first error fn returns.
func (b *Badger) Replay(ctx context.Context, fn func(model.VerificationEvent) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var ev model.VerificationEvent
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &ev)
			})
			if err != nil {
				metrics.RecordErrorByComponent("journal", "corrupt")
				return fmt.Errorf("%w at %q: %v", ErrCorrupt, it.Item().Key(), err)
			}
			if err := fn(ev); err != nil {
				return err
			}
		}
		return nil
	})
}
