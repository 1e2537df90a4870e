package repository

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/okian/proofkit/internal/adapters/badgerdb"
	"github.com/okian/proofkit/internal/domain/model"
	"github.com/okian/proofkit/pkg/metrics"
)

// Key layout:
//
//	artifact/id/<id>   -> JSON artifact
//	artifact/seq/<u64> -> id, in insertion order
var (
	idPrefix  = []byte("artifact/id/")
	seqPrefix = []byte("artifact/seq/")
)

// BadgerStore is a Store persisted in Badger.
type BadgerStore struct {
	db *badgerdb.DB

	mu    sync.Mutex // serializes Put so sequence numbers are dense
	next  uint64
	count int
}

// NewBadgerStore opens a store over db and loads its sequence position.
func NewBadgerStore(db *badgerdb.DB) (*BadgerStore, error) {
	s := &BadgerStore{db: db}
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = seqPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			s.count++
			key := it.Item().Key()
			if seq := binary.BigEndian.Uint64(key[len(seqPrefix):]); seq >= s.next {
				s.next = seq + 1
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan artifacts: %w", err)
	}
	metrics.UpdateArtifactsStored(s.count)
	return s, nil
}

func idKey(id string) []byte {
	return append(append([]byte{}, idPrefix...), id...)
}

func seqKey(seq uint64) []byte {
	k := make([]byte, len(seqPrefix)+8)
	copy(k, seqPrefix)
	binary.BigEndian.PutUint64(k[len(seqPrefix):], seq)
	return k
}

// Put implements Store.
func (s *BadgerStore) Put(ctx context.Context, a model.ComposedArtifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact %s: %w", a.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(idKey(a.ID)); err == nil {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, a.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(idKey(a.ID), raw); err != nil {
			return err
		}
		return txn.Set(seqKey(s.next), []byte(a.ID))
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			metrics.RecordErrorByComponent("repository", "already_exists")
			return err
		}
		metrics.RecordErrorByComponent("repository", "write_failed")
		return fmt.Errorf("put artifact %s: %w", a.ID, err)
	}
	s.next++
	s.count++
	metrics.UpdateArtifactsStored(s.count)
	return nil
}

// Get implements Store.
func (s *BadgerStore) Get(ctx context.Context, id string) (model.ComposedArtifact, error) {
	if err := ctx.Err(); err != nil {
		return model.ComposedArtifact{}, err
	}
	var a model.ComposedArtifact
	err := s.db.View(func(txn *badger.Txn) error {
		return s.load(txn, id, &a)
	})
	if err != nil {
		return model.ComposedArtifact{}, err
	}
	return a, nil
}

func (s *BadgerStore) load(txn *badger.Txn, id string, a *model.ComposedArtifact) error {
	item, err := txn.Get(idKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("get artifact %s: %w", id, err)
	}
	return item.Value(func(v []byte) error {
		if err := json.Unmarshal(v, a); err != nil {
			return fmt.Errorf("decode artifact %s: %w", id, err)
		}
		return nil
	})
}

// List implements Store.
func (s *BadgerStore) List(ctx context.Context, limit int) ([]model.ComposedArtifact, error) {
	if limit < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]model.ComposedArtifact, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = seqPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration must seek past the last possible key under the prefix.
		seek := append(append([]byte{}, seqPrefix...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		for it.Seek(seek); it.Valid() && len(out) < limit; it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var a model.ComposedArtifact
			if err := s.load(txn, string(id), &a); err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return out, nil
}

// Count implements Store.
func (s *BadgerStore) Count(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
