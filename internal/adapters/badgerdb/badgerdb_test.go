package badgerdb_test

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/okian/proofkit/internal/adapters/badgerdb"
	"github.com/okian/proofkit/pkg/logger"
)

func TestOpenInMemory(t *testing.T) {
	db, err := badgerdb.Open(badgerdb.InMemoryConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := db.Update(func(txn *badger.Txn) error { return txn.Set([]byte("k"), []byte("v")) }); err != nil {
		t.Fatalf("set: %v", err)
	}
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("k"))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			if string(v) != "v" {
				t.Errorf("value = %q", v)
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
}

func TestOpenOnDiskReopens(t *testing.T) {
	dir := t.TempDir()
	cfg := badgerdb.DefaultConfig(dir)
	cfg.GCInterval = time.Hour
	cfg.Logger = logger.Nop()

	db, err := badgerdb.Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Update(func(txn *badger.Txn) error { return txn.Set([]byte("k"), []byte("v")) }); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err = badgerdb.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	err = db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("k"))
		return err
	})
	if err != nil {
		t.Fatalf("key lost across reopen: %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := badgerdb.Open(badgerdb.Config{}); err == nil {
		t.Fatal("expected an error without a path")
	}
}
