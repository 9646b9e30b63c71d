// Package kvdb is the backing store adapter: it opens and owns a single
// badger embedded key-value store and simulates five logical column
// families (jmt, jmt_values, jmt_keys, jmt_keys_by_keyhash, nonconsensus) as
// single-byte key prefixes over badger's flat keyspace, the same technique
// cosmos-sdk's prefix store and moby/containerd's metadata buckets use.
package kvdb

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// ColumnFamily is a logical partition of the backing store's keyspace,
// implemented as a one-byte key prefix.
type ColumnFamily byte

const (
	CFJmt ColumnFamily = iota
	CFJmtValues
	CFJmtKeys
	CFJmtKeysByKeyHash
	CFNonconsensus
)

// ErrOpen wraps failures encountered while opening the backing store.
var ErrOpen = errors.New("kvdb: open failed")

// ErrNotFound is returned by Txn.Get when the key is absent. It is badger's
// own not-found sentinel, so callers can match on either name.
var ErrNotFound = badger.ErrKeyNotFound

// Options configures Open. Dir is ignored when InMemory is set.
type Options struct {
	Dir      string
	InMemory bool
	Logger   *zap.Logger
}

// DB owns the badger store and the zap logger every operation reports
// through.
type DB struct {
	bdb    *badger.DB
	logger *zap.Logger
}

// Open creates the directory/store if absent and returns a ready DB. Column
// families need no explicit creation step since prefixes are implicit, but
// Open still probes each of the five prefixes with a read so a corrupt or
// unreadable store surfaces its error here rather than on first use.
func Open(opts Options) (*DB, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bopts := badger.DefaultOptions(opts.Dir)
	bopts = bopts.WithLogger(nil)
	if opts.InMemory {
		bopts = bopts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	bdb, err := badger.Open(bopts)
	if err != nil {
		logger.Error("failed to open backing store", zap.String("dir", opts.Dir), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}

	db := &DB{bdb: bdb, logger: logger}
	if err := db.checkColumnFamilies(); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}

	logger.Info("opened backing store", zap.String("dir", opts.Dir), zap.Bool("in_memory", opts.InMemory))
	return db, nil
}

// checkColumnFamilies probes every column-family prefix is reachable with a
// harmless read, surfacing a corrupt or unreadable store at open time rather
// than on first use.
func (db *DB) checkColumnFamilies() error {
	cfs := []ColumnFamily{CFJmt, CFJmtValues, CFJmtKeys, CFJmtKeysByKeyHash, CFNonconsensus}
	return db.View(func(txn *Txn) error {
		for _, cf := range cfs {
			if _, err := txn.Get(cf, []byte("__probe__")); err != nil && !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("column family %d unreachable: %w", cf, err)
			}
		}
		return nil
	})
}

// Close closes the underlying store. Safe to call once; a second call
// returns badger's own already-closed error.
func (db *DB) Close() error {
	db.logger.Info("closing backing store")
	return db.bdb.Close()
}

// Txn is a single badger transaction scoped to a View or Update call, with
// every key automatically qualified by its column family's prefix.
type Txn struct {
	txn *badger.Txn
}

func prefixedKey(cf ColumnFamily, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = byte(cf)
	copy(out[1:], key)
	return out
}

// Put writes value under key in column family cf.
func (t *Txn) Put(cf ColumnFamily, key, value []byte) error {
	return t.txn.Set(prefixedKey(cf, key), value)
}

// Get returns the value stored under key in column family cf, or ErrNotFound.
func (t *Txn) Get(cf ColumnFamily, key []byte) ([]byte, error) {
	item, err := t.txn.Get(prefixedKey(cf, key))
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Delete removes key from column family cf. Deleting an absent key is not an
// error.
func (t *Txn) Delete(cf ColumnFamily, key []byte) error {
	return t.txn.Delete(prefixedKey(cf, key))
}

// View runs fn in a read-only transaction.
func (db *DB) View(fn func(*Txn) error) error {
	return db.bdb.View(func(txn *badger.Txn) error {
		return fn(&Txn{txn: txn})
	})
}

// Update runs fn in a read-write transaction, committed atomically if fn
// returns nil. This is what the Storage commit pipeline (see pkg/storage)
// uses to make its multi-column-family write atomic.
func (db *DB) Update(fn func(*Txn) error) error {
	return db.bdb.Update(func(txn *badger.Txn) error {
		return fn(&Txn{txn: txn})
	})
}
