// Package snapshot implements the immutable, point-in-time read view pinned
// to a single committed JMT version. Authenticated reads through a Snapshot
// never observe writes made after its version, even if the underlying store
// keeps committing; nonconsensus reads and the key-index lookups are not
// versioned and reflect the latest commit.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/nodesbond/penumbra/pkg/jmt"
	"github.com/nodesbond/penumbra/pkg/kvdb"
	"github.com/nodesbond/penumbra/pkg/vkey"
)

// ErrCorrupt is returned when the backing store's jmt and jmt_values column
// families disagree: a committed leaf references a value that is no longer
// present.
var ErrCorrupt = errors.New("snapshot: backing store inconsistency")

// Snapshot is an immutable read view over db pinned to version. Get,
// GetWithProof and RootHash only ever see state as of that version,
// regardless of later commits to db; NonconsensusGet, NonconsensusPrefixIter,
// LookupKeyHash and LookupPreimage read the store's latest state.
type Snapshot struct {
	db      *kvdb.DB
	version jmt.Version
	root    *jmt.ChildRef
}

// New resolves the JMT root as of version and returns a Snapshot pinned to
// it. version may be jmt.PreGenesisVersion, in which case the snapshot reads
// as an entirely empty store.
func New(db *kvdb.DB, version jmt.Version) (*Snapshot, error) {
	root, err := jmt.RootRefAt(db.TreeReader(), version)
	if err != nil {
		return nil, fmt.Errorf("snapshot: resolving root at version %d: %w", version, err)
	}
	return &Snapshot{db: db, version: version, root: root}, nil
}

// Version returns the version this snapshot is pinned to.
func (s *Snapshot) Version() jmt.Version {
	return s.version
}

// RootHash returns the authenticated Merkle root as of this snapshot's
// version, or jmt.EmptyRootHash at the pre-genesis sentinel.
func (s *Snapshot) RootHash() [32]byte {
	if s.root == nil {
		return jmt.EmptyRootHash
	}
	return s.root.Hash
}

// Get looks up an authenticated key, returning (nil, nil) if absent.
func (s *Snapshot) Get(key []byte) ([]byte, error) {
	kh := jmt.ComputeKeyHash(key)
	_, writeVersion, ok, err := jmt.GetLeafRef(s.db.TreeReader(), s.root, kh)
	if err != nil {
		return nil, fmt.Errorf("snapshot: get: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return s.readValue(kh, writeVersion)
}

// GetWithProof looks up an authenticated key along with a proof verifiable
// against RootHash(). The returned value is nil for a non-membership proof.
func (s *Snapshot) GetWithProof(key []byte) ([]byte, jmt.Proof, error) {
	kh := jmt.ComputeKeyHash(key)
	_, ok, proof, err := jmt.GetWithProof(s.db.TreeReader(), s.root, kh)
	if err != nil {
		return nil, jmt.Proof{}, fmt.Errorf("snapshot: get with proof: %w", err)
	}
	if !ok {
		return nil, proof, nil
	}

	_, writeVersion, _, err := jmt.GetLeafRef(s.db.TreeReader(), s.root, kh)
	if err != nil {
		return nil, jmt.Proof{}, fmt.Errorf("snapshot: get with proof: %w", err)
	}
	val, err := s.readValue(kh, writeVersion)
	if err != nil {
		return nil, jmt.Proof{}, err
	}
	return val, proof, nil
}

func (s *Snapshot) readValue(kh jmt.KeyHash, writeVersion jmt.Version) ([]byte, error) {
	vk := vkey.Encode(kh, writeVersion)
	var val []byte
	err := s.db.View(func(txn *kvdb.Txn) error {
		v, err := txn.Get(kvdb.CFJmtValues, vk[:])
		if err != nil {
			return err
		}
		val = v
		return nil
	})
	if err != nil {
		if errors.Is(err, kvdb.ErrNotFound) {
			return nil, fmt.Errorf("%w: no value at %x/%d", ErrCorrupt, kh, writeVersion)
		}
		return nil, fmt.Errorf("snapshot: reading value: %w", err)
	}
	return val, nil
}

// LookupKeyHash reads the forward index (jmt_keys), returning the KeyHash a
// live authenticated key preimage was last committed under. Absent once the
// key has been deleted.
func (s *Snapshot) LookupKeyHash(key []byte) (jmt.KeyHash, bool, error) {
	var kh jmt.KeyHash
	found := false
	err := s.db.View(func(txn *kvdb.Txn) error {
		v, err := txn.Get(kvdb.CFJmtKeys, key)
		if err != nil {
			if errors.Is(err, kvdb.ErrNotFound) {
				return nil
			}
			return err
		}
		if len(v) != len(kh) {
			return fmt.Errorf("%w: jmt_keys entry has %d bytes, want %d", ErrCorrupt, len(v), len(kh))
		}
		copy(kh[:], v)
		found = true
		return nil
	})
	if err != nil {
		return jmt.KeyHash{}, false, fmt.Errorf("snapshot: lookup key hash: %w", err)
	}
	return kh, found, nil
}

// LookupPreimage reads the reverse index (jmt_keys_by_keyhash), returning the
// authenticated key preimage a live KeyHash was last committed under.
func (s *Snapshot) LookupPreimage(kh jmt.KeyHash) ([]byte, bool, error) {
	var preimage []byte
	found := false
	err := s.db.View(func(txn *kvdb.Txn) error {
		v, err := txn.Get(kvdb.CFJmtKeysByKeyHash, kh[:])
		if err != nil {
			if errors.Is(err, kvdb.ErrNotFound) {
				return nil
			}
			return err
		}
		preimage = v
		found = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("snapshot: lookup preimage: %w", err)
	}
	return preimage, found, nil
}

// NonconsensusGet reads raw, unversioned bytes directly from the
// nonconsensus namespace. Unlike Get, this namespace is never mixed into the
// Merkle root and has no history: it always reflects the latest commit.
func (s *Snapshot) NonconsensusGet(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *kvdb.Txn) error {
		v, err := txn.Get(kvdb.CFNonconsensus, key)
		if err != nil {
			if errors.Is(err, kvdb.ErrNotFound) {
				return nil
			}
			return err
		}
		val = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: nonconsensus get: %w", err)
	}
	return val, nil
}

// NonconsensusPrefixIter invokes fn once per nonconsensus entry whose key
// begins with prefix, in ascending key order, stopping early if fn returns
// an error.
func (s *Snapshot) NonconsensusPrefixIter(prefix []byte, fn func(key, value []byte) error) error {
	it := s.db.NewIterator(kvdb.CFNonconsensus)
	defer it.Close()

	for it.Seek(prefix); it.Valid(); it.Next() {
		k := it.Key()
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		v, err := it.Value()
		if err != nil {
			return fmt.Errorf("snapshot: nonconsensus prefix iter: %w", err)
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}
