package storage

import (
	"fmt"

	"github.com/nodesbond/penumbra/pkg/jmt"
	"github.com/nodesbond/penumbra/pkg/kvdb"
	"github.com/nodesbond/penumbra/pkg/vkey"
)

// writeNodeBatch persists every newly created node in batch into the jmt
// column family, within an already-open transaction.
func writeNodeBatch(txn *kvdb.Txn, batch *jmt.NodeBatch) error {
	for _, e := range batch.NodeEntries() {
		if err := kvdb.PutNode(txn, e.Key, e.Node); err != nil {
			return fmt.Errorf("%w: writing jmt node: %v", ErrBackingStore, err)
		}
	}
	return nil
}

// writeValues persists the raw value bytes behind every touched leaf into
// the jmt_values column family, addressed by VersionedKey(keyhash, version).
// Deleted keys (nil value) leave no entry: the tree no longer has a leaf
// pointing at them.
func writeValues(txn *kvdb.Txn, batch *jmt.NodeBatch, version jmt.Version) error {
	for kh, val := range batch.Values {
		if val == nil {
			continue
		}
		vk := vkey.Encode(kh, version)
		if err := txn.Put(kvdb.CFJmtValues, vk[:], val); err != nil {
			return fmt.Errorf("%w: writing jmt value: %v", ErrBackingStore, err)
		}
	}
	return nil
}

// writeKeyIndex maintains the forward (jmt_keys) and reverse
// (jmt_keys_by_keyhash) indexes between authenticated key preimages and their
// KeyHash, from the same staged changes that feed the tree's value set. A
// staged write installs both directions; a staged delete removes both, since
// neither index carries history the way jmt_values does.
func writeKeyIndex(txn *kvdb.Txn, cache authenticatedSource) error {
	for k, v := range cache.AuthenticatedChanges() {
		key := []byte(k)
		kh := jmt.ComputeKeyHash(key)
		if v == nil {
			if err := txn.Delete(kvdb.CFJmtKeys, key); err != nil {
				return fmt.Errorf("%w: deleting forward key index: %v", ErrBackingStore, err)
			}
			if err := txn.Delete(kvdb.CFJmtKeysByKeyHash, kh[:]); err != nil {
				return fmt.Errorf("%w: deleting reverse key index: %v", ErrBackingStore, err)
			}
			continue
		}
		if err := txn.Put(kvdb.CFJmtKeys, key, kh[:]); err != nil {
			return fmt.Errorf("%w: writing forward key index: %v", ErrBackingStore, err)
		}
		if err := txn.Put(kvdb.CFJmtKeysByKeyHash, kh[:], key); err != nil {
			return fmt.Errorf("%w: writing reverse key index: %v", ErrBackingStore, err)
		}
	}
	return nil
}

// authenticatedSource is the slice of *delta.Cache's surface writeKeyIndex
// needs, kept narrow for the same reason as nonconsensusSource.
type authenticatedSource interface {
	AuthenticatedChanges() map[string]*[]byte
}

// writeNonconsensus applies the nonconsensus half of a commit's staged
// changes directly, outside the Merkle root.
func writeNonconsensus(txn *kvdb.Txn, cache nonconsensusSource) error {
	for k, v := range cache.NonconsensusChanges() {
		if v == nil {
			if err := txn.Delete(kvdb.CFNonconsensus, []byte(k)); err != nil {
				return fmt.Errorf("%w: deleting nonconsensus key: %v", ErrBackingStore, err)
			}
			continue
		}
		if err := txn.Put(kvdb.CFNonconsensus, []byte(k), *v); err != nil {
			return fmt.Errorf("%w: writing nonconsensus key: %v", ErrBackingStore, err)
		}
	}
	return nil
}

// nonconsensusSource is the slice of *delta.Cache's surface treewriter
// needs, kept narrow so this file doesn't have to import delta directly.
type nonconsensusSource interface {
	NonconsensusChanges() map[string]*[]byte
}
