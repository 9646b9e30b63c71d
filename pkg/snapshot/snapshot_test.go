package snapshot

import (
	"testing"

	"github.com/nodesbond/penumbra/pkg/jmt"
	"github.com/nodesbond/penumbra/pkg/kvdb"
	"github.com/nodesbond/penumbra/pkg/vkey"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *kvdb.DB {
	t.Helper()
	db, err := kvdb.Open(kvdb.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// commitValues is a minimal test-only stand-in for pkg/storage's commit
// pipeline: it runs PutValueSet, then writes the node batch and the raw
// value bytes into the backing store in one transaction.
func commitValues(t *testing.T, db *kvdb.DB, oldRoot *jmt.ChildRef, values []jmt.KeyValue, version jmt.Version) [32]byte {
	t.Helper()
	root, batch, err := jmt.PutValueSet(db.TreeReader(), oldRoot, values, version)
	require.NoError(t, err)

	err = db.Update(func(txn *kvdb.Txn) error {
		for _, e := range batch.NodeEntries() {
			if err := kvdb.PutNode(txn, e.Key, e.Node); err != nil {
				return err
			}
		}
		for kh, val := range batch.Values {
			if val == nil {
				continue
			}
			vk := vkey.Encode(kh, version)
			if err := txn.Put(kvdb.CFJmtValues, vk[:], val); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return root
}

func TestSnapshotAtPreGenesisIsEmpty(t *testing.T) {
	db := openTestDB(t)
	snap, err := New(db, jmt.PreGenesisVersion)
	require.NoError(t, err)
	require.Equal(t, jmt.EmptyRootHash, snap.RootHash())

	val, err := snap.Get([]byte("anything"))
	require.NoError(t, err)
	require.Nil(t, val)
}

func TestSnapshotGetAfterCommit(t *testing.T) {
	db := openTestDB(t)
	root := commitValues(t, db, nil, []jmt.KeyValue{
		{KeyHash: jmt.ComputeKeyHash([]byte("alice/balance")), Value: []byte("100")},
	}, 0)

	snap, err := New(db, 0)
	require.NoError(t, err)
	require.Equal(t, root, snap.RootHash())

	val, err := snap.Get([]byte("alice/balance"))
	require.NoError(t, err)
	require.Equal(t, []byte("100"), val)

	missing, err := snap.Get([]byte("bob/balance"))
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestSnapshotIsPinnedDespiteLaterCommits(t *testing.T) {
	db := openTestDB(t)
	kh := jmt.ComputeKeyHash([]byte("alice/balance"))
	root0 := commitValues(t, db, nil, []jmt.KeyValue{{KeyHash: kh, Value: []byte("100")}}, 0)

	snap0, err := New(db, 0)
	require.NoError(t, err)

	oldRoot := &jmt.ChildRef{Version: 0, Hash: root0}
	commitValues(t, db, oldRoot, []jmt.KeyValue{{KeyHash: kh, Value: []byte("999")}}, 1)

	val, err := snap0.Get([]byte("alice/balance"))
	require.NoError(t, err)
	require.Equal(t, []byte("100"), val)

	snap1, err := New(db, 1)
	require.NoError(t, err)
	val1, err := snap1.Get([]byte("alice/balance"))
	require.NoError(t, err)
	require.Equal(t, []byte("999"), val1)
}

func TestSnapshotGetWithProof(t *testing.T) {
	db := openTestDB(t)
	kh := jmt.ComputeKeyHash([]byte("alice/balance"))
	commitValues(t, db, nil, []jmt.KeyValue{{KeyHash: kh, Value: []byte("100")}}, 0)

	snap, err := New(db, 0)
	require.NoError(t, err)

	val, proof, err := snap.GetWithProof([]byte("alice/balance"))
	require.NoError(t, err)
	require.Equal(t, []byte("100"), val)
	require.True(t, jmt.VerifyProof(kh, proof, snap.RootHash()))

	_, proof2, err := snap.GetWithProof([]byte("nonexistent"))
	require.NoError(t, err)
	require.True(t, jmt.VerifyProof(jmt.ComputeKeyHash([]byte("nonexistent")), proof2, snap.RootHash()))
}

func TestSnapshotNonconsensusGetAndPrefixIter(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Update(func(txn *kvdb.Txn) error {
		if err := txn.Put(kvdb.CFNonconsensus, []byte("peer/1"), []byte("a")); err != nil {
			return err
		}
		if err := txn.Put(kvdb.CFNonconsensus, []byte("peer/2"), []byte("b")); err != nil {
			return err
		}
		return txn.Put(kvdb.CFNonconsensus, []byte("other/1"), []byte("c"))
	}))

	snap, err := New(db, jmt.PreGenesisVersion)
	require.NoError(t, err)

	val, err := snap.NonconsensusGet([]byte("peer/1"))
	require.NoError(t, err)
	require.Equal(t, []byte("a"), val)

	var keys []string
	require.NoError(t, snap.NonconsensusPrefixIter([]byte("peer/"), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	}))
	require.Equal(t, []string{"peer/1", "peer/2"}, keys)
}

func TestSnapshotKeyIndexLookup(t *testing.T) {
	db := openTestDB(t)
	kh := jmt.ComputeKeyHash([]byte("alice/balance"))
	commitValues(t, db, nil, []jmt.KeyValue{{KeyHash: kh, Value: []byte("100")}}, 0)
	require.NoError(t, db.Update(func(txn *kvdb.Txn) error {
		if err := txn.Put(kvdb.CFJmtKeys, []byte("alice/balance"), kh[:]); err != nil {
			return err
		}
		return txn.Put(kvdb.CFJmtKeysByKeyHash, kh[:], []byte("alice/balance"))
	}))

	snap, err := New(db, 0)
	require.NoError(t, err)

	gotHash, ok, err := snap.LookupKeyHash([]byte("alice/balance"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, kh, gotHash)

	gotPreimage, ok, err := snap.LookupPreimage(kh)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("alice/balance"), gotPreimage)

	_, ok, err = snap.LookupKeyHash([]byte("nobody"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSnapshotNonconsensusNotMixedIntoRoot(t *testing.T) {
	db := openTestDB(t)
	snapBefore, err := New(db, jmt.PreGenesisVersion)
	require.NoError(t, err)
	rootBefore := snapBefore.RootHash()

	require.NoError(t, db.Update(func(txn *kvdb.Txn) error {
		return txn.Put(kvdb.CFNonconsensus, []byte("k"), []byte("v"))
	}))

	snapAfter, err := New(db, jmt.PreGenesisVersion)
	require.NoError(t, err)
	require.Equal(t, rootBefore, snapAfter.RootHash())
}
