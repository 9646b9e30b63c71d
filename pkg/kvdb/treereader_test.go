package kvdb

import (
	"testing"

	"github.com/nodesbond/penumbra/pkg/jmt"
	"github.com/stretchr/testify/require"
)

func TestTreeReaderGetNodeRoundTrip(t *testing.T) {
	db := openTestDB(t)
	reader := db.TreeReader()

	leaf := jmt.LeafNode{KeyHash: jmt.ComputeKeyHash([]byte("a")), ValueHash: [32]byte{1, 2, 3}}
	key := jmt.NodeKey{Version: 0, Path: make([]byte, jmt.KeyHashNibbles)}

	require.NoError(t, db.Update(func(txn *Txn) error {
		return PutNode(txn, key, leaf)
	}))

	got, ok, err := reader.GetNode(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, leaf, got)
}

func TestTreeReaderGetNodeMissing(t *testing.T) {
	db := openTestDB(t)
	reader := db.TreeReader()

	_, ok, err := reader.GetNode(jmt.NodeKey{Version: 0, Path: nil})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTreeReaderSatisfiesPutValueSet(t *testing.T) {
	db := openTestDB(t)
	reader := db.TreeReader()

	kh := jmt.ComputeKeyHash([]byte("alice"))
	root, batch, err := jmt.PutValueSet(reader, nil, []jmt.KeyValue{{KeyHash: kh, Value: []byte("100")}}, 0)
	require.NoError(t, err)

	require.NoError(t, db.Update(func(txn *Txn) error {
		for _, e := range batch.NodeEntries() {
			if err := PutNode(txn, e.Key, e.Node); err != nil {
				return err
			}
		}
		return nil
	}))

	leaf, ok, err := jmt.GetLeaf(reader, &jmt.ChildRef{Version: 0, Hash: root}, kh)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, kh, leaf.KeyHash)
}
