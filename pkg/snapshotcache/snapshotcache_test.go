package snapshotcache

import (
	"testing"

	"github.com/nodesbond/penumbra/pkg/jmt"
	"github.com/nodesbond/penumbra/pkg/kvdb"
	"github.com/nodesbond/penumbra/pkg/snapshot"
	"github.com/stretchr/testify/require"
)

// commitChain commits a chain of versions against one in-memory store so pushed
// snapshots carry real, increasing version numbers.
func commitChain(t *testing.T, n int) []*snapshot.Snapshot {
	t.Helper()
	db, err := kvdb.Open(kvdb.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var snaps []*snapshot.Snapshot
	var oldRoot *jmt.ChildRef
	for v := 0; v < n; v++ {
		version := jmt.Version(v)
		root, batch, err := jmt.PutValueSet(db.TreeReader(), oldRoot, nil, version)
		require.NoError(t, err)
		require.NoError(t, db.Update(func(txn *kvdb.Txn) error {
			for _, e := range batch.NodeEntries() {
				if err := kvdb.PutNode(txn, e.Key, e.Node); err != nil {
					return err
				}
			}
			return nil
		}))
		oldRoot = &jmt.ChildRef{Version: version, Hash: root}
		snap, err := snapshot.New(db, version)
		require.NoError(t, err)
		snaps = append(snaps, snap)
	}
	return snaps
}

func TestTryPushSequential(t *testing.T) {
	c := New(10)
	snaps := commitChain(t, 3)
	for _, s := range snaps {
		require.NoError(t, c.TryPush(s))
	}
	require.Equal(t, 3, c.Len())

	latest, ok := c.Latest()
	require.True(t, ok)
	require.Equal(t, jmt.Version(2), latest.Version())
}

func TestTryPushRejectsNonSequential(t *testing.T) {
	c := New(10)
	snaps := commitChain(t, 3)
	require.NoError(t, c.TryPush(snaps[0]))
	err := c.TryPush(snaps[2])
	require.ErrorIs(t, err, ErrNonSequential)
}

func TestTryPushRejectsDuplicate(t *testing.T) {
	c := New(10)
	snaps := commitChain(t, 2)
	require.NoError(t, c.TryPush(snaps[0]))
	require.NoError(t, c.TryPush(snaps[1]))
	err := c.TryPush(snaps[1])
	require.ErrorIs(t, err, ErrNonSequential)
}

func TestGetReturnsResidentSnapshot(t *testing.T) {
	c := New(10)
	snaps := commitChain(t, 2)
	require.NoError(t, c.TryPush(snaps[0]))
	require.NoError(t, c.TryPush(snaps[1]))

	got, ok := c.Get(0)
	require.True(t, ok)
	require.Equal(t, jmt.Version(0), got.Version())
}

func TestCapacityEvictsOldest(t *testing.T) {
	c := New(2)
	snaps := commitChain(t, 3)
	for _, s := range snaps {
		require.NoError(t, c.TryPush(s))
	}
	require.Equal(t, 2, c.Len())

	_, ok := c.Get(0)
	require.False(t, ok)

	_, ok = c.Get(1)
	require.True(t, ok)
	_, ok = c.Get(2)
	require.True(t, ok)
}

func TestSeedPrimesAtArbitraryVersion(t *testing.T) {
	c := New(10)
	snaps := commitChain(t, 5)
	c.Seed(snaps[3])

	latest, ok := c.Latest()
	require.True(t, ok)
	require.Equal(t, jmt.Version(3), latest.Version())

	// a subsequent TryPush must still be seeded+1.
	require.NoError(t, c.TryPush(snaps[4]))
	err := c.TryPush(snaps[1])
	require.ErrorIs(t, err, ErrNonSequential)
}

func TestDefaultCapacityUsedWhenNonPositive(t *testing.T) {
	c := New(0)
	require.Equal(t, DefaultCapacity, c.capacity)
}
