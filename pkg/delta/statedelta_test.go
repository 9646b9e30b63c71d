package delta

import (
	"testing"

	"github.com/nodesbond/penumbra/pkg/jmt"
	"github.com/nodesbond/penumbra/pkg/kvdb"
	"github.com/nodesbond/penumbra/pkg/snapshot"
	"github.com/stretchr/testify/require"
)

func newBaseSnapshot(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	db, err := kvdb.Open(kvdb.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	snap, err := snapshot.New(db, jmt.PreGenesisVersion)
	require.NoError(t, err)
	return snap
}

func TestStateDeltaReadsThroughToBase(t *testing.T) {
	base := newBaseSnapshot(t)
	d := NewStateDelta(base)

	val, err := d.Get([]byte("untouched"))
	require.NoError(t, err)
	require.Nil(t, val)
}

func TestStateDeltaStagedWriteShadowsBase(t *testing.T) {
	base := newBaseSnapshot(t)
	d := NewStateDelta(base)
	d.Put([]byte("k"), []byte("new"))

	val, err := d.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("new"), val)
}

func TestStateDeltaStagedDeleteShadowsBase(t *testing.T) {
	base := newBaseSnapshot(t)
	d := NewStateDelta(base)
	d.Delete([]byte("k"))

	val, err := d.Get([]byte("k"))
	require.NoError(t, err)
	require.Nil(t, val)
}

func TestFlattenIsOneShot(t *testing.T) {
	base := newBaseSnapshot(t)
	d := NewStateDelta(base)
	d.Put([]byte("k"), []byte("v"))

	gotBase, cache := d.Flatten()
	require.Same(t, base, gotBase)
	v, ok := cache.Get([]byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("v"), *v)

	require.Panics(t, func() { d.Flatten() })
	require.Panics(t, func() { d.Put([]byte("k2"), []byte("v2")) })
	require.Panics(t, func() { _, _ = d.Get([]byte("k")) })
}
