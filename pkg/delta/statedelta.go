package delta

import (
	"fmt"

	"github.com/nodesbond/penumbra/pkg/snapshot"
)

// StateDelta layers pending writes over a base Snapshot: reads check the
// cache first and fall through to the base snapshot only for keys with no
// pending change.
type StateDelta struct {
	base     *snapshot.Snapshot
	cache    *Cache
	consumed bool
}

// NewStateDelta returns a StateDelta writing over base.
func NewStateDelta(base *snapshot.Snapshot) *StateDelta {
	return &StateDelta{base: base, cache: NewCache()}
}

func (d *StateDelta) checkNotConsumed() {
	if d.consumed {
		panic("delta: StateDelta used after Flatten")
	}
}

// Put stages an authenticated write.
func (d *StateDelta) Put(key, value []byte) {
	d.checkNotConsumed()
	d.cache.Put(key, value)
}

// Delete stages an authenticated delete.
func (d *StateDelta) Delete(key []byte) {
	d.checkNotConsumed()
	d.cache.Delete(key)
}

// Get returns key's value, checking pending changes before the base
// snapshot.
func (d *StateDelta) Get(key []byte) ([]byte, error) {
	d.checkNotConsumed()
	if v, ok := d.cache.Get(key); ok {
		if v == nil {
			return nil, nil
		}
		return *v, nil
	}
	val, err := d.base.Get(key)
	if err != nil {
		return nil, fmt.Errorf("delta: get: %w", err)
	}
	return val, nil
}

// NonconsensusPut stages a nonconsensus write.
func (d *StateDelta) NonconsensusPut(key, value []byte) {
	d.checkNotConsumed()
	d.cache.NonconsensusPut(key, value)
}

// NonconsensusDelete stages a nonconsensus delete.
func (d *StateDelta) NonconsensusDelete(key []byte) {
	d.checkNotConsumed()
	d.cache.NonconsensusDelete(key)
}

// NonconsensusGet returns key's nonconsensus value, checking pending changes
// before the base snapshot.
func (d *StateDelta) NonconsensusGet(key []byte) ([]byte, error) {
	d.checkNotConsumed()
	if v, ok := d.cache.NonconsensusGet(key); ok {
		if v == nil {
			return nil, nil
		}
		return *v, nil
	}
	val, err := d.base.NonconsensusGet(key)
	if err != nil {
		return nil, fmt.Errorf("delta: nonconsensus get: %w", err)
	}
	return val, nil
}

// Base returns the snapshot this delta is staged over.
func (d *StateDelta) Base() *snapshot.Snapshot {
	return d.base
}

// Flatten is one-shot: it returns the base snapshot and the accumulated
// cache for the commit pipeline to apply, and marks the delta consumed.
// Any further use of the delta panics.
func (d *StateDelta) Flatten() (*snapshot.Snapshot, *Cache) {
	d.checkNotConsumed()
	d.consumed = true
	return d.base, d.cache
}
