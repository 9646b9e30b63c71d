// Package snapshotcache holds a bounded ring of the most recently committed
// snapshots, keyed by version, so concurrent readers don't all have to
// re-resolve the JMT root on every read. It pairs a container/list doubly
// linked list with an index map, the same structure an LRU uses, but
// eviction here is driven purely by insertion order (oldest version evicted
// first) and insertion is constrained to strictly sequential versions
// rather than arbitrary keys.
package snapshotcache

import (
	"container/list"
	"errors"
	"sync"

	"github.com/nodesbond/penumbra/pkg/jmt"
	"github.com/nodesbond/penumbra/pkg/snapshot"
)

// DefaultCapacity is the number of recent snapshots retained.
const DefaultCapacity = 10

// ErrNonSequential is returned by TryPush when the pushed version does not
// immediately follow the cache's current latest version.
var ErrNonSequential = errors.New("snapshotcache: version is not latest+1")

type entry struct {
	version  jmt.Version
	snapshot *snapshot.Snapshot
	element  *list.Element
}

// SnapshotCache is a bounded, version-ordered ring of snapshots. Reads never
// contend with each other; only TryPush and Seed take the exclusive lock.
type SnapshotCache struct {
	mu        sync.RWMutex
	capacity  int
	order     *list.List // front = most recent, back = oldest
	byVer     map[jmt.Version]*entry
	hasLatest bool
	latest    jmt.Version
}

// New creates a SnapshotCache with the given capacity. A non-positive
// capacity falls back to DefaultCapacity. The cache starts empty, with its
// notion of "latest" primed at jmt.PreGenesisVersion so the first TryPush
// must carry version 0 (PreGenesisVersion+1 wraps to 0 by unsigned overflow).
func New(capacity int) *SnapshotCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SnapshotCache{
		capacity: capacity,
		order:    list.New(),
		byVer:    make(map[jmt.Version]*entry),
		latest:   jmt.PreGenesisVersion,
	}
}

// TryPush installs snap, which must be pinned to exactly latest+1 (with
// jmt.PreGenesisVersion+1 wrapping to 0 for the very first commit, by plain
// unsigned-integer overflow). Any other version is rejected with
// ErrNonSequential: the cache never holds a gap or installs the same version
// twice.
func (c *SnapshotCache) TryPush(snap *snapshot.Snapshot) error {
	version := snap.Version()

	c.mu.Lock()
	defer c.mu.Unlock()

	if version != c.latest+1 {
		return ErrNonSequential
	}

	elem := c.order.PushFront(version)
	c.byVer[version] = &entry{version: version, snapshot: snap, element: elem}
	c.latest = version
	c.hasLatest = true

	for c.order.Len() > c.capacity {
		back := c.order.Back()
		if back == nil {
			break
		}
		evictVersion := back.Value.(jmt.Version)
		c.order.Remove(back)
		delete(c.byVer, evictVersion)
	}
	return nil
}

// Get returns the snapshot pinned to version, if still resident.
func (c *SnapshotCache) Get(version jmt.Version) (*snapshot.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byVer[version]
	if !ok {
		return nil, false
	}
	return e.snapshot, true
}

// Latest returns the most recently pushed snapshot, if any have been pushed
// yet.
func (c *SnapshotCache) Latest() (*snapshot.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.hasLatest {
		return nil, false
	}
	e, ok := c.byVer[c.latest]
	if !ok {
		return nil, false
	}
	return e.snapshot, true
}

// Seed force-installs snap as the cache's starting point, bypassing the
// sequential-version check TryPush enforces. Used once, at storage open, to
// prime the cache at whatever version bootstrap recovered without having to
// replay every prior version's snapshot.
func (c *SnapshotCache) Seed(snap *snapshot.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	version := snap.Version()
	elem := c.order.PushFront(version)
	c.byVer[version] = &entry{version: version, snapshot: snap, element: elem}
	c.latest = version
	c.hasLatest = true
}

// Len returns the number of snapshots currently resident.
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}
