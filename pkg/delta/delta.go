// Package delta implements the writer-side staging area for pending
// mutations over a base Snapshot: a Cache of unwritten changes plus a
// StateDelta that layers reads through it before falling back to the base
// snapshot, and a one-shot Flatten that hands both back to the commit
// pipeline.
package delta

// Cache holds pending mutations to both namespaces, keyed by raw key bytes.
// A nil *[]byte entry means "delete"; a non-nil entry holds the new value. A
// key absent from the map has no pending change at all, distinct from a
// pending delete.
type Cache struct {
	unwrittenChanges    map[string]*[]byte
	nonconsensusChanges map[string]*[]byte
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{
		unwrittenChanges:    make(map[string]*[]byte),
		nonconsensusChanges: make(map[string]*[]byte),
	}
}

// Put stages a write to the authenticated namespace.
func (c *Cache) Put(key, value []byte) {
	v := append([]byte(nil), value...)
	c.unwrittenChanges[string(key)] = &v
}

// Delete stages a delete of the authenticated namespace.
func (c *Cache) Delete(key []byte) {
	c.unwrittenChanges[string(key)] = nil
}

// Get returns the pending change for key, if any: (value, true) for a
// staged write, (nil, true) for a staged delete, (nil, false) if untouched.
func (c *Cache) Get(key []byte) (*[]byte, bool) {
	v, ok := c.unwrittenChanges[string(key)]
	return v, ok
}

// NonconsensusPut stages a write to the nonconsensus namespace.
func (c *Cache) NonconsensusPut(key, value []byte) {
	v := append([]byte(nil), value...)
	c.nonconsensusChanges[string(key)] = &v
}

// NonconsensusDelete stages a delete of the nonconsensus namespace.
func (c *Cache) NonconsensusDelete(key []byte) {
	c.nonconsensusChanges[string(key)] = nil
}

// NonconsensusGet returns the pending nonconsensus change for key, if any.
func (c *Cache) NonconsensusGet(key []byte) (*[]byte, bool) {
	v, ok := c.nonconsensusChanges[string(key)]
	return v, ok
}

// AuthenticatedChanges returns every staged authenticated key/value pair, nil
// value meaning delete. Used by the commit pipeline to build a jmt.KeyValue
// batch.
func (c *Cache) AuthenticatedChanges() map[string]*[]byte {
	return c.unwrittenChanges
}

// NonconsensusChanges returns every staged nonconsensus key/value pair, nil
// value meaning delete.
func (c *Cache) NonconsensusChanges() map[string]*[]byte {
	return c.nonconsensusChanges
}
