package kvdb

import (
	"bytes"

	badger "github.com/dgraph-io/badger/v4"
)

// Iterator walks one column family's keyspace, stripping the column-family
// prefix from every key it returns. It owns its own read transaction and
// must be closed by the caller.
type Iterator struct {
	db      *DB
	prefix  []byte
	txn     *badger.Txn
	it      *badger.Iterator
	reverse bool
}

// NewIterator returns an Iterator positioned before its first entry. Call
// SeekToFirst or SeekToLast to begin.
func (db *DB) NewIterator(cf ColumnFamily) *Iterator {
	return &Iterator{db: db, prefix: []byte{byte(cf)}}
}

func (it *Iterator) start(reverse bool) {
	if it.it != nil {
		it.it.Close()
	}
	if it.txn != nil {
		it.txn.Discard()
	}
	it.txn = it.db.bdb.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = it.prefix
	opts.Reverse = reverse
	it.it = it.txn.NewIterator(opts)
	it.reverse = reverse
}

// SeekToFirst positions the iterator at the lexicographically smallest key
// in the column family.
func (it *Iterator) SeekToFirst() {
	it.start(false)
	it.it.Rewind()
}

// Seek positions a forward iterator at the first key within the column
// family greater than or equal to key, used for prefix scans.
func (it *Iterator) Seek(key []byte) {
	it.start(false)
	full := append(append([]byte(nil), it.prefix...), key...)
	it.it.Seek(full)
}

// SeekToLast positions the iterator at the lexicographically largest key in
// the column family, used by the bootstrap path to find the most recently
// committed jmt root.
func (it *Iterator) SeekToLast() {
	it.start(true)
	// Seeking past every real key with this prefix, in reverse order, lands
	// on the largest one.
	upper := append(append([]byte(nil), it.prefix...), bytes.Repeat([]byte{0xff}, 64)...)
	it.it.Seek(upper)
}

// Valid reports whether the iterator is positioned on an entry within the
// column family.
func (it *Iterator) Valid() bool {
	return it.it != nil && it.it.ValidForPrefix(it.prefix)
}

// Next advances the iterator.
func (it *Iterator) Next() {
	it.it.Next()
}

// Key returns the current entry's key with the column-family prefix
// stripped.
func (it *Iterator) Key() []byte {
	k := it.it.Item().Key()
	return append([]byte(nil), k[len(it.prefix):]...)
}

// Value returns the current entry's value.
func (it *Iterator) Value() ([]byte, error) {
	return it.it.Item().ValueCopy(nil)
}

// Close releases the iterator's transaction.
func (it *Iterator) Close() {
	if it.it != nil {
		it.it.Close()
		it.it = nil
	}
	if it.txn != nil {
		it.txn.Discard()
		it.txn = nil
	}
}
