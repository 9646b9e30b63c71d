package kvdb

import (
	"errors"
	"fmt"

	"github.com/nodesbond/penumbra/pkg/jmt"
)

// TreeReader adapts the jmt column family to jmt.TreeReader, the interface
// the tree primitive uses to resolve a NodeKey to its stored Node.
type TreeReader struct {
	db *DB
}

// TreeReader returns a jmt.TreeReader backed by this store's jmt column
// family.
func (db *DB) TreeReader() jmt.TreeReader {
	return TreeReader{db: db}
}

// GetNode implements jmt.TreeReader.
func (r TreeReader) GetNode(key jmt.NodeKey) (jmt.Node, bool, error) {
	var node jmt.Node
	found := false
	err := r.db.View(func(txn *Txn) error {
		val, err := txn.Get(CFJmt, key.Encode())
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		n, derr := jmt.DecodeNode(val)
		if derr != nil {
			return derr
		}
		node = n
		found = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("kvdb: reading jmt node: %w", err)
	}
	return node, found, nil
}

// PutNode writes a single node into the jmt column family within an
// existing transaction, used by the tree writer during commit.
func PutNode(txn *Txn, key jmt.NodeKey, node jmt.Node) error {
	return txn.Put(CFJmt, key.Encode(), jmt.EncodeNode(node))
}
