// pkg/jmt/tree.go
//
// Package jmt implements a versioned, content-addressed Merkle tree: given a
// mapping of hashed keys to optional values and a new version, it produces a
// new root hash and a batch of node mutations. It is a non-path-compressed
// radix-16 sparse Merkle tree over the 256-bit KeyHash space, addressed by
// (version, nibble path) NodeKeys (see node.go, nodekey.go). Nodes are
// immutable once written; every mutation produces new nodes at the new
// version and never touches what a previous version wrote.
package jmt

import (
	"errors"
	"fmt"
	"sort"
)

// ErrJmt wraps failures reported by the tree primitive itself, distinct
// from decode or backing-store errors.
var ErrJmt = errors.New("jmt: internal error")

// TreeReader resolves a NodeKey to its stored Node. Implemented by the
// backing store adapter (pkg/kvdb) over the jmt column family.
type TreeReader interface {
	GetNode(key NodeKey) (Node, bool, error)
}

// KeyValue is one entry of a value set: the hash of an authenticated key and
// either its new value bytes, or nil to mean "delete".
type KeyValue struct {
	KeyHash KeyHash
	Value   []byte
}

// NodeBatch is the output of PutValueSet: every newly created node, plus a
// map from KeyHash to the raw value bytes for every key touched by this
// commit (nil entry means the key was deleted). Nodes and Values never include anything from
// a prior version.
type NodeBatch struct {
	Nodes  map[NodeKey]Node
	Values map[KeyHash][]byte
}

func newNodeBatch() *NodeBatch {
	return &NodeBatch{
		Nodes:  make(map[NodeKey]Node),
		Values: make(map[KeyHash][]byte),
	}
}

// NodeEntries returns the batch's (NodeKey, Node) pairs. Mirrors the
// NodeBatch::nodes() accessor of the jmt crate this package's API is shaped
// after.
func (b *NodeBatch) NodeEntries() []struct {
	Key  NodeKey
	Node Node
} {
	out := make([]struct {
		Key  NodeKey
		Node Node
	}, 0, len(b.Nodes))
	for k, n := range b.Nodes {
		out = append(out, struct {
			Key  NodeKey
			Node Node
		}{k, n})
	}
	return out
}

// keyUpdate is an internal working form of KeyValue with its nibble path
// precomputed, used while partitioning a value set during a tree walk.
type keyUpdate struct {
	KeyHash KeyHash
	Path    []byte
	Value   []byte // nil means delete
}

// PutValueSet applies values at new version, producing the new root hash and
// the batch of newly written nodes. oldRoot is the ChildRef to the tree's
// root as of version-1 (nil if the tree was empty / pre-genesis).
func PutValueSet(reader TreeReader, oldRoot *ChildRef, values []KeyValue, version Version) ([32]byte, *NodeBatch, error) {
	batch := newNodeBatch()
	for _, kv := range values {
		batch.Values[kv.KeyHash] = kv.Value
	}

	var rootNode InternalNode
	if len(values) == 0 {
		existing, err := loadRoot(reader, oldRoot)
		if err != nil {
			return [32]byte{}, nil, err
		}
		rootNode = existing
	} else {
		existing, err := loadRoot(reader, oldRoot)
		if err != nil {
			return [32]byte{}, nil, err
		}
		rootNode = existing

		kvs := make([]keyUpdate, len(values))
		for i, kv := range values {
			kvs[i] = keyUpdate{KeyHash: kv.KeyHash, Path: keyHashNibbles(kv.KeyHash), Value: kv.Value}
		}
		sort.Slice(kvs, func(i, j int) bool {
			return lessBytes(kvs[i].Path, kvs[j].Path)
		})

		buckets := partitionByNibble(kvs, 0)
		for n := 0; n < 16; n++ {
			if len(buckets[n]) == 0 {
				continue
			}
			child, err := apply(reader, 1, rootNode.Children[n], buckets[n], version, batch)
			if err != nil {
				return [32]byte{}, nil, err
			}
			rootNode.Children[n] = child
		}
	}

	batch.Nodes[rootKey(version)] = rootNode
	return rootNode.Hash(0), batch, nil
}

func loadRoot(reader TreeReader, oldRoot *ChildRef) (InternalNode, error) {
	if oldRoot == nil {
		return InternalNode{}, nil
	}
	n, ok, err := reader.GetNode(rootKey(oldRoot.Version))
	if err != nil {
		return InternalNode{}, fmt.Errorf("%w: reading root at version %d: %v", ErrJmt, oldRoot.Version, err)
	}
	if !ok {
		return InternalNode{}, fmt.Errorf("%w: missing root node at version %d", ErrJmt, oldRoot.Version)
	}
	return nodeAsInternal(n)
}

// apply walks the tree at depth, updating exactly the children touched by
// kvs (all of which share the depth-length path prefix) and leaving every
// other child reference untouched. It returns the new ChildRef for this
// subtree, or nil if the subtree became empty.
func apply(reader TreeReader, depth int, cur *ChildRef, kvs []keyUpdate, version Version, batch *NodeBatch) (*ChildRef, error) {
	if depth == KeyHashNibbles {
		kv := kvs[0]
		if kv.Value == nil {
			return nil, nil
		}
		leaf := LeafNode{KeyHash: kv.KeyHash, ValueHash: hashValue(kv.Value)}
		batch.Nodes[NodeKey{Version: version, Path: append([]byte(nil), kv.Path...)}] = leaf
		h := leaf.Hash()
		return &ChildRef{Version: version, Hash: h, Leaf: true}, nil
	}

	var node InternalNode
	if cur != nil {
		existing, ok, err := reader.GetNode(NodeKey{Version: cur.Version, Path: kvs[0].Path[:depth]})
		if err != nil {
			return nil, fmt.Errorf("%w: reading node at depth %d: %v", ErrJmt, depth, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: missing node referenced at depth %d, version %d", ErrJmt, depth, cur.Version)
		}
		node, err = nodeAsInternal(existing)
		if err != nil {
			return nil, err
		}
	}

	buckets := partitionByNibble(kvs, depth)
	for n := 0; n < 16; n++ {
		if len(buckets[n]) == 0 {
			continue
		}
		child, err := apply(reader, depth+1, node.Children[n], buckets[n], version, batch)
		if err != nil {
			return nil, err
		}
		node.Children[n] = child
	}

	allNil := true
	for _, c := range node.Children {
		if c != nil {
			allNil = false
			break
		}
	}
	if allNil {
		return nil, nil
	}

	path := append([]byte(nil), kvs[0].Path[:depth]...)
	batch.Nodes[NodeKey{Version: version, Path: path}] = node
	h := node.Hash(depth)
	return &ChildRef{Version: version, Hash: h, Leaf: false}, nil
}

// partitionByNibble splits kvs (already sorted by path) into 16 buckets by
// their nibble at depth.
func partitionByNibble(kvs []keyUpdate, depth int) [16][]keyUpdate {
	var buckets [16][]keyUpdate
	for _, kv := range kvs {
		n := kv.Path[depth]
		buckets[n] = append(buckets[n], kv)
	}
	return buckets
}

func lessBytes(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// GetLeaf walks the tree rooted at root to find the leaf for keyHash,
// returning (leaf, true, nil) if present or (zero, false, nil) if absent.
func GetLeaf(reader TreeReader, root *ChildRef, keyHash KeyHash) (LeafNode, bool, error) {
	if root == nil {
		return LeafNode{}, false, nil
	}
	path := keyHashNibbles(keyHash)

	ref := root
	for depth := 0; depth < KeyHashNibbles; depth++ {
		n, ok, err := reader.GetNode(NodeKey{Version: ref.Version, Path: path[:depth]})
		if err != nil {
			return LeafNode{}, false, fmt.Errorf("%w: reading node at depth %d: %v", ErrJmt, depth, err)
		}
		if !ok {
			return LeafNode{}, false, fmt.Errorf("%w: missing node at depth %d, version %d", ErrJmt, depth, ref.Version)
		}
		in, err := nodeAsInternal(n)
		if err != nil {
			return LeafNode{}, false, err
		}
		child := in.Children[path[depth]]
		if child == nil {
			return LeafNode{}, false, nil
		}
		ref = child
	}

	n, ok, err := reader.GetNode(NodeKey{Version: ref.Version, Path: path})
	if err != nil {
		return LeafNode{}, false, fmt.Errorf("%w: reading leaf: %v", ErrJmt, err)
	}
	if !ok {
		return LeafNode{}, false, nil
	}
	leaf, ok := n.(LeafNode)
	if !ok {
		return LeafNode{}, false, fmt.Errorf("%w: expected leaf node at full path", ErrJmt)
	}
	return leaf, true, nil
}

// GetLeafRef behaves like GetLeaf but additionally returns the version at
// which the leaf was last written. Snapshot.Get uses this version to address
// the jmt_values column family, since a leaf's ValueHash alone only
// authenticates a value; it does not locate the raw bytes.
func GetLeafRef(reader TreeReader, root *ChildRef, keyHash KeyHash) (LeafNode, Version, bool, error) {
	if root == nil {
		return LeafNode{}, 0, false, nil
	}
	path := keyHashNibbles(keyHash)

	ref := root
	for depth := 0; depth < KeyHashNibbles; depth++ {
		n, ok, err := reader.GetNode(NodeKey{Version: ref.Version, Path: path[:depth]})
		if err != nil {
			return LeafNode{}, 0, false, fmt.Errorf("%w: reading node at depth %d: %v", ErrJmt, depth, err)
		}
		if !ok {
			return LeafNode{}, 0, false, fmt.Errorf("%w: missing node at depth %d, version %d", ErrJmt, depth, ref.Version)
		}
		in, err := nodeAsInternal(n)
		if err != nil {
			return LeafNode{}, 0, false, err
		}
		child := in.Children[path[depth]]
		if child == nil {
			return LeafNode{}, 0, false, nil
		}
		ref = child
	}

	n, ok, err := reader.GetNode(NodeKey{Version: ref.Version, Path: path})
	if err != nil {
		return LeafNode{}, 0, false, fmt.Errorf("%w: reading leaf: %v", ErrJmt, err)
	}
	if !ok {
		return LeafNode{}, 0, false, nil
	}
	leaf, ok := n.(LeafNode)
	if !ok {
		return LeafNode{}, 0, false, fmt.Errorf("%w: expected leaf node at full path", ErrJmt)
	}
	return leaf, ref.Version, true, nil
}

// RootRefAt resolves the ChildRef to the root as it stood at version,
// reading the root's own stored node to recover its hash.
func RootRefAt(reader TreeReader, version Version) (*ChildRef, error) {
	if version == PreGenesisVersion {
		return nil, nil
	}
	n, ok, err := reader.GetNode(rootKey(version))
	if err != nil {
		return nil, fmt.Errorf("%w: reading root at version %d: %v", ErrJmt, version, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: no root recorded for version %d", ErrJmt, version)
	}
	in, err := nodeAsInternal(n)
	if err != nil {
		return nil, err
	}
	h := in.Hash(0)
	return &ChildRef{Version: version, Hash: h, Leaf: false}, nil
}
