// pkg/jmt/node.go
package jmt

import (
	"crypto/sha256"
	"fmt"
)

const (
	internalTag byte = 0x01
	leafTag     byte = 0x00
)

// Node is either an InternalNode or a LeafNode. Both are immutable once
// written: every mutation produces brand-new nodes at the new version,
// leaving previously-committed nodes untouched.
type Node interface {
	isNode()
}

// ChildRef points at a child subtree: the version at which it was last
// written (which may be older than the parent's version, if the subtree
// was untouched by later commits) and its content hash.
type ChildRef struct {
	Version Version
	Hash    [32]byte
	Leaf    bool
}

// InternalNode has up to 16 children, one per nibble value. A nil entry
// means that nibble's subtree is empty.
type InternalNode struct {
	Children [16]*ChildRef
}

func (InternalNode) isNode() {}

// Hash computes this node's content hash. depth is the node's distance from
// the root (0 = root), used to look up the correct empty-subtree constant
// for absent children.
func (n InternalNode) Hash(depth int) [32]byte {
	empty := emptyHashes[depth+1]
	var children [16][32]byte
	for i, c := range n.Children {
		if c != nil {
			children[i] = c.Hash
		} else {
			children[i] = empty
		}
	}
	return hashInternalChildren(children)
}

// LeafNode is a leaf at depth KeyHashNibbles: the full key hash and the hash
// of the value bytes stored at it. The raw value lives in the jmt_values
// column family, addressed by VersionedKey{KeyHash, Version}; the tree only
// needs to authenticate it.
type LeafNode struct {
	KeyHash   KeyHash
	ValueHash [32]byte
}

func (LeafNode) isNode() {}

// Hash computes this leaf's content hash.
func (n LeafNode) Hash() [32]byte {
	h := sha256.New()
	h.Write([]byte{leafTag})
	h.Write(n.KeyHash[:])
	h.Write(n.ValueHash[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// emptyHashes[d] is the hash of a fully empty subtree rooted at depth d.
// emptyHashes[KeyHashNibbles] is a fixed constant for "no leaf here";
// emptyHashes[d] for d < KeyHashNibbles is the hash of an InternalNode all
// of whose children are themselves empty at depth d+1.
var emptyHashes = computeEmptyHashes()

// EmptyRootHash is the root hash of a fully empty tree, returned by
// Snapshot.RootHash when pinned to the pre-genesis version.
var EmptyRootHash = emptyHashes[0]

func computeEmptyHashes() [KeyHashNibbles + 1][32]byte {
	var hashes [KeyHashNibbles + 1][32]byte
	hashes[KeyHashNibbles] = sha256.Sum256([]byte("penumbra/jmt: empty leaf"))
	for d := KeyHashNibbles - 1; d >= 0; d-- {
		h := sha256.New()
		h.Write([]byte{internalTag})
		for i := 0; i < 16; i++ {
			h.Write(hashes[d+1][:])
		}
		copy(hashes[d][:], h.Sum(nil))
	}
	return hashes
}

func hashValue(value []byte) [32]byte {
	return sha256.Sum256(value)
}

func nodeAsInternal(n Node) (InternalNode, error) {
	in, ok := n.(InternalNode)
	if !ok {
		return InternalNode{}, fmt.Errorf("%w: expected internal node, got %T", ErrDecode, n)
	}
	return in, nil
}
