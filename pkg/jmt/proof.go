// pkg/jmt/proof.go
package jmt

import (
	"crypto/sha256"
	"fmt"
)

// Proof is a membership or non-membership proof for a single key against a
// specific root hash. Levels[d] holds the 16 child hashes observed at depth
// d along the key's path (including the child actually followed); a
// verifier recomputes each level's InternalNode hash bottom-up and checks
// it against the hash recorded one level up, finishing at the root.
type Proof struct {
	Levels [KeyHashNibbles][16][32]byte
	Leaf   *LeafNode // nil for a non-membership proof
}

// GetWithProof walks the tree exactly like GetLeaf but additionally records,
// at every depth, the full row of 16 child hashes, producing a Proof
// verifiable against the root hash at root.
func GetWithProof(reader TreeReader, root *ChildRef, keyHash KeyHash) (LeafNode, bool, Proof, error) {
	var proof Proof
	path := keyHashNibbles(keyHash)

	if root == nil {
		for d := 0; d < KeyHashNibbles; d++ {
			for i := 0; i < 16; i++ {
				proof.Levels[d][i] = emptyHashes[d+1]
			}
		}
		return LeafNode{}, false, proof, nil
	}

	ref := root
	for depth := 0; depth < KeyHashNibbles; depth++ {
		n, ok, err := reader.GetNode(NodeKey{Version: ref.Version, Path: path[:depth]})
		if err != nil {
			return LeafNode{}, false, Proof{}, fmt.Errorf("%w: reading node at depth %d: %v", ErrJmt, depth, err)
		}
		if !ok {
			return LeafNode{}, false, Proof{}, fmt.Errorf("%w: missing node at depth %d, version %d", ErrJmt, depth, ref.Version)
		}
		in, err := nodeAsInternal(n)
		if err != nil {
			return LeafNode{}, false, Proof{}, err
		}

		empty := emptyHashes[depth+1]
		for i := 0; i < 16; i++ {
			if in.Children[i] != nil {
				proof.Levels[depth][i] = in.Children[i].Hash
			} else {
				proof.Levels[depth][i] = empty
			}
		}

		nibble := path[depth]
		child := in.Children[nibble]
		if child == nil {
			// Every level below an empty child is an empty subtree.
			for d := depth + 1; d < KeyHashNibbles; d++ {
				for i := 0; i < 16; i++ {
					proof.Levels[d][i] = emptyHashes[d+1]
				}
			}
			return LeafNode{}, false, proof, nil
		}
		ref = child
	}

	n, ok, err := reader.GetNode(NodeKey{Version: ref.Version, Path: path})
	if err != nil {
		return LeafNode{}, false, Proof{}, fmt.Errorf("%w: reading leaf: %v", ErrJmt, err)
	}
	if !ok {
		return LeafNode{}, false, proof, nil
	}
	leaf, ok := n.(LeafNode)
	if !ok {
		return LeafNode{}, false, Proof{}, fmt.Errorf("%w: expected leaf node at full path", ErrJmt)
	}
	proof.Leaf = &leaf
	return leaf, true, proof, nil
}

// VerifyProof recomputes the root hash implied by proof and checks it
// against expectedRoot.
func VerifyProof(keyHash KeyHash, proof Proof, expectedRoot [32]byte) bool {
	path := keyHashNibbles(keyHash)

	var cur [32]byte
	if proof.Leaf != nil {
		cur = proof.Leaf.Hash()
	} else {
		cur = emptyHashes[KeyHashNibbles]
	}

	for depth := KeyHashNibbles - 1; depth >= 0; depth-- {
		nibble := path[depth]
		if proof.Levels[depth][nibble] != cur {
			return false
		}
		cur = hashInternalChildren(proof.Levels[depth])
	}
	return cur == expectedRoot
}

func hashInternalChildren(children [16][32]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte{internalTag})
	for _, c := range children {
		h.Write(c[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
