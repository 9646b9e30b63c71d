// pkg/jmt/keyhash.go
package jmt

import "crypto/sha256"

// KeyHash is the 32-byte digest of an authenticated key's preimage.
// Determinism of this hash is part of the wire-visible contract: changing
// it changes every root hash computed on top of it.
type KeyHash [32]byte

// ComputeKeyHash hashes a key preimage with SHA-256.
func ComputeKeyHash(key []byte) KeyHash {
	return KeyHash(sha256.Sum256(key))
}

// keyHashNibbles returns the 64 nibbles (4 bits each) of h, most significant
// first, used as the tree's root-to-leaf path.
func keyHashNibbles(h KeyHash) []byte {
	path := make([]byte, KeyHashNibbles)
	for i, b := range h {
		path[2*i] = b >> 4
		path[2*i+1] = b & 0x0f
	}
	return path
}
