package jmt

import (
	"encoding/binary"
	"fmt"
)

const childPresent byte = 1
const childAbsent byte = 0

// EncodeNode serializes a Node for storage in the jmt column family, keyed by
// its NodeKey. InternalNode encodes each of its 16 children as a presence
// byte followed by (version, hash, leaf flag) when present; LeafNode encodes
// its KeyHash and ValueHash directly.
func EncodeNode(n Node) []byte {
	switch v := n.(type) {
	case InternalNode:
		buf := make([]byte, 0, 1+16*(1+8+32+1))
		buf = append(buf, internalTag)
		for _, c := range v.Children {
			if c == nil {
				buf = append(buf, childAbsent)
				continue
			}
			buf = append(buf, childPresent)
			var verBuf [8]byte
			binary.BigEndian.PutUint64(verBuf[:], c.Version)
			buf = append(buf, verBuf[:]...)
			buf = append(buf, c.Hash[:]...)
			if c.Leaf {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		}
		return buf
	case LeafNode:
		buf := make([]byte, 0, 1+32+32)
		buf = append(buf, leafTag)
		buf = append(buf, v.KeyHash[:]...)
		buf = append(buf, v.ValueHash[:]...)
		return buf
	default:
		panic(fmt.Sprintf("jmt: EncodeNode: unknown node type %T", n))
	}
}

// DecodeNode is the inverse of EncodeNode.
func DecodeNode(buf []byte) (Node, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("%w: empty node buffer", ErrDecode)
	}
	switch buf[0] {
	case internalTag:
		const entrySize = 1 + 8 + 32 + 1
		rest := buf[1:]
		if len(rest) != 16*entrySize {
			return nil, fmt.Errorf("%w: internal node buffer has %d bytes, want %d", ErrDecode, len(rest), 16*entrySize)
		}
		var node InternalNode
		for i := 0; i < 16; i++ {
			entry := rest[i*entrySize : (i+1)*entrySize]
			if entry[0] == childAbsent {
				continue
			}
			version := binary.BigEndian.Uint64(entry[1:9])
			var hash [32]byte
			copy(hash[:], entry[9:41])
			leaf := entry[41] == 1
			node.Children[i] = &ChildRef{Version: version, Hash: hash, Leaf: leaf}
		}
		return node, nil
	case leafTag:
		if len(buf) != 1+32+32 {
			return nil, fmt.Errorf("%w: leaf node buffer has %d bytes, want %d", ErrDecode, len(buf), 1+32+32)
		}
		var leaf LeafNode
		copy(leaf.KeyHash[:], buf[1:33])
		copy(leaf.ValueHash[:], buf[33:65])
		return leaf, nil
	default:
		return nil, fmt.Errorf("%w: unknown node tag %d", ErrDecode, buf[0])
	}
}
