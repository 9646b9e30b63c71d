package jmt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeInternalNode(t *testing.T) {
	n := InternalNode{}
	n.Children[0] = &ChildRef{Version: 5, Hash: [32]byte{1, 2, 3}, Leaf: true}
	n.Children[15] = &ChildRef{Version: 9, Hash: [32]byte{4, 5, 6}, Leaf: false}

	buf := EncodeNode(n)
	got, err := DecodeNode(buf)
	require.NoError(t, err)

	gotInternal, ok := got.(InternalNode)
	require.True(t, ok)
	require.Equal(t, n.Children[0], gotInternal.Children[0])
	require.Equal(t, n.Children[15], gotInternal.Children[15])
	for i := 1; i < 15; i++ {
		require.Nil(t, gotInternal.Children[i])
	}
}

func TestEncodeDecodeLeafNode(t *testing.T) {
	leaf := LeafNode{KeyHash: ComputeKeyHash([]byte("a")), ValueHash: hashValue([]byte("1"))}
	buf := EncodeNode(leaf)
	got, err := DecodeNode(buf)
	require.NoError(t, err)
	require.Equal(t, leaf, got)
}

func TestDecodeNodeRejectsEmptyBuffer(t *testing.T) {
	_, err := DecodeNode(nil)
	require.ErrorIs(t, err, ErrDecode)
}

func TestDecodeNodeRejectsUnknownTag(t *testing.T) {
	_, err := DecodeNode([]byte{0xee})
	require.ErrorIs(t, err, ErrDecode)
}

func TestDecodeNodeRejectsTruncatedInternal(t *testing.T) {
	_, err := DecodeNode([]byte{internalTag, 0, 0})
	require.ErrorIs(t, err, ErrDecode)
}
