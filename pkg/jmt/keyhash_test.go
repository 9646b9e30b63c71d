package jmt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeKeyHashDeterministic(t *testing.T) {
	a := ComputeKeyHash([]byte("carol/balance"))
	b := ComputeKeyHash([]byte("carol/balance"))
	require.Equal(t, a, b)

	c := ComputeKeyHash([]byte("carol/balancee"))
	require.NotEqual(t, a, c)
}

func TestKeyHashNibblesExpandsMSBFirst(t *testing.T) {
	var h KeyHash
	h[0] = 0xab
	h[1] = 0xcd
	nibbles := keyHashNibbles(h)
	require.Len(t, nibbles, KeyHashNibbles)
	require.Equal(t, byte(0xa), nibbles[0])
	require.Equal(t, byte(0xb), nibbles[1])
	require.Equal(t, byte(0xc), nibbles[2])
	require.Equal(t, byte(0xd), nibbles[3])
}
