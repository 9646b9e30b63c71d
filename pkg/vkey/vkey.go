// Package vkey implements the fixed-width VersionedKey composite key: a
// KeyHash paired with the version at which the value under it was written,
// used to address the jmt_values column family. Unlike jmt.NodeKey this codec is fixed-width and needs no
// variable-length framing.
package vkey

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nodesbond/penumbra/pkg/jmt"
)

// Size is the encoded length of a VersionedKey: 32-byte KeyHash followed by
// an 8-byte big-endian version.
const Size = 40

// ErrBadLength is returned by Decode when given a buffer whose length is not
// exactly Size.
var ErrBadLength = errors.New("vkey: buffer is not 40 bytes")

// Encode packs h and v into a 40-byte composite key. Big-endian version
// encoding keeps keys for the same hash ordered by version when compared
// lexicographically, so a scan of jmt_values visits one key's versions in
// ascending order.
func Encode(h jmt.KeyHash, v jmt.Version) [Size]byte {
	var out [Size]byte
	copy(out[:32], h[:])
	binary.BigEndian.PutUint64(out[32:], v)
	return out
}

// Decode is the inverse of Encode. Any buffer whose length is not exactly
// Size is rejected rather than silently truncated or padded.
func Decode(b []byte) (jmt.KeyHash, jmt.Version, error) {
	if len(b) != Size {
		return jmt.KeyHash{}, 0, fmt.Errorf("%w: got %d bytes", ErrBadLength, len(b))
	}
	var h jmt.KeyHash
	copy(h[:], b[:32])
	v := binary.BigEndian.Uint64(b[32:])
	return h, v, nil
}
