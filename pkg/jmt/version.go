// pkg/jmt/version.go
package jmt

// Version identifies a committed state of the tree. Versions advance
// strictly by +1 per commit (modulo wraparound, which callers are not
// expected to hit in practice).
type Version = uint64

// PreGenesisVersion is the sentinel meaning "no commits yet". The first
// real commit produces version 0 via modular increment of this value.
const PreGenesisVersion Version = ^Version(0)

// KeyHashNibbles is the depth of the tree: one level per nibble of a
// 32-byte (256-bit) KeyHash.
const KeyHashNibbles = 64
