// Package codec implements the v2 batch wire format: framing a decoded
// Arbor into a self-describing byte sequence, and decoding those bytes back
// into a zero-copy BatchView (spec §4.5, §6.1).
package codec

import "github.com/arbors/arbors"

// Magic identifies the v2 codec frame.
var Magic = [4]byte{'A', 'R', 'B', '2'}

const (
	VersionMajor uint8 = 2
	VersionMinor uint8 = 0

	// flagLittleEndian marks the frame's multi-byte fields as little-endian.
	// The codec never writes any other byte order; the flag exists so a
	// reader can reject a frame produced by a differently-endian writer
	// instead of silently misinterpreting it.
	flagLittleEndian uint16 = 1 << 0
)

// structuralField indexes the six fixed-width node-table arrays, in their
// declared wire order (spec §6.1).
type structuralField int

const (
	fieldParent structuralField = iota
	fieldKey
	fieldType
	fieldChildrenStart
	fieldChildrenCount
	fieldPoolIndex
	numStructuralFields
)

// offsetLen is an (offset, length) pair into the frame, in bytes.
type offsetLen struct {
	Offset uint64
	Length uint64
}

// poolDescriptor locates one of the eight primitive pools within the frame.
// byteLength covers the pool's entire encoded region (offsets, if variable
// width, plus values plus validity bitmap); elementCount is the logical
// entry count, independent of encoding.
type poolDescriptor struct {
	Offset       uint64
	ByteLength   uint64
	ElementCount uint64
}

// header is the in-memory form of a frame's fixed preamble. canonicalPoolOrder
// holds the pool order the wire format fixes regardless of which pools a
// given Arbor actually populated (spec §6.1 invariant: "pool descriptors
// appear in the fixed canonical order even when a pool is empty or
// skipped").
type header struct {
	VersionMajor uint8
	VersionMinor uint8
	Flags        uint16
	TotalLength  uint64
	Structural   [numStructuralFields]offsetLen
	Pools        [numCanonicalPools]poolDescriptor
}

var canonicalPoolOrder = [numCanonicalPools]arbors.PoolType{
	arbors.PoolBool,
	arbors.PoolInt64,
	arbors.PoolFloat64,
	arbors.PoolString,
	arbors.PoolDate,
	arbors.PoolDateTime,
	arbors.PoolDuration,
	arbors.PoolBinary,
}

const numCanonicalPools = 8

// headerSize is the fixed byte length of the frame preamble: magic(4) +
// version(2) + flags(2) + total length(8) + 6 structural offset pairs
// (16 bytes each) + 8 pool descriptors (24 bytes each).
const headerSize = 4 + 2 + 2 + 8 + int(numStructuralFields)*16 + numCanonicalPools*24
