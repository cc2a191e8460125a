package codec

import "github.com/arbors/arbors"

// SliceRange locates a byte span within a decoded frame. A zero-value
// SliceRange (Len == 0) denotes a pool the decode plan excluded.
type SliceRange struct {
	Start int
	Len   int
}

// Bytes returns the bytes this range names within frame. Returns nil for a
// zero-length range rather than an empty non-nil slice, so callers can use
// a nil check as a cheap "was this decoded" test.
func (s SliceRange) Bytes(frame []byte) []byte {
	if s.Len == 0 {
		return nil
	}
	return frame[s.Start : s.Start+s.Len]
}

// PoolView locates one primitive pool's encoded regions within a frame.
// Offsets is only meaningful for the two variable-width pools (Strings,
// Binaries); fixed-width pools leave it zero-valued.
type PoolView struct {
	ElementCount int
	Validity     SliceRange
	Offsets      SliceRange
	Values       SliceRange
}

// BatchView is the zero-copy decode of one v2 frame: every field is a
// SliceRange into Frame, never a copy (spec §4.5 "Full view-decode").
type BatchView struct {
	Frame []byte
	Count int

	Parent        SliceRange
	Key           SliceRange
	Type          SliceRange
	ChildrenStart SliceRange
	ChildrenCount SliceRange
	PoolIndex     SliceRange

	// Pools is indexed by PoolType (arbors.PoolBool..arbors.PoolBinary).
	Pools [numCanonicalPools]PoolView

	// Plan is the DecodePlan this view was decoded with.
	Plan arbors.DecodePlan

	// BinariesHash is the xxhash64 digest computed eagerly over the
	// Binaries pool's value bytes during full decode (spec §4.5
	// "hash-checked eagerly"). Nil when the Binaries pool was excluded by
	// the decode plan.
	BinariesHash *uint64
}
