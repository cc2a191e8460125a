package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/arbors/arbors"
)

func f64bits(v float64) uint64 { return math.Float64bits(v) }

// Encode frames an Arbor into a v2 wire-format byte sequence (spec §6.1).
// Encode always writes every one of an Arbor's Nodes as one flat batch; a
// storage engine wanting 10 000-tree batches (spec §3.6) calls Encode once
// per batch-sized slice of Roots, not once for an entire Arbor.
func Encode(a *arbors.Arbor) ([]byte, error) {
	n := len(a.Nodes)

	parent := make([]int32, n)
	key := make([]uint32, n)
	typ := make([]uint8, n)
	childrenStart := make([]int32, n)
	childrenCount := make([]int32, n)
	poolIndex := make([]int32, n)
	for i, nd := range a.Nodes {
		parent[i] = int32(nd.Parent)
		key[i] = uint32(nd.KeyID)
		typ[i] = uint8(nd.Type)
		childrenStart[i] = nd.ChildrenStart
		childrenCount[i] = nd.ChildrenCount
		poolIndex[i] = nd.PoolIndex
	}

	structuralBytes := [numStructuralFields][]byte{
		fieldParent:        encodeInt32s(parent),
		fieldKey:           encodeUint32s(key),
		fieldType:          typ,
		fieldChildrenStart: encodeInt32s(childrenStart),
		fieldChildrenCount: encodeInt32s(childrenCount),
		fieldPoolIndex:     encodeInt32s(poolIndex),
	}

	poolBytes, poolCounts, err := encodePools(a.Pools)
	if err != nil {
		return nil, err
	}

	hdr := header{
		VersionMajor: VersionMajor,
		VersionMinor: VersionMinor,
		Flags:        flagLittleEndian,
	}

	offset := uint64(headerSize)
	for f := structuralField(0); f < numStructuralFields; f++ {
		b := structuralBytes[f]
		hdr.Structural[f] = offsetLen{Offset: offset, Length: uint64(len(b))}
		offset += uint64(len(b))
	}
	for i := 0; i < numCanonicalPools; i++ {
		b := poolBytes[i]
		hdr.Pools[i] = poolDescriptor{
			Offset:       offset,
			ByteLength:   uint64(len(b)),
			ElementCount: uint64(poolCounts[i]),
		}
		offset += uint64(len(b))
	}
	hdr.TotalLength = offset

	buf := bytes.NewBuffer(make([]byte, 0, offset))
	if err := writeHeader(buf, &hdr); err != nil {
		return nil, err
	}
	for f := structuralField(0); f < numStructuralFields; f++ {
		buf.Write(structuralBytes[f])
	}
	for i := 0; i < numCanonicalPools; i++ {
		buf.Write(poolBytes[i])
	}
	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, hdr *header) error {
	buf.Write(Magic[:])
	buf.WriteByte(hdr.VersionMajor)
	buf.WriteByte(hdr.VersionMinor)
	if err := binary.Write(buf, binary.LittleEndian, hdr.Flags); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, hdr.TotalLength); err != nil {
		return err
	}
	for _, s := range hdr.Structural {
		if err := binary.Write(buf, binary.LittleEndian, s.Offset); err != nil {
			return err
		}
		if err := binary.Write(buf, binary.LittleEndian, s.Length); err != nil {
			return err
		}
	}
	for _, p := range hdr.Pools {
		if err := binary.Write(buf, binary.LittleEndian, p.Offset); err != nil {
			return err
		}
		if err := binary.Write(buf, binary.LittleEndian, p.ByteLength); err != nil {
			return err
		}
		if err := binary.Write(buf, binary.LittleEndian, p.ElementCount); err != nil {
			return err
		}
	}
	return nil
}

func encodeInt32s(v []int32) []byte {
	out := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(x))
	}
	return out
}

func encodeUint32s(v []uint32) []byte {
	out := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*4:], x)
	}
	return out
}

// encodePools serializes the eight primitive pools in canonical order. Each
// fixed-width pool's region is [validity bitmap][values]; each variable-width
// pool's region is [offsets][values][validity bitmap] (spec §6.1 payload
// note: "variable-width pools carry offsets + values + optional validity
// bitmaps").
func encodePools(p *arbors.Pools) (regions [numCanonicalPools][]byte, counts [numCanonicalPools]int, err error) {
	for i, pt := range canonicalPoolOrder {
		switch pt {
		case arbors.PoolBool:
			regions[i] = encodeFixedBool(p.Bools)
			counts[i] = p.Bools.Len()
		case arbors.PoolInt64:
			regions[i] = encodeFixedInt64(p.Int64s)
			counts[i] = p.Int64s.Len()
		case arbors.PoolFloat64:
			regions[i] = encodeFixedFloat64(p.Float64s)
			counts[i] = p.Float64s.Len()
		case arbors.PoolString:
			regions[i] = encodeVariable(p.Strings)
			counts[i] = p.Strings.Len()
		case arbors.PoolDate:
			regions[i] = encodeFixedInt32(p.Dates)
			counts[i] = p.Dates.Len()
		case arbors.PoolDateTime:
			regions[i] = encodeFixedInt64(p.DateTimes)
			counts[i] = p.DateTimes.Len()
		case arbors.PoolDuration:
			regions[i] = encodeFixedInt64(p.Durations)
			counts[i] = p.Durations.Len()
		case arbors.PoolBinary:
			regions[i] = encodeVariable(p.Binaries)
			counts[i] = p.Binaries.Len()
		default:
			return regions, counts, fmt.Errorf("codec: unknown canonical pool type %v", pt)
		}
	}
	return regions, counts, nil
}

func encodeFixedBool(p *arbors.FixedPool[bool]) []byte {
	n := p.Len()
	out := make([]byte, bitmapByteLen(n)+n)
	copy(out, p.Validity().Bytes())
	vals := out[bitmapByteLen(n):]
	for i, v := range p.Values() {
		if v {
			vals[i] = 1
		}
	}
	return out
}

func encodeFixedInt64(p *arbors.FixedPool[int64]) []byte {
	n := p.Len()
	out := make([]byte, bitmapByteLen(n)+n*8)
	copy(out, p.Validity().Bytes())
	vals := out[bitmapByteLen(n):]
	for i, v := range p.Values() {
		binary.LittleEndian.PutUint64(vals[i*8:], uint64(v))
	}
	return out
}

func encodeFixedInt32(p *arbors.FixedPool[int32]) []byte {
	n := p.Len()
	out := make([]byte, bitmapByteLen(n)+n*4)
	copy(out, p.Validity().Bytes())
	vals := out[bitmapByteLen(n):]
	for i, v := range p.Values() {
		binary.LittleEndian.PutUint32(vals[i*4:], uint32(v))
	}
	return out
}

func encodeFixedFloat64(p *arbors.FixedPool[float64]) []byte {
	n := p.Len()
	out := make([]byte, bitmapByteLen(n)+n*8)
	copy(out, p.Validity().Bytes())
	vals := out[bitmapByteLen(n):]
	for i, v := range p.Values() {
		binary.LittleEndian.PutUint64(vals[i*8:], f64bits(v))
	}
	return out
}

// encodeVariable lays out a VariablePool as offsets (int32, n+1 entries)
// followed by the contiguous values buffer and the validity bitmap.
func encodeVariable(p *arbors.VariablePool) []byte {
	n := p.Len()
	offsets := p.Offsets()
	values := p.Values()
	offBytes := 4 * len(offsets)
	out := make([]byte, offBytes+len(values)+bitmapByteLen(n))
	for i, o := range offsets {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(o))
	}
	copy(out[offBytes:], values)
	copy(out[offBytes+len(values):], p.Validity().Bytes())
	return out
}

func bitmapByteLen(n int) int {
	return (n + 7) / 8
}
