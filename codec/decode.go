package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"github.com/arbors/arbors"
	"github.com/arbors/arbors/schema"
)

// Decode performs a full view-decode: every pool is validated and mapped
// into the returned BatchView (spec §4.5 "Full view-decode").
func Decode(data []byte) (*BatchView, error) {
	return decode(data, arbors.DecodePlanAll)
}

// DecodeWithPlan performs a projection-aware view-decode: pool headers are
// still parsed for every one of the eight canonical pools (their offsets
// are needed to validate the frame and to locate pools later in wire
// order), but pools outside plan skip UTF-8/hash validation entirely and
// get a zero SliceRange in the result (spec §4.5 "view_decode_with_plan").
func DecodeWithPlan(data []byte, plan arbors.DecodePlan) (*BatchView, error) {
	return decode(data, plan)
}

func decode(data []byte, plan arbors.DecodePlan) (*BatchView, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: frame of %d bytes shorter than header", arbors.ErrBatchCorruption, len(data))
	}
	var magic [4]byte
	copy(magic[:], data[:4])
	if magic != Magic {
		return nil, fmt.Errorf("%w: bad magic %q", arbors.ErrBatchCorruption, magic)
	}
	major, minor := data[4], data[5]
	if major != VersionMajor {
		return nil, fmt.Errorf("%w: unsupported codec version %d.%d", arbors.ErrBatchCorruption, major, minor)
	}
	flags := binary.LittleEndian.Uint16(data[6:8])
	if flags&flagLittleEndian == 0 {
		return nil, fmt.Errorf("%w: frame missing little-endian flag", arbors.ErrBatchCorruption)
	}
	totalLength := binary.LittleEndian.Uint64(data[8:16])
	if totalLength != uint64(len(data)) {
		return nil, fmt.Errorf("%w: header total length %d does not match frame size %d", arbors.ErrBatchCorruption, totalLength, len(data))
	}

	pos := 16
	var structural [numStructuralFields]offsetLen
	for f := 0; f < int(numStructuralFields); f++ {
		off := binary.LittleEndian.Uint64(data[pos:])
		pos += 8
		length := binary.LittleEndian.Uint64(data[pos:])
		pos += 8
		structural[f] = offsetLen{Offset: off, Length: length}
	}
	var pools [numCanonicalPools]poolDescriptor
	for i := 0; i < numCanonicalPools; i++ {
		off := binary.LittleEndian.Uint64(data[pos:])
		pos += 8
		byteLength := binary.LittleEndian.Uint64(data[pos:])
		pos += 8
		elementCount := binary.LittleEndian.Uint64(data[pos:])
		pos += 8
		pools[i] = poolDescriptor{Offset: off, ByteLength: byteLength, ElementCount: elementCount}
	}

	region := func(o offsetLen) (SliceRange, error) {
		end := o.Offset + o.Length
		if end < o.Offset || end > uint64(len(data)) {
			return SliceRange{}, fmt.Errorf("%w: region [%d,%d) out of bounds for frame of %d bytes", arbors.ErrBatchCorruption, o.Offset, end, len(data))
		}
		return SliceRange{Start: int(o.Offset), Len: int(o.Length)}, nil
	}

	v := &BatchView{Frame: data, Plan: plan}

	var err error
	if v.Parent, err = region(structural[fieldParent]); err != nil {
		return nil, err
	}
	if v.Key, err = region(structural[fieldKey]); err != nil {
		return nil, err
	}
	if v.Type, err = region(structural[fieldType]); err != nil {
		return nil, err
	}
	if v.ChildrenStart, err = region(structural[fieldChildrenStart]); err != nil {
		return nil, err
	}
	if v.ChildrenCount, err = region(structural[fieldChildrenCount]); err != nil {
		return nil, err
	}
	if v.PoolIndex, err = region(structural[fieldPoolIndex]); err != nil {
		return nil, err
	}
	v.Count = v.Type.Len

	for i, pt := range canonicalPoolOrder {
		desc := pools[i]
		elementCount := int(desc.ElementCount)
		if !plan.Has(pt) {
			v.Pools[i] = PoolView{ElementCount: elementCount}
			continue
		}
		base, err := region(offsetLen{Offset: desc.Offset, Length: desc.ByteLength})
		if err != nil {
			return nil, err
		}
		switch pt {
		case arbors.PoolString, arbors.PoolBinary:
			offsetsLen := 4 * (elementCount + 1)
			validityLen := bitmapByteLen(elementCount)
			valuesLen := base.Len - offsetsLen - validityLen
			if valuesLen < 0 {
				return nil, fmt.Errorf("%w: pool %s byte_length too small for its element_count", arbors.ErrBatchCorruption, pt)
			}
			offsets := SliceRange{Start: base.Start, Len: offsetsLen}
			values := SliceRange{Start: base.Start + offsetsLen, Len: valuesLen}
			validity := SliceRange{Start: base.Start + offsetsLen + valuesLen, Len: validityLen}
			if pt == arbors.PoolString {
				if !utf8.Valid(values.Bytes(data)) {
					return nil, fmt.Errorf("%w: strings pool is not valid utf-8", arbors.ErrBatchCorruption)
				}
			} else {
				h := xxhash.Sum64(values.Bytes(data))
				v.BinariesHash = &h
			}
			v.Pools[i] = PoolView{ElementCount: elementCount, Offsets: offsets, Values: values, Validity: validity}
		default:
			validityLen := bitmapByteLen(elementCount)
			valuesLen := base.Len - validityLen
			if valuesLen < 0 {
				return nil, fmt.Errorf("%w: pool %s byte_length too small for its element_count", arbors.ErrBatchCorruption, pt)
			}
			validity := SliceRange{Start: base.Start, Len: validityLen}
			values := SliceRange{Start: base.Start + validityLen, Len: valuesLen}
			v.Pools[i] = PoolView{ElementCount: elementCount, Validity: validity, Values: values}
		}
	}

	return v, nil
}

func (v *BatchView) ParentAt(i int) int32 {
	return int32(binary.LittleEndian.Uint32(v.Frame[v.Parent.Start+i*4:]))
}

func (v *BatchView) KeyAt(i int) uint32 {
	return binary.LittleEndian.Uint32(v.Frame[v.Key.Start+i*4:])
}

func (v *BatchView) TypeAt(i int) uint8 {
	return v.Frame[v.Type.Start+i]
}

func (v *BatchView) ChildrenStartAt(i int) int32 {
	return int32(binary.LittleEndian.Uint32(v.Frame[v.ChildrenStart.Start+i*4:]))
}

func (v *BatchView) ChildrenCountAt(i int) int32 {
	return int32(binary.LittleEndian.Uint32(v.Frame[v.ChildrenCount.Start+i*4:]))
}

func (v *BatchView) PoolIndexAt(i int) int32 {
	return int32(binary.LittleEndian.Uint32(v.Frame[v.PoolIndex.Start+i*4:]))
}

// ToArbor materializes this view into a queryable *arbors.Arbor. Pools
// excluded by the decode plan are left empty and the returned Arbor's
// LoadedPools is set so pool accessors panic per spec §4.8 rather than
// return zero values silently. interner and reg are attached as-is; the v2
// frame carries no interner of its own (see DESIGN.md "interner
// persistence" decision) — callers load it separately, e.g. from the
// storage engine's per-arbor-name side table.
func (v *BatchView) ToArbor(interner *arbors.Interner, reg *schema.Registry) (*arbors.Arbor, error) {
	n := v.Count
	nodes := make([]arbors.Node, n)
	for i := 0; i < n; i++ {
		nodes[i] = arbors.Node{
			Type:          arbors.NodeType(v.TypeAt(i)),
			KeyID:         arbors.InternId(v.KeyAt(i)),
			ChildrenStart: v.ChildrenStartAt(i),
			ChildrenCount: v.ChildrenCountAt(i),
			PoolIndex:     v.PoolIndexAt(i),
			Parent:        arbors.NodeID(v.ParentAt(i)),
		}
	}

	var roots []arbors.NodeID
	for i, nd := range nodes {
		if nd.Parent == arbors.NoNode {
			roots = append(roots, arbors.NodeID(i))
		}
	}

	pools := &arbors.Pools{
		Bools:     arbors.NewFixedPoolFromRaw(decodeBoolValues(v.Pools[0], v.Frame), decodeValidity(v.Pools[0], v.Frame)),
		Int64s:    arbors.NewFixedPoolFromRaw(decodeInt64Values(v.Pools[1], v.Frame), decodeValidity(v.Pools[1], v.Frame)),
		Float64s:  arbors.NewFixedPoolFromRaw(decodeFloat64Values(v.Pools[2], v.Frame), decodeValidity(v.Pools[2], v.Frame)),
		Strings:   decodeVariablePool(v.Pools[3], v.Frame),
		Dates:     arbors.NewFixedPoolFromRaw(decodeInt32Values(v.Pools[4], v.Frame), decodeValidity(v.Pools[4], v.Frame)),
		DateTimes: arbors.NewFixedPoolFromRaw(decodeInt64Values(v.Pools[5], v.Frame), decodeValidity(v.Pools[5], v.Frame)),
		Durations: arbors.NewFixedPoolFromRaw(decodeInt64Values(v.Pools[6], v.Frame), decodeValidity(v.Pools[6], v.Frame)),
		Binaries:  decodeVariablePool(v.Pools[7], v.Frame),
	}

	a := &arbors.Arbor{
		Nodes:    nodes,
		Roots:    roots,
		Interner: interner,
		Pools:    pools,
		Schema:   reg,
	}
	if !v.Plan.IsAll() {
		p := v.Plan
		a.LoadedPools = &p
	}
	return a, nil
}

func decodeValidity(pv PoolView, frame []byte) *arbors.Bitmap {
	if pv.ElementCount == 0 {
		return arbors.NewBitmap()
	}
	b := pv.Validity.Bytes(frame)
	if b == nil {
		return arbors.NewBitmap()
	}
	return arbors.NewBitmapFromRaw(append([]byte(nil), b...), pv.ElementCount)
}

func decodeBoolValues(pv PoolView, frame []byte) []bool {
	raw := pv.Values.Bytes(frame)
	out := make([]bool, len(raw))
	for i, b := range raw {
		out[i] = b != 0
	}
	return out
}

func decodeInt32Values(pv PoolView, frame []byte) []int32 {
	raw := pv.Values.Bytes(frame)
	out := make([]int32, len(raw)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}

func decodeInt64Values(pv PoolView, frame []byte) []int64 {
	raw := pv.Values.Bytes(frame)
	out := make([]int64, len(raw)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return out
}

func decodeFloat64Values(pv PoolView, frame []byte) []float64 {
	raw := pv.Values.Bytes(frame)
	out := make([]float64, len(raw)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return out
}

func decodeVariablePool(pv PoolView, frame []byte) *arbors.VariablePool {
	if pv.ElementCount == 0 && pv.Offsets.Len == 0 {
		return arbors.NewVariablePool()
	}
	raw := pv.Offsets.Bytes(frame)
	offsets := make([]int32, len(raw)/4)
	for i := range offsets {
		offsets[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	values := append([]byte(nil), pv.Values.Bytes(frame)...)
	return arbors.NewVariablePoolFromRaw(offsets, values, decodeValidity(pv, frame))
}
