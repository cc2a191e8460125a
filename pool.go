package arbors

import "time"

// FixedPool is an append-only columnar array of a fixed-width primitive
// type T, with an Arrow-compatible validity bitmap. Used for Bool, Int64,
// Float64, Date (days since epoch, int32), DateTime (micros since epoch,
// int64) and Duration (micros, int64) pools.
type FixedPool[T any] struct {
	values   []T
	validity *Bitmap
}

// NewFixedPool returns an empty FixedPool.
func NewFixedPool[T any]() *FixedPool[T] {
	return &FixedPool[T]{validity: NewBitmap()}
}

// NewFixedPoolFromRaw wraps already-decoded value and validity buffers as a
// FixedPool, without copying. Used by the codec package when materializing
// a BatchView into a queryable Arbor.
func NewFixedPoolFromRaw[T any](values []T, validity *Bitmap) *FixedPool[T] {
	return &FixedPool[T]{values: values, validity: validity}
}

// Append adds a value and returns its pool index.
func (p *FixedPool[T]) Append(v T) int {
	idx := len(p.values)
	p.values = append(p.values, v)
	p.validity.Append(true)
	return idx
}

// AppendNull adds a null slot (zero value, validity bit unset) and returns
// its pool index. Primitive nodes are never backed by a null pool slot in
// the node model (Null is its own NodeType with no pool), but the slot
// exists so Arrow-compatible buffers can represent sparsely-valid columns
// produced by inference or by future schema evolution.
func (p *FixedPool[T]) AppendNull() int {
	var zero T
	idx := len(p.values)
	p.values = append(p.values, zero)
	p.validity.Append(false)
	return idx
}

// Get returns the value at index i and whether it is valid.
func (p *FixedPool[T]) Get(i int) (T, bool) {
	return p.values[i], p.validity.Get(i)
}

// Len returns the number of entries in the pool.
func (p *FixedPool[T]) Len() int { return len(p.values) }

// Values returns the raw value buffer. Must not be mutated by callers.
func (p *FixedPool[T]) Values() []T { return p.values }

// Validity returns the pool's validity bitmap.
func (p *FixedPool[T]) Validity() *Bitmap { return p.validity }

// VariablePool is an append-only columnar array of variable-width byte
// values (strings or binary blobs), laid out Arrow-style as
// offsets+values+validity: offsets[i]..offsets[i+1] bound entry i's bytes
// within the single contiguous values buffer.
type VariablePool struct {
	offsets  []int32
	values   []byte
	validity *Bitmap
}

// NewVariablePool returns an empty VariablePool.
func NewVariablePool() *VariablePool {
	return &VariablePool{offsets: []int32{0}, validity: NewBitmap()}
}

// NewVariablePoolFromRaw wraps already-decoded offsets/values/validity
// buffers as a VariablePool, without copying. Used by the codec package
// when materializing a BatchView into a queryable Arbor.
func NewVariablePoolFromRaw(offsets []int32, values []byte, validity *Bitmap) *VariablePool {
	return &VariablePool{offsets: offsets, values: values, validity: validity}
}

// Append adds a byte value and returns its pool index.
func (p *VariablePool) Append(v []byte) int {
	idx := len(p.offsets) - 1
	p.values = append(p.values, v...)
	p.offsets = append(p.offsets, int32(len(p.values)))
	p.validity.Append(true)
	return idx
}

// AppendNull adds a zero-length null entry and returns its pool index.
func (p *VariablePool) AppendNull() int {
	idx := len(p.offsets) - 1
	p.offsets = append(p.offsets, int32(len(p.values)))
	p.validity.Append(false)
	return idx
}

// Get returns the bytes at index i and whether the entry is valid.
func (p *VariablePool) Get(i int) ([]byte, bool) {
	return p.values[p.offsets[i]:p.offsets[i+1]], p.validity.Get(i)
}

// Len returns the number of entries.
func (p *VariablePool) Len() int {
	if len(p.offsets) == 0 {
		return 0
	}
	return len(p.offsets) - 1
}

// Offsets returns the raw offsets buffer. Must not be mutated by callers.
func (p *VariablePool) Offsets() []int32 { return p.offsets }

// Values returns the raw values buffer. Must not be mutated by callers.
func (p *VariablePool) Values() []byte { return p.values }

// Validity returns the pool's validity bitmap.
func (p *VariablePool) Validity() *Bitmap { return p.validity }

// Pools bundles the eight primitive pool arrays an Arbor owns, one per
// PoolType, in the canonical wire order (spec §6.1).
type Pools struct {
	Bools     *FixedPool[bool]
	Int64s    *FixedPool[int64]
	Float64s  *FixedPool[float64]
	Strings   *VariablePool
	Dates     *FixedPool[int32] // days since Unix epoch
	DateTimes *FixedPool[int64] // microseconds since Unix epoch
	Durations *FixedPool[int64] // microseconds
	Binaries  *VariablePool
}

// NewPools returns a fresh set of eight empty pools.
func NewPools() *Pools {
	return &Pools{
		Bools:     NewFixedPool[bool](),
		Int64s:    NewFixedPool[int64](),
		Float64s:  NewFixedPool[float64](),
		Strings:   NewVariablePool(),
		Dates:     NewFixedPool[int32](),
		DateTimes: NewFixedPool[int64](),
		Durations: NewFixedPool[int64](),
		Binaries:  NewVariablePool(),
	}
}

// Len returns the number of entries stored in the named pool.
func (p *Pools) Len(pt PoolType) int {
	switch pt {
	case PoolBool:
		return p.Bools.Len()
	case PoolInt64:
		return p.Int64s.Len()
	case PoolFloat64:
		return p.Float64s.Len()
	case PoolString:
		return p.Strings.Len()
	case PoolDate:
		return p.Dates.Len()
	case PoolDateTime:
		return p.DateTimes.Len()
	case PoolDuration:
		return p.Durations.Len()
	case PoolBinary:
		return p.Binaries.Len()
	default:
		return 0
	}
}

// EpochDay converts a time.Time to the day-count representation used by
// the Date pool (days since Unix epoch, UTC).
func EpochDay(t time.Time) int32 {
	return int32(t.UTC().Unix() / 86400)
}

// EpochMicros converts a time.Time to the microsecond representation used
// by the DateTime pool (microseconds since Unix epoch, UTC).
func EpochMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}
