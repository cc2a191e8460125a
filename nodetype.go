package arbors

// NodeType identifies the shape of a single node in an Arbor's node table.
type NodeType uint8

const (
	Null NodeType = iota
	Bool
	Int64
	Float64
	String
	Date
	DateTime
	Duration
	Binary
	Array
	Object
)

// String renders the node type name for diagnostics.
func (t NodeType) String() string {
	switch t {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case String:
		return "string"
	case Date:
		return "date"
	case DateTime:
		return "datetime"
	case Duration:
		return "duration"
	case Binary:
		return "binary"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// HasPool reports whether this node type stores its value in a primitive
// pool (Null, Array, and Object carry no pool entry).
func (t NodeType) HasPool() bool {
	switch t {
	case Null, Array, Object:
		return false
	default:
		return true
	}
}

// IsContainer reports whether this node type has children (Array/Object).
func (t NodeType) IsContainer() bool {
	return t == Array || t == Object
}

// PoolType identifies one of the eight primitive pools an Arbor carries.
// The ordering matches the canonical wire order of the v2 codec
// (spec §6.1): Bools, Int64s, Float64s, Strings, Dates, DateTimes,
// Durations, Binaries.
type PoolType uint8

const (
	PoolBool PoolType = iota
	PoolInt64
	PoolFloat64
	PoolString
	PoolDate
	PoolDateTime
	PoolDuration
	PoolBinary

	numPoolTypes = int(PoolBinary) + 1
)

func (p PoolType) String() string {
	switch p {
	case PoolBool:
		return "bool"
	case PoolInt64:
		return "int64"
	case PoolFloat64:
		return "float64"
	case PoolString:
		return "string"
	case PoolDate:
		return "date"
	case PoolDateTime:
		return "datetime"
	case PoolDuration:
		return "duration"
	case PoolBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// PoolTypeFor returns the PoolType backing a given NodeType, and false if
// the node type has no pool (Null/Array/Object).
func PoolTypeFor(t NodeType) (PoolType, bool) {
	switch t {
	case Bool:
		return PoolBool, true
	case Int64:
		return PoolInt64, true
	case Float64:
		return PoolFloat64, true
	case String:
		return PoolString, true
	case Date:
		return PoolDate, true
	case DateTime:
		return PoolDateTime, true
	case Duration:
		return PoolDuration, true
	case Binary:
		return PoolBinary, true
	default:
		return 0, false
	}
}

// DecodePlan is an 8-bit mask selecting which of the eight primitive pools
// to materialize when decoding a batch. DecodePlanAll decodes every pool;
// it is the canonical "fully loaded" plan and the only plan cached by the
// batch cache (spec §4.6).
type DecodePlan uint8

const DecodePlanAll DecodePlan = 0xFF

// DecodePlanNone selects no pools at all; used for plans that only need
// structural arrays (e.g. a bare count()).
const DecodePlanNone DecodePlan = 0

// With returns a plan with the given pool's bit set.
func (p DecodePlan) With(pt PoolType) DecodePlan {
	return p | (1 << uint(pt))
}

// Has reports whether the plan includes the given pool.
func (p DecodePlan) Has(pt PoolType) bool {
	return p&(1<<uint(pt)) != 0
}

// IsAll reports whether the plan selects every pool.
func (p DecodePlan) IsAll() bool {
	return p == DecodePlanAll
}

// PopCount returns the number of pools selected by the plan.
func (p DecodePlan) PopCount() int {
	n := 0
	for i := 0; i < numPoolTypes; i++ {
		if p.Has(PoolType(i)) {
			n++
		}
	}
	return n
}
