package expr

import (
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// CanonicalKey is a hashable, comparable representation of a Value used
// by UniqueBy/GroupBy/IndexBy (spec §4.8, §9 "CanonicalKey"). Numeric
// values canonicalize across Int64/Float64 so 1 == 1.0; NaN canonicalizes
// equal to itself; null canonicalizes to a single group.
type CanonicalKey struct {
	tag  byte
	num  float64
	str  string
	hash uint64
}

const (
	tagNull byte = iota
	tagBool
	tagNumber
	tagString
)

// Canonicalize builds a CanonicalKey from v. Array and object values
// (Kind outside the scalar set) are rejected, per spec §4.8 "Array and
// object keys are rejected".
func Canonicalize(v Value) (CanonicalKey, bool) {
	var k CanonicalKey
	h := xxhash.New()
	switch v.Kind {
	case KindNull:
		k.tag = tagNull
		h.Write([]byte{tagNull})
	case KindBool:
		k.tag = tagBool
		b := byte(0)
		if v.B {
			b = 1
			k.num = 1
		}
		h.Write([]byte{tagBool, b})
	case KindInt64, KindFloat64:
		k.tag = tagNumber
		f, _ := v.asFloat()
		k.num = f
		h.Write([]byte{tagNumber})
		// NaN hashes to a fixed bit pattern so every NaN lands in one
		// group, matching the NaN == NaN canonicalization rule.
		bits := math.Float64bits(f)
		if math.IsNaN(f) {
			bits = 0x7FF8000000000000
		}
		var buf [8]byte
		for i := 0; i < 8; i++ {
			buf[i] = byte(bits >> (8 * i))
		}
		h.Write(buf[:])
	case KindString:
		k.tag = tagString
		k.str = v.S
		h.Write([]byte{tagString})
		h.WriteString(v.S)
	default:
		return CanonicalKey{}, false
	}
	k.hash = h.Sum64()
	return k, true
}

// Equal reports whether two CanonicalKeys represent the same group.
func (k CanonicalKey) Equal(other CanonicalKey) bool {
	if k.tag != other.tag {
		return false
	}
	switch k.tag {
	case tagNumber:
		if math.IsNaN(k.num) && math.IsNaN(other.num) {
			return true
		}
		return k.num == other.num
	case tagBool:
		return k.num == other.num
	case tagString:
		return k.str == other.str
	default:
		return true
	}
}

// Hash returns a stable 64-bit hash suitable for map bucketing. Equal
// keys always hash equal; unequal keys may still collide (callers must
// still Equal-compare on lookup).
func (k CanonicalKey) Hash() uint64 { return k.hash }

// String renders the key for diagnostics (e.g. group-by explain output).
func (k CanonicalKey) String() string {
	switch k.tag {
	case tagNull:
		return "null"
	case tagBool:
		return strconv.FormatBool(k.num != 0)
	case tagNumber:
		return strconv.FormatFloat(k.num, 'g', -1, 64)
	case tagString:
		return k.str
	default:
		return "?"
	}
}

// ckEntry is one bucket slot of a CanonicalKeyMap.
type ckEntry[V any] struct {
	key   CanonicalKey
	value V
}

// CanonicalKeyMap is a hash map keyed by CanonicalKey that honors Equal's
// NaN-canonicalizes-equal-to-itself rule. A native Go map[CanonicalKey]V
// cannot do this: struct equality compares k.num with == on the raw
// float64, and IEEE-754 says NaN == NaN is always false, so every NaN key
// would land in its own never-matching bucket despite Equal and Hash
// agreeing that all NaNs collapse into one group. CanonicalKeyMap instead
// buckets by Hash() and resolves collisions — including the deliberate
// NaN collision — with Equal().
type CanonicalKeyMap[V any] struct {
	buckets map[uint64][]ckEntry[V]
	n       int
}

// NewCanonicalKeyMap returns an empty CanonicalKeyMap.
func NewCanonicalKeyMap[V any]() *CanonicalKeyMap[V] {
	return &CanonicalKeyMap[V]{buckets: make(map[uint64][]ckEntry[V])}
}

// Get returns the value stored for key and whether it was present.
func (m *CanonicalKeyMap[V]) Get(key CanonicalKey) (V, bool) {
	for _, e := range m.buckets[key.Hash()] {
		if e.key.Equal(key) {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

// Has reports whether key is present.
func (m *CanonicalKeyMap[V]) Has(key CanonicalKey) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores value for key, overwriting any existing entry Equal to key.
func (m *CanonicalKeyMap[V]) Set(key CanonicalKey, value V) {
	h := key.Hash()
	bucket := m.buckets[h]
	for i, e := range bucket {
		if e.key.Equal(key) {
			bucket[i].value = value
			return
		}
	}
	m.buckets[h] = append(bucket, ckEntry[V]{key: key, value: value})
	m.n++
}

// Len returns the number of distinct keys stored.
func (m *CanonicalKeyMap[V]) Len() int { return m.n }

// Range calls fn once per stored entry, in unspecified order. Callers
// that need first-seen order (e.g. GroupBy) must track it separately.
func (m *CanonicalKeyMap[V]) Range(fn func(key CanonicalKey, value V)) {
	for _, bucket := range m.buckets {
		for _, e := range bucket {
			fn(e.key, e.value)
		}
	}
}
