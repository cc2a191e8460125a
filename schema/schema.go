// Package schema compiles a JSON-Schema subset into a compact, acyclic
// SchemaRegistry used to guide Arbor construction (spec §3.4, §4.3).
package schema

import "sort"

// SchemaId addresses a single StorageSchema record within a Registry.
// Two values are reserved sentinels: Root (index 0, the schema passed to
// Compile) and Any (the maximum value, meaning "matches anything").
type SchemaId uint32

// Root is the SchemaId of the top-level compiled schema.
const Root SchemaId = 0

// Any is the sentinel SchemaId meaning "matches anything" — it never
// indexes into Registry.schemas; resolving it always yields the singleton
// Any StorageType.
const Any SchemaId = 0xFFFFFFFF

// Kind discriminates the variants of StorageType.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindString
	KindArray
	KindTuple
	KindObject
	KindAny
	KindReject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindTuple:
		return "tuple"
	case KindObject:
		return "object"
	case KindAny:
		return "any"
	case KindReject:
		return "reject"
	default:
		return "unknown"
	}
}

// NameID is a stable id for an object property name, assigned by the
// registry's own name table in first-use order (see nameID). It is
// distinct from any particular Arbor's string interner.
type NameID uint32

// ObjectProperty describes one declared property of an Object schema,
// stored sorted by ascending interned name (spec §3.4).
type ObjectProperty struct {
	NameID   NameID
	Name     string
	Schema   SchemaId
	Required bool
}

// StorageType is the tagged union of shapes a StorageSchema can declare
// (spec §3.4). Only the fields relevant to Kind are populated.
type StorageType struct {
	Kind Kind

	// String: intern hints that the compiler/parser should treat this
	// string as a candidate for string-pool interning preference (set by
	// enum/const-with-all-string-values per spec §4.3).
	StringIntern bool

	// Array
	Items SchemaId

	// Tuple
	Prefix     []SchemaId
	Additional *SchemaId // nil means extra elements are rejected

	// Object
	Properties           []ObjectProperty // sorted by Name
	AdditionalProperties *SchemaId        // nil means closed object
}

// StorageSchema is one compiled schema record (spec §3.4): a StorageType,
// a nullable flag, and a source path used for diagnostics.
type StorageSchema struct {
	Type       StorageType
	Nullable   bool
	SourcePath string // JSON Pointer into the original schema document
}

// Registry is the compiled, placeholder-resolved schema graph produced by
// Compile (or Infer). It is acyclic: cycles in the source schema (via
// local $ref) are represented as ordinary SchemaId edges once resolution
// completes (spec §3.4, §4.9).
type Registry struct {
	schemas []StorageSchema
	names   map[string]NameID
	nextID  NameID
}

// newRegistry returns an empty Registry. The compiler's first allocation
// is always the root schema, which lands at index 0 (Root) as a
// consequence of allocating into an empty slice; Any never indexes into
// schemas at all and resolves specially in Get.
func newRegistry() *Registry {
	return &Registry{names: make(map[string]NameID)}
}

// Get returns the StorageSchema for id. Any resolves to a synthetic
// "matches anything" record regardless of registry contents.
func (r *Registry) Get(id SchemaId) StorageSchema {
	if id == Any {
		return StorageSchema{Type: StorageType{Kind: KindAny}}
	}
	return r.schemas[id]
}

// Len returns the number of concrete (non-sentinel) schema records.
func (r *Registry) Len() int { return len(r.schemas) }

// nameID returns the stable NameID for a property name, assigning one on
// first use. Names are not required to be interned in any particular
// order by callers; ascending order is enforced by sortProperties at
// compile time, not by assignment order here.
func (r *Registry) nameID(name string) NameID {
	if id, ok := r.names[name]; ok {
		return id
	}
	id := r.nextID
	r.names[name] = id
	r.nextID++
	return id
}

// allocate reserves a new slot and returns its id. Used by the compiler's
// placeholder-then-overwrite cycle resolution (spec §4.9).
func (r *Registry) allocate(placeholder StorageSchema) SchemaId {
	id := SchemaId(len(r.schemas))
	r.schemas = append(r.schemas, placeholder)
	return id
}

// set overwrites the record at id (used to fill a previously-allocated
// placeholder once its subtree has finished compiling).
func (r *Registry) set(id SchemaId, s StorageSchema) {
	r.schemas[id] = s
}

// sortProperties returns props sorted by ascending Name, with NameIDs
// assigned from the registry's name table.
func (r *Registry) sortProperties(props []ObjectProperty) []ObjectProperty {
	out := make([]ObjectProperty, len(props))
	copy(out, props)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	for i := range out {
		out[i].NameID = r.nameID(out[i].Name)
	}
	return out
}

// LookupProperty returns the ObjectProperty for name within an Object
// schema via binary search over its sorted Properties, and whether it was
// found.
func (s StorageSchema) LookupProperty(name string) (ObjectProperty, bool) {
	props := s.Type.Properties
	lo, hi := 0, len(props)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case props[mid].Name == name:
			return props[mid], true
		case props[mid].Name < name:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return ObjectProperty{}, false
}
