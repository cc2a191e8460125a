// Package parser builds an Arbor from JSON documents via schema-guided or
// schemaless recursive descent (spec §4.4).
//
// Tokenized JSON scanning itself is treated as an external concern
// (spec §1 "Out of scope"): documents are first decoded into the generic
// any/map[string]any/[]any shape via github.com/go-json-experiment/json,
// and the builder here performs the reserve-then-fill transformation from
// that generic value tree into the Arbor's flat, DFS-contiguous node
// table. Date/DateTime/Duration/Binary pools exist in the data model
// (spec §3.1) but are not reachable from this JSON front-end, since none
// of those have a JSON-native representation and the compiled schema
// subset (spec §3.4) has no corresponding StorageType; they are populated
// by other Arbor producers.
package parser

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/go-json-experiment/json"
	"github.com/kaptinlin/jsonpointer"

	"github.com/arbors/arbors"
	"github.com/arbors/arbors/schema"
)

// Parse decodes a single JSON document and builds a one-root Arbor
// against reg. reg may be nil, in which case every value is parsed
// against the Any schema (full shape inference as it is encountered,
// spec §4.4 "schemaless parsing").
func Parse(data []byte, reg *schema.Registry) (*arbors.Arbor, error) {
	return ParseDocuments([][]byte{data}, reg)
}

// ParseDocuments decodes a sequence of JSON documents (e.g. a JSONL
// stream split into records) into a single multi-root Arbor sharing one
// interner and one set of pools (spec §3.3 "roots").
func ParseDocuments(docs [][]byte, reg *schema.Registry) (*arbors.Arbor, error) {
	b := &builder{arbor: arbors.NewArbor(), registry: reg}
	for i, doc := range docs {
		var value any
		if err := json.Unmarshal(doc, &value); err != nil {
			return nil, fmt.Errorf("%w: document %d: %v", arbors.ErrParse, i, err)
		}
		rootID := arbors.NodeID(len(b.arbor.Nodes))
		b.arbor.Nodes = append(b.arbor.Nodes, arbors.Node{Parent: arbors.NoNode, KeyID: arbors.NoIntern})
		if err := b.fill(rootID, value, schema.Root, nil, nil); err != nil {
			return nil, err
		}
		b.arbor.Roots = append(b.arbor.Roots, rootID)
	}
	return b.arbor, nil
}

// builder holds the state threaded through one parse: the Arbor under
// construction and the (possibly nil) schema registry guiding it.
type builder struct {
	arbor    *arbors.Arbor
	registry *schema.Registry
}

// schemaOf resolves a SchemaId against the builder's registry, or returns
// the universal Any schema when the builder has no registry at all
// (fully schemaless parsing).
func (b *builder) schemaOf(id schema.SchemaId) schema.StorageSchema {
	if b.registry == nil {
		return schema.StorageSchema{Type: schema.StorageType{Kind: schema.KindAny}}
	}
	return b.registry.Get(id)
}

// fill populates the already-reserved node slot id with value, parsed
// against schemaID. It is the single recursive entry point for every
// node in the tree, root or child. schemaPath/dataPath are JSON Pointer
// token sequences (nil at the root), formatted into "#/..." strings only
// at the point an error is constructed.
func (b *builder) fill(id arbors.NodeID, value any, schemaID schema.SchemaId, schemaPath, dataPath []string) error {
	sch := b.schemaOf(schemaID)

	if sch.Type.Kind == schema.KindReject {
		return &arbors.SchemaRejectError{SchemaPath: pointerString(schemaPath), DataPath: pointerString(dataPath)}
	}

	if value == nil {
		if sch.Type.Kind == schema.KindAny || sch.Type.Kind == schema.KindNull || sch.Nullable {
			b.arbor.Nodes[id].Type = arbors.Null
			return nil
		}
		return &arbors.UnexpectedNullError{SchemaPath: pointerString(schemaPath), DataPath: pointerString(dataPath)}
	}

	kind := sch.Type.Kind
	if kind == schema.KindAny {
		kind = inferKind(value)
	}

	switch kind {
	case schema.KindNull:
		return &arbors.TypeMismatchError{Expected: "null", Got: goTypeName(value), SchemaPath: pointerString(schemaPath), DataPath: pointerString(dataPath)}
	case schema.KindBool:
		v, ok := value.(bool)
		if !ok {
			return mismatch("bool", value, schemaPath, dataPath)
		}
		b.arbor.Nodes[id].Type = arbors.Bool
		b.arbor.Nodes[id].PoolIndex = int32(b.arbor.Pools.Bools.Append(v))
		return nil
	case schema.KindInt64:
		f, ok := value.(float64)
		if !ok || f != math.Trunc(f) {
			return mismatch("integer", value, schemaPath, dataPath)
		}
		b.arbor.Nodes[id].Type = arbors.Int64
		b.arbor.Nodes[id].PoolIndex = int32(b.arbor.Pools.Int64s.Append(int64(f)))
		return nil
	case schema.KindFloat64:
		f, ok := value.(float64)
		if !ok {
			return mismatch("number", value, schemaPath, dataPath)
		}
		b.arbor.Nodes[id].Type = arbors.Float64
		b.arbor.Nodes[id].PoolIndex = int32(b.arbor.Pools.Float64s.Append(f))
		return nil
	case schema.KindString:
		s, ok := value.(string)
		if !ok {
			return mismatch("string", value, schemaPath, dataPath)
		}
		b.arbor.Nodes[id].Type = arbors.String
		b.arbor.Nodes[id].PoolIndex = int32(b.arbor.Pools.Strings.Append([]byte(s)))
		return nil
	case schema.KindArray:
		itemsID := schema.Any
		if sch.Type.Kind == schema.KindArray {
			itemsID = sch.Type.Items
		}
		return b.fillArray(id, value, itemsID, schemaPath, dataPath)
	case schema.KindTuple:
		return b.fillTuple(id, value, sch.Type.Prefix, sch.Type.Additional, schemaPath, dataPath)
	case schema.KindObject:
		return b.fillObject(id, value, sch, schemaPath, dataPath)
	default:
		return &arbors.TypeMismatchError{Expected: "any", Got: goTypeName(value), SchemaPath: pointerString(schemaPath), DataPath: pointerString(dataPath)}
	}
}

// fillArray reserves and fills a plain (non-tuple) array's children,
// each parsed against itemsID.
func (b *builder) fillArray(id arbors.NodeID, value any, itemsID schema.SchemaId, schemaPath, dataPath []string) error {
	arr, ok := value.([]any)
	if !ok {
		return mismatch("array", value, schemaPath, dataPath)
	}
	start := len(b.arbor.Nodes)
	for range arr {
		b.arbor.Nodes = append(b.arbor.Nodes, arbors.Node{Parent: id, KeyID: arbors.NoIntern})
	}
	b.arbor.Nodes[id].Type = arbors.Array
	b.arbor.Nodes[id].ChildrenStart = int32(start)
	b.arbor.Nodes[id].ChildrenCount = int32(len(arr))

	itemSchemaPath := appendPath(schemaPath, "items")
	for i, elem := range arr {
		childID := arbors.NodeID(start + i)
		if err := b.fill(childID, elem, itemsID, itemSchemaPath, appendPath(dataPath, strconv.Itoa(i))); err != nil {
			return err
		}
	}
	return nil
}

// fillTuple reserves and fills a tuple array's children against the
// positional prefix schemas, falling back to additional for indices
// beyond the prefix (spec §4.3 "tuple with fewer input items... is
// accepted"; extra items need additional or raise TupleOverflow).
func (b *builder) fillTuple(id arbors.NodeID, value any, prefix []schema.SchemaId, additional *schema.SchemaId, schemaPath, dataPath []string) error {
	arr, ok := value.([]any)
	if !ok {
		return mismatch("array", value, schemaPath, dataPath)
	}
	if len(arr) > len(prefix) && additional == nil {
		return &arbors.TupleOverflowError{Expected: len(prefix), Got: len(arr), SchemaPath: pointerString(schemaPath), DataPath: pointerString(dataPath)}
	}

	start := len(b.arbor.Nodes)
	for range arr {
		b.arbor.Nodes = append(b.arbor.Nodes, arbors.Node{Parent: id, KeyID: arbors.NoIntern})
	}
	b.arbor.Nodes[id].Type = arbors.Array
	b.arbor.Nodes[id].ChildrenStart = int32(start)
	b.arbor.Nodes[id].ChildrenCount = int32(len(arr))

	for i, elem := range arr {
		var itemID schema.SchemaId
		var path []string
		if i < len(prefix) {
			itemID = prefix[i]
			path = appendPath(schemaPath, "prefixItems", strconv.Itoa(i))
		} else {
			itemID = *additional
			path = appendPath(schemaPath, "items")
		}
		childID := arbors.NodeID(start + i)
		if err := b.fill(childID, elem, itemID, path, appendPath(dataPath, strconv.Itoa(i))); err != nil {
			return err
		}
	}
	return nil
}

// childSpec is one object child queued for construction: its name (for
// interning), the schema it is parsed against, and its raw JSON value.
type childSpec struct {
	name     string
	schemaID schema.SchemaId
	value    any
}

// fillObject reserves and fills an object's children: declared schema
// properties first (missing/required and missing/optional handling),
// then any additional/unknown keys in sorted order for determinism (spec
// §8 "parsing the same document twice produces byte-identical buffers").
// The reserved range is filled in specs order, then sorted in place by
// ascending KeyID to restore the sorted-keys invariant (spec §3.3),
// independent of interning order.
func (b *builder) fillObject(id arbors.NodeID, value any, sch schema.StorageSchema, schemaPath, dataPath []string) error {
	obj, ok := value.(map[string]any)
	if !ok {
		return mismatch("object", value, schemaPath, dataPath)
	}

	var props []schema.ObjectProperty
	var additional *schema.SchemaId
	if sch.Type.Kind == schema.KindObject {
		props = sch.Type.Properties
		additional = sch.Type.AdditionalProperties
	} else {
		anyID := schema.Any
		additional = &anyID
	}

	var specs []childSpec
	seen := make(map[string]bool, len(props))
	for _, p := range props {
		v, present := obj[p.Name]
		if !present {
			if p.Required {
				return &arbors.MissingRequiredFieldError{Field: p.Name, SchemaPath: pointerString(schemaPath), DataPath: pointerString(dataPath)}
			}
			continue
		}
		specs = append(specs, childSpec{name: p.Name, schemaID: p.Schema, value: v})
		seen[p.Name] = true
	}

	extra := make([]string, 0, len(obj)-len(seen))
	for k := range obj {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		if additional == nil {
			return &arbors.UnknownPropertyError{Property: name, SchemaPath: pointerString(schemaPath), DataPath: pointerString(dataPath)}
		}
		specs = append(specs, childSpec{name: name, schemaID: *additional, value: obj[name]})
	}

	start := len(b.arbor.Nodes)
	for range specs {
		b.arbor.Nodes = append(b.arbor.Nodes, arbors.Node{Parent: id})
	}
	b.arbor.Nodes[id].Type = arbors.Object
	b.arbor.Nodes[id].ChildrenStart = int32(start)
	b.arbor.Nodes[id].ChildrenCount = int32(len(specs))

	for i, spec := range specs {
		childID := arbors.NodeID(start + i)
		b.arbor.Nodes[childID].KeyID = b.arbor.Interner.Intern(spec.name)
		childSchemaPath := appendPath(schemaPath, "properties", spec.name)
		childDataPath := appendPath(dataPath, spec.name)
		if err := b.fill(childID, spec.value, spec.schemaID, childSchemaPath, childDataPath); err != nil {
			return err
		}
	}

	sortChildrenByKey(b.arbor.Nodes[start : start+len(specs)])
	return nil
}

// sortChildrenByKey sorts a contiguous slice of sibling nodes by
// ascending KeyID in place. It never touches any node outside the slice,
// so descendants reserved during fill (which always live past the end of
// this slice) are unaffected by the permutation.
func sortChildrenByKey(nodes []arbors.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].KeyID < nodes[j].KeyID
	})
}

// inferKind maps a decoded JSON value to the StorageType kind it would
// have under shape inference, used when the effective schema is Any
// (spec §4.4 "falls back to value-shape inference").
func inferKind(value any) schema.Kind {
	switch v := value.(type) {
	case bool:
		return schema.KindBool
	case float64:
		if v == math.Trunc(v) {
			return schema.KindInt64
		}
		return schema.KindFloat64
	case string:
		return schema.KindString
	case []any:
		return schema.KindArray
	case map[string]any:
		return schema.KindObject
	default:
		return schema.KindAny
	}
}

// goTypeName renders a decoded JSON value's type for diagnostics.
func goTypeName(value any) string {
	switch value.(type) {
	case bool:
		return "bool"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func mismatch(expected string, value any, schemaPath, dataPath []string) error {
	return &arbors.TypeMismatchError{Expected: expected, Got: goTypeName(value), SchemaPath: pointerString(schemaPath), DataPath: pointerString(dataPath)}
}

// appendPath returns a new token slice with segs appended to base, never
// aliasing base's backing array — siblings built from the same base
// token sequence (e.g. every property of one object) must not observe
// each other's appends.
func appendPath(base []string, segs ...string) []string {
	out := make([]string, 0, len(base)+len(segs))
	out = append(out, base...)
	out = append(out, segs...)
	return out
}

// pointerString renders a token sequence as a root-relative JSON Pointer
// ("#" or "#/a/b"), escaping each token the way the schema compiler's own
// diagnostics do (schema/compiler.go).
func pointerString(tokens []string) string {
	if len(tokens) == 0 {
		return "#"
	}
	return "#" + jsonpointer.Format(tokens...)
}
