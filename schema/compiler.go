package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonpointer"
)

// rejectedKeywords is the set of JSON-Schema keywords outside the
// storage-relevant subset (spec §3.4 "Reject phase", §4.3). A document
// using any of these anywhere in its tree fails compilation outright,
// before any attempt to build a StorageType.
var rejectedKeywords = map[string]bool{
	"oneOf":                 true,
	"anyOf":                 true,
	"allOf":                 true,
	"not":                   true,
	"if":                    true,
	"then":                  true,
	"else":                  true,
	"patternProperties":     true,
	"dependentRequired":     true,
	"dependentSchemas":      true,
	"unevaluatedItems":      true,
	"unevaluatedProperties": true,
	"$anchor":               true,
	"$dynamicRef":           true,
	"$dynamicAnchor":        true,
	"contentEncoding":       true,
	"contentMediaType":      true,
	"contentSchema":         true,
}

// compiler holds the state threaded through one call to Compile: the
// registry being built and the $ref resolution tracker.
type compiler struct {
	registry *Registry
	refs     *refTracker
}

// Compile compiles a decoded JSON Schema document (as produced by
// unmarshaling into map[string]any / []any / the JSON scalar types) into a
// Registry, per the three-phase process of spec §3.4: reject unsupported
// keywords, collect $defs, then compile via recursive descent with
// placeholder-based cycle resolution for local $ref edges.
func Compile(doc any) (*Registry, error) {
	if err := reject(doc, "#"); err != nil {
		return nil, err
	}
	defs := collectDefs(doc)

	c := &compiler{registry: newRegistry(), refs: newRefTracker(defs)}
	// Reserve index 0 for Root before compiling anything else, since a
	// container schema's children are allocated (and may land at index 0)
	// before the container itself otherwise would be.
	c.registry.allocate(StorageSchema{})
	content, err := c.compileRootBody(doc, "#")
	if err != nil {
		return nil, err
	}
	c.registry.set(Root, content)
	return c.registry, nil
}

// reject walks doc recursively and returns a RejectedKeywordError on the
// first unsupported keyword found at any nesting level, including inside
// $defs.
func reject(doc any, path string) error {
	m, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if rejectedKeywords[k] {
			return &RejectedKeywordError{Keyword: k, Path: path}
		}
	}
	for _, k := range keys {
		if err := reject(m[k], path+"/"+k); err != nil {
			return err
		}
	}
	return nil
}

// collectDefs gathers the top-level $defs map (schema name -> schema
// document). Only local, top-level $defs are supported (spec §4.9); $defs
// nested inside a property schema are not indexed for $ref purposes.
func collectDefs(doc any) map[string]any {
	out := make(map[string]any)
	m, ok := doc.(map[string]any)
	if !ok {
		return out
	}
	defs, ok := m["$defs"].(map[string]any)
	if !ok {
		return out
	}
	for name, def := range defs {
		out[name] = def
	}
	return out
}

// compileRootBody resolves the top-level schema document into the
// StorageSchema content that belongs at Root, without allocating a new
// slot for it (the caller has already reserved index 0).
func (c *compiler) compileRootBody(doc any, path string) (StorageSchema, error) {
	switch v := doc.(type) {
	case bool:
		if v {
			return StorageSchema{Type: StorageType{Kind: KindAny}}, nil
		}
		return StorageSchema{Type: StorageType{Kind: KindReject}, SourcePath: path}, nil
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok {
			name, ok := localRefName(ref)
			if !ok {
				return StorageSchema{}, &RefNotFoundError{Ref: ref, Path: path}
			}
			id, err := c.resolveRef(name, path)
			if err != nil {
				return StorageSchema{}, err
			}
			return c.registry.Get(id), nil
		}
		return c.compileBody(v, path)
	default:
		return StorageSchema{}, fmt.Errorf("%w: schema document at %s must be an object or boolean", ErrInvalidSchema, path)
	}
}

// compileSchema compiles one schema node, dispatching boolean schemas and
// $ref edges before falling through to compileBody for an ordinary schema
// object. It is the entry point used both for the document root and for
// every nested schema location (items, properties, prefixItems,
// additionalProperties).
func (c *compiler) compileSchema(doc any, path string) (SchemaId, error) {
	switch v := doc.(type) {
	case bool:
		if v {
			return Any, nil
		}
		return c.registry.allocate(StorageSchema{Type: StorageType{Kind: KindReject}, SourcePath: path}), nil
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok {
			name, ok := localRefName(ref)
			if !ok {
				return 0, &RefNotFoundError{Ref: ref, Path: path}
			}
			return c.resolveRef(name, path)
		}
		s, err := c.compileBody(v, path)
		if err != nil {
			return 0, err
		}
		return c.registry.allocate(s), nil
	default:
		return 0, fmt.Errorf("%w: schema at %s must be an object or boolean", ErrInvalidSchema, path)
	}
}

// localRefName extracts Name from a "#/$defs/Name" ref string. Any other
// ref shape (remote, pointer into properties, JSON Pointer escapes) is
// rejected, per spec §4.9 "local refs only".
func localRefName(ref string) (string, bool) {
	const prefix = "#/$defs/"
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(ref, prefix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// compileBody builds the StorageSchema for a non-ref, non-boolean schema
// object via recursive descent over its "type" keyword.
func (c *compiler) compileBody(m map[string]any, path string) (StorageSchema, error) {
	typ, nullable, err := readType(m, path)
	if err != nil {
		return StorageSchema{}, err
	}

	s := StorageSchema{Nullable: nullable, SourcePath: path}
	switch typ {
	case "null":
		s.Type = StorageType{Kind: KindNull}
	case "boolean":
		s.Type = StorageType{Kind: KindBool}
	case "integer":
		s.Type = StorageType{Kind: KindInt64}
	case "number":
		s.Type = StorageType{Kind: KindFloat64}
	case "string":
		s.Type = StorageType{Kind: KindString, StringIntern: stringInternHint(m)}
	case "array":
		st, err := c.compileArray(m, path)
		if err != nil {
			return StorageSchema{}, err
		}
		s.Type = st
	case "object":
		st, err := c.compileObject(m, path)
		if err != nil {
			return StorageSchema{}, err
		}
		s.Type = st
	case "":
		s.Type = StorageType{Kind: KindAny}
	default:
		return StorageSchema{}, fmt.Errorf("%w: unknown type %q at %s", ErrInvalidSchema, typ, path)
	}
	return s, nil
}

// readType extracts the effective "type" keyword, recognizing the
// nullable-union pattern `"type": ["<T>", "null"]` (in either order) as a
// single type T plus Nullable=true. Any other multi-element type array is
// rejected as invalid (unions belong to the oneOf/anyOf family we reject
// wholesale).
func readType(m map[string]any, path string) (string, bool, error) {
	switch t := m["type"].(type) {
	case string:
		return t, false, nil
	case []any:
		var types []string
		for _, v := range t {
			s, ok := v.(string)
			if !ok {
				return "", false, fmt.Errorf("%w: non-string type entry at %s", ErrInvalidSchema, path)
			}
			types = append(types, s)
		}
		switch {
		case len(types) == 1:
			return types[0], false, nil
		case len(types) == 2 && types[0] == "null":
			return types[1], true, nil
		case len(types) == 2 && types[1] == "null":
			return types[0], true, nil
		default:
			return "", false, fmt.Errorf("%w: unsupported type union at %s", ErrInvalidSchema, path)
		}
	case nil:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("%w: malformed type keyword at %s", ErrInvalidSchema, path)
	}
}

// stringInternHint reports whether a string schema's enum/const values are
// all strings, in which case the parser should prefer interning (spec
// §4.3 "intern hints").
func stringInternHint(m map[string]any) bool {
	if c, ok := m["const"].(string); ok {
		_ = c
		return true
	}
	enum, ok := m["enum"].([]any)
	if !ok || len(enum) == 0 {
		return false
	}
	for _, v := range enum {
		if _, ok := v.(string); !ok {
			return false
		}
	}
	return true
}

// compileArray builds a Tuple StorageType when prefixItems is present,
// else an Array StorageType from items.
func (c *compiler) compileArray(m map[string]any, path string) (StorageType, error) {
	if prefix, ok := m["prefixItems"].([]any); ok {
		var prefixIDs []SchemaId
		for i, item := range prefix {
			id, err := c.compileSchema(item, fmt.Sprintf("%s/prefixItems/%d", path, i))
			if err != nil {
				return StorageType{}, err
			}
			prefixIDs = append(prefixIDs, id)
		}
		additional, err := c.compileAdditional(m["items"], path+"/items")
		if err != nil {
			return StorageType{}, err
		}
		return StorageType{Kind: KindTuple, Prefix: prefixIDs, Additional: additional}, nil
	}

	itemsDoc, ok := m["items"]
	if !ok {
		return StorageType{Kind: KindArray, Items: Any}, nil
	}
	itemsID, err := c.compileSchema(itemsDoc, path+"/items")
	if err != nil {
		return StorageType{}, err
	}
	return StorageType{Kind: KindArray, Items: itemsID}, nil
}

// compileAdditional compiles an additionalItems-style keyword for tuple
// overflow: absent or false means closed (nil pointer sentinel meaning
// "reject"), true means unrestricted (pointer to Any), and a schema
// document compiles normally. additionalItems is closed-by-default.
func (c *compiler) compileAdditional(doc any, path string) (*SchemaId, error) {
	switch v := doc.(type) {
	case nil:
		return nil, nil
	case bool:
		if v {
			id := Any
			return &id, nil
		}
		return nil, nil
	default:
		id, err := c.compileSchema(v, path)
		if err != nil {
			return nil, err
		}
		return &id, nil
	}
}

// compileAdditionalProperties compiles additionalProperties, which is
// open-by-default: an absent keyword means any extra property is allowed
// (pointer to Any), the opposite default from additionalItems' tuple
// overflow. Explicit true/false/schema behave the same as
// compileAdditional in every other case.
func (c *compiler) compileAdditionalProperties(doc any, path string) (*SchemaId, error) {
	if doc == nil {
		id := Any
		return &id, nil
	}
	return c.compileAdditional(doc, path)
}

// compileObject builds an Object StorageType from properties/required/
// additionalProperties.
func (c *compiler) compileObject(m map[string]any, path string) (StorageType, error) {
	props, _ := m["properties"].(map[string]any)
	required := map[string]bool{}
	if req, ok := m["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ObjectProperty, 0, len(names))
	for _, name := range names {
		// jsonpointer.Format escapes ~ and / in name per RFC 6901, so a
		// property literally named e.g. "a/b" still yields a valid pointer.
		id, err := c.compileSchema(props[name], path+"/properties"+jsonpointer.Format(name))
		if err != nil {
			return StorageType{}, err
		}
		out = append(out, ObjectProperty{
			Name:     name,
			Schema:   id,
			Required: required[name],
		})
	}
	out = c.registry.sortProperties(out)

	additional, err := c.compileAdditionalProperties(m["additionalProperties"], path+"/additionalProperties")
	if err != nil {
		return StorageType{}, err
	}
	return StorageType{Kind: KindObject, Properties: out, AdditionalProperties: additional}, nil
}
