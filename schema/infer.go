package schema

import "sort"

const internCardinalityCap = 32

// shapeKind discriminates the intermediate merge-tree nodes Infer builds
// from sample documents, before they are lowered into StorageType values.
type shapeKind int

const (
	shapeNull shapeKind = iota
	shapeBool
	shapeInt
	shapeFloat
	shapeString
	shapeArray
	shapeObject
	shapeAny // conflicting, irreconcilable types observed at this position
)

// shape accumulates everything Infer has learned about one tree position
// across all samples merged into it so far.
type shape struct {
	kind     shapeKind
	nullable bool

	seen int // number of times this position was visited across all samples

	item *shape // shapeArray: merged shape of all elements seen

	props map[string]*propShape // shapeObject

	// low-cardinality string tracking, used as the StringIntern hint.
	stringValues   map[string]bool
	stringOverflow bool
}

// propShape tracks one object property's merged shape and how many of the
// object's `seen` instances actually carried it, which is exactly the
// count Infer needs to decide whether the property is required
// ("observed in every sample" per spec §3.4 "infer from samples").
type propShape struct {
	shape *shape
	count int
}

// Infer builds a Registry from a set of decoded sample documents, with no
// declared schema to guide it (spec §3.4 "Schema inference"). Each sample
// is merged into a single shape tree; type conflicts promote to a wider
// type where the promotion is lossless (int+float -> float) and fall back
// to Any otherwise; an object property is marked Required only if it was
// present in every sample that reached that object position.
func Infer(samples []any) *Registry {
	var root *shape
	for _, s := range samples {
		root = mergeShape(root, s)
	}
	if root == nil {
		root = &shape{kind: shapeAny}
	}

	c := &compiler{registry: newRegistry(), refs: newRefTracker(nil)}
	// Reserve index 0 for Root before lowering, since a container shape's
	// children are lowered (and allocated) before the container itself.
	c.registry.allocate(StorageSchema{})
	c.registry.set(Root, c.lowerShapeBody(root))
	return c.registry
}

// mergeShape folds one sample value into an existing shape (nil on first
// call) and returns the updated shape.
func mergeShape(s *shape, v any) *shape {
	if v == nil {
		if s == nil {
			s = &shape{kind: shapeNull}
		}
		s.seen++
		s.nullable = true
		return s
	}

	switch t := v.(type) {
	case bool:
		s = mergeKind(s, shapeBool)
	case float64:
		if t == float64(int64(t)) {
			s = mergeKind(s, shapeInt)
		} else {
			s = mergeKind(s, shapeFloat)
		}
	case string:
		s = mergeKind(s, shapeString)
		if s.kind == shapeString {
			if s.stringValues == nil {
				s.stringValues = make(map[string]bool)
			}
			if !s.stringOverflow {
				s.stringValues[t] = true
				if len(s.stringValues) > internCardinalityCap {
					s.stringOverflow = true
					s.stringValues = nil
				}
			}
		}
	case []any:
		s = mergeKind(s, shapeArray)
		if s.kind == shapeArray {
			for _, e := range t {
				s.item = mergeShape(s.item, e)
			}
		}
	case map[string]any:
		s = mergeKind(s, shapeObject)
		if s.kind == shapeObject {
			if s.props == nil {
				s.props = make(map[string]*propShape)
			}
			for name, e := range t {
				p, ok := s.props[name]
				if !ok {
					p = &propShape{}
					s.props[name] = p
				}
				p.shape = mergeShape(p.shape, e)
				p.count++
			}
		}
	default:
		s = mergeKind(s, shapeAny)
	}
	s.seen++
	return s
}

// mergeKind reconciles an existing shape's kind with a newly observed
// kind, applying the int->float widening promotion and falling back to
// Any for any other mismatch. Null seen alongside any kind just sets
// nullable; it never changes kind.
func mergeKind(s *shape, kind shapeKind) *shape {
	if s == nil {
		return &shape{kind: kind}
	}
	if s.kind == kind {
		return s
	}
	if s.kind == shapeNull {
		s.kind = kind
		return s
	}
	if (s.kind == shapeInt && kind == shapeFloat) || (s.kind == shapeFloat && kind == shapeInt) {
		s.kind = shapeFloat
		return s
	}
	s.kind = shapeAny
	return s
}

// lowerShape compiles a merged shape tree into a new registry slot and
// returns its id. The root shape is lowered separately via lowerShapeBody
// into the pre-reserved Root slot; this entry point is for nested
// (item/property) positions only.
func (c *compiler) lowerShape(s *shape) SchemaId {
	return c.registry.allocate(c.lowerShapeBody(s))
}

// lowerShapeBody builds the StorageSchema content for a shape without
// allocating a registry slot for it.
func (c *compiler) lowerShapeBody(s *shape) StorageSchema {
	out := StorageSchema{Nullable: s.nullable}
	switch s.kind {
	case shapeNull:
		out.Type = StorageType{Kind: KindNull}
	case shapeBool:
		out.Type = StorageType{Kind: KindBool}
	case shapeInt:
		out.Type = StorageType{Kind: KindInt64}
	case shapeFloat:
		out.Type = StorageType{Kind: KindFloat64}
	case shapeString:
		out.Type = StorageType{Kind: KindString, StringIntern: !s.stringOverflow && len(s.stringValues) > 0}
	case shapeArray:
		var items SchemaId = Any
		if s.item != nil {
			items = c.lowerShapeNested(s.item)
		}
		out.Type = StorageType{Kind: KindArray, Items: items}
	case shapeObject:
		names := make([]string, 0, len(s.props))
		for name := range s.props {
			names = append(names, name)
		}
		sort.Strings(names)
		props := make([]ObjectProperty, 0, len(names))
		for _, name := range names {
			p := s.props[name]
			id := c.lowerShapeNested(p.shape)
			props = append(props, ObjectProperty{
				Name:     name,
				Schema:   id,
				Required: p.count == s.seen,
			})
		}
		additional := Any
		out.Type = StorageType{
			Kind:                 KindObject,
			Properties:           c.registry.sortProperties(props),
			AdditionalProperties: &additional,
		}
	default:
		out.Type = StorageType{Kind: KindAny}
	}
	return out
}

// lowerShapeNested is lowerShape for any position other than the overall
// root (item/property shapes), kept as a distinct name for readability at
// call sites.
func (c *compiler) lowerShapeNested(s *shape) SchemaId {
	if s == nil {
		return Any
	}
	return c.lowerShape(s)
}
