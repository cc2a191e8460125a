package plan

import (
	"strings"

	"github.com/arbors/arbors"
	"github.com/arbors/arbors/expr"
	"github.com/arbors/arbors/schema"
)

// AnalyzeProjection walks every expression reachable from p, resolving
// each path expression's type against reg (if present) to determine
// which of the eight primitive pools the query can possibly touch (spec
// §4.7 "Projection-pool analysis"). Literals require no pools. A nil
// registry, or any path that cannot be resolved to a leaf scalar type,
// makes the whole plan fall back to DecodePlanAll — the conservative
// choice the spec mandates rather than guessing.
func AnalyzeProjection(p *LogicalPlan, reg *schema.Registry) arbors.DecodePlan {
	if reg == nil {
		return arbors.DecodePlanAll
	}
	result := arbors.DecodePlanNone
	conservative := false
	for _, path := range collectPaths(p) {
		pt, ok := resolvePoolType(reg, path)
		if !ok {
			conservative = true
			break
		}
		result = result.With(pt)
	}
	if conservative {
		return arbors.DecodePlanAll
	}
	return result
}

// collectPaths gathers every distinct field path reachable from any
// expression-bearing field in p's whole tree.
func collectPaths(p *LogicalPlan) []string {
	seen := map[string]bool{}
	var out []string
	add := func(paths []string) {
		for _, path := range paths {
			if !seen[path] {
				seen[path] = true
				out = append(out, path)
			}
		}
	}
	for n := p; n != nil; n = n.Input {
		if n.Predicate != nil {
			add(expr.Paths(n.Predicate))
		}
		if n.FieldExpr != nil {
			add(expr.Paths(n.FieldExpr))
		}
		if n.KeyExpr != nil {
			add(expr.Paths(n.KeyExpr))
		}
		for _, k := range n.Keys {
			add([]string{k.Path})
		}
		for _, f := range n.Fields {
			add([]string{f})
		}
		for _, a := range n.Aggs {
			if a.Arg != nil {
				add(expr.Paths(a.Arg))
			}
		}
	}
	return out
}

// resolvePoolType walks a dotted path through reg's property tables
// starting at schema.Root, returning the PoolType backing its resolved
// leaf type. It fails (false) if any segment is unresolvable (open/Any
// schema, missing property) or the resolved type is a container, since
// either case could touch any pool.
func resolvePoolType(reg *schema.Registry, path string) (arbors.PoolType, bool) {
	id := schema.Root
	segs := strings.Split(path, ".")
	for i, seg := range segs {
		if id == schema.Any {
			return 0, false
		}
		s := reg.Get(id)
		prop, ok := s.LookupProperty(seg)
		if !ok {
			return 0, false
		}
		id = prop.Schema
		if i == len(segs)-1 {
			leaf := reg.Get(id)
			return poolTypeForKind(leaf.Type.Kind)
		}
	}
	return 0, false
}

func poolTypeForKind(k schema.Kind) (arbors.PoolType, bool) {
	switch k {
	case schema.KindBool:
		return arbors.PoolBool, true
	case schema.KindInt64:
		return arbors.PoolInt64, true
	case schema.KindFloat64:
		return arbors.PoolFloat64, true
	case schema.KindString:
		return arbors.PoolString, true
	default:
		return 0, false
	}
}
