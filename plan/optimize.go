package plan

import (
	"sort"

	"github.com/arbors/arbors/expr"
)

// Optimize applies the local rewrites spec §4.7 describes: filter-
// selectivity reordering, predicate pushdown below projection-only
// operators, and Sort-into-Head TopK fusion. Rewrites are applied
// bottom-up on a freshly rebuilt tree; the input plan is never mutated.
func Optimize(p *LogicalPlan) *LogicalPlan {
	if p == nil {
		return nil
	}
	rebuilt := *p
	rebuilt.Input = Optimize(p.Input)

	switch rebuilt.Kind {
	case OpFilter:
		rebuilt.Predicate = reorderBySelectivity(rebuilt.Predicate)
	}

	fused := fuseTopK(&rebuilt)
	return pushdownFilter(fused)
}

// reorderBySelectivity rewrites a top-level conjunction so its most
// selective conjuncts are evaluated first (spec §4.7 "Filter-selectivity
// reordering"). There is no cardinality statistics source in this engine,
// so selectivity is estimated structurally: equality comparisons are
// assumed more selective than range comparisons, which are assumed more
// selective than anything else. Ties preserve the original left-to-right
// order (sort.SliceStable).
func reorderBySelectivity(e *expr.Expr) *expr.Expr {
	if e == nil || e.Kind != expr.KindBinary || e.Op != expr.OpAnd {
		return e
	}
	conjuncts := flattenAnd(e)
	for i, c := range conjuncts {
		conjuncts[i] = reorderBySelectivity(c)
	}
	sort.SliceStable(conjuncts, func(i, j int) bool {
		return selectivityScore(conjuncts[i]) < selectivityScore(conjuncts[j])
	})
	out := conjuncts[0]
	for _, c := range conjuncts[1:] {
		out = out.And(c)
	}
	return out
}

func flattenAnd(e *expr.Expr) []*expr.Expr {
	if e.Kind == expr.KindBinary && e.Op == expr.OpAnd {
		return append(flattenAnd(e.Left), flattenAnd(e.Right)...)
	}
	return []*expr.Expr{e}
}

func selectivityScore(e *expr.Expr) int {
	if e.Kind != expr.KindBinary {
		return 2
	}
	switch e.Op {
	case expr.OpEq:
		return 0
	case expr.OpLt, expr.OpLe, expr.OpGt, expr.OpGe, expr.OpNe:
		return 1
	default:
		return 2
	}
}

// fuseTopK rewrites Head(n) over Sort(keys) into TopK(keys, n) (spec
// §4.7 "TopK fusion").
func fuseTopK(p *LogicalPlan) *LogicalPlan {
	if p.Kind == OpHead && p.Input != nil && p.Input.Kind == OpSort {
		return &LogicalPlan{Kind: OpTopK, Input: p.Input.Input, N: p.N, Keys: p.Input.Keys}
	}
	return p
}

// pushdownFilter pushes a Filter below an adjacent Select or AddFields
// when the predicate doesn't reference the projection's renamed/added
// field (spec §4.7 "Predicate pushdown"). Pushdown below index-limiting
// operators (Head/Tail/Take/Sample/Shuffle) is deliberately NOT
// performed: those operators select a specific subset or permutation of
// rows, and running the filter before them would change which rows
// survive, not merely reorder an equivalent computation — see DESIGN.md
// "predicate pushdown scope" for the Open Question decision.
func pushdownFilter(p *LogicalPlan) *LogicalPlan {
	if p.Kind != OpFilter || p.Input == nil {
		return p
	}
	in := p.Input
	switch in.Kind {
	case OpSelect:
		if predicateOnlyUses(p.Predicate, in.Fields) {
			return &LogicalPlan{Kind: OpSelect, Input: &LogicalPlan{Kind: OpFilter, Input: in.Input, Predicate: p.Predicate}, Fields: in.Fields}
		}
	case OpAddFields:
		if !referencesPath(p.Predicate, in.FieldName) {
			return &LogicalPlan{Kind: OpAddFields, Input: &LogicalPlan{Kind: OpFilter, Input: in.Input, Predicate: p.Predicate}, FieldName: in.FieldName, FieldExpr: in.FieldExpr}
		}
	}
	return p
}

// predicateOnlyUses reports whether every path the predicate references
// is still present after a Select projecting down to fields. A predicate
// on a field the Select drops sees null above the Select but the real
// value below it, so pushdown below Select happens only when this holds.
func predicateOnlyUses(e *expr.Expr, fields []string) bool {
	allowed := make(map[string]bool, len(fields))
	for _, f := range fields {
		allowed[f] = true
	}
	for _, path := range expr.Paths(e) {
		if !allowed[path] {
			return false
		}
	}
	return true
}

func referencesPath(e *expr.Expr, path string) bool {
	for _, p := range expr.Paths(e) {
		if p == path {
			return true
		}
	}
	return false
}
