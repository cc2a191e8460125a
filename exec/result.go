package exec

import (
	"github.com/arbors/arbors"
	"github.com/arbors/arbors/expr"
	"github.com/arbors/arbors/plan"
)

// ResultKind discriminates the variants of PhysicalResult (spec §4.8).
type ResultKind uint8

const (
	ResultInMemory ResultKind = iota
	ResultProjection
	ResultAggregated
	ResultGrouped
	ResultIndexed
)

// TransformKind discriminates the two shapes a TransformSpec can take.
type TransformKind uint8

const (
	TransformSelect TransformKind = iota
	TransformAddField
)

// TransformSpec is one pending projection fragment (spec §4.8, GLOSSARY
// "TransformSpec"): either a field selection or a single added field.
type TransformSpec struct {
	Kind      TransformKind
	Fields    []string // TransformSelect
	FieldName string   // TransformAddField
	FieldExpr *expr.Expr
}

// GroupedResult is the output of GroupBy: an ordered set of keys (first-
// seen order) each mapping to the IndexSet of member trees. Labels/Groups
// are CanonicalKeyMaps rather than native maps so that NaN keys collapse
// into one group instead of each starting a new one (see
// expr.CanonicalKeyMap).
type GroupedResult struct {
	Order  []expr.CanonicalKey
	Labels *expr.CanonicalKeyMap[expr.Value]
	Groups *expr.CanonicalKeyMap[IndexSet]
}

// IndexedResult is the output of IndexBy: every key maps to all matching
// tree indices (spec §4.8 "get_all(key) returns all matches").
type IndexedResult struct {
	Labels *expr.CanonicalKeyMap[expr.Value]
	Groups *expr.CanonicalKeyMap[[]int]
}

// PhysicalResult is the result of evaluating one LogicalPlan node (spec
// §4.8). Exactly one group of fields is meaningful, selected by Kind;
// this mirrors a Rust-style enum as a single Go struct with a kind tag,
// the idiomatic shape for a small closed variant set accessed almost
// entirely through the executor itself rather than external callers.
//
// Single coherent rule: every index carried by a PhysicalResult is
// relative to its own ArborIndices/ProjIndices base, never re-derived
// from the plan root once a root switch has occurred.
type PhysicalResult struct {
	Kind ResultKind

	// ResultInMemory
	Arbor        *arbors.Arbor
	ArborIndices IndexSet

	// ResultProjection: Base == nil means ProjIndices are relative to
	// the plan root; Base != nil means relative to Base.
	Base       *arbors.Arbor
	ProjIndices IndexSet
	Transforms []TransformSpec

	Aggregated map[string]expr.Value
	Grouped    GroupedResult
	Indexed    IndexedResult
}

// rootKeys returns the []plan.SortKey as a plain path list, dropping each
// key's direction. No evaluator in this package calls it.
func rootKeys(keys []plan.SortKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.Path
	}
	return out
}
