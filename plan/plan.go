// Package plan implements the LogicalPlan IR (spec §3.5, §4.7): an
// immutable, shared-subtree DAG of sources and operations, a local
// rewrite optimizer, and an explain formatter.
package plan

import (
	"github.com/arbors/arbors"
	"github.com/arbors/arbors/expr"
)

// Kind discriminates the variants of a LogicalPlan node.
type Kind uint8

const (
	SourceInMemory Kind = iota
	SourceStored
	OpFilter
	OpHead
	OpTail
	OpTake
	OpSample
	OpShuffle
	OpSort
	OpTopK
	OpSelect
	OpAddFields
	OpUniqueBy
	OpAggregate
	OpGroupBy
	OpIndexBy
)

func (k Kind) String() string {
	switch k {
	case SourceInMemory:
		return "InMemory"
	case SourceStored:
		return "Stored"
	case OpFilter:
		return "Filter"
	case OpHead:
		return "Head"
	case OpTail:
		return "Tail"
	case OpTake:
		return "Take"
	case OpSample:
		return "Sample"
	case OpShuffle:
		return "Shuffle"
	case OpSort:
		return "Sort"
	case OpTopK:
		return "TopK"
	case OpSelect:
		return "Select"
	case OpAddFields:
		return "AddFields"
	case OpUniqueBy:
		return "UniqueBy"
	case OpAggregate:
		return "Aggregate"
	case OpGroupBy:
		return "GroupBy"
	case OpIndexBy:
		return "IndexBy"
	default:
		return "Unknown"
	}
}

// SortKey is one key of a Sort/TopK operation.
type SortKey struct {
	Path string
	Desc bool
}

// AggFunc identifies an aggregate function.
type AggFunc uint8

const (
	AggCount AggFunc = iota
	AggSum
	AggMin
	AggMax
	AggAvg
)

func (f AggFunc) String() string {
	switch f {
	case AggCount:
		return "count"
	case AggSum:
		return "sum"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggAvg:
		return "avg"
	default:
		return "?"
	}
}

// AggExpr is one named aggregate computation; Arg is nil for AggCount.
type AggExpr struct {
	Name string
	Func AggFunc
	Arg  *expr.Expr
}

// LogicalPlan is one node of the immutable query IR (spec §3.5). Builder
// methods on *LogicalPlan return a new node referencing the receiver as
// Input; subtrees are shared by pointer, which is Go's natural analogue
// of the reference-counted sharing the spec describes — no manual
// refcounting is needed because the garbage collector keeps a shared
// subtree alive for as long as any plan references it.
type LogicalPlan struct {
	Kind  Kind
	Input *LogicalPlan

	// SourceInMemory
	Arbor *arbors.Arbor
	// SourceStored
	Name string

	// Filter
	Predicate *expr.Expr

	// Head / Tail / Take / Sample / TopK
	N int
	// Sample / Shuffle
	Seed int64

	// Sort / TopK
	Keys []SortKey

	// Select
	Fields []string

	// AddFields
	FieldName string
	FieldExpr *expr.Expr

	// UniqueBy / GroupBy / IndexBy
	KeyExpr *expr.Expr

	// Aggregate
	Aggs []AggExpr
}

// InMemory builds a plan rooted at an already-materialized Arbor handle.
func InMemory(a *arbors.Arbor) *LogicalPlan {
	return &LogicalPlan{Kind: SourceInMemory, Arbor: a}
}

// Stored builds a plan rooted at a named entry in the storage engine.
func Stored(name string) *LogicalPlan {
	return &LogicalPlan{Kind: SourceStored, Name: name}
}

func (p *LogicalPlan) Filter(pred *expr.Expr) *LogicalPlan {
	return &LogicalPlan{Kind: OpFilter, Input: p, Predicate: pred}
}

func (p *LogicalPlan) Head(n int) *LogicalPlan {
	return &LogicalPlan{Kind: OpHead, Input: p, N: n}
}

func (p *LogicalPlan) Tail(n int) *LogicalPlan {
	return &LogicalPlan{Kind: OpTail, Input: p, N: n}
}

func (p *LogicalPlan) Take(n int) *LogicalPlan {
	return &LogicalPlan{Kind: OpTake, Input: p, N: n}
}

func (p *LogicalPlan) Sample(n int, seed int64) *LogicalPlan {
	return &LogicalPlan{Kind: OpSample, Input: p, N: n, Seed: seed}
}

func (p *LogicalPlan) Shuffle(seed int64) *LogicalPlan {
	return &LogicalPlan{Kind: OpShuffle, Input: p, Seed: seed}
}

func (p *LogicalPlan) Sort(keys ...SortKey) *LogicalPlan {
	return &LogicalPlan{Kind: OpSort, Input: p, Keys: keys}
}

func (p *LogicalPlan) TopK(n int, keys ...SortKey) *LogicalPlan {
	return &LogicalPlan{Kind: OpTopK, Input: p, N: n, Keys: keys}
}

func (p *LogicalPlan) Select(fields ...string) *LogicalPlan {
	return &LogicalPlan{Kind: OpSelect, Input: p, Fields: fields}
}

func (p *LogicalPlan) AddField(name string, e *expr.Expr) *LogicalPlan {
	return &LogicalPlan{Kind: OpAddFields, Input: p, FieldName: name, FieldExpr: e}
}

func (p *LogicalPlan) UniqueBy(key *expr.Expr) *LogicalPlan {
	return &LogicalPlan{Kind: OpUniqueBy, Input: p, KeyExpr: key}
}

func (p *LogicalPlan) GroupBy(key *expr.Expr) *LogicalPlan {
	return &LogicalPlan{Kind: OpGroupBy, Input: p, KeyExpr: key}
}

func (p *LogicalPlan) IndexBy(key *expr.Expr) *LogicalPlan {
	return &LogicalPlan{Kind: OpIndexBy, Input: p, KeyExpr: key}
}

func (p *LogicalPlan) Aggregate(aggs ...AggExpr) *LogicalPlan {
	return &LogicalPlan{Kind: OpAggregate, Input: p, Aggs: aggs}
}

// IsContentSensitive reports whether this node's operation requires its
// input to be addressable by root index rather than a lazy projection
// chain (spec §4.8 "Root switching"): Filter, Sort, TopK, UniqueBy,
// Aggregate, GroupBy, IndexBy.
func (k Kind) IsContentSensitive() bool {
	switch k {
	case OpFilter, OpSort, OpTopK, OpUniqueBy, OpAggregate, OpGroupBy, OpIndexBy:
		return true
	default:
		return false
	}
}
