package exec

import (
	"fmt"
	"io"
	"math/rand"
	"sort"

	charmlog "charm.land/log/v2"
	"golang.org/x/sync/errgroup"

	"github.com/arbors/arbors"
	"github.com/arbors/arbors/expr"
	"github.com/arbors/arbors/plan"
	"github.com/arbors/arbors/storage"
)

// Executor evaluates a LogicalPlan against an in-memory or stored source,
// producing a PhysicalResult (spec §4.8). Logger may be nil, in which case
// a discard logger is used, following the same nil-safe construction
// pattern as storage.Engine.
type Executor struct {
	logger *charmlog.Logger
}

// New returns an Executor. logger may be nil.
func New(logger *charmlog.Logger) *Executor {
	if logger == nil {
		logger = charmlog.New(io.Discard)
	}
	return &Executor{logger: logger}
}

// Execute evaluates p against rt (nil if p is rooted at an in-memory
// source that needs no storage access) and returns its PhysicalResult.
// The source is resolved once up front against the WHOLE plan, so
// projection-pool analysis sees every Predicate/Fields/KeyExpr anywhere
// in the chain, not just the source node itself.
func (ex *Executor) Execute(p *plan.LogicalPlan, rt *storage.ReadTxn) (*PhysicalResult, error) {
	optimized := plan.Optimize(p)
	source, err := ex.resolveSource(optimized, rt)
	if err != nil {
		return nil, err
	}
	return ex.eval(optimized, source)
}

// leaf walks to the source node at the root of p's chain.
func leaf(p *plan.LogicalPlan) *plan.LogicalPlan {
	for p.Input != nil {
		p = p.Input
	}
	return p
}

// resolveSource materializes the full addressable Arbor backing p's
// source node, applying projection-pool analysis against p's ENTIRE
// chain when reading from storage so only the pools any operator in the
// plan can possibly touch are decoded (spec §4.7 "Projection-pool
// analysis", §4.8).
func (ex *Executor) resolveSource(p *plan.LogicalPlan, rt *storage.ReadTxn) (*arbors.Arbor, error) {
	src := leaf(p)
	switch src.Kind {
	case plan.SourceInMemory:
		return src.Arbor, nil
	case plan.SourceStored:
		if rt == nil {
			return nil, fmt.Errorf("exec: plan reads stored arbor %q but no read transaction was given", src.Name)
		}
		ba, ok := rt.GetBatched(src.Name)
		if !ok {
			return nil, fmt.Errorf("exec: stored arbor %q not found", src.Name)
		}
		dp := plan.AnalyzeProjection(p, ba.Schema())
		batches := make([]*arbors.Arbor, ba.Len())
		var g errgroup.Group
		for i := 0; i < ba.Len(); i++ {
			i := i
			g.Go(func() error {
				b, err := ba.BatchWithPlan(i, dp)
				if err != nil {
					return err
				}
				batches[i] = b
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return concatArbors(batches), nil
	default:
		return nil, fmt.Errorf("exec: plan has no source node")
	}
}

// eval recursively evaluates p bottom-up, dispatching on p.Kind (spec
// §4.8). source is the already-resolved Arbor backing this plan's
// source node (computed once by Execute). Content-sensitive operators
// (IsContentSensitive) require their input addressable by root index;
// index-only operators only reshuffle or subset indices; Select/AddFields
// chain transforms lazily.
func (ex *Executor) eval(p *plan.LogicalPlan, source *arbors.Arbor) (*PhysicalResult, error) {
	switch p.Kind {
	case plan.SourceInMemory, plan.SourceStored:
		return &PhysicalResult{Kind: ResultInMemory, Arbor: source, ArborIndices: NewDense(source.Len())}, nil
	}

	in, err := ex.eval(p.Input, source)
	if err != nil {
		return nil, err
	}

	if p.Kind.IsContentSensitive() {
		base, indices, err := addressable(in)
		if err != nil {
			return nil, err
		}
		return ex.evalContentSensitive(p, base, indices)
	}

	switch p.Kind {
	case plan.OpHead, plan.OpTail, plan.OpTake, plan.OpSample, plan.OpShuffle:
		return transformIndices(p, in)
	case plan.OpSelect:
		return applyProjectionTransform(in, transformSpecForSelect(p.Fields)), nil
	case plan.OpAddFields:
		return applyProjectionTransform(in, transformSpecForAddField(p.FieldName, p.FieldExpr)), nil
	default:
		return nil, fmt.Errorf("exec: unhandled plan node %s", p.Kind)
	}
}

// addressable returns a root-addressable (Arbor, indices) pair for in,
// materializing a lazy Projection chain first if necessary (spec §4.8
// "Root switching"). ResultInMemory is already addressable by
// definition; ResultProjection becomes addressable once its transform
// chain is materialized into a concrete Arbor.
func addressable(r *PhysicalResult) (*arbors.Arbor, IndexSet, error) {
	switch r.Kind {
	case ResultInMemory:
		return r.Arbor, r.ArborIndices, nil
	case ResultProjection:
		base := r.Base
		materialized, err := materialize(base, r.ProjIndices.ToSlice(), r.Transforms)
		if err != nil {
			return nil, nil, err
		}
		return materialized, Sparse(allIndices(materialized.Len())), nil
	default:
		return nil, nil, fmt.Errorf("exec: result kind %d is not addressable", r.Kind)
	}
}

func (ex *Executor) evalContentSensitive(p *plan.LogicalPlan, base *arbors.Arbor, indices IndexSet) (*PhysicalResult, error) {
	switch p.Kind {
	case plan.OpFilter:
		return evalFilter(p, base, indices)
	case plan.OpSort:
		return evalSort(p, base, indices)
	case plan.OpTopK:
		return evalTopK(p, base, indices)
	case plan.OpUniqueBy:
		return evalUniqueBy(p, base, indices)
	case plan.OpGroupBy:
		return evalGroupBy(p, base, indices)
	case plan.OpIndexBy:
		return evalIndexBy(p, base, indices)
	case plan.OpAggregate:
		return evalAggregate(p, base, indices)
	default:
		return nil, fmt.Errorf("exec: unhandled content-sensitive node %s", p.Kind)
	}
}

func evalFilter(p *plan.LogicalPlan, base *arbors.Arbor, indices IndexSet) (*PhysicalResult, error) {
	var out []int
	for i := 0; i < indices.Len(); i++ {
		idx := indices.At(i)
		root, err := base.Get(idx)
		if err != nil {
			return nil, err
		}
		v, err := p.Predicate.Eval(base, root)
		if err != nil {
			return nil, err
		}
		if v.Kind != expr.KindBool {
			return nil, fmt.Errorf("exec: filter predicate must evaluate to bool, got %s", v)
		}
		if v.B {
			out = append(out, idx)
		}
	}
	return &PhysicalResult{Kind: ResultInMemory, Arbor: base, ArborIndices: Sparse(out)}, nil
}

// sortIndices orders idx (a copy) by keys using expr.Compare over
// path-resolved values, stably.
func sortIndices(base *arbors.Arbor, idx []int, keys []plan.SortKey) error {
	var evalErr error
	sort.SliceStable(idx, func(i, j int) bool {
		if evalErr != nil {
			return false
		}
		for _, k := range keys {
			ri, err := base.Get(idx[i])
			if err != nil {
				evalErr = err
				return false
			}
			rj, err := base.Get(idx[j])
			if err != nil {
				evalErr = err
				return false
			}
			vi, err := expr.Path(k.Path).Eval(base, ri)
			if err != nil {
				evalErr = err
				return false
			}
			vj, err := expr.Path(k.Path).Eval(base, rj)
			if err != nil {
				evalErr = err
				return false
			}
			c := expr.Compare(vi, vj)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return evalErr
}

func evalSort(p *plan.LogicalPlan, base *arbors.Arbor, indices IndexSet) (*PhysicalResult, error) {
	idx := append([]int(nil), indices.ToSlice()...)
	if err := sortIndices(base, idx, p.Keys); err != nil {
		return nil, err
	}
	return &PhysicalResult{Kind: ResultInMemory, Arbor: base, ArborIndices: Sparse(idx)}, nil
}

// evalTopK sorts and truncates to N, the fused form of Sort->Head (spec
// §4.7 "TopK fusion"); evaluated directly here so an un-fused Sort+Head
// pair and a literal TopK node behave identically.
func evalTopK(p *plan.LogicalPlan, base *arbors.Arbor, indices IndexSet) (*PhysicalResult, error) {
	idx := append([]int(nil), indices.ToSlice()...)
	if err := sortIndices(base, idx, p.Keys); err != nil {
		return nil, err
	}
	if p.N < len(idx) {
		idx = idx[:p.N]
	}
	return &PhysicalResult{Kind: ResultInMemory, Arbor: base, ArborIndices: Sparse(idx)}, nil
}

func transformIndices(p *plan.LogicalPlan, in *PhysicalResult) (*PhysicalResult, error) {
	switch in.Kind {
	case ResultInMemory:
		idx := in.ArborIndices.ToSlice()
		newIdx, err := applyIndexOp(p, idx)
		if err != nil {
			return nil, err
		}
		return &PhysicalResult{Kind: ResultInMemory, Arbor: in.Arbor, ArborIndices: Sparse(newIdx)}, nil
	case ResultProjection:
		base := in.Base
		idx := in.ProjIndices.ToSlice()
		newIdx, err := applyIndexOp(p, idx)
		if err != nil {
			return nil, err
		}
		return &PhysicalResult{Kind: ResultProjection, Base: base, ProjIndices: Sparse(newIdx), Transforms: in.Transforms}, nil
	default:
		return nil, fmt.Errorf("exec: result kind %d cannot take an index-only operator", in.Kind)
	}
}

func applyIndexOp(p *plan.LogicalPlan, idx []int) ([]int, error) {
	switch p.Kind {
	case plan.OpHead:
		n := p.N
		if n > len(idx) {
			n = len(idx)
		}
		return append([]int(nil), idx[:n]...), nil
	case plan.OpTail:
		n := p.N
		if n > len(idx) {
			n = len(idx)
		}
		return append([]int(nil), idx[len(idx)-n:]...), nil
	case plan.OpTake:
		n := p.N
		if n > len(idx) {
			n = len(idx)
		}
		return append([]int(nil), idx[:n]...), nil
	case plan.OpSample:
		rnd := rand.New(rand.NewSource(p.Seed))
		perm := rnd.Perm(len(idx))
		n := p.N
		if n > len(idx) {
			n = len(idx)
		}
		out := make([]int, n)
		for i := 0; i < n; i++ {
			out[i] = idx[perm[i]]
		}
		return out, nil
	case plan.OpShuffle:
		rnd := rand.New(rand.NewSource(p.Seed))
		out := append([]int(nil), idx...)
		rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out, nil
	default:
		return nil, fmt.Errorf("exec: unhandled index-only operator %s", p.Kind)
	}
}

// applyProjectionTransform appends one TransformSpec to in's chain,
// converting a bare ResultInMemory into a ResultProjection rooted at its
// own Arbor on the first Select/AddFields after a root switch.
func applyProjectionTransform(in *PhysicalResult, t TransformSpec) *PhysicalResult {
	switch in.Kind {
	case ResultInMemory:
		return &PhysicalResult{
			Kind:        ResultProjection,
			Base:        in.Arbor,
			ProjIndices: in.ArborIndices,
			Transforms:  []TransformSpec{t},
		}
	case ResultProjection:
		return &PhysicalResult{
			Kind:        ResultProjection,
			Base:        in.Base,
			ProjIndices: in.ProjIndices,
			Transforms:  append(append([]TransformSpec(nil), in.Transforms...), t),
		}
	default:
		return in
	}
}

func evalUniqueBy(p *plan.LogicalPlan, base *arbors.Arbor, indices IndexSet) (*PhysicalResult, error) {
	seen := expr.NewCanonicalKeyMap[struct{}]()
	var out []int
	for i := 0; i < indices.Len(); i++ {
		idx := indices.At(i)
		root, err := base.Get(idx)
		if err != nil {
			return nil, err
		}
		v, err := p.KeyExpr.Eval(base, root)
		if err != nil {
			return nil, err
		}
		key, ok := expr.Canonicalize(v)
		if !ok {
			return nil, fmt.Errorf("exec: uniqueBy key evaluated to a non-scalar value")
		}
		if seen.Has(key) {
			continue
		}
		seen.Set(key, struct{}{})
		out = append(out, idx)
	}
	return &PhysicalResult{Kind: ResultInMemory, Arbor: base, ArborIndices: Sparse(out)}, nil
}

func evalGroupBy(p *plan.LogicalPlan, base *arbors.Arbor, indices IndexSet) (*PhysicalResult, error) {
	groups := expr.NewCanonicalKeyMap[[]int]()
	labels := expr.NewCanonicalKeyMap[expr.Value]()
	var order []expr.CanonicalKey

	for i := 0; i < indices.Len(); i++ {
		idx := indices.At(i)
		root, err := base.Get(idx)
		if err != nil {
			return nil, err
		}
		v, err := p.KeyExpr.Eval(base, root)
		if err != nil {
			return nil, err
		}
		key, ok := expr.Canonicalize(v)
		if !ok {
			return nil, fmt.Errorf("exec: groupBy key evaluated to a non-scalar value")
		}
		members, exists := groups.Get(key)
		if !exists {
			order = append(order, key)
			labels.Set(key, v)
		}
		groups.Set(key, append(members, idx))
	}

	out := GroupedResult{Order: order, Labels: labels, Groups: expr.NewCanonicalKeyMap[IndexSet]()}
	groups.Range(func(k expr.CanonicalKey, v []int) {
		out.Groups.Set(k, Sparse(v))
	})
	return &PhysicalResult{Kind: ResultGrouped, Arbor: base, Grouped: out}, nil
}

func evalIndexBy(p *plan.LogicalPlan, base *arbors.Arbor, indices IndexSet) (*PhysicalResult, error) {
	groups := expr.NewCanonicalKeyMap[[]int]()
	labels := expr.NewCanonicalKeyMap[expr.Value]()

	for i := 0; i < indices.Len(); i++ {
		idx := indices.At(i)
		root, err := base.Get(idx)
		if err != nil {
			return nil, err
		}
		v, err := p.KeyExpr.Eval(base, root)
		if err != nil {
			return nil, err
		}
		key, ok := expr.Canonicalize(v)
		if !ok {
			return nil, fmt.Errorf("exec: indexBy key evaluated to a non-scalar value")
		}
		labels.Set(key, v)
		members, _ := groups.Get(key)
		groups.Set(key, append(members, idx))
	}

	return &PhysicalResult{Kind: ResultIndexed, Arbor: base, Indexed: IndexedResult{Labels: labels, Groups: groups}}, nil
}

func evalAggregate(p *plan.LogicalPlan, base *arbors.Arbor, indices IndexSet) (*PhysicalResult, error) {
	out := make(map[string]expr.Value, len(p.Aggs))
	for _, agg := range p.Aggs {
		v, err := computeAgg(agg, base, indices)
		if err != nil {
			return nil, err
		}
		out[agg.Name] = v
	}
	return &PhysicalResult{Kind: ResultAggregated, Aggregated: out}, nil
}

func computeAgg(agg plan.AggExpr, base *arbors.Arbor, indices IndexSet) (expr.Value, error) {
	if agg.Func == plan.AggCount {
		return expr.Int64(int64(indices.Len())), nil
	}

	var sum float64
	var count int
	var min, max float64
	haveMinMax := false

	for i := 0; i < indices.Len(); i++ {
		idx := indices.At(i)
		root, err := base.Get(idx)
		if err != nil {
			return expr.Value{}, err
		}
		v, err := agg.Arg.Eval(base, root)
		if err != nil {
			return expr.Value{}, err
		}
		if v.IsNull() {
			continue
		}
		f, ok := numericValue(v)
		if !ok {
			return expr.Value{}, fmt.Errorf("exec: aggregate %q requires numeric values, got %s", agg.Name, v)
		}
		sum += f
		count++
		if !haveMinMax || f < min {
			min = f
		}
		if !haveMinMax || f > max {
			max = f
		}
		haveMinMax = true
	}

	switch agg.Func {
	case plan.AggSum:
		return expr.Float64(sum), nil
	case plan.AggAvg:
		if count == 0 {
			return expr.Null, nil
		}
		return expr.Float64(sum / float64(count)), nil
	case plan.AggMin:
		if !haveMinMax {
			return expr.Null, nil
		}
		return expr.Float64(min), nil
	case plan.AggMax:
		if !haveMinMax {
			return expr.Null, nil
		}
		return expr.Float64(max), nil
	default:
		return expr.Value{}, fmt.Errorf("exec: unknown aggregate function %s", agg.Func)
	}
}

func numericValue(v expr.Value) (float64, bool) {
	switch v.Kind {
	case expr.KindInt64:
		return float64(v.I), true
	case expr.KindFloat64:
		return v.F, true
	default:
		return 0, false
	}
}

// Materialize forces any PhysicalResult into a self-contained Arbor,
// resolving a lazy Projection chain or slicing a bare index result (spec
// §4.8 "Materialization").
func Materialize(r *PhysicalResult) (*arbors.Arbor, error) {
	switch r.Kind {
	case ResultInMemory:
		return sliceByIndices(r.Arbor, r.ArborIndices.ToSlice()), nil
	case ResultProjection:
		return materialize(r.Base, r.ProjIndices.ToSlice(), r.Transforms)
	default:
		return nil, fmt.Errorf("exec: result kind %d has no tree-shaped materialization", r.Kind)
	}
}
