package exec

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arbors/arbors"
	"github.com/arbors/arbors/expr"
	"github.com/arbors/arbors/parser"
	"github.com/arbors/arbors/plan"
	"github.com/arbors/arbors/schema"
	"github.com/arbors/arbors/storage"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.Compile(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
			"age":  map[string]any{"type": "integer"},
		},
		"required": []any{"name", "age"},
	})
	require.NoError(t, err)
	return reg
}

func testArbor(t *testing.T, reg *schema.Registry, docs ...string) *arbors.Arbor {
	t.Helper()
	raw := make([][]byte, len(docs))
	for i, d := range docs {
		raw[i] = []byte(d)
	}
	a, err := parser.ParseDocuments(raw, reg)
	require.NoError(t, err)
	return a
}

func names(t *testing.T, a *arbors.Arbor) []string {
	t.Helper()
	out := make([]string, a.Len())
	for i := 0; i < a.Len(); i++ {
		root, err := a.Get(i)
		require.NoError(t, err)
		id, ok := a.GetField(root, "name")
		require.True(t, ok)
		out[i] = a.GetString(id)
	}
	return out
}

func TestFilterSortOverInMemory(t *testing.T) {
	reg := testRegistry(t)
	a := testArbor(t, reg,
		`{"name":"ada","age":36}`,
		`{"name":"lin","age":40}`,
		`{"name":"grace","age":28}`,
		`{"name":"bob","age":52}`,
	)

	p := plan.InMemory(a).
		Filter(expr.Path("age").Ge(expr.Lit(30))).
		Sort(plan.SortKey{Path: "age"})

	ex := New(nil)
	res, err := ex.Execute(p, nil)
	require.NoError(t, err)
	require.Equal(t, ResultInMemory, res.Kind)

	out, err := Materialize(res)
	require.NoError(t, err)
	require.Equal(t, []string{"ada", "lin", "bob"}, names(t, out))
}

func TestTopKFusedAndExplicitAgree(t *testing.T) {
	reg := testRegistry(t)
	a := testArbor(t, reg,
		`{"name":"ada","age":36}`,
		`{"name":"lin","age":40}`,
		`{"name":"grace","age":28}`,
		`{"name":"bob","age":52}`,
	)

	fused := plan.InMemory(a).Sort(plan.SortKey{Path: "age", Desc: true}).Head(2)
	explicit := plan.InMemory(a).TopK(2, plan.SortKey{Path: "age", Desc: true})

	ex := New(nil)
	r1, err := ex.Execute(fused, nil)
	require.NoError(t, err)
	r2, err := ex.Execute(explicit, nil)
	require.NoError(t, err)

	o1, err := Materialize(r1)
	require.NoError(t, err)
	o2, err := Materialize(r2)
	require.NoError(t, err)
	require.Equal(t, names(t, o1), names(t, o2))
	require.Equal(t, []string{"bob", "lin"}, names(t, o1))
}

func TestChainedAddFieldFilterRootSwitch(t *testing.T) {
	reg := testRegistry(t)
	a := testArbor(t, reg,
		`{"name":"ada","age":36}`,
		`{"name":"lin","age":40}`,
		`{"name":"grace","age":10}`,
	)

	p := plan.InMemory(a).
		AddField("doubled", expr.Path("age").Mul(expr.Lit(2))).
		Filter(expr.Path("doubled").Gt(expr.Lit(50))).
		Head(10)

	ex := New(nil)
	res, err := ex.Execute(p, nil)
	require.NoError(t, err)

	out, err := Materialize(res)
	require.NoError(t, err)
	require.Equal(t, []string{"ada", "lin"}, names(t, out))

	root, err := out.Get(0)
	require.NoError(t, err)
	id, ok := out.GetField(root, "doubled")
	require.True(t, ok)
	require.Equal(t, int64(72), out.GetInt64(id))
}

func TestSelectProjectsOnlyNamedFields(t *testing.T) {
	reg := testRegistry(t)
	a := testArbor(t, reg, `{"name":"ada","age":36}`)

	p := plan.InMemory(a).Select("name")
	ex := New(nil)
	res, err := ex.Execute(p, nil)
	require.NoError(t, err)
	out, err := Materialize(res)
	require.NoError(t, err)

	root, err := out.Get(0)
	require.NoError(t, err)
	_, ok := out.GetField(root, "age")
	require.False(t, ok)
	id, ok := out.GetField(root, "name")
	require.True(t, ok)
	require.Equal(t, "ada", out.GetString(id))
}

func TestUniqueByDedupesOnCanonicalKey(t *testing.T) {
	reg := testRegistry(t)
	a := testArbor(t, reg,
		`{"name":"ada","age":36}`,
		`{"name":"lin","age":36}`,
		`{"name":"grace","age":40}`,
	)

	p := plan.InMemory(a).UniqueBy(expr.Path("age"))
	ex := New(nil)
	res, err := ex.Execute(p, nil)
	require.NoError(t, err)
	out, err := Materialize(res)
	require.NoError(t, err)
	require.Equal(t, []string{"ada", "grace"}, names(t, out))
}

func TestGroupByGroupsByCanonicalKeyInFirstSeenOrder(t *testing.T) {
	reg := testRegistry(t)
	a := testArbor(t, reg,
		`{"name":"ada","age":36}`,
		`{"name":"lin","age":40}`,
		`{"name":"grace","age":36}`,
	)

	p := plan.InMemory(a).GroupBy(expr.Path("age"))
	ex := New(nil)
	res, err := ex.Execute(p, nil)
	require.NoError(t, err)
	require.Equal(t, ResultGrouped, res.Kind)
	require.Len(t, res.Grouped.Order, 2)

	first := res.Grouped.Order[0]
	members, ok := res.Grouped.Groups.Get(first)
	require.True(t, ok)
	require.Equal(t, 2, members.Len())
}

func TestGroupByCollapsesNaNKeysIntoOneGroup(t *testing.T) {
	reg := testRegistry(t)
	a := testArbor(t, reg,
		`{"name":"ada","age":36}`,
		`{"name":"lin","age":36}`,
		`{"name":"grace","age":40}`,
	)

	// 0/0 evaluates to NaN for every row regardless of its fields, so every
	// row's key canonicalizes to the same NaN group.
	p := plan.InMemory(a).GroupBy(expr.Lit(0.0).Div(expr.Lit(0.0)))
	ex := New(nil)
	res, err := ex.Execute(p, nil)
	require.NoError(t, err)
	require.Equal(t, ResultGrouped, res.Kind)
	require.Len(t, res.Grouped.Order, 1)

	members, ok := res.Grouped.Groups.Get(res.Grouped.Order[0])
	require.True(t, ok)
	require.Equal(t, 3, members.Len())
}

func TestUniqueByCollapsesNaNKeys(t *testing.T) {
	reg := testRegistry(t)
	a := testArbor(t, reg,
		`{"name":"ada","age":36}`,
		`{"name":"lin","age":36}`,
		`{"name":"grace","age":40}`,
	)

	p := plan.InMemory(a).UniqueBy(expr.Lit(0.0).Div(expr.Lit(0.0)))
	ex := New(nil)
	res, err := ex.Execute(p, nil)
	require.NoError(t, err)
	out, err := Materialize(res)
	require.NoError(t, err)
	require.Len(t, names(t, out), 1)
}

func TestAggregateComputesSumAndAvg(t *testing.T) {
	reg := testRegistry(t)
	a := testArbor(t, reg,
		`{"name":"ada","age":30}`,
		`{"name":"lin","age":40}`,
		`{"name":"grace","age":50}`,
	)

	p := plan.InMemory(a).Aggregate(
		plan.AggExpr{Name: "n", Func: plan.AggCount},
		plan.AggExpr{Name: "total", Func: plan.AggSum, Arg: expr.Path("age")},
		plan.AggExpr{Name: "mean", Func: plan.AggAvg, Arg: expr.Path("age")},
	)
	ex := New(nil)
	res, err := ex.Execute(p, nil)
	require.NoError(t, err)
	require.Equal(t, ResultAggregated, res.Kind)
	require.Equal(t, int64(3), res.Aggregated["n"].I)
	require.Equal(t, 120.0, res.Aggregated["total"].F)
	require.Equal(t, 40.0, res.Aggregated["mean"].F)
}

func TestHeadOverStoredSource(t *testing.T) {
	dir := t.TempDir()
	e, err := storage.NewEngine(filepath.Join(dir, "a.db"), storage.DefaultEngineOptions(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Close()) })

	reg := testRegistry(t)
	a := testArbor(t, reg,
		`{"name":"ada","age":36}`,
		`{"name":"lin","age":40}`,
		`{"name":"grace","age":28}`,
	)
	wt := e.BeginWrite()
	require.NoError(t, wt.Put("people", a))
	require.NoError(t, wt.Commit())

	rt := e.BeginRead()
	p := plan.Stored("people").Head(2)
	ex := New(nil)
	res, err := ex.Execute(p, rt)
	require.NoError(t, err)
	out, err := Materialize(res)
	require.NoError(t, err)
	require.Equal(t, []string{"ada", "lin"}, names(t, out))
}

func TestFilterOverStoredSourceMatchesInMemory(t *testing.T) {
	dir := t.TempDir()
	e, err := storage.NewEngine(filepath.Join(dir, "a.db"), storage.DefaultEngineOptions(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Close()) })

	reg := testRegistry(t)
	a := testArbor(t, reg,
		`{"name":"ada","age":36}`,
		`{"name":"lin","age":40}`,
		`{"name":"grace","age":28}`,
	)
	wt := e.BeginWrite()
	require.NoError(t, wt.Put("people", a))
	require.NoError(t, wt.Commit())

	rt := e.BeginRead()
	stored := plan.Stored("people").Filter(expr.Path("age").Gt(expr.Lit(30)))
	inMem := plan.InMemory(a).Filter(expr.Path("age").Gt(expr.Lit(30)))

	ex := New(nil)
	r1, err := ex.Execute(stored, rt)
	require.NoError(t, err)
	r2, err := ex.Execute(inMem, nil)
	require.NoError(t, err)

	o1, err := Materialize(r1)
	require.NoError(t, err)
	o2, err := Materialize(r2)
	require.NoError(t, err)
	require.Equal(t, names(t, o2), names(t, o1))
}

func TestShuffleIsAPermutationOfAllIndices(t *testing.T) {
	reg := testRegistry(t)
	a := testArbor(t, reg,
		`{"name":"a","age":1}`, `{"name":"b","age":2}`, `{"name":"c","age":3}`, `{"name":"d","age":4}`,
	)

	p := plan.InMemory(a).Shuffle(42)
	ex := New(nil)
	res, err := ex.Execute(p, nil)
	require.NoError(t, err)
	require.Equal(t, ResultInMemory, res.Kind)
	require.Equal(t, 4, res.ArborIndices.Len())

	seen := map[int]bool{}
	for i := 0; i < res.ArborIndices.Len(); i++ {
		seen[res.ArborIndices.At(i)] = true
	}
	require.Len(t, seen, 4)
}
