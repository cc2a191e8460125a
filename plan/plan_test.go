package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arbors/arbors"
	"github.com/arbors/arbors/expr"
	"github.com/arbors/arbors/schema"
)

func TestBuilderSharesSubtrees(t *testing.T) {
	base := Stored("people")
	a := base.Filter(expr.Path("age").Gt(expr.Lit(10)))
	b := base.Filter(expr.Path("age").Lt(expr.Lit(5)))
	require.Same(t, base, a.Input)
	require.Same(t, base, b.Input)
}

func TestExplainRendersIndentedTree(t *testing.T) {
	p := Stored("people").Filter(expr.Path("age").Gt(expr.Lit(10))).Head(5)
	out := Explain(p)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "Head(5)")
	require.Contains(t, lines[1], "Filter")
	require.Contains(t, lines[2], `Stored("people")`)
}

func TestTopKFusion(t *testing.T) {
	p := Stored("people").Sort(SortKey{Path: "age"}).Head(10)
	opt := Optimize(p)
	require.Equal(t, OpTopK, opt.Kind)
	require.Equal(t, 10, opt.N)
	require.Equal(t, SourceStored, opt.Input.Kind)
}

func TestSelectivityReordering(t *testing.T) {
	pred := expr.Path("age").Gt(expr.Lit(10)).And(expr.Path("id").Eq(expr.Lit(42)))
	p := Stored("people").Filter(pred)
	opt := Optimize(p)
	require.Equal(t, expr.OpEq, opt.Predicate.Left.Op)
}

func TestPushdownThroughAddFieldsWhenSafe(t *testing.T) {
	p := Stored("people").AddField("doubled", expr.Path("age").Mul(expr.Lit(2))).Filter(expr.Path("name").Eq(expr.Lit("ada")))
	opt := Optimize(p)
	require.Equal(t, OpAddFields, opt.Kind)
	require.Equal(t, OpFilter, opt.Input.Kind)
	require.Equal(t, SourceStored, opt.Input.Input.Kind)
}

func TestPushdownBlockedWhenPredicateReferencesAddedField(t *testing.T) {
	p := Stored("people").AddField("doubled", expr.Path("age").Mul(expr.Lit(2))).Filter(expr.Path("doubled").Gt(expr.Lit(50)))
	opt := Optimize(p)
	require.Equal(t, OpFilter, opt.Kind)
	require.Equal(t, OpAddFields, opt.Input.Kind)
}

func TestAnalyzeProjectionResolvesLeafPools(t *testing.T) {
	reg, err := schema.Compile(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"age":  map[string]any{"type": "integer"},
			"name": map[string]any{"type": "string"},
		},
	})
	require.NoError(t, err)

	p := Stored("people").Filter(expr.Path("age").Gt(expr.Lit(10)))
	dp := AnalyzeProjection(p, reg)
	require.True(t, dp.Has(arbors.PoolInt64))
	require.False(t, dp.Has(arbors.PoolString))
	require.False(t, dp.IsAll())
}

func TestAnalyzeProjectionFallsBackWithoutSchema(t *testing.T) {
	p := Stored("people").Filter(expr.Path("age").Gt(expr.Lit(10)))
	dp := AnalyzeProjection(p, nil)
	require.True(t, dp.IsAll())
}
