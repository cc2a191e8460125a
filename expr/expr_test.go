package expr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arbors/arbors"
	"github.com/arbors/arbors/parser"
	"github.com/arbors/arbors/schema"
)

func buildTestArbor(t *testing.T) (*arbors.Arbor, arbors.NodeID) {
	t.Helper()
	reg, err := schema.Compile(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"age":  map[string]any{"type": "integer"},
			"name": map[string]any{"type": "string"},
		},
	})
	require.NoError(t, err)
	a, err := parser.Parse([]byte(`{"age":30,"name":"ada"}`), reg)
	require.NoError(t, err)
	root, err := a.Get(0)
	require.NoError(t, err)
	return a, root
}

func TestPathEval(t *testing.T) {
	a, root := buildTestArbor(t)
	v, err := Path("age").Eval(a, root)
	require.NoError(t, err)
	require.Equal(t, Int64(30), v)
}

func TestPathMissingEvalsNull(t *testing.T) {
	a, root := buildTestArbor(t)
	v, err := Path("missing").Eval(a, root)
	require.NoError(t, err)
	require.True(t, v.IsNull())
}

func TestArithmeticAndComparison(t *testing.T) {
	a, root := buildTestArbor(t)
	doubled := Path("age").Mul(Lit(2))
	v, err := doubled.Eval(a, root)
	require.NoError(t, err)
	require.Equal(t, Int64(60), v)

	gt, err := doubled.Gt(Lit(50)).Eval(a, root)
	require.NoError(t, err)
	require.Equal(t, Bool(true), gt)
}

func TestAndShortCircuits(t *testing.T) {
	a, root := buildTestArbor(t)
	pred := Lit(false).And(Path("nonexistent.deep").Eq(Lit(1)))
	v, err := pred.Eval(a, root)
	require.NoError(t, err)
	require.Equal(t, Bool(false), v)
}

func TestCanonicalizeNumericEquivalence(t *testing.T) {
	kInt, ok := Canonicalize(Int64(1))
	require.True(t, ok)
	kFloat, ok := Canonicalize(Float64(1.0))
	require.True(t, ok)
	require.True(t, kInt.Equal(kFloat))
	require.Equal(t, kInt.Hash(), kFloat.Hash())
}

func TestCanonicalizeNaNEqualsItself(t *testing.T) {
	nan := Float64(nanValue())
	k1, ok := Canonicalize(nan)
	require.True(t, ok)
	k2, ok := Canonicalize(nan)
	require.True(t, ok)
	require.True(t, k1.Equal(k2))
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}

func TestPaths(t *testing.T) {
	e := Path("age").Gt(Lit(10)).And(Path("name").Eq(Lit("ada")))
	paths := Paths(e)
	require.ElementsMatch(t, []string{"age", "name"}, paths)
}
