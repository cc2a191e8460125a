package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInferMergesObjectShapes(t *testing.T) {
	samples := []any{
		map[string]any{"id": float64(1), "name": "a", "extra": true},
		map[string]any{"id": float64(2), "name": "b"},
	}
	reg := Infer(samples)
	root := reg.Get(Root)
	require.Equal(t, KindObject, root.Type.Kind)

	id, ok := root.LookupProperty("id")
	require.True(t, ok)
	require.True(t, id.Required)
	require.Equal(t, KindInt64, reg.Get(id.Schema).Type.Kind)

	extra, ok := root.LookupProperty("extra")
	require.True(t, ok)
	require.False(t, extra.Required)
}

func TestInferPromotesIntToFloat(t *testing.T) {
	samples := []any{
		map[string]any{"v": float64(1)},
		map[string]any{"v": float64(1.5)},
	}
	reg := Infer(samples)
	v, ok := reg.Get(Root).LookupProperty("v")
	require.True(t, ok)
	require.Equal(t, KindFloat64, reg.Get(v.Schema).Type.Kind)
}

func TestInferFallsBackToAnyOnConflict(t *testing.T) {
	samples := []any{
		map[string]any{"v": "hello"},
		map[string]any{"v": map[string]any{"nested": true}},
	}
	reg := Infer(samples)
	v, ok := reg.Get(Root).LookupProperty("v")
	require.True(t, ok)
	require.Equal(t, KindAny, reg.Get(v.Schema).Type.Kind)
}

func TestInferNullableFromNullSample(t *testing.T) {
	samples := []any{
		map[string]any{"v": "hello"},
		map[string]any{"v": nil},
	}
	reg := Infer(samples)
	v, ok := reg.Get(Root).LookupProperty("v")
	require.True(t, ok)
	schema := reg.Get(v.Schema)
	require.Equal(t, KindString, schema.Type.Kind)
	require.True(t, schema.Nullable)
}

func TestInferArrayItemShape(t *testing.T) {
	samples := []any{
		map[string]any{"tags": []any{"a", "b", "c"}},
	}
	reg := Infer(samples)
	tags, ok := reg.Get(Root).LookupProperty("tags")
	require.True(t, ok)
	tagsSchema := reg.Get(tags.Schema)
	require.Equal(t, KindArray, tagsSchema.Type.Kind)
	require.Equal(t, KindString, reg.Get(tagsSchema.Type.Items).Type.Kind)
}

func TestInferEmptySamplesYieldsAny(t *testing.T) {
	reg := Infer(nil)
	require.Equal(t, KindAny, reg.Get(Root).Type.Kind)
}
