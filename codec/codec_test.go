package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arbors/arbors"
	"github.com/arbors/arbors/parser"
	"github.com/arbors/arbors/schema"
)

func buildArbor(t *testing.T) *arbors.Arbor {
	t.Helper()
	reg, err := schema.Compile(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":   map[string]any{"type": "string"},
			"age":    map[string]any{"type": "integer"},
			"weight": map[string]any{"type": "number"},
			"active": map[string]any{"type": "boolean"},
			"tags":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{"name"},
	})
	require.NoError(t, err)
	a, err := parser.Parse([]byte(`{"name":"ada","age":36,"weight":61.5,"active":true,"tags":["x","y"]}`), reg)
	require.NoError(t, err)
	return a
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	a := buildArbor(t)
	frame, err := Encode(a)
	require.NoError(t, err)

	view, err := Decode(frame)
	require.NoError(t, err)
	require.Equal(t, len(a.Nodes), view.Count)

	for i, n := range a.Nodes {
		require.Equal(t, int32(n.Parent), view.ParentAt(i))
		require.Equal(t, uint32(n.KeyID), view.KeyAt(i))
		require.Equal(t, uint8(n.Type), view.TypeAt(i))
		require.Equal(t, n.ChildrenStart, view.ChildrenStartAt(i))
		require.Equal(t, n.ChildrenCount, view.ChildrenCountAt(i))
		require.Equal(t, n.PoolIndex, view.PoolIndexAt(i))
	}
	require.NotNil(t, view.BinariesHash)
}

func TestViewToArborPreservesQueries(t *testing.T) {
	a := buildArbor(t)
	frame, err := Encode(a)
	require.NoError(t, err)

	view, err := Decode(frame)
	require.NoError(t, err)

	out, err := view.ToArbor(a.Interner, a.Schema)
	require.NoError(t, err)
	require.NoError(t, out.CheckInvariants())

	root, err := out.Get(0)
	require.NoError(t, err)
	name, ok := out.GetField(root, "name")
	require.True(t, ok)
	require.Equal(t, "ada", out.GetString(name))

	tags, ok := out.GetField(root, "tags")
	require.True(t, ok)
	kids := out.Children(tags)
	require.Len(t, kids, 2)
	require.Equal(t, "x", out.GetString(kids[0]))
}

func TestDecodeWithPlanSkipsExcludedPools(t *testing.T) {
	a := buildArbor(t)
	frame, err := Encode(a)
	require.NoError(t, err)

	plan := arbors.DecodePlanNone.With(arbors.PoolString)
	view, err := DecodeWithPlan(frame, plan)
	require.NoError(t, err)
	require.Nil(t, view.Pools[arbors.PoolInt64].Values.Bytes(frame))
	require.NotNil(t, view.Pools[arbors.PoolString].Values.Bytes(frame))
	require.Nil(t, view.BinariesHash)

	out, err := view.ToArbor(a.Interner, a.Schema)
	require.NoError(t, err)
	require.NotNil(t, out.LoadedPools)

	root, _ := out.Get(0)
	name, _ := out.GetField(root, "name")
	require.Equal(t, "ada", out.GetString(name))

	age, _ := out.GetField(root, "age")
	require.Panics(t, func() { out.GetInt64(age) })
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	a := buildArbor(t)
	frame, err := Encode(a)
	require.NoError(t, err)
	frame[0] = 'X'
	_, err = Decode(frame)
	require.ErrorIs(t, err, arbors.ErrBatchCorruption)
}

func TestDecodeRejectsTruncatedFrame(t *testing.T) {
	a := buildArbor(t)
	frame, err := Encode(a)
	require.NoError(t, err)
	_, err = Decode(frame[:len(frame)-10])
	require.ErrorIs(t, err, arbors.ErrBatchCorruption)
}

func TestDecodeRejectsInvalidUTF8(t *testing.T) {
	a := buildArbor(t)
	frame, err := Encode(a)
	require.NoError(t, err)

	view, err := Decode(frame)
	require.NoError(t, err)
	strValues := view.Pools[arbors.PoolString].Values
	require.Greater(t, strValues.Len, 0)
	frame[strValues.Start] = 0xff

	_, err = Decode(frame)
	require.ErrorIs(t, err, arbors.ErrBatchCorruption)
}

func TestEncodeEmptyArbor(t *testing.T) {
	a := arbors.NewArbor()
	frame, err := Encode(a)
	require.NoError(t, err)
	view, err := Decode(frame)
	require.NoError(t, err)
	require.Equal(t, 0, view.Count)
}
