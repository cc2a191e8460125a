package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arbors/arbors"
	"github.com/arbors/arbors/schema"
)

func compileT(t *testing.T, doc map[string]any) *schema.Registry {
	t.Helper()
	reg, err := schema.Compile(doc)
	require.NoError(t, err)
	return reg
}

func TestParseSchemaGuidedObject(t *testing.T) {
	reg := compileT(t, map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
			"age":  map[string]any{"type": []any{"integer", "null"}},
		},
		"required": []any{"name"},
	})

	a, err := Parse([]byte(`{"name":"ada","age":36}`), reg)
	require.NoError(t, err)
	require.Equal(t, 1, a.Len())

	root, err := a.Get(0)
	require.NoError(t, err)
	require.NoError(t, a.CheckInvariants())

	name, ok := a.GetField(root, "name")
	require.True(t, ok)
	require.Equal(t, "ada", a.GetString(name))

	age, ok := a.GetField(root, "age")
	require.True(t, ok)
	require.Equal(t, int64(36), a.GetInt64(age))
}

func TestParseMissingRequiredField(t *testing.T) {
	reg := compileT(t, map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
		"required":   []any{"name"},
	})
	_, err := Parse([]byte(`{}`), reg)
	require.ErrorIs(t, err, arbors.ErrMissingRequiredField)
}

func TestParseUnexpectedNull(t *testing.T) {
	reg := compileT(t, map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
	})
	_, err := Parse([]byte(`{"name":null}`), reg)
	require.ErrorIs(t, err, arbors.ErrUnexpectedNull)
}

func TestParseNullableAcceptsNull(t *testing.T) {
	reg := compileT(t, map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": []any{"string", "null"}}},
	})
	a, err := Parse([]byte(`{"name":null}`), reg)
	require.NoError(t, err)
	root, _ := a.Get(0)
	name, ok := a.GetField(root, "name")
	require.True(t, ok)
	require.True(t, a.IsNull(name))
}

func TestParseUnknownPropertyClosedObject(t *testing.T) {
	reg := compileT(t, map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"name": map[string]any{"type": "string"}},
		"additionalProperties": false,
	})
	_, err := Parse([]byte(`{"name":"a","extra":1}`), reg)
	require.ErrorIs(t, err, arbors.ErrUnknownProperty)
}

func TestParseTypeMismatch(t *testing.T) {
	reg := compileT(t, map[string]any{
		"type":       "object",
		"properties": map[string]any{"age": map[string]any{"type": "integer"}},
	})
	_, err := Parse([]byte(`{"age":"not a number"}`), reg)
	require.ErrorIs(t, err, arbors.ErrTypeMismatch)
}

func TestParseTupleOverflow(t *testing.T) {
	reg := compileT(t, map[string]any{
		"type":        "array",
		"prefixItems": []any{map[string]any{"type": "string"}},
		"items":       false,
	})
	_, err := Parse([]byte(`["a","b"]`), reg)
	require.ErrorIs(t, err, arbors.ErrTupleOverflow)
}

func TestParseTupleShortIsAccepted(t *testing.T) {
	reg := compileT(t, map[string]any{
		"type":        "array",
		"prefixItems": []any{map[string]any{"type": "string"}, map[string]any{"type": "integer"}},
	})
	a, err := Parse([]byte(`["only"]`), reg)
	require.NoError(t, err)
	root, _ := a.Get(0)
	require.Equal(t, 1, len(a.Children(root)))
}

func TestParseSchemaRejectFails(t *testing.T) {
	reg, err := schema.Compile(false)
	require.NoError(t, err)
	_, err = Parse([]byte(`{"anything":1}`), reg)
	require.ErrorIs(t, err, arbors.ErrSchemaReject)
}

func TestParseSchemalessInfersShapeAndSortsKeys(t *testing.T) {
	a, err := Parse([]byte(`{"zebra":1,"alpha":2,"mango":3}`), nil)
	require.NoError(t, err)
	require.NoError(t, a.CheckInvariants())

	root, _ := a.Get(0)
	for _, name := range []string{"alpha", "mango", "zebra"} {
		_, ok := a.GetField(root, name)
		require.True(t, ok)
	}
}

func TestParseSchemalessArrayAndNested(t *testing.T) {
	a, err := Parse([]byte(`{"items":[1,2,3],"nested":{"b":2,"a":1}}`), nil)
	require.NoError(t, err)
	require.NoError(t, a.CheckInvariants())

	root, _ := a.Get(0)
	items, ok := a.GetField(root, "items")
	require.True(t, ok)
	children := a.Children(items)
	require.Len(t, children, 3)
	require.Equal(t, int64(1), a.GetInt64(children[0]))
}

func TestParseDeterministicAcrossRuns(t *testing.T) {
	doc := []byte(`{"z":1,"a":{"y":1,"x":2},"m":[1,2,{"q":1,"p":2}]}`)
	a1, err := Parse(doc, nil)
	require.NoError(t, err)
	a2, err := Parse(doc, nil)
	require.NoError(t, err)

	require.Equal(t, len(a1.Nodes), len(a2.Nodes))
	for i := range a1.Nodes {
		n1, n2 := a1.Nodes[i], a2.Nodes[i]
		require.Equal(t, n1.Type, n2.Type)
		require.Equal(t, n1.ChildrenStart, n2.ChildrenStart)
		require.Equal(t, n1.ChildrenCount, n2.ChildrenCount)
		require.Equal(t, n1.Parent, n2.Parent)
	}
}

func TestParseDocumentsMultipleRoots(t *testing.T) {
	a, err := ParseDocuments([][]byte{[]byte(`1`), []byte(`2`), []byte(`3`)}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, a.Len())
	for i := 0; i < 3; i++ {
		root, err := a.Get(i)
		require.NoError(t, err)
		require.Equal(t, int64(i+1), a.GetInt64(root))
	}
}

func TestParseRefCycleObject(t *testing.T) {
	reg := compileT(t, map[string]any{
		"$ref": "#/$defs/Node",
		"$defs": map[string]any{
			"Node": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"value":    map[string]any{"type": "integer"},
					"children": map[string]any{"type": "array", "items": map[string]any{"$ref": "#/$defs/Node"}},
				},
				"required": []any{"value"},
			},
		},
	})
	a, err := Parse([]byte(`{"value":1,"children":[{"value":2,"children":[]},{"value":3,"children":[]}]}`), reg)
	require.NoError(t, err)
	require.NoError(t, a.CheckInvariants())

	root, _ := a.Get(0)
	children, ok := a.GetField(root, "children")
	require.True(t, ok)
	kids := a.Children(children)
	require.Len(t, kids, 2)
	v, ok := a.GetField(kids[0], "value")
	require.True(t, ok)
	require.Equal(t, int64(2), a.GetInt64(v))
}
