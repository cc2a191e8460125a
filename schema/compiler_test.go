package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileSimpleObject(t *testing.T) {
	doc := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
			"age":  map[string]any{"type": []any{"integer", "null"}},
		},
		"required": []any{"name"},
	}

	reg, err := Compile(doc)
	require.NoError(t, err)

	root := reg.Get(Root)
	require.Equal(t, KindObject, root.Type.Kind)
	require.Len(t, root.Type.Properties, 2)

	age, ok := root.LookupProperty("age")
	require.True(t, ok)
	require.False(t, age.Required)
	ageSchema := reg.Get(age.Schema)
	require.Equal(t, KindInt64, ageSchema.Type.Kind)
	require.True(t, ageSchema.Nullable)

	name, ok := root.LookupProperty("name")
	require.True(t, ok)
	require.True(t, name.Required)
}

func TestCompilePropertiesSortedByName(t *testing.T) {
	doc := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"zebra": map[string]any{"type": "string"},
			"alpha": map[string]any{"type": "string"},
			"mango": map[string]any{"type": "string"},
		},
	}
	reg, err := Compile(doc)
	require.NoError(t, err)
	props := reg.Get(Root).Type.Properties
	require.Len(t, props, 3)
	require.Equal(t, []string{"alpha", "mango", "zebra"}, []string{props[0].Name, props[1].Name, props[2].Name})
}

func TestCompileTuple(t *testing.T) {
	doc := map[string]any{
		"type":        "array",
		"prefixItems": []any{map[string]any{"type": "string"}, map[string]any{"type": "integer"}},
		"items":       false,
	}
	reg, err := Compile(doc)
	require.NoError(t, err)
	root := reg.Get(Root)
	require.Equal(t, KindTuple, root.Type.Kind)
	require.Len(t, root.Type.Prefix, 2)
	require.Nil(t, root.Type.Additional)
}

func TestCompileArrayDefaultsItemsToAny(t *testing.T) {
	doc := map[string]any{"type": "array"}
	reg, err := Compile(doc)
	require.NoError(t, err)
	root := reg.Get(Root)
	require.Equal(t, KindArray, root.Type.Kind)
	require.Equal(t, Any, root.Type.Items)
}

func TestCompileRejectsUnsupportedKeyword(t *testing.T) {
	doc := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"anyOf": []any{map[string]any{"type": "string"}}},
		},
	}
	_, err := Compile(doc)
	require.ErrorIs(t, err, ErrUnsupportedKeyword)
}

func TestCompileLocalRef(t *testing.T) {
	doc := map[string]any{
		"$ref": "#/$defs/Name",
		"$defs": map[string]any{
			"Name": map[string]any{"type": "string"},
		},
	}
	reg, err := Compile(doc)
	require.NoError(t, err)
	require.Equal(t, KindString, reg.Get(Root).Type.Kind)
}

func TestCompileRecursiveRefDoesNotInfiniteLoop(t *testing.T) {
	doc := map[string]any{
		"$ref": "#/$defs/Node",
		"$defs": map[string]any{
			"Node": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"value":    map[string]any{"type": "integer"},
					"children": map[string]any{"type": "array", "items": map[string]any{"$ref": "#/$defs/Node"}},
				},
			},
		},
	}

	reg, err := Compile(doc)
	require.NoError(t, err)
	root := reg.Get(Root)
	require.Equal(t, KindObject, root.Type.Kind)
	children, ok := root.LookupProperty("children")
	require.True(t, ok)
	childrenSchema := reg.Get(children.Schema)
	require.Equal(t, KindArray, childrenSchema.Type.Kind)
	itemsSchema := reg.Get(childrenSchema.Type.Items)
	require.Equal(t, KindObject, itemsSchema.Type.Kind)
}

func TestCompileBooleanSchemas(t *testing.T) {
	regTrue, err := Compile(true)
	require.NoError(t, err)
	require.Equal(t, KindAny, regTrue.Get(Root).Type.Kind)

	regFalse, err := Compile(false)
	require.NoError(t, err)
	require.Equal(t, KindReject, regFalse.Get(Root).Type.Kind)
}

func TestCompileClosedObjectRejectsAdditional(t *testing.T) {
	doc := map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"a": map[string]any{"type": "string"}},
		"additionalProperties": false,
	}
	reg, err := Compile(doc)
	require.NoError(t, err)
	require.Nil(t, reg.Get(Root).Type.AdditionalProperties)
}

func TestCompileOpenObjectAllowsAdditional(t *testing.T) {
	doc := map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"a": map[string]any{"type": "string"}},
		"additionalProperties": true,
	}
	reg, err := Compile(doc)
	require.NoError(t, err)
	additional := reg.Get(Root).Type.AdditionalProperties
	require.NotNil(t, additional)
	require.Equal(t, Any, *additional)
}

func TestCompileInvalidTypeUnion(t *testing.T) {
	doc := map[string]any{"type": []any{"string", "integer"}}
	_, err := Compile(doc)
	require.ErrorIs(t, err, ErrInvalidSchema)
}

func TestCompileRefNotFound(t *testing.T) {
	doc := map[string]any{"$ref": "#/$defs/Missing"}
	_, err := Compile(doc)
	require.ErrorIs(t, err, ErrRefNotFound)
}
