package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileJSON(t *testing.T) {
	reg, err := CompileJSON([]byte(`{"type":"object","properties":{"id":{"type":"integer"}},"required":["id"]}`))
	require.NoError(t, err)
	root := reg.Get(Root)
	require.Equal(t, KindObject, root.Type.Kind)
	id, ok := root.LookupProperty("id")
	require.True(t, ok)
	require.True(t, id.Required)
}

func TestCompileYAML(t *testing.T) {
	src := []byte("type: object\nproperties:\n  name:\n    type: string\nrequired:\n  - name\n")
	reg, err := CompileYAML(src)
	require.NoError(t, err)
	root := reg.Get(Root)
	require.Equal(t, KindObject, root.Type.Kind)
	name, ok := root.LookupProperty("name")
	require.True(t, ok)
	require.True(t, name.Required)
}
