package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryGetAnySentinel(t *testing.T) {
	reg, err := Compile(map[string]any{"type": "string"})
	require.NoError(t, err)
	require.Equal(t, KindAny, reg.Get(Any).Type.Kind)
}

func TestLookupPropertyBinarySearch(t *testing.T) {
	s := StorageSchema{Type: StorageType{Properties: []ObjectProperty{
		{Name: "alpha"}, {Name: "beta"}, {Name: "gamma"}, {Name: "zeta"},
	}}}
	for _, name := range []string{"alpha", "beta", "gamma", "zeta"} {
		p, ok := s.LookupProperty(name)
		require.True(t, ok)
		require.Equal(t, name, p.Name)
	}
	_, ok := s.LookupProperty("missing")
	require.False(t, ok)
}
