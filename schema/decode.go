package schema

import (
	"github.com/go-json-experiment/json"
	"github.com/goccy/go-yaml"
)

// CompileJSON decodes a JSON Schema document and compiles it into a
// Registry. It is the normal entry point for schemas supplied as raw
// bytes (a file, a request body, an embedded resource).
func CompileJSON(data []byte) (*Registry, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return Compile(doc)
}

// CompileYAML decodes a YAML-formatted JSON Schema document (the same
// schema language, written in YAML for human-edited schema files) and
// compiles it into a Registry.
func CompileYAML(data []byte) (*Registry, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return Compile(normalizeYAML(doc))
}

// normalizeYAML recursively converts the map[string]any/map[any]any mix
// goccy/go-yaml can produce into the map[string]any/[]any/string/float64/
// bool/nil shape Compile expects, matching encoding/json's decode shapes.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeYAML(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			if ks, ok := k.(string); ok {
				out[ks] = normalizeYAML(e)
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeYAML(e)
		}
		return out
	case int:
		return float64(t)
	default:
		return v
	}
}
