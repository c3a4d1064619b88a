package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// The manager funnels both YAML and JSON configs through a single strict
// JSON decoder. YAML input is unmarshaled loosely, its map keys forced to
// strings, and re-marshaled as JSON before decoding.

// toJSON returns the config bytes as JSON plus the detected source format.
// Files without a .yaml/.yml extension pass through untouched.
func toJSON(path string, data []byte) ([]byte, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return data, "json", nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "yaml", fmt.Errorf("yaml unmarshal: %w", err)
	}
	j, err := json.Marshal(stringifyKeys(doc))
	if err != nil {
		return nil, "yaml", fmt.Errorf("yaml to json: %w", err)
	}
	return j, "yaml", nil
}

// stringifyKeys rewrites every map key to a string. yaml/v3 can produce
// map[any]any nodes, which encoding/json refuses to marshal.
func stringifyKeys(v any) any {
	switch node := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(node))
		for k, elem := range node {
			out[fmt.Sprint(k)] = stringifyKeys(elem)
		}
		return out
	case map[string]any:
		for k, elem := range node {
			node[k] = stringifyKeys(elem)
		}
		return node
	case []any:
		for i, elem := range node {
			node[i] = stringifyKeys(elem)
		}
		return node
	default:
		return v
	}
}
