package data

import (
	"encoding/json"
	"fmt"

	yaml "gopkg.in/yaml.v3"
)

// ParseJSONOrYAML decodes a JSON or YAML document into target using target's json tags. YAML is
// converted to JSON first, so anchors and merge keys work in profiles.
func ParseJSONOrYAML(data []byte, target any) error {
	jsonErr := json.Unmarshal(data, target)
	if jsonErr == nil {
		return nil
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("data is neither JSON (%s) nor YAML: %w", jsonErr, err)
	}
	normalized, err := jsonCompatible(raw, "")
	if err != nil {
		return err
	}
	jsonData, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, target)
}

// jsonCompatible rewrites YAML maps so that encoding/json accepts them. path is the dotted key
// path used in error messages.
func jsonCompatible(value any, path string) (any, error) {
	switch value := value.(type) {
	case []any:
		out := make([]any, 0, len(value))
		for i, v := range value {
			v1, err := jsonCompatible(v, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, v1)
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, v := range value {
			v1, err := jsonCompatible(v, joinKeyPath(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = v1
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(value))
		for k, v := range value {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("YAML key %v under %q is a %T; only string keys are allowed",
					k, displayPath(path), k)
			}
			v1, err := jsonCompatible(v, joinKeyPath(path, key))
			if err != nil {
				return nil, err
			}
			out[key] = v1
		}
		return out, nil
	default:
		return value, nil
	}
}

func joinKeyPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func displayPath(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}
