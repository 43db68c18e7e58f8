package config

import (
	"fmt"
)

// NormalizeTree rewrites a freshly unmarshalled document so that every
// mapping is a map[string]any all the way down. Mappings with non-string
// keys are rejected with the offending path.
func NormalizeTree(m map[string]any) (map[string]any, error) {
	out, err := normalizeValue(m, "")
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func normalizeValue(v any, path string) (any, error) {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, child := range tv {
			norm, err := normalizeValue(child, joinPath(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = norm
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(tv))
		for k, child := range tv {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%w: non-string mapping key %v at %q", ErrConfiguration, k, path)
			}
			norm, err := normalizeValue(child, joinPath(path, ks))
			if err != nil {
				return nil, err
			}
			out[ks] = norm
		}
		return out, nil
	case []any:
		out := make([]any, len(tv))
		for i, child := range tv {
			norm, err := normalizeValue(child, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = norm
		}
		return out, nil
	default:
		return v, nil
	}
}
