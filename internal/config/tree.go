package config

import (
	"fmt"
	"reflect"

	"github.com/lenslesscam/lenslessgo/internal/keypath"
)

func parsePath(path string) (*keypath.Path, error) {
	return keypath.Parse(path)
}

// getPath walks a nested tree along the parsed path. It reports false when
// any segment is missing, a non-mapping is traversed, or a list index is
// out of range.
func getPath(m map[string]any, p *keypath.Path) (any, bool) {
	var cur any = m
	for _, seg := range p.Segments {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		child, ok := node[seg.Name]
		if !ok {
			return nil, false
		}
		if seg.HasIndex() {
			list, ok := child.([]any)
			if !ok || seg.Index >= len(list) {
				return nil, false
			}
			child = list[seg.Index]
		}
		cur = child
	}
	return cur, true
}

// setPath writes a value at the parsed path. With create set, missing
// intermediate mappings are created and non-mapping intermediates are
// replaced by fresh mappings (the written value wins in full). List
// elements can be replaced but never grown: an index at or past the list
// length is an error.
func setPath(m map[string]any, p *keypath.Path, value any, create bool) error {
	cur := m
	last := len(p.Segments) - 1
	for i, seg := range p.Segments {
		if i == last && !seg.HasIndex() {
			cur[seg.Name] = value
			return nil
		}

		child, ok := cur[seg.Name]
		if !ok {
			if !create || seg.HasIndex() {
				return fmt.Errorf("key %q not found at %q", seg.Name, partial(p, i))
			}
			next := map[string]any{}
			cur[seg.Name] = next
			cur = next
			continue
		}

		if seg.HasIndex() {
			list, ok := child.([]any)
			if !ok {
				return fmt.Errorf("%q is not a list", partial(p, i))
			}
			if seg.Index >= len(list) {
				return fmt.Errorf("index %d out of range for %q (length %d)", seg.Index, partial(p, i), len(list))
			}
			if i == last {
				list[seg.Index] = value
				return nil
			}
			elem, ok := list[seg.Index].(map[string]any)
			if !ok {
				if !create {
					return fmt.Errorf("%q is not a mapping", partial(p, i))
				}
				elem = map[string]any{}
				list[seg.Index] = elem
			}
			cur = elem
			continue
		}

		next, ok := child.(map[string]any)
		if !ok {
			if !create {
				return fmt.Errorf("%q is not a mapping", partial(p, i))
			}
			next = map[string]any{}
			cur[seg.Name] = next
		}
		cur = next
	}
	return nil
}

// partial renders the path up to and including segment i, for error text.
func partial(p *keypath.Path, i int) string {
	sub := &keypath.Path{Segments: p.Segments[:i+1]}
	return sub.String()
}

// cloneValue deep-copies mappings and lists; scalars are returned as-is.
func cloneValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, child := range tv {
			out[k] = cloneValue(child)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, child := range tv {
			out[i] = cloneValue(child)
		}
		return out
	default:
		return v
	}
}

func deepEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// leaves flattens a tree into dotted leaf paths. A leaf is any value that is
// not a non-empty mapping: scalars, lists, nils, and empty mappings.
func leaves(prefix string, v any, out map[string]any) {
	if m, ok := v.(map[string]any); ok && len(m) > 0 {
		for k, child := range m {
			leaves(joinPath(prefix, k), child, out)
		}
		return
	}
	if prefix != "" {
		out[prefix] = v
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
