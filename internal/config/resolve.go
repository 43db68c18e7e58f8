package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lenslesscam/lenslessgo/internal/keypath"
)

// Resolve deep-merges the stack's layers lowest-to-highest priority and
// applies the override arguments on top, producing the effective
// configuration tree and its provenance.
//
// Merge rule: mappings merge key-by-key; for a key present in multiple
// layers the highest-priority layer's value wins in full. Lists and scalars
// (including null) replace wholly, never concatenate.
//
// Two defaults groups supplying conflicting values for the same leaf is
// ambiguous: unless a higher layer (the document's own keys or an override)
// settles every conflicting leaf, Resolve fails with DuplicateDefaultsError
// naming both groups.
//
// Resolve is pure: it performs no I/O, and identical inputs produce
// identical outputs.
func Resolve(stack *Stack, overrides []string, strict bool) (*Resolved, error) {
	if stack == nil || len(stack.Layers) == 0 {
		return nil, fmt.Errorf("%w: empty configuration stack", ErrConfiguration)
	}

	ovs := make([]*Override, 0, len(overrides))
	for _, arg := range overrides {
		ov, err := ParseOverride(arg)
		if err != nil {
			return nil, err
		}
		ovs = append(ovs, ov)
	}

	normLayers := make([]Layer, len(stack.Layers))
	for i, layer := range stack.Layers {
		vals, err := NormalizeTree(layer.Values)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", layer.Name, err)
		}
		normLayers[i] = Layer{Name: layer.Name, Values: vals}
	}

	contested := findContested(normLayers)

	r := &resolver{tree: map[string]any{}, prov: Provenance{}}
	for _, layer := range normLayers {
		r.mergeMap(r.tree, layer.Values, "", layer.Name)
	}

	for _, ov := range ovs {
		if _, ok := getPath(r.tree, ov.Key); !ok && !existsInLayers(normLayers, ov.Key) {
			if strict {
				return nil, &UnknownKeyError{Path: ov.Key.String()}
			}
		}
		if err := setPath(r.tree, ov.Key, cloneValue(ov.Value), true); err != nil {
			return nil, fmt.Errorf("%w: cannot apply override %q: %v", ErrConfiguration, ov.Key.String(), err)
		}
		r.replaceOverride(ov.Key, ov.Value)
	}

	if err := r.checkContested(contested); err != nil {
		return nil, err
	}

	return &Resolved{Name: stack.Name, Provenance: r.prov, tree: Tree(r.tree)}, nil
}

type conflictPair struct {
	groups [2]string
}

// findContested compares every pair of defaults layers (the document's own
// keys never contest) and records leaf paths both define with non-equal
// values. A leaf in one layer shadowed by a deeper or shallower structure in
// another is a shape conflict at the shorter path, except that an empty
// mapping merges cleanly into anything deeper.
func findContested(layers []Layer) map[string]conflictPair {
	contested := map[string]conflictPair{}

	record := func(path, a, b string) {
		if _, ok := contested[path]; !ok {
			contested[path] = conflictPair{groups: [2]string{a, b}}
		}
	}

	type leafSet struct {
		name  string
		paths []string
		vals  map[string]any
	}
	var sets []leafSet
	for _, layer := range layers {
		if layer.Name == SelfName {
			continue
		}
		vals := map[string]any{}
		leaves("", layer.Values, vals)
		paths := make([]string, 0, len(vals))
		for p := range vals {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		sets = append(sets, leafSet{name: layer.Name, paths: paths, vals: vals})
	}

	isEmptyMap := func(v any) bool {
		m, ok := v.(map[string]any)
		return ok && len(m) == 0
	}

	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			a, b := sets[i], sets[j]
			for _, p := range a.paths {
				if bv, ok := b.vals[p]; ok {
					if !deepEqual(a.vals[p], bv) {
						record(p, a.name, b.name)
					}
					continue
				}
				for _, q := range b.paths {
					if strings.HasPrefix(q, p+".") && !isEmptyMap(a.vals[p]) {
						record(p, a.name, b.name)
						break
					}
					if strings.HasPrefix(p, q+".") && !isEmptyMap(b.vals[q]) {
						record(q, a.name, b.name)
						break
					}
				}
			}
		}
	}

	return contested
}

func existsInLayers(layers []Layer, p *keypath.Path) bool {
	for _, layer := range layers {
		if _, ok := getPath(layer.Values, p); ok {
			return true
		}
	}
	return false
}

type resolver struct {
	tree map[string]any
	prov Provenance
}

func (r *resolver) mergeMap(dst, src map[string]any, prefix, layer string) {
	for k, v := range src {
		path := joinPath(prefix, k)
		if dv, ok := dst[k]; ok {
			dm, dok := dv.(map[string]any)
			sm, sok := v.(map[string]any)
			if dok && sok {
				r.mergeMap(dm, sm, path, layer)
				continue
			}
		}
		dst[k] = cloneValue(v)
		r.replace(path, v, layer)
	}
}

// replace re-points provenance after a value lands at path: stale ancestor
// leaf entries and the old subtree are dropped, then the new leaves are
// recorded for the winning layer.
func (r *resolver) replace(path string, v any, layer string) {
	parts := strings.Split(path, ".")
	acc := ""
	for _, part := range parts[:len(parts)-1] {
		acc = joinPath(acc, part)
		delete(r.prov, acc)
	}
	r.clearUnder(path)
	r.recordLeaves(path, v, layer)
}

// replaceOverride is replace for an override target, which may address a
// list element. Element writes keep the list's own provenance entry: the
// list still substantially comes from its source layer.
func (r *resolver) replaceOverride(p *keypath.Path, v any) {
	path := p.String()
	for i := 1; i < len(p.Segments); i++ {
		anc := &keypath.Path{Segments: p.Segments[:i]}
		delete(r.prov, anc.String())
	}
	r.clearUnder(path)
	r.recordLeaves(path, v, OverrideName)
}

func (r *resolver) clearUnder(path string) {
	delete(r.prov, path)
	dotPfx, brPfx := path+".", path+"["
	for k := range r.prov {
		if strings.HasPrefix(k, dotPfx) || strings.HasPrefix(k, brPfx) {
			delete(r.prov, k)
		}
	}
}

func (r *resolver) recordLeaves(path string, v any, layer string) {
	if m, ok := v.(map[string]any); ok && len(m) > 0 {
		for k, child := range m {
			r.recordLeaves(path+"."+k, child, layer)
		}
		return
	}
	r.prov[path] = layer
}

// checkContested fails when a contested leaf's final value still comes from
// the defaults stack. Higher layers cure a conflict by rewriting every leaf
// under the contested path.
func (r *resolver) checkContested(contested map[string]conflictPair) error {
	paths := make([]string, 0, len(contested))
	for p := range contested {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		unresolved := false
		for _, winner := range r.winners(p) {
			if winner != SelfName && winner != OverrideName {
				unresolved = true
				break
			}
		}
		if unresolved {
			pair := contested[p]
			return &DuplicateDefaultsError{Key: topOf(p), Path: p, Groups: pair.groups}
		}
	}
	return nil
}

func (r *resolver) winners(path string) []string {
	var out []string
	if w, ok := r.prov[path]; ok {
		out = append(out, w)
	}
	dotPfx, brPfx := path+".", path+"["
	for k, w := range r.prov {
		if strings.HasPrefix(k, dotPfx) || strings.HasPrefix(k, brPfx) {
			out = append(out, w)
		}
	}
	return out
}

func topOf(path string) string {
	if i := strings.IndexAny(path, ".["); i >= 0 {
		return path[:i]
	}
	return path
}
