package config

import (
	"sort"
	"strings"
)

// SelfName is the reserved defaults-list entry marking where a document's
// own keys are merged relative to its defaults groups.
const SelfName = "_self_"

// OverrideName is the provenance tag for values supplied by command-line
// overrides.
const OverrideName = "override"

// Layer is one configuration document in merge order: a defaults group, or
// the experiment document's own keys under the name SelfName.
type Layer struct {
	Name   string
	Values map[string]any
}

// Stack is the unified, format-agnostic representation of a composed
// configuration: the ordered layers of one named experiment, lowest
// priority first, with exactly one SelfName entry.
type Stack struct {
	Name   string
	Layers []Layer
}

// Tree is a resolved configuration: nested mappings with string keys whose
// leaves are scalars, lists, or nil (the disable sentinel).
type Tree map[string]any

// Clone returns a deep copy of the tree.
func (t Tree) Clone() Tree {
	out, _ := cloneValue(map[string]any(t)).(map[string]any)
	return Tree(out)
}

// Get returns the value at a dotted key path, reporting whether the full
// path exists. List elements are addressed as name[index].
func (t Tree) Get(path string) (any, bool) {
	p, err := parsePath(path)
	if err != nil {
		return nil, false
	}
	return getPath(map[string]any(t), p)
}

// Exists reports whether the dotted key path is present in the tree. A key
// holding an explicit null exists.
func (t Tree) Exists(path string) bool {
	_, ok := t.Get(path)
	return ok
}

// Provenance maps each resolved leaf path to the name of the layer that
// supplied its final value.
type Provenance map[string]string

// SourcesUnder returns the sorted, de-duplicated layer names contributing
// leaves at or below the given path.
func (p Provenance) SourcesUnder(path string) []string {
	seen := map[string]bool{}
	for k, layer := range p {
		if k == path || strings.HasPrefix(k, path+".") || strings.HasPrefix(k, path+"[") {
			seen[layer] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Resolved is the immutable product of Resolve: the effective configuration
// tree plus the provenance of every leaf.
type Resolved struct {
	Name       string
	Provenance Provenance

	tree Tree
}

// Tree returns a deep copy of the resolved configuration tree, so callers
// can never alias the resolver's interior state.
func (r *Resolved) Tree() Tree {
	return r.tree.Clone()
}

// Get returns the value at a dotted key path of the resolved tree.
func (r *Resolved) Get(path string) (any, bool) {
	return r.tree.Get(path)
}
