// Package yamlcfg implements the config.Loader interface over a directory of
// YAML documents with Hydra-style defaults lists.
package yamlcfg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/lenslesscam/lenslessgo/internal/config"
	"github.com/lenslesscam/lenslessgo/internal/ctxlog"
)

// Loader reads YAML configuration documents from a single directory,
// expanding each document's defaults list depth-first into an ordered
// layer stack.
type Loader struct {
	dir string
}

// NewLoader returns a Loader rooted at the given config directory.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Load implements config.Loader.
func (l *Loader) Load(ctx context.Context, name string) (*config.Stack, error) {
	e := &expansion{dir: l.dir, loaded: map[string]bool{}}

	layers, err := e.expand(ctx, name, true)
	if err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Debug("Configuration stack loaded.",
		"name", name, "layers", len(layers))
	return &config.Stack{Name: name, Layers: layers}, nil
}

type expansion struct {
	dir    string
	chain  []string // documents currently being expanded, for cycle reporting
	loaded map[string]bool
}

// expand loads one document and returns its layer sequence: the layers of
// each defaults entry (depth-first, list order), with the document's own
// keys inserted at the _self_ position. Only the top document's own keys
// are named config.SelfName; a group's own keys carry the group's name so
// they participate in duplicate-defaults detection.
func (e *expansion) expand(ctx context.Context, name string, top bool) ([]config.Layer, error) {
	if slices.Contains(e.chain, name) {
		return nil, &config.DefaultsCycleError{Chain: append(append([]string{}, e.chain...), name)}
	}
	if e.loaded[name] {
		ctxlog.FromContext(ctx).Debug("Defaults group already composed, skipping.", "group", name)
		return nil, nil
	}

	doc, file, err := e.read(name)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Configuration document parsed.", "file", file)

	defaults, err := popDefaults(doc, file)
	if err != nil {
		return nil, err
	}

	ownName := name
	if top {
		ownName = config.SelfName
	}

	e.chain = append(e.chain, name)
	defer func() {
		e.chain = e.chain[:len(e.chain)-1]
		e.loaded[name] = true
	}()

	var layers []config.Layer
	for _, entry := range defaults {
		if entry == config.SelfName {
			layers = append(layers, config.Layer{Name: ownName, Values: doc})
			continue
		}
		sub, err := e.expand(ctx, entry, false)
		if err != nil {
			return nil, err
		}
		layers = append(layers, sub...)
	}

	return layers, nil
}

// read loads and normalizes one YAML document. Documents may use the .yaml
// or .yml extension; a missing document is an UnknownGroupError.
func (e *expansion) read(name string) (map[string]any, string, error) {
	file, err := firstExisting(
		filepath.Join(e.dir, filepath.FromSlash(name)+".yaml"),
		filepath.Join(e.dir, filepath.FromSlash(name)+".yml"),
	)
	if err != nil {
		return nil, "", &config.UnknownGroupError{Group: name, Dir: e.dir}
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, "", &config.ParseError{File: file, Err: err}
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, "", &config.ParseError{File: file, Err: err}
	}
	if doc == nil {
		doc = map[string]any{}
	}

	norm, err := config.NormalizeTree(doc)
	if err != nil {
		return nil, "", &config.ParseError{File: file, Err: err}
	}
	return norm, file, nil
}

// popDefaults removes and validates the document's defaults list. A missing
// list means the document stands alone; an absent _self_ entry is implied
// last, so a document's own keys win over its defaults groups.
func popDefaults(doc map[string]any, file string) ([]string, error) {
	raw, ok := doc["defaults"]
	if !ok {
		return []string{config.SelfName}, nil
	}
	delete(doc, "defaults")

	list, ok := raw.([]any)
	if !ok {
		return nil, &config.ParseError{File: file, Err: errors.New("defaults must be a list of group names")}
	}

	entries := make([]string, 0, len(list)+1)
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, &config.ParseError{File: file, Err: fmt.Errorf("defaults entry %d is not a group name", i)}
		}
		if slices.Contains(entries, s) {
			return nil, &config.DuplicateDefaultsError{Key: s, Groups: [2]string{s, s}}
		}
		entries = append(entries, s)
	}

	if !slices.Contains(entries, config.SelfName) {
		entries = append(entries, config.SelfName)
	}
	return entries, nil
}

func firstExisting(paths ...string) (string, error) {
	for _, p := range paths {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", os.ErrNotExist
}
