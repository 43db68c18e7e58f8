package config

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// WriteYAML renders the resolved configuration as YAML, annotating each
// top-level key with the layers that supplied values beneath it.
func (r *Resolved) WriteYAML(w io.Writer) error {
	var root yaml.Node
	if err := root.Encode(map[string]any(r.tree)); err != nil {
		return fmt.Errorf("encode resolved configuration: %w", err)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		if sources := r.Provenance.SourcesUnder(key.Value); len(sources) > 0 {
			key.LineComment = "from " + strings.Join(sources, ", ")
		}
	}

	out, err := yaml.Marshal(&root)
	if err != nil {
		return fmt.Errorf("marshal resolved configuration: %w", err)
	}
	_, err = w.Write(out)
	return err
}
