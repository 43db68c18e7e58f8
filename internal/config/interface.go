package config

import (
	"context"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads the named configuration document and every document
	// reachable through its defaults lists, translates them into the
	// format-agnostic layer model, and returns the ordered stack ready
	// for resolution.
	Load(ctx context.Context, name string) (*Stack, error)
}
