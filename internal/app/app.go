package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/lenslesscam/lenslessgo/internal/config"
	"github.com/lenslesscam/lenslessgo/internal/ctxlog"
	"github.com/lenslesscam/lenslessgo/internal/experiment"
	"github.com/lenslesscam/lenslessgo/internal/launcher"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	cfg        *Config
	resolved   *config.Resolved
	descriptor *experiment.Descriptor
	progress   *launcher.Progress

	httpServer *http.Server // progress server, nil unless started
}

// New is the constructor for the main application. It composes the named
// configuration through the loader, applies the overrides, and decodes the
// result into an experiment descriptor. A configuration failure at this stage
// is a fatal startup error, so New panics with the wrapped error and leaves
// the exit handling to the entrypoint.
func New(outW io.Writer, cfg *Config, loader config.Loader) *App {
	logger := newLogger(cfg, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	stack, err := loader.Load(ctx, cfg.ConfigName)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Configuration layers loaded.", "name", stack.Name, "layers", len(stack.Layers))

	resolved, err := config.Resolve(stack, cfg.Overrides, cfg.Strict)
	if err != nil {
		panic(fmt.Errorf("failed to resolve configuration: %w", err))
	}
	logger.Debug("Configuration resolved.", "overrides", len(cfg.Overrides))

	descriptor, err := experiment.Decode(resolved)
	if err != nil {
		panic(fmt.Errorf("failed to decode experiment descriptor: %w", err))
	}
	logger.Debug("Experiment descriptor decoded.", "config", descriptor.Name)

	return &App{
		outW:       outW,
		logger:     logger,
		cfg:        cfg,
		resolved:   resolved,
		descriptor: descriptor,
		progress:   launcher.NewProgress(),
	}
}

// Descriptor returns the decoded experiment descriptor. This is primarily for testing.
func (a *App) Descriptor() *experiment.Descriptor {
	return a.descriptor
}

// Resolved returns the resolved configuration. This is primarily for testing.
func (a *App) Resolved() *config.Resolved {
	return a.resolved
}

// PrintConfig writes the resolved configuration as YAML, annotated with the
// source layer of every top-level key.
func (a *App) PrintConfig(w io.Writer) error {
	return a.resolved.WriteYAML(w)
}
