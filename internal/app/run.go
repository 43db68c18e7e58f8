package app

import (
	"context"
	"fmt"

	"github.com/lenslesscam/lenslessgo/internal/config"
	"github.com/lenslesscam/lenslessgo/internal/ctxlog"
	"github.com/lenslesscam/lenslessgo/internal/launcher"
)

// Run executes the main application logic for the decoded experiment.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.cfg.PrintConfig {
		a.logger.Debug("Print-config requested, skipping launch.")
		return a.PrintConfig(a.outW)
	}

	if err := a.descriptor.Runnable(); err != nil {
		return fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}
	mode, err := a.descriptor.Mode()
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}

	if a.cfg.ProgressPort > 0 {
		a.startProgressServer(ctx)
		defer a.closeProgressServer(ctx)
	}

	launch := launcher.New(a.descriptor, a.cfg.WorkerCount, a.progress)
	a.logger.Info("🚀 Starting reconstruction run...",
		"config", a.descriptor.Name,
		"mode", mode.String(),
		"method", a.descriptor.Reconstruction.Method,
	)
	if err := launch.Run(ctx); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	a.logger.Info("🏁 Run finished.")

	a.logger.Debug("App.Run method finished.")
	return nil
}
