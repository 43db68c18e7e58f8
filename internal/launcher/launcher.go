// Package launcher executes a decoded experiment descriptor: it stages
// dataset files, conditions raw captures, drives the reconstruction solvers
// and writes images and metrics into a per-run output directory.
package launcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/lenslesscam/lenslessgo/internal/ctxlog"
	"github.com/lenslesscam/lenslessgo/internal/experiment"
)

// Launcher runs one experiment. Create it with New and call Run once.
type Launcher struct {
	desc     *experiment.Descriptor
	workers  int
	progress *Progress
}

// New prepares a launcher for the given descriptor. workers bounds the
// benchmark pool; single-shot runs ignore it.
func New(desc *experiment.Descriptor, workers int, progress *Progress) *Launcher {
	if workers < 1 {
		workers = 1
	}
	if progress == nil {
		progress = NewProgress()
	}
	return &Launcher{desc: desc, workers: workers, progress: progress}
}

// Run executes the experiment in the mode the descriptor selects and blocks
// until it completes or the context is cancelled.
func (l *Launcher) Run(ctx context.Context) error {
	mode, err := l.desc.Mode()
	if err != nil {
		return err
	}

	runID := newRunID()
	outDir := filepath.Join(l.outputRoot(), runID)

	logger := ctxlog.FromContext(ctx).With("runID", runID)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Launcher starting.", "mode", mode.String(), "outDir", outDir)

	switch mode {
	case experiment.ModeSingle:
		return l.runSingle(ctx, runID, outDir)
	default:
		return l.runBenchmark(ctx, runID, outDir)
	}
}

func (l *Launcher) outputRoot() string {
	if l.desc.Files.OutputDir != "" {
		return l.desc.Files.OutputDir
	}
	return "outputs"
}

// newRunID builds a sortable, collision-free directory name: a UTC timestamp
// plus the first 8 hex characters of a random UUID.
func newRunID() string {
	stamp := time.Now().UTC().Format("20060102T150405")
	return fmt.Sprintf("%s_%.8s", stamp, uuid.New().String())
}
