package launcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/lenslesscam/lenslessgo/internal/ctxlog"
	"github.com/lenslesscam/lenslessgo/internal/imageio"
	"github.com/lenslesscam/lenslessgo/internal/metrics"
	"github.com/lenslesscam/lenslessgo/internal/recon"
)

// runSingle reconstructs the one measurement named by input.data and writes
// reconstruction.png (plus metrics.json when a ground truth is given) into
// the run directory.
func (l *Launcher) runSingle(ctx context.Context, runID, outDir string) error {
	logger := ctxlog.FromContext(ctx)
	in := l.desc.Input

	if in.PSF == "" {
		return fmt.Errorf("input.psf is not set")
	}

	psfRaw, err := imageio.LoadImage(in.PSF)
	if err != nil {
		return fmt.Errorf("loading psf '%s': %w", in.PSF, err)
	}
	psf, err := conditionPSF(psfRaw, l.desc.Preprocess)
	if err != nil {
		return err
	}

	measRaw, err := imageio.LoadImage(in.Data)
	if err != nil {
		return fmt.Errorf("loading measurement '%s': %w", in.Data, err)
	}
	meas, err := conditionPlane(measRaw, l.desc.Preprocess)
	if err != nil {
		return fmt.Errorf("conditioning measurement '%s': %w", in.Data, err)
	}

	l.progress.start(runID, "single", l.desc.Reconstruction.Method, 1)

	start := time.Now()
	rec, iterations, err := l.reconstructPlane(ctx, psf, meas, recon.RunOptions{
		DispIter: l.desc.Display.Disp,
	})
	if err != nil {
		return fmt.Errorf("reconstructing '%s': %w", in.Data, err)
	}
	elapsed := time.Since(start)
	recNorm := imageio.Normalize(rec)

	pngPath := filepath.Join(outDir, "reconstruction.png")
	if err := imageio.SavePNG(pngPath, l.displayImage(recNorm)); err != nil {
		return err
	}
	l.progress.increment()
	logger.Info("Reconstruction saved.",
		"path", pngPath,
		"iterations", iterations,
		"seconds", elapsed.Seconds(),
	)

	if in.Original == "" {
		return nil
	}

	scores, err := l.scoreAgainst(in.Original, recNorm)
	if err != nil {
		return err
	}
	report := &metrics.Report{
		RunID:  runID,
		Method: l.desc.Reconstruction.Method,
		Files: []metrics.FileResult{{
			File:       filepath.Base(in.Data),
			Iterations: iterations,
			Seconds:    elapsed.Seconds(),
			Metrics:    scores,
		}},
	}
	report.Summarize()
	return report.WriteFile(filepath.Join(outDir, "metrics.json"))
}

// scoreAgainst loads a ground-truth image and evaluates the reconstruction
// against it, after alignment cropping.
func (l *Launcher) scoreAgainst(originalPath string, recNorm *imageio.Plane) (map[string]float64, error) {
	truthRaw, err := imageio.LoadImage(originalPath)
	if err != nil {
		return nil, fmt.Errorf("loading ground truth '%s': %w", originalPath, err)
	}
	truth := imageio.Normalize(truthRaw)

	aligned, err := l.alignForMetrics(recNorm)
	if err != nil {
		return nil, err
	}
	scores, err := metrics.Evaluate(aligned, truth)
	if err != nil {
		return nil, fmt.Errorf("scoring against '%s': %w", originalPath, err)
	}
	return scores, nil
}
