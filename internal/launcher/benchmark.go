package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lenslesscam/lenslessgo/internal/assets"
	"github.com/lenslesscam/lenslessgo/internal/ctxlog"
	"github.com/lenslesscam/lenslessgo/internal/fsutil"
	"github.com/lenslesscam/lenslessgo/internal/imageio"
	"github.com/lenslesscam/lenslessgo/internal/metrics"
	"github.com/lenslesscam/lenslessgo/internal/recon"
)

// benchJob is one measurement file queued for a worker.
type benchJob struct {
	idx  int
	path string
}

// benchState is shared by the workers of one benchmark run. results and errs
// are indexed by job, so workers never write the same slot.
type benchState struct {
	datasetDir string
	outDir     string
	psf        *imageio.Plane

	results []metrics.FileResult
	errs    []error
}

// runBenchmark reconstructs every measurement of files.dataset with a worker
// pool and writes per-file reconstructions plus metrics.json.
func (l *Launcher) runBenchmark(ctx context.Context, runID, outDir string) error {
	logger := ctxlog.FromContext(ctx)

	datasetDir, err := l.ensureDataset(ctx)
	if err != nil {
		return err
	}

	psf, err := l.loadDatasetPSF(datasetDir)
	if err != nil {
		return err
	}

	files, err := l.listMeasurements(datasetDir)
	if err != nil {
		return err
	}

	l.progress.start(runID, "benchmark", l.desc.Reconstruction.Method, len(files))
	logger.Info("Benchmarking dataset.",
		"dataset", l.desc.Files.Dataset,
		"files", len(files),
		"workers", l.workers,
	)

	state := &benchState{
		datasetDir: datasetDir,
		outDir:     outDir,
		psf:        psf,
		results:    make([]metrics.FileResult, len(files)),
		errs:       make([]error, len(files)),
	}

	jobs := make(chan benchJob, len(files))
	for i, path := range files {
		jobs <- benchJob{idx: i, path: path}
	}
	close(jobs)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	logger.Debug("Starting worker pool.", "workers", l.workers)
	for i := 0; i < l.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			l.benchWorker(runCtx, state, jobs, cancel, workerID)
		}(i)
	}
	wg.Wait()

	// The first real failure is the root cause; cancellations downstream of
	// it are symptoms.
	for i, jobErr := range state.errs {
		if jobErr != nil && !errors.Is(jobErr, context.Canceled) {
			return fmt.Errorf("benchmark failed on '%s': %w", files[i], jobErr)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	report := &metrics.Report{
		RunID:  runID,
		Method: l.desc.Reconstruction.Method,
		Files:  state.results,
	}
	report.Summarize()
	if err := report.WriteFile(filepath.Join(outDir, "metrics.json")); err != nil {
		return err
	}

	if report.Summary != nil {
		logger.Info("Benchmark summary.",
			"files", len(files),
			"mean", report.Summary.Mean,
			"std", report.Summary.Std,
		)
	} else {
		logger.Info("Benchmark summary.", "files", len(files), "scored", 0)
	}
	return nil
}

// benchWorker drains the job queue. The first failure cancels the shared
// context so the remaining jobs are skipped rather than started.
func (l *Launcher) benchWorker(ctx context.Context, state *benchState, jobs <-chan benchJob, cancel context.CancelFunc, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Benchmark worker started.", "workerID", workerID)

	for job := range jobs {
		if err := ctx.Err(); err != nil {
			state.errs[job.idx] = err
			continue
		}

		row, err := l.reconstructFile(ctx, state, job.path)
		if err != nil {
			logger.Error("Reconstruction failed.", "workerID", workerID, "file", job.path, "error", err)
			state.errs[job.idx] = err
			cancel()
			continue
		}

		state.results[job.idx] = row
		l.progress.increment()
		logger.Debug("Reconstructed measurement.",
			"workerID", workerID,
			"file", row.File,
			"seconds", row.Seconds,
		)
	}

	logger.Debug("Benchmark worker finished.", "workerID", workerID)
}

// reconstructFile runs the full per-file pipeline: load, condition, solve,
// save, and score when a ground-truth pair exists.
func (l *Launcher) reconstructFile(ctx context.Context, state *benchState, path string) (metrics.FileResult, error) {
	base := filepath.Base(path)

	raw, err := imageio.LoadImage(path)
	if err != nil {
		return metrics.FileResult{}, fmt.Errorf("loading '%s': %w", path, err)
	}
	meas, err := conditionPlane(raw, l.desc.Preprocess)
	if err != nil {
		return metrics.FileResult{}, fmt.Errorf("conditioning '%s': %w", path, err)
	}

	start := time.Now()
	rec, iterations, err := l.reconstructPlane(ctx, state.psf, meas, recon.RunOptions{
		DispIter: l.desc.Display.Disp,
	})
	if err != nil {
		return metrics.FileResult{}, err
	}
	elapsed := time.Since(start)
	recNorm := imageio.Normalize(rec)

	stem := strings.TrimSuffix(base, filepath.Ext(base))
	pngPath := filepath.Join(state.outDir, "reconstructions", stem+".png")
	if err := imageio.SavePNG(pngPath, l.displayImage(recNorm)); err != nil {
		return metrics.FileResult{}, err
	}

	row := metrics.FileResult{
		File:       base,
		Iterations: iterations,
		Seconds:    elapsed.Seconds(),
	}
	if l.desc.Metrics.Compute {
		if original := l.findOriginal(state.datasetDir, base); original != "" {
			scores, err := l.scoreAgainst(original, recNorm)
			if err != nil {
				return metrics.FileResult{}, err
			}
			row.Metrics = scores
		}
	}
	return row, nil
}

// ensureDataset resolves the dataset directory in the cache, downloading the
// manifest files first when a download URL is configured.
func (l *Launcher) ensureDataset(ctx context.Context) (string, error) {
	cacheRoot, err := assets.CacheDir(l.desc.Files.CacheDir)
	if err != nil {
		return "", err
	}

	if l.desc.Files.DownloadURL != "" {
		m, err := assets.NewManifest(l.desc.Files)
		if err != nil {
			return "", err
		}
		return assets.EnsureDataset(ctx, m, cacheRoot)
	}

	dir := filepath.Join(cacheRoot, l.desc.Files.Dataset)
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("dataset '%s' is not cached at '%s' and files.download_url is not set",
			l.desc.Files.Dataset, dir)
	}
	return dir, nil
}

func (l *Launcher) extension() string {
	ext := strings.TrimPrefix(l.desc.Files.Extension, ".")
	if ext == "" {
		return "npy"
	}
	return ext
}

// loadDatasetPSF loads and conditions the dataset's point spread function.
func (l *Launcher) loadDatasetPSF(datasetDir string) (*imageio.Plane, error) {
	name := l.desc.Files.PSF
	if name == "" {
		name = "psf." + l.extension()
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(datasetDir, name)
	}

	raw, err := imageio.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("loading psf '%s': %w", path, err)
	}
	return conditionPSF(raw, l.desc.Preprocess)
}

// listMeasurements returns the dataset's measurement files in numeric order:
// direct children with the dataset extension, minus the PSF, capped at
// files.n_files when set.
func (l *Launcher) listMeasurements(datasetDir string) ([]string, error) {
	all, err := fsutil.FindFilesByExtension(datasetDir, l.extension())
	if err != nil {
		return nil, err
	}

	psfName := l.desc.Files.PSF
	if psfName == "" {
		psfName = "psf." + l.extension()
	}

	var files []string
	for _, path := range all {
		if filepath.Dir(path) != datasetDir {
			continue // ground-truth pairs live in subdirectories
		}
		if filepath.Base(path) == psfName {
			continue
		}
		files = append(files, path)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .%s measurements found in '%s'", l.extension(), datasetDir)
	}

	if n := l.desc.Files.NFiles; n > 0 && len(files) > n {
		files = files[:n]
	}
	return files, nil
}

// findOriginal locates the ground-truth pair of a measurement, trying the
// measurement's own name first and then common image extensions.
func (l *Launcher) findOriginal(datasetDir, measName string) string {
	dir := l.desc.Metrics.Against
	if dir == "" {
		dir = filepath.Join(datasetDir, "originals")
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(datasetDir, dir)
	}

	stem := strings.TrimSuffix(measName, filepath.Ext(measName))
	candidates := []string{
		measName,
		stem + ".png",
		stem + ".jpg",
		stem + ".npy",
	}
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return path
		}
	}
	return ""
}
