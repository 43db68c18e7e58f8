// Package assets maintains the local cache of benchmark datasets. Files are
// fetched once over HTTP and reused across runs; downloads go through a
// temp-and-rename so a crashed run never leaves a torn file in the cache.
package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/lenslesscam/lenslessgo/internal/ctxlog"
)

// httpClient is shared across all downloads to reuse TCP connections.
var httpClient = &http.Client{}

// CacheDir resolves the cache root. An explicitly configured directory wins,
// then the LENSLESS_CACHE_DIR environment variable, then ~/.cache/lensless.
func CacheDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if env := os.Getenv("LENSLESS_CACHE_DIR"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve the default cache directory: %w", err)
	}
	return filepath.Join(home, ".cache", "lensless"), nil
}

// EnsureFile downloads url into dest unless a non-empty file already sits
// there. The body streams into dest.partial first and is renamed into place
// once complete.
func EnsureFile(ctx context.Context, url, dest string) error {
	if st, err := os.Stat(dest); err == nil && st.Size() > 0 {
		return nil
	}

	logger := ctxlog.FromContext(ctx)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory for '%s': %w", dest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request for '%s': %w", url, err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download '%s': %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("download of '%s' failed with status: %s", url, resp.Status)
	}

	partial := dest + ".partial"
	out, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("failed to create '%s': %w", partial, err)
	}

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		out.Close()
		os.Remove(partial)
		return fmt.Errorf("failed to write '%s': %w", partial, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(partial)
		return fmt.Errorf("failed to close '%s': %w", partial, err)
	}
	if err := os.Rename(partial, dest); err != nil {
		os.Remove(partial)
		return fmt.Errorf("failed to move '%s' into place: %w", partial, err)
	}

	logger.Info("📥 Downloaded asset", "url", url, "dest", dest, "bytes", n)
	return nil
}
