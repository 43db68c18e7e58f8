package assets

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lenslesscam/lenslessgo/internal/ctxlog"
	"github.com/lenslesscam/lenslessgo/internal/experiment"
)

// Manifest names the remote files one benchmark dataset is made of.
type Manifest struct {
	Dataset string
	BaseURL string
	Names   []string
}

// NewManifest builds the expected file list from a files group: numbered
// measurements 0..n-1 plus the shared PSF, all with the dataset's extension.
func NewManifest(files experiment.Files) (*Manifest, error) {
	if files.Dataset == "" {
		return nil, fmt.Errorf("files.dataset is not set")
	}
	if files.DownloadURL == "" {
		return nil, fmt.Errorf("files.download_url is not set for dataset '%s'", files.Dataset)
	}
	if files.NFiles <= 0 {
		return nil, fmt.Errorf("files.n_files must be positive to size the '%s' download, got %d",
			files.Dataset, files.NFiles)
	}

	ext := strings.TrimPrefix(files.Extension, ".")
	if ext == "" {
		ext = "npy"
	}

	names := make([]string, 0, files.NFiles+1)
	for i := 0; i < files.NFiles; i++ {
		names = append(names, fmt.Sprintf("%d.%s", i, ext))
	}
	names = append(names, "psf."+ext)

	return &Manifest{
		Dataset: files.Dataset,
		BaseURL: strings.TrimSuffix(files.DownloadURL, "/"),
		Names:   names,
	}, nil
}

// EnsureDataset fetches every manifest file that is not already cached and
// returns the dataset directory under the cache root.
func EnsureDataset(ctx context.Context, m *Manifest, cacheRoot string) (string, error) {
	logger := ctxlog.FromContext(ctx)
	dir := filepath.Join(cacheRoot, m.Dataset)

	logger.Info("📥 Ensuring dataset cache", "dataset", m.Dataset, "files", len(m.Names), "dir", dir)
	for _, name := range m.Names {
		url := m.BaseURL + "/" + name
		if err := EnsureFile(ctx, url, filepath.Join(dir, name)); err != nil {
			return "", err
		}
	}
	return dir, nil
}
