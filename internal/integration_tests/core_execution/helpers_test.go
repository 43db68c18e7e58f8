package integration_tests

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lenslesscam/lenslessgo/internal/imageio"
)

// writeGrayPNG writes a random 8-bit grayscale image and returns the plane
// it encodes, with every sample on the exact k/255 grid so a reload is
// bit-faithful.
func writeGrayPNG(t *testing.T, path string, h, w int, seed int64) *imageio.Plane {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	p := imageio.NewPlane(h, w, 1)
	for i := range p.Data {
		p.Data[i] = float64(rng.Intn(256)) / 255.0
	}
	require.NoError(t, imageio.SavePNG(path, p))
	return p
}

// writeDeltaPSF writes the PSF of an ideal pinhole: a single centered white
// pixel, under which the forward model is the identity.
func writeDeltaPSF(t *testing.T, path string, h, w int) {
	t.Helper()
	p := imageio.NewPlane(h, w, 1)
	p.Set(h/2, w/2, 0, 1)
	require.NoError(t, imageio.SavePNG(path, p))
}

// findRunDir returns the single run directory created under outputRoot.
func findRunDir(t *testing.T, outputRoot string) string {
	t.Helper()
	entries, err := os.ReadDir(outputRoot)
	require.NoError(t, err)
	require.Len(t, entries, 1, "expected exactly one run directory")
	return filepath.Join(outputRoot, entries[0].Name())
}
