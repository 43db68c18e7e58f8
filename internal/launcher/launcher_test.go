package launcher

import (
	"context"
	"math/rand"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenslesscam/lenslessgo/internal/experiment"
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

func TestNewRunID_Format(t *testing.T) {
	t.Parallel()

	id := newRunID()

	require.Regexp(t, regexp.MustCompile(`^\d{8}T\d{6}_[0-9a-f]{8}$`), id)
	stamp := id[:15]
	_, err := time.Parse("20060102T150405", stamp)
	assert.NoError(t, err)
	assert.NotEqual(t, id, newRunID())
}

func TestLauncher_RunRejectsAmbiguousMode(t *testing.T) {
	t.Parallel()

	desc := &experiment.Descriptor{}
	l := New(desc, 1, NewProgress())

	err := l.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to reconstruct")
}

func TestNew_ClampsWorkerCount(t *testing.T) {
	t.Parallel()

	l := New(&experiment.Descriptor{}, 0, nil)

	assert.Equal(t, 1, l.workers)
	assert.NotNil(t, l.progress)
}

func TestOutputRoot_Default(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "outputs", New(&experiment.Descriptor{}, 1, nil).outputRoot())

	desc := &experiment.Descriptor{}
	desc.Files.OutputDir = filepath.Join("runs", "lensless")
	assert.Equal(t, filepath.Join("runs", "lensless"), New(desc, 1, nil).outputRoot())
}
