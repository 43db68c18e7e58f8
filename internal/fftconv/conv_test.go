package fftconv

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenslesscam/lenslessgo/internal/imageio"
)

func deltaPSF(h, w, dy, dx int) *imageio.Plane {
	psf := imageio.NewPlane(h, w, 1)
	psf.Set(h/2+dy, w/2+dx, 0, 1.0)
	return psf
}

func randomPlane(rng *rand.Rand, h, w int) *imageio.Plane {
	p := imageio.NewPlane(h, w, 1)
	for i := range p.Data {
		p.Data[i] = rng.Float64()
	}
	return p
}

func TestConvolver_DeltaIsIdentity(t *testing.T) {
	t.Parallel()

	// --- Arrange --- a centered unit impulse leaves the image untouched.
	rng := rand.New(rand.NewSource(1))
	x := randomPlane(rng, 8, 10)
	conv, err := NewConvolver(deltaPSF(8, 10, 0, 0))
	require.NoError(t, err)

	// --- Act ---
	forward, err := conv.Apply(x)
	require.NoError(t, err)
	adjoint, err := conv.Adjoint(x)
	require.NoError(t, err)

	// --- Assert ---
	for i := range x.Data {
		assert.InDelta(t, x.Data[i], forward.Data[i], 1e-9)
		assert.InDelta(t, x.Data[i], adjoint.Data[i], 1e-9)
	}
}

func TestConvolver_ShiftedDeltaTranslates(t *testing.T) {
	t.Parallel()

	x := imageio.NewPlane(8, 8, 1)
	x.Set(2, 3, 0, 1.0)
	conv, err := NewConvolver(deltaPSF(8, 8, 1, 2))
	require.NoError(t, err)

	out, err := conv.Apply(x)

	require.NoError(t, err)
	assert.InDelta(t, 1.0, out.At(3, 5, 0), 1e-9, "impulse should move by the psf offset")
	assert.InDelta(t, 0.0, out.At(2, 3, 0), 1e-9)
}

func TestConvolver_AdjointDotProduct(t *testing.T) {
	t.Parallel()

	// --- Arrange --- <A·x, y> must equal <x, Aᵀ·y> for a true adjoint pair.
	rng := rand.New(rand.NewSource(7))
	psf := randomPlane(rng, 6, 9)
	x := randomPlane(rng, 6, 9)
	y := randomPlane(rng, 6, 9)
	conv, err := NewConvolver(psf)
	require.NoError(t, err)

	// --- Act ---
	ax, err := conv.Apply(x)
	require.NoError(t, err)
	aty, err := conv.Adjoint(y)
	require.NoError(t, err)

	// --- Assert ---
	var lhs, rhs float64
	for i := range ax.Data {
		lhs += ax.Data[i] * y.Data[i]
		rhs += x.Data[i] * aty.Data[i]
	}
	assert.InEpsilon(t, lhs, rhs, 1e-9)
}

func TestConvolver_GridRoundTrip(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))
	x := randomPlane(rng, 5, 7)
	conv, err := NewConvolver(deltaPSF(5, 7, 0, 0))
	require.NoError(t, err)

	grid := conv.PadGrid(x)
	back := conv.CropGrid(conv.IFFTReal(conv.FFT(grid)))

	for i := range x.Data {
		assert.InDelta(t, x.Data[i], back.Data[i], 1e-9)
	}
}

func TestConvolver_GridIsPadded(t *testing.T) {
	t.Parallel()

	conv, err := NewConvolver(deltaPSF(8, 10, 0, 0))
	require.NoError(t, err)

	fh, fw := conv.GridShape()
	h, w := conv.Shape()

	assert.GreaterOrEqual(t, fh, 2*h-1, "grid must fit a full linear convolution")
	assert.GreaterOrEqual(t, fw, 2*w-1)
	assert.Len(t, conv.TransferFn(), fh*fw)
	assert.Len(t, conv.MagSq(), fh*fw)
}

func TestConvolver_MaxMagSq(t *testing.T) {
	t.Parallel()

	// A unit impulse has a flat spectrum of magnitude 1.
	conv, err := NewConvolver(deltaPSF(4, 4, 0, 0))
	require.NoError(t, err)

	assert.InDelta(t, 1.0, conv.MaxMagSq(), 1e-9)
}

func TestConvolver_ShapeMismatch(t *testing.T) {
	t.Parallel()

	conv, err := NewConvolver(deltaPSF(4, 4, 0, 0))
	require.NoError(t, err)

	_, err = conv.Apply(imageio.NewPlane(4, 5, 1))
	assert.Error(t, err)
	_, err = conv.Adjoint(imageio.NewPlane(4, 4, 3))
	assert.Error(t, err)
}

func TestNewConvolver_RejectsMultiChannelPSF(t *testing.T) {
	t.Parallel()

	_, err := NewConvolver(imageio.NewPlane(4, 4, 3))
	assert.Error(t, err)
}
