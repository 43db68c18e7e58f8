package metrics

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenslesscam/lenslessgo/internal/imageio"
)

func gradientPlane(h, w, c int) *imageio.Plane {
	p := imageio.NewPlane(h, w, c)
	for i := range p.Data {
		p.Data[i] = float64(i) / float64(len(p.Data))
	}
	return p
}

func noisyCopy(p *imageio.Plane, rng *rand.Rand, amp float64) *imageio.Plane {
	out := p.Clone()
	for i := range out.Data {
		out.Data[i] += amp * (2*rng.Float64() - 1)
	}
	return out
}

func TestMSE_KnownValueAndSymmetry(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	a := imageio.NewPlane(1, 2, 1)
	b := imageio.NewPlane(1, 2, 1)
	b.Data[0] = 1.0
	b.Data[1] = 0.5

	// --- Act ---
	ab, err := MSE(a, b)
	require.NoError(t, err)
	ba, err := MSE(b, a)
	require.NoError(t, err)

	// --- Assert ---
	assert.InDelta(t, 0.625, ab, 1e-12)
	assert.InDelta(t, ab, ba, 0)
}

func TestMAE_KnownValue(t *testing.T) {
	t.Parallel()

	a := imageio.NewPlane(1, 2, 1)
	b := imageio.NewPlane(1, 2, 1)
	b.Data[0] = 1.0
	b.Data[1] = 0.5

	mae, err := MAE(a, b)

	require.NoError(t, err)
	assert.InDelta(t, 0.75, mae, 1e-12)
}

func TestPSNR_UniformError(t *testing.T) {
	t.Parallel()

	// A constant 0.1 offset gives MSE 0.01, hence exactly 20 dB at peak 1.
	a := gradientPlane(8, 8, 1)
	b := a.Clone()
	for i := range b.Data {
		b.Data[i] += 0.1
	}

	psnr, err := PSNR(a, b)

	require.NoError(t, err)
	assert.InDelta(t, 20.0, psnr, 1e-9)
}

func TestPSNR_IdenticalPlanesIsInfinite(t *testing.T) {
	t.Parallel()

	a := gradientPlane(8, 8, 1)

	psnr, err := PSNR(a, a.Clone())

	require.NoError(t, err)
	assert.True(t, math.IsInf(psnr, 1))
}

func TestSSIM_IdenticalPlanesIsOne(t *testing.T) {
	t.Parallel()

	a := gradientPlane(16, 16, 1)

	ssim, err := SSIM(a, a.Clone())

	require.NoError(t, err)
	assert.InDelta(t, 1.0, ssim, 1e-12)
}

func TestSSIM_DropsWithNoise(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(23))
	a := gradientPlane(16, 16, 1)
	b := noisyCopy(a, rng, 0.4)

	ssim, err := SSIM(a, b)

	require.NoError(t, err)
	assert.Less(t, ssim, 0.95)
	assert.Greater(t, ssim, -1.0)
}

func TestSSIM_ChannelAveraged(t *testing.T) {
	t.Parallel()

	a := gradientPlane(16, 16, 3)

	ssim, err := SSIM(a, a.Clone())

	require.NoError(t, err)
	assert.InDelta(t, 1.0, ssim, 1e-12)
}

func TestSSIM_WindowShrinksForSmallPlanes(t *testing.T) {
	t.Parallel()

	a := gradientPlane(8, 8, 1)

	ssim, err := SSIM(a, a.Clone())

	require.NoError(t, err)
	assert.InDelta(t, 1.0, ssim, 1e-12)
}

func TestSSIM_RejectsTinyPlanes(t *testing.T) {
	t.Parallel()

	a := gradientPlane(2, 2, 1)

	_, err := SSIM(a, a.Clone())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
}

func TestMetrics_ShapeMismatch(t *testing.T) {
	t.Parallel()

	a := gradientPlane(8, 8, 1)
	b := gradientPlane(8, 4, 1)

	_, err := MSE(a, b)
	assert.ErrorContains(t, err, "shapes differ")
	_, err = MAE(a, b)
	assert.ErrorContains(t, err, "shapes differ")
	_, err = PSNR(a, b)
	assert.ErrorContains(t, err, "shapes differ")
	_, err = SSIM(a, b)
	assert.ErrorContains(t, err, "shapes differ")
}

func TestEvaluate_CapsPSNR(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	a := gradientPlane(16, 16, 1)

	// --- Act ---
	m, err := Evaluate(a, a.Clone())

	// --- Assert ---
	require.NoError(t, err)
	assert.InDelta(t, PSNRCap, m["psnr"], 0)
	assert.InDelta(t, 0.0, m["mse"], 0)
	assert.InDelta(t, 0.0, m["mae"], 0)
	assert.InDelta(t, 1.0, m["ssim"], 1e-12)
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		samples  []map[string]float64
		wantMean map[string]float64
		wantStd  map[string]float64
	}{
		{
			name: "two samples",
			samples: []map[string]float64{
				{"mse": 1, "psnr": 10},
				{"mse": 3, "psnr": 30},
			},
			wantMean: map[string]float64{"mse": 2, "psnr": 20},
			wantStd:  map[string]float64{"mse": math.Sqrt2, "psnr": 10 * math.Sqrt2},
		},
		{
			name:     "single sample has zero deviation",
			samples:  []map[string]float64{{"ssim": 0.8}},
			wantMean: map[string]float64{"ssim": 0.8},
			wantStd:  map[string]float64{"ssim": 0},
		},
		{
			name: "metric missing from one sample",
			samples: []map[string]float64{
				{"mse": 2, "ssim": 1},
				{"mse": 4},
			},
			wantMean: map[string]float64{"mse": 3, "ssim": 1},
			wantStd:  map[string]float64{"mse": math.Sqrt2, "ssim": 0},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mean, std := Aggregate(tc.samples)

			require.Len(t, mean, len(tc.wantMean))
			for k, want := range tc.wantMean {
				assert.InDelta(t, want, mean[k], 1e-12, "mean[%s]", k)
			}
			for k, want := range tc.wantStd {
				assert.InDelta(t, want, std[k], 1e-12, "std[%s]", k)
			}
		})
	}
}
