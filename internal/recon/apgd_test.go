package recon

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenslesscam/lenslessgo/internal/experiment"
	"github.com/lenslesscam/lenslessgo/internal/imageio"
)

func apgdRecon(p experiment.APGDParams) experiment.Reconstruction {
	return experiment.Reconstruction{Method: "apgd", APGD: p}
}

func TestAPGD_FillsDefaults(t *testing.T) {
	t.Parallel()

	// --- Act ---
	solver, err := newAPGD(centeredDelta(8, 8), testRecon())

	// --- Assert ---
	require.NoError(t, err)
	s, ok := solver.(*apgdSolver)
	require.True(t, ok)
	assert.Equal(t, 500, s.maxIter)
	assert.Equal(t, "bt", s.accel)
	assert.Equal(t, "nonneg", s.proxPenalty)
	assert.Empty(t, s.diffPenalty)
	// A centered delta has a flat unit spectrum, so the step is exactly 1/L = 1.
	assert.InDelta(t, 1.0, s.step, 1e-12)
}

func TestAPGD_LambdaDefaultsWhenPenaltyActive(t *testing.T) {
	t.Parallel()

	solver, err := newAPGD(centeredDelta(8, 8), apgdRecon(experiment.APGDParams{
		ProxPenalty: "l1",
		DiffPenalty: "l2",
	}))

	require.NoError(t, err)
	s := solver.(*apgdSolver)
	assert.InDelta(t, 1e-3, s.proxLambda, 0)
	assert.InDelta(t, 1e-3, s.diffLambda, 0)
	// The smooth ℓ2 penalty raises the Lipschitz bound.
	assert.InDelta(t, 1.0/(1.0+1e-3), s.step, 1e-12)
}

func TestAPGD_RejectsInvalidParams(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		params  experiment.APGDParams
		wantMsg string
	}{
		{
			name:    "unknown acceleration",
			params:  experiment.APGDParams{Acceleration: "warp"},
			wantMsg: "unknown acceleration",
		},
		{
			name:    "unknown prox penalty",
			params:  experiment.APGDParams{ProxPenalty: "linf"},
			wantMsg: "unknown prox_penalty",
		},
		{
			name:    "unknown diff penalty",
			params:  experiment.APGDParams{DiffPenalty: "tv"},
			wantMsg: "unknown diff_penalty",
		},
		{
			name:    "negative max_iter",
			params:  experiment.APGDParams{MaxIter: -3},
			wantMsg: "max_iter",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := newAPGD(centeredDelta(8, 8), apgdRecon(tc.params))

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestAPGD_IdentityRecovery(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// With a delta PSF and unit step the very first proximal step lands on
	// the measurement, and the iteration stays there.
	rng := rand.New(rand.NewSource(21))
	meas := positivePlane(rng, 8, 8, 0.1, 1.0)
	solver, err := New("apgd", centeredDelta(8, 8), apgdRecon(experiment.APGDParams{MaxIter: 5}))
	require.NoError(t, err)

	// --- Act ---
	res, err := solver.Run(context.Background(), meas, RunOptions{})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 5, res.Iterations)
	assert.Less(t, maxAbsDiff(res.Image, meas), 1e-9)
	assert.InDelta(t, 0, res.Objective[len(res.Objective)-1], 1e-12)
}

func TestAPGD_DeconvolvesSeparableBlur(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Blur a smooth scene and ask the solver to undo it. The scene is itself
	// low-pass so all of its content is recoverable.
	const h, w = 16, 16
	rng := rand.New(rand.NewSource(42))
	psf := separableGaussianPSF(h, w, 1.5)

	scene, err := mustConvolve(psf, positivePlane(rng, h, w, 0.0, 1.0))
	require.NoError(t, err)
	meas, err := mustConvolve(psf, scene)
	require.NoError(t, err)

	solver, err := New("apgd", psf, apgdRecon(experiment.APGDParams{MaxIter: 300}))
	require.NoError(t, err)

	// --- Act ---
	res, err := solver.Run(context.Background(), meas, RunOptions{})

	// --- Assert ---
	require.NoError(t, err)
	relResidual := math.Sqrt(2*res.Objective[len(res.Objective)-1]) / l2norm(meas)
	assert.Less(t, relResidual, 0.05)
	assert.Less(t, mse(res.Image, scene), 0.7*mse(meas, scene),
		"deconvolution should land closer to the scene than the raw measurement")
}

func TestAPGD_L1ProxSparsifies(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	meas := imageio.NewPlane(8, 8, 1)
	for i := range meas.Data {
		meas.Data[i] = 0.05
	}
	spikes := [][2]int{{1, 2}, {4, 4}, {6, 1}}
	for _, s := range spikes {
		meas.Set(s[0], s[1], 0, 0.9)
	}

	solver, err := New("apgd", centeredDelta(8, 8), apgdRecon(experiment.APGDParams{
		MaxIter:     10,
		ProxPenalty: "l1",
		ProxLambda:  0.3,
	}))
	require.NoError(t, err)

	// --- Act ---
	res, err := solver.Run(context.Background(), meas, RunOptions{})

	// --- Assert ---
	require.NoError(t, err)
	var nonzero int
	for _, v := range res.Image.Data {
		if v != 0 {
			nonzero++
		}
	}
	assert.Equal(t, len(spikes), nonzero)
	for _, s := range spikes {
		assert.InDelta(t, 0.6, res.Image.At(s[0], s[1], 0), 1e-9)
	}
}

func TestAPGD_CDAcceleration(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(5))
	meas := positivePlane(rng, 8, 8, 0.1, 1.0)
	solver, err := New("apgd", centeredDelta(8, 8), apgdRecon(experiment.APGDParams{
		MaxIter:      20,
		Acceleration: "CD",
	}))
	require.NoError(t, err)

	res, err := solver.Run(context.Background(), meas, RunOptions{})

	require.NoError(t, err)
	assert.Less(t, maxAbsDiff(res.Image, meas), 1e-9)
}

func TestAPGD_CancelFromCallback(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	rng := rand.New(rand.NewSource(9))
	meas := positivePlane(rng, 8, 8, 0.1, 1.0)
	solver, err := New("apgd", centeredDelta(8, 8), apgdRecon(experiment.APGDParams{MaxIter: 1000}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var lastIter int
	opts := RunOptions{OnIter: func(iter int, _ float64) {
		lastIter = iter
		if iter == 3 {
			cancel()
		}
	}}

	// --- Act ---
	res, err := solver.Run(ctx, meas, opts)

	// --- Assert ---
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Equal(t, 3, lastIter)
}

func TestAPGD_ShapeMismatch(t *testing.T) {
	t.Parallel()

	solver, err := New("apgd", centeredDelta(8, 8), testRecon())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	_, err = solver.Run(context.Background(), positivePlane(rng, 8, 4, 0, 1), RunOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match psf")
}
