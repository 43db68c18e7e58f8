package recon

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/lenslesscam/lenslessgo/internal/ctxlog"
	"github.com/lenslesscam/lenslessgo/internal/experiment"
	"github.com/lenslesscam/lenslessgo/internal/fftconv"
	"github.com/lenslesscam/lenslessgo/internal/imageio"
)

func init() {
	Register("apgd", newAPGD)
}

// apgdSolver runs an accelerated proximal gradient descent (FISTA) on
// ½‖A·x − y‖² plus an optional smooth ℓ2 penalty, with the non-smooth part
// handled by the proximal operator. The step size is 1/L with L the spectral
// bound of AᵀA read off the PSF spectrum.
type apgdSolver struct {
	conv *fftconv.Convolver

	maxIter     int
	accel       string // "bt" or "cd"
	diffPenalty string // "" or "l2"
	diffLambda  float64
	proxPenalty string // "nonneg", "l1" or "l2"
	proxLambda  float64
	step        float64
}

func newAPGD(psf *imageio.Plane, rc experiment.Reconstruction) (Solver, error) {
	conv, err := fftconv.NewConvolver(psf)
	if err != nil {
		return nil, err
	}

	p := rc.APGD
	s := &apgdSolver{
		conv:        conv,
		maxIter:     defaultInt(p.MaxIter, 500),
		accel:       strings.ToLower(p.Acceleration),
		diffPenalty: strings.ToLower(p.DiffPenalty),
		diffLambda:  p.DiffLambda,
		proxPenalty: strings.ToLower(p.ProxPenalty),
		proxLambda:  p.ProxLambda,
	}
	if s.maxIter < 1 {
		return nil, fmt.Errorf("apgd: max_iter must be at least 1, got %d", s.maxIter)
	}
	if s.accel == "" {
		s.accel = "bt"
	}
	if s.accel != "bt" && s.accel != "cd" {
		return nil, fmt.Errorf("apgd: unknown acceleration %q (known: BT, CD)", p.Acceleration)
	}
	if s.proxPenalty == "" {
		s.proxPenalty = "nonneg"
	}
	switch s.proxPenalty {
	case "nonneg", "l1", "l2":
	default:
		return nil, fmt.Errorf("apgd: unknown prox_penalty %q (known: nonneg, l1, l2)", p.ProxPenalty)
	}
	switch s.diffPenalty {
	case "", "l2":
	default:
		return nil, fmt.Errorf("apgd: unknown diff_penalty %q (known: l2)", p.DiffPenalty)
	}
	if s.diffPenalty == "l2" && s.diffLambda == 0 {
		s.diffLambda = 1e-3
	}
	if s.proxPenalty != "nonneg" && s.proxLambda == 0 {
		s.proxLambda = 1e-3
	}

	lipschitz := conv.MaxMagSq()
	if s.diffPenalty == "l2" {
		lipschitz += s.diffLambda
	}
	if lipschitz <= 0 {
		return nil, fmt.Errorf("apgd: psf spectrum is empty")
	}
	s.step = 1.0 / lipschitz

	return s, nil
}

func (s *apgdSolver) Run(ctx context.Context, meas *imageio.Plane, opts RunOptions) (*Result, error) {
	h, w := s.conv.Shape()
	if meas.C != 1 || meas.H != h || meas.W != w {
		return nil, fmt.Errorf("apgd: measurement %dx%dx%d does not match psf %dx%dx1", meas.H, meas.W, meas.C, h, w)
	}

	nIter := s.maxIter
	if opts.MaxIter > 0 {
		nIter = opts.MaxIter
	}

	logger := ctxlog.FromContext(ctx)

	x := imageio.NewPlane(h, w, 1)
	xNew := imageio.NewPlane(h, w, 1)
	extrap := imageio.NewPlane(h, w, 1)
	tk := 1.0

	objective := make([]float64, 0, nIter)

	for iter := 1; iter <= nIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Gradient of the smooth part at the extrapolated point.
		residual, err := s.conv.Apply(extrap)
		if err != nil {
			return nil, err
		}
		for i := range residual.Data {
			residual.Data[i] -= meas.Data[i]
		}
		grad, err := s.conv.Adjoint(residual)
		if err != nil {
			return nil, err
		}
		if s.diffPenalty == "l2" {
			for i := range grad.Data {
				grad.Data[i] += s.diffLambda * extrap.Data[i]
			}
		}

		// Proximal step.
		for i := range xNew.Data {
			xNew.Data[i] = s.prox(extrap.Data[i] - s.step*grad.Data[i])
		}

		// Momentum extrapolation for the next gradient.
		var momentum float64
		switch s.accel {
		case "bt":
			tNext := 0.5 * (1 + math.Sqrt(1+4*tk*tk))
			momentum = (tk - 1) / tNext
			tk = tNext
		case "cd":
			momentum = float64(iter-1) / float64(iter+3)
		}
		for i := range extrap.Data {
			extrap.Data[i] = xNew.Data[i] + momentum*(xNew.Data[i]-x.Data[i])
		}
		x, xNew = xNew, x

		obj, err := s.objective(x, meas)
		if err != nil {
			return nil, err
		}
		objective = append(objective, obj)
		if opts.OnIter != nil {
			opts.OnIter(iter, obj)
		}
		if opts.DispIter > 0 && iter%opts.DispIter == 0 {
			logger.Debug("APGD progress", "iter", iter, "objective", obj)
		}
	}

	out := x.Clone()
	for i, v := range out.Data {
		if v < 0 {
			out.Data[i] = 0
		}
	}
	return &Result{Image: out, Iterations: nIter, Objective: objective}, nil
}

func (s *apgdSolver) prox(v float64) float64 {
	switch s.proxPenalty {
	case "l1":
		return softThreshold(v, s.proxLambda*s.step)
	case "l2":
		return v / (1 + s.proxLambda*s.step)
	default: // nonneg
		if v < 0 {
			return 0
		}
		return v
	}
}

// objective evaluates the smooth cost at the accepted iterate.
func (s *apgdSolver) objective(x, meas *imageio.Plane) (float64, error) {
	ax, err := s.conv.Apply(x)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := range ax.Data {
		d := ax.Data[i] - meas.Data[i]
		sum += d * d
	}
	obj := 0.5 * sum
	if s.diffPenalty == "l2" {
		var sq float64
		for _, v := range x.Data {
			sq += v * v
		}
		obj += 0.5 * s.diffLambda * sq
	}
	return obj, nil
}
