package recon

import (
	"context"
	"fmt"

	"github.com/lenslesscam/lenslessgo/internal/ctxlog"
	"github.com/lenslesscam/lenslessgo/internal/experiment"
	"github.com/lenslesscam/lenslessgo/internal/fftconv"
	"github.com/lenslesscam/lenslessgo/internal/imageio"
)

func init() {
	Register("admm", newADMM)
}

// admmSolver minimizes ½‖crop(H·x) − y‖² + τ‖Ψx‖₁ subject to x ≥ 0, where Ψ
// is the 2D finite-difference operator. The three splits (sensor estimate,
// TV coefficients, non-negativity) each get their own penalty weight, and the
// quadratic image subproblem diagonalizes in the frequency domain.
type admmSolver struct {
	conv   *fftconv.Convolver
	fh, fw int

	mu1, mu2, mu3 float64
	tau           float64
	nIter         int

	rDivmat []float64 // 1/(mu1|H|² + mu2·gram(Ψ) + mu3), frequency domain
	xDivmat []float64 // 1/(1+mu1) on the sensor support, 1/mu1 outside
}

func newADMM(psf *imageio.Plane, rc experiment.Reconstruction) (Solver, error) {
	conv, err := fftconv.NewConvolver(psf)
	if err != nil {
		return nil, err
	}

	p := rc.ADMM
	s := &admmSolver{
		conv:  conv,
		mu1:   defaultFloat(p.Mu1, 1e-6),
		mu2:   defaultFloat(p.Mu2, 1e-5),
		mu3:   defaultFloat(p.Mu3, 4e-5),
		tau:   defaultFloat(p.Tau, 1e-4),
		nIter: defaultInt(p.NIter, 100),
	}
	if s.mu1 <= 0 || s.mu2 <= 0 || s.mu3 <= 0 || s.tau <= 0 {
		return nil, fmt.Errorf("admm: mu1, mu2, mu3 and tau must be positive")
	}
	if s.nIter < 1 {
		return nil, fmt.Errorf("admm: n_iter must be at least 1, got %d", s.nIter)
	}

	s.fh, s.fw = conv.GridShape()
	n := s.fh * s.fw

	psiGram := s.psiGramFreq()
	magSq := conv.MagSq()
	s.rDivmat = make([]float64, n)
	for i := range s.rDivmat {
		s.rDivmat[i] = 1.0 / (s.mu1*magSq[i] + s.mu2*psiGram[i] + s.mu3)
	}

	h, w := conv.Shape()
	s.xDivmat = make([]float64, n)
	for i := range s.xDivmat {
		s.xDivmat[i] = 1.0 / s.mu1
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s.xDivmat[y*s.fw+x] = 1.0 / (1.0 + s.mu1)
		}
	}

	return s, nil
}

// psiGramFreq diagonalizes ΨᵀΨ: the FFT of the 5-point laplacian kernel.
func (s *admmSolver) psiGramFreq() []float64 {
	kern := make([]float64, s.fh*s.fw)
	kern[0] = 4
	kern[1] = -1
	kern[s.fw-1] = -1
	kern[s.fw] = -1
	kern[(s.fh-1)*s.fw] = -1

	spec := s.conv.FFT(kern)
	out := make([]float64, len(spec))
	for i, v := range spec {
		g := real(v) // 4 − 2cos(2πm/fh) − 2cos(2πn/fw), clamp fp noise
		if g < 0 {
			g = 0
		}
		out[i] = g
	}
	return out
}

func (s *admmSolver) Run(ctx context.Context, meas *imageio.Plane, opts RunOptions) (*Result, error) {
	h, w := s.conv.Shape()
	if meas.C != 1 || meas.H != h || meas.W != w {
		return nil, fmt.Errorf("admm: measurement %dx%dx%d does not match psf %dx%dx1", meas.H, meas.W, meas.C, h, w)
	}

	nIter := s.nIter
	if opts.MaxIter > 0 {
		nIter = opts.MaxIter
	}

	logger := ctxlog.FromContext(ctx)
	n := s.fh * s.fw

	ctB := s.conv.PadGrid(meas)

	image := make([]float64, n)
	slackX := make([]float64, n)
	slackW := make([]float64, n)
	u1 := make([]float64, n)
	u2 := make([]float64, n)
	xi := make([]float64, n)
	eta1 := make([]float64, n)
	eta2 := make([]float64, n)
	rho := make([]float64, n)

	forwardOut := make([]float64, n)
	psi1 := make([]float64, n)
	psi2 := make([]float64, n)
	rk := make([]float64, n)

	objective := make([]float64, 0, nIter)

	for iter := 1; iter <= nIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// TV split: soft-threshold the finite differences.
		thresh := s.tau / s.mu2
		for i := range u1 {
			u1[i] = softThreshold(psi1[i]+eta1[i]/s.mu2, thresh)
			u2[i] = softThreshold(psi2[i]+eta2[i]/s.mu2, thresh)
		}

		// Sensor split: averaged data term on the crop support.
		for i := range slackX {
			slackX[i] = s.xDivmat[i] * (xi[i] + s.mu1*forwardOut[i] + ctB[i])
		}

		// Non-negativity split.
		for i := range slackW {
			v := rho[i]/s.mu3 + image[i]
			if v < 0 {
				v = 0
			}
			slackW[i] = v
		}

		// Image subproblem, solved in the frequency domain:
		// rk = Hᵀ(mu1·X − ξ) + Ψᵀ(mu2·U − η) + (mu3·W − ρ)
		for i := range rk {
			rk[i] = s.mu3*slackW[i] - rho[i]
		}
		s.addPsiT(rk, u1, u2, eta1, eta2)
		s.addAdjoint(rk, slackX, xi)

		spec := s.conv.FFT(rk)
		for i := range spec {
			spec[i] *= complex(s.rDivmat[i], 0)
		}
		copy(image, s.conv.IFFTReal(spec))

		// Refresh the operator outputs of the new image for the duals and
		// the next round of splits.
		s.forward(forwardOut, image)
		s.psi(psi1, psi2, image)

		for i := range xi {
			xi[i] += s.mu1 * (forwardOut[i] - slackX[i])
			eta1[i] += s.mu2 * (psi1[i] - u1[i])
			eta2[i] += s.mu2 * (psi2[i] - u2[i])
			rho[i] += s.mu3 * (image[i] - slackW[i])
		}

		obj := s.dataFidelity(forwardOut, meas)
		objective = append(objective, obj)
		if opts.OnIter != nil {
			opts.OnIter(iter, obj)
		}
		if opts.DispIter > 0 && iter%opts.DispIter == 0 {
			logger.Debug("ADMM progress", "iter", iter, "objective", obj)
		}
	}

	out := s.conv.CropGrid(image)
	for i, v := range out.Data {
		if v < 0 {
			out.Data[i] = 0
		}
	}
	return &Result{Image: out, Iterations: nIter, Objective: objective}, nil
}

// forward writes the padded-domain convolution H·src into dst.
func (s *admmSolver) forward(dst, src []float64) {
	spec := s.conv.FFT(src)
	tf := s.conv.TransferFn()
	for i := range spec {
		spec[i] *= tf[i]
	}
	copy(dst, s.conv.IFFTReal(spec))
}

// addAdjoint adds Hᵀ(mu1·x − xi) to dst.
func (s *admmSolver) addAdjoint(dst, x, xi []float64) {
	tmp := make([]float64, len(dst))
	for i := range tmp {
		tmp[i] = s.mu1*x[i] - xi[i]
	}
	spec := s.conv.FFT(tmp)
	tf := s.conv.TransferFn()
	for i := range spec {
		h := tf[i]
		spec[i] *= complex(real(h), -imag(h))
	}
	grid := s.conv.IFFTReal(spec)
	for i := range dst {
		dst[i] += grid[i]
	}
}

// psi computes circular backward differences along each axis.
func (s *admmSolver) psi(d1, d2, v []float64) {
	fh, fw := s.fh, s.fw
	for y := 0; y < fh; y++ {
		ym := y - 1
		if ym < 0 {
			ym = fh - 1
		}
		for x := 0; x < fw; x++ {
			xm := x - 1
			if xm < 0 {
				xm = fw - 1
			}
			i := y*fw + x
			d1[i] = v[ym*fw+x] - v[i]
			d2[i] = v[y*fw+xm] - v[i]
		}
	}
}

// addPsiT adds Ψᵀ(mu2·u − eta) to dst, the exact adjoint of psi.
func (s *admmSolver) addPsiT(dst, u1, u2, eta1, eta2 []float64) {
	fh, fw := s.fh, s.fw
	for y := 0; y < fh; y++ {
		yp := y + 1
		if yp == fh {
			yp = 0
		}
		for x := 0; x < fw; x++ {
			xp := x + 1
			if xp == fw {
				xp = 0
			}
			i := y*fw + x
			j1 := yp*fw + x
			j2 := y*fw + xp
			a := (s.mu2*u1[j1] - eta1[j1]) - (s.mu2*u1[i] - eta1[i])
			b := (s.mu2*u2[j2] - eta2[j2]) - (s.mu2*u2[i] - eta2[i])
			dst[i] += a + b
		}
	}
}

// dataFidelity evaluates ½‖crop(H·x) − y‖² from the padded forward output.
func (s *admmSolver) dataFidelity(forwardOut []float64, meas *imageio.Plane) float64 {
	h, w := s.conv.Shape()
	var sum float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := forwardOut[y*s.fw+x] - meas.At(y, x, 0)
			sum += d * d
		}
	}
	return 0.5 * sum
}

func softThreshold(v, thresh float64) float64 {
	switch {
	case v > thresh:
		return v - thresh
	case v < -thresh:
		return v + thresh
	default:
		return 0
	}
}

func defaultFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
