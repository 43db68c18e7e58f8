package recon

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/lenslesscam/lenslessgo/internal/ctxlog"
	"github.com/lenslesscam/lenslessgo/internal/experiment"
	"github.com/lenslesscam/lenslessgo/internal/imageio"
)

func init() {
	Register("tikhonov", newTikhonov)
}

// tikhonovSolver inverts the separable model Y = P·X·Qᵀ in closed form with
// an ℓ2 penalty on X. The PSF is approximated by its leading singular pair,
// which gives the row and column blur kernels P and Q are built from; both
// factors are then SVD-diagonalized once so every Run is a handful of matrix
// products. Suited to mask-based cameras whose PSF is close to separable.
type tikhonovSolver struct {
	h, w int
	reg  float64

	uL, vL *mat.Dense // P = U_L S_L V_Lᵀ
	sL     []float64
	uR, vR *mat.Dense // Q = U_R S_R V_Rᵀ
	sR     []float64

	// energyRatio is σ₁²/Σσ², how much of the PSF the separable
	// approximation keeps.
	energyRatio float64
}

func newTikhonov(psf *imageio.Plane, rc experiment.Reconstruction) (Solver, error) {
	if psf.C != 1 {
		return nil, fmt.Errorf("tikhonov: want a single-channel psf, got %d channels", psf.C)
	}

	reg := defaultFloat(rc.Tikhonov.Reg, 1e-4)
	if reg <= 0 {
		return nil, fmt.Errorf("tikhonov: reg must be positive, got %v", reg)
	}

	h, w := psf.H, psf.W
	s := &tikhonovSolver{h: h, w: w, reg: reg}

	// Leading singular pair of the PSF: psf ≈ σ₁·u·vᵀ.
	var svd mat.SVD
	if !svd.Factorize(mat.NewDense(h, w, psf.Data), mat.SVDThin) {
		return nil, fmt.Errorf("tikhonov: psf svd failed to converge")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	sigma := svd.Values(nil)
	if sigma[0] == 0 {
		return nil, fmt.Errorf("tikhonov: psf is identically zero")
	}

	var total float64
	for _, sv := range sigma {
		total += sv * sv
	}
	s.energyRatio = sigma[0] * sigma[0] / total

	// Split σ₁ evenly across the two kernels.
	rowKernel := make([]float64, h)
	colKernel := make([]float64, w)
	root := math.Sqrt(sigma[0])
	for i := 0; i < h; i++ {
		rowKernel[i] = u.At(i, 0) * root
	}
	for j := 0; j < w; j++ {
		colKernel[j] = v.At(j, 0) * root
	}

	var err error
	s.uL, s.sL, s.vL, err = factorizeToeplitz(rowKernel)
	if err != nil {
		return nil, fmt.Errorf("tikhonov: left factor: %w", err)
	}
	s.uR, s.sR, s.vR, err = factorizeToeplitz(colKernel)
	if err != nil {
		return nil, fmt.Errorf("tikhonov: right factor: %w", err)
	}

	return s, nil
}

// factorizeToeplitz builds the centered "same"-convolution matrix of kernel k
// and returns its SVD factors.
func factorizeToeplitz(k []float64) (u *mat.Dense, s []float64, v *mat.Dense, err error) {
	n := len(k)
	c := n / 2
	t := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if idx := c + i - j; idx >= 0 && idx < n {
				t.Set(i, j, k[idx])
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(t, mat.SVDFull) {
		return nil, nil, nil, fmt.Errorf("svd failed to converge")
	}
	u = &mat.Dense{}
	v = &mat.Dense{}
	svd.UTo(u)
	svd.VTo(v)
	return u, svd.Values(nil), v, nil
}

func (s *tikhonovSolver) Run(ctx context.Context, meas *imageio.Plane, opts RunOptions) (*Result, error) {
	if meas.C != 1 || meas.H != s.h || meas.W != s.w {
		return nil, fmt.Errorf("tikhonov: measurement %dx%dx%d does not match psf %dx%dx1", meas.H, meas.W, meas.C, s.h, s.w)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Tikhonov solve", "reg", s.reg, "separable_energy", s.energyRatio)

	y := mat.NewDense(s.h, s.w, meas.Data)

	// Rotate into the singular bases: Y' = U_Lᵀ · Y · U_R.
	var t1, yPrime mat.Dense
	t1.Mul(s.uL.T(), y)
	yPrime.Mul(&t1, s.uR)

	// Elementwise shrinkage: x'_ij = s_i·y'_ij·s_j / (s_i²·s_j² + λ).
	xPrime := mat.NewDense(s.h, s.w, nil)
	for i := 0; i < s.h; i++ {
		si := s.sL[i]
		for j := 0; j < s.w; j++ {
			sj := s.sR[j]
			xPrime.Set(i, j, si*yPrime.At(i, j)*sj/(si*si*sj*sj+s.reg))
		}
	}

	// Rotate back: X = V_L · X' · V_Rᵀ.
	var t2, x mat.Dense
	t2.Mul(s.vL, xPrime)
	x.Mul(&t2, s.vR.T())

	out := imageio.NewPlane(s.h, s.w, 1)
	for i := 0; i < s.h; i++ {
		for j := 0; j < s.w; j++ {
			v := x.At(i, j)
			if v < 0 {
				v = 0
			}
			out.Set(i, j, 0, v)
		}
	}
	return &Result{Image: out, Iterations: 1}, nil
}
