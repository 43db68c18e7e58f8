// Package fftconv implements FFT-based 2D convolution against a fixed point
// spread function, zero-padded so the convolution is linear rather than
// circular. It exposes both the spatial-domain operator pair (Apply, Adjoint)
// and the padded-grid primitives iterative solvers update in the frequency
// domain.
package fftconv

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/lenslesscam/lenslessgo/internal/imageio"
)

// Convolver convolves measurement-sized planes with a centered single-channel
// PSF. The PSF is rolled so its center sits at the grid origin, which makes
// the top-left crop of the padded result line up with the measurement.
//
// A Convolver is not safe for concurrent use; create one per goroutine.
type Convolver struct {
	h, w   int // measurement size
	fh, fw int // padded fft grid size

	tf    []complex128 // transfer function of the rolled psf
	magSq []float64    // |tf|^2

	rowFFT *fourier.CmplxFFT // length fw
	colFFT *fourier.CmplxFFT // length fh
}

// NewConvolver builds the transfer function for a centered PSF. The padded
// grid is the next power of two that fits a full linear convolution.
func NewConvolver(psf *imageio.Plane) (*Convolver, error) {
	if psf.C != 1 {
		return nil, fmt.Errorf("fftconv: want a single-channel psf, got %d channels", psf.C)
	}

	h, w := psf.H, psf.W
	c := &Convolver{
		h:  h,
		w:  w,
		fh: nextPow2(2*h - 1),
		fw: nextPow2(2*w - 1),
	}
	c.rowFFT = fourier.NewCmplxFFT(c.fw)
	c.colFFT = fourier.NewCmplxFFT(c.fh)

	// Embed the PSF top-left and roll it so the center lands on (0, 0) with
	// wraparound (ifftshift).
	grid := make([]complex128, c.fh*c.fw)
	cy, cx := h/2, w/2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			yy := mod(y-cy, c.fh)
			xx := mod(x-cx, c.fw)
			grid[yy*c.fw+xx] = complex(psf.At(y, x, 0), 0)
		}
	}

	c.transform(grid, true)
	c.tf = grid
	c.magSq = make([]float64, len(grid))
	for i, v := range grid {
		re, im := real(v), imag(v)
		c.magSq[i] = re*re + im*im
	}
	return c, nil
}

// Shape returns the measurement size the convolver operates on.
func (c *Convolver) Shape() (h, w int) { return c.h, c.w }

// GridShape returns the padded FFT grid size.
func (c *Convolver) GridShape() (fh, fw int) { return c.fh, c.fw }

// TransferFn returns the PSF transfer function on the padded grid. The slice
// is shared; callers must not modify it.
func (c *Convolver) TransferFn() []complex128 { return c.tf }

// MagSq returns |H|² on the padded grid. The slice is shared; callers must
// not modify it.
func (c *Convolver) MagSq() []float64 { return c.magSq }

// MaxMagSq returns the largest squared spectrum magnitude, the Lipschitz
// constant of the normal operator AᵀA.
func (c *Convolver) MaxMagSq() float64 {
	var max float64
	for _, v := range c.magSq {
		if v > max {
			max = v
		}
	}
	return max
}

// Apply convolves x with the PSF: A·x.
func (c *Convolver) Apply(x *imageio.Plane) (*imageio.Plane, error) {
	if err := c.checkShape(x); err != nil {
		return nil, err
	}
	spec := c.FFT(c.PadGrid(x))
	for i := range spec {
		spec[i] *= c.tf[i]
	}
	return c.CropGrid(c.IFFTReal(spec)), nil
}

// Adjoint correlates y with the PSF: Aᵀ·y.
func (c *Convolver) Adjoint(y *imageio.Plane) (*imageio.Plane, error) {
	if err := c.checkShape(y); err != nil {
		return nil, err
	}
	spec := c.FFT(c.PadGrid(y))
	for i := range spec {
		h := c.tf[i]
		spec[i] *= complex(real(h), -imag(h))
	}
	return c.CropGrid(c.IFFTReal(spec)), nil
}

func (c *Convolver) checkShape(p *imageio.Plane) error {
	if p.C != 1 || p.H != c.h || p.W != c.w {
		return fmt.Errorf("fftconv: plane %dx%dx%d does not match convolver %dx%dx1", p.H, p.W, p.C, c.h, c.w)
	}
	return nil
}

// PadGrid embeds a measurement-sized plane top-left on the padded grid.
func (c *Convolver) PadGrid(p *imageio.Plane) []float64 {
	grid := make([]float64, c.fh*c.fw)
	for y := 0; y < c.h; y++ {
		for x := 0; x < c.w; x++ {
			grid[y*c.fw+x] = p.At(y, x, 0)
		}
	}
	return grid
}

// CropGrid takes the measurement-sized top-left corner of a padded grid.
func (c *Convolver) CropGrid(grid []float64) *imageio.Plane {
	out := imageio.NewPlane(c.h, c.w, 1)
	for y := 0; y < c.h; y++ {
		for x := 0; x < c.w; x++ {
			out.Set(y, x, 0, grid[y*c.fw+x])
		}
	}
	return out
}

// FFT transforms a real padded grid into its spectrum.
func (c *Convolver) FFT(grid []float64) []complex128 {
	spec := make([]complex128, len(grid))
	for i, v := range grid {
		spec[i] = complex(v, 0)
	}
	c.transform(spec, true)
	return spec
}

// IFFTReal transforms a spectrum back to a real padded grid, applying the
// 1/(fh·fw) normalization the unnormalized transforms leave out.
func (c *Convolver) IFFTReal(spec []complex128) []float64 {
	tmp := make([]complex128, len(spec))
	copy(tmp, spec)
	c.transform(tmp, false)
	grid := make([]float64, len(tmp))
	scale := 1.0 / float64(c.fh*c.fw)
	for i, v := range tmp {
		grid[i] = real(v) * scale
	}
	return grid
}

// transform runs an in-place 2D FFT as a row pass then a column pass.
func (c *Convolver) transform(a []complex128, forward bool) {
	row := make([]complex128, c.fw)
	for y := 0; y < c.fh; y++ {
		copy(row, a[y*c.fw:(y+1)*c.fw])
		if forward {
			c.rowFFT.Coefficients(row, row)
		} else {
			c.rowFFT.Sequence(row, row)
		}
		copy(a[y*c.fw:(y+1)*c.fw], row)
	}

	col := make([]complex128, c.fh)
	for x := 0; x < c.fw; x++ {
		for y := 0; y < c.fh; y++ {
			col[y] = a[y*c.fw+x]
		}
		if forward {
			c.colFFT.Coefficients(col, col)
		} else {
			c.colFFT.Sequence(col, col)
		}
		for y := 0; y < c.fh; y++ {
			a[y*c.fw+x] = col[y]
		}
	}
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func mod(i, n int) int {
	r := i % n
	if r < 0 {
		r += n
	}
	return r
}
