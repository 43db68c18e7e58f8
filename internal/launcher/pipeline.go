package launcher

import (
	"context"
	"fmt"

	"github.com/lenslesscam/lenslessgo/internal/experiment"
	"github.com/lenslesscam/lenslessgo/internal/imageio"
	"github.com/lenslesscam/lenslessgo/internal/recon"
)

// conditionPlane applies the preprocess chain a raw capture needs before
// inversion. The PSF goes through the same chain so both grids stay aligned.
func conditionPlane(p *imageio.Plane, pp experiment.Preprocess) (*imageio.Plane, error) {
	var err error
	if pp.Bayer {
		p, err = imageio.DebayerRGGB(p, pp.RedGain, pp.BlueGain)
		if err != nil {
			return nil, err
		}
	}
	if bg := pp.BGPix; bg != nil {
		p, err = imageio.SubtractBackground(p, bg[0], bg[1])
		if err != nil {
			return nil, err
		}
	}
	if pp.Flip {
		p = imageio.FlipLR(imageio.FlipUD(p))
	}
	if pp.Gray {
		p = imageio.ToGray(p)
	}
	if pp.Downsample > 1 {
		p = imageio.Downsample(p, pp.Downsample)
	}
	if pp.Normalize {
		p = imageio.Normalize(p)
	}
	return p, nil
}

// conditionPSF conditions a point spread function. On top of the shared
// chain the PSF is always peak-normalized, which only rescales the solver's
// objective, and optionally collapsed to one channel.
func conditionPSF(p *imageio.Plane, pp experiment.Preprocess) (*imageio.Plane, error) {
	out, err := conditionPlane(p, pp)
	if err != nil {
		return nil, fmt.Errorf("conditioning psf: %w", err)
	}
	if pp.SinglePSF {
		out = imageio.ToGray(out)
	}
	return imageio.Normalize(out), nil
}

// reconstructPlane inverts each measurement channel against the matching PSF
// channel and reassembles the result. A single-channel PSF serves every
// measurement channel.
func (l *Launcher) reconstructPlane(ctx context.Context, psf, meas *imageio.Plane, opts recon.RunOptions) (*imageio.Plane, int, error) {
	rc := l.desc.Reconstruction

	out := imageio.NewPlane(meas.H, meas.W, meas.C)
	var iterations int
	for c := 0; c < meas.C; c++ {
		psfC := psf
		if psf.C > 1 {
			pc := c
			if pc >= psf.C {
				pc = psf.C - 1
			}
			psfC = psf.Channel(pc)
		}

		solver, err := recon.New(rc.Method, psfC, rc)
		if err != nil {
			return nil, 0, err
		}
		res, err := solver.Run(ctx, meas.Channel(c), opts)
		if err != nil {
			return nil, 0, fmt.Errorf("channel %d: %w", c, err)
		}
		out.SetChannel(c, res.Image)
		iterations = res.Iterations
	}
	return out, iterations, nil
}

// displayImage maps a normalized reconstruction through the display gamma.
// Metrics always run on the un-gamma'd plane.
func (l *Launcher) displayImage(p *imageio.Plane) *imageio.Plane {
	if g := l.desc.Display.Gamma; g > 0 {
		return imageio.GammaCorrect(p, g)
	}
	return p
}

// alignForMetrics crops the reconstruction onto the ground-truth frame when
// the descriptor carries alignment geometry.
func (l *Launcher) alignForMetrics(p *imageio.Plane) (*imageio.Plane, error) {
	a := l.desc.Alignment
	if a == nil || a.Crop == nil {
		return p, nil
	}
	return imageio.Crop(p, a.Crop.Top, a.Crop.Bottom, a.Crop.Left, a.Crop.Right)
}
