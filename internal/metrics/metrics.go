// Package metrics scores reconstructions against ground-truth images. All
// metrics assume planes scaled to [0, 1]; callers normalize first.
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/lenslesscam/lenslessgo/internal/imageio"
)

// PSNRCap bounds the value Evaluate reports for a bit-exact reconstruction,
// keeping aggregates and JSON output finite.
const PSNRCap = 100.0

const (
	ssimWindow = 11
	ssimSigma  = 1.5
	ssimK1     = 0.01
	ssimK2     = 0.03
)

func checkPair(a, b *imageio.Plane) error {
	if !a.SameShape(b) {
		return fmt.Errorf("metrics: plane shapes differ: %dx%dx%d vs %dx%dx%d",
			a.H, a.W, a.C, b.H, b.W, b.C)
	}
	return nil
}

// MSE is the mean squared error over all pixels and channels.
func MSE(a, b *imageio.Plane) (float64, error) {
	if err := checkPair(a, b); err != nil {
		return 0, err
	}
	d := floats.Distance(a.Data, b.Data, 2)
	return d * d / float64(len(a.Data)), nil
}

// MAE is the mean absolute error over all pixels and channels.
func MAE(a, b *imageio.Plane) (float64, error) {
	if err := checkPair(a, b); err != nil {
		return 0, err
	}
	return floats.Distance(a.Data, b.Data, 1) / float64(len(a.Data)), nil
}

// PSNR is the peak signal-to-noise ratio in dB against a peak of 1.0.
// Identical planes yield +Inf; Evaluate caps that at PSNRCap.
func PSNR(a, b *imageio.Plane) (float64, error) {
	mse, err := MSE(a, b)
	if err != nil {
		return 0, err
	}
	if mse == 0 {
		return math.Inf(1), nil
	}
	return -10 * math.Log10(mse), nil
}

// SSIM is the structural similarity index, computed per channel with a
// Gaussian window and averaged. The window shrinks for planes smaller than
// 11 pixels on a side.
func SSIM(a, b *imageio.Plane) (float64, error) {
	if err := checkPair(a, b); err != nil {
		return 0, err
	}
	var total float64
	for c := 0; c < a.C; c++ {
		v, err := ssimChannel(a.Channel(c), b.Channel(c))
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total / float64(a.C), nil
}

func ssimChannel(x, y *imageio.Plane) (float64, error) {
	win := ssimWindow
	if x.H < win {
		win = x.H
	}
	if x.W < win {
		win = x.W
	}
	if win%2 == 0 {
		win--
	}
	if win < 3 {
		return 0, fmt.Errorf("metrics: %dx%d plane too small for ssim", x.H, x.W)
	}

	weights := gaussianWindow(win, ssimSigma)
	c1 := ssimK1 * ssimK1
	c2 := ssimK2 * ssimK2

	n := win * win
	xs := make([]float64, n)
	ys := make([]float64, n)

	var sum float64
	var count int
	for y0 := 0; y0+win <= x.H; y0++ {
		for x0 := 0; x0+win <= x.W; x0++ {
			k := 0
			for dy := 0; dy < win; dy++ {
				row := (y0 + dy) * x.W
				for dx := 0; dx < win; dx++ {
					xs[k] = x.Data[row+x0+dx]
					ys[k] = y.Data[row+x0+dx]
					k++
				}
			}

			mx := stat.Mean(xs, weights)
			my := stat.Mean(ys, weights)
			var vx, vy, cxy float64
			for i := range xs {
				dx := xs[i] - mx
				dy := ys[i] - my
				vx += weights[i] * dx * dx
				vy += weights[i] * dy * dy
				cxy += weights[i] * dx * dy
			}

			num := (2*mx*my + c1) * (2*cxy + c2)
			den := (mx*mx + my*my + c1) * (vx + vy + c2)
			sum += num / den
			count++
		}
	}
	return sum / float64(count), nil
}

// gaussianWindow returns a flattened win×win Gaussian weight mask with unit
// sum, so weighted means need no renormalizing.
func gaussianWindow(win int, sigma float64) []float64 {
	out := make([]float64, win*win)
	c := win / 2
	var sum float64
	for y := 0; y < win; y++ {
		for x := 0; x < win; x++ {
			d := float64((y-c)*(y-c) + (x-c)*(x-c))
			v := math.Exp(-d / (2 * sigma * sigma))
			out[y*win+x] = v
			sum += v
		}
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Evaluate scores a reconstruction against the ground truth and returns the
// standard metric set keyed by name.
func Evaluate(recon, truth *imageio.Plane) (map[string]float64, error) {
	mse, err := MSE(recon, truth)
	if err != nil {
		return nil, err
	}
	mae, err := MAE(recon, truth)
	if err != nil {
		return nil, err
	}
	psnr, err := PSNR(recon, truth)
	if err != nil {
		return nil, err
	}
	if psnr > PSNRCap {
		psnr = PSNRCap
	}
	ssim, err := SSIM(recon, truth)
	if err != nil {
		return nil, err
	}
	return map[string]float64{
		"mse":  mse,
		"mae":  mae,
		"psnr": psnr,
		"ssim": ssim,
	}, nil
}

// Aggregate reduces per-file metric maps to a mean and standard deviation per
// metric. A metric missing from some samples is aggregated over the samples
// that carry it.
func Aggregate(samples []map[string]float64) (mean, std map[string]float64) {
	byKey := make(map[string][]float64)
	for _, s := range samples {
		for k, v := range s {
			byKey[k] = append(byKey[k], v)
		}
	}

	mean = make(map[string]float64, len(byKey))
	std = make(map[string]float64, len(byKey))
	for k, vals := range byKey {
		mean[k] = stat.Mean(vals, nil)
		if len(vals) > 1 {
			std[k] = stat.StdDev(vals, nil)
		} else {
			std[k] = 0
		}
	}
	return mean, std
}
