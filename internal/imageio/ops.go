package imageio

import (
	"fmt"
	"math"
)

// Downsample shrinks the plane by an integer factor using box averaging.
// A factor of 0 or 1 returns the input unchanged.
func Downsample(p *Plane, factor int) *Plane {
	if factor <= 1 {
		return p
	}
	h, w := p.H/factor, p.W/factor
	out := NewPlane(h, w, p.C)
	norm := 1.0 / float64(factor*factor)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < p.C; c++ {
				var sum float64
				for dy := 0; dy < factor; dy++ {
					for dx := 0; dx < factor; dx++ {
						sum += p.At(y*factor+dy, x*factor+dx, c)
					}
				}
				out.Set(y, x, c, sum*norm)
			}
		}
	}
	return out
}

// FlipUD mirrors the plane top to bottom.
func FlipUD(p *Plane) *Plane {
	out := NewPlane(p.H, p.W, p.C)
	for y := 0; y < p.H; y++ {
		for x := 0; x < p.W; x++ {
			for c := 0; c < p.C; c++ {
				out.Set(p.H-1-y, x, c, p.At(y, x, c))
			}
		}
	}
	return out
}

// FlipLR mirrors the plane left to right.
func FlipLR(p *Plane) *Plane {
	out := NewPlane(p.H, p.W, p.C)
	for y := 0; y < p.H; y++ {
		for x := 0; x < p.W; x++ {
			for c := 0; c < p.C; c++ {
				out.Set(y, p.W-1-x, c, p.At(y, x, c))
			}
		}
	}
	return out
}

// ToGray collapses an RGB plane to luminance with the usual Rec. 601 weights.
// Single-channel planes are returned unchanged.
func ToGray(p *Plane) *Plane {
	if p.C == 1 {
		return p
	}
	out := NewPlane(p.H, p.W, 1)
	for y := 0; y < p.H; y++ {
		for x := 0; x < p.W; x++ {
			v := 0.299*p.At(y, x, 0) + 0.587*p.At(y, x, 1) + 0.114*p.At(y, x, 2)
			out.Set(y, x, 0, v)
		}
	}
	return out
}

// SubtractBackground estimates a per-channel background level from the square
// window [first, last) in both axes and subtracts it, clipping at zero. Sensor
// corners outside the caustic pattern make a good window.
func SubtractBackground(p *Plane, first, last int) (*Plane, error) {
	if first < 0 || last <= first || last > p.H || last > p.W {
		return nil, fmt.Errorf("background window [%d, %d) out of range for %dx%d plane", first, last, p.H, p.W)
	}

	bg := make([]float64, p.C)
	n := float64((last - first) * (last - first))
	for c := 0; c < p.C; c++ {
		var sum float64
		for y := first; y < last; y++ {
			for x := first; x < last; x++ {
				sum += p.At(y, x, c)
			}
		}
		bg[c] = sum / n
	}

	out := NewPlane(p.H, p.W, p.C)
	for y := 0; y < p.H; y++ {
		for x := 0; x < p.W; x++ {
			for c := 0; c < p.C; c++ {
				v := p.At(y, x, c) - bg[c]
				if v < 0 {
					v = 0
				}
				out.Set(y, x, c, v)
			}
		}
	}
	return out, nil
}

// Normalize scales the plane so its maximum sample is 1. An all-zero plane is
// returned unchanged.
func Normalize(p *Plane) *Plane {
	max := p.Max()
	if max <= 0 {
		return p
	}
	out := NewPlane(p.H, p.W, p.C)
	inv := 1.0 / max
	for i, v := range p.Data {
		out.Data[i] = v * inv
	}
	return out
}

// GammaCorrect applies v^(1/gamma) to samples clipped to [0, 1]. A gamma of 0
// or 1 returns the input unchanged.
func GammaCorrect(p *Plane, gamma float64) *Plane {
	if gamma == 0 || gamma == 1 {
		return p
	}
	out := NewPlane(p.H, p.W, p.C)
	exp := 1.0 / gamma
	for i, v := range p.Data {
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		out.Data[i] = math.Pow(v, exp)
	}
	return out
}

// Crop extracts rows [top, bottom) and columns [left, right) from the plane.
func Crop(p *Plane, top, bottom, left, right int) (*Plane, error) {
	if top < 0 || left < 0 || bottom > p.H || right > p.W || top >= bottom || left >= right {
		return nil, fmt.Errorf("crop box [%d:%d, %d:%d] out of range for %dx%d plane", top, bottom, left, right, p.H, p.W)
	}
	out := NewPlane(bottom-top, right-left, p.C)
	for y := top; y < bottom; y++ {
		for x := left; x < right; x++ {
			for c := 0; c < p.C; c++ {
				out.Set(y-top, x-left, c, p.At(y, x, c))
			}
		}
	}
	return out, nil
}
