package imageio

import "fmt"

// DebayerRGGB performs bilinear interpolation on a raw RGGB Bayer-pattern
// plane and returns an RGB plane.
//
// RGGB layout (row-major, 0-indexed):
//
//	(even row, even col) = R
//	(even row, odd  col) = G  (Gr)
//	(odd  row, even col) = G  (Gb)
//	(odd  row, odd  col) = B
//
// Edge pixels use clamped (replicated) neighbor lookups. redGain and blueGain
// rebalance the interpolated channels against green; non-positive gains are
// treated as 1.
func DebayerRGGB(p *Plane, redGain, blueGain float64) (*Plane, error) {
	if p.C != 1 {
		return nil, fmt.Errorf("debayer: want a raw single-channel plane, got %d channels", p.C)
	}
	if redGain <= 0 {
		redGain = 1
	}
	if blueGain <= 0 {
		blueGain = 1
	}

	clampX := func(x int) int {
		if x < 0 {
			return 0
		}
		if x >= p.W {
			return p.W - 1
		}
		return x
	}
	clampY := func(y int) int {
		if y < 0 {
			return 0
		}
		if y >= p.H {
			return p.H - 1
		}
		return y
	}
	px := func(x, y int) float64 {
		return p.At(clampY(y), clampX(x), 0)
	}

	out := NewPlane(p.H, p.W, 3)
	for y := 0; y < p.H; y++ {
		evenRow := y%2 == 0
		for x := 0; x < p.W; x++ {
			evenCol := x%2 == 0
			var r, g, b float64

			switch {
			case evenRow && evenCol:
				// Red pixel, interpolate G and B.
				r = px(x, y)
				g = (px(x-1, y) + px(x+1, y) + px(x, y-1) + px(x, y+1)) / 4
				b = (px(x-1, y-1) + px(x+1, y-1) + px(x-1, y+1) + px(x+1, y+1)) / 4

			case evenRow && !evenCol:
				// Green on red row (Gr).
				r = (px(x-1, y) + px(x+1, y)) / 2
				g = px(x, y)
				b = (px(x, y-1) + px(x, y+1)) / 2

			case !evenRow && evenCol:
				// Green on blue row (Gb).
				r = (px(x, y-1) + px(x, y+1)) / 2
				g = px(x, y)
				b = (px(x-1, y) + px(x+1, y)) / 2

			default:
				// Blue pixel, interpolate R and G.
				r = (px(x-1, y-1) + px(x+1, y-1) + px(x-1, y+1) + px(x+1, y+1)) / 4
				g = (px(x-1, y) + px(x+1, y) + px(x, y-1) + px(x, y+1)) / 4
				b = px(x, y)
			}

			out.Set(y, x, 0, r*redGain)
			out.Set(y, x, 1, g)
			out.Set(y, x, 2, b*blueGain)
		}
	}

	return out, nil
}
