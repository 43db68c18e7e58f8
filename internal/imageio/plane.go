package imageio

import "fmt"

// Plane is a dense H×W×C raster of float64 samples, row-major with the
// channel index fastest. C is 1 for grayscale and 3 for RGB.
type Plane struct {
	H, W, C int
	Data    []float64
}

// NewPlane allocates a zeroed plane of the given dimensions. It panics on
// non-positive dimensions, which always indicate a programmer error.
func NewPlane(h, w, c int) *Plane {
	if h <= 0 || w <= 0 || c <= 0 {
		panic(fmt.Sprintf("imageio: invalid plane dimensions %dx%dx%d", h, w, c))
	}
	return &Plane{H: h, W: w, C: c, Data: make([]float64, h*w*c)}
}

// At returns the sample at row y, column x, channel c.
func (p *Plane) At(y, x, c int) float64 {
	return p.Data[(y*p.W+x)*p.C+c]
}

// Set stores v at row y, column x, channel c.
func (p *Plane) Set(y, x, c int, v float64) {
	p.Data[(y*p.W+x)*p.C+c] = v
}

// Clone returns a deep copy of the plane.
func (p *Plane) Clone() *Plane {
	out := &Plane{H: p.H, W: p.W, C: p.C, Data: make([]float64, len(p.Data))}
	copy(out.Data, p.Data)
	return out
}

// Max returns the largest sample value, or 0 for an empty plane.
func (p *Plane) Max() float64 {
	var max float64
	for i, v := range p.Data {
		if i == 0 || v > max {
			max = v
		}
	}
	return max
}

// SameShape reports whether q has identical dimensions.
func (p *Plane) SameShape(q *Plane) bool {
	return p.H == q.H && p.W == q.W && p.C == q.C
}

// Channel extracts channel c as a new single-channel plane.
func (p *Plane) Channel(c int) *Plane {
	out := NewPlane(p.H, p.W, 1)
	for y := 0; y < p.H; y++ {
		for x := 0; x < p.W; x++ {
			out.Set(y, x, 0, p.At(y, x, c))
		}
	}
	return out
}

// SetChannel copies the single-channel plane src into channel c.
func (p *Plane) SetChannel(c int, src *Plane) {
	for y := 0; y < p.H; y++ {
		for x := 0; x < p.W; x++ {
			p.Set(y, x, c, src.At(y, x, 0))
		}
	}
}
