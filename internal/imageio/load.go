package imageio

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/sbinet/npyio"
	_ "golang.org/x/image/tiff" // raw captures from some sensors ship as tiff
)

// LoadImage reads an image file into a float64 plane. PNG, JPEG and TIFF are
// decoded through the image registry; .npy files are read natively so saved
// numpy captures and PSFs load without conversion. Integer sample formats are
// scaled to [0, 1]; float formats are returned as stored.
func LoadImage(path string) (*Plane, error) {
	if strings.EqualFold(filepath.Ext(path), ".npy") {
		return loadNpy(path)
	}
	return loadStd(path)
}

func loadNpy(path string) (*Plane, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read npy header %q: %w", path, err)
	}
	if r.Header.Descr.Fortran {
		return nil, fmt.Errorf("read npy %q: fortran-order arrays are not supported", path)
	}

	h, w, c, err := squeezeShape(r.Header.Descr.Shape)
	if err != nil {
		return nil, fmt.Errorf("read npy %q: %w", path, err)
	}

	n := h * w * c
	data := make([]float64, 0, n)

	// npyio checks the destination element type against the dtype, so branch
	// on the descr and convert.
	dtype := strings.TrimLeft(r.Header.Descr.Type, "<>=|")
	switch dtype {
	case "f8":
		if err := r.Read(&data); err != nil {
			return nil, fmt.Errorf("read npy %q: %w", path, err)
		}
	case "f4":
		raw := make([]float32, 0, n)
		if err := r.Read(&raw); err != nil {
			return nil, fmt.Errorf("read npy %q: %w", path, err)
		}
		for _, v := range raw {
			data = append(data, float64(v))
		}
	case "u1":
		raw := make([]uint8, 0, n)
		if err := r.Read(&raw); err != nil {
			return nil, fmt.Errorf("read npy %q: %w", path, err)
		}
		for _, v := range raw {
			data = append(data, float64(v)/255.0)
		}
	case "u2":
		raw := make([]uint16, 0, n)
		if err := r.Read(&raw); err != nil {
			return nil, fmt.Errorf("read npy %q: %w", path, err)
		}
		for _, v := range raw {
			data = append(data, float64(v)/65535.0)
		}
	default:
		return nil, fmt.Errorf("read npy %q: unsupported dtype %q", path, r.Header.Descr.Type)
	}

	if len(data) != n {
		return nil, fmt.Errorf("read npy %q: got %d samples, want %d", path, len(data), n)
	}

	plane := &Plane{H: h, W: w, C: c, Data: data}
	if c == 4 {
		plane = dropAlpha(plane)
	}
	return plane, nil
}

// squeezeShape collapses singleton dimensions and maps what is left onto
// (H, W, C). Multi-depth stacks are rejected; a trailing dimension of up to 4
// is treated as channels.
func squeezeShape(shape []int) (h, w, c int, err error) {
	var dims []int
	for _, d := range shape {
		if d != 1 {
			dims = append(dims, d)
		}
	}
	switch len(dims) {
	case 2:
		return dims[0], dims[1], 1, nil
	case 3:
		if dims[2] > 4 {
			return 0, 0, 0, fmt.Errorf("unsupported shape %v: trailing dimension is not a channel count", shape)
		}
		return dims[0], dims[1], dims[2], nil
	default:
		return 0, 0, 0, fmt.Errorf("unsupported shape %v: want a single 2D image with optional channels", shape)
	}
}

func dropAlpha(p *Plane) *Plane {
	out := NewPlane(p.H, p.W, 3)
	for y := 0; y < p.H; y++ {
		for x := 0; x < p.W; x++ {
			for c := 0; c < 3; c++ {
				out.Set(y, x, c, p.At(y, x, c))
			}
		}
	}
	return out
}

func loadStd(path string) (*Plane, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", path, err)
	}

	bounds := img.Bounds()
	h, w := bounds.Dy(), bounds.Dx()

	switch im := img.(type) {
	case *image.Gray:
		plane := NewPlane(h, w, 1)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				plane.Set(y, x, 0, float64(im.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)/255.0)
			}
		}
		return plane, nil
	case *image.Gray16:
		plane := NewPlane(h, w, 1)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				plane.Set(y, x, 0, float64(im.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y)/65535.0)
			}
		}
		return plane, nil
	default:
		plane := NewPlane(h, w, 3)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				plane.Set(y, x, 0, float64(r)/65535.0)
				plane.Set(y, x, 1, float64(g)/65535.0)
				plane.Set(y, x, 2, float64(b)/65535.0)
			}
		}
		return plane, nil
	}
}
