package imageio

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
)

// SavePNG writes the plane as an 8-bit PNG, clipping samples to [0, 1].
// Single-channel planes are written as grayscale, three-channel as RGB.
func SavePNG(path string, p *Plane) error {
	img, err := toImage(p)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save %q: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save %q: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("save %q: %w", path, err)
	}
	return nil
}

// SavePNG16 is the 16-bit variant, for reconstructions whose dynamic range
// an 8-bit export would crush.
func SavePNG16(path string, p *Plane) error {
	img, err := toImage16(p)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save %q: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save %q: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("save %q: %w", path, err)
	}
	return nil
}

func toImage(p *Plane) (image.Image, error) {
	rect := image.Rect(0, 0, p.W, p.H)
	switch p.C {
	case 1:
		img := image.NewGray(rect)
		for y := 0; y < p.H; y++ {
			for x := 0; x < p.W; x++ {
				img.SetGray(x, y, color.Gray{Y: quantize8(p.At(y, x, 0))})
			}
		}
		return img, nil
	case 3:
		img := image.NewNRGBA(rect)
		for y := 0; y < p.H; y++ {
			for x := 0; x < p.W; x++ {
				img.SetNRGBA(x, y, color.NRGBA{
					R: quantize8(p.At(y, x, 0)),
					G: quantize8(p.At(y, x, 1)),
					B: quantize8(p.At(y, x, 2)),
					A: 0xff,
				})
			}
		}
		return img, nil
	default:
		return nil, fmt.Errorf("save: cannot encode %d-channel plane", p.C)
	}
}

func toImage16(p *Plane) (image.Image, error) {
	rect := image.Rect(0, 0, p.W, p.H)
	switch p.C {
	case 1:
		img := image.NewGray16(rect)
		for y := 0; y < p.H; y++ {
			for x := 0; x < p.W; x++ {
				img.SetGray16(x, y, color.Gray16{Y: quantize16(p.At(y, x, 0))})
			}
		}
		return img, nil
	case 3:
		img := image.NewNRGBA64(rect)
		for y := 0; y < p.H; y++ {
			for x := 0; x < p.W; x++ {
				img.SetNRGBA64(x, y, color.NRGBA64{
					R: quantize16(p.At(y, x, 0)),
					G: quantize16(p.At(y, x, 1)),
					B: quantize16(p.At(y, x, 2)),
					A: 0xffff,
				})
			}
		}
		return img, nil
	default:
		return nil, fmt.Errorf("save: cannot encode %d-channel plane", p.C)
	}
}

func quantize8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

func quantize16(v float64) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xffff
	}
	return uint16(v*65535 + 0.5)
}
