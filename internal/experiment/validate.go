package experiment

import (
	"errors"
	"fmt"
)

// Mode is how the launcher consumes a descriptor.
type Mode int

const (
	// ModeSingle reconstructs the one measurement named by input.data.
	ModeSingle Mode = iota
	// ModeBenchmark reconstructs every measurement of files.dataset.
	ModeBenchmark
)

func (m Mode) String() string {
	if m == ModeSingle {
		return "single"
	}
	return "benchmark"
}

// runnableMethods are the solvers this toolkit executes. Trainable methods
// resolve like any other configuration but never run.
var runnableMethods = map[string]bool{
	"admm":     true,
	"apgd":     true,
	"tikhonov": true,
}

// trainableMethods exist only as a parameter surface.
var trainableMethods = map[string]bool{
	"unrolled_admm":  true,
	"unrolled_fista": true,
	"trainable_inv":  true,
}

// validate applies structural sanity checks after decoding. Launch-time
// policy (method support, network rejection, run mode) lives in Mode and
// Runnable so that resolving and printing a training config stays possible.
func (d *Descriptor) validate() error {
	if d.Files.NFiles < 0 {
		return fmt.Errorf("files.n_files (%d) cannot be negative", d.Files.NFiles)
	}
	if d.Files.Downsample < 0 {
		return fmt.Errorf("files.downsample (%d) cannot be negative", d.Files.Downsample)
	}
	if d.Preprocess.Downsample < 0 {
		return fmt.Errorf("preprocess.downsample (%d) cannot be negative", d.Preprocess.Downsample)
	}
	if res := d.Files.ImageRes; res != nil {
		if len(res) != 2 || res[0] <= 0 || res[1] <= 0 {
			return fmt.Errorf("files.image_res must be [height, width] with positive entries, got %v", res)
		}
	}
	if bg := d.Preprocess.BGPix; bg != nil {
		if len(bg) != 2 || bg[0] < 0 || bg[1] <= bg[0] {
			return fmt.Errorf("preprocess.bg_pix must be [first, last) with last > first >= 0, got %v", bg)
		}
	}
	if a := d.Alignment; a != nil {
		if a.Height < 0 {
			return fmt.Errorf("alignment.height (%d) cannot be negative", a.Height)
		}
		if a.TopLeft != nil && len(a.TopLeft) != 2 {
			return fmt.Errorf("alignment.top_left must be [row, col], got %v", a.TopLeft)
		}
		if c := a.Crop; c != nil {
			if c.Right <= c.Left || c.Bottom <= c.Top {
				return fmt.Errorf("alignment.crop box [%d,%d)x[%d,%d) is empty", c.Left, c.Right, c.Top, c.Bottom)
			}
		}
	}
	for _, spec := range []struct {
		key string
		net *NetworkSpec
	}{
		{"reconstruction.pre_process", d.Reconstruction.PreProcess},
		{"reconstruction.post_process", d.Reconstruction.PostProcess},
		{"reconstruction.psf_network", d.Reconstruction.PSFNetwork},
	} {
		if spec.net == nil {
			continue
		}
		for i, c := range spec.net.NC {
			if c <= 0 {
				return fmt.Errorf("%s.nc[%d] (%d) must be positive", spec.key, i, c)
			}
		}
		if spec.net.Network != "" && len(spec.net.NC) == 0 {
			return fmt.Errorf("%s.network %q needs a non-empty channel list nc", spec.key, spec.net.Network)
		}
	}
	return nil
}

// Mode chooses the run mode: input.data selects single-shot reconstruction,
// files.dataset selects a dataset benchmark. Exactly one must be set.
func (d *Descriptor) Mode() (Mode, error) {
	single := d.Input.Data != ""
	bench := d.Files.Dataset != ""
	switch {
	case single && bench:
		return 0, errors.New("both input.data and files.dataset are set; choose one")
	case single:
		return ModeSingle, nil
	case bench:
		return ModeBenchmark, nil
	default:
		return 0, errors.New("neither input.data nor files.dataset is set; nothing to reconstruct")
	}
}

// Runnable reports whether the descriptor can execute here: a supported
// classical method and no learned networks. Training configurations resolve
// and print but do not run.
func (d *Descriptor) Runnable() error {
	method := d.Reconstruction.Method
	if method == "" {
		return errors.New("reconstruction.method is not set")
	}
	if trainableMethods[method] {
		return fmt.Errorf("reconstruction.method %q requires training, which is not supported; use admm, apgd or tikhonov", method)
	}
	if !runnableMethods[method] {
		return fmt.Errorf("unknown reconstruction.method %q; use admm, apgd or tikhonov", method)
	}
	for _, spec := range []struct {
		key string
		net *NetworkSpec
	}{
		{"reconstruction.pre_process", d.Reconstruction.PreProcess},
		{"reconstruction.post_process", d.Reconstruction.PostProcess},
		{"reconstruction.psf_network", d.Reconstruction.PSFNetwork},
	} {
		if spec.net != nil && spec.net.Network != "" {
			return fmt.Errorf("%s.network %q requires a learned model, which is not supported; set it to null", spec.key, spec.net.Network)
		}
	}
	return nil
}
