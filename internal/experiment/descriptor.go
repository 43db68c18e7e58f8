// Package experiment turns a resolved configuration tree into the typed,
// immutable descriptor consumed by the launcher.
package experiment

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/lenslesscam/lenslessgo/internal/config"
)

// Descriptor identifies one camera/dataset pairing: the named configuration,
// dataset and file locations, preprocessing and alignment geometry, and the
// reconstruction method with its parameters. It is created once per launch
// and read-only afterwards.
type Descriptor struct {
	Name string `mapstructure:"-"`

	Files          Files          `mapstructure:"files"`
	Input          Input          `mapstructure:"input"`
	Preprocess     Preprocess     `mapstructure:"preprocess"`
	Alignment      *Alignment     `mapstructure:"alignment"`
	Training       Training       `mapstructure:"training"`
	Reconstruction Reconstruction `mapstructure:"reconstruction"`
	Display        Display        `mapstructure:"display"`
	Metrics        Metrics        `mapstructure:"metrics"`
	TorchDevice    string         `mapstructure:"torch_device"`
	Seed           int            `mapstructure:"seed"`
}

// Files selects a dataset and where its files live.
type Files struct {
	Dataset     string `mapstructure:"dataset"`
	PSF         string `mapstructure:"psf"`
	CacheDir    string `mapstructure:"cache_dir"`
	OutputDir   string `mapstructure:"output_dir"`
	DownloadURL string `mapstructure:"download_url"`
	NFiles      int    `mapstructure:"n_files"` // 0 means all
	Downsample  int    `mapstructure:"downsample"`
	ImageRes    []int  `mapstructure:"image_res"` // [height, width]
	Extension   string `mapstructure:"extension"`
}

// Input points at a single measurement for one-shot reconstruction.
type Input struct {
	PSF      string `mapstructure:"psf"`
	Data     string `mapstructure:"data"`
	Original string `mapstructure:"original"` // optional ground truth
}

// Preprocess configures raw measurement conditioning before inversion.
type Preprocess struct {
	Downsample int     `mapstructure:"downsample"`
	Bayer      bool    `mapstructure:"bayer"`
	BlueGain   float64 `mapstructure:"blue_gain"`
	RedGain    float64 `mapstructure:"red_gain"`
	Flip       bool    `mapstructure:"flip"`
	Gray       bool    `mapstructure:"gray"`
	SinglePSF  bool    `mapstructure:"single_psf"`
	BGPix      []int   `mapstructure:"bg_pix"` // [first, last) corner window for background estimate
	Normalize  bool    `mapstructure:"normalize"`
}

// Alignment maps reconstructed output onto the ground-truth frame.
type Alignment struct {
	TopLeft []int `mapstructure:"top_left"`
	Height  int   `mapstructure:"height"`
	Crop    *Crop `mapstructure:"crop"`
}

// Crop is a pixel box, end-exclusive.
type Crop struct {
	Left   int `mapstructure:"left"`
	Right  int `mapstructure:"right"`
	Top    int `mapstructure:"top"`
	Bottom int `mapstructure:"bottom"`
}

// Training carries the training parameter surface. It resolves and validates
// like every other group but is never executed here: trainable methods are
// out of scope and rejected at launch.
type Training struct {
	BatchSize          int    `mapstructure:"batch_size"`
	Epoch              int    `mapstructure:"epoch"`
	SaveEvery          int    `mapstructure:"save_every"`
	MetricForBestModel string `mapstructure:"metric_for_best_model"`
	CropPreloss        bool   `mapstructure:"crop_preloss"`
}

// Reconstruction selects the solver and its parameters.
type Reconstruction struct {
	Method        string         `mapstructure:"method"`
	ADMM          ADMMParams     `mapstructure:"admm"`
	APGD          APGDParams     `mapstructure:"apgd"`
	Tikhonov      TikhonovParams `mapstructure:"tikhonov"`
	UnrolledADMM  map[string]any `mapstructure:"unrolled_admm"`
	UnrolledFISTA map[string]any `mapstructure:"unrolled_fista"`
	PreProcess    *NetworkSpec   `mapstructure:"pre_process"`
	PostProcess   *NetworkSpec   `mapstructure:"post_process"`
	PSFNetwork    *NetworkSpec   `mapstructure:"psf_network"`
}

// ADMMParams parameterize the alternating direction solver.
type ADMMParams struct {
	NIter    int     `mapstructure:"n_iter"`
	Mu1      float64 `mapstructure:"mu1"`
	Mu2      float64 `mapstructure:"mu2"`
	Mu3      float64 `mapstructure:"mu3"`
	Tau      float64 `mapstructure:"tau"`
	DispIter int     `mapstructure:"disp_iter"`
}

// APGDParams parameterize the accelerated proximal gradient solver.
type APGDParams struct {
	MaxIter      int     `mapstructure:"max_iter"`
	Acceleration string  `mapstructure:"acceleration"` // BT or CD
	DiffPenalty  string  `mapstructure:"diff_penalty"` // l2, or empty for none
	DiffLambda   float64 `mapstructure:"diff_lambda"`
	ProxPenalty  string  `mapstructure:"prox_penalty"` // l1, l2 or nonneg
	ProxLambda   float64 `mapstructure:"prox_lambda"`
}

// TikhonovParams parameterize the separable closed-form solver.
type TikhonovParams struct {
	Reg float64 `mapstructure:"reg"`
}

// NetworkSpec describes a learned pre-/post-processing component. It is
// carried so configs resolve, but a non-empty Network rejects at launch.
type NetworkSpec struct {
	Network string `mapstructure:"network"`
	Depth   int    `mapstructure:"depth"`
	NC      []int  `mapstructure:"nc"`
}

// Display controls run-time plotting and the output gamma.
type Display struct {
	Disp  int     `mapstructure:"disp"` // log objective every N iterations, 0 disables
	Plot  bool    `mapstructure:"plot"`
	Gamma float64 `mapstructure:"gamma"`
}

// Metrics selects reconstruction quality metrics.
type Metrics struct {
	Compute bool   `mapstructure:"compute"`
	Against string `mapstructure:"against"` // ground-truth directory for benchmark mode
}

// Decode binds a resolved configuration tree to a Descriptor. Unknown tree
// keys are ignored (the tree legitimately carries groups the descriptor does
// not model); type mismatches and invalid values fail with the offending
// dotted path.
func Decode(res *config.Resolved) (*Descriptor, error) {
	desc := &Descriptor{Name: res.Name}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: desc,
	})
	if err != nil {
		return nil, fmt.Errorf("build descriptor decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(res.Tree())); err != nil {
		return nil, fmt.Errorf("%w: decode experiment descriptor: %v", config.ErrConfiguration, err)
	}

	if err := desc.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}
	return desc, nil
}
