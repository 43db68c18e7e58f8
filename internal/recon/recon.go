// Package recon provides the reconstruction solvers that invert a lensless
// measurement into a scene estimate. Solvers operate on one channel at a
// time; color measurements are handled channel-wise by the caller.
package recon

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lenslesscam/lenslessgo/internal/experiment"
	"github.com/lenslesscam/lenslessgo/internal/imageio"
)

// Solver runs one reconstruction against a single-channel measurement.
type Solver interface {
	Run(ctx context.Context, meas *imageio.Plane, opts RunOptions) (*Result, error)
}

// RunOptions adjusts a single Run without rebuilding the solver.
type RunOptions struct {
	// MaxIter overrides the solver's configured iteration count when > 0.
	MaxIter int
	// DispIter emits a progress log every DispIter iterations when > 0.
	DispIter int
	// OnIter, when set, is called after every iteration with the current
	// objective value.
	OnIter func(iter int, objective float64)
}

// Result holds a finished reconstruction.
type Result struct {
	// Image is the final estimate, non-negative, measurement-sized.
	Image *imageio.Plane
	// Iterations is the number of iterations actually run.
	Iterations int
	// Objective traces the data-fidelity objective per iteration. Closed-form
	// solvers leave it nil.
	Objective []float64
}

// Factory builds a solver for one measurement channel from the matching PSF
// channel and the reconstruction settings.
type Factory func(psf *imageio.Plane, rc experiment.Reconstruction) (Solver, error)

var factories = map[string]Factory{}

// Register makes a solver factory available under the given method name.
// Registering a duplicate name is a programmer error and panics.
func Register(name string, f Factory) {
	if name == "" || f == nil {
		panic("recon: Register called with empty name or nil factory")
	}
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("recon: Register called twice for %q", name))
	}
	factories[name] = f
}

// New builds the solver registered under method.
func New(method string, psf *imageio.Plane, rc experiment.Reconstruction) (Solver, error) {
	f, ok := factories[method]
	if !ok {
		return nil, fmt.Errorf("unknown reconstruction method %q (known: %s)", method, strings.Join(Methods(), ", "))
	}
	return f(psf, rc)
}

// Methods returns the registered method names, sorted.
func Methods() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
