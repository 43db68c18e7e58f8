package integration_tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenslesscam/lenslessgo/internal/testutil"
)

// TestConfigMerges_DefaultsComposition validates that an experiment file
// composes its defaults groups in list order, with its own keys on top.
func TestConfigMerges_DefaultsComposition(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := map[string]string{
		"base.yaml": `
files:
  dataset: base_dataset
  n_files: 10
  extension: npy
reconstruction:
  method: admm
  admm:
    n_iter: 100
`,
		"psf/mirrored.yaml": `
preprocess:
  flip: true
  single_psf: true
`,
		"experiment.yaml": `
defaults:
  - base
  - psf/mirrored
  - _self_

files:
  dataset: camera_a
alignment:
  height: 250
`,
	}

	// --- Act ---
	result := testutil.StartApp(t, "experiment", files)

	// --- Assert ---
	require.NoError(t, result.Err)
	desc := result.App.Descriptor()

	// Own keys win over the defaults groups.
	assert.Equal(t, "camera_a", desc.Files.Dataset)
	// Keys absent from higher layers keep the base group's value.
	assert.Equal(t, 10, desc.Files.NFiles)
	assert.Equal(t, "admm", desc.Reconstruction.Method)
	assert.Equal(t, 100, desc.Reconstruction.ADMM.NIter)
	// The path-separated psf group contributes its own leaves.
	assert.True(t, desc.Preprocess.Flip)
	assert.True(t, desc.Preprocess.SinglePSF)
	assert.Equal(t, 250, desc.Alignment.Height)

	// Provenance records which layer supplied each winning leaf.
	resolved := result.App.Resolved()
	assert.Equal(t, "_self_", resolved.Provenance["files.dataset"])
	assert.Equal(t, "base", resolved.Provenance["files.n_files"])
	assert.Equal(t, "psf/mirrored", resolved.Provenance["preprocess.flip"])
}

// TestConfigMerges_OverridesWin validates that command-line overrides beat
// every configuration layer, and that a null override disables exactly the
// addressed sub-component.
func TestConfigMerges_OverridesWin(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := map[string]string{
		"base.yaml": `
files:
  dataset: camera_a
  n_files: 10
reconstruction:
  method: unrolled_admm
  post_process:
    network: UnetRes
    depth: 4
    nc: [32, 64, 116, 128]
`,
		"experiment.yaml": `
defaults:
  - base
  - _self_

reconstruction:
  method: admm
`,
	}

	// --- Act ---
	result := testutil.StartApp(t, "experiment", files,
		"reconstruction.method=apgd",
		"files.n_files=3",
		"reconstruction.post_process.network=null",
	)

	// --- Assert ---
	require.NoError(t, result.Err)
	desc := result.App.Descriptor()

	assert.Equal(t, "apgd", desc.Reconstruction.Method)
	assert.Equal(t, 3, desc.Files.NFiles)

	// The null sentinel unsets the network, leaving its siblings intact.
	require.NotNil(t, desc.Reconstruction.PostProcess)
	assert.Empty(t, desc.Reconstruction.PostProcess.Network)
	assert.Equal(t, 4, desc.Reconstruction.PostProcess.Depth)
	assert.Equal(t, []int{32, 64, 116, 128}, desc.Reconstruction.PostProcess.NC)
	assert.Equal(t, "camera_a", desc.Files.Dataset)

	resolved := result.App.Resolved()
	assert.Equal(t, "override", resolved.Provenance["reconstruction.method"])
	assert.Equal(t, "override", resolved.Provenance["reconstruction.post_process.network"])
	assert.Equal(t, "base", resolved.Provenance["reconstruction.post_process.depth"])
}

// TestConfigMerges_ListsReplaceWholly validates that a list value from a
// higher layer replaces the lower layer's list in full, never concatenates.
func TestConfigMerges_ListsReplaceWholly(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := map[string]string{
		"base.yaml": `
reconstruction:
  method: admm
  pre_process:
    network: UnetRes
    nc: [32, 64, 116, 128]
`,
		"experiment.yaml": `
defaults:
  - base
  - _self_

reconstruction:
  pre_process:
    nc: [64, 64, 128]
`,
	}

	// --- Act ---
	result := testutil.StartApp(t, "experiment", files)

	// --- Assert ---
	require.NoError(t, result.Err)
	desc := result.App.Descriptor()
	require.NotNil(t, desc.Reconstruction.PreProcess)
	assert.Equal(t, []int{64, 64, 128}, desc.Reconstruction.PreProcess.NC)
}

// TestConfigMerges_SelfPlacement validates that the position of _self_ in
// the defaults list controls whether a document's own keys win or lose
// against its groups, and that an absent _self_ means the own keys win.
func TestConfigMerges_SelfPlacement(t *testing.T) {
	t.Parallel()

	base := `
files:
  dataset: from_base
reconstruction:
  method: admm
`

	t.Run("self before group loses to the group", func(t *testing.T) {
		t.Parallel()

		// --- Arrange ---
		files := map[string]string{
			"base.yaml": base,
			"experiment.yaml": `
defaults:
  - _self_
  - base

files:
  dataset: from_self
`,
		}

		// --- Act ---
		result := testutil.StartApp(t, "experiment", files)

		// --- Assert ---
		require.NoError(t, result.Err)
		assert.Equal(t, "from_base", result.App.Descriptor().Files.Dataset)
	})

	t.Run("absent self is implicitly last", func(t *testing.T) {
		t.Parallel()

		// --- Arrange ---
		files := map[string]string{
			"base.yaml": base,
			"experiment.yaml": `
defaults:
  - base

files:
  dataset: from_self
`,
		}

		// --- Act ---
		result := testutil.StartApp(t, "experiment", files)

		// --- Assert ---
		require.NoError(t, result.Err)
		assert.Equal(t, "from_self", result.App.Descriptor().Files.Dataset)
	})
}

// TestConfigMerges_NonStrictOverrideCreatesPath validates that without
// strict mode an override may address a path no layer defines, creating
// the group with only that key.
func TestConfigMerges_NonStrictOverrideCreatesPath(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := map[string]string{
		"experiment.yaml": `
files:
  dataset: camera_a
reconstruction:
  method: admm
`,
	}

	// --- Act ---
	result := testutil.StartApp(t, "experiment", files, "reconstruction.unrolled_admm.n_iter=10")

	// --- Assert ---
	require.NoError(t, result.Err)
	desc := result.App.Descriptor()
	require.NotNil(t, desc.Reconstruction.UnrolledADMM)
	assert.Equal(t, 10, desc.Reconstruction.UnrolledADMM["n_iter"])

	value, ok := result.App.Resolved().Get("reconstruction.unrolled_admm.n_iter")
	require.True(t, ok)
	assert.Equal(t, 10, value)
}
