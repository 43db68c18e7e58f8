package yamlcfg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenslesscam/lenslessgo/internal/config"
)

// writeConfigDir materializes a map of relative file names to YAML contents
// under a fresh temp directory.
func writeConfigDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestLoad_ComposesDefaultsInOrder(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := writeConfigDir(t, map[string]string{
		"defaults_train.yaml": `
training:
  epoch: 25
  batch_size: 8
`,
		"tapecam.yaml": `
defaults:
  - defaults_train
  - _self_

files:
  dataset: tapecam
training:
  batch_size: 4
`,
	})

	// --- Act ---
	stack, err := NewLoader(dir).Load(context.Background(), "tapecam")

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, stack.Layers, 2)
	assert.Equal(t, "defaults_train", stack.Layers[0].Name)
	assert.Equal(t, config.SelfName, stack.Layers[1].Name)

	resolved, err := config.Resolve(stack, nil, false)
	require.NoError(t, err)

	expected := config.Tree{
		"training": map[string]any{"epoch": 25, "batch_size": 4},
		"files":    map[string]any{"dataset": "tapecam"},
	}
	if diff := cmp.Diff(expected, resolved.Tree()); diff != "" {
		t.Errorf("resolved tree mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_SelfPositionRespected(t *testing.T) {
	t.Parallel()

	dir := writeConfigDir(t, map[string]string{
		"base.yaml": `
training:
  epoch: 100
`,
		"exp.yaml": `
defaults:
  - _self_
  - base

training:
  epoch: 5
`,
	})

	stack, err := NewLoader(dir).Load(context.Background(), "exp")
	require.NoError(t, err)

	resolved, err := config.Resolve(stack, nil, false)
	require.NoError(t, err)

	// _self_ listed first means the base group wins.
	v, ok := resolved.Get("training.epoch")
	require.True(t, ok)
	assert.Equal(t, 100, v)
}

func TestLoad_ImplicitSelfLast(t *testing.T) {
	t.Parallel()

	dir := writeConfigDir(t, map[string]string{
		"base.yaml": "training: {epoch: 100}\n",
		"exp.yaml": `
defaults:
  - base

training:
  epoch: 5
`,
	})

	stack, err := NewLoader(dir).Load(context.Background(), "exp")
	require.NoError(t, err)

	resolved, err := config.Resolve(stack, nil, false)
	require.NoError(t, err)

	v, ok := resolved.Get("training.epoch")
	require.True(t, ok)
	assert.Equal(t, 5, v, "a document without _self_ places its own keys last")
}

func TestLoad_NestedDefaultsAndSubgroups(t *testing.T) {
	t.Parallel()

	dir := writeConfigDir(t, map[string]string{
		"common.yaml": "display: {gamma: 2.2}\n",
		"defaults_train.yaml": `
defaults:
  - common
  - _self_

training:
  epoch: 25
`,
		"psf/tapecam.yaml": "files: {psf: tapecam_psf.png}\n",
		"exp.yaml": `
defaults:
  - defaults_train
  - psf/tapecam
  - _self_

files:
  dataset: tapecam
`,
	})

	stack, err := NewLoader(dir).Load(context.Background(), "exp")
	require.NoError(t, err)

	names := make([]string, 0, len(stack.Layers))
	for _, l := range stack.Layers {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"common", "defaults_train", "psf/tapecam", config.SelfName}, names)

	resolved, err := config.Resolve(stack, nil, false)
	require.NoError(t, err)

	v, ok := resolved.Get("files.psf")
	require.True(t, ok)
	assert.Equal(t, "tapecam_psf.png", v)
	v, ok = resolved.Get("display.gamma")
	require.True(t, ok)
	assert.Equal(t, 2.2, v)
}

func TestLoad_SharedGroupComposedOnce(t *testing.T) {
	t.Parallel()

	dir := writeConfigDir(t, map[string]string{
		"shared.yaml": "display: {gamma: 2.2}\n",
		"a.yaml":      "defaults: [shared, _self_]\nalignment: {height: 200}\n",
		"b.yaml":      "defaults: [shared, _self_]\nfiles: {downsample: 2}\n",
		"exp.yaml":    "defaults: [a, b, _self_]\n",
	})

	stack, err := NewLoader(dir).Load(context.Background(), "exp")
	require.NoError(t, err)

	count := 0
	for _, l := range stack.Layers {
		if l.Name == "shared" {
			count++
		}
	}
	assert.Equal(t, 1, count, "a group reached twice composes once")

	_, err = config.Resolve(stack, nil, false)
	require.NoError(t, err)
}

func TestLoad_CycleDetected(t *testing.T) {
	t.Parallel()

	dir := writeConfigDir(t, map[string]string{
		"a.yaml": "defaults: [b, _self_]\n",
		"b.yaml": "defaults: [a, _self_]\n",
	})

	_, err := NewLoader(dir).Load(context.Background(), "a")
	require.Error(t, err)

	var cycle *config.DefaultsCycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "b", "a"}, cycle.Chain)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestLoad_UnknownGroup(t *testing.T) {
	t.Parallel()

	dir := writeConfigDir(t, map[string]string{
		"exp.yaml": "defaults: [missing_group, _self_]\n",
	})

	_, err := NewLoader(dir).Load(context.Background(), "exp")
	require.Error(t, err)

	var unknown *config.UnknownGroupError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing_group", unknown.Group)
}

func TestLoad_MissingConfigName(t *testing.T) {
	t.Parallel()

	dir := writeConfigDir(t, map[string]string{})

	_, err := NewLoader(dir).Load(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestLoad_GroupListedTwice(t *testing.T) {
	t.Parallel()

	dir := writeConfigDir(t, map[string]string{
		"base.yaml": "training: {epoch: 1}\n",
		"exp.yaml":  "defaults: [base, base, _self_]\n",
	})

	_, err := NewLoader(dir).Load(context.Background(), "exp")
	require.Error(t, err)

	var dup *config.DuplicateDefaultsError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, [2]string{"base", "base"}, dup.Groups)
}

func TestLoad_YmlFallbackExtension(t *testing.T) {
	t.Parallel()

	dir := writeConfigDir(t, map[string]string{
		"exp.yml": "files: {dataset: diffusercam}\n",
	})

	stack, err := NewLoader(dir).Load(context.Background(), "exp")
	require.NoError(t, err)
	require.Len(t, stack.Layers, 1)
}

func TestLoad_MalformedDocuments(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		content string
	}{
		{name: "invalid yaml", content: "files: {dataset: [\n"},
		{name: "root is a list", content: "- a\n- b\n"},
		{name: "defaults not a list", content: "defaults: defaults_train\n"},
		{name: "defaults entry not a string", content: "defaults: [{group: x}]\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			dir := writeConfigDir(t, map[string]string{"exp.yaml": tc.content})

			_, err := NewLoader(dir).Load(context.Background(), "exp")
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrConfiguration)
		})
	}
}

func TestLoad_EmptyDocumentIsValid(t *testing.T) {
	t.Parallel()

	dir := writeConfigDir(t, map[string]string{
		"empty.yaml": "",
		"exp.yaml":   "defaults: [empty, _self_]\nfiles: {dataset: x}\n",
	})

	stack, err := NewLoader(dir).Load(context.Background(), "exp")
	require.NoError(t, err)

	resolved, err := config.Resolve(stack, nil, false)
	require.NoError(t, err)
	v, ok := resolved.Get("files.dataset")
	require.True(t, ok)
	assert.Equal(t, "x", v)
}
