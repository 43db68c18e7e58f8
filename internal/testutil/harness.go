// Package testutil provides the shared harness for integration tests that
// boot the application against an on-disk configuration tree.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lenslesscam/lenslessgo/internal/app"
	"github.com/lenslesscam/lenslessgo/internal/yamlcfg"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of a harnessed application startup.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App

	logs *SafeBuffer
}

// WriteConfigTree materializes a file map under dir. Map keys are paths
// relative to dir ("diffusercam.yaml", "psf/default.yaml").
func WriteConfigTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// StartApp writes the YAML file map into a temporary config directory and
// boots the application against it. A startup panic is converted into the
// Err field so tests can assert on it.
func StartApp(t *testing.T, configName string, files map[string]string, overrides ...string) *HarnessResult {
	t.Helper()

	configDir := t.TempDir()
	WriteConfigTree(t, configDir, files)

	appConfig := &app.Config{
		ConfigName:  configName,
		ConfigDir:   configDir,
		Overrides:   overrides,
		LogLevel:    "debug",
		LogFormat:   "text",
		WorkerCount: 4,
	}
	return StartAppWithConfig(t, appConfig)
}

// StartAppWithConfig boots the application with a caller-built Config, for
// tests that need to reach the strict mode, log, or worker knobs.
func StartAppWithConfig(t *testing.T, appConfig *app.Config) *HarnessResult {
	t.Helper()

	logBuffer := &SafeBuffer{}
	loader := yamlcfg.NewLoader(appConfig.ConfigDir)

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		testApp = app.New(logBuffer, appConfig, loader)
	}()

	if os.Getenv("LENSLESS_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	if panicErr != nil {
		return &HarnessResult{
			LogOutput: logBuffer.String(),
			Err:       fmt.Errorf("application startup panicked | %v", panicErr),
			logs:      logBuffer,
		}
	}
	return &HarnessResult{LogOutput: logBuffer.String(), App: testApp, logs: logBuffer}
}

// RunApp boots the application like StartApp and then executes the run to
// completion. Err carries the startup or run failure; LogOutput covers the
// whole lifecycle.
func RunApp(t *testing.T, configName string, files map[string]string, overrides ...string) *HarnessResult {
	t.Helper()

	configDir := t.TempDir()
	WriteConfigTree(t, configDir, files)

	return RunAppWithConfig(t, &app.Config{
		ConfigName:  configName,
		ConfigDir:   configDir,
		Overrides:   overrides,
		LogLevel:    "debug",
		LogFormat:   "text",
		WorkerCount: 4,
	})
}

// RunAppWithConfig is RunApp with a caller-built Config.
func RunAppWithConfig(t *testing.T, appConfig *app.Config) *HarnessResult {
	t.Helper()

	result := StartAppWithConfig(t, appConfig)
	if result.Err != nil {
		return result
	}

	result.Err = result.App.Run(context.Background())
	result.LogOutput = result.logs.String()

	if os.Getenv("LENSLESS_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), result.LogOutput)
	}
	return result
}
