// Package testutil provides a standardized harness for integration tests
// that exercise the app against a real pipeline definition on disk.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/stagehand/internal/app"
)

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	Root      string
}

// RunPipeline writes the given files into a temporary root, builds an app
// against the pipeline files under "pipeline/", and runs it. The literal
// "__ROOT__" in any file content is replaced by the absolute temporary root,
// which lets pipeline definitions reference suite files by absolute path.
//
// The configure callback may adjust the app.Config (mode selection, indices)
// before the app is constructed.
func RunPipeline(t *testing.T, files map[string]string, configure func(*app.Config)) *HarnessResult {
	t.Helper()
	return RunPipelineWithContext(context.Background(), t, files, configure)
}

// RunPipelineWithContext is RunPipeline with a caller-provided context.
func RunPipelineWithContext(ctx context.Context, t *testing.T, files map[string]string, configure func(*app.Config)) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		content = strings.ReplaceAll(content, "__ROOT__", tmpDir)
		mode := os.FileMode(0644)
		if strings.HasSuffix(name, ".sh") {
			mode = 0755
		}
		require.NoError(t, os.WriteFile(filePath, []byte(content), mode))
	}

	cfg, err := app.NewConfig(app.Config{
		PipelinePath: filepath.Join(tmpDir, "pipeline"),
		LogLevel:     "debug",
		LogFormat:    "text",
		PackageDir:   tmpDir,
		WorkDir:      filepath.Join(tmpDir, "work"),
	})
	require.NoError(t, err)
	if configure != nil {
		configure(cfg)
	}

	logBuffer := &SafeBuffer{}

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		testApp = app.NewApp(logBuffer, cfg)
	}()

	if panicErr != nil {
		return &HarnessResult{
			LogOutput: logBuffer.String(),
			Err:       fmt.Errorf("application startup panicked | %v", panicErr),
			Root:      tmpDir,
		}
	}

	runErr := testApp.Run(ctx)

	if os.Getenv("STAGEHAND_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		App:       testApp,
		Root:      tmpDir,
	}
}
