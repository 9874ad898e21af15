package app_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stagehand/internal/app"
	"github.com/vk/stagehand/internal/testutil"
)

// suiteFiles builds a pipeline definition plus count recording test scripts.
// Each script writes a marker file named after itself when it runs; scripts
// whose index appears in failing exit non-zero.
func suiteFiles(count int, stagesHCL string, failing ...int) map[string]string {
	files := map[string]string{
		"pipeline/main.hcl": fmt.Sprintf(`
			pipeline {
				stable_branch = "stable"

				suite {
					root    = "__ROOT__/suite"
					match   = "_test.sh"
					command = ["sh"]
				}

				%s
			}
		`, stagesHCL),
	}

	fail := make(map[int]bool)
	for _, i := range failing {
		fail[i] = true
	}
	for i := 0; i < count; i++ {
		body := fmt.Sprintf("touch \"__ROOT__/ran-%02d\"\n", i)
		if fail[i] {
			body += "exit 1\n"
		}
		files[fmt.Sprintf("suite/%02d_test.sh", i)] = body
	}
	return files
}

// ranIndices lists which test scripts recorded a run under root.
func ranIndices(t *testing.T, root string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(root, "ran-*"))
	require.NoError(t, err)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimPrefix(filepath.Base(m), "ran-"))
	}
	return out
}

func TestRunStage_ClosedBoundaryRunsExactlyItsSlice(t *testing.T) {
	t.Parallel()

	end := 21
	result := testutil.RunPipeline(t, suiteFiles(30, `stage "all" { start = 0 }`), func(cfg *app.Config) {
		cfg.StartIndex = 0
		cfg.EndIndex = &end
	})
	require.NoError(t, result.Err)

	ran := ranIndices(t, result.Root)
	require.Len(t, ran, 21, "stage [0, 21) covers indices 0 through 20")
	assert.Equal(t, "00", ran[0])
	assert.Equal(t, "20", ran[20])
}

func TestRunStage_OpenBoundaryRunsThroughTheEnd(t *testing.T) {
	t.Parallel()

	result := testutil.RunPipeline(t, suiteFiles(30, `stage "all" { start = 0 }`), func(cfg *app.Config) {
		cfg.StartIndex = 21
	})
	require.NoError(t, result.Err)

	ran := ranIndices(t, result.Root)
	require.Len(t, ran, 9, "stage [21, end) covers indices 21 through 29")
	assert.Equal(t, "21", ran[0])
	assert.Equal(t, "29", ran[8])
}

func TestRunStage_OpenBoundarySurvivesCollectionGrowth(t *testing.T) {
	t.Parallel()

	// The collection grew from 30 to 40 tests; the open end still covers
	// everything past the literal split point.
	result := testutil.RunPipeline(t, suiteFiles(40, `stage "all" { start = 0 }`), func(cfg *app.Config) {
		cfg.StartIndex = 21
	})
	require.NoError(t, result.Err)

	ran := ranIndices(t, result.Root)
	require.Len(t, ran, 19)
	assert.Equal(t, "39", ran[18])
}

func TestRunStage_FailingTestsAreEnumerated(t *testing.T) {
	t.Parallel()

	result := testutil.RunPipeline(t, suiteFiles(5, `stage "all" { start = 0 }`, 1, 3), func(cfg *app.Config) {
		cfg.StartIndex = 0
	})
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "2 of 5 test(s) failed")
	assert.Contains(t, result.Err.Error(), "01_test.sh")
	assert.Contains(t, result.Err.Error(), "03_test.sh")

	ran := ranIndices(t, result.Root)
	assert.Len(t, ran, 5, "a failing test never stops the rest of the slice")
}

func TestRunStage_ByName(t *testing.T) {
	t.Parallel()

	stages := `
		stage "first" {
			start = 0
			end   = 3
		}
		stage "second" {
			start = 3
		}
	`
	result := testutil.RunPipeline(t, suiteFiles(5, stages), func(cfg *app.Config) {
		cfg.StageName = "second"
	})
	require.NoError(t, result.Err)

	ran := ranIndices(t, result.Root)
	assert.Equal(t, []string{"03", "04"}, ran)
}

func TestRunStage_EmptySliceTriviallySucceeds(t *testing.T) {
	t.Parallel()

	result := testutil.RunPipeline(t, suiteFiles(5, `stage "all" { start = 0 }`), func(cfg *app.Config) {
		cfg.StartIndex = 50
	})
	require.NoError(t, result.Err)
	assert.Empty(t, ranIndices(t, result.Root))
}

func TestNewApp_PanicsOnBrokenPipeline(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"pipeline/main.hcl": `pipeline { stable_branch = `,
	}
	result := testutil.RunPipeline(t, files, nil)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "application startup panicked")
	assert.Contains(t, result.Err.Error(), "failed to parse")
}

func TestNewConfig_Validation(t *testing.T) {
	t.Parallel()

	_, err := app.NewConfig(app.Config{})
	require.ErrorContains(t, err, "PipelinePath is a required configuration field")

	_, err = app.NewConfig(app.Config{PipelinePath: "p", Setup: true, All: true})
	require.ErrorContains(t, err, "mutually exclusive")

	_, err = app.NewConfig(app.Config{PipelinePath: "p", StageName: "s", All: true})
	require.ErrorContains(t, err, "cannot be combined")
}

func TestRunAll_CoverageGapFailsLoudly(t *testing.T) {
	t.Parallel()

	stages := `
		dependency "dep" {
			source_url      = "https://unused.invalid/dep.tar.gz"
			install_command = ["sh", "__ROOT__/fakepip.sh"]
		}
		stage "first" {
			start = 0
			end   = 21
		}
		stage "second" {
			start = 21
			end   = 35
		}
	`
	files := suiteFiles(40, stages)
	files["fakepip.sh"] = "exit 0\n"

	result := testutil.RunPipeline(t, files, func(cfg *app.Config) {
		cfg.All = true
		cfg.Binary = "/bin/true"
		cfg.CurrentBranch = "stable" // published path, no fetch
	})
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "unexecuted")
	assert.Empty(t, ranIndices(t, result.Root), "no stage may run on a coverage gap")
}

func TestRunAll_SetupGateFailureAbortsBeforeStages(t *testing.T) {
	t.Parallel()

	stages := `
		dependency "dep" {
			source_url      = "https://unused.invalid/dep.tar.gz"
			install_command = ["sh", "__ROOT__/fakepip.sh"]
		}
		stage "all" {
			start = 0
		}
	`
	files := suiteFiles(3, stages)
	files["fakepip.sh"] = "exit 7\n"

	result := testutil.RunPipeline(t, files, func(cfg *app.Config) {
		cfg.All = true
		cfg.Binary = "/bin/true"
		cfg.CurrentBranch = "stable"
	})
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "failed to install package")
	assert.Empty(t, ranIndices(t, result.Root))
}

func TestSetup_PublishedReleaseInstallsPackageOnly(t *testing.T) {
	t.Parallel()

	stages := `
		dependency "dep" {
			source_url      = "https://unused.invalid/dep.tar.gz"
			install_command = ["sh", "__ROOT__/fakepip.sh"]
		}
		stage "all" {
			start = 0
		}
	`
	files := suiteFiles(1, stages)
	files["fakepip.sh"] = "echo \"$@\" >> \"__ROOT__/pip-calls\"\n"

	result := testutil.RunPipeline(t, files, func(cfg *app.Config) {
		cfg.Setup = true
		cfg.CurrentBranch = "stable"
	})
	require.NoError(t, result.Err)

	calls, err := os.ReadFile(filepath.Join(result.Root, "pip-calls"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(calls)), "\n")
	require.Len(t, lines, 1, "published plan installs only the present package")
	assert.Contains(t, lines[0], "install -e "+result.Root)

	assert.Empty(t, ranIndices(t, result.Root), "setup mode never runs tests")
}

func TestSetup_BranchMismatchForcesSourceBuild(t *testing.T) {
	t.Parallel()

	stages := `
		dependency "dep" {
			source_url      = "https://unused.invalid/dep.tar.gz"
			install_command = ["sh", "__ROOT__/fakepip.sh"]
		}
		stage "all" {
			start = 0
		}
	`
	files := suiteFiles(1, stages)
	files["fakepip.sh"] = "exit 0\n"

	result := testutil.RunPipeline(t, files, func(cfg *app.Config) {
		cfg.Setup = true
		cfg.CurrentBranch = "dev"
	})
	// The source build is attempted (and fails on the unreachable URL),
	// which proves the branch mismatch selected the from-source plan.
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "failed to fetch dep source")
	assert.Contains(t, result.LogOutput, "from_source=true")
}
