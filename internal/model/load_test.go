package model

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writePipeline writes the given HCL documents into a temp dir and returns it.
func writePipeline(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

const validPipelineHCL = `
	pipeline {
		stable_branch = "stable"

		suite {
			root    = "test"
			match   = "_test.py"
			command = ["python", "-m", "unittest"]
		}

		dependency "terra" {
			source_url   = "https://example.com/terra/archive/main.tar.gz"
			requirements = ["requirements.txt", "requirements-dev.txt"]
			build_command = ["python", "setup.py", "build_ext"]
			build_flags  = "--inplace"
		}

		stage "first" {
			start = 0
			end   = 21
		}

		stage "second" {
			start = 21
		}
	}
`

func TestLoadPipeline_Valid(t *testing.T) {
	t.Parallel()

	dir := writePipeline(t, map[string]string{"main.hcl": validPipelineHCL})

	p, err := LoadPipeline(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "stable", p.StableBranch)
	require.NotNil(t, p.Suite)
	assert.Equal(t, "test", p.Suite.Root)
	assert.Equal(t, []string{"python", "-m", "unittest"}, p.Suite.Command)

	require.NotNil(t, p.Dependency)
	assert.Equal(t, "terra", p.Dependency.Name)
	assert.Equal(t, "--inplace", p.Dependency.BuildFlags)
	assert.Len(t, p.Dependency.Requirements, 2)

	require.Len(t, p.Stages, 2)
	assert.Equal(t, "first", p.Stages[0].Name)
	require.NotNil(t, p.Stages[0].Boundary.End)
	assert.Equal(t, 21, *p.Stages[0].Boundary.End)
	assert.Nil(t, p.Stages[1].Boundary.End, "second stage has an open end")
	assert.True(t, p.Stages[0].Enabled, "stages default to enabled")
}

func TestLoadPipeline_DisabledStage(t *testing.T) {
	t.Parallel()

	hcl := `
		pipeline {
			stable_branch = "stable"
			suite {
				root    = "test"
				match   = "_test.py"
				command = ["true"]
			}
			stage "on" {
				start = 0
			}
			stage "off" {
				start   = 10
				enabled = false
			}
		}
	`
	dir := writePipeline(t, map[string]string{"main.hcl": hcl})

	p, err := LoadPipeline(context.Background(), dir)
	require.NoError(t, err)

	enabled := p.EnabledStages()
	require.Len(t, enabled, 1)
	assert.Equal(t, "on", enabled[0].Name)
	require.Len(t, p.Boundaries(), 1)
}

func TestLoadPipeline_NoDependencyBlock(t *testing.T) {
	t.Parallel()

	hcl := `
		pipeline {
			stable_branch = "main"
			suite {
				root    = "spec"
				match   = "_spec.rb"
				command = ["ruby"]
			}
			stage "all" {
				start = 0
			}
		}
	`
	dir := writePipeline(t, map[string]string{"main.hcl": hcl})

	p, err := LoadPipeline(context.Background(), dir)
	require.NoError(t, err)
	assert.Nil(t, p.Dependency)
}

func TestLoadPipeline_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		hcl     string
		wantErr string
	}{
		{
			name:    "syntax error",
			hcl:     `pipeline { stable_branch = `,
			wantErr: "failed to parse",
		},
		{
			name: "negative start fails fast",
			hcl: `
				pipeline {
					stable_branch = "stable"
					suite {
						root    = "test"
						match   = "_test.py"
						command = ["true"]
					}
					stage "bad" {
						start = -1
					}
				}
			`,
			wantErr: "must not be negative",
		},
		{
			name: "start past end fails fast",
			hcl: `
				pipeline {
					stable_branch = "stable"
					suite {
						root    = "test"
						match   = "_test.py"
						command = ["true"]
					}
					stage "bad" {
						start = 10
						end   = 4
					}
				}
			`,
			wantErr: "past the end index",
		},
		{
			name: "duplicate stage names",
			hcl: `
				pipeline {
					stable_branch = "stable"
					suite {
						root    = "test"
						match   = "_test.py"
						command = ["true"]
					}
					stage "twin" {
						start = 0
					}
					stage "twin" {
						start = 5
					}
				}
			`,
			wantErr: "duplicate stage name",
		},
		{
			name: "no stages",
			hcl: `
				pipeline {
					stable_branch = "stable"
					suite {
						root    = "test"
						match   = "_test.py"
						command = ["true"]
					}
				}
			`,
			wantErr: "at least one stage",
		},
		{
			name: "missing suite",
			hcl: `
				pipeline {
					stable_branch = "stable"
					stage "all" {
						start = 0
					}
				}
			`,
			wantErr: "suite block is required",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dir := writePipeline(t, map[string]string{"main.hcl": tc.hcl})
			_, err := LoadPipeline(context.Background(), dir)
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadPipeline_ExactlyOnePipelineBlock(t *testing.T) {
	t.Parallel()

	dir := writePipeline(t, map[string]string{
		"a.hcl": validPipelineHCL,
		"b.hcl": validPipelineHCL,
	})

	_, err := LoadPipeline(context.Background(), dir)
	require.ErrorContains(t, err, "exactly one pipeline block")
}

func TestStageByName(t *testing.T) {
	t.Parallel()

	dir := writePipeline(t, map[string]string{"main.hcl": validPipelineHCL})
	p, err := LoadPipeline(context.Background(), dir)
	require.NoError(t, err)

	s, err := p.StageByName("second")
	require.NoError(t, err)
	assert.Equal(t, 21, s.Boundary.Start)

	_, err = p.StageByName("missing")
	require.ErrorContains(t, err, `no stage named "missing"`)
}
