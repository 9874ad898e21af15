package model

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stagehand/internal/ctxlog"
	"github.com/vk/stagehand/internal/fsutil"
)

// hclFile represents the top-level structure of a pipeline file for decoding.
type hclFile struct {
	Pipelines []*hclPipeline `hcl:"pipeline,block"`
}

type hclPipeline struct {
	StableBranch string           `hcl:"stable_branch"`
	Suite        *hclSuite        `hcl:"suite,block"`
	Dependencies []*hclDependency `hcl:"dependency,block"`
	Stages       []*hclStage      `hcl:"stage,block"`
}

type hclSuite struct {
	Root    string   `hcl:"root"`
	Match   string   `hcl:"match"`
	Command []string `hcl:"command"`
}

type hclDependency struct {
	Name           string   `hcl:"name,label"`
	SourceURL      string   `hcl:"source_url"`
	Requirements   []string `hcl:"requirements,optional"`
	BuildCommand   []string `hcl:"build_command,optional"`
	BuildFlags     string   `hcl:"build_flags,optional"`
	InstallCommand []string `hcl:"install_command,optional"`
}

type hclStage struct {
	Name    string         `hcl:"name,label"`
	Start   int            `hcl:"start"`
	End     *int           `hcl:"end,optional"`
	Enabled hcl.Expression `hcl:"enabled,optional"`
}

// LoadPipeline finds and parses all HCL files under the given path (a single
// file or a directory) and consolidates them into one validated Pipeline.
// Exactly one pipeline block must exist across all files.
func LoadPipeline(ctx context.Context, path string) (*Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading pipeline definition.", "path", path)

	files, err := fsutil.FindFilesBySuffix(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to find pipeline files in %s: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl pipeline files found in %s", path)
	}

	parser := hclparse.NewParser()
	var pipelines []*hclPipeline
	for _, file := range files {
		hclF, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %w", file, diags)
		}
		var parsed hclFile
		if diags := gohcl.DecodeBody(hclF.Body, nil, &parsed); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode %s: %w", file, diags)
		}
		pipelines = append(pipelines, parsed.Pipelines...)
	}

	if len(pipelines) != 1 {
		return nil, fmt.Errorf("expected exactly one pipeline block across %d file(s), found %d", len(files), len(pipelines))
	}

	pipeline, err := translatePipeline(pipelines[0])
	if err != nil {
		return nil, err
	}
	if err := pipeline.validate(); err != nil {
		return nil, err
	}

	logger.Info("Pipeline definition loaded.", "stages", len(pipeline.Stages), "has_dependency", pipeline.Dependency != nil)
	return pipeline, nil
}

// translatePipeline converts the HCL-specific schema into the agnostic model.
func translatePipeline(src *hclPipeline) (*Pipeline, error) {
	p := &Pipeline{StableBranch: src.StableBranch}

	if src.Suite != nil {
		p.Suite = &Suite{
			Root:    src.Suite.Root,
			Match:   src.Suite.Match,
			Command: src.Suite.Command,
		}
	}

	if len(src.Dependencies) > 1 {
		return nil, fmt.Errorf("pipeline: at most one dependency block is supported, found %d", len(src.Dependencies))
	}
	if len(src.Dependencies) == 1 {
		d := src.Dependencies[0]
		p.Dependency = &Dependency{
			Name:           d.Name,
			SourceURL:      d.SourceURL,
			Requirements:   d.Requirements,
			BuildCommand:   d.BuildCommand,
			BuildFlags:     d.BuildFlags,
			InstallCommand: d.InstallCommand,
		}
	}

	for _, s := range src.Stages {
		stage, err := translateStage(s)
		if err != nil {
			return nil, err
		}
		p.Stages = append(p.Stages, stage)
	}
	return p, nil
}

func translateStage(src *hclStage) (*Stage, error) {
	stage := &Stage{
		Name:    src.Name,
		Enabled: true,
	}
	stage.Boundary.Start = src.Start
	stage.Boundary.End = src.End

	// The enabled attribute is captured as a raw expression so the author can
	// write more than a bare literal; evaluation happens here, once, with no
	// ambient variables. gohcl hands us a null literal when the attribute is
	// absent, which means "use the default".
	if src.Enabled != nil {
		val, diags := src.Enabled.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("stage %q: failed to evaluate enabled: %w", src.Name, diags)
		}
		if !val.IsNull() {
			if !val.Type().Equals(cty.Bool) {
				return nil, fmt.Errorf("stage %q: enabled must be a boolean", src.Name)
			}
			stage.Enabled = val.True()
		}
	}
	return stage, nil
}
