// Package model defines the format-agnostic representation of a pipeline
// definition and its loading from HCL files.
//
// Why have a Pipeline model?
//
// The pipeline definition is authored by whoever owns the CI setup, often
// split across files next to the project. Loading consolidates every block
// into one validated structure so the rest of the harness never touches HCL
// types. The stage boundaries declared here are literals fixed at
// pipeline-definition time; keeping them in one place is what lets the
// orchestrator check them jointly against the discovered test count before
// anything runs.
package model

import (
	"fmt"

	"github.com/vk/stagehand/internal/partition"
)

// Pipeline is the root of a loaded pipeline definition.
type Pipeline struct {
	// StableBranch is the branch whose runs consume the published
	// dependency instead of building it from source.
	StableBranch string

	Suite      *Suite
	Dependency *Dependency
	Stages     []*Stage
}

// Suite describes how the test collection is discovered and executed.
type Suite struct {
	// Root is the directory walked during discovery.
	Root string
	// Match is the file name suffix that marks a test.
	Match string
	// Command is the argv prefix a stage runs for each test; the test
	// identifier is appended as the final argument.
	Command []string
}

// Dependency describes the package that must be prepared before any stage
// runs. BuildFlags is opaque to the harness and handed to the native build
// tool verbatim.
type Dependency struct {
	Name         string
	SourceURL    string
	Requirements []string
	BuildCommand []string
	BuildFlags   string
	// InstallCommand is the package-management tool argv prefix; empty means
	// the harness default.
	InstallCommand []string
}

// Stage is one independently executed slice of the test collection.
type Stage struct {
	Name     string
	Boundary partition.Boundary
	Enabled  bool
}

// EnabledStages returns the stages that will actually run.
func (p *Pipeline) EnabledStages() []*Stage {
	out := make([]*Stage, 0, len(p.Stages))
	for _, s := range p.Stages {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// StageByName returns the named stage, or an error listing what exists.
func (p *Pipeline) StageByName(name string) (*Stage, error) {
	for _, s := range p.Stages {
		if s.Name == name {
			return s, nil
		}
	}
	names := make([]string, 0, len(p.Stages))
	for _, s := range p.Stages {
		names = append(names, s.Name)
	}
	return nil, fmt.Errorf("no stage named %q in pipeline (have %v)", name, names)
}

// Boundaries returns the boundary of every enabled stage, in declaration
// order, for joint coverage checking.
func (p *Pipeline) Boundaries() []partition.Boundary {
	stages := p.EnabledStages()
	out := make([]partition.Boundary, 0, len(stages))
	for _, s := range stages {
		out = append(out, s.Boundary)
	}
	return out
}

// validate checks the consolidated pipeline for configuration errors.
func (p *Pipeline) validate() error {
	if p.StableBranch == "" {
		return fmt.Errorf("pipeline: stable_branch must not be empty")
	}
	if p.Suite == nil {
		return fmt.Errorf("pipeline: a suite block is required")
	}
	if p.Suite.Root == "" || p.Suite.Match == "" {
		return fmt.Errorf("pipeline: suite root and match must not be empty")
	}
	if len(p.Suite.Command) == 0 {
		return fmt.Errorf("pipeline: suite command must not be empty")
	}
	if len(p.Stages) == 0 {
		return fmt.Errorf("pipeline: at least one stage is required")
	}

	seen := make(map[string]struct{}, len(p.Stages))
	for _, s := range p.Stages {
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("pipeline: duplicate stage name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
		if err := s.Boundary.Validate(); err != nil {
			return fmt.Errorf("pipeline: stage %q: %w", s.Name, err)
		}
	}

	if p.Dependency != nil {
		if p.Dependency.SourceURL == "" {
			return fmt.Errorf("pipeline: dependency %q: source_url must not be empty", p.Dependency.Name)
		}
	}
	return nil
}
