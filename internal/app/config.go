package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// PipelinePath points at a .hcl file or a directory of .hcl files.
	PipelinePath string

	// Mode selection. Setup runs the dependency gate alone; All runs the
	// gate and then every enabled stage as independent processes; otherwise
	// a single stage runs, selected either by name or by explicit indices.
	Setup     bool
	All       bool
	StageName string

	// StartIndex and EndIndex define the stage boundary when no stage name
	// is given. A nil EndIndex means "through the last test".
	StartIndex int
	EndIndex   *int

	// Dependency-resolution inputs, read from the environment by the CLI
	// layer and injected here so the decision itself stays pure.
	ForceSourceBuild bool
	CurrentBranch    string

	// PackageDir is the root of the present package; WorkDir receives the
	// unpacked dependency source. Empty WorkDir means a fresh temp dir.
	PackageDir string
	WorkDir    string

	// Binary is the executable re-invoked per stage in All mode; empty
	// means this process's own binary.
	Binary string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	if cfg.Setup && cfg.All {
		return nil, errors.New("Setup and All modes are mutually exclusive")
	}
	if cfg.StageName != "" && (cfg.Setup || cfg.All) {
		return nil, errors.New("a stage name cannot be combined with Setup or All mode")
	}
	if cfg.PackageDir == "" {
		cfg.PackageDir = "."
	}

	return &cfg, nil
}
