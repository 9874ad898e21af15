package app

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/stagehand/internal/collection"
	"github.com/vk/stagehand/internal/ctxlog"
	"github.com/vk/stagehand/internal/orchestrator"
	"github.com/vk/stagehand/internal/partition"
	"github.com/vk/stagehand/internal/resolver"
	"github.com/vk/stagehand/internal/stage"
)

// Run executes the selected mode. The error it returns is the pipeline (or
// stage) verdict: nil means success.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
	}

	switch {
	case a.config.Setup:
		return a.runSetup(ctx)
	case a.config.All:
		return a.runAll(ctx)
	default:
		return a.runStage(ctx)
	}
}

// runSetup executes the dependency-resolution gate. Stages must not run
// unless this returned nil.
func (a *App) runSetup(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	cfg := resolver.Config{
		ForceSourceBuild: a.config.ForceSourceBuild,
		CurrentBranch:    a.config.CurrentBranch,
		StableBranch:     a.pipeline.StableBranch,
	}
	plan := resolver.Resolve(cfg)
	logger.Info("Dependency resolution decided.",
		"from_source", plan.FromSource,
		"branch", cfg.CurrentBranch,
		"stable_branch", cfg.StableBranch,
		"forced", cfg.ForceSourceBuild)

	workDir := a.config.WorkDir
	if workDir == "" {
		dir, err := os.MkdirTemp("", "stagehand-dep-*")
		if err != nil {
			return fmt.Errorf("failed to create dependency work dir: %w", err)
		}
		workDir = dir
	}

	fetcher := resolver.NewArchiveFetcher(workDir)
	defer fetcher.Close()

	var installTool []string
	if a.pipeline.Dependency != nil {
		installTool = a.pipeline.Dependency.InstallCommand
	}
	r := resolver.New(fetcher, resolver.NewExecInstaller(installTool), resolver.ExecBuilder{}, a.config.PackageDir)

	return r.Apply(ctx, plan, a.pipeline.Dependency)
}

// runAll runs the setup gate and then every enabled stage as an independent
// process.
func (a *App) runAll(ctx context.Context) error {
	if err := a.runSetup(ctx); err != nil {
		return err
	}

	tests, err := collection.Discover(ctx, a.pipeline.Suite.Root, a.pipeline.Suite.Match)
	if err != nil {
		return err
	}

	binary := a.config.Binary
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to locate own binary: %w", err)
		}
		binary = exe
	}

	baseArgs := []string{
		"-pipeline", a.config.PipelinePath,
		"-log-format", a.config.LogFormat,
		"-log-level", a.config.LogLevel,
	}
	o := orchestrator.New(binary, baseArgs, a.outW)

	_, err = o.RunAll(ctx, a.pipeline, tests.Count())
	return err
}

// runStage executes a single stage in this process, selected either by name
// from the pipeline definition or by the explicit indices from argv.
func (a *App) runStage(ctx context.Context) error {
	name := a.config.StageName
	var boundary partition.Boundary
	if name != "" {
		s, err := a.pipeline.StageByName(name)
		if err != nil {
			return err
		}
		boundary = s.Boundary
	} else {
		boundary = partition.Boundary{Start: a.config.StartIndex, End: a.config.EndIndex}
		name = boundary.String()
	}

	tests, err := collection.Discover(ctx, a.pipeline.Suite.Root, a.pipeline.Suite.Match)
	if err != nil {
		return err
	}

	lo, hi, err := boundary.Slice(tests.Count())
	if err != nil {
		return err
	}

	runner := stage.NewRunner(a.pipeline.Suite.Command)
	result := runner.Run(ctx, name, tests.Slice(lo, hi))
	return result.Err()
}
