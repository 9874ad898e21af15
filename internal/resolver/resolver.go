// Package resolver decides whether the dependent package is built from its
// unreleased source or consumed as a published release, and applies that
// decision before any test stage runs.
//
// The decision is deliberately pure: every input arrives in a Config rather
// than being read from ambient process state, so the policy is independently
// testable. Side effects (fetching, building, installing) live behind
// collaborator interfaces and only happen in Apply.
package resolver

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vk/stagehand/internal/ctxlog"
	"github.com/vk/stagehand/internal/model"
)

// Config carries the resolution inputs.
type Config struct {
	// ForceSourceBuild unconditionally selects the from-source plan.
	ForceSourceBuild bool
	// CurrentBranch is the branch this run executes on.
	CurrentBranch string
	// StableBranch is the branch whose runs consume the published release.
	StableBranch string
}

// Plan is the resolved decision. It is computed once per pipeline invocation
// and never mutated afterward.
type Plan struct {
	FromSource bool
}

// Resolve computes the plan: build from source when explicitly forced, or
// whenever the run is not on the stable branch. Runs on a development branch
// thereby validate against the dependency's latest unreleased state, while
// stable-branch runs avoid the cost and non-determinism of a source build.
func Resolve(cfg Config) Plan {
	return Plan{
		FromSource: cfg.ForceSourceBuild || cfg.CurrentBranch != cfg.StableBranch,
	}
}

// Fetcher downloads the dependency's source archive and unpacks it, returning
// the directory holding the unpacked source tree.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Installer is the external package-management tool. Editable performs an
// editable/local-mode install of the package rooted at dir.
type Installer interface {
	Requirements(ctx context.Context, file string) error
	Editable(ctx context.Context, dir string) error
}

// Builder is the native build tool. The flags string is opaque to the
// harness and handed over verbatim.
type Builder interface {
	Build(ctx context.Context, dir string, command []string, flags string) error
}

// Resolver applies a plan using the injected collaborators.
type Resolver struct {
	fetcher   Fetcher
	installer Installer
	builder   Builder

	// packageDir is the root of the present package, installed in editable
	// mode at the end of every plan.
	packageDir string
}

// New wires a Resolver from its collaborators.
func New(fetcher Fetcher, installer Installer, builder Builder, packageDir string) *Resolver {
	return &Resolver{
		fetcher:    fetcher,
		installer:  installer,
		builder:    builder,
		packageDir: packageDir,
	}
}

// Apply executes the plan. Any failure is fatal to the pipeline: the caller
// must not start a single stage unless Apply returned nil. There is no
// retry; build environments are assumed transient and freshly provisioned.
func (r *Resolver) Apply(ctx context.Context, plan Plan, dep *model.Dependency) error {
	logger := ctxlog.FromContext(ctx)

	if !plan.FromSource || dep == nil {
		logger.Info("Using published dependency release.")
		if err := r.installer.Editable(ctx, r.packageDir); err != nil {
			return fmt.Errorf("failed to install package: %w", err)
		}
		return nil
	}

	logger.Info("Building dependency from source.", "dependency", dep.Name, "source_url", dep.SourceURL)

	srcDir, err := r.fetcher.Fetch(ctx, dep.SourceURL)
	if err != nil {
		return fmt.Errorf("failed to fetch %s source: %w", dep.Name, err)
	}

	for _, req := range dep.Requirements {
		if err := r.installer.Requirements(ctx, filepath.Join(srcDir, req)); err != nil {
			return fmt.Errorf("failed to install %s requirements from %s: %w", dep.Name, req, err)
		}
	}

	if len(dep.BuildCommand) > 0 {
		if err := r.builder.Build(ctx, srcDir, dep.BuildCommand, dep.BuildFlags); err != nil {
			return fmt.Errorf("failed to build %s from source: %w", dep.Name, err)
		}
	}

	if err := r.installer.Editable(ctx, srcDir); err != nil {
		return fmt.Errorf("failed to install %s in editable mode: %w", dep.Name, err)
	}

	if err := r.installer.Editable(ctx, r.packageDir); err != nil {
		return fmt.Errorf("failed to install package: %w", err)
	}

	logger.Info("Dependency prepared from source.", "dependency", dep.Name)
	return nil
}
