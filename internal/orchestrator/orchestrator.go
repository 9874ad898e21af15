// Package orchestrator launches every enabled stage of a pipeline as an
// independent OS process and rolls their exit codes into the pipeline
// verdict.
//
// Stages are process-level jobs, not cooperative tasks: they share no
// mutable state, never communicate with each other, and a failing stage does
// not stop its siblings. The only coordination points are before the fan-out
// (the joint coverage check over all boundaries) and after it (the verdict).
package orchestrator

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/vk/stagehand/internal/ctxlog"
	"github.com/vk/stagehand/internal/model"
	"github.com/vk/stagehand/internal/partition"
	"github.com/vk/stagehand/internal/results"
)

// Orchestrator fans a pipeline's stages out as subprocesses of the given
// binary. baseArgs are prepended to every stage invocation; the stage's own
// boundary is appended per the stage invocation contract (optional -end
// flag, then the start index as the positional argument).
type Orchestrator struct {
	binary   string
	baseArgs []string
	outW     io.Writer
}

// New creates an Orchestrator.
func New(binary string, baseArgs []string, outW io.Writer) *Orchestrator {
	return &Orchestrator{
		binary:   binary,
		baseArgs: baseArgs,
		outW:     outW,
	}
}

// RunAll checks the stage layout against the discovered test count, launches
// every enabled stage concurrently, waits for all of them, and returns the
// recorded outcomes. The returned store is complete even when the verdict is
// a failure.
//
// The coverage check runs first and fails loudly: a boundary layout that
// leaves tests unexecuted or runs them twice aborts the run before a single
// stage starts.
func (o *Orchestrator) RunAll(ctx context.Context, p *model.Pipeline, total int) (*results.Store, error) {
	logger := ctxlog.FromContext(ctx)

	if err := partition.CheckCoverage(p.Boundaries(), total); err != nil {
		return nil, err
	}

	stages := p.EnabledStages()
	logger.Info("🚀 Launching stages.", "stages", len(stages), "tests", total)

	store := results.New()
	var wg sync.WaitGroup
	for _, s := range stages {
		wg.Add(1)
		go func(s *model.Stage) {
			defer wg.Done()
			store.Set(o.launch(ctx, s))
		}(s)
	}
	wg.Wait()

	if err := store.Verdict(); err != nil {
		logger.Error("🏁 Pipeline finished with failures.", "error", err)
		return store, err
	}
	logger.Info("🏁 Pipeline finished.", "stages", len(stages))
	return store, nil
}

// launch runs one stage to completion as a subprocess and records its
// outcome. A non-zero exit is an outcome, not a launch error; sibling
// stages keep running either way.
func (o *Orchestrator) launch(ctx context.Context, s *model.Stage) results.Outcome {
	logger := ctxlog.FromContext(ctx).With("stage", s.Name)

	args := append([]string{}, o.baseArgs...)
	if s.Boundary.End != nil {
		args = append(args, "-end", strconv.Itoa(*s.Boundary.End))
	}
	args = append(args, strconv.Itoa(s.Boundary.Start))

	logger.Info("Stage job starting.", "boundary", s.Boundary.String())
	started := time.Now()

	cmd := exec.CommandContext(ctx, o.binary, args...)
	cmd.Stdout = o.outW
	cmd.Stderr = o.outW
	err := cmd.Run()

	outcome := results.Outcome{Stage: s.Name, Duration: time.Since(started)}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		logger.Info("Stage job succeeded.", "duration", outcome.Duration)
	case errors.As(err, &exitErr):
		outcome.ExitCode = exitErr.ExitCode()
		logger.Error("Stage job failed.", "exit_code", outcome.ExitCode, "duration", outcome.Duration)
	default:
		outcome.Err = err
		logger.Error("Stage job could not be launched.", "error", err)
	}
	return outcome
}
