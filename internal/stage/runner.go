package stage

import (
	"context"
	"os/exec"
	"time"

	"github.com/vk/stagehand/internal/ctxlog"
)

// Runner executes tests with the suite command configured in the pipeline.
type Runner struct {
	// command is the argv prefix; the test identifier is appended as the
	// final argument of every invocation.
	command []string
}

// NewRunner creates a Runner for the given suite command.
func NewRunner(command []string) *Runner {
	if len(command) == 0 {
		panic("stage: suite command must not be empty")
	}
	return &Runner{command: command}
}

// Run executes every test in order and returns the aggregated result. Each
// test runs in its own subprocess; a failure is recorded with the combined
// output and the slice keeps going.
func (r *Runner) Run(ctx context.Context, name string, tests []string) *Result {
	logger := ctxlog.FromContext(ctx).With("stage", name)
	logger.Info("Stage started.", "tests", len(tests))

	result := &Result{Stage: name, Total: len(tests)}
	for i, test := range tests {
		started := time.Now()

		argv := append(append([]string{}, r.command...), test)
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		out, err := cmd.CombinedOutput()

		if err != nil {
			logger.Error("Test failed.", "test", test, "index", i, "duration", time.Since(started), "error", err)
			result.Failures = append(result.Failures, Failure{
				Test:   test,
				Output: string(out),
				Err:    err,
			})
			continue
		}
		logger.Debug("Test passed.", "test", test, "index", i, "duration", time.Since(started))
	}

	if result.OK() {
		logger.Info("Stage finished.", "tests", len(tests), "failed", 0)
	} else {
		logger.Error("Stage finished with failures.", "tests", len(tests), "failed", len(result.Failures))
	}
	return result
}
