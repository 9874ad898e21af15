package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/vk/stagehand/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments and the resolver-relevant
// environment. It returns a populated app.Config, a boolean indicating if
// the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("stagehand", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
Stagehand - a CI harness that prepares a dependency and runs staged test slices.

Usage:
  stagehand [options] START_INDEX     run the stage covering [START_INDEX, end)
  stagehand [options] -stage NAME     run the named stage from the pipeline
  stagehand [options] -setup          run the dependency gate only
  stagehand [options] -all            setup, then every stage as its own process

Arguments:
  START_INDEX
    Index of the first test of this stage's slice (non-negative).

Environment:
  STAGEHAND_SOURCE_DEP
    Boolean; force building the dependency from unreleased source.
  STAGEHAND_BRANCH (fallback: GIT_BRANCH)
    Branch this run executes on, compared against the pipeline's stable branch.

Options:
`)
		flagSet.PrintDefaults()
	}

	pipelineFlag := flagSet.String("pipeline", "", "Path to the pipeline .hcl file or directory.")
	pFlag := flagSet.String("p", "", "Path to the pipeline .hcl file or directory (shorthand).")
	endFlag := flagSet.Int("end", -1, "End index of this stage's slice (exclusive). Absent means through the last test.")
	stageFlag := flagSet.String("stage", "", "Run the named stage from the pipeline definition.")
	setupFlag := flagSet.Bool("setup", false, "Run only the dependency-resolution gate.")
	allFlag := flagSet.Bool("all", false, "Run the gate, then launch every enabled stage as an independent process.")
	packageDirFlag := flagSet.String("package-dir", ".", "Root of the present package, installed after the dependency is prepared.")
	workDirFlag := flagSet.String("work-dir", "", "Directory receiving the unpacked dependency source. Empty means a fresh temp dir.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *pipelineFlag != "" {
		path = *pipelineFlag
	} else if *pFlag != "" {
		path = *pFlag
	}
	if path == "" {
		slog.Debug("No pipeline path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	endSet := false
	flagSet.Visit(func(f *flag.Flag) {
		if f.Name == "end" {
			endSet = true
		}
	})

	startIndex := 0
	var endIndex *int
	if !*setupFlag && !*allFlag && *stageFlag == "" {
		if flagSet.NArg() == 0 {
			return nil, false, &ExitError{Code: 2, Message: "a start index is required (or use -stage, -setup, or -all)"}
		}
		start, err := strconv.Atoi(flagSet.Arg(0))
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid start index %q: not an integer", flagSet.Arg(0))}
		}
		if start < 0 {
			return nil, false, &ExitError{Code: 2, Message: "invalid start index: must not be negative"}
		}
		startIndex = start

		if endSet {
			if *endFlag < 0 {
				return nil, false, &ExitError{Code: 2, Message: "invalid end index: must not be negative"}
			}
			if *endFlag < start {
				return nil, false, &ExitError{Code: 2, Message: "invalid boundary: start index is past the end index"}
			}
			endIndex = endFlag
		}
	} else if endSet {
		return nil, false, &ExitError{Code: 2, Message: "-end only applies when a start index is given"}
	}

	forceSource := false
	if v := os.Getenv("STAGEHAND_SOURCE_DEP"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid STAGEHAND_SOURCE_DEP value %q: not a boolean", v)}
		}
		forceSource = parsed
	}

	branch := os.Getenv("STAGEHAND_BRANCH")
	if branch == "" {
		branch = os.Getenv("GIT_BRANCH")
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		PipelinePath:     path,
		Setup:            *setupFlag,
		All:              *allFlag,
		StageName:        *stageFlag,
		StartIndex:       startIndex,
		EndIndex:         endIndex,
		ForceSourceBuild: forceSource,
		CurrentBranch:    branch,
		PackageDir:       *packageDirFlag,
		WorkDir:          *workDirFlag,
		HealthcheckPort:  *healthPortFlag,
		LogFormat:        logFormat,
		LogLevel:         logLevel,
	})

	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
