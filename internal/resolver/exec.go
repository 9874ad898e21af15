package resolver

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/vk/stagehand/internal/ctxlog"
)

// ExecInstaller delegates installation to an external package-management
// tool. The tool argv prefix is configurable per pipeline; the default is
// plain "pip".
type ExecInstaller struct {
	tool []string
}

// NewExecInstaller creates an installer for the given tool argv prefix.
func NewExecInstaller(tool []string) *ExecInstaller {
	if len(tool) == 0 {
		tool = []string{"pip"}
	}
	return &ExecInstaller{tool: tool}
}

// Requirements installs the declared requirement list from file.
func (i *ExecInstaller) Requirements(ctx context.Context, file string) error {
	return runCommand(ctx, "", i.argv("install", "-U", "-r", file))
}

// Editable installs the package rooted at dir in editable/local mode.
func (i *ExecInstaller) Editable(ctx context.Context, dir string) error {
	return runCommand(ctx, "", i.argv("install", "-e", dir))
}

func (i *ExecInstaller) argv(args ...string) []string {
	return append(append([]string{}, i.tool...), args...)
}

// ExecBuilder invokes the dependency's configured native build command in
// its source directory.
type ExecBuilder struct{}

// Build runs the build command with the opaque flag string appended,
// whitespace-split, as trailing arguments.
func (b ExecBuilder) Build(ctx context.Context, dir string, command []string, flags string) error {
	if len(command) == 0 {
		return fmt.Errorf("no build command configured")
	}
	argv := append(append([]string{}, command...), strings.Fields(flags)...)
	return runCommand(ctx, dir, argv)
}

// runCommand executes argv in dir, logging the invocation and surfacing
// combined output in the error on failure.
func runCommand(ctx context.Context, dir string, argv []string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Running command.", "argv", argv, "dir", dir)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w\n%s", strings.Join(argv, " "), err, out)
	}
	return nil
}
