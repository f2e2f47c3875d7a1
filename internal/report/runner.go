package report

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
)

// CommandRunner abstracts external command execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, args []string) (output string, err error)
}

// ExitError reports a command that ran but exited with a non-zero code.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
}

// ExecRunner runs commands directly, without a shell.
type ExecRunner struct {
	WorkDir string // working directory for commands (empty = current dir)
}

// NewExecRunner creates a CommandRunner that executes real commands.
func NewExecRunner(workDir string) *ExecRunner {
	return &ExecRunner{WorkDir: workDir}
}

// Run executes args and returns combined stdout/stderr.
func (r *ExecRunner) Run(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if r.WorkDir != "" {
		cmd.Dir = r.WorkDir
	}

	output, err := cmd.CombinedOutput()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return string(output), &ExitError{Command: args[0], Code: exitErr.ExitCode()}
	}
	return string(output), err
}

// SplitCommand splits a configured command line with shell quoting rules
// and expands {name} placeholders in every argument.
func SplitCommand(line string, placeholders map[string]string) ([]string, error) {
	args, err := shellquote.Split(line)
	if err != nil {
		return nil, fmt.Errorf("invalid command %q: %w", line, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("invalid command %q: no program", line)
	}

	pairs := make([]string, 0, 2*len(placeholders))
	for name, value := range placeholders {
		pairs = append(pairs, "{"+name+"}", value)
	}
	expand := strings.NewReplacer(pairs...)
	for i, a := range args {
		args[i] = expand.Replace(a)
	}
	return args, nil
}

// JoinCommand renders args for logs.
func JoinCommand(args []string) string {
	return shellquote.Join(args...)
}
