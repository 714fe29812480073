// Package execution runs classified scripts in an isolated child process and
// bounds what they can cost: wall-clock time and captured output size.
package execution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Result captures one script execution.
type Result struct {
	Succeeded bool
	Stdout    string
	Stderr    string
	TimedOut  bool
}

// Runner executes script text in a non-interactive child shell. It never
// interprets or rewrites the script; classification has already decided
// whether the text may run.
type Runner struct {
	shell  string
	args   []string
	dir    string
	logger *slog.Logger
}

// NewRunner builds the PowerShell runner rooted at the sandbox directory.
// The execution policy flags match what the scripts are generated for:
// no profile, non-interactive, policy bypass, script as a single argument.
func NewRunner(sandboxDir string, logger *slog.Logger) *Runner {
	return &Runner{
		shell:  "powershell",
		args:   []string{"-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass", "-Command"},
		dir:    sandboxDir,
		logger: logger.With("component", "runner"),
	}
}

// NewRunnerShell builds a runner for an arbitrary interpreter. Used by tests
// to substitute a shell that exists on the build machine.
func NewRunnerShell(shell string, args []string, dir string, logger *slog.Logger) *Runner {
	return &Runner{shell: shell, args: args, dir: dir, logger: logger.With("component", "runner")}
}

// Run executes the script with the given timeout. A timeout forcibly
// terminates the child and comes back as a failed Result with TimedOut set;
// Run never hangs past the deadline and never returns partial liveness.
func (r *Runner) Run(ctx context.Context, script string, timeout time.Duration) Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, r.args...), script)
	cmd := exec.CommandContext(ctx, r.shell, args...)
	cmd.Dir = r.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	res := Result{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}

	switch {
	case err == nil:
		res.Succeeded = true
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.Stderr = fmt.Sprintf("script execution timed out after %s", timeout)
	case errors.Is(err, exec.ErrNotFound):
		res.Stderr = fmt.Sprintf("%s is not available on this system", r.shell)
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if res.Stderr == "" {
				res.Stderr = fmt.Sprintf("script exited with code %d", exitErr.ExitCode())
			}
		} else if res.Stderr == "" {
			res.Stderr = err.Error()
		}
	}

	r.logger.Debug("script executed",
		"succeeded", res.Succeeded,
		"timed_out", res.TimedOut,
		"elapsed", elapsed,
		"stdout_bytes", stdout.Len(),
		"stderr_bytes", stderr.Len(),
	)
	return res
}
