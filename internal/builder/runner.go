package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// Result captures one external build invocation.
type Result struct {
	ID        string
	ExitCode  int
	Stdout    string
	Stderr    string
	StartedAt time.Time
	Duration  time.Duration
}

// Failed reports whether the build exited nonzero or never started.
func (r Result) Failed() bool { return r.ExitCode != 0 }

// Runner invokes the external document-generation command with the source
// and output paths as arguments, capturing both streams, the exit code and
// the elapsed time. The command is treated as opaque: its output is never
// interpreted beyond logging.
type Runner struct {
	Command string
	Args    []string
	Source  string
	Output  string
	// Timeout bounds one invocation when positive; zero means unlimited.
	Timeout time.Duration
}

// NewRunner returns a Runner for the given command and paths. Extra args are
// inserted before the source/output pair.
func NewRunner(command string, args []string, source, output string, timeout time.Duration) *Runner {
	return &Runner{Command: command, Args: args, Source: source, Output: output, Timeout: timeout}
}

// Run executes the build synchronously. The subprocess is intentionally not
// bound to the caller's cancellation: an in-flight build is allowed to finish
// so partial output is never left behind by a kill. Only the configured
// timeout (when set) terminates it early.
func (r *Runner) Run() (Result, error) {
	argv := append(append([]string{}, r.Args...), r.Source, r.Output)

	var cmd *exec.Cmd
	if r.Timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
		defer cancel()
		cmd = exec.CommandContext(ctx, r.Command, argv...)
	} else {
		cmd = exec.Command(r.Command, argv...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res := Result{ID: uuid.NewString(), StartedAt: time.Now()}
	slog.Debug("invoking build command", "build_id", res.ID, "command", r.Command, "source", r.Source, "output", r.Output)

	err := cmd.Run()
	res.Duration = time.Since(res.StartedAt)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	switch {
	case err == nil:
		res.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			// The command never ran (not found, permission, ...).
			res.ExitCode = -1
			return res, fmt.Errorf("run build command %q: %w", r.Command, err)
		}
	}
	return res, nil
}
