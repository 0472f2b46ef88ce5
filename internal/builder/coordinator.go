package builder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ChangeSource is the edge-triggered change signal the coordinator drains.
// Wait blocks until the signal is pending and clears it.
type ChangeSource interface {
	Wait(ctx context.Context) error
}

// ReadySink receives the render-ready edge after every build, success or
// failure.
type ReadySink interface {
	Set()
}

// Coordinator serializes rebuilds. It is the single call site for the build
// command: waiting on the change signal and clearing it before each
// invocation guarantees at most one build in flight and exactly one
// follow-up build for any batch of changes arriving mid-build.
type Coordinator struct {
	runner *Runner
	change ChangeSource
	ready  ReadySink

	// observers are invoked after every completed invocation (initial and
	// steady-state), before the render-ready signal is raised.
	observers []func(Result)
}

// NewCoordinator wires the runner between the two signals.
func NewCoordinator(runner *Runner, change ChangeSource, ready ReadySink) *Coordinator {
	return &Coordinator{runner: runner, change: change, ready: ready}
}

// OnResult registers an observer for completed build invocations.
func (c *Coordinator) OnResult(fn func(Result)) {
	c.observers = append(c.observers, fn)
}

// RunInitial performs the unconditional first build. A nonzero exit here is
// fatal: there is nothing valid to serve yet, so the captured stderr becomes
// the process diagnostic.
func (c *Coordinator) RunInitial() (Result, error) {
	res, err := c.runner.Run()
	c.publish(res)
	if err != nil {
		return res, fmt.Errorf("initial build: %w", err)
	}
	if res.Failed() {
		return res, fmt.Errorf("initial build failed (exit %d): %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	c.logResult(res)
	slog.Info("initial build complete", "build_id", res.ID, "duration", res.Duration)
	return res, nil
}

// Run is the steady-state loop: suspend on the change signal, rebuild, raise
// render-ready. Failures are warnings; the previous output stays served.
// Returns when ctx is cancelled while suspended; an in-flight build always
// finishes first.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		if err := c.change.Wait(ctx); err != nil {
			return err
		}
		// Draining: a pending change must not start a new build once
		// cancellation has been requested.
		if err := ctx.Err(); err != nil {
			return err
		}
		// The latch is already cleared by Wait: changes landing from here on
		// accumulate into exactly one further cycle.
		slog.Info("change detected, rebuilding")

		res, err := c.runner.Run()
		c.publish(res)
		switch {
		case err != nil:
			slog.Warn("build command could not run", "error", err)
		case res.Failed():
			slog.Warn("build failed, previous output remains served",
				"build_id", res.ID, "exit_code", res.ExitCode, "stderr", strings.TrimSpace(res.Stderr))
		default:
			c.logResult(res)
			slog.Info("build complete", "build_id", res.ID, "duration", res.Duration)
		}

		c.ready.Set()
	}
}

func (c *Coordinator) publish(res Result) {
	for _, fn := range c.observers {
		fn(res)
	}
}

// logResult surfaces renderer warnings: some tools write to stderr and still
// exit zero.
func (c *Coordinator) logResult(res Result) {
	if res.Stderr != "" {
		slog.Warn("build succeeded with warnings", "build_id", res.ID, "stderr", strings.TrimSpace(res.Stderr))
	}
	if res.Stdout != "" {
		slog.Debug("build output", "build_id", res.ID, "stdout", strings.TrimSpace(res.Stdout))
	}
}
