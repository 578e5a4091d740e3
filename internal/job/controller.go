// Package job is the job-execution and log-streaming core: it launches
// the external conversion pipeline as a child process, relays its
// combined output towards an interactive caller without ever blocking
// it, classifies line severity for visual triage, tracks run state and
// elapsed time and supports cancellation of the whole process tree.
//
// At most one run is active at a time. The caller drives everything
// from a single goroutine: Start, Stop and periodic Drain calls. The
// relay goroutine is the only producer, Drain is the only consumer, and
// every state transition out of Running happens inside Drain while the
// end-of-run event is processed.
package job

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyRunning is returned by Start while a run is active. A
// second job is rejected, never queued.
var ErrAlreadyRunning = errors.New("a pipeline run is already active")

// Phase is the coarse run state.
type Phase int

const (
	Idle Phase = iota
	Running
	Completed
	Failed
	Cancelled
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// Terminal reports whether the phase ends a run. A new Start is
// accepted from Idle or any terminal phase.
func (p Phase) Terminal() bool {
	return p == Completed || p == Failed || p == Cancelled
}

// State is the authoritative run state. ExitCode is meaningful for
// Completed and Failed only; a cancelled run never reports one because
// the exit code of a killed process is platform noise.
type State struct {
	Phase    Phase
	ExitCode int
}

// Line is one drained line of pipeline output. Seq is strictly
// increasing per run in the order lines were read from the process.
type Line struct {
	Text     string
	Severity Severity
	Seq      int
}

// runHandle aggregates everything owned for the duration of one run.
// It is created by Start and discarded when the end-of-run event is
// processed; afterwards only the terminal State survives.
type runHandle struct {
	id        uuid.UUID
	handle    *handle
	queue     *eventQueue
	cancelled atomic.Bool
}

// Controller is the public API of the core. All methods are safe for
// concurrent use, but Start, Stop and Drain are designed to be called
// from one interactive control goroutine.
type Controller struct {
	mu    sync.Mutex
	state State
	run   *runHandle
	watch stopwatch
}

func NewController() *Controller {
	return &Controller{state: State{Phase: Idle}}
}

// Start spawns the pipeline described by spec and transitions to
// Running. It returns ErrAlreadyRunning while a run is active, and a
// spawn error when the executable cannot be launched, in which case no
// goroutine was created and the state is unchanged: a Start attempted
// from a terminal state keeps that terminal state, it does not reset
// to Idle.
func (c *Controller) Start(spec Spec) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase == Running {
		return ErrAlreadyRunning
	}

	h, err := spawn(spec)
	if err != nil {
		return fmt.Errorf("starting pipeline: %w", err)
	}

	run := &runHandle{
		id:     uuid.New(),
		handle: h,
		queue:  &eventQueue{},
	}
	c.run = run
	c.state = State{Phase: Running}
	c.watch.begin()

	go relay(h.output, h, run.queue)

	slog.Debug("pipeline started",
		"run_id", run.id, "pid", h.pid(), "path", spec.Path)
	return nil
}

// Stop requests cancellation of the active run. It is idempotent, a
// no-op unless Running, and returns before termination is confirmed:
// the transition to Cancelled arrives through the normal end-of-run
// event once the process tree is actually gone.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != Running {
		return
	}
	run := c.run
	run.cancelled.Store(true)
	if err := run.handle.terminateTree(); err != nil {
		// Non-fatal: the run still ends through the relay once the
		// process exits on its own.
		slog.Warn("terminating process tree", "run_id", run.id, "error", err)
	} else {
		slog.Debug("cancellation requested", "run_id", run.id)
	}
}

// Drain returns up to max buffered output lines in arrival order. It
// never blocks: an empty queue yields an empty result immediately, so
// the caller's polling cadence bounds staleness, not correctness.
// Observing the end-of-run event transitions the state out of Running.
func (c *Controller) Drain(max int) []Line {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run == nil {
		return nil
	}

	events := c.run.queue.pop(max)
	lines := make([]Line, 0, len(events))
	for _, e := range events {
		if e.end {
			// Always the last event of a run.
			c.finish(e.exit)
			break
		}
		lines = append(lines, Line{Text: e.text, Severity: Classify(e.text), Seq: e.seq})
	}
	return lines
}

// finish applies the terminal transition for the active run. Cancelled
// wins over the exit code: a killed process reports platform-specific
// codes that must not be mistaken for a natural failure.
func (c *Controller) finish(exit exitStatus) {
	run := c.run
	code := exit.code
	if !exit.ok {
		code = -1
	}

	switch {
	case run.cancelled.Load():
		c.state = State{Phase: Cancelled}
	case code == 0:
		c.state = State{Phase: Completed}
	default:
		c.state = State{Phase: Failed, ExitCode: code}
	}
	c.watch.freeze()
	c.run = nil

	slog.Debug("pipeline finished",
		"run_id", run.id, "phase", c.state.Phase.String(), "exit_code", code)
}

// State returns the authoritative run state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Elapsed returns the duration of the active run, or of the last run
// once a terminal state was reached. Zero before the first Start.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watch.elapsed()
}
