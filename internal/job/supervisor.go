package job

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// Spec describes one invocation of the external conversion pipeline:
// resolved executable, ordered arguments and working directory. It is
// supplied by the configuration layer and immutable once passed to
// Start; no validation happens here beyond what spawning surfaces.
type Spec struct {
	Path string
	Args []string
	Dir  string
}

// handle owns the OS-level lifecycle of one spawned pipeline process.
type handle struct {
	cmd    *exec.Cmd
	output io.ReadCloser
	// closed once wait has returned; lets the unix kill escalation
	// stop early when the process is already gone
	waited chan struct{}
}

// spawn launches the pipeline with stdout and stderr merged into a
// single stream. Interleaving between the two streams is best-effort,
// it follows OS pipe buffering and is not strictly ordered. An error
// here means the process never existed: missing executable, missing
// permission or an invalid working directory.
func spawn(spec Spec) (*handle, error) {
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	setSysProcAttr(cmd)

	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("piping pipeline output: %w", err)
	}
	// StdoutPipe installed the write end as cmd.Stdout; pointing
	// stderr at the same file merges both streams.
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("starting %s: %w", spec.Path, err)
	}
	return &handle{cmd: cmd, output: out, waited: make(chan struct{})}, nil
}

// wait blocks until the process terminates and reports its exit
// status. Must be called exactly once, from the relay goroutine.
func (h *handle) wait() exitStatus {
	defer close(h.waited)
	err := h.cmd.Wait()
	if err == nil {
		return exitStatus{code: 0, ok: true}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitStatus{code: exitErr.ExitCode(), ok: true}
	}
	return exitStatus{ok: false}
}

func (h *handle) pid() int {
	return h.cmd.Process.Pid
}
