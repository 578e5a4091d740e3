//go:build unix

package job

import (
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// How long a process group gets to react to SIGTERM before SIGKILL.
const killGracePeriod = 3 * time.Second

func setSysProcAttr(cmd *exec.Cmd) {
	// New process group so the whole pipeline tree can be signalled
	// as a unit. The pipeline spawns worker sub-processes.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateTree signals the whole process group: SIGTERM first, then
// SIGKILL after a grace period if the process has not exited by then.
// Best effort, the caller still waits for the eventual exit.
func (h *handle) terminateTree() error {
	pgid, err := unix.Getpgid(h.pid())
	if err != nil {
		// Group already gone; fall back to the process itself.
		return h.cmd.Process.Kill()
	}
	if err := unix.Kill(-pgid, unix.SIGTERM); err != nil {
		return err
	}
	go func() {
		select {
		case <-time.After(killGracePeriod):
			_ = unix.Kill(-pgid, unix.SIGKILL)
		case <-h.waited:
		}
	}()
	return nil
}
