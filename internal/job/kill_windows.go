//go:build windows

package job

import (
	"os/exec"
	"strconv"
)

func setSysProcAttr(cmd *exec.Cmd) {}

// terminateTree force-kills the process and all of its descendants.
// taskkill /T walks the child tree, which covers the worker processes
// the pipeline spawns. Best effort, the caller still waits for the
// eventual exit.
func (h *handle) terminateTree() error {
	kill := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(h.pid()))
	return kill.Run()
}
