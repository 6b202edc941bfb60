//go:build windows

package executor

import (
	"os/exec"
	"strconv"
)

// killProcessTree makes context cancellation kill cmd and every descendant.
func killProcessTree(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid)).Run()
	}
}
