//go:build !linux

package executor

import (
	"os"
	"os/exec"
)

// setProcAttr is a no-op outside Linux; there is no portable process-group
// model to set one up with.
func setProcAttr(cmd *exec.Cmd) {}

// killGroup falls back to killing just the worker process itself.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

// isCPUBudgetSignal is always false outside Linux: cpuGuard itself is a
// no-op there (internal/guardian/cpu_other.go), so RLIMIT_CPU never fires.
func isCPUBudgetSignal(*os.ProcessState) bool { return false }
