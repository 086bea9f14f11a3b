//go:build linux

package executor

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcAttr puts the worker in its own process group so killGroup can take
// down anything it forked along with it, the same defense
// runsc/sandbox/sandbox.go relies on before sending a sandbox its teardown
// signal.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}
}

// killGroup sends SIGKILL to the worker's entire process group. Errors are
// expected and ignored when the group is already gone (ESRCH) -- by the time
// this runs, the worker may already have exited on its own.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

// isCPUBudgetSignal reports whether ps exited because the kernel delivered
// SIGXCPU, the signal RLIMIT_CPU sends once cpuGuard's limit is crossed
// (internal/guardian/cpu_linux.go). This is the only way the parent can
// distinguish "the worker's own CPU rlimit killed it" from any other native
// crash, since the worker never gets to write its own ipc.Response once
// that signal lands.
func isCPUBudgetSignal(ps *os.ProcessState) bool {
	if ps == nil {
		return false
	}
	status, ok := ps.Sys().(syscall.WaitStatus)
	if !ok {
		return false
	}
	return status.Signaled() && status.Signal() == syscall.SIGXCPU
}
