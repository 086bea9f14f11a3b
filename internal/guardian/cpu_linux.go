//go:build linux

package guardian

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/ocagi/codequest/internal/config"
)

// cpuGuard installs RLIMIT_CPU (spec §4.3 CpuGuard). Exceeding it delivers
// SIGXCPU to the worker process, which the kernel's default disposition
// turns into an immediate death; the worker never gets a chance to write
// its own ipc.Response, so internal/executor.classifyCrash is what
// recognizes the SIGXCPU exit and reports a budget_cpu Response on the
// worker's behalf. There is no portable alarm-style signal guarantee across
// platforms, so cpuGuard is a no-op everywhere RLIMIT_CPU itself is
// unavailable -- see cpu_other.go.
type cpuGuard struct {
	seconds  int64
	previous unix.Rlimit
}

func newCPUGuard(budget config.Budget) *cpuGuard {
	seconds := int64(budget.CPUSeconds)
	if seconds < 1 {
		seconds = 1
	}
	return &cpuGuard{seconds: seconds}
}

func (c *cpuGuard) enable() error {
	var cur unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_CPU, &cur); err != nil {
		return fmt.Errorf("getrlimit(RLIMIT_CPU): %w", err)
	}
	c.previous = cur

	lim := unix.Rlimit{Cur: uint64(c.seconds), Max: cur.Max}
	if cur.Max != unix.RLIM_INFINITY && lim.Max < uint64(c.seconds) {
		lim.Max = uint64(c.seconds)
	}
	if err := unix.Setrlimit(unix.RLIMIT_CPU, &lim); err != nil {
		return fmt.Errorf("setrlimit(RLIMIT_CPU): %w", err)
	}
	return nil
}

func (c *cpuGuard) disable() error {
	if err := unix.Setrlimit(unix.RLIMIT_CPU, &c.previous); err != nil {
		return fmt.Errorf("restore RLIMIT_CPU: %w", err)
	}
	return nil
}
