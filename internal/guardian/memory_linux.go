//go:build linux

package guardian

import (
	"fmt"

	"github.com/containerd/cgroups"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"

	"github.com/ocagi/codequest/internal/config"
)

// memoryGuard caps the worker's address space with RLIMIT_AS (spec §4.3:
// "on platforms exposing a per-process address-space limit, installs a hard
// cap equal to the budget"), and additionally joins a per-submission cgroup
// memory controller when the host exposes cgroups, the way the teacher's
// sandbox process is placed into a cgroup for its own memory accounting.
type memoryGuard struct {
	limitBytes uint64
	previous   unix.Rlimit
	cg         cgroups.Cgroup
}

func newMemoryGuard(budget config.Budget) *memoryGuard {
	return &memoryGuard{limitBytes: uint64(budget.MemoryBytes)}
}

func (m *memoryGuard) enable() error {
	var cur unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &cur); err != nil {
		return fmt.Errorf("getrlimit(RLIMIT_AS): %w", err)
	}
	m.previous = cur

	lim := unix.Rlimit{Cur: m.limitBytes, Max: cur.Max}
	if cur.Max != unix.RLIM_INFINITY && lim.Max < m.limitBytes {
		lim.Max = m.limitBytes
	}
	if err := unix.Setrlimit(unix.RLIMIT_AS, &lim); err != nil {
		return fmt.Errorf("setrlimit(RLIMIT_AS): %w", err)
	}

	// Cgroup memory accounting is best-effort: a host without a writable
	// cgroup hierarchy (e.g. an unprivileged container) simply falls back to
	// RLIMIT_AS alone, matching spec §4.3's "on platforms exposing ...".
	limit := int64(m.limitBytes)
	cg, err := cgroups.New(cgroups.V1, cgroups.StaticPath("/codequest-submission"), &specs.LinuxResources{
		Memory: &specs.LinuxMemory{Limit: &limit},
	})
	if err == nil {
		m.cg = cg
		_ = m.cg.Add(cgroups.Process{Pid: unix.Getpid()})
	}
	return nil
}

func (m *memoryGuard) disable() error {
	if m.cg != nil {
		_ = m.cg.Delete()
		m.cg = nil
	}
	if err := unix.Setrlimit(unix.RLIMIT_AS, &m.previous); err != nil {
		return fmt.Errorf("restore RLIMIT_AS: %w", err)
	}
	return nil
}

