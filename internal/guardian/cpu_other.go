//go:build !linux

package guardian

import "github.com/ocagi/codequest/internal/config"

// cpuGuard is a no-op on platforms without RLIMIT_CPU (spec §4.3: "Elsewhere,
// is a no-op and relies on Executor's wall-clock watchdog").
type cpuGuard struct{}

func newCPUGuard(config.Budget) *cpuGuard { return &cpuGuard{} }

func (c *cpuGuard) enable() error  { return nil }
func (c *cpuGuard) disable() error { return nil }
