//go:build !linux

package guardian

import "github.com/ocagi/codequest/internal/config"

// memoryGuard is a no-op on platforms without RLIMIT_AS/cgroups (spec §4.3:
// "on platforms exposing a per-process address-space limit"); the
// Executor's wall-clock watchdog (spec §4.4 step 7) is the backstop there.
type memoryGuard struct{}

func newMemoryGuard(config.Budget) *memoryGuard { return &memoryGuard{} }

func (m *memoryGuard) enable() error  { return nil }
func (m *memoryGuard) disable() error { return nil }
