package guardian

import (
	"github.com/ocagi/codequest/internal/config"
)

// operationGuard is a placeholder participant in Guardian's acquire/release
// ordering (spec §4.3: Recursion, Memory, Cpu, Operation). The operations
// budget itself is enforced by tengo's SetMaxAllocs inside
// internal/scripting.Scope.Run -- the VM is the only thing with visibility
// into its own per-instruction allocation count, so there is nothing for a
// host-side guard to check here. It exists only to keep the four-guard slot
// in the acquire/release sequence uniform.
type operationGuard struct{}

func newOperationGuard(budget config.Budget) *operationGuard {
	return &operationGuard{}
}

func (o *operationGuard) enable() error {
	return nil
}

func (o *operationGuard) disable() error {
	return nil
}
