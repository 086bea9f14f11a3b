// Package guardian enforces a ResourceBudget for one execution: memory, CPU
// time, and recursion depth. The operation count is enforced by tengo's
// SetMaxAllocs inside internal/scripting.Scope.Run; this package's
// operationGuard only holds its slot in the ordering. Spec §4.3 composes four
// independent guards behind one acquire/release discipline
// (Recursion->Memory->CPU->Operation on entry, reverse on exit); Guardian is
// that composite, the process-local analogue of the teacher's rlimit
// plumbing in pkg/sentry/syscalls/linux/sys_rlimit.go, scaled down from a
// syscall-intercepting kernel to a single host-process worker that sets its
// own rlimits before running user code.
package guardian

import (
	"fmt"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/ocagi/codequest/internal/config"
)

// Category names which budget a BudgetExceeded error is reporting,
// matching spec §7's BudgetExceeded{memory|cpu|operations|recursion|wallclock}.
type Category string

const (
	CategoryMemory    Category = "memory"
	CategoryCPU       Category = "cpu"
	CategoryOps       Category = "operations"
	CategoryRecursion Category = "recursion"
	CategoryWallClock Category = "wallclock"
)

// ExceededError is the categorized failure spec §7 calls BudgetExceeded.
type ExceededError struct {
	Category Category
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("resource budget exceeded: %s", e.Category)
}

// Guardian composes the four guards for one submission. The zero value is
// not usable; construct with New.
type Guardian struct {
	budget config.Budget

	memory    *memoryGuard
	cpu       *cpuGuard
	operation *operationGuard
	recursion *recursionGuard
}

// New returns a Guardian configured for budget but not yet acquired.
func New(budget config.Budget) *Guardian {
	return &Guardian{
		budget:    budget,
		memory:    newMemoryGuard(budget),
		cpu:       newCPUGuard(budget),
		operation: newOperationGuard(budget),
		recursion: newRecursionGuard(budget),
	}
}

// Acquire enables every guard in the order spec §4.3 mandates: Recursion,
// Memory, Cpu, Operation. If any guard fails to acquire, the ones already
// acquired are released in reverse order before the error is returned, so a
// partially-acquired Guardian never leaks platform state.
func (g *Guardian) Acquire() (release func() error, err error) {
	acquired := make([]func() error, 0, 4)
	rollback := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i]()
		}
	}

	if err := g.recursion.enable(); err != nil {
		return nil, fmt.Errorf("acquire recursion guard: %w", err)
	}
	acquired = append(acquired, g.recursion.disable)

	if err := g.memory.enable(); err != nil {
		rollback()
		return nil, fmt.Errorf("acquire memory guard: %w", err)
	}
	acquired = append(acquired, g.memory.disable)

	if err := g.cpu.enable(); err != nil {
		rollback()
		return nil, fmt.Errorf("acquire cpu guard: %w", err)
	}
	acquired = append(acquired, g.cpu.disable)

	if err := g.operation.enable(); err != nil {
		rollback()
		return nil, fmt.Errorf("acquire operation guard: %w", err)
	}
	acquired = append(acquired, g.operation.disable)

	return func() error {
		var result *multierror.Error
		// Reverse of acquisition order: Operation, Cpu, Memory, Recursion.
		for i := len(acquired) - 1; i >= 0; i-- {
			if err := acquired[i](); err != nil {
				result = multierror.Append(result, err)
			}
		}
		return result.ErrorOrNil()
	}, nil
}

// operationGuard itself enforces nothing: the operations budget is enforced
// by tengo's own SetMaxAllocs inside internal/scripting.Scope.Run, the only
// place with visibility into the VM's per-instruction allocation count.
// operationGuard's enable/disable exist solely so Acquire/Release keep the
// four-guard ordering spec §4.3 mandates even though this particular guard
// has no platform state of its own to hold.
