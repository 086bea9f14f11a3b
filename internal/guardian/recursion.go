package guardian

import (
	"runtime/debug"

	"github.com/ocagi/codequest/internal/config"
)

// recursionGuard lowers the Go runtime's stack ceiling to a value scaled
// from budget.RecursionDepth (spec §4.3 RecursionGuard: "lowers the
// interpreter/stack-depth ceiling ... restores it on release"). tengo's own
// VM is a bytecode interpreter with its own call-frame array bounded
// independently of the Go stack, so this is a second, host-level ceiling: a
// pathological tengo program that recurses through enough native Go calls
// (e.g. via a user function callback chain) still trips Go's own stack
// overflow at this lowered ceiling instead of growing an unbounded native
// stack. That overflow is a fatal runtime error, not a recoverable panic: the
// worker dies, and internal/executor.classifyCrash reports budget_recursion
// from the "stack overflow" text the runtime printed to stderr.
type recursionGuard struct {
	depth    int
	previous int
}

const bytesPerFrame = 4096

func newRecursionGuard(budget config.Budget) *recursionGuard {
	return &recursionGuard{depth: budget.RecursionDepth}
}

func (r *recursionGuard) enable() error {
	r.previous = debug.SetMaxStack(r.depth * bytesPerFrame)
	return nil
}

func (r *recursionGuard) disable() error {
	if r.previous > 0 {
		debug.SetMaxStack(r.previous)
	}
	return nil
}
