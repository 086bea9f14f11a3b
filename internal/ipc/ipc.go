// Package ipc defines the single-shot wire contract between the parent
// process (internal/executor) and the worker process (internal/worker) for
// one submission. Spec §5 requires "no shared mutable state ... one-shot,
// one-way, through a single result channel"; here that channel is the
// worker's stdin (Request in) and stdout (Response out), framed as one JSON
// value each way. The teacher uses a long-lived RPC control plane
// (runsc/boot/controller.go, pkg/urpc) because a sandbox outlives many
// calls; codequest's worker is spun up, handles exactly one Request, emits
// exactly one Response, and exits, so a full RPC framework has no job here.
package ipc

// Request is everything the worker needs to evaluate one submission: the
// submitted source, the lesson's validator source (already loaded and
// cached by the Curriculum Provider in the parent process -- the worker has
// no business touching the host file system, see spec §4.2), and the
// ResourceBudget to enforce.
type Request struct {
	Source         string  `json:"source"`
	ValidatorSrc   string  `json:"validator_src"`
	MemoryBytes    int64   `json:"memory_bytes"`
	CPUSeconds     float64 `json:"cpu_seconds"`
	MaxOperations  int64   `json:"max_operations"`
	RecursionDepth int     `json:"recursion_depth"`
}

// Response is the worker's single reply, the wire form of spec §3's
// ExecutionResult plus the failure Category needed to pick a diagnostic
// bucket without the parent re-deriving it (spec §4.4 step 4/6).
type Response struct {
	RanToCompletion bool   `json:"ran_to_completion"`
	CapturedStdout  string `json:"captured_stdout"`
	ValidatorPassed bool   `json:"validator_passed"`
	Diagnostic      string `json:"diagnostic"`
	Category        string `json:"category"`
}
