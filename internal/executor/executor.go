// Package executor is the parent-side half of the worker boundary: it spawns
// one worker process per submission, ships it an ipc.Request, enforces the
// wall-clock budget the worker itself cannot enforce on its own behalf, and
// guarantees only one submission is ever in flight at a time (spec §5). The
// teacher spawns one long-lived sandbox process per container
// (runsc/sandbox/sandbox.go); codequest spawns one short-lived worker
// process per submission and tears it down unconditionally when it's done.
package executor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ocagi/codequest/internal/ipc"
	"github.com/ocagi/codequest/internal/logging"
)

var log = logging.For("executor")

// WorkerModeFlag is the argument cmd/codequest recognizes as "re-exec into
// internal/worker.Run instead of the normal CLI".
const WorkerModeFlag = "--worker-mode"

// Executor runs submissions one at a time against fresh worker processes.
type Executor struct {
	// workerBinary is almost always os.Args[0]: codequest re-execs itself
	// rather than shipping a second binary, the same way runsc re-execs
	// itself as its own sandbox init process.
	workerBinary string
	sem          *semaphore.Weighted
}

// New returns an Executor that re-execs workerBinary for each submission.
func New(workerBinary string) *Executor {
	return &Executor{workerBinary: workerBinary, sem: semaphore.NewWeighted(1)}
}

// Outcome is what Run reports back to internal/engine: either a categorized
// ipc.Response from a worker that ran to some conclusion, or a process-level
// failure (timeout, crash) the worker never got to report for itself.
type Outcome struct {
	Response ipc.Response
	// TimedOut is set when the wall-clock budget (spec §4.4/§9) killed the
	// worker before it produced a Response.
	TimedOut bool
	// Crashed is set when the worker process exited (or its pipes closed)
	// without writing a well-formed Response, e.g. a native panic bypassing
	// every guard in internal/guardian.
	Crashed bool
}

// Run blocks until exactly one submission has been evaluated by a fresh
// worker process, or the wall clock budget has elapsed. It never runs two
// submissions concurrently: a second caller blocks on the semaphore until
// the first Run returns, matching spec §5's "single ExecutionScope active at
// a time" invariant at the process level.
func (e *Executor) Run(ctx context.Context, req ipc.Request, wallClock time.Duration) (Outcome, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return Outcome{}, fmt.Errorf("acquire submission slot: %w", err)
	}
	defer e.sem.Release(1)

	runCtx, cancel := context.WithTimeout(ctx, wallClock)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.workerBinary, WorkerModeFlag)
	setProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("open worker stdout: %w", err)
	}
	// Stderr is never part of the wire protocol; it's captured only so a
	// crash can be classified below (a Go runtime fatal error prints its
	// "out of memory"/"stack overflow" diagnosis there before exiting).
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Outcome{}, fmt.Errorf("start worker: %w", err)
	}

	g, gctx := errgroup.WithContext(runCtx)
	respCh := make(chan ipc.Response, 1)

	g.Go(func() error {
		defer stdin.Close()
		enc := json.NewEncoder(stdin)
		return enc.Encode(req)
	})

	g.Go(func() error {
		var resp ipc.Response
		dec := json.NewDecoder(bufio.NewReader(stdout))
		if err := dec.Decode(&resp); err != nil {
			return fmt.Errorf("decode worker response: %w", err)
		}
		select {
		case respCh <- resp:
		case <-gctx.Done():
		}
		return nil
	})

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	gerr := g.Wait()

	select {
	case resp := <-respCh:
		<-waitErr
		return Outcome{Response: resp}, nil
	default:
	}

	if runCtx.Err() != nil {
		log.WithField("wall_clock", wallClock).Warn("submission exceeded wall clock budget, killing worker")
		killGroup(cmd)
		<-waitErr
		return Outcome{TimedOut: true}, nil
	}

	killGroup(cmd)
	<-waitErr

	if resp, ok := classifyCrash(cmd.ProcessState, stderr.String()); ok {
		log.WithField("category", resp.Category).Warn("worker died to a resource budget rather than an arbitrary crash")
		return Outcome{Response: resp}, nil
	}

	log.WithError(gerr).Warn("worker exited without a well-formed response")
	return Outcome{Crashed: true}, nil
}

// classifyCrash distinguishes a worker death caused by one of the budgets
// internal/guardian installs from an arbitrary native crash, the one
// additional case (besides timeout) that spec §4.4 step 5 says only the
// parent can observe: the worker is dead before it can write its own
// ipc.Response, so the Category has to be reconstructed here from the
// worker's exit signal and whatever the Go runtime printed to stderr before
// dying. ok is false when nothing below matches, in which case the caller
// falls back to the generic "worker crashed" Outcome.
func classifyCrash(ps *os.ProcessState, stderrText string) (ipc.Response, bool) {
	switch {
	case isCPUBudgetSignal(ps):
		return ipc.Response{Category: "budget_cpu", Diagnostic: "cpu time budget exceeded"}, true
	case strings.Contains(stderrText, "out of memory") || strings.Contains(stderrText, "cannot allocate memory"):
		return ipc.Response{Category: "budget_memory", Diagnostic: "memory budget exceeded"}, true
	case strings.Contains(stderrText, "stack overflow") || strings.Contains(stderrText, "goroutine stack exceeds"):
		return ipc.Response{Category: "budget_recursion", Diagnostic: "recursion budget exceeded"}, true
	default:
		return ipc.Response{}, false
	}
}
