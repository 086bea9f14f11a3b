// Package worker is the re-exec'd child process entrypoint: one instance of
// it is spawned per submission by internal/executor, it evaluates exactly
// one submission, and it exits. It never reuses state across submissions
// (spec §5 "Workers are stateless across submissions -- no caching, no
// reuse"), which is also why it is a fresh OS process rather than a pooled
// goroutine: a memory-bombed or native-crashed worker must not be able to
// corrupt any other submission's state (spec §4.4 "Failure model").
package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ocagi/codequest/internal/config"
	"github.com/ocagi/codequest/internal/guardian"
	"github.com/ocagi/codequest/internal/ipc"
	"github.com/ocagi/codequest/internal/logging"
	"github.com/ocagi/codequest/internal/scripting"
	"github.com/ocagi/codequest/internal/vfs"
)

var log = logging.For("worker")

// Run reads one ipc.Request from in, evaluates it, and writes one
// ipc.Response to out. It returns an error only for conditions that prevent
// ANY response from being written (a malformed Request, an I/O failure) --
// every user-code failure mode is instead encoded into the Response itself,
// matching spec §4.4's "All execution errors are values, not exceptions at
// the engine level."
func Run(ctx context.Context, in io.Reader, out io.Writer) error {
	dropCapabilities() // best-effort hardening, see caps_linux.go

	var req ipc.Request
	if err := json.NewDecoder(bufio.NewReader(in)).Decode(&req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	resp := evaluate(ctx, req)

	enc := json.NewEncoder(out)
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}

func evaluate(ctx context.Context, req ipc.Request) ipc.Response {
	budget := config.Budget{
		MemoryBytes:    req.MemoryBytes,
		CPUSeconds:     req.CPUSeconds,
		MaxOperations:  req.MaxOperations,
		RecursionDepth: req.RecursionDepth,
	}

	g := guardian.New(budget)
	release, err := g.Acquire()
	if err != nil {
		return ipc.Response{
			Diagnostic: fmt.Sprintf("could not acquire resource guardian: %v", err),
			Category:   "runtime_failure",
		}
	}
	defer func() {
		if rerr := release(); rerr != nil {
			log.WithError(rerr).Warn("guardian release reported errors")
		}
	}()

	store := vfs.New()
	scope := scripting.NewScope(budget, store)
	outcome := scope.Run(ctx, []byte(req.Source))

	resp := ipc.Response{
		CapturedStdout: scope.CapturedStdout(),
		Category:       string(outcome.Category),
		Diagnostic:     outcome.Diagnostic,
	}

	if outcome.Category != scripting.CategoryNone {
		resp.RanToCompletion = false
		return resp
	}
	resp.RanToCompletion = true

	if req.ValidatorSrc == "" {
		resp.ValidatorPassed = false
		resp.Diagnostic = "no validator configured for this lesson"
		resp.Category = "validator_failure"
		return resp
	}

	vOutcome, err := scripting.RunValidator(ctx, []byte(req.ValidatorSrc), outcome.Globals, resp.CapturedStdout)
	if err != nil {
		resp.ValidatorPassed = false
		resp.Diagnostic = fmt.Sprintf("validator error: %v", err)
		resp.Category = "validator_failure"
		return resp
	}
	resp.ValidatorPassed = vOutcome.Passed
	if vOutcome.Message != "" {
		resp.Diagnostic = vOutcome.Message
	}
	return resp
}
