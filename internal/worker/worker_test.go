package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/ocagi/codequest/internal/config"
	"github.com/ocagi/codequest/internal/ipc"
)

func budgetFields(b config.Budget) (int64, float64, int64, int) {
	return b.MemoryBytes, b.CPUSeconds, b.MaxOperations, b.RecursionDepth
}

func runRequest(t *testing.T, req ipc.Request) ipc.Response {
	t.Helper()
	var in, out bytes.Buffer
	if err := json.NewEncoder(&in).Encode(req); err != nil {
		t.Fatalf("encode request: %v", err)
	}
	if err := Run(context.Background(), &in, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	var resp ipc.Response
	if err := json.NewDecoder(&out).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func newRequest(source, validatorSrc string) ipc.Request {
	b := config.DefaultBudget()
	mem, cpu, ops, rec := budgetFields(b)
	return ipc.Request{
		Source:         source,
		ValidatorSrc:   validatorSrc,
		MemoryBytes:    mem,
		CPUSeconds:     cpu,
		MaxOperations:  ops,
		RecursionDepth: rec,
	}
}

func TestHappySubmissionPasses(t *testing.T) {
	resp := runRequest(t, newRequest(
		`mesaj := "Merhaba Dunya"`,
		`passed := scope["mesaj"] == "Merhaba Dunya"`,
	))
	if !resp.RanToCompletion {
		t.Fatalf("expected completion, got diagnostic %q", resp.Diagnostic)
	}
	if !resp.ValidatorPassed {
		t.Fatalf("expected validator to pass, diagnostic: %q", resp.Diagnostic)
	}
}

func TestBlockedImportIsSecurityViolation(t *testing.T) {
	resp := runRequest(t, newRequest(`os := import("os")`, `passed := true`))
	if resp.RanToCompletion {
		t.Fatalf("expected not to complete")
	}
	if resp.Category != "security_violation" {
		t.Fatalf("expected security_violation, got %q (%s)", resp.Category, resp.Diagnostic)
	}
}

func TestMissingValidatorIsValidatorFailure(t *testing.T) {
	resp := runRequest(t, newRequest(`x := 1`, ""))
	if resp.Category != "validator_failure" {
		t.Fatalf("expected validator_failure, got %q", resp.Category)
	}
	if resp.ValidatorPassed {
		t.Fatalf("expected validator not passed")
	}
}
