package scripting

import (
	"context"
	"testing"
	"time"

	"github.com/ocagi/codequest/internal/config"
	"github.com/ocagi/codequest/internal/vfs"
)

func testBudget() config.Budget {
	b := config.DefaultBudget()
	b.MaxOperations = 1000
	return b
}

func TestRunBindsGlobals(t *testing.T) {
	s := NewScope(testBudget(), nil)
	out := s.Run(context.Background(), []byte(`mesaj := "Merhaba Dunya"`))
	if out.Category != CategoryNone {
		t.Fatalf("unexpected category %v diagnostic %q", out.Category, out.Diagnostic)
	}
	if got := out.Globals["mesaj"]; got != "Merhaba Dunya" {
		t.Fatalf("got %v", got)
	}
}

func TestRunCapturesStdout(t *testing.T) {
	s := NewScope(testBudget(), nil)
	out := s.Run(context.Background(), []byte(`io := import("io"); io.println("hello")`))
	if out.Category != CategoryNone {
		t.Fatalf("unexpected category %v diagnostic %q", out.Category, out.Diagnostic)
	}
	if got := s.CapturedStdout(); got != "hello\n" {
		t.Fatalf("got %q", got)
	}
}

func TestBlockedModuleIsSecurityViolation(t *testing.T) {
	s := NewScope(testBudget(), nil)
	out := s.Run(context.Background(), []byte(`os := import("os")`))
	if out.Category != CategorySecurityViolation {
		t.Fatalf("expected security violation, got %v (%s)", out.Category, out.Diagnostic)
	}
}

func TestSyntaxErrorIsSyntacticFailure(t *testing.T) {
	s := NewScope(testBudget(), nil)
	out := s.Run(context.Background(), []byte(`x := (`))
	if out.Category != CategorySyntacticFailure {
		t.Fatalf("expected syntactic failure, got %v (%s)", out.Category, out.Diagnostic)
	}
}

func TestOperationBudgetExceeded(t *testing.T) {
	b := testBudget()
	b.MaxOperations = 10
	s := NewScope(b, nil)
	out := s.Run(context.Background(), []byte(`
for i := 0; i < 1000000; i++ {
  x := [0, 1, 2, 3, 4, 5, 6, 7, 8, 9]
}
`))
	if out.Category != CategoryBudgetOperations {
		t.Fatalf("expected budget_operations, got %v (%s)", out.Category, out.Diagnostic)
	}
}

func TestRunRespectsContextTimeout(t *testing.T) {
	s := NewScope(testBudget(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	out := s.Run(ctx, []byte(`for true { }`))
	if out.Category == CategoryNone {
		t.Fatalf("expected the infinite loop to be interrupted")
	}
}

func TestRunValidatorPassAndFail(t *testing.T) {
	outcome, err := RunValidator(context.Background(),
		[]byte(`passed := scope["mesaj"] == "Merhaba Dunya"`),
		map[string]interface{}{"mesaj": "Merhaba Dunya"}, "")
	if err != nil {
		t.Fatalf("run validator: %v", err)
	}
	if !outcome.Passed {
		t.Fatalf("expected passed=true")
	}

	outcome, err = RunValidator(context.Background(),
		[]byte(`passed := false; message := "mesaj yanlis"`),
		map[string]interface{}{"mesaj": "wrong"}, "")
	if err != nil {
		t.Fatalf("run validator: %v", err)
	}
	if outcome.Passed || outcome.Message != "mesaj yanlis" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestFsModuleRoundTrips(t *testing.T) {
	store := vfs.New()
	s := NewScope(testBudget(), store)
	out := s.Run(context.Background(), []byte(`
fs := import("fs")
h := fs.open("notes.txt", "w")
fs.write(h, "satir bir")
fs.close(h)

h2 := fs.open("notes.txt", "r")
line := fs.read_line(h2)
fs.close(h2)

h3 := fs.open("notes.txt", "r")
whole := fs.read(h3)
fs.close(h3)

h4 := fs.open("lines.txt", "w")
fs.write(h4, "bir\niki\nuc")
fs.close(h4)
h5 := fs.open("lines.txt", "r")
lines := fs.read_lines(h5)
fs.close(h5)

fs.remove("lines.txt")
removed := fs.exists("lines.txt")
`))
	if out.Category != CategoryNone {
		t.Fatalf("unexpected category %v diagnostic %q", out.Category, out.Diagnostic)
	}
	if got := out.Globals["line"]; got != "satir bir" {
		t.Fatalf("got %v", got)
	}
	if got := out.Globals["whole"]; got != "satir bir" {
		t.Fatalf("read: got %v", got)
	}
	lines, ok := out.Globals["lines"].([]interface{})
	if !ok || len(lines) != 3 || lines[0] != "bir" || lines[1] != "iki" || lines[2] != "uc" {
		t.Fatalf("read_lines: got %v", out.Globals["lines"])
	}
	if got := out.Globals["removed"]; got != false {
		t.Fatalf("expected remove to delete lines.txt, got exists=%v", got)
	}
	if !store.Exists("notes.txt") {
		t.Fatalf("expected notes.txt to exist in the store")
	}
}

func TestFsModuleAbsentWithoutStore(t *testing.T) {
	s := NewScope(testBudget(), nil)
	out := s.Run(context.Background(), []byte(`fs := import("fs")`))
	if out.Category != CategorySecurityViolation {
		t.Fatalf("expected security violation when no store is bound, got %v (%s)", out.Category, out.Diagnostic)
	}
}
