// Package scripting builds the Restricted Environment: the capability
// whitelist user code executes against, and the embedded scripting VM
// (tengo) that enforces it. The teacher locks down a syscall surface with a
// seccomp.SyscallRules allowlist (runsc/boot/filter); scripting locks down a
// script-language surface the same way, as an explicit allowlist table that
// is the single place to audit what user code can reach (spec §4.2).
package scripting

import (
	"context"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/parser"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/ocagi/codequest/internal/config"
	"github.com/ocagi/codequest/internal/vfs"
)

// allowedStdlibModules mirrors spec §4.2(b): "a small set of allowed
// standard modules enumerated by name (math, random, datetime, json, plus a
// handful of safe helpers)". Tengo's own "os" module is deliberately
// excluded: it exposes file and process primitives that spec §4.2(f)
// requires to fail as a SecurityViolation. Apart from the "io" module and
// (when a store is bound) the "fs" module that NewScope adds itself, any
// import name not in this list fails to resolve and is re-categorized by Run
// as SecurityViolation.
var allowedStdlibModules = []string{
	"math",  // arithmetic helpers
	"times", // datetime
	"rand",  // random
	"json",  // json encode/decode
	"text",  // string formatting helpers
}

// Category classifies how a submission ended, matching spec §7's value
// categories exactly.
type Category string

const (
	CategoryNone              Category = "none"
	CategorySecurityViolation Category = "security_violation"
	CategorySyntacticFailure  Category = "syntactic_failure"
	CategoryRuntimeFailure    Category = "runtime_failure"
	CategoryBudgetOperations  Category = "budget_operations"
	CategoryBudgetRecursion   Category = "budget_recursion"
)

// Outcome is what Run produces for one evaluation of user source.
type Outcome struct {
	Category   Category
	Diagnostic string
	// Globals holds every top-level binding the script created, so the
	// Executor can hand it to a Validator without re-parsing source.
	Globals map[string]interface{}
}

// Scope is one ExecutionScope: a fresh name->value mapping and the safe
// builtin/module surface bound into it, created per submission and
// discarded with the worker process (spec §3 Ownership).
type Scope struct {
	stdout  *strings.Builder
	budget  config.Budget
	modules *tengo.ModuleMap
}

// NewScope constructs an ExecutionScope bound to budget's operation ceiling.
// Every Scope gets its own stdout buffer and its own *tengo.ModuleMap value:
// nothing here is process-global state, so two Scopes never share bindings
// (spec §9 "never patch process globals"). store may be nil: lessons that
// don't exercise file I/O are built without an "fs" module in their import
// table at all, rather than with one that errors on every call.
func NewScope(budget config.Budget, store *vfs.FS) *Scope {
	s := &Scope{stdout: &strings.Builder{}, budget: budget}
	s.modules = stdlib.GetModuleMap(allowedStdlibModules...)
	s.modules.AddBuiltinModule("io", ioModule(s.stdout))
	if store != nil {
		s.modules.AddBuiltinModule("fs", fsModule(store))
	}
	return s
}

// ioModule is the only way user code can produce output: a print/println
// pair that appends to this Scope's captured-stdout buffer instead of the
// real process stdout, replacing tengo's own fmt module (which would write
// to os.Stdout).
func ioModule(stdout *strings.Builder) map[string]tengo.Object {
	return map[string]tengo.Object{
		"print": &tengo.UserFunction{
			Name: "print",
			Value: func(args ...tengo.Object) (tengo.Object, error) {
				parts := make([]string, len(args))
				for i, a := range args {
					parts[i] = a.String()
				}
				stdout.WriteString(strings.Join(parts, " "))
				return tengo.UndefinedValue, nil
			},
		},
		"println": &tengo.UserFunction{
			Name: "println",
			Value: func(args ...tengo.Object) (tengo.Object, error) {
				parts := make([]string, len(args))
				for i, a := range args {
					parts[i] = a.String()
				}
				stdout.WriteString(strings.Join(parts, " "))
				stdout.WriteString("\n")
				return tengo.UndefinedValue, nil
			},
		},
	}
}

// CapturedStdout returns everything user code has written via io.print(ln) so
// far.
func (s *Scope) CapturedStdout() string {
	return s.stdout.String()
}

// Run compiles and evaluates source against this Scope, translating every
// failure mode into the categories spec §4.4 step 4 and §7 define.
func (s *Scope) Run(ctx context.Context, source []byte) Outcome {
	script := tengo.NewScript(source)
	script.SetImports(s.modules)
	script.EnableFileImport(false)
	script.SetMaxAllocs(s.budget.MaxOperations)

	compiled, err := script.RunContext(ctx)
	if err != nil {
		return Outcome{Category: categorize(err), Diagnostic: diagnosticFor(err)}
	}

	globals := make(map[string]interface{})
	for _, v := range compiled.GetAll() {
		globals[v.Name()] = v.Value()
	}
	return Outcome{Category: CategoryNone, Globals: globals}
}

// categorize maps a tengo/runtime error to one of spec §7's categories.
// Tengo reports a missing/blocked module and a genuine compile error
// through the same *tengo.CompileError type, distinguished only by message
// text, so this inspects the text the same way the teacher's seccomp
// violation handler inspects a syscall number rather than a typed error.
// Source that fails to parse comes back as a parser.ErrorList instead, and
// is counted as a syntactic failure alongside compile errors.
func categorize(err error) Category {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "module") && (strings.Contains(msg, "not found") || strings.Contains(msg, "can't be imported")):
		return CategorySecurityViolation
	case strings.Contains(msg, "allocation limit"):
		return CategoryBudgetOperations
	case strings.Contains(msg, "stack overflow") || strings.Contains(msg, "too deep"):
		return CategoryBudgetRecursion
	case isCompileError(err):
		return CategorySyntacticFailure
	default:
		return CategoryRuntimeFailure
	}
}

func isCompileError(err error) bool {
	switch err.(type) {
	case *tengo.CompileError, parser.ErrorList, *parser.Error:
		return true
	}
	return false
}

// diagnosticFor renders a human diagnostic. tengo's *tengo.CompileError
// already formats its message with a "<file>:<line>:<column>" position
// (spec §4.4's requirement for syntactic failures), so Run doesn't need to
// re-derive it.
func diagnosticFor(err error) string {
	return err.Error()
}

// ModuleName extracts the blocked module name from a security-violation
// diagnostic, best-effort, for logging purposes only.
func ModuleName(diagnostic string) string {
	i := strings.Index(diagnostic, "module '")
	if i < 0 {
		return ""
	}
	rest := diagnostic[i+len("module '"):]
	j := strings.IndexByte(rest, '\'')
	if j < 0 {
		return ""
	}
	return rest[:j]
}
