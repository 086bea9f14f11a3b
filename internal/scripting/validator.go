package scripting

import (
	"context"
	"fmt"

	"github.com/d5/tengo/v2"
)

// ValidatorOutcome is the (passed, diagnostic) pair spec §3 assigns to
// Validator: "a side-effect-free predicate over (execution_scope,
// captured_stdout) returning a boolean plus an optional diagnostic."
type ValidatorOutcome struct {
	Passed  bool
	Message string
}

// RunValidator evaluates a validator script against the bindings a
// submission produced and its captured stdout. The validator script is
// itself tengo source (spec Design Notes §9: "the validator is itself
// authored in the same embedded language"); it is handed two read-only
// globals, `scope` (an immutable map of the submission's bindings) and
// `stdout` (a string), and is expected to set two globals of its own,
// `passed` (bool) and, optionally, `message` (string).
func RunValidator(ctx context.Context, source []byte, scopeVars map[string]interface{}, stdout string) (ValidatorOutcome, error) {
	script := tengo.NewScript(source)
	script.EnableFileImport(false)

	scopeMap := &tengo.ImmutableMap{Value: make(map[string]tengo.Object, len(scopeVars))}
	for k, v := range scopeVars {
		obj, err := tengo.FromInterface(v)
		if err != nil {
			// A binding tengo can't represent (e.g. a function closure) is
			// simply omitted from what the validator can see; it is still
			// present in the real ExecutionScope the submission ran against.
			continue
		}
		scopeMap.Value[k] = obj
	}
	if err := script.Add("scope", scopeMap); err != nil {
		return ValidatorOutcome{}, fmt.Errorf("bind validator scope: %w", err)
	}
	if err := script.Add("stdout", stdout); err != nil {
		return ValidatorOutcome{}, fmt.Errorf("bind validator stdout: %w", err)
	}

	compiled, err := script.RunContext(ctx)
	if err != nil {
		return ValidatorOutcome{}, fmt.Errorf("validator execution failed: %w", err)
	}

	passedVar := compiled.Get("passed")
	if passedVar == nil {
		return ValidatorOutcome{}, fmt.Errorf("validator did not set a 'passed' global")
	}
	passed, ok := passedVar.Value().(bool)
	if !ok {
		return ValidatorOutcome{}, fmt.Errorf("validator's 'passed' global is not a bool")
	}

	message := ""
	if msgVar := compiled.Get("message"); msgVar != nil {
		if s, ok := msgVar.Value().(string); ok {
			message = s
		}
	}
	return ValidatorOutcome{Passed: passed, Message: message}, nil
}
