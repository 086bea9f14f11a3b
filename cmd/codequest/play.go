package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"

	"github.com/ocagi/codequest/internal/curriculum"
	"github.com/ocagi/codequest/internal/engine"
	"github.com/ocagi/codequest/internal/executor"
	"github.com/ocagi/codequest/internal/progress"
)

// playCommand is the reference terminal UI collaborator: a minimal REPL
// that turns stdin lines into engine.ProcessInput calls and prints the
// resulting Action. It is deliberately thin -- the UI/rendering layer is
// out of this repository's core (spec §1's hard-core/UI boundary); this
// command exists only so the Simulation Engine has somewhere to run.
type playCommand struct {
	settingsPath string
}

func (*playCommand) Name() string     { return "play" }
func (*playCommand) Synopsis() string { return "run the curriculum in a terminal session" }
func (*playCommand) Usage() string {
	return "play [-config codequest.toml] - work through the curriculum\n"
}

func (p *playCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.settingsPath, "config", "", "path to an optional codequest.toml settings file")
}

func (p *playCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg := loadConfig(p.settingsPath)

	curr, err := curriculum.Load(cfg.CurriculumRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "codequest: fatal: %v\n", err)
		return subcommands.ExitFailure
	}

	progressDir := filepath.Dir(cfg.ProgressPath)
	if progressDir == "" {
		progressDir = "."
	}
	if err := os.MkdirAll(progressDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "codequest: could not create progress directory: %v\n", err)
		return subcommands.ExitFailure
	}
	store := progress.New(progressDir)
	prog, err := store.Load(func(uuid string) bool { return curr.ByUUID(uuid) != nil })
	if err != nil {
		fmt.Fprintf(os.Stderr, "codequest: could not load progress: %v\n", err)
		return subcommands.ExitFailure
	}

	exec := executor.New(os.Args[0])
	eng := engine.New(prog, store, curr, exec, cfg.WallClock(), cfg.Budget)

	return runREPL(ctx, eng, os.Stdin, os.Stdout)
}

func runREPL(ctx context.Context, eng *engine.Engine, in *os.File, out *os.File) subcommands.ExitStatus {
	scanner := bufio.NewScanner(in)
	render(out, eng.NextAction())

	for {
		fmt.Fprint(out, "\ncodequest> ")
		input, ok := readSubmission(scanner)
		if !ok {
			fmt.Fprintln(out, "\nbye.")
			return subcommands.ExitSuccess
		}
		action := eng.ProcessInput(ctx, input)
		render(out, action)
		if action.Kind == engine.ActionExit {
			return subcommands.ExitStatus(action.ExitCode)
		}
	}
}

// readSubmission reads one line verbatim as a command, or (when the line is
// exactly ":code") reads subsequent lines until a lone "." terminator as
// multi-line source to submit.
func readSubmission(scanner *bufio.Scanner) (string, bool) {
	if !scanner.Scan() {
		return "", false
	}
	line := scanner.Text()
	if line != ":code" {
		return line, true
	}

	var lines []string
	for scanner.Scan() {
		l := scanner.Text()
		if l == "." {
			return strings.Join(lines, "\n"), true
		}
		lines = append(lines, l)
	}
	return strings.Join(lines, "\n"), true
}

func render(out *os.File, action engine.Action) {
	switch action.Kind {
	case engine.ActionRenderEditor:
		fmt.Fprintf(out, "[%s] %s (%s)\n", action.Status, action.Lesson.Title, action.Lesson.UUID)
		if action.Lesson.Hint != "" {
			fmt.Fprintf(out, "hint: %s\n", action.Lesson.Hint)
		}
		fmt.Fprintf(out, "completed=%d skipped=%d xp=%d\n", action.CompletedCount, action.SkippedCount, action.TotalXP)
	case engine.ActionRenderCelebration:
		fmt.Fprintf(out, "all done. completed=%d skipped=%d xp=%d\n", action.CompletedCount, action.SkippedCount, action.TotalXP)
	case engine.ActionShowMessage:
		fmt.Fprintf(out, "[%s] %s\n", action.MessageKind, action.MessageBody)
	case engine.ActionCustomView:
		fmt.Fprintf(out, "<%s>\n", action.ViewName)
	case engine.ActionExit:
		fmt.Fprintln(out, "exiting.")
	}
}
