package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/subcommands"

	"github.com/ocagi/codequest/internal/progress"
)

// resetProgressCommand overwrites progress.json with default progress
// without starting a session, the CLI-level equivalent of engine's RESET_ALL
// command for when no interactive session is running. Like any Store.Save,
// it first copies the existing progress.json to progress.backup.json, so the
// discarded progress remains in the backup slot.
type resetProgressCommand struct {
	settingsPath string
}

func (*resetProgressCommand) Name() string     { return "reset-progress" }
func (*resetProgressCommand) Synopsis() string { return "discard saved progress and start over" }
func (*resetProgressCommand) Usage() string {
	return "reset-progress [-config codequest.toml] - discard saved progress\n"
}

func (r *resetProgressCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.settingsPath, "config", "", "path to an optional codequest.toml settings file")
}

func (r *resetProgressCommand) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg := loadConfig(r.settingsPath)

	progressDir := filepath.Dir(cfg.ProgressPath)
	if progressDir == "" {
		progressDir = "."
	}
	store := progress.New(progressDir)
	if err := store.Save(progress.Default()); err != nil {
		fmt.Fprintf(os.Stderr, "codequest: could not reset progress: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println("progress reset.")
	return subcommands.ExitSuccess
}
