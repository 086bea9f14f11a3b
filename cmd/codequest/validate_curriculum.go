package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/ocagi/codequest/internal/curriculum"
)

// validateCurriculumCommand loads a curriculum root the same way "play"
// does, then touches every lesson's validator source so an author catches
// a missing validation.tengo or a malformed task.json before a player does.
type validateCurriculumCommand struct {
	root string
}

func (*validateCurriculumCommand) Name() string { return "validate-curriculum" }
func (*validateCurriculumCommand) Synopsis() string {
	return "load a curriculum directory and report errors"
}
func (*validateCurriculumCommand) Usage() string {
	return "validate-curriculum [-root curriculum] - check a curriculum directory\n"
}

func (v *validateCurriculumCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&v.root, "root", "curriculum", "path to the curriculum root directory")
}

func (v *validateCurriculumCommand) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	curr, err := curriculum.Load(v.root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "codequest: %v\n", err)
		return subcommands.ExitFailure
	}

	failed := false
	for _, chapter := range curr.Chapters() {
		fmt.Printf("chapter %q\n", chapter)
	}

	lesson := curr.First()
	for lesson != nil {
		if _, err := curr.ValidatorSource(lesson); err != nil {
			fmt.Fprintf(os.Stderr, "lesson %s (%s): %v\n", lesson.UUID, lesson.Title, err)
			failed = true
		}
		lesson = curr.Next(lesson.UUID)
	}

	fmt.Printf("%d lessons checked.\n", curr.Count())
	if failed {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
