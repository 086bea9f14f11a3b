// Binary codequest is the command-line entrypoint: subcommand dispatch via
// google/subcommands, the way runsc/cli.Main dispatches runsc's OCI
// subcommands, plus one hidden flag that turns this same binary into the
// re-exec'd worker process internal/executor spawns.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/ocagi/codequest/internal/config"
	"github.com/ocagi/codequest/internal/executor"
	"github.com/ocagi/codequest/internal/logging"
	"github.com/ocagi/codequest/internal/worker"
)

func main() {
	if hasWorkerModeFlag() {
		runWorker()
		return
	}

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&playCommand{}, "")
	subcommands.Register(&resetProgressCommand{}, "")
	subcommands.Register(&validateCurriculumCommand{}, "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}

// hasWorkerModeFlag checks os.Args directly rather than registering the flag
// on the top-level FlagSet: executor.WorkerModeFlag is an internal
// implementation detail of how the parent process re-execs this binary, not
// a user-facing flag subcommands.Execute's help output should ever list.
func hasWorkerModeFlag() bool {
	for _, arg := range os.Args[1:] {
		if arg == executor.WorkerModeFlag {
			return true
		}
	}
	return false
}

func runWorker() {
	if err := worker.Run(context.Background(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		logging.For("cmd").WithError(err).Warn("settings file present but malformed, continuing with defaults")
	}
	logging.Configure(logging.Level(cfg.LogLevel), os.Stderr)
	return cfg
}
