// Package cli holds the year-end subcommands.
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/KitsFC/kefelan-year-end/internal/config"
	"github.com/KitsFC/kefelan-year-end/internal/logger"
)

// Version is printed by the version command.
const Version = "1.0.0"

// Register adds every subcommand to c.
func Register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(&versionCmd{}, "")

	c.Register(&buildCmd{}, "ledger")
	c.Register(&reportCmd{}, "ledger")
	c.Register(&serveCmd{}, "server")
}

var logLevel = flag.String("log-level", "", "Override the log level from the run file (debug, info, warn, error)")

// loadRun reads the run file and attaches a logger configured from it.
func loadRun(ctx context.Context, path string) (context.Context, *config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return ctx, nil, err
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	log := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return logger.WithContext(ctx, log), cfg, nil
}

func failf(format string, args ...interface{}) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitFailure
}

type versionCmd struct{}

func (*versionCmd) Name() string             { return "version" }
func (*versionCmd) Synopsis() string         { return "print the version" }
func (*versionCmd) Usage() string            { return "version\n" }
func (*versionCmd) SetFlags(f *flag.FlagSet) {}

func (*versionCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	fmt.Printf("kefelan-year-end v%s\n", Version)
	return subcommands.ExitSuccess
}
