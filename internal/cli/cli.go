// Package cli provides the command-line interface for reconcile.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/c0deZ3R0/go-listing-sync/internal/ui"
	"github.com/c0deZ3R0/go-listing-sync/logging"
)

// Version is the current version of the application.
var Version = "dev"

// Run executes the CLI application with the given context and arguments.
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	app := &cli.Command{
		Name:      "reconcile",
		Usage:     "Detect and resolve conflicts between local and marketplace product data",
		Version:   Version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output (info level logging)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug output (debug level logging, implies verbose)",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("no-color") {
				ui.DisableColors()
			}
			configureLogging(cmd, stderr)
			return ctx, nil
		},
		Commands: []*cli.Command{
			runCommand(),
			historyCommand(),
			strategiesCommand(),
		},
	}
	return app.Run(ctx, args)
}

// configureLogging installs the default logger. Environment settings from
// LOG_LEVEL/LOG_FORMAT apply unless a flag overrides the level.
func configureLogging(cmd *cli.Command, out io.Writer) {
	config := logging.GetConfigFromEnv()
	config.Output = out
	if os.Getenv("LOG_FORMAT") == "" {
		config.Format = "text"
	}
	if os.Getenv("LOG_LEVEL") == "" {
		config.Level = "warn"
	}

	if cmd.Bool("debug") {
		config.AddSource = true
	}
	logger, level := logging.NewLoggerWithDynamicLevel(config)
	switch {
	case cmd.Bool("debug"):
		level.SetFromString("debug")
	case cmd.Bool("verbose"):
		level.SetFromString("info")
	}
	logging.SetDefault(logger)

	logging.Debug("logging configured", slog.String("level", level.Level().String()))
}
