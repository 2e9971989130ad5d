package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/shottracker/shottracker/internal/config"
	"github.com/shottracker/shottracker/internal/logging"
	"github.com/spf13/pflag"
)

// errUsage is returned after usage was printed for a bad invocation.
var errUsage = errors.New("usage")

type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	log *slog.Logger // set by parse
}

type command struct {
	name    string
	summary string
	run     func(c *cli, ctx context.Context, args []string) error
}

var commands = []command{
	{"serve", "run the ballistics service and aim stream", (*cli).serve},
	{"rifles", "list, add or show rifle profiles (list | add | get ID)", (*cli).rifles},
	{"shots", "list recently calculated shots", (*cli).shots},
	{"calc", "calculate drop and drift for one shot", (*cli).calc},
	{"aim", "open a live aim session, reading updates from stdin", (*cli).aim},
	{"reticle", "lay out a correction on the reticle", (*cli).reticle},
	{"angle", "resolve the wind angle from two bearings (angle SHOOTING WIND)", (*cli).angle},
	{"version", "print the version", (*cli).version},
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.usage(c.stderr)
		return errUsage
	}

	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		c.usage(c.stdout)
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd.run(c, ctx, args[1:])
		}
	}
	c.usage(c.stderr)
	return fmt.Errorf("unknown command %q", name)
}

func (c *cli) usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s <command> [flags]\n\nCommands:\n", AppName)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, cmd := range commands {
		fmt.Fprintf(tw, "  %s\t%s\n", cmd.name, cmd.summary)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\nRun '%s <command> --help' for command flags.\n", AppName)
}

// newFlagSet returns a flag set carrying the flags every command shares.
// Flags named after a config key override that key.
func (c *cli) newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.String("config", ".", "directory containing "+config.ConfigFileName)
	fs.String("logLevel", "", "log level (debug, info, warn, error)")
	return fs
}

// parse parses args, loads the config file and binds the flags over it.
func (c *cli) parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return errUsage
		}
		return err
	}

	dir, _ := fs.GetString("config")
	configErr := config.Load(dir)
	if err := config.BindFlags(fs); err != nil {
		return err
	}

	// client commands stay quiet unless asked
	level := "warn"
	if fs.Changed("logLevel") {
		level = config.GetString("logLevel")
	}
	c.log = consoleLogger(c.stderr, level)
	if configErr != nil {
		c.log.Debug("Failed to load config, using defaults", "error", configErr)
	}
	return nil
}

func consoleLogger(w io.Writer, level string) *slog.Logger {
	m := logging.NewSlogManager()
	if err := m.Setup(logging.Options{File: w, Level: level}); err != nil {
		return slog.Default()
	}
	return m.Logger()
}

func (c *cli) version(_ context.Context, _ []string) error {
	fmt.Fprintf(c.stdout, "%s %s (built %s)\n", AppName, Version, BuildDate)
	return nil
}
