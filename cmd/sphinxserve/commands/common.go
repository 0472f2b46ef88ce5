package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sphinxserve/internal/config"
)

// Global carries root-level state into subcommand Run methods.
type Global struct {
	CLI *CLI
}

// CLI is the root command definition with global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"sphinxserve.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Serve     ServeCmd     `cmd:"" default:"withargs" help:"Watch a source tree, rebuild on change and serve the rendered output"`
	Install   InstallCmd   `cmd:"" help:"Print a shell script that installs a containerized wrapper under ~/bin"`
	Uninstall UninstallCmd `cmd:"" help:"Print a shell script that removes the containerized wrapper"`
}

// AfterApply runs after flag parsing; set up logging once so even config
// loading errors are reported through the configured handler.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// configureLogging re-applies the handler once the file configuration is
// known. The verbose flag always wins over the configured level.
func configureLogging(cfg *config.Config, verbose bool) {
	level := cfg.Logging.Level.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Logging.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
