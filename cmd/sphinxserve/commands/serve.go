package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/sphinxserve/internal/config"
	"git.home.luguber.info/inful/sphinxserve/internal/serve"
)

// ServeCmd runs the watch-build-serve loop for a documentation source tree.
type ServeCmd struct {
	SourcePath string `arg:"" optional:"" help:"Documentation source path (default: current directory)."`

	Socket       string        `short:"s" name:"socket" help:"host:port to serve on (default: localhost:8888)."`
	Output       string        `short:"o" name:"output" help:"Output directory name inside the source path (default: html)."`
	UID          int           `short:"u" name:"uid" help:"Numeric uid recorded for the containerized install wrapper."`
	BuildCommand string        `name:"build-command" help:"External renderer command (default: sphinx-build)."`
	BuildTimeout time.Duration `name:"build-timeout" help:"Kill a build running longer than this (default: unlimited)."`
	Metrics      bool          `name:"metrics" help:"Expose Prometheus metrics on the serving socket."`
	HistoryPath  string        `name:"history" help:"SQLite file recording build history (empty disables)."`
}

func (s *ServeCmd) Run(g *Global) error {
	cfg, err := config.Load(g.CLI.Config)
	if err != nil {
		return err
	}
	s.applyOverrides(cfg)
	configureLogging(cfg, g.CLI.Verbose)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Scaffold(cfg.SourcePath); err != nil {
		return err
	}

	svc, err := serve.New(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting", "source", cfg.SourcePath, "socket", cfg.Socket)
	return svc.Run(ctx)
}

// applyOverrides layers nonempty CLI flags over the file configuration.
func (s *ServeCmd) applyOverrides(cfg *config.Config) {
	if s.SourcePath != "" {
		cfg.SourcePath = s.SourcePath
	}
	if s.Socket != "" {
		cfg.Socket = s.Socket
	}
	if s.Output != "" {
		cfg.Output = s.Output
	}
	if s.UID != 0 {
		cfg.UID = s.UID
	}
	if s.BuildCommand != "" {
		cfg.Build.Command = s.BuildCommand
	}
	if s.BuildTimeout > 0 {
		cfg.Build.Timeout = s.BuildTimeout
	}
	if s.Metrics {
		cfg.Server.Metrics = true
	}
	if s.HistoryPath != "" {
		cfg.History.Path = s.HistoryPath
	}
}
