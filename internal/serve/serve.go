package serve

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/sphinxserve/internal/builder"
	"git.home.luguber.info/inful/sphinxserve/internal/config"
	"git.home.luguber.info/inful/sphinxserve/internal/history"
	"git.home.luguber.info/inful/sphinxserve/internal/metrics"
	"git.home.luguber.info/inful/sphinxserve/internal/notify"
	"git.home.luguber.info/inful/sphinxserve/internal/server"
	"git.home.luguber.info/inful/sphinxserve/internal/watcher"
)

// Service owns the shared coordination state (the two latches and the push
// connection set) and the three long-lived tasks: watch, build-coordinate,
// serve. Everything is constructed once here and handed into each task at
// spawn time; there is no ambient global state.
type Service struct {
	cfg    *config.Config
	change *Latch
	ready  *Latch
	status *statusTracker

	rec   metrics.Recorder
	watch *watcher.Watcher
	coord *builder.Coordinator
	web   *server.Server
	hist  *history.Store
	pub   notify.Publisher
	sched *scheduler
}

// New validates the environment and wires every component. A missing or
// inaccessible source path fails here, before any task starts.
func New(cfg *config.Config) (*Service, error) {
	s := &Service{
		cfg:    cfg,
		change: NewLatch(),
		ready:  NewLatch(),
		status: newStatusTracker(),
		pub:    notify.NoopPublisher{},
		rec:    metrics.NoopRecorder{},
	}

	var metricsHandler http.Handler
	if cfg.Server.Metrics {
		pr := metrics.NewPrometheusRecorder(nil)
		s.rec = pr
		metricsHandler = pr.Handler()
	}

	w, err := watcher.New(cfg.SourcePath, cfg.Extensions, func(ev watcher.Event) {
		s.rec.IncWatchEvents()
		if s.change.TrySet() {
			slog.Debug("rebuild pending", "path", ev.Path)
		}
	})
	if err != nil {
		return nil, err
	}
	s.watch = w

	runner := builder.NewRunner(cfg.Build.Command, cfg.Build.Args, w.Root(), cfg.OutputDir(), cfg.Build.Timeout)
	s.coord = builder.NewCoordinator(runner, s.change, s.ready)
	s.coord.OnResult(s.status.record)
	s.coord.OnResult(func(res builder.Result) {
		s.rec.ObserveBuildDuration(res.Duration)
		if res.Failed() {
			s.rec.IncBuildOutcome("failed")
		} else {
			s.rec.IncBuildOutcome("success")
		}
	})

	if cfg.History.Path != "" {
		hist, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open build history: %w", err)
		}
		s.hist = hist
		s.coord.OnResult(func(res builder.Result) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := hist.Append(ctx, res); err != nil {
				slog.Warn("record build history", "error", err)
			}
		})
	}

	if cfg.Notify.URL != "" {
		pub, err := notify.NewNATSPublisher(cfg.Notify.URL, cfg.Notify.Subject)
		if err != nil {
			return nil, fmt.Errorf("build event publisher: %w", err)
		}
		s.pub = pub
		s.coord.OnResult(pub.PublishBuild)
	}

	opts := server.Options{
		Socket:       cfg.Socket,
		RootDir:      cfg.OutputDir(),
		Status:       s.status,
		HistoryLimit: cfg.History.Limit,
		Metrics:      metricsHandler,
		MetricsPath:  cfg.Server.MetricsPath,
		Hub:          server.NewHub(s.rec),
	}
	if s.hist != nil {
		opts.History = s.hist
	}
	s.web = server.New(opts)

	if cfg.Build.Every > 0 {
		sched, err := newScheduler(cfg.Build.Every, s.change)
		if err != nil {
			return nil, err
		}
		s.sched = sched
	}

	return s, nil
}

// Run performs the initial build, starts the web server and the concurrent
// tasks, and blocks until ctx is cancelled and shutdown has drained. The
// returned error is non-nil only for the two fatal startup cases; a clean
// shutdown returns nil.
func (s *Service) Run(ctx context.Context) error {
	defer s.cleanup()

	// The first build is the only one whose failure is fatal: without it
	// there is nothing valid to serve.
	if _, err := s.coord.RunInitial(); err != nil {
		return err
	}

	if err := s.web.Start(ctx); err != nil {
		return fmt.Errorf("start web server: %w", err)
	}

	taskCtx, cancelTasks := context.WithCancel(ctx)
	defer cancelTasks()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := s.watch.Run(taskCtx); err != nil && taskCtx.Err() == nil {
			slog.Error("watch task terminated", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		_ = s.coord.Run(taskCtx)
	}()
	go func() {
		defer wg.Done()
		s.broadcastLoop(taskCtx)
	}()

	if s.sched != nil {
		s.sched.start()
	}

	slog.Info("serving docs", "socket", s.cfg.Socket, "source", s.watch.Root())
	<-ctx.Done()

	s.shutdown(cancelTasks, &wg)
	return nil
}

// Addr returns the web server's bound address, empty until it has started.
func (s *Service) Addr() string { return s.web.Addr() }

// broadcastLoop pushes a reload notification to all connected clients after
// every completed build.
func (s *Service) broadcastLoop(ctx context.Context) {
	for {
		if err := s.ready.Wait(ctx); err != nil {
			return
		}
		s.web.Hub().Broadcast(s.status.lastBuildID())
	}
}

// shutdown drains the tasks: the watch, broadcast and serve tasks stop
// immediately, an in-flight build may finish naturally, and a hard grace
// period bounds the whole drain so a stuck build cannot hang the process.
func (s *Service) shutdown(cancelTasks context.CancelFunc, wg *sync.WaitGroup) {
	slog.Info("shutdown requested, draining")
	s.status.setState(StateDraining)

	if s.sched != nil {
		s.sched.stop()
	}
	cancelTasks()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.web.Stop(stopCtx); err != nil {
		slog.Warn("web server shutdown", "error", err)
	}

	// An in-flight build may finish naturally, but the drain is bounded: a
	// build that never terminates must not hang the process forever.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.Server.ShutdownGrace):
		slog.Warn("shutdown grace period elapsed, abandoning in-flight build",
			"grace", s.cfg.Server.ShutdownGrace)
	}

	s.status.setState(StateStopped)
	slog.Info("shutdown complete")
}

func (s *Service) cleanup() {
	s.pub.Close()
	if s.hist != nil {
		if err := s.hist.Close(); err != nil {
			slog.Warn("close build history", "error", err)
		}
	}
}
