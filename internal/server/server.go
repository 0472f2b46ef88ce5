package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/sphinxserve/internal/history"
)

// Status is the coordinator-side state exposed by the status API.
type Status struct {
	State        string    `json:"state"`
	StartedAt    time.Time `json:"started_at"`
	LastBuildID  string    `json:"last_build_id,omitempty"`
	LastExitCode int       `json:"last_exit_code"`
	LastError    string    `json:"last_error,omitempty"`
	HasGoodBuild bool      `json:"has_good_build"`
}

// StatusSource supplies the current coordinator status.
type StatusSource interface {
	Snapshot() Status
}

// BuildLister supplies recent build history for the API.
type BuildLister interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

// Options configures the web server.
type Options struct {
	Socket       string // host:port bind address
	RootDir      string // rendered output directory served at /
	Status       StatusSource
	History      BuildLister // nil disables /api/builds
	HistoryLimit int
	Metrics      http.Handler // nil disables the metrics endpoint
	MetricsPath  string
	Hub          *Hub
}

// Server serves the rendered output directory and the live-reload push
// endpoint on a single socket.
type Server struct {
	opts Options
	hub  *Hub
	srv  *http.Server
	ln   net.Listener
}

// New assembles the server around the given hub.
func New(opts Options) *Server {
	if opts.Hub == nil {
		opts.Hub = NewHub(nil)
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	return &Server{opts: opts, hub: opts.Hub}
}

// Hub returns the live-reload hub, for broadcasting and client counting.
func (s *Server) Hub() *Hub { return s.hub }

// Addr returns the bound listen address, empty before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Start binds the socket and begins serving. Binding failures surface
// immediately; the serve loop itself runs in a goroutine until Stop.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Socket)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.opts.Socket, err)
	}
	s.ln = ln

	// No write timeout: the push endpoint holds connections open.
	s.srv = &http.Server{
		Handler:     s.routes(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 300 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("web server terminated", "error", err)
		}
	}()
	slog.Info("web server listening", "socket", s.opts.Socket, "root", s.opts.RootDir)
	return nil
}

// Stop closes the push connections and shuts the listener down within ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Shutdown()
	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	slog.Info("web server stopped")
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", injectReloadScript(http.FileServer(http.Dir(s.opts.RootDir))))
	mux.Handle("/livereload", s.hub)
	mux.HandleFunc("/livereload.js", handleReloadScript)
	mux.HandleFunc("/api/status", s.handleStatus)
	if s.opts.History != nil {
		mux.HandleFunc("/api/builds", s.handleBuilds)
	}
	if s.opts.Metrics != nil {
		mux.Handle(s.opts.MetricsPath, s.opts.Metrics)
	}
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var status Status
	if s.opts.Status != nil {
		status = s.opts.Status.Snapshot()
	}
	response := struct {
		Status
		Clients int `json:"livereload_clients"`
	}{Status: status, Clients: s.hub.ClientCount()}

	writeJSON(w, response)
}

func (s *Server) handleBuilds(w http.ResponseWriter, r *http.Request) {
	records, err := s.opts.History.Recent(r.Context(), s.opts.HistoryLimit)
	if err != nil {
		slog.Error("list build history", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, struct {
		Builds []history.Record `json:"builds"`
	}{Builds: records})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write json response", "error", err)
	}
}
