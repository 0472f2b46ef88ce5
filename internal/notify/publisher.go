package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/sphinxserve/internal/builder"
)

// BuildEvent is the wire form of a completed build notification.
type BuildEvent struct {
	BuildID   string    `json:"build_id"`
	ExitCode  int       `json:"exit_code"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

// Publisher emits build lifecycle events to interested consumers.
// Publishing is fire-and-forget: a failed publish is logged, never retried,
// and never affects the build loop.
type Publisher interface {
	PublishBuild(res builder.Result)
	Close()
}

// NoopPublisher is used when no notification target is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishBuild(builder.Result) {}
func (NoopPublisher) Close()                      {}

// NATSPublisher publishes build events to a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to the given NATS server.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	slog.Info("build event publisher connected", "url", url, "subject", subject)
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

func (p *NATSPublisher) PublishBuild(res builder.Result) {
	event := BuildEvent{
		BuildID:   res.ID,
		ExitCode:  res.ExitCode,
		StartedAt: res.StartedAt,
		Duration:  res.Duration.String(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("marshal build event", "error", err)
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		slog.Warn("publish build event", "subject", p.subject, "error", err)
	}
}

func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
