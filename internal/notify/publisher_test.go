package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sphinxserve/internal/builder"
)

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	p.PublishBuild(builder.Result{ID: "x"})
	p.Close()
}

func TestBuildEventRoundTrip(t *testing.T) {
	res := builder.Result{
		ID:        "abc",
		ExitCode:  1,
		StartedAt: time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
	}
	event := BuildEvent{
		BuildID:   res.ID,
		ExitCode:  res.ExitCode,
		StartedAt: res.StartedAt,
		Duration:  res.Duration.String(),
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded BuildEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "abc", decoded.BuildID)
	assert.Equal(t, 1, decoded.ExitCode)
	assert.Equal(t, "1.5s", decoded.Duration)
}

func TestNATSPublisherUnreachableServer(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:1", "sphinxserve.builds")
	assert.Error(t, err)
}
