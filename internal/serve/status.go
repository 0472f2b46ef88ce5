package serve

import (
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/sphinxserve/internal/builder"
	"git.home.luguber.info/inful/sphinxserve/internal/server"
)

// Service lifecycle states surfaced by the status API.
const (
	StateRunning  = "running"
	StateDraining = "draining"
	StateStopped  = "stopped"
)

// statusTracker records the latest build outcome for the status endpoint.
type statusTracker struct {
	mu           sync.RWMutex
	state        string
	startedAt    time.Time
	lastID       string
	lastExit     int
	lastError    string
	hasGoodBuild bool
}

func newStatusTracker() *statusTracker {
	return &statusTracker{state: StateRunning, startedAt: time.Now()}
}

func (t *statusTracker) setState(state string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
}

func (t *statusTracker) record(res builder.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastID = res.ID
	t.lastExit = res.ExitCode
	if res.Failed() {
		t.lastError = strings.TrimSpace(res.Stderr)
	} else {
		t.lastError = ""
		t.hasGoodBuild = true
	}
}

func (t *statusTracker) lastBuildID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastID
}

// Snapshot implements server.StatusSource.
func (t *statusTracker) Snapshot() server.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return server.Status{
		State:        t.state,
		StartedAt:    t.startedAt,
		LastBuildID:  t.lastID,
		LastExitCode: t.lastExit,
		LastError:    t.lastError,
		HasGoodBuild: t.hasGoodBuild,
	}
}
