package metrics

import "time"

// Recorder defines observability hooks for the watch/build/serve loop.
// All methods must be cheap and safe for concurrent use; the NoopRecorder
// allows optional injection.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string) // outcome: success|failed
	IncWatchEvents()
	SetReloadClients(n int)
	IncReloadConnections()
	IncReloadDisconnections()
	IncReloadBroadcasts()
	IncReloadDroppedClients()
}

// NoopRecorder is a Recorder that does nothing (default when metrics are disabled).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration) {}
func (NoopRecorder) IncBuildOutcome(string)             {}
func (NoopRecorder) IncWatchEvents()                    {}
func (NoopRecorder) SetReloadClients(int)               {}
func (NoopRecorder) IncReloadConnections()              {}
func (NoopRecorder) IncReloadDisconnections()           {}
func (NoopRecorder) IncReloadBroadcasts()               {}
func (NoopRecorder) IncReloadDroppedClients()           {}
