package server

import (
	"bufio"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/sphinxserve/internal/metrics"
)

// Hub manages SSE push connections for reload broadcasts. Connections that
// are not open at broadcast time receive nothing later: a new connection
// only ever sees future builds.
type Hub struct {
	mu      sync.Mutex
	nextID  int
	clients map[int]*hubClient
	metrics metrics.Recorder
	closed  bool
}

type hubClient struct {
	id   int
	ch   chan string
	done chan struct{}
}

// NewHub returns an empty hub. rec may be a NoopRecorder.
func NewHub(rec metrics.Recorder) *Hub {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Hub{clients: map[int]*hubClient{}, metrics: rec}
}

// ClientCount returns the number of currently open push connections.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP implements the SSE endpoint.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	client := &hubClient{ch: make(chan string, 8), done: make(chan struct{})}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	client.id = h.nextID
	h.nextID++
	h.clients[client.id] = client
	count := len(h.clients)
	h.mu.Unlock()
	h.metrics.IncReloadConnections()
	h.metrics.SetReloadClients(count)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		h.removeClient(client.id)
		return
	}
	if err := bw.Flush(); err == nil {
		flusher.Flush()
	}

	hb := time.NewTicker(30 * time.Second)
	defer hb.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.removeClient(client.id)
			return
		case <-client.done:
			return
		case <-hb.C:
			if _, err := bw.WriteString(": ping\n\n"); err != nil {
				slog.Debug("livereload ping write", "error", err)
				h.removeClient(client.id)
				return
			}
			bw.Flush()
			flusher.Flush()
		case token := <-client.ch:
			if _, err := bw.WriteString("data: {\"build\":\"" + token + "\"}\n\n"); err != nil {
				slog.Debug("livereload broadcast write", "error", err)
				h.removeClient(client.id)
				return
			}
			bw.Flush()
			flusher.Flush()
		}
	}
}

func (h *Hub) removeClient(id int) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	count := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	close(c.done)
	h.metrics.IncReloadDisconnections()
	h.metrics.SetReloadClients(count)
}

// Broadcast delivers one reload notification to every currently connected
// client. Delivery is fire-and-forget: a client whose buffer is full is
// dropped, and the broadcast continues for the others.
func (h *Hub) Broadcast(token string) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	snapshot := make([]*hubClient, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- token:
		default:
			dropped++
			h.removeClient(c.id)
			h.metrics.IncReloadDroppedClients()
		}
	}
	h.metrics.IncReloadBroadcasts()
	slog.Debug("livereload broadcast", "build", token, "clients", len(snapshot), "dropped", dropped)
}

// Shutdown closes all connections and rejects new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*hubClient{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
	h.metrics.SetReloadClients(0)
}
