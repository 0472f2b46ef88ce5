package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sphinxserve/internal/history"
)

type staticStatus struct{ s Status }

func (s staticStatus) Snapshot() Status { return s.s }

type fakeLister struct{ records []history.Record }

func (f fakeLister) Recent(_ context.Context, limit int) ([]history.Record, error) {
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	s := New(opts)
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return ts
}

func writeSite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	index := `<html><head></head><body><h1>Test sphinxserve</h1></body></html>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "style.css"), []byte("body{}"), 0o644))
	return dir
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, string(body)
}

func TestStaticFilesServed(t *testing.T) {
	ts := newTestServer(t, Options{RootDir: writeSite(t)})

	resp, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Test sphinxserve")

	resp, body = get(t, ts.URL+"/style.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/css")
	assert.Contains(t, body, "body{}")
}

func TestMissingPathReturnsNotFound(t *testing.T) {
	ts := newTestServer(t, Options{RootDir: writeSite(t)})

	resp, _ := get(t, ts.URL+"/nope.html")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReloadScriptInjectedIntoHTML(t *testing.T) {
	ts := newTestServer(t, Options{RootDir: writeSite(t)})

	_, body := get(t, ts.URL+"/")
	assert.Contains(t, body, `src="/livereload.js"`)
	assert.Contains(t, body, "</body>")
}

func TestReloadScriptNotInjectedIntoAssets(t *testing.T) {
	ts := newTestServer(t, Options{RootDir: writeSite(t)})

	_, body := get(t, ts.URL+"/style.css")
	assert.NotContains(t, body, "livereload.js")
}

func TestReloadScriptEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{RootDir: writeSite(t)})

	resp, body := get(t, ts.URL+"/livereload.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "javascript")
	assert.Contains(t, body, "EventSource")
}

func TestStatusEndpoint(t *testing.T) {
	status := Status{
		State:        "running",
		StartedAt:    time.Now().UTC(),
		LastBuildID:  "abc",
		HasGoodBuild: true,
	}
	ts := newTestServer(t, Options{RootDir: writeSite(t), Status: staticStatus{status}})

	resp, body := get(t, ts.URL+"/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded struct {
		State        string `json:"state"`
		LastBuildID  string `json:"last_build_id"`
		HasGoodBuild bool   `json:"has_good_build"`
		Clients      int    `json:"livereload_clients"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &decoded))
	assert.Equal(t, "running", decoded.State)
	assert.Equal(t, "abc", decoded.LastBuildID)
	assert.True(t, decoded.HasGoodBuild)
	assert.Equal(t, 0, decoded.Clients)
}

func TestBuildsEndpoint(t *testing.T) {
	lister := fakeLister{records: []history.Record{
		{ID: "b2", ExitCode: 0},
		{ID: "b1", ExitCode: 1, Stderr: "boom"},
	}}
	ts := newTestServer(t, Options{RootDir: writeSite(t), History: lister})

	resp, body := get(t, ts.URL+"/api/builds")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded struct {
		Builds []history.Record `json:"builds"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &decoded))
	require.Len(t, decoded.Builds, 2)
	assert.Equal(t, "b2", decoded.Builds[0].ID)
	assert.Equal(t, "boom", decoded.Builds[1].Stderr)
}

func TestBuildsEndpointAbsentWhenHistoryDisabled(t *testing.T) {
	ts := newTestServer(t, Options{RootDir: writeSite(t)})

	resp, _ := get(t, ts.URL+"/api/builds")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartStopLifecycle(t *testing.T) {
	s := New(Options{Socket: "127.0.0.1:0", RootDir: writeSite(t)})
	// Port 0 is fine for the lifecycle check; we only exercise bind/shutdown.
	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
