package serve

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sphinxserve/internal/config"
)

// fakeRenderer writes a shell script standing in for sphinx-build. The
// script receives the source and output paths as its two arguments.
func fakeRenderer(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "renderer.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func testConfig(t *testing.T, renderer string) *config.Config {
	t.Helper()
	source := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(source, "index.rst"), []byte("hello\n"), 0o644))

	cfg := &config.Config{
		SourcePath: source,
		Socket:     "127.0.0.1:0",
	}
	cfg.ApplyDefaults()
	cfg.Build.Command = renderer
	cfg.Server.ShutdownGrace = 5 * time.Second
	cfg.Server.Metrics = false
	return cfg
}

// startService runs the service and waits for the web server to come up.
func startService(t *testing.T, cfg *config.Config) (*Service, context.CancelFunc, <-chan error) {
	t.Helper()
	svc, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return svc.Addr() != "" },
		5*time.Second, 20*time.Millisecond, "web server never started")
	return svc, cancel, done
}

func sseConnect(t *testing.T, url string) (*bufio.Reader, func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return bufio.NewReader(resp.Body), func() {
		_ = resp.Body.Close()
		cancel()
	}
}

func readUntil(reader *bufio.Reader, substr string) bool {
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		if strings.Contains(line, substr) {
			return true
		}
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(data), "\n")
}

func TestNewFailsWhenSourceMissing(t *testing.T) {
	cfg := testConfig(t, "/bin/true")
	cfg.SourcePath = filepath.Join(t.TempDir(), "missing")

	_, err := New(cfg)
	require.Error(t, err)
}

func TestRunFatalOnInitialBuildFailure(t *testing.T) {
	renderer := fakeRenderer(t, `echo "conf.py missing" >&2; exit 1`)
	cfg := testConfig(t, renderer)

	svc, err := New(cfg)
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conf.py missing")
	assert.Empty(t, svc.Addr(), "web server must never start after a fatal initial build")
}

func TestChangeTriggersBuildAndReload(t *testing.T) {
	log := filepath.Join(t.TempDir(), "builds.log")
	renderer := fakeRenderer(t, fmt.Sprintf(
		`mkdir -p "$2"; echo "<html><body>ok</body></html>" > "$2/index.html"; echo run >> %s`, log))
	cfg := testConfig(t, renderer)

	svc, cancel, done := startService(t, cfg)
	defer cancel()

	base := "http://" + svc.Addr()

	resp, err := http.Get(base + "/")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	reader, closeConn := sseConnect(t, base+"/livereload")
	defer closeConn()
	require.True(t, readUntil(reader, ": connected"))

	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.SourcePath, "notes.rst"), []byte("changed\n"), 0o644))

	require.True(t, readUntil(reader, "data:"), "no reload notification after change")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("service did not shut down")
	}
}

func TestNonQualifyingChangeDoesNotBuild(t *testing.T) {
	log := filepath.Join(t.TempDir(), "builds.log")
	renderer := fakeRenderer(t, fmt.Sprintf(`mkdir -p "$2"; echo run >> %s`, log))
	cfg := testConfig(t, renderer)

	_, cancel, done := startService(t, cfg)
	defer cancel()

	require.Equal(t, 1, countLines(t, log)) // initial build only

	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.SourcePath, "notes.md"), []byte("ignored\n"), 0o644))
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 1, countLines(t, log), "filtered change must not trigger a build")

	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.SourcePath, "notes.rst"), []byte("counted\n"), 0o644))
	require.Eventually(t, func() bool { return countLines(t, log) == 2 },
		5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestGracefulShutdownLetsInFlightBuildFinish(t *testing.T) {
	dir := t.TempDir()
	started := filepath.Join(dir, "started.log")
	finished := filepath.Join(dir, "finished.log")
	renderer := fakeRenderer(t, fmt.Sprintf(
		`mkdir -p "$2"; echo s >> %s; sleep 0.4; echo f >> %s`, started, finished))
	cfg := testConfig(t, renderer)

	_, cancel, done := startService(t, cfg)

	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.SourcePath, "notes.rst"), []byte("x\n"), 0o644))

	// Wait for the steady-state build to be in flight, then request shutdown.
	require.Eventually(t, func() bool { return countLines(t, started) == 2 },
		5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err, "graceful shutdown must exit cleanly")
	case <-time.After(10 * time.Second):
		t.Fatal("service did not shut down")
	}
	assert.Equal(t, 2, countLines(t, finished), "in-flight build was not allowed to finish")
}

func TestStatusEndpointReportsLastBuild(t *testing.T) {
	renderer := fakeRenderer(t, `mkdir -p "$2"; echo "<html></html>" > "$2/index.html"`)
	cfg := testConfig(t, renderer)

	svc, cancel, done := startService(t, cfg)
	defer cancel()

	resp, err := http.Get("http://" + svc.Addr() + "/api/status")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	body := string(buf[:n])
	assert.Contains(t, body, `"state":"running"`)
	assert.Contains(t, body, `"has_good_build":true`)

	cancel()
	require.NoError(t, <-done)
}

func TestHistoryRecordsBuilds(t *testing.T) {
	renderer := fakeRenderer(t, `mkdir -p "$2"`)
	cfg := testConfig(t, renderer)
	cfg.History.Path = filepath.Join(t.TempDir(), "builds.db")

	svc, cancel, done := startService(t, cfg)
	defer cancel()

	resp, err := http.Get("http://" + svc.Addr() + "/api/builds")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := make([]byte, 65536)
	n, _ := resp.Body.Read(buf)
	assert.Contains(t, string(buf[:n]), `"builds":[`)

	cancel()
	require.NoError(t, <-done)
}
