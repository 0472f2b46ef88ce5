package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event describes one qualifying filesystem change.
type Event struct {
	Path string
	Op   string
	At   time.Time
}

// Watcher recursively observes a directory tree and invokes a callback for
// every create/write/remove/rename touching a file with a qualifying
// extension. All other events are dropped silently.
type Watcher struct {
	root       string
	extensions []string
	notify     func(Event)
	fs         *fsnotify.Watcher
}

// New validates the root directory and prepares the recursive watch.
// An inaccessible or missing root is a fatal startup error.
func New(root string, extensions []string, notify func(Event)) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}
	st, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("watch root inaccessible: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("watch root is not a directory: %s", absRoot)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	if err := addDirsRecursive(fs, absRoot); err != nil {
		_ = fs.Close()
		return nil, err
	}

	return &Watcher{root: absRoot, extensions: extensions, notify: notify, fs: fs}, nil
}

// Root returns the resolved absolute watch root.
func (w *Watcher) Root() string { return w.root }

// Run consumes filesystem events until ctx is cancelled. Transient watch
// errors are logged and do not terminate the loop.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fs.Close() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	// New directories join the watch so the tree stays fully covered.
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = addDirsRecursive(w.fs, ev.Name)
			return
		}
	}
	if !w.qualifies(ev.Name) {
		return
	}
	slog.Debug("filesystem event", "path", ev.Name, "op", ev.Op.String())
	w.notify(Event{Path: ev.Name, Op: ev.Op.String(), At: time.Now()})
}

// qualifies reports whether the file name carries one of the configured
// suffixes. Extensions are given bare ("rst", "rst~") and matched against
// the trailing ".<ext>" of the base name.
func (w *Watcher) qualifies(path string) bool {
	base := filepath.Base(path)
	for _, ext := range w.extensions {
		if strings.HasSuffix(base, "."+ext) {
			return true
		}
	}
	return false
}

func addDirsRecursive(fs *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := fs.Add(path); err != nil {
				slog.Warn("watch add failed", "dir", path, "error", err)
			}
		}
		return nil
	})
}
