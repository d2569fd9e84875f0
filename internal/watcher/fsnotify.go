package watcher

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/czadmedia/FileIndexer/internal/ferrors"
)

// ErrAlreadyWatching is returned by Start while a watch is active.
var ErrAlreadyWatching = ferrors.New(ferrors.ErrCodeWatchActive, "watcher is already running", nil)

// FSWatcher implements Watcher on top of fsnotify.
type FSWatcher struct {
	opts Options

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	events   chan Event
	stopCh   chan struct{}
	doneCh   chan struct{}
	watching bool
}

var _ Watcher = (*FSWatcher)(nil)

// NewFS creates a stopped FSWatcher. The native queue is acquired by
// Start, so the same value can watch, stop, and watch again.
func NewFS(opts Options) *FSWatcher {
	return &FSWatcher{opts: opts.WithDefaults()}
}

// Start begins watching the given roots.
func (w *FSWatcher) Start(roots ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watching {
		return ErrAlreadyWatching
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeWatchInit, err)
	}

	for _, root := range roots {
		w.register(fsw, root)
	}

	w.fsw = fsw
	w.events = make(chan Event, w.opts.EventBufferSize)
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.watching = true

	go w.loop(fsw, w.events, w.stopCh, w.doneCh)
	return nil
}

// register attaches one root to the native queue. Directory roots are
// registered recursively; a file root registers its parent directory.
// Missing roots are accepted without error.
func (w *FSWatcher) register(fsw *fsnotify.Watcher, root string) {
	abs, err := filepath.Abs(root)
	if err != nil {
		slog.Warn("cannot resolve watch root",
			slog.String("root", root),
			slog.String("error", err.Error()))
		return
	}

	info, err := os.Stat(abs)
	if err != nil {
		// Best-effort: non-existent paths simply never fire.
		return
	}

	if !info.IsDir() {
		if addErr := fsw.Add(filepath.Dir(abs)); addErr != nil {
			slog.Warn("failed to watch parent directory",
				slog.String("path", abs),
				slog.String("error", addErr.Error()))
		}
		return
	}

	addTree(fsw, abs)
}

// addTree registers dir and every subdirectory beneath it.
func addTree(fsw *fsnotify.Watcher, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if addErr := fsw.Add(path); addErr != nil {
			slog.Warn("failed to watch directory",
				slog.String("path", path),
				slog.String("error", addErr.Error()))
		}
		return nil
	})
}

// loop is the dedicated watcher goroutine. It blocks on the native
// event queue until the queue closes or Stop is called.
func (w *FSWatcher) loop(fsw *fsnotify.Watcher, events chan Event, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	defer close(events)

	for {
		select {
		case <-stopCh:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(fsw, events, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			// Overflow and transient native errors are not surfaced;
			// the next event for an affected file re-triggers indexing.
			slog.Debug("watcher error discarded", slog.String("error", err.Error()))
		}
	}
}

// handle reduces one native event and emits it.
func (w *FSWatcher) handle(fsw *fsnotify.Watcher, events chan Event, ev fsnotify.Event) {
	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}

	var op Op
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
		// A directory created at runtime must be on the native queue
		// before its create event is delivered downstream, or events
		// inside it race with the subscription and are lost.
		if isDir {
			addTree(fsw, ev.Name)
		}
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		op = OpDelete
		isDir = false
	default:
		// Chmod and other noise.
		return
	}

	select {
	case events <- Event{Path: ev.Name, Op: op, IsDir: isDir, Timestamp: time.Now()}:
	default:
		slog.Warn("event buffer full, dropping event",
			slog.String("path", ev.Name),
			slog.String("op", op.String()))
	}
}

// Events returns the current event channel. Nil before the first Start.
func (w *FSWatcher) Events() <-chan Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.events
}

// Stop ends the watch. Safe to call repeatedly and from any goroutine;
// returns once the watcher goroutine has exited.
func (w *FSWatcher) Stop() error {
	w.mu.Lock()
	if !w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = false
	close(w.stopCh)
	_ = w.fsw.Close()
	done := w.doneCh
	w.mu.Unlock()

	<-done
	return nil
}

// IsWatching reports whether a watch is active.
func (w *FSWatcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}
