package reconcile

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watcherSet owns the filesystem watchers for local-scope skill
// directories. Watchers are created lazily and never destroyed until policy
// revokes local scope; ensureCreated is idempotent so repeated policy
// updates cannot double-register (duplicate watchers would double-fire
// reconciliation).
type watcherSet struct {
	log     *zap.Logger
	onEvent func()

	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	initialized bool
	closed      bool
}

func newWatcherSet(log *zap.Logger, onEvent func()) *watcherSet {
	return &watcherSet{log: log, onEvent: onEvent}
}

// ensureCreated registers watchers for the given directories, creating the
// underlying fsnotify watcher on first use. Directories that do not exist
// are watched via their nearest existing ancestor, so installs into
// brand-new agent directories still trigger events.
func (w *watcherSet) ensureCreated(dirs []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.initialized {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn("creating filesystem watcher", zap.Error(err))
		return
	}
	w.watcher = watcher
	w.initialized = true

	seen := make(map[string]bool)
	for _, dir := range dirs {
		target := nearestExisting(dir)
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		if err := watcher.Add(target); err != nil {
			w.log.Warn("watching directory", zap.String("dir", target), zap.Error(err))
		}
	}

	go w.pump(watcher)
}

// pump forwards every raw create/delete/modify event into the shared
// debounce path. It exits when the watcher is closed.
func (w *watcherSet) pump(watcher *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) ||
				ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				w.onEvent()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("filesystem watcher error", zap.Error(err))
		}
	}
}

// disposeAll tears the watchers down. The next ensureCreated starts fresh.
func (w *watcherSet) disposeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		_ = w.watcher.Close()
		w.watcher = nil
	}
	w.initialized = false
}

// close disposes the watchers and rejects further ensureCreated calls.
func (w *watcherSet) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.disposeAll()
}

func (w *watcherSet) active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.initialized
}

// nearestExisting walks up from dir to the closest directory that exists.
func nearestExisting(dir string) string {
	for d := dir; ; {
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			return d
		}
		parent := filepath.Dir(d)
		if parent == d {
			return ""
		}
		d = parent
	}
}
