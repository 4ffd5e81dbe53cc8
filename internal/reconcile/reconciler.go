// Package reconcile keeps the single authoritative installed-state snapshot
// current. It reacts to three triggers: filesystem changes under the
// workspace (local scope, only while policy allows local), focus/poll
// transitions (global scope), and explicit policy updates. Consumers rely on
// "no event ⇒ no change": a state-changed event fires only when a scan
// produced a structurally different snapshot.
package reconcile

import (
	"context"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/finchley/skilldock/internal/core"
)

// debounceWindow collapses watcher event bursts (e.g. the many file writes
// of one install) into a single rescan.
const debounceWindow = 500 * time.Millisecond

// CatalogProvider supplies the current registry skill list.
type CatalogProvider interface {
	Skills(ctx context.Context) ([]core.Skill, error)
}

// HashProvider supplies installed content hashes from the lockfile.
type HashProvider interface {
	InstalledHashes() (map[string]string, error)
}

// Config wires a Reconciler.
type Config struct {
	Catalog       CatalogProvider
	Hashes        HashProvider
	Scanner       *core.Scanner
	WorkspaceRoot string
	Focus         FocusSource // may be nil to disable global polling
	Log           *zap.Logger
}

// Subscription is a handle to a state-changed registration.
type Subscription struct {
	once    sync.Once
	dispose func()
}

// Dispose unregisters the subscriber. Safe to call more than once.
func (s *Subscription) Dispose() { s.once.Do(s.dispose) }

// Reconciler owns the installed-state snapshot and the watcher lifecycle.
// It is the snapshot's single writer; subscribers must treat received
// snapshots as immutable.
type Reconciler struct {
	log      *zap.Logger
	catalog  CatalogProvider
	hashes   HashProvider
	scanner  *core.Scanner
	wsRoot   string
	focus    FocusSource
	watchers *watcherSet
	debounce *Debouncer

	// scanMu serializes reconciles so an older snapshot can never be
	// emitted after a newer one.
	scanMu sync.Mutex

	mu       sync.Mutex
	eval     core.Evaluation
	previous core.InstalledSkillsMap
	subs     map[int]func(core.InstalledSkillsMap)
	nextSub  int
	focusOn  bool
	closed   bool

	stopFocus chan struct{}
	focusWG   sync.WaitGroup
}

// New creates a Reconciler. Call Start to obtain the first snapshot.
func New(cfg Config) *Reconciler {
	r := &Reconciler{
		log:     cfg.Log.Named("reconcile"),
		catalog: cfg.Catalog,
		hashes:  cfg.Hashes,
		scanner: cfg.Scanner,
		wsRoot:  cfg.WorkspaceRoot,
		focus:   cfg.Focus,
		subs:    make(map[int]func(core.InstalledSkillsMap)),
	}
	r.watchers = newWatcherSet(r.log, func() { r.debounce.Trigger() })
	r.debounce = NewDebouncer(debounceWindow, func() { r.Reconcile(context.Background()) })
	return r
}

// Start performs one immediate reconcile regardless of policy so consumers
// get a first snapshot quickly.
func (r *Reconciler) Start(ctx context.Context) {
	r.Reconcile(ctx)
}

// OnStateChanged registers a subscriber for snapshot changes.
func (r *Reconciler) OnStateChanged(fn func(core.InstalledSkillsMap)) *Subscription {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.mu.Unlock()

	return &Subscription{dispose: func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}}
}

// Current returns the latest snapshot (nil before the first reconcile).
func (r *Reconciler) Current() core.InstalledSkillsMap {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.previous
}

// UpdatePolicy recomputes which watchers should exist for the new policy
// and schedules a reconciliation. Idempotent: calling it repeatedly with an
// unchanged policy neither duplicates watchers nor re-subscribes the focus
// listener.
func (r *Reconciler) UpdatePolicy(eval core.Evaluation) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.eval = eval
	wantLocal := eval.Allows(core.ScopeLocal) && r.wsRoot != ""
	wantGlobal := eval.Allows(core.ScopeGlobal) && r.focus != nil
	focusOn := r.focusOn
	r.mu.Unlock()

	if wantLocal {
		r.watchers.ensureCreated(r.scanner.LocalSkillDirs(r.wsRoot))
	} else if r.watchers.active() {
		r.watchers.disposeAll()
	}

	if wantGlobal && !focusOn {
		r.startFocus()
	} else if !wantGlobal && focusOn {
		r.stopFocusListener()
	}

	r.debounce.Trigger()
}

// Trigger requests a debounced reconciliation; used by the orchestrator's
// verification pass.
func (r *Reconciler) Trigger() {
	r.debounce.Trigger()
}

// Reconcile loads the catalog, rescans the filesystem under the current
// policy, and emits the new snapshot iff it differs structurally from the
// previous one. Failures are logged and swallowed; the previous snapshot
// stays authoritative.
func (r *Reconciler) Reconcile(ctx context.Context) {
	r.scanMu.Lock()
	defer r.scanMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	eval := r.eval
	r.mu.Unlock()

	skills, err := r.catalog.Skills(ctx)
	if err != nil {
		r.log.Warn("loading catalog for reconcile", zap.Error(err))
		return
	}

	var hashes map[string]string
	if r.hashes != nil {
		if hashes, err = r.hashes.InstalledHashes(); err != nil {
			r.log.Warn("reading lockfile hashes", zap.Error(err))
			hashes = nil
		}
	}

	snapshot, err := r.scanner.Scan(skills, r.wsRoot, core.ScanOptions{
		IncludeLocal:  eval.Allows(core.ScopeLocal),
		IncludeGlobal: eval.Allows(core.ScopeGlobal),
		Hashes:        hashes,
	})
	if err != nil {
		r.log.Warn("scanning installed skills", zap.Error(err))
		return
	}

	r.mu.Lock()
	// The pre-scan state is the empty map, so a first scan that finds
	// nothing installed emits no event.
	prev := r.previous
	if prev == nil {
		prev = core.InstalledSkillsMap{}
	}
	if reflect.DeepEqual(prev, snapshot) {
		r.previous = snapshot
		r.mu.Unlock()
		return
	}
	r.previous = snapshot
	fns := make([]func(core.InstalledSkillsMap), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	r.log.Debug("installed state changed", zap.Int("skills", len(snapshot)))
	for _, fn := range fns {
		fn(snapshot)
	}
}

// Close stops watchers, the focus listener and the debouncer.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	focusOn := r.focusOn
	r.mu.Unlock()

	r.debounce.Stop()
	r.watchers.close()
	if focusOn {
		r.stopFocusListener()
	}
	if r.focus != nil {
		r.focus.Close()
	}
}

func (r *Reconciler) startFocus() {
	r.mu.Lock()
	if r.focusOn || r.closed {
		r.mu.Unlock()
		return
	}
	r.focusOn = true
	r.stopFocus = make(chan struct{})
	stop := r.stopFocus
	r.mu.Unlock()

	r.focusWG.Add(1)
	go func() {
		defer r.focusWG.Done()
		for {
			select {
			case _, ok := <-r.focus.Events():
				if !ok {
					return
				}
				r.debounce.Trigger()
			case <-stop:
				return
			}
		}
	}()
}

func (r *Reconciler) stopFocusListener() {
	r.mu.Lock()
	if !r.focusOn {
		r.mu.Unlock()
		return
	}
	r.focusOn = false
	close(r.stopFocus)
	r.mu.Unlock()
	r.focusWG.Wait()
}
