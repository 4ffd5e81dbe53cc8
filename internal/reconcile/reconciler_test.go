package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finchley/skilldock/internal/core"
)

type fakeCatalog struct {
	mu     sync.Mutex
	skills []core.Skill
	err    error
}

func (f *fakeCatalog) Skills(ctx context.Context) ([]core.Skill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.skills, f.err
}

type fakeHashes struct {
	hashes map[string]string
	err    error
}

func (f fakeHashes) InstalledHashes() (map[string]string, error) {
	return f.hashes, f.err
}

type fakeFocus struct {
	ch chan struct{}
}

func newFakeFocus() *fakeFocus { return &fakeFocus{ch: make(chan struct{}, 1)} }

func (f *fakeFocus) Events() <-chan struct{} { return f.ch }
func (f *fakeFocus) Close()                  {}

// snapshots collects emitted state snapshots.
type snapshots struct {
	mu   sync.Mutex
	got  []core.InstalledSkillsMap
	wake chan struct{}
}

func newSnapshots() *snapshots { return &snapshots{wake: make(chan struct{}, 16)} }

func (s *snapshots) record(m core.InstalledSkillsMap) {
	s.mu.Lock()
	s.got = append(s.got, m)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *snapshots) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func (s *snapshots) last() core.InstalledSkillsMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.got) == 0 {
		return nil
	}
	return s.got[len(s.got)-1]
}

func testScanner() *core.Scanner {
	return core.NewScanner([]core.AgentDef{{
		Name:            "cursor",
		DisplayName:     "Cursor",
		SkillsDir:       ".cursor/skills",
		GlobalSkillsDir: "~/.cursor/skills",
	}})
}

func installSkill(t *testing.T, base, rel, name string) {
	t.Helper()
	dir := filepath.Join(base, rel, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"),
		[]byte("---\nname: "+name+"\n---\n"), 0o644))
}

func newTestReconciler(t *testing.T, catalog *fakeCatalog, focus FocusSource) (*Reconciler, string, *snapshots) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	workspace := t.TempDir()

	r := New(Config{
		Catalog:       catalog,
		Hashes:        fakeHashes{},
		Scanner:       testScanner(),
		WorkspaceRoot: workspace,
		Focus:         focus,
		Log:           zap.NewNop(),
	})
	t.Cleanup(r.Close)

	subs := newSnapshots()
	r.OnStateChanged(subs.record)
	return r, workspace, subs
}

func TestReconcile_FirstEmptyScanEmitsNothing(t *testing.T) {
	catalog := &fakeCatalog{skills: []core.Skill{{Name: "seo"}}}
	r, _, subs := newTestReconciler(t, catalog, nil)

	r.UpdatePolicy(core.EvaluatePolicy(core.SettingAll, true, true))
	r.Start(context.Background())

	assert.Equal(t, 0, subs.count(), "empty first scan must not emit")
	assert.NotNil(t, r.Current(), "a snapshot still exists after the first scan")
	assert.Empty(t, r.Current())
}

func TestReconcile_EmitsOnStructuralChangeOnly(t *testing.T) {
	catalog := &fakeCatalog{skills: []core.Skill{{Name: "seo"}}}
	r, workspace, subs := newTestReconciler(t, catalog, nil)

	r.UpdatePolicy(core.EvaluatePolicy(core.SettingAll, true, true))
	r.Start(context.Background())
	require.Equal(t, 0, subs.count())

	installSkill(t, workspace, ".cursor/skills", "seo")
	r.Reconcile(context.Background())

	require.Equal(t, 1, subs.count())
	assert.True(t, subs.last()["seo"].Local)

	// Identical rescan: no new emission.
	r.Reconcile(context.Background())
	assert.Equal(t, 1, subs.count())

	// Removal is a structural change again.
	require.NoError(t, os.RemoveAll(filepath.Join(workspace, ".cursor/skills", "seo")))
	r.Reconcile(context.Background())
	require.Equal(t, 2, subs.count())
	assert.Empty(t, subs.last())
}

func TestReconcile_CatalogErrorKeepsPreviousSnapshot(t *testing.T) {
	catalog := &fakeCatalog{skills: []core.Skill{{Name: "seo"}}}
	r, workspace, subs := newTestReconciler(t, catalog, nil)

	r.UpdatePolicy(core.EvaluatePolicy(core.SettingAll, true, true))
	installSkill(t, workspace, ".cursor/skills", "seo")
	r.Start(context.Background())
	require.Equal(t, 1, subs.count())

	catalog.mu.Lock()
	catalog.err = errors.New("registry down")
	catalog.mu.Unlock()

	r.Reconcile(context.Background())
	assert.Equal(t, 1, subs.count(), "failed reconcile must not emit")
	assert.True(t, r.Current()["seo"].Local, "previous snapshot stays authoritative")
}

func TestReconcile_PolicyGatesScopes(t *testing.T) {
	catalog := &fakeCatalog{skills: []core.Skill{{Name: "seo"}}}
	r, workspace, subs := newTestReconciler(t, catalog, nil)

	installSkill(t, workspace, ".cursor/skills", "seo")

	// Global-only policy: the local install is invisible.
	r.UpdatePolicy(core.EvaluatePolicy(core.SettingGlobal, false, true))
	r.Start(context.Background())
	assert.Equal(t, 0, subs.count())

	// Allowing local brings it into view.
	r.UpdatePolicy(core.EvaluatePolicy(core.SettingAll, true, true))
	r.Reconcile(context.Background())
	require.Equal(t, 1, subs.count())
	assert.True(t, subs.last()["seo"].Local)
}

func TestUpdatePolicyIdempotent(t *testing.T) {
	catalog := &fakeCatalog{skills: []core.Skill{{Name: "seo"}}}
	r, _, _ := newTestReconciler(t, catalog, nil)

	eval := core.EvaluatePolicy(core.SettingAll, true, true)
	r.UpdatePolicy(eval)
	require.True(t, r.watchers.active())

	// Repeated identical updates keep exactly one watcher set alive.
	r.UpdatePolicy(eval)
	r.UpdatePolicy(eval)
	assert.True(t, r.watchers.active())

	// Dropping local tears the watchers down.
	r.UpdatePolicy(core.EvaluatePolicy(core.SettingGlobal, false, true))
	assert.False(t, r.watchers.active())

	// And granting it again recreates them.
	r.UpdatePolicy(eval)
	assert.True(t, r.watchers.active())
}

func TestWatcherDrivesDebouncedReconcile(t *testing.T) {
	catalog := &fakeCatalog{skills: []core.Skill{{Name: "seo"}}}
	r, workspace, subs := newTestReconciler(t, catalog, nil)

	r.UpdatePolicy(core.EvaluatePolicy(core.SettingAll, true, true))
	r.Start(context.Background())
	require.Equal(t, 0, subs.count())

	// A filesystem change under the workspace must surface as a new
	// snapshot without anyone calling Reconcile.
	installSkill(t, workspace, ".cursor/skills", "seo")

	select {
	case <-subs.wake:
	case <-time.After(5 * time.Second):
		t.Fatal("filesystem change never produced a snapshot")
	}
	assert.True(t, subs.last()["seo"].Local)
}

func TestFocusEventTriggersGlobalRescan(t *testing.T) {
	catalog := &fakeCatalog{skills: []core.Skill{{Name: "seo"}}}
	focus := newFakeFocus()
	r, _, subs := newTestReconciler(t, catalog, focus)

	r.UpdatePolicy(core.EvaluatePolicy(core.SettingGlobal, false, true))
	r.Start(context.Background())
	require.Equal(t, 0, subs.count())

	// A skill appears in the global directory while we are not looking.
	home := os.Getenv("HOME")
	installSkill(t, home, ".cursor/skills", "seo")

	focus.ch <- struct{}{}

	select {
	case <-subs.wake:
	case <-time.After(5 * time.Second):
		t.Fatal("focus event never produced a snapshot")
	}
	assert.True(t, subs.last()["seo"].Global)
}

func TestCloseStopsEverything(t *testing.T) {
	catalog := &fakeCatalog{skills: []core.Skill{{Name: "seo"}}}
	r, workspace, subs := newTestReconciler(t, catalog, newFakeFocus())

	r.UpdatePolicy(core.EvaluatePolicy(core.SettingAll, true, true))
	r.Start(context.Background())

	r.Close()
	r.Close() // idempotent

	installSkill(t, workspace, ".cursor/skills", "seo")
	r.Reconcile(context.Background())
	r.Trigger()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, subs.count(), "closed reconciler must not emit")

	// UpdatePolicy after Close is a no-op.
	r.UpdatePolicy(core.EvaluatePolicy(core.SettingAll, true, true))
	assert.False(t, r.watchers.active())
}
