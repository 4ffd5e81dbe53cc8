package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/finchley/skilldock/internal/core"
	"github.com/finchley/skilldock/internal/orchestrator"
)

func update(m WatchModel, msg tea.Msg) WatchModel {
	next, _ := m.Update(msg)
	return next.(WatchModel)
}

func TestWatchModel_EmptyState(t *testing.T) {
	m := NewWatchModel("/ws/app", nil)
	view := m.View()

	if !strings.Contains(view, "/ws/app") {
		t.Error("view should show the workspace path")
	}
	if !strings.Contains(view, "nothing installed yet") {
		t.Error("empty state should say nothing is installed")
	}
	if !strings.Contains(view, "quiet") {
		t.Error("empty activity log should say quiet")
	}
}

func TestWatchModel_SnapshotRendersSkills(t *testing.T) {
	m := NewWatchModel("/ws/app", nil)
	m = update(m, SnapshotMsg{State: core.InstalledSkillsMap{
		"seo": {
			Local: true,
			Agents: []core.AgentInstallInfo{
				{Agent: "cursor", DisplayName: "Cursor", Local: true},
			},
		},
		"api-design": {
			Global: true,
			Agents: []core.AgentInstallInfo{
				{Agent: "cursor", DisplayName: "Cursor", Global: true, Corrupted: true},
			},
		},
	}})

	view := m.View()
	if !strings.Contains(view, "seo") {
		t.Error("view should list seo")
	}
	if !strings.Contains(view, "api-design") {
		t.Error("view should list api-design")
	}
	if !strings.Contains(view, "corrupted") {
		t.Error("corrupted install should be badged")
	}
	// Sorted alphabetically.
	if strings.Index(view, "api-design") > strings.Index(view, "seo") {
		t.Error("skills should be sorted by name")
	}
}

func TestWatchModel_StaleBadge(t *testing.T) {
	m := NewWatchModel("/ws/app", nil)
	m = update(m, SnapshotMsg{
		State: core.InstalledSkillsMap{
			"seo": {Local: true, ContentHash: "old"},
		},
		RegistryHashes: map[string]string{"seo": "new"},
	})
	if !strings.Contains(m.View(), "stale") {
		t.Error("hash mismatch should badge the skill stale")
	}

	m = update(m, SnapshotMsg{
		State: core.InstalledSkillsMap{
			"seo": {Local: true, ContentHash: "new"},
		},
		RegistryHashes: map[string]string{"seo": "new"},
	})
	if strings.Contains(m.View(), "stale") {
		t.Error("matching hashes should not be badged stale")
	}
}

func TestWatchModel_OperationLifecycle(t *testing.T) {
	m := NewWatchModel("/ws/app", nil)

	m = update(m, OperationMsg{Event: orchestrator.Event{
		Type:      orchestrator.EventStarted,
		Operation: core.OpInstall,
		SkillName: "seo",
	}})
	if m.inFlight != 1 {
		t.Errorf("inFlight = %d, want 1", m.inFlight)
	}

	m = update(m, OperationMsg{Event: orchestrator.Event{
		Type:      orchestrator.EventProgress,
		Operation: core.OpInstall,
		SkillName: "seo",
		Message:   "fetching archive",
	}})
	if !strings.Contains(m.View(), "fetching archive") {
		t.Error("progress lines should appear in the activity log")
	}

	m = update(m, OperationMsg{Event: orchestrator.Event{
		Type:      orchestrator.EventCompleted,
		Operation: core.OpInstall,
		SkillName: "seo",
		Success:   true,
	}})
	if m.inFlight != 0 {
		t.Errorf("inFlight = %d, want 0 after completion", m.inFlight)
	}
	if !strings.Contains(m.View(), "done") {
		t.Error("completion should appear in the activity log")
	}
}

func TestWatchModel_FailureAndCancellation(t *testing.T) {
	m := NewWatchModel("/ws/app", nil)

	m = update(m, OperationMsg{Event: orchestrator.Event{
		Type:         orchestrator.EventCompleted,
		Operation:    core.OpInstall,
		SkillName:    "seo",
		ErrorMessage: "checksum mismatch",
	}})
	if !strings.Contains(m.View(), "checksum mismatch") {
		t.Error("failures should surface their error message")
	}

	m = update(m, OperationMsg{Event: orchestrator.Event{
		Type:      orchestrator.EventCompleted,
		Operation: core.OpRemove,
		SkillName: "api-design",
		Cancelled: true,
	}})
	if !strings.Contains(m.View(), "cancelled") {
		t.Error("cancellations should appear in the activity log")
	}
}

func TestWatchModel_ActivityLogIsBounded(t *testing.T) {
	m := NewWatchModel("/ws/app", nil)
	for i := 0; i < maxActivityLines*3; i++ {
		m = update(m, OperationMsg{Event: orchestrator.Event{
			Type:      orchestrator.EventProgress,
			SkillName: "seo",
			Message:   "line",
		}})
	}
	if len(m.activity) != maxActivityLines {
		t.Errorf("activity log holds %d lines, want %d", len(m.activity), maxActivityLines)
	}
}

func TestWatchModel_RefreshKey(t *testing.T) {
	called := false
	m := NewWatchModel("/ws/app", func() { called = true })

	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if !called {
		t.Error("pressing r should invoke the refresh callback")
	}
	if !strings.Contains(m.View(), "rescan requested") {
		t.Error("manual rescan should be logged")
	}
}

func TestWatchModel_QuitKeys(t *testing.T) {
	m := NewWatchModel("/ws/app", nil)
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
	} {
		_, cmd := m.Update(key)
		if cmd == nil {
			t.Errorf("key %s should quit", key.String())
		}
	}
}
