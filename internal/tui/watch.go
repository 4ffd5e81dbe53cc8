// Package tui renders the live `skilldock watch` view: the current
// installed-state snapshot plus a rolling operation activity log.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/finchley/skilldock/internal/core"
	"github.com/finchley/skilldock/internal/orchestrator"
)

// maxActivityLines caps the rolling activity log.
const maxActivityLines = 8

// SnapshotMsg delivers a new installed-state snapshot to the view.
// RegistryHashes (skill name to catalog content hash) is optional; when
// present, installs whose hash differs are badged stale.
type SnapshotMsg struct {
	State          core.InstalledSkillsMap
	RegistryHashes map[string]string
}

// OperationMsg delivers an orchestrator event to the view.
type OperationMsg struct {
	Event orchestrator.Event
}

// WatchModel is the bubbletea model for `skilldock watch`.
type WatchModel struct {
	workspace string
	spinner   spinner.Model

	state    core.InstalledSkillsMap
	hashes   map[string]string
	activity []string
	inFlight int
	width    int
	height   int

	// OnRefresh is called when the user requests a manual rescan.
	OnRefresh func()
}

// NewWatchModel creates the watch view for the given workspace root.
func NewWatchModel(workspace string, onRefresh func()) WatchModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(spinnerStyle),
	)
	return WatchModel{
		workspace: workspace,
		spinner:   s,
		OnRefresh: onRefresh,
	}
}

func (m WatchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			if m.OnRefresh != nil {
				m.OnRefresh()
			}
			m.activity = appendActivity(m.activity, mutedStyle.Render("rescan requested"))
			return m, nil
		}

	case SnapshotMsg:
		m.state = msg.State
		if msg.RegistryHashes != nil {
			m.hashes = msg.RegistryHashes
		}
		return m, nil

	case OperationMsg:
		m = m.applyEvent(msg.Event)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m WatchModel) applyEvent(ev orchestrator.Event) WatchModel {
	switch ev.Type {
	case orchestrator.EventStarted:
		m.inFlight++
		m.activity = appendActivity(m.activity,
			fmt.Sprintf("%s %s…", ev.Operation, skillNameStyle.Render(ev.SkillName)))
	case orchestrator.EventProgress:
		m.activity = appendActivity(m.activity, mutedStyle.Render("  "+ev.Message))
	case orchestrator.EventCompleted:
		if m.inFlight > 0 {
			m.inFlight--
		}
		switch {
		case ev.Cancelled:
			m.activity = appendActivity(m.activity,
				mutedStyle.Render(fmt.Sprintf("%s %s cancelled", ev.Operation, ev.SkillName)))
		case ev.Success:
			m.activity = appendActivity(m.activity,
				installedBadge.Render(fmt.Sprintf("%s %s done", ev.Operation, ev.SkillName)))
		default:
			m.activity = appendActivity(m.activity,
				errorStyle.Render(fmt.Sprintf("%s %s failed: %s", ev.Operation, ev.SkillName, ev.ErrorMessage)))
		}
	case orchestrator.EventBatchCompleted:
		if ev.Batch != nil && !ev.Batch.Success {
			m.activity = appendActivity(m.activity,
				errorStyle.Render("batch finished with failures: "+strings.Join(ev.Batch.FailedSkills, ", ")))
		}
	}
	return m
}

func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(logoStyle.Render("SkillDock"))
	b.WriteString(headerPathStyle.Render(m.workspace))
	if m.inFlight > 0 {
		b.WriteString(" " + m.spinner.View() + mutedStyle.Render(fmt.Sprintf(" %d running", m.inFlight)))
	}
	b.WriteString("\n\n")

	b.WriteString(sectionHeaderStyle.Render("INSTALLED"))
	b.WriteString("\n")
	if len(m.state) == 0 {
		b.WriteString(mutedStyle.Render("  nothing installed yet"))
		b.WriteString("\n")
	} else {
		names := make([]string, 0, len(m.state))
		for name := range m.state {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			b.WriteString("  " + renderSkillLine(name, m.state[name], m.hashes[name]))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(sectionHeaderStyle.Render("ACTIVITY"))
	b.WriteString("\n")
	if len(m.activity) == 0 {
		b.WriteString(mutedStyle.Render("  quiet"))
		b.WriteString("\n")
	} else {
		for _, line := range m.activity {
			b.WriteString("  " + line + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("r rescan · q quit"))
	return b.String()
}

// renderSkillLine formats one snapshot entry with its scope and health
// badges.
func renderSkillLine(name string, info core.InstalledSkillInfo, registryHash string) string {
	var badges []string
	if info.Local {
		badges = append(badges, installedBadge.Render("local"))
	}
	if info.Global {
		badges = append(badges, installedBadge.Render("global"))
	}
	if hasCorruption(info) {
		badges = append(badges, corruptedBadge.Render("corrupted"))
	}
	if info.ContentHash != "" && registryHash != "" && info.ContentHash != registryHash {
		badges = append(badges, staleBadge.Render("stale"))
	}

	var agents []string
	for _, a := range info.Agents {
		agents = append(agents, a.DisplayName)
	}

	line := skillNameStyle.Render(name)
	if len(badges) > 0 {
		line += " [" + strings.Join(badges, " ") + "]"
	}
	if len(agents) > 0 {
		line += " " + mutedStyle.Render(strings.Join(agents, ", "))
	}
	return line
}

func hasCorruption(info core.InstalledSkillInfo) bool {
	for _, a := range info.Agents {
		if a.Corrupted {
			return true
		}
	}
	return false
}

func appendActivity(lines []string, line string) []string {
	lines = append(lines, line)
	if len(lines) > maxActivityLines {
		lines = lines[len(lines)-maxActivityLines:]
	}
	return lines
}
