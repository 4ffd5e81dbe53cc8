package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveAgentsByNames(t *testing.T) {
	agents := Agents()

	resolved, err := ResolveAgentsByNames(agents, []string{"cursor", "claude-code"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resolved) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(resolved))
	}
	if resolved[0].Name != "cursor" || resolved[1].Name != "claude-code" {
		t.Errorf("unexpected resolution order: %v, %v", resolved[0].Name, resolved[1].Name)
	}

	if _, err := ResolveAgentsByNames(agents, []string{"notepad"}); err == nil {
		t.Error("expected error for unknown agent")
	}
}

func TestResolveAgentSkillsDir(t *testing.T) {
	agent := AgentDef{SkillsDir: ".cursor/skills"}
	got := ResolveAgentSkillsDir(agent, "/ws/project")
	want := filepath.Join("/ws/project", ".cursor/skills")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveAgentGlobalSkillsDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	got := ResolveAgentGlobalSkillsDir(AgentDef{GlobalSkillsDir: "~/.cursor/skills"})
	if got != filepath.Join(home, ".cursor/skills") {
		t.Errorf("tilde expansion: got %q", got)
	}

	got = ResolveAgentGlobalSkillsDir(AgentDef{GlobalSkillsDir: "$XDG_CONFIG/goose/skills"})
	if got != filepath.Join(home, ".config", "goose/skills") {
		t.Errorf("XDG fallback: got %q", got)
	}

	t.Setenv("CODEX_HOME", filepath.Join(home, "codex-custom"))
	got = ResolveAgentGlobalSkillsDir(AgentDef{GlobalSkillsDir: "$CODEX_HOME/skills"})
	if got != filepath.Join(home, "codex-custom", "skills") {
		t.Errorf("env var expansion: got %q", got)
	}
}

func TestDetectAgents(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("CODEX_HOME", filepath.Join(home, ".codex"))

	if detected := DetectAgents(Agents()); len(detected) != 0 {
		t.Fatalf("fresh home should detect nothing, got %v", detected)
	}

	if err := os.MkdirAll(filepath.Join(home, ".cursor"), 0o755); err != nil {
		t.Fatal(err)
	}
	detected := DetectAgents(Agents())
	if len(detected) != 1 || detected[0].Name != "cursor" {
		t.Fatalf("expected cursor only, got %v", detected)
	}
}
