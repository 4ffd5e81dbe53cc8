package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSettingsLoad_Defaults(t *testing.T) {
	sm := NewSettingsManagerWithDir(t.TempDir())

	s, err := sm.Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.AllowedScopes != SettingAll {
		t.Errorf("allowedScopes = %q, want all", s.AllowedScopes)
	}
	if !s.AutoRepair {
		t.Error("autoRepair should default to true")
	}
	if s.CLIPath != "skills" {
		t.Errorf("cliPath = %q", s.CLIPath)
	}
	if s.PollInterval() != 30*time.Second {
		t.Errorf("poll interval = %v", s.PollInterval())
	}
}

func TestSettingsLoad_CommentsAndTrailingCommas(t *testing.T) {
	dir := t.TempDir()
	sm := NewSettingsManagerWithDir(dir)

	content := `{
	// local installs only
	"allowedScopes": "local",
	"autoRepair": false,
	"trustedWorkspaces": [
		"/ws/one",
		"/ws/two", // trailing comma below
	],
}
`
	if err := os.WriteFile(sm.Path(), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := sm.Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.AllowedScopes != SettingLocal {
		t.Errorf("allowedScopes = %q, want local", s.AllowedScopes)
	}
	if s.AutoRepair {
		t.Error("autoRepair should be false")
	}
	if len(s.TrustedWorkspaces) != 2 {
		t.Errorf("trustedWorkspaces = %v", s.TrustedWorkspaces)
	}
}

func TestSettingsLoad_NormalizesUnknownScope(t *testing.T) {
	dir := t.TempDir()
	sm := NewSettingsManagerWithDir(dir)

	if err := os.WriteFile(sm.Path(), []byte(`{"allowedScopes": "everything"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := sm.Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.AllowedScopes != SettingAll {
		t.Errorf("unknown scope should normalize to all, got %q", s.AllowedScopes)
	}
	if s.CLIPath != "skills" {
		t.Errorf("empty cliPath should normalize to default, got %q", s.CLIPath)
	}
}

func TestSettingsLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	sm := NewSettingsManagerWithDir(dir)

	if err := os.WriteFile(sm.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := sm.Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestSettingsSaveRoundTrip(t *testing.T) {
	sm := NewSettingsManagerWithDir(filepath.Join(t.TempDir(), "nested"))

	s := DefaultSettings()
	s.AllowedScopes = SettingGlobal
	s.TrustedWorkspaces = []string{"/ws/app"}
	s.GlobalPollSeconds = 60

	if err := sm.Save(s); err != nil {
		t.Fatal(err)
	}

	loaded, err := sm.Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.AllowedScopes != SettingGlobal {
		t.Errorf("allowedScopes = %q", loaded.AllowedScopes)
	}
	if loaded.GlobalPollSeconds != 60 {
		t.Errorf("globalPollSeconds = %d", loaded.GlobalPollSeconds)
	}
	if len(loaded.TrustedWorkspaces) != 1 || loaded.TrustedWorkspaces[0] != "/ws/app" {
		t.Errorf("trustedWorkspaces = %v", loaded.TrustedWorkspaces)
	}

	// No stray tmp file left behind.
	if _, err := os.Stat(sm.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("tmp file should be renamed away")
	}
}

func TestIsWorkspaceTrusted(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s := DefaultSettings()
	s.TrustedWorkspaces = []string{"/ws/app", "~/projects/app"}

	if !s.IsWorkspaceTrusted("/ws/app") {
		t.Error("exact match should be trusted")
	}
	if !s.IsWorkspaceTrusted(filepath.Join(home, "projects/app")) {
		t.Error("tilde entry should match expanded path")
	}
	if s.IsWorkspaceTrusted("/ws/other") {
		t.Error("unlisted workspace should not be trusted")
	}
	if s.IsWorkspaceTrusted("") {
		t.Error("empty root is never trusted")
	}
}
