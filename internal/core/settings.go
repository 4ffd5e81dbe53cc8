package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tailscale/hujson"
)

const (
	settingsDirName  = ".skilldock"
	settingsFileName = "settings.json"

	defaultRegistryURL  = "https://skills.skilldock.dev/registry.json"
	defaultCLIName      = "skills"
	defaultPollInterval = 30 * time.Second
)

// Settings holds user preferences. The file is JWCC (JSON with comments and
// trailing commas) so users can annotate it.
type Settings struct {
	// AllowedScopes is "all", "global", "local" or "none".
	AllowedScopes Setting `json:"allowedScopes"`
	// AutoRepair enqueues a repair when post-install verification finds a
	// torn install.
	AutoRepair bool `json:"autoRepair"`
	// CLIPath is the skills CLI executable. Defaults to "skills" on PATH.
	CLIPath string `json:"cliPath,omitempty"`
	// RegistryURL overrides the skill catalog endpoint.
	RegistryURL string `json:"registryUrl,omitempty"`
	// TrustedWorkspaces lists workspace roots the user has marked trusted.
	TrustedWorkspaces []string `json:"trustedWorkspaces,omitempty"`
	// GlobalPollSeconds is the interval for re-checking global-scope state.
	GlobalPollSeconds int `json:"globalPollSeconds,omitempty"`
}

// SettingsManager handles reading and writing ~/.skilldock/settings.json.
type SettingsManager struct {
	dir string
	mu  sync.RWMutex
}

// NewSettingsManager creates a SettingsManager using the default directory.
func NewSettingsManager() (*SettingsManager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}
	return &SettingsManager{dir: filepath.Join(home, settingsDirName)}, nil
}

// NewSettingsManagerWithDir creates a SettingsManager using a custom
// directory. Useful for testing.
func NewSettingsManagerWithDir(dir string) *SettingsManager {
	return &SettingsManager{dir: dir}
}

// Dir returns the settings directory path.
func (sm *SettingsManager) Dir() string {
	return sm.dir
}

// Path returns the full path to the settings file.
func (sm *SettingsManager) Path() string {
	return filepath.Join(sm.dir, settingsFileName)
}

// CacheDir returns where cached registry data is stored.
func (sm *SettingsManager) CacheDir() string {
	return filepath.Join(sm.dir, "cache")
}

// Load reads settings from disk. Returns defaults if the file doesn't exist.
func (sm *SettingsManager) Load() (*Settings, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	data, err := os.ReadFile(sm.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	// Tolerate comments and trailing commas.
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}

	s := DefaultSettings()
	if err := json.Unmarshal(std, s); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	s.normalize()
	return s, nil
}

// Save writes settings to disk atomically, creating the directory if needed.
// Comments in a hand-edited file are not preserved.
func (sm *SettingsManager) Save(s *Settings) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if err := os.MkdirAll(sm.dir, 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	data = append(data, '\n')

	tmpPath := sm.Path() + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := os.Rename(tmpPath, sm.Path()); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving settings: %w", err)
	}

	return nil
}

// DefaultSettings returns the out-of-the-box configuration.
func DefaultSettings() *Settings {
	return &Settings{
		AllowedScopes:     SettingAll,
		AutoRepair:        true,
		CLIPath:           defaultCLIName,
		RegistryURL:       defaultRegistryURL,
		GlobalPollSeconds: int(defaultPollInterval / time.Second),
	}
}

// IsWorkspaceTrusted reports whether the given workspace root has been
// marked trusted by the user.
func (s *Settings) IsWorkspaceTrusted(workspaceRoot string) bool {
	if workspaceRoot == "" {
		return false
	}
	for _, t := range s.TrustedWorkspaces {
		if expandPath(t) == workspaceRoot {
			return true
		}
	}
	return false
}

// PollInterval returns the global-scope poll interval as a duration.
func (s *Settings) PollInterval() time.Duration {
	if s.GlobalPollSeconds <= 0 {
		return defaultPollInterval
	}
	return time.Duration(s.GlobalPollSeconds) * time.Second
}

// normalize fills zero values with defaults and coerces unknown enum values.
func (s *Settings) normalize() {
	switch s.AllowedScopes {
	case SettingAll, SettingGlobal, SettingLocal, SettingNone:
	default:
		s.AllowedScopes = SettingAll
	}
	if s.CLIPath == "" {
		s.CLIPath = defaultCLIName
	}
	if s.RegistryURL == "" {
		s.RegistryURL = defaultRegistryURL
	}
}
