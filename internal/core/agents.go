package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultAgents lists the agents SkillDock knows how to target. Each entry
// mirrors the directory conventions the agent itself documents.
var defaultAgents = []AgentDef{
	{
		Name:            "claude-code",
		DisplayName:     "Claude Code",
		SkillsDir:       ".claude/skills",
		GlobalSkillsDir: "~/.claude/skills",
		DetectPaths:     []string{"~/.claude"},
	},
	{
		Name:            "cursor",
		DisplayName:     "Cursor",
		SkillsDir:       ".cursor/skills",
		GlobalSkillsDir: "~/.cursor/skills",
		DetectPaths:     []string{"~/.cursor"},
	},
	{
		Name:            "codex",
		DisplayName:     "Codex CLI",
		SkillsDir:       ".codex/skills",
		GlobalSkillsDir: "$CODEX_HOME/skills",
		DetectPaths:     []string{"~/.codex", "$CODEX_HOME"},
	},
	{
		Name:            "gemini-cli",
		DisplayName:     "Gemini CLI",
		SkillsDir:       ".gemini/skills",
		GlobalSkillsDir: "~/.gemini/skills",
		DetectPaths:     []string{"~/.gemini"},
	},
	{
		Name:            "opencode",
		DisplayName:     "OpenCode",
		SkillsDir:       ".opencode/skills",
		GlobalSkillsDir: "$XDG_CONFIG/opencode/skills",
		DetectPaths:     []string{"$XDG_CONFIG/opencode"},
	},
	{
		Name:            "github-copilot",
		DisplayName:     "GitHub Copilot",
		SkillsDir:       ".github/skills",
		GlobalSkillsDir: "$XDG_CONFIG/github-copilot/skills",
		DetectPaths:     []string{"$XDG_CONFIG/github-copilot"},
	},
	{
		Name:            "goose",
		DisplayName:     "Goose",
		SkillsDir:       ".goose/skills",
		GlobalSkillsDir: "$XDG_CONFIG/goose/skills",
		DetectPaths:     []string{"$XDG_CONFIG/goose"},
	},
}

// Agents returns the known agent definitions.
func Agents() []AgentDef {
	out := make([]AgentDef, len(defaultAgents))
	copy(out, defaultAgents)
	return out
}

// DetectAgents returns the agents detected on this machine.
// Detection checks whether agent-specific config directories exist.
func DetectAgents(agents []AgentDef) []AgentDef {
	var detected []AgentDef
	for _, agent := range agents {
		if isAgentDetected(agent) {
			detected = append(detected, agent)
		}
	}
	return detected
}

// ResolveAgentsByNames returns agents matching the given names.
// Returns an error if any name doesn't match a known agent.
func ResolveAgentsByNames(agents []AgentDef, names []string) ([]AgentDef, error) {
	agentMap := make(map[string]AgentDef, len(agents))
	for _, a := range agents {
		agentMap[a.Name] = a
	}

	var resolved []AgentDef
	for _, name := range names {
		agent, ok := agentMap[name]
		if !ok {
			var valid []string
			for _, a := range agents {
				valid = append(valid, a.Name)
			}
			return nil, fmt.Errorf("unknown agent %q; available: %s", name, strings.Join(valid, ", "))
		}
		resolved = append(resolved, agent)
	}
	return resolved, nil
}

// ResolveAgentSkillsDir resolves the workspace-level skill directory for an
// agent, relative to the given workspace root.
func ResolveAgentSkillsDir(agent AgentDef, workspaceRoot string) string {
	return filepath.Join(workspaceRoot, agent.SkillsDir)
}

// ResolveAgentGlobalSkillsDir resolves the global skill directory for an
// agent, expanding ~ and environment variables.
func ResolveAgentGlobalSkillsDir(agent AgentDef) string {
	return expandPath(agent.GlobalSkillsDir)
}

func isAgentDetected(agent AgentDef) bool {
	for _, p := range agent.DetectPaths {
		expanded := expandPath(p)
		if dirExists(expanded) {
			return true
		}
	}
	return false
}

// expandPath expands ~ to home directory and $VAR / $XDG_CONFIG to env values.
func expandPath(p string) string {
	// Handle $XDG_CONFIG
	if strings.Contains(p, "$XDG_CONFIG") {
		xdgConfig := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfig == "" {
			home, _ := os.UserHomeDir()
			xdgConfig = filepath.Join(home, ".config")
		}
		p = strings.ReplaceAll(p, "$XDG_CONFIG", xdgConfig)
	}

	// Handle other env vars like $CODEX_HOME
	if strings.Contains(p, "$") {
		p = os.Expand(p, func(key string) string {
			if key == "XDG_CONFIG" {
				// Already handled above
				return ""
			}
			return os.Getenv(key)
		})
	}

	// Handle ~
	if strings.HasPrefix(p, "~/") {
		home, _ := os.UserHomeDir()
		p = filepath.Join(home, p[2:])
	} else if p == "~" {
		home, _ := os.UserHomeDir()
		p = home
	}

	return p
}
