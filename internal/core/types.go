// Package core provides the business logic for SkillDock.
// It has zero UI dependencies and is independently testable.
package core

import "time"

// Scope identifies where a skill is installed.
type Scope string

const (
	// ScopeLocal installs into the current workspace.
	ScopeLocal Scope = "local"
	// ScopeGlobal installs into the user's home directory.
	ScopeGlobal Scope = "global"
)

// ScopeSelector is a user-facing scope argument. In addition to the two
// concrete scopes it accepts "all", which callers expand into one
// single-scoped unit of work per scope.
type ScopeSelector string

const (
	SelectLocal  ScopeSelector = "local"
	SelectGlobal ScopeSelector = "global"
	SelectAll    ScopeSelector = "all"
)

// Scopes returns the concrete scopes a selector expands to, in the
// canonical [local, global] order.
func (s ScopeSelector) Scopes() []Scope {
	switch s {
	case SelectLocal:
		return []Scope{ScopeLocal}
	case SelectGlobal:
		return []Scope{ScopeGlobal}
	case SelectAll:
		return []Scope{ScopeLocal, ScopeGlobal}
	}
	return nil
}

// OperationKind is the lifecycle operation a job performs.
type OperationKind string

const (
	OpInstall OperationKind = "install"
	OpRemove  OperationKind = "remove"
	OpUpdate  OperationKind = "update"
	OpRepair  OperationKind = "repair"
)

// Skill is a catalog entry fetched from the registry. Immutable once
// fetched; the registry owns its lifecycle.
type Skill struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Path        string   `json:"path"`
	Files       []string `json:"files"`
	Author      string   `json:"author,omitempty"`
	Version     string   `json:"version,omitempty"`
	ContentHash string   `json:"contentHash,omitempty"`
}

// Category is a display grouping in the registry catalog.
type Category struct {
	DisplayName string `json:"displayName"`
	Order       int    `json:"order,omitempty"`
}

// AgentDef defines an AI coding agent and its skill directory conventions.
type AgentDef struct {
	Name            string   // stable id (e.g. "cursor")
	DisplayName     string   // human name (e.g. "Cursor")
	SkillsDir       string   // workspace-relative skill directory (e.g. ".cursor/skills")
	GlobalSkillsDir string   // global skill directory (e.g. "~/.cursor/skills")
	DetectPaths     []string // paths whose presence indicates the agent is installed
}

// AgentInstallInfo records a skill's presence for one agent.
type AgentInstallInfo struct {
	Agent       string `json:"agent"`
	DisplayName string `json:"displayName"`
	Local       bool   `json:"local"`
	Global      bool   `json:"global"`
	// Corrupted means an install directory exists but its SKILL.md manifest
	// is missing (a torn or partial install).
	Corrupted bool `json:"corrupted"`
}

// InstalledSkillInfo aggregates a skill's install state across all agents.
// Produced fresh on every scan and treated as immutable by consumers.
type InstalledSkillInfo struct {
	Local       bool               `json:"local"`
	Global      bool               `json:"global"`
	Agents      []AgentInstallInfo `json:"agents"`
	ContentHash string             `json:"contentHash,omitempty"`
	InstalledAt *time.Time         `json:"installedAt,omitempty"`
	UpdatedAt   *time.Time         `json:"updatedAt,omitempty"`
}

// InstalledSkillsMap is the scan snapshot, keyed by skill name.
type InstalledSkillsMap map[string]InstalledSkillInfo

// SkillMetadata is the YAML frontmatter parsed from a SKILL.md file.
type SkillMetadata struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	License     string               `yaml:"license,omitempty"`
	Metadata    SkillMetadataDetails `yaml:"metadata,omitempty"`
}

// SkillMetadataDetails holds optional metadata fields from SKILL.md frontmatter.
type SkillMetadataDetails struct {
	Author  string `yaml:"author,omitempty"`
	Version string `yaml:"version,omitempty"`
}
