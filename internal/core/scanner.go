package core

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// skillFileName is the manifest every healthy skill install must contain.
const skillFileName = "SKILL.md"

// Scanner probes per-agent skill directories and produces the installed-state
// snapshot. It reads the filesystem only; it never mutates it.
type Scanner struct {
	agents []AgentDef
}

// NewScanner creates a Scanner with the given agent definitions.
func NewScanner(agents []AgentDef) *Scanner {
	return &Scanner{agents: agents}
}

// ScanOptions selects which scopes the scan may touch and supplies the
// lockfile content hashes to merge into the snapshot.
type ScanOptions struct {
	IncludeLocal  bool
	IncludeGlobal bool
	// Hashes maps skill name to the installed content hash from the
	// lockfile. May be nil.
	Hashes map[string]string
}

// Scan probes each known skill against every agent's local and global skill
// directories. workspaceRoot may be empty, in which case local probing is
// skipped regardless of IncludeLocal.
func (s *Scanner) Scan(skills []Skill, workspaceRoot string, opts ScanOptions) (InstalledSkillsMap, error) {
	includeLocal := opts.IncludeLocal && workspaceRoot != ""

	result := make(InstalledSkillsMap, len(skills))
	for _, skill := range skills {
		dirName := SanitizeName(skill.Name)

		info := InstalledSkillInfo{ContentHash: opts.Hashes[skill.Name]}
		for _, agent := range s.agents {
			ai := AgentInstallInfo{
				Agent:       agent.Name,
				DisplayName: agent.DisplayName,
			}
			if includeLocal {
				dir := filepath.Join(ResolveAgentSkillsDir(agent, workspaceRoot), dirName)
				present, corrupted := probeInstallDir(dir)
				ai.Local = present
				if corrupted {
					ai.Corrupted = true
				}
			}
			if opts.IncludeGlobal {
				dir := filepath.Join(ResolveAgentGlobalSkillsDir(agent), dirName)
				present, corrupted := probeInstallDir(dir)
				ai.Global = present
				if corrupted {
					ai.Corrupted = true
				}
			}
			if ai.Local || ai.Global || ai.Corrupted {
				info.Agents = append(info.Agents, ai)
			}
			info.Local = info.Local || ai.Local
			info.Global = info.Global || ai.Global
		}

		if info.Local || info.Global || len(info.Agents) > 0 {
			result[skill.Name] = info
		}
	}
	return result, nil
}

// probeInstallDir reports whether an install directory is present at dir,
// and whether it is missing its manifest (a torn install).
func probeInstallDir(dir string) (present, corrupted bool) {
	if !dirExists(dir) {
		return false, false
	}
	if fileExists(filepath.Join(dir, skillFileName)) {
		return true, false
	}
	return true, true
}

// LocalSkillDirs returns every agent's workspace-level skill directory under
// the given root. Used by the reconciler to register filesystem watchers.
func (s *Scanner) LocalSkillDirs(workspaceRoot string) []string {
	dirs := make([]string, 0, len(s.agents))
	seen := make(map[string]bool)
	for _, agent := range s.agents {
		dir := ResolveAgentSkillsDir(agent, workspaceRoot)
		if !seen[dir] {
			dirs = append(dirs, dir)
			seen[dir] = true
		}
	}
	return dirs
}

// FindInstalledManifest locates the SKILL.md for an installed skill,
// preferring the local scope. Returns an empty string if not found.
func (s *Scanner) FindInstalledManifest(skillName, workspaceRoot string) string {
	dirName := SanitizeName(skillName)
	if workspaceRoot != "" {
		for _, agent := range s.agents {
			p := filepath.Join(ResolveAgentSkillsDir(agent, workspaceRoot), dirName, skillFileName)
			if fileExists(p) {
				return p
			}
		}
	}
	for _, agent := range s.agents {
		p := filepath.Join(ResolveAgentGlobalSkillsDir(agent), dirName, skillFileName)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

// ParseSkillMd reads and parses the YAML frontmatter from a SKILL.md file.
func ParseSkillMd(path string) (*SkillMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	// Look for opening ---
	if !scanner.Scan() {
		return nil, fmt.Errorf("empty file: %s", path)
	}
	if strings.TrimSpace(scanner.Text()) != "---" {
		return nil, fmt.Errorf("no frontmatter in %s", path)
	}

	// Collect frontmatter lines until closing ---
	var frontmatter strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			break
		}
		frontmatter.WriteString(line)
		frontmatter.WriteString("\n")
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var metadata SkillMetadata
	if err := yaml.Unmarshal([]byte(frontmatter.String()), &metadata); err != nil {
		return nil, fmt.Errorf("parsing frontmatter in %s: %w", path, err)
	}

	if metadata.Name == "" {
		return nil, fmt.Errorf("SKILL.md missing name field: %s", path)
	}

	return &metadata, nil
}
