// Package lockfile reads and writes skilldock.lock.json, which pins the
// content hash of every installed skill. The skills CLI is the primary
// writer; SkillDock reads it to detect staleness against the registry.
package lockfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	fileName       = "skilldock.lock.json"
	currentVersion = 1
)

// LockFile is the parsed skilldock.lock.json.
type LockFile struct {
	LockVersion int     `json:"lockVersion"`
	Skills      []Entry `json:"skills"`
}

// Entry pins one installed skill.
type Entry struct {
	Name        string     `json:"name"`
	ContentHash string     `json:"contentHash"`
	InstalledAt *time.Time `json:"installedAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// Path returns the full path to the lock file in the given directory.
func Path(dir string) string {
	return filepath.Join(dir, fileName)
}

// Read reads and parses the lock file from the given directory.
// Returns nil, nil if the file does not exist.
func Read(dir string) (*LockFile, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading lock file: %w", err)
	}

	var lf LockFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parsing lock file: %w", err)
	}
	return &lf, nil
}

// Write writes the lock file to the given directory atomically.
// Entries are sorted by name for deterministic output.
func Write(dir string, lf *LockFile) error {
	if lf.LockVersion == 0 {
		lf.LockVersion = currentVersion
	}
	sort.Slice(lf.Skills, func(i, j int) bool {
		return lf.Skills[i].Name < lf.Skills[j].Name
	})

	data, err := json.MarshalIndent(lf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}
	// Ensure trailing newline.
	data = append(data, '\n')

	path := Path(dir)

	// Atomic write: write to temp file, then rename.
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing lock file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving lock file: %w", err)
	}

	return nil
}

// Reader provides installed content hashes from a fixed lock file location.
type Reader struct {
	Dir string
}

// InstalledHashes returns skill name → installed content hash. Skills with
// no recorded hash map to the empty string. Returns an empty map when no
// lock file exists.
func (r Reader) InstalledHashes() (map[string]string, error) {
	lf, err := Read(r.Dir)
	if err != nil {
		return nil, err
	}
	hashes := make(map[string]string)
	if lf == nil {
		return hashes, nil
	}
	for _, e := range lf.Skills {
		hashes[e.Name] = e.ContentHash
	}
	return hashes, nil
}
