package core

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var sanitizeRegexp = regexp.MustCompile(`[^a-zA-Z0-9-]`)

// skillNameRegexp is the injection-safe pattern a skill name must match
// before it is allowed onto a subprocess command line.
var skillNameRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

// ValidateSkillName rejects skill names that are unsafe to pass to the CLI.
func ValidateSkillName(name string) error {
	if !skillNameRegexp.MatchString(name) {
		return fmt.Errorf("invalid skill name %q", name)
	}
	return nil
}

// SanitizeName normalizes a name for use as a directory name.
func SanitizeName(name string) string {
	name = strings.ToLower(name)
	name = sanitizeRegexp.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")
	if len(name) > 255 {
		name = name[:255]
	}
	if name == "" {
		name = "unnamed-skill"
	}
	return name
}

// dirExists returns true if the path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// fileExists returns true if the path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
