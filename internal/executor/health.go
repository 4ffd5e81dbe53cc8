package executor

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// healthCheckTimeout bounds the version probe so a wedged CLI degrades to an
// unknown status instead of hanging the caller.
const healthCheckTimeout = 15 * time.Second

// MinVersion is the oldest skills CLI the orchestrator will drive.
var MinVersion = Version{Major: 1, Minor: 2}

// HealthStatus classifies the CLI's availability.
type HealthStatus string

const (
	HealthOK       HealthStatus = "ok"
	HealthMissing  HealthStatus = "missing"
	HealthOutdated HealthStatus = "outdated"
	HealthUnknown  HealthStatus = "unknown"
)

// Health is the outcome of a CLI health check.
type Health struct {
	Status  HealthStatus
	Version string
	Err     error
}

// Healthy reports whether operations may be enqueued against this CLI.
func (h Health) Healthy() bool { return h.Status == HealthOK }

// Version is a parsed major.minor.patch.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Less reports whether v precedes other.
func (v Version) Less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor < other.Minor
	}
	return v.Patch < other.Patch
}

var versionRegexp = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// ParseVersion extracts a version from CLI --version output.
func ParseVersion(output string) (Version, error) {
	m := versionRegexp.FindStringSubmatch(output)
	if m == nil {
		return Version{}, fmt.Errorf("no version in %q", strings.TrimSpace(output))
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch := 0
	if m[3] != "" {
		patch, _ = strconv.Atoi(m[3])
	}
	return Version{Major: major, Minor: minor, Patch: patch}, nil
}

// CheckHealth probes the CLI executable with `--version` under a bounded
// timeout. A timeout or unparsable output degrades to HealthUnknown rather
// than an error, so callers can surface an actionable notification once and
// keep running.
func (c *CLI) CheckHealth(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if _, err := exec.LookPath(c.path); err != nil {
		return Health{Status: HealthMissing, Err: fmt.Errorf("skills CLI not found: %w", err)}
	}

	out, err := exec.CommandContext(ctx, c.path, "--version").Output()
	if err != nil {
		if ctx.Err() != nil {
			c.log.Warn("health check timed out", zap.String("path", c.path))
			return Health{Status: HealthUnknown, Err: fmt.Errorf("version probe timed out after %s", healthCheckTimeout)}
		}
		return Health{Status: HealthUnknown, Err: fmt.Errorf("version probe failed: %w", err)}
	}

	v, err := ParseVersion(string(out))
	if err != nil {
		return Health{Status: HealthUnknown, Err: err}
	}
	if v.Less(MinVersion) {
		return Health{
			Status:  HealthOutdated,
			Version: v.String(),
			Err:     fmt.Errorf("skills CLI %s is older than required %s", v, MinVersion),
		}
	}
	return Health{Status: HealthOK, Version: v.String()}
}
