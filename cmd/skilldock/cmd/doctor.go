package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finchley/skilldock/internal/core"
	"github.com/finchley/skilldock/internal/executor"
	"github.com/finchley/skilldock/internal/lockfile"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment SkillDock depends on",
	Long: `Run environment checks: the skills CLI, the registry, settings, the
workspace lockfile and detected agents. Findings are reported; doctor
itself always exits zero.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, "skilldock doctor")
		fmt.Fprintln(os.Stdout)

		fmt.Fprintf(os.Stdout, "settings:  %s\n", d.sm.Path())

		health := d.cli.CheckHealth(cmd.Context())
		switch health.Status {
		case executor.HealthOK:
			fmt.Fprintf(os.Stdout, "cli:       ok (%s, version %s)\n", d.settings.CLIPath, health.Version)
		case executor.HealthMissing:
			fmt.Fprintf(os.Stdout, "cli:       MISSING (%q not found on PATH)\n", d.settings.CLIPath)
		case executor.HealthOutdated:
			fmt.Fprintf(os.Stdout, "cli:       OUTDATED (%s, minimum %s)\n", health.Version, executor.MinVersion)
		default:
			fmt.Fprintf(os.Stdout, "cli:       UNKNOWN (%v)\n", health.Err)
		}

		if _, meta, err := d.registry.GetWithMetadata(cmd.Context(), false); err != nil {
			fmt.Fprintf(os.Stdout, "registry:  UNREACHABLE (%s)\n", d.settings.RegistryURL)
		} else if meta.Offline {
			fmt.Fprintln(os.Stdout, "registry:  offline, cached copy available")
		} else {
			fmt.Fprintf(os.Stdout, "registry:  ok (%s)\n", d.settings.RegistryURL)
		}

		trustLabel := "untrusted"
		if d.settings.IsWorkspaceTrusted(d.workspace) {
			trustLabel = "trusted"
		}
		fmt.Fprintf(os.Stdout, "workspace: %s [%s]\n", d.workspace, trustLabel)
		if d.eval.Blocked() {
			fmt.Fprintf(os.Stdout, "scopes:    blocked (%s)\n", d.eval.BlockedReason)
		} else {
			fmt.Fprintf(os.Stdout, "scopes:    %s\n", scopeNames(d.eval.EffectiveScopes))
		}

		if lf, err := lockfile.Read(d.workspace); err != nil {
			fmt.Fprintf(os.Stdout, "lockfile:  INVALID (%v)\n", err)
		} else if lf == nil {
			fmt.Fprintln(os.Stdout, "lockfile:  none")
		} else {
			fmt.Fprintf(os.Stdout, "lockfile:  %d skill(s)\n", len(lf.Skills))
		}

		detected := core.DetectAgents(d.agents)
		if len(detected) == 0 {
			fmt.Fprintln(os.Stdout, "agents:    none detected")
		} else {
			names := make([]string, 0, len(detected))
			for _, a := range detected {
				names = append(names, a.Name)
			}
			fmt.Fprintf(os.Stdout, "agents:    %s\n", strings.Join(names, ", "))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
