package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finchley/skilldock/internal/core"
	"github.com/finchley/skilldock/internal/lockfile"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show installed skills for the current workspace",
	Long: `Show the scope policy and every skill installed locally or globally,
with per-agent detail and corruption flags.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}

		trusted := d.settings.IsWorkspaceTrusted(d.workspace)
		trustLabel := "untrusted"
		if trusted {
			trustLabel = "trusted"
		}
		fmt.Fprintf(os.Stdout, "Workspace: %s [%s]\n", d.workspace, trustLabel)
		if d.eval.Blocked() {
			fmt.Fprintf(os.Stdout, "Scopes: blocked (%s)\n", d.eval.BlockedReason)
		} else {
			fmt.Fprintf(os.Stdout, "Scopes: %s\n", scopeNames(d.eval.EffectiveScopes))
		}

		data, meta, err := d.registry.GetWithMetadata(cmd.Context(), false)
		if err != nil {
			fmt.Fprintln(os.Stdout)
			fmt.Fprintln(os.Stdout, "Registry unavailable; cannot list installed skills.")
			return nil
		}
		if meta.Offline {
			fmt.Fprintln(os.Stdout, "Registry: offline (cached copy)")
		}

		hashes, err := lockfile.Reader{Dir: d.workspace}.InstalledHashes()
		if err != nil {
			return fmt.Errorf("reading lockfile: %w", err)
		}

		state, err := d.newScanner().Scan(data.Skills, d.workspace, core.ScanOptions{
			IncludeLocal:  true,
			IncludeGlobal: true,
			Hashes:        hashes,
		})
		if err != nil {
			return fmt.Errorf("scanning installed skills: %w", err)
		}

		fmt.Fprintln(os.Stdout)
		if len(state) == 0 {
			fmt.Fprintln(os.Stdout, "No skills installed.")
			return nil
		}

		names := make([]string, 0, len(state))
		for name := range state {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintf(os.Stdout, "Installed skills (%d):\n", len(names))
		for _, name := range names {
			var registryHash string
			if skill, ok := data.FindSkill(name); ok {
				registryHash = skill.ContentHash
			}
			printSkillStatus(name, state[name], registryHash)
		}
		return nil
	},
}

func printSkillStatus(name string, info core.InstalledSkillInfo, registryHash string) {
	var scopes []string
	if info.Local {
		scopes = append(scopes, "local")
	}
	if info.Global {
		scopes = append(scopes, "global")
	}

	fmt.Fprintf(os.Stdout, "  %s [%s]", name, strings.Join(scopes, ", "))
	if info.ContentHash != "" && registryHash != "" && info.ContentHash != registryHash {
		fmt.Fprint(os.Stdout, " (update available)")
	}
	fmt.Fprintln(os.Stdout)

	for _, a := range info.Agents {
		marker := ""
		if a.Corrupted {
			marker = " CORRUPTED"
		}
		fmt.Fprintf(os.Stdout, "    %s%s\n", a.DisplayName, marker)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
