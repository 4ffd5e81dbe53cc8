package cmd

import (
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/finchley/skilldock/internal/core"
	"github.com/finchley/skilldock/internal/lockfile"
)

var updateCmd = &cobra.Command{
	Use:   "update [skill]...",
	Short: "Update installed skill(s) to the registry version",
	Long: `Update installed skills in place, wherever they are installed.

With no arguments, updates every installed skill whose content hash
differs from the registry. Updates always cover both scopes; there is
no --scope flag because an update targets existing installs only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		names := args
		if len(names) == 0 {
			names, err = staleSkills(cmd, d)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Everything is up to date.")
				return nil
			}
		}

		orch, err := d.newOrchestrator(ctx, nil)
		if err != nil {
			return err
		}

		return runBatch(ctx, orch, func() error {
			return orch.UpdateMany(names)
		})
	},
}

// staleSkills scans the installed state and returns skills whose lockfile
// hash no longer matches the registry.
func staleSkills(cmd *cobra.Command, d *deps) ([]string, error) {
	data, _, err := d.registry.GetWithMetadata(cmd.Context(), false)
	if err != nil {
		return nil, fmt.Errorf("loading registry: %w", err)
	}

	hashes, err := lockfile.Reader{Dir: d.workspace}.InstalledHashes()
	if err != nil {
		return nil, fmt.Errorf("reading lockfile: %w", err)
	}

	state, err := d.newScanner().Scan(data.Skills, d.workspace, core.ScanOptions{
		IncludeLocal:  true,
		IncludeGlobal: true,
		Hashes:        hashes,
	})
	if err != nil {
		return nil, fmt.Errorf("scanning installed skills: %w", err)
	}

	var stale []string
	for name, info := range state {
		skill, ok := data.FindSkill(name)
		if !ok {
			continue
		}
		if info.ContentHash != "" && skill.ContentHash != "" && info.ContentHash != skill.ContentHash {
			stale = append(stale, name)
		}
	}
	sort.Strings(stale)
	return stale, nil
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
