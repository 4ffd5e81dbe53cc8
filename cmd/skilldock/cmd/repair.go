package cmd

import (
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/finchley/skilldock/internal/core"
)

var repairCmd = &cobra.Command{
	Use:   "repair [skill]...",
	Short: "Reinstall corrupted skill(s)",
	Long: `Repair skills whose install directory exists but is missing its
SKILL.md manifest, by reinstalling them in place.

With no arguments, repairs every corrupted install found in the given
scope. Repair targets exactly one scope; the default is local.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}

		flag, _ := cmd.Flags().GetString("scope")
		var scope core.Scope
		switch flag {
		case "local":
			scope = core.ScopeLocal
		case "global":
			scope = core.ScopeGlobal
		default:
			return fmt.Errorf("invalid --scope %q (repair targets one scope: local or global)", flag)
		}
		if !d.eval.Allows(scope) {
			if d.eval.Blocked() {
				return blockedError(d.eval.BlockedReason)
			}
			return fmt.Errorf("scope %q is not permitted here (effective scopes: %s)", scope, scopeNames(d.eval.EffectiveScopes))
		}

		agents, err := resolveAgents(cmd, d.agents)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		names := args
		if len(names) == 0 {
			names, err = corruptedSkills(cmd, d, scope)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to repair.")
				return nil
			}
		}

		orch, err := d.newOrchestrator(ctx, nil)
		if err != nil {
			return err
		}

		return runBatch(ctx, orch, func() error {
			return orch.RepairMany(names, scope, agents)
		})
	},
}

// corruptedSkills scans one scope and returns skills with torn installs.
func corruptedSkills(cmd *cobra.Command, d *deps, scope core.Scope) ([]string, error) {
	data, _, err := d.registry.GetWithMetadata(cmd.Context(), false)
	if err != nil {
		return nil, fmt.Errorf("loading registry: %w", err)
	}

	state, err := d.newScanner().Scan(data.Skills, d.workspace, core.ScanOptions{
		IncludeLocal:  scope == core.ScopeLocal,
		IncludeGlobal: scope == core.ScopeGlobal,
	})
	if err != nil {
		return nil, fmt.Errorf("scanning installed skills: %w", err)
	}

	var names []string
	for name, info := range state {
		for _, a := range info.Agents {
			if a.Corrupted {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func init() {
	repairCmd.Flags().StringP("scope", "s", "local", "Target scope: local or global")
	addAgentsFlag(repairCmd)
	rootCmd.AddCommand(repairCmd)
}
