package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install <skill>...",
	Short: "Install skill(s) from the registry",
	Long: `Install one or more skills by name.

Skills install into the current workspace by default (--scope local).
Pass --scope global to install under your home directory instead, or
--scope all for both. Each (skill, scope) pair runs as its own queued
operation; a failure in one does not stop the rest.

Target agents default to the agents detected on this machine. Use
--agents to install for a specific set:
  skilldock install seo --agents cursor,claude-code`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}

		scope, err := resolveScope(cmd, d.eval)
		if err != nil {
			return err
		}
		agents, err := resolveAgents(cmd, d.agents)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Reject names the registry does not know before queueing anything.
		data, meta, err := d.registry.GetWithMetadata(ctx, false)
		if err != nil {
			return fmt.Errorf("loading registry: %w", err)
		}
		if meta.Offline {
			fmt.Fprintln(cmd.OutOrStdout(), "registry unreachable, using cached copy")
		}
		for _, name := range args {
			if _, ok := data.FindSkill(name); !ok {
				return fmt.Errorf("unknown skill %q", name)
			}
		}

		orch, err := d.newOrchestrator(ctx, nil)
		if err != nil {
			return err
		}

		return runBatch(ctx, orch, func() error {
			return orch.InstallMany(args, scope, agents, "registry")
		})
	},
}

func init() {
	addScopeFlag(installCmd, "local")
	addAgentsFlag(installCmd)
	rootCmd.AddCommand(installCmd)
}
