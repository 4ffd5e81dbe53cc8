package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:     "remove <skill>...",
	Aliases: []string{"uninstall", "rm"},
	Short:   "Remove installed skill(s)",
	Long: `Remove one or more installed skills.

Removal targets the local scope by default. Pass --scope all to remove
a skill from both the workspace and your user directory at once.`,
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

		orch, err := d.newOrchestrator(ctx, nil)
		if err != nil {
			return err
		}

		return runBatch(ctx, orch, func() error {
			return orch.RemoveMany(args, scope, agents)
		})
	},
}

func init() {
	addScopeFlag(removeCmd, "local")
	addAgentsFlag(removeCmd)
	rootCmd.AddCommand(removeCmd)
}
