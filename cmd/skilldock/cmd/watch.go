package cmd

import (
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/finchley/skilldock/internal/core"
	"github.com/finchley/skilldock/internal/orchestrator"
	"github.com/finchley/skilldock/internal/reconcile"
	"github.com/finchley/skilldock/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch installed skills live",
	Long: `Open a live view of the installed-skill state. The view updates when
skill directories change on disk and polls global directories in the
background. When autoRepair is enabled and the skills CLI is healthy,
corrupted installs found while watching are repaired automatically.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		focus := reconcile.NewTickerFocusSource(d.settings.PollInterval())
		rec := d.newReconciler(focus)
		defer rec.Close()
		defer focus.Close()

		// The CLI being unhealthy degrades watch to read-only; it does not
		// prevent watching.
		orch, healthErr := d.newOrchestrator(ctx, rec.Trigger)
		if orch != nil {
			defer orch.Close()
		}

		model := tui.NewWatchModel(d.workspace, rec.Trigger)
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

		var agentNames []string
		for _, a := range core.DetectAgents(d.agents) {
			agentNames = append(agentNames, a.Name)
		}

		var repairMu sync.Mutex
		repairTried := make(map[string]bool)

		// Registry hashes let the view badge stale installs. Best effort;
		// offline watching still works without them.
		registryHashes := make(map[string]string)
		if data, _, regErr := d.registry.GetWithMetadata(ctx, false); regErr == nil {
			for _, s := range data.Skills {
				registryHashes[s.Name] = s.ContentHash
			}
		}

		recSub := rec.OnStateChanged(func(state core.InstalledSkillsMap) {
			p.Send(tui.SnapshotMsg{State: state, RegistryHashes: registryHashes})
			if orch != nil && d.settings.AutoRepair {
				repairCorrupted(orch, d.eval, state, agentNames, &repairMu, repairTried)
			}
		})
		defer recSub.Dispose()

		if orch != nil {
			orchSub := orch.Subscribe(func(ev orchestrator.Event) {
				p.Send(tui.OperationMsg{Event: ev})
			})
			defer orchSub.Dispose()
		}

		rec.UpdatePolicy(d.eval)
		rec.Start(ctx)

		if _, err := p.Run(); err != nil {
			return fmt.Errorf("watch view: %w", err)
		}
		if healthErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "note: auto-repair was disabled: %v\n", healthErr)
		}
		return nil
	},
}

// repairCorrupted enqueues one repair per corrupted (skill, scope) seen while
// watching. Repeated snapshots of the same corruption do not re-enqueue.
func repairCorrupted(orch *orchestrator.Orchestrator, eval core.Evaluation, state core.InstalledSkillsMap, agents []string, mu *sync.Mutex, tried map[string]bool) {
	for name, info := range state {
		corrupted := false
		for _, a := range info.Agents {
			if a.Corrupted {
				corrupted = true
				break
			}
		}
		if !corrupted {
			continue
		}

		for _, scope := range []core.Scope{core.ScopeLocal, core.ScopeGlobal} {
			if !eval.Allows(scope) {
				continue
			}
			if scope == core.ScopeLocal && !info.Local {
				continue
			}
			if scope == core.ScopeGlobal && !info.Global {
				continue
			}

			key := name + "|" + string(scope)
			mu.Lock()
			seen := tried[key]
			tried[key] = true
			mu.Unlock()
			if seen {
				continue
			}
			_ = orch.RepairMany([]string{name}, scope, agents)
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
