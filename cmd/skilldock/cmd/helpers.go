package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finchley/skilldock/internal/core"
	"github.com/finchley/skilldock/internal/orchestrator"
)

// addScopeFlag adds the --scope flag shared by scope-capable commands.
func addScopeFlag(cmd *cobra.Command, def string) {
	cmd.Flags().StringP("scope", "s", def, "Target scope: local, global or all")
}

// addAgentsFlag adds the --agents flag shared by agent-capable commands.
func addAgentsFlag(cmd *cobra.Command) {
	cmd.Flags().String("agents", "", "Comma-separated agent names (e.g. cursor,claude-code); default: detected agents")
}

// resolveScope parses --scope and checks it against the effective policy.
func resolveScope(cmd *cobra.Command, eval core.Evaluation) (core.ScopeSelector, error) {
	flag, _ := cmd.Flags().GetString("scope")

	var sel core.ScopeSelector
	switch flag {
	case "local":
		sel = core.SelectLocal
	case "global":
		sel = core.SelectGlobal
	case "all":
		sel = core.SelectAll
	default:
		return "", fmt.Errorf("invalid --scope %q (expected local, global or all)", flag)
	}

	if eval.Blocked() {
		return "", blockedError(eval.BlockedReason)
	}
	for _, s := range sel.Scopes() {
		if !eval.Allows(s) {
			return "", fmt.Errorf("scope %q is not permitted here (effective scopes: %s)", s, scopeNames(eval.EffectiveScopes))
		}
	}
	return sel, nil
}

// resolveAgents parses --agents into validated agent names. An empty flag
// means "agents detected on this machine".
func resolveAgents(cmd *cobra.Command, known []core.AgentDef) ([]string, error) {
	flag, _ := cmd.Flags().GetString("agents")
	if flag == "" {
		detected := core.DetectAgents(known)
		names := make([]string, 0, len(detected))
		for _, a := range detected {
			names = append(names, a.Name)
		}
		return names, nil
	}

	names := strings.Split(flag, ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	if _, err := core.ResolveAgentsByNames(known, names); err != nil {
		return nil, err
	}
	return names, nil
}

func blockedError(reason core.BlockReason) error {
	switch reason {
	case core.BlockPolicyNone:
		return fmt.Errorf("skill operations are disabled by settings (allowedScopes: none)")
	case core.BlockWorkspaceUntrusted:
		return fmt.Errorf("local scope requires a trusted workspace; add this folder to trustedWorkspaces in settings")
	case core.BlockWorkspaceMissing:
		return fmt.Errorf("local scope requires an open workspace")
	default:
		return fmt.Errorf("no usable scope: %s", reason)
	}
}

func scopeNames(scopes []core.Scope) string {
	if len(scopes) == 0 {
		return "none"
	}
	names := make([]string, len(scopes))
	for i, s := range scopes {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// runBatch subscribes to the orchestrator, runs enqueue, streams progress to
// stdout and blocks until the batch resolves or ctx is cancelled. After the
// batch resolves the orchestrator settles before closing, so a repair
// enqueued by post-install verification still runs in this invocation.
func runBatch(ctx context.Context, orch *orchestrator.Orchestrator, enqueue func() error) error {
	done := make(chan orchestrator.BatchResult, 1)

	sub := orch.Subscribe(func(ev orchestrator.Event) {
		switch ev.Type {
		case orchestrator.EventStarted:
			if ev.Metadata != nil && ev.Metadata.Scope != "" {
				fmt.Fprintf(os.Stdout, "%s %s (%s)...\n", ev.Operation, ev.SkillName, ev.Metadata.Scope)
			} else {
				fmt.Fprintf(os.Stdout, "%s %s...\n", ev.Operation, ev.SkillName)
			}
		case orchestrator.EventProgress:
			fmt.Fprintf(os.Stdout, "  %s\n", ev.Message)
		case orchestrator.EventCompleted:
			switch {
			case ev.Cancelled:
				fmt.Fprintf(os.Stdout, "%s %s: cancelled\n", ev.Operation, ev.SkillName)
			case ev.Success:
				fmt.Fprintf(os.Stdout, "%s %s: done\n", ev.Operation, ev.SkillName)
			default:
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", ev.Operation, ev.SkillName, ev.ErrorMessage)
			}
		case orchestrator.EventBatchCompleted:
			select {
			case done <- *ev.Batch:
			default:
			}
		}
	})
	defer sub.Dispose()
	defer orch.Close()

	if err := enqueue(); err != nil {
		return err
	}

	select {
	case res := <-done:
		orch.Settle()
		if !res.Success {
			return fmt.Errorf("%d of %d operations failed: %s", len(res.FailedSkills), res.Total, strings.Join(res.FailedSkills, ", "))
		}
		return nil
	case <-ctx.Done():
		// Close cancels the running job and the pending tail.
		return ctx.Err()
	}
}
