package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/finchley/skilldock/internal/core"
	"github.com/finchley/skilldock/internal/executor"
	"github.com/finchley/skilldock/internal/lockfile"
	"github.com/finchley/skilldock/internal/logging"
	"github.com/finchley/skilldock/internal/orchestrator"
	"github.com/finchley/skilldock/internal/reconcile"
	"github.com/finchley/skilldock/internal/registry"
)

// deps holds shared dependencies for CLI commands.
type deps struct {
	log       *zap.Logger
	settings  *core.Settings
	sm        *core.SettingsManager
	agents    []core.AgentDef
	cli       *executor.CLI
	registry  *registry.Provider
	workspace string
	eval      core.Evaluation
}

// newDeps creates shared dependencies. Called lazily by commands that need
// them.
func newDeps(cmd *cobra.Command) (*deps, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	log := logging.New(debug)

	sm, err := core.NewSettingsManager()
	if err != nil {
		return nil, fmt.Errorf("initializing settings: %w", err)
	}
	settings, err := sm.Load()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}

	// A CLI invocation always has a working directory, so the workspace is
	// always present; only trust varies.
	eval := core.EvaluatePolicy(settings.AllowedScopes, settings.IsWorkspaceTrusted(cwd), true)

	return &deps{
		log:       log,
		settings:  settings,
		sm:        sm,
		agents:    core.Agents(),
		cli:       executor.New(settings.CLIPath, log),
		registry:  registry.NewProvider(settings.RegistryURL, sm.CacheDir(), log),
		workspace: cwd,
		eval:      eval,
	}, nil
}

// newOrchestrator builds an orchestrator gated on a fresh CLI health check.
// Returns an error describing the problem when the CLI is unusable.
func (d *deps) newOrchestrator(ctx context.Context, requestScan func()) (*orchestrator.Orchestrator, error) {
	health := d.cli.CheckHealth(ctx)
	if !health.Healthy() {
		return nil, cliHealthError(d.settings.CLIPath, health)
	}

	orch := orchestrator.New(orchestrator.Config{
		Executor:      d.cli,
		Agents:        d.agents,
		WorkspaceRoot: d.workspace,
		AutoRepair:    d.settings.AutoRepair,
		RequestScan:   requestScan,
		Log:           d.log,
	})
	orch.SetCLIHealthy(true)
	return orch, nil
}

// newScanner builds the installed-state scanner over the known agents.
func (d *deps) newScanner() *core.Scanner {
	return core.NewScanner(d.agents)
}

// newReconciler builds a reconciler wired to the registry catalog and the
// workspace lockfile.
func (d *deps) newReconciler(focus reconcile.FocusSource) *reconcile.Reconciler {
	return reconcile.New(reconcile.Config{
		Catalog:       d.registry,
		Hashes:        lockfile.Reader{Dir: d.workspace},
		Scanner:       d.newScanner(),
		WorkspaceRoot: d.workspace,
		Focus:         focus,
		Log:           d.log,
	})
}

func cliHealthError(path string, health executor.Health) error {
	switch health.Status {
	case executor.HealthMissing:
		return fmt.Errorf("skills CLI %q not found on PATH; install it or set cliPath in settings", path)
	case executor.HealthOutdated:
		return fmt.Errorf("skills CLI %s is older than the minimum supported %s; please upgrade", health.Version, executor.MinVersion)
	default:
		if health.Err != nil {
			return fmt.Errorf("skills CLI health check failed: %w", health.Err)
		}
		return fmt.Errorf("skills CLI health check failed")
	}
}
