package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/finchley/skilldock/cmd/skilldock/cmd"
)

func TestMain(m *testing.M) {
	testscript.Main(m, map[string]func(){
		"skilldock": func() {
			if err := cmd.Execute(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	})
}

func TestScript(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir:                 filepath.Join("testdata", "script"),
		RequireExplicitExec: true,
		Setup: func(e *testscript.Env) error {
			// Set HOME to WORK so ~/.skilldock/ is created inside the temp dir
			e.Vars = append(e.Vars, "HOME="+e.WorkDir)
			// Point the registry at a file that does not exist so scripts run
			// fully offline and deterministic.
			return writeSettings(e.WorkDir)
		},
	})
}

// writeSettings seeds ~/.skilldock/settings.json with an unreachable
// registry URL and an untrusted-by-default workspace list.
func writeSettings(home string) error {
	dir := filepath.Join(home, ".skilldock")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	settings := `{
	// Test settings: registry points nowhere so every script is offline.
	"registryUrl": "http://127.0.0.1:1/registry.json",
	"allowedScopes": "all",
	"autoRepair": false,
}
`
	return os.WriteFile(filepath.Join(dir, "settings.json"), []byte(settings), 0o644)
}
