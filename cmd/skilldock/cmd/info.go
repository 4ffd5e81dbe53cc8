package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/finchley/skilldock/internal/core"
)

var infoCmd = &cobra.Command{
	Use:   "info <skill>",
	Short: "Show details for a skill",
	Long: `Show registry metadata for a skill. If the skill is installed, its
SKILL.md manifest is rendered as well.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}
		name := args[0]
		if err := core.ValidateSkillName(name); err != nil {
			return err
		}

		data, _, err := d.registry.GetWithMetadata(cmd.Context(), false)
		if err != nil {
			return fmt.Errorf("loading registry: %w", err)
		}
		skill, ok := data.FindSkill(name)
		if !ok {
			return fmt.Errorf("unknown skill %q", name)
		}

		fmt.Fprintf(os.Stdout, "Name:        %s\n", skill.Name)
		fmt.Fprintf(os.Stdout, "Description: %s\n", skill.Description)
		if skill.Category != "" {
			fmt.Fprintf(os.Stdout, "Category:    %s\n", skill.Category)
		}
		if skill.Author != "" {
			fmt.Fprintf(os.Stdout, "Author:      %s\n", skill.Author)
		}
		if skill.Version != "" {
			fmt.Fprintf(os.Stdout, "Version:     %s\n", skill.Version)
		}

		manifest := d.newScanner().FindInstalledManifest(name, d.workspace)
		if manifest == "" {
			return nil
		}

		fmt.Fprintf(os.Stdout, "Installed:   %s\n\n", manifest)
		raw, err := os.ReadFile(manifest)
		if err != nil {
			return fmt.Errorf("reading manifest: %w", err)
		}

		rendered, err := glamour.Render(string(raw), "auto")
		if err != nil {
			// Fall back to raw output when the terminal profile is unusable.
			fmt.Fprintln(os.Stdout, string(raw))
			return nil
		}
		fmt.Fprint(os.Stdout, rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
