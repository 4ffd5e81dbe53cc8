package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/finchley/skilldock/internal/core"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List skills available in the registry",
	Long: `List registry skills grouped by category, marking the ones already
installed in this workspace or globally.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}

		refresh, _ := cmd.Flags().GetBool("refresh")
		data, meta, err := d.registry.GetWithMetadata(cmd.Context(), refresh)
		if err != nil {
			return fmt.Errorf("loading registry: %w", err)
		}
		if meta.Offline {
			fmt.Fprintln(os.Stdout, "Registry: offline (cached copy)")
		}

		state, err := d.newScanner().Scan(data.Skills, d.workspace, core.ScanOptions{
			IncludeLocal:  true,
			IncludeGlobal: true,
		})
		if err != nil {
			return fmt.Errorf("scanning installed skills: %w", err)
		}

		// Group by category and order categories by their declared order.
		byCategory := make(map[string][]core.Skill)
		for _, s := range data.Skills {
			byCategory[s.Category] = append(byCategory[s.Category], s)
		}
		cats := make([]string, 0, len(byCategory))
		for c := range byCategory {
			cats = append(cats, c)
		}
		sort.Slice(cats, func(i, j int) bool {
			oi, oj := data.Categories[cats[i]].Order, data.Categories[cats[j]].Order
			if oi != oj {
				return oi < oj
			}
			return cats[i] < cats[j]
		})

		for _, cat := range cats {
			display := cat
			if c, ok := data.Categories[cat]; ok && c.DisplayName != "" {
				display = c.DisplayName
			}
			fmt.Fprintf(os.Stdout, "%s\n", display)

			skills := byCategory[cat]
			sort.Slice(skills, func(i, j int) bool { return skills[i].Name < skills[j].Name })
			for _, s := range skills {
				marker := " "
				if info, ok := state[s.Name]; ok && (info.Local || info.Global) {
					marker = "*"
				}
				fmt.Fprintf(os.Stdout, "  %s %-24s %s\n", marker, s.Name, s.Description)
			}
			fmt.Fprintln(os.Stdout)
		}

		fmt.Fprintf(os.Stdout, "%d skills, * = installed\n", len(data.Skills))
		return nil
	},
}

func init() {
	listCmd.Flags().Bool("refresh", false, "Bypass the cache and refetch the registry")
	rootCmd.AddCommand(listCmd)
}
