package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kestrelcad/addons/internal/addon"
	"github.com/kestrelcad/addons/internal/logger"
	"github.com/kestrelcad/addons/internal/source"
	"github.com/kestrelcad/addons/internal/transport"
	"github.com/kestrelcad/addons/internal/ui/styles"
)

var infoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show details for one catalog entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := transport.NewClient(logger.Log)
		agg := source.NewAggregator(opts, client, logger.Log)
		if err := agg.LoadLocalCache(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		var found *addon.Addon
		for _, a := range agg.Addons {
			if a.Name == args[0] {
				found = a
				break
			}
		}
		if found == nil {
			return fmt.Errorf("no addon named %q in the catalog", args[0])
		}

		fmt.Println(styles.Title.Render(found.Name))
		fmt.Printf("Kind:    %s\n", found.Kind)
		fmt.Printf("Status:  %s\n", styles.FormatStatus(found.Status))
		if found.URL != "" {
			fmt.Printf("Origin:  %s", found.URL)
			if found.Branch != "" {
				fmt.Printf(" (%s)", found.Branch)
			}
			fmt.Println()
		}
		if found.InstalledVersion != "" {
			fmt.Printf("Version: %s\n", found.InstalledVersion)
		}
		if md := found.Metadata; md != nil && md.Description != "" {
			fmt.Printf("\n%s\n", md.Description)
		}
		if m := found.Macro; m != nil && m.Comment != "" {
			fmt.Printf("\n%s\n", m.Comment)
		}
		printSet("Requires", found.Requires())
		printSet("Python requires", found.PythonRequires())
		printSet("Python optional", found.PythonOptional())
		return nil
	},
}

func printSet(label string, set map[string]bool) {
	if len(set) == 0 {
		return
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Printf("\n%s:\n", label)
	for _, name := range names {
		fmt.Printf("  %s %s\n", styles.MutedText.Render("-"), name)
	}
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
