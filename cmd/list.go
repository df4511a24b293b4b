package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kestrelcad/addons/internal/addon"
	"github.com/kestrelcad/addons/internal/logger"
	"github.com/kestrelcad/addons/internal/source"
	"github.com/kestrelcad/addons/internal/transport"
	"github.com/kestrelcad/addons/internal/ui/styles"
)

var listInstalledOnly bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the cached addon catalog",
	Long:  `List the addon catalog from the local package cache, without touching the network.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := transport.NewClient(logger.Log)
		agg := source.NewAggregator(opts, client, logger.Log)
		if err := agg.LoadLocalCache(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		if len(agg.Addons) == 0 {
			fmt.Println("Catalog is empty")
			fmt.Println("\nBuild it with: addonctl update")
			return nil
		}

		// Use tabwriter for aligned output
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			styles.Title.Render("NAME"),
			styles.Title.Render("KIND"),
			styles.Title.Render("VERSION"),
			styles.Title.Render("STATUS"),
		)
		shown := 0
		for _, a := range agg.Addons {
			if listInstalledOnly && a.Status == addon.StatusNotInstalled {
				continue
			}
			version := a.InstalledVersion
			if version == "" {
				version = "-"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				styles.AddonName.Render(a.Name),
				styles.KindBadge.Render(a.Kind.String()),
				version,
				styles.FormatStatus(a.Status),
			)
			shown++
		}
		_ = w.Flush()

		fmt.Printf("\n%d addon(s)\n", shown)
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listInstalledOnly, "installed", false, "Only show installed addons")
	rootCmd.AddCommand(listCmd)
}
