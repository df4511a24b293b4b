package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrelcad/addons/internal/icons"
	"github.com/kestrelcad/addons/internal/logger"
	"github.com/kestrelcad/addons/internal/source"
	"github.com/kestrelcad/addons/internal/transport"
	"github.com/kestrelcad/addons/internal/ui/styles"
)

var iconsForce bool

var iconsCmd = &cobra.Command{
	Use:   "icons",
	Short: "Resolve icons for the cached catalog",
	Long: `Download the bulk icon cache and fetch any icons it does not cover,
so every catalog entry has a local icon file where its origin provides one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client := transport.NewClient(logger.Log)
		agg := source.NewAggregator(opts, client, logger.Log)
		if err := agg.LoadLocalCache(ctx); err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		if len(agg.Addons) == 0 {
			fmt.Println("Catalog is empty, run: addonctl update")
			return nil
		}

		resolver := icons.NewResolver(opts, client, logger.Log)
		resolver.Force = iconsForce
		resolver.Progress = func(done, total int) {
			if done == total || done%50 == 0 {
				logger.Log.Info("resolving icons", "done", done, "total", total)
			}
		}
		resolved, err := resolver.Run(ctx, agg.Addons)
		if err != nil {
			fmt.Println(styles.FormatError("icon cache download failed"))
			return err
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("icons resolved for %d of %d addons", resolved, len(agg.Addons))))
		return nil
	},
}

func init() {
	iconsCmd.Flags().BoolVar(&iconsForce, "force", false, "Refetch icons even when cached copies exist")
	rootCmd.AddCommand(iconsCmd)
}
