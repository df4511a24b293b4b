package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrelcad/addons/internal/icons"
	"github.com/kestrelcad/addons/internal/logger"
	"github.com/kestrelcad/addons/internal/source"
	"github.com/kestrelcad/addons/internal/transport"
	"github.com/kestrelcad/addons/internal/ui/styles"
	"github.com/kestrelcad/addons/internal/vcs"
)

var (
	updateNoCache        bool
	updateDownloadMacros bool
	updateForceMacros    bool
	updateWithIcons      bool
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Rebuild the addon catalog from the remote sources",
	Long: `Query the addon index, the macro git mirror and the community wiki,
merge the results into a single catalog, and persist it for offline use.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if updateDownloadMacros {
			opts.DownloadMacros = true
		}

		client := transport.NewClient(logger.Log)
		async := transport.NewAsyncClient(client, 64)

		gitIndex := source.NewGitIndexSource(opts, client, async, logger.Log)
		gitIndex.SkipCache = updateNoCache
		macroGit := source.NewMacroGitSource(opts, client, vcs.New(), logger.Log)
		macroGit.Force = updateForceMacros
		macroWiki := source.NewMacroWikiSource(opts, client, logger.Log)

		agg := source.NewAggregator(opts, client, logger.Log, gitIndex, macroGit, macroWiki)
		if err := agg.Update(ctx); err != nil {
			return fmt.Errorf("catalog update failed: %w", err)
		}
		if err := ctx.Err(); err != nil {
			fmt.Println(styles.FormatError("update cancelled"))
			return nil
		}
		fmt.Println(styles.FormatSuccess(fmt.Sprintf("catalog updated, %d addons", len(agg.Addons))))

		if updateWithIcons {
			resolver := icons.NewResolver(opts, client, logger.Log)
			resolved, err := resolver.Run(ctx, agg.Addons)
			if err != nil {
				return err
			}
			fmt.Println(styles.FormatSuccess(fmt.Sprintf("icons resolved for %d addons", resolved)))
		}
		return nil
	},
}

func init() {
	updateCmd.Flags().BoolVar(&updateNoCache, "no-cache", false, "Skip the server-side metadata cache and query every repository")
	updateCmd.Flags().BoolVar(&updateDownloadMacros, "download-macros", false, "Fetch every wiki macro's page and code up front")
	updateCmd.Flags().BoolVar(&updateForceMacros, "force-macros", false, "Refresh the macro mirror even if it looks current")
	updateCmd.Flags().BoolVar(&updateWithIcons, "icons", false, "Also resolve icons after updating the catalog")
	rootCmd.AddCommand(updateCmd)
}
