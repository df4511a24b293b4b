package cmd

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/kestrelcad/addons/internal/config"
	"github.com/kestrelcad/addons/internal/logger"
)

// Version info set via ldflags at build time
var (
	version = "dev"
	commit  = "unknown"
)

var (
	verbose    bool
	configFile string
	opts       config.Options
)

var rootCmd = &cobra.Command{
	Use:     "addonctl",
	Short:   "kestrelcad addon catalog CLI",
	Version: version + " (" + commit + ")",
	Long: `A CLI tool to browse and maintain the kestrelcad addon catalog.
Discovers workbenches, packages and macros from the addon index, the macro
mirror and the community wiki, and keeps their metadata and icons cached
locally.

Quick start:
  addonctl update      Rebuild the catalog from the remote sources
  addonctl list        Show the cached catalog`,
}

func Execute() {
	defer logger.Close()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := logger.Init(verbose); err != nil {
			return err
		}
		if verbose {
			logger.Log.SetLevel(log.DebugLevel)
		}
		var err error
		opts, err = config.Load(configFile)
		return err
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")
}
