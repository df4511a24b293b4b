package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kestrelcad/addons/internal/logger"
	"github.com/kestrelcad/addons/internal/ui/styles"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local caches",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache locations and sizes",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Cache root: %s\n", opts.CacheDir)
		for _, sub := range []string{"PackageMetadata", "Macros", "Icons"} {
			dir := filepath.Join(opts.CacheDir, sub)
			size, files := dirSize(dir)
			fmt.Printf("  %-16s %6d files  %s\n", sub, files, formatBytes(size))
		}
		fmt.Printf("Log file:   %s\n", logger.GetLogPath())
		return nil
	},
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete every local cache",
	Long:  `Delete the metadata store, the macro mirror, the icon cache and the package cache. The next update rebuilds them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.RemoveAll(opts.CacheDir); err != nil {
			return fmt.Errorf("failed to clean cache: %w", err)
		}
		fmt.Println(styles.FormatSuccess("cache cleaned: " + opts.CacheDir))
		return nil
	},
}

func dirSize(dir string) (bytes int64, files int) {
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			bytes += info.Size()
			files++
		}
		return nil
	})
	return bytes, files
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheCleanCmd)
	rootCmd.AddCommand(cacheCmd)
}
