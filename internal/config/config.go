// Package config holds the explicit configuration for the addon discovery
// pipeline. Every remote URL, directory and tuning knob lives here with a
// documented default; components receive an Options value instead of reading
// global preference state.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Default remote endpoints.
const (
	// DefaultSubmoduleIndexURL is the git-submodule index listing the
	// first-party addon repositories.
	DefaultSubmoduleIndexURL = "https://raw.githubusercontent.com/kestrelcad/addon-index/master/.gitmodules"

	// DefaultRemoteCacheURL is a zip of pre-fetched package.xml metadata,
	// maintained server-side so clients can skip per-repo fetches.
	DefaultRemoteCacheURL = "https://addons.kestrelcad.org/metadata.zip"

	// DefaultUpdateStatsURL is the per-addon last-commit feed.
	DefaultUpdateStatsURL = "https://addons.kestrelcad.org/addon_update_stats.json"

	// DefaultAddonFlagsURL is the block/reject/deprecation feed.
	DefaultAddonFlagsURL = "https://raw.githubusercontent.com/kestrelcad/addon-index/master/addonflags.json"

	// DefaultMacroGitURL is the macro mirror repository.
	DefaultMacroGitURL = "https://github.com/kestrelcad/macros"

	// DefaultMacroUpdateStatsURL is the flat name-to-timestamp feed for macros.
	DefaultMacroUpdateStatsURL = "https://addons.kestrelcad.org/macro_update_stats.json"

	// DefaultMacroWikiURL is the wiki page listing community macros.
	DefaultMacroWikiURL = "https://wiki.kestrelcad.org/Macros_recipes"

	// DefaultWikiBaseURL is the wiki root, used to resolve relative icon paths.
	DefaultWikiBaseURL = "https://wiki.kestrelcad.org"

	// DefaultIconCacheURL is the bulk icon cache zip; its SHA1 lives at the
	// same URL with ".sha1" appended.
	DefaultIconCacheURL = "https://addons.kestrelcad.org/icon_cache.zip"
)

// DefaultBlockedMacros are wiki index entries that are not real macros.
var DefaultBlockedMacros = []string{
	"BOLTS", "WorkFeatures", "how to install", "documentation", "PartsLibrary", "FCGear",
}

// Options configures the sources, the aggregator and the icon pipeline.
type Options struct {
	SubmoduleIndexURL string
	RemoteCacheURL    string
	UpdateStatsURL    string
	AddonFlagsURL     string

	// CustomRepositories holds user-added entries, one per line, each a URL
	// optionally followed by a space and a branch name.
	CustomRepositories []string

	MacroGitURL         string
	MacroGitBranch      string
	MacroUpdateStatsURL string
	// MacroUpdateFrequencyDays bounds how often the zip-snapshot macro mirror
	// is refreshed when no update-stats feed is available.
	MacroUpdateFrequencyDays int

	MacroWikiURL  string
	WikiBaseURL   string
	// DownloadMacros controls whether the wiki source fetches each macro's
	// page and code up front, or emits bare shells.
	DownloadMacros bool
	BlockedMacros  []string

	IconCacheURL string

	// CacheDir is the root for all local caches (package metadata, icons,
	// macro mirror, the package cache JSON).
	CacheDir string
	// ModDir is where non-macro addons install to, one subdirectory per addon.
	ModDir string
	// MacroDir is where installed macro files live.
	MacroDir string

	// AppMajor and AppMinor are the host application version used to decide
	// which deprecation entries apply.
	AppMajor int
	AppMinor int
}

// Default returns Options populated with every documented default.
// Directories are rooted under the user cache and data dirs.
func Default() Options {
	cacheRoot := userCacheDir()
	dataRoot := userDataDir()
	return Options{
		SubmoduleIndexURL:        DefaultSubmoduleIndexURL,
		RemoteCacheURL:           DefaultRemoteCacheURL,
		UpdateStatsURL:           DefaultUpdateStatsURL,
		AddonFlagsURL:            DefaultAddonFlagsURL,
		MacroGitURL:              DefaultMacroGitURL,
		MacroGitBranch:           "master",
		MacroUpdateStatsURL:      DefaultMacroUpdateStatsURL,
		MacroUpdateFrequencyDays: 7,
		MacroWikiURL:             DefaultMacroWikiURL,
		WikiBaseURL:              DefaultWikiBaseURL,
		DownloadMacros:           false,
		BlockedMacros:            append([]string(nil), DefaultBlockedMacros...),
		IconCacheURL:             DefaultIconCacheURL,
		CacheDir:                 filepath.Join(cacheRoot, "kestrelcad", "addons"),
		ModDir:                   filepath.Join(dataRoot, "kestrelcad", "Mod"),
		MacroDir:                 filepath.Join(dataRoot, "kestrelcad", "Macro"),
		AppMajor:                 1,
		AppMinor:                 0,
	}
}

// Load layers an optional config file and ADDONS_-prefixed environment
// variables over the defaults. A missing config file is not an error.
func Load(configFile string) (Options, error) {
	opts := Default()

	v := viper.New()
	v.SetEnvPrefix("ADDONS")
	v.AutomaticEnv()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("addons")
		v.AddConfigPath(filepath.Join(userConfigDir(), "kestrelcad"))
	}

	if err := v.ReadInConfig(); err != nil {
		if configFile != "" {
			return opts, err
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return opts, err
		}
	}

	applyString(v, "submodule_index_url", &opts.SubmoduleIndexURL)
	applyString(v, "remote_cache_url", &opts.RemoteCacheURL)
	applyString(v, "update_stats_url", &opts.UpdateStatsURL)
	applyString(v, "addon_flags_url", &opts.AddonFlagsURL)
	applyString(v, "macro_git_url", &opts.MacroGitURL)
	applyString(v, "macro_git_branch", &opts.MacroGitBranch)
	applyString(v, "macro_update_stats_url", &opts.MacroUpdateStatsURL)
	applyString(v, "macro_wiki_url", &opts.MacroWikiURL)
	applyString(v, "wiki_base_url", &opts.WikiBaseURL)
	applyString(v, "icon_cache_url", &opts.IconCacheURL)
	applyString(v, "cache_dir", &opts.CacheDir)
	applyString(v, "mod_dir", &opts.ModDir)
	applyString(v, "macro_dir", &opts.MacroDir)
	if v.IsSet("macro_update_frequency_days") {
		opts.MacroUpdateFrequencyDays = v.GetInt("macro_update_frequency_days")
	}
	if v.IsSet("download_macros") {
		opts.DownloadMacros = v.GetBool("download_macros")
	}
	if v.IsSet("custom_repositories") {
		opts.CustomRepositories = v.GetStringSlice("custom_repositories")
	}
	if v.IsSet("blocked_macros") {
		opts.BlockedMacros = v.GetStringSlice("blocked_macros")
	}

	return opts, nil
}

func applyString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func userCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache")
}

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

func userDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share")
}
