package source

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/kestrelcad/addons/internal/addon"
	"github.com/kestrelcad/addons/internal/config"
)

// packageCacheFile is the JSON snapshot of the last successful discovery,
// kept under the cache root for offline starts.
const packageCacheFile = "package_cache.json"

// cacheEntry is one addon as persisted in the package cache.
type cacheEntry struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Branch string `json:"branch"`
	Kind   string `json:"kind"`
}

// LocalCacheSource replays the package cache written by a previous run,
// enriching each entry with its cached package.xml when one is on disk. It
// never touches the network, so an empty or damaged cache simply yields
// nothing.
type LocalCacheSource struct {
	opts config.Options
	log  *log.Logger
}

func NewLocalCacheSource(opts config.Options, logger *log.Logger) *LocalCacheSource {
	return &LocalCacheSource{opts: opts, log: logger}
}

func (s *LocalCacheSource) Name() string { return "local cache" }

func (s *LocalCacheSource) Run(ctx context.Context, found FoundFunc) error {
	path := filepath.Join(s.opts.CacheDir, packageCacheFile)
	data, err := os.ReadFile(path)
	if err != nil {
		s.log.Debug("no package cache", "path", path)
		return nil
	}
	var entries map[string]cacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.log.Warn("package cache is damaged, ignoring", "path", path, "error", err)
		return nil
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if cancelled(ctx) {
			return nil
		}
		entry := entries[name]
		if entry.Name == "" {
			entry.Name = name
		}
		a := addon.New(entry.Name, entry.URL, entry.Branch, kindFromString(entry.Kind))
		if a.Kind == addon.KindMacro {
			a.Macro = addon.NewMacro(entry.Name)
		}
		s.attachCachedMetadata(a)
		found(a)
	}
	return nil
}

// attachCachedMetadata loads the addon's stored package.xml when present.
// A damaged file is logged and the bare entry kept.
func (s *LocalCacheSource) attachCachedMetadata(a *addon.Addon) {
	path := filepath.Join(s.opts.CacheDir, "PackageMetadata", a.Name, "package.xml")
	if _, err := os.Stat(path); err != nil {
		return
	}
	md, err := addon.LoadMetadataFile(path)
	if err != nil {
		s.log.Warn("cached package.xml is damaged", "addon", a.Name, "error", err)
		return
	}
	a.SetMetadata(md)
}

// WritePackageCache persists the current catalog for the next offline
// start.
func WritePackageCache(opts config.Options, addons []*addon.Addon) error {
	entries := make(map[string]cacheEntry, len(addons))
	for _, a := range addons {
		entries[a.Name] = cacheEntry{
			Name:   a.Name,
			URL:    a.URL,
			Branch: a.Branch,
			Kind:   a.Kind.String(),
		}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(opts.CacheDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(opts.CacheDir, packageCacheFile), data, 0o644)
}

// kindFromString is the inverse of Kind.String for cache round trips.
func kindFromString(s string) addon.Kind {
	switch s {
	case addon.KindMacro.String():
		return addon.KindMacro
	case addon.KindPackage.String():
		return addon.KindPackage
	default:
		return addon.KindWorkbench
	}
}
