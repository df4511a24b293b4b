package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kestrelcad/addons/internal/addon"
	"github.com/kestrelcad/addons/internal/config"
	"github.com/kestrelcad/addons/internal/transport"
)

// Aggregator runs the discovery sources one after another and builds the
// catalog: each reported addon passes the acceptance gate (duplicate check
// first, then the remote block lists) and gets its local install state
// detected before it is added.
type Aggregator struct {
	opts    config.Options
	fetcher transport.Fetcher
	log     *log.Logger
	sources []Source

	flags *AddonFlags

	// Addons is the accepted catalog in arrival order.
	Addons []*addon.Addon
	seen   map[string]bool
}

func NewAggregator(opts config.Options, fetcher transport.Fetcher, logger *log.Logger, sources ...Source) *Aggregator {
	return &Aggregator{
		opts:    opts,
		fetcher: fetcher,
		log:     logger,
		sources: sources,
		flags:   NewAddonFlags(),
	}
}

// Update rebuilds the catalog from the network sources. A failing source is
// logged and the remaining sources still run; cancellation stops between
// sources and keeps what was already accepted. The resulting catalog is
// persisted as the package cache for offline starts.
func (g *Aggregator) Update(ctx context.Context) error {
	g.reset()
	g.fetchFlags(ctx)
	for _, src := range g.sources {
		if cancelled(ctx) {
			return nil
		}
		g.log.Info("running discovery source", "source", src.Name())
		if err := src.Run(ctx, g.accept); err != nil {
			g.log.Error("discovery source failed", "source", src.Name(), "error", err)
		}
	}
	if err := WritePackageCache(g.opts, g.Addons); err != nil {
		g.log.Warn("cannot persist package cache", "error", err)
	}
	g.log.Info("discovery complete", "addons", len(g.Addons))
	return nil
}

// LoadLocalCache rebuilds the catalog from the on-disk package cache only.
func (g *Aggregator) LoadLocalCache(ctx context.Context) error {
	g.reset()
	return NewLocalCacheSource(g.opts, g.log).Run(ctx, g.accept)
}

func (g *Aggregator) reset() {
	g.Addons = nil
	g.seen = make(map[string]bool)
}

// fetchFlags loads the remote block lists. The feed is optional: when it
// cannot be fetched or parsed the catalog is simply built unfiltered.
func (g *Aggregator) fetchFlags(ctx context.Context) {
	if g.opts.AddonFlagsURL == "" {
		return
	}
	data, err := g.fetcher.Get(ctx, g.opts.AddonFlagsURL)
	if err != nil {
		g.log.Warn("addon flags feed unavailable", "error", err)
		return
	}
	flags, err := ParseAddonFlags(data, g.opts.AppMajor, g.opts.AppMinor, g.log)
	if err != nil {
		g.log.Warn("cannot parse addon flags feed", "error", err)
		return
	}
	g.flags = flags
}

// accept is the gate every discovered addon passes through. The duplicate
// check runs before the block check, so the first arrival of a name decides
// its fate and later duplicates are dropped without block-list logging.
func (g *Aggregator) accept(a *addon.Addon) {
	if g.seen[a.Name] {
		g.log.Debug("dropping duplicate addon", "name", a.Name)
		return
	}
	if status := g.flags.Status(a.Name, a.Kind == addon.KindMacro); status != NotBlocked {
		g.log.Debug("dropping blocked addon", "name", a.Name, "reason", status)
		return
	}
	g.seen[a.Name] = true
	g.detectInstallState(a)
	g.Addons = append(g.Addons, a)
}

// detectInstallState checks the local disk for an installed copy of the
// addon and fills status, installed version and install time.
func (g *Aggregator) detectInstallState(a *addon.Addon) {
	if a.Kind == addon.KindMacro {
		g.detectMacroInstall(a)
		return
	}
	dir := filepath.Join(g.opts.ModDir, a.Name)
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		a.Status = addon.StatusNotInstalled
		return
	}
	a.Status = addon.StatusUnchecked
	if info, err := os.Stat(dir); err == nil {
		a.UpdatedAt = info.ModTime()
	}
	if md, err := addon.LoadMetadataFile(filepath.Join(dir, "package.xml")); err == nil {
		a.InstalledVersion = md.Version
		a.VerifyURLAndBranch(md.RepositoryURL())
	}
	if ts, ok := manifestInstallTime(filepath.Join(dir, "MANIFEST.txt")); ok {
		a.UpdatedAt = ts
	}
}

// detectMacroInstall looks for the macro's file in the macro directory,
// under its own name or with the Macro_ prefix older installers used.
func (g *Aggregator) detectMacroInstall(a *addon.Addon) {
	filename := a.Name + ".FCMacro"
	if a.Macro != nil {
		filename = a.Macro.Filename()
	}
	for _, name := range []string{filename, "Macro_" + filename} {
		path := filepath.Join(g.opts.MacroDir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		a.Status = addon.StatusUnchecked
		a.UpdatedAt = info.ModTime()
		installed := addon.NewMacro(a.Name)
		if err := installed.FillFromFile(path); err == nil {
			a.InstalledVersion = installed.Version
		}
		return
	}
	a.Status = addon.StatusNotInstalled
}

// manifestInstallTime reads the install timestamp from an installation
// manifest: the last non-empty line starts with an ISO-8601 time, optionally
// followed by comma-separated fields.
func manifestInstallTime(path string) (time.Time, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, false
	}
	var last string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			last = line
		}
	}
	if last == "" {
		return time.Time{}, false
	}
	stamp, _, _ := strings.Cut(last, ",")
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, stamp); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
