package source

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kestrelcad/addons/internal/addon"
	"github.com/kestrelcad/addons/internal/archive"
	"github.com/kestrelcad/addons/internal/config"
	"github.com/kestrelcad/addons/internal/transport"
	"github.com/kestrelcad/addons/internal/vcs"
)

// updateMarker is the file whose mtime records when the macro mirror was
// last refreshed. The mirror always ships one at its root.
const updateMarker = "README.md"

// MacroGitSource maintains a local checkout of the macro mirror repository
// and emits one macro addon per .FCMacro file in it. The checkout is
// refreshed with git when available, falling back to a zip snapshot, and
// only as often as the update heuristic says is worthwhile.
type MacroGitSource struct {
	opts    config.Options
	fetcher transport.Fetcher
	git     *vcs.Git
	log     *log.Logger

	// Force refreshes the checkout regardless of the update heuristic.
	Force bool

	cacheDir string
	stats    map[string]float64
}

// NewMacroGitSource builds the source. git may be nil when no git support
// is available, which forces the zip snapshot path.
func NewMacroGitSource(opts config.Options, fetcher transport.Fetcher, git *vcs.Git, logger *log.Logger) *MacroGitSource {
	return &MacroGitSource{
		opts:     opts,
		fetcher:  fetcher,
		git:      git,
		log:      logger,
		cacheDir: filepath.Join(opts.CacheDir, "Macros"),
	}
}

func (s *MacroGitSource) Name() string { return "macro git mirror" }

func (s *MacroGitSource) Run(ctx context.Context, found FoundFunc) error {
	s.fetchUpdateStats(ctx)
	if cancelled(ctx) {
		return nil
	}
	var updateErr error
	if s.ShouldUpdate() {
		if s.git.Available() {
			updateErr = s.updateWithGit()
		} else {
			s.updateWithZip(ctx)
		}
	}
	if err := s.scanForMacros(ctx, found); err != nil {
		return err
	}
	return updateErr
}

// fetchUpdateStats pulls the flat name-to-timestamp macro feed. The feed is
// optional; on failure the update heuristic falls back to elapsed time.
func (s *MacroGitSource) fetchUpdateStats(ctx context.Context) {
	if s.opts.MacroUpdateStatsURL == "" {
		return
	}
	data, err := s.fetcher.Get(ctx, s.opts.MacroUpdateStatsURL)
	if err != nil {
		s.log.Debug("macro update stats unavailable", "error", err)
		return
	}
	if len(data) > maxStatsBytes {
		s.log.Warn("macro update stats feed too large, ignoring", "bytes", len(data))
		return
	}
	var stats map[string]float64
	if err := json.Unmarshal(data, &stats); err != nil {
		s.log.Warn("cannot parse macro update stats", "error", err)
		return
	}
	s.stats = stats
}

// ShouldUpdate decides whether the local mirror is refreshed this run. A
// forced run, a usable git tool or a missing checkout always refresh. With
// a stats feed, refresh only when the feed's newest timestamp postdates the
// marker file. Without one, refresh when the rounded number of days since
// the last refresh reaches the configured frequency.
func (s *MacroGitSource) ShouldUpdate() bool {
	if s.Force || s.git.Available() {
		return true
	}
	info, err := os.Stat(filepath.Join(s.cacheDir, updateMarker))
	if err != nil {
		return true
	}
	if len(s.stats) > 0 {
		var latest float64
		for _, ts := range s.stats {
			if ts > latest {
				latest = ts
			}
		}
		return unixTime(latest).After(info.ModTime())
	}
	days := time.Since(info.ModTime()).Hours() / 24
	return math.Round(days) >= float64(s.opts.MacroUpdateFrequencyDays)
}

// updateWithGit refreshes the checkout in place. A failed refresh gets one
// retry from scratch: delete the checkout and clone again. A second failure
// is reported to the caller; whatever survives on disk is still scanned.
func (s *MacroGitSource) updateWithGit() error {
	err := s.refreshCheckout()
	if err == nil {
		return nil
	}
	s.log.Warn("macro mirror refresh failed, recloning", "error", err)
	if err := os.RemoveAll(s.cacheDir); err != nil {
		return fmt.Errorf("cannot remove macro mirror %s: %w", s.cacheDir, err)
	}
	if err := s.git.Clone(s.opts.MacroGitURL, s.opts.MacroGitBranch, s.cacheDir); err != nil {
		return fmt.Errorf("macro mirror reclone failed: %w", err)
	}
	return nil
}

func (s *MacroGitSource) refreshCheckout() error {
	if _, err := os.Stat(s.cacheDir); err != nil {
		return s.git.Clone(s.opts.MacroGitURL, s.opts.MacroGitBranch, s.cacheDir)
	}
	if !vcs.IsRepo(s.cacheDir) {
		// A prior zip-snapshot run left a bare tree; graft git onto it.
		return s.git.Repair(s.opts.MacroGitURL, s.cacheDir)
	}
	return s.git.Update(s.cacheDir)
}

// updateWithZip replaces the checkout with an extracted branch snapshot.
func (s *MacroGitSource) updateWithZip(ctx context.Context) {
	_, name := CleanGitURL(s.opts.MacroGitURL)
	url := SnapshotZipURL(s.opts.MacroGitURL, s.opts.MacroGitBranch, name)
	data, err := s.fetcher.Get(ctx, url)
	if err != nil {
		s.log.Warn("macro snapshot download failed", "url", url, "error", err)
		return
	}
	if err := os.RemoveAll(s.cacheDir); err != nil {
		s.log.Error("cannot clear macro mirror", "dir", s.cacheDir, "error", err)
		return
	}
	if err := archive.ExtractRepoSnapshot(data, s.cacheDir, s.opts.MacroGitBranch); err != nil {
		s.log.Error("cannot extract macro snapshot", "error", err)
	}
}

// scanForMacros walks the checkout and emits one addon per macro file,
// skipping anything under a .git directory.
func (s *MacroGitSource) scanForMacros(ctx context.Context, found FoundFunc) error {
	return filepath.WalkDir(s.cacheDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if cancelled(ctx) {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".FCMacro") {
			return nil
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		m := addon.NewMacro(name)
		m.OnGit = true
		if err := m.FillFromFile(path); err != nil {
			s.log.Warn("cannot read macro file", "path", path, "error", err)
			return nil
		}
		a := addon.FromMacro(m)
		a.URL = s.opts.MacroGitURL
		a.Branch = s.opts.MacroGitBranch
		if ts, ok := s.stats[name]; ok {
			a.LastUpdated = unixTime(ts)
		}
		found(a)
		return nil
	})
}
