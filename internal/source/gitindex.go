package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/kestrelcad/addons/internal/addon"
	"github.com/kestrelcad/addons/internal/archive"
	"github.com/kestrelcad/addons/internal/config"
	"github.com/kestrelcad/addons/internal/transport"
)

// metadataFiles are fetched per addon, in this order.
var metadataFiles = []string{"package.xml", "metadata.txt", "requirements.txt"}

// GitIndexSource discovers addons from the git-submodule index plus any
// user-configured custom repositories. For each repository it fetches the
// three metadata files and persists them to the local metadata store. When
// an AsyncClient is provided the per-addon fetches run concurrently and are
// correlated back by request handle; otherwise they run inline.
type GitIndexSource struct {
	opts    config.Options
	fetcher transport.Fetcher
	async   *transport.AsyncClient
	log     *log.Logger

	// SkipCache disables the bulk metadata zip so every repository is
	// queried directly.
	SkipCache bool

	storeDir    string
	addons      []*addon.Addon
	cacheGood   bool
	cached      map[string]bool
	custom      map[string]bool
	updateStats map[string]map[string][]any
}

// metadataRequest correlates an in-flight async fetch with its target.
type metadataRequest struct {
	addon *addon.Addon
	file  string
}

func NewGitIndexSource(opts config.Options, fetcher transport.Fetcher, async *transport.AsyncClient, logger *log.Logger) *GitIndexSource {
	return &GitIndexSource{
		opts:     opts,
		fetcher:  fetcher,
		async:    async,
		log:      logger,
		storeDir: filepath.Join(opts.CacheDir, "PackageMetadata"),
	}
}

func (s *GitIndexSource) Name() string { return "git index" }

func (s *GitIndexSource) Run(ctx context.Context, found FoundFunc) error {
	s.addons = nil
	s.cacheGood = false
	s.cached = make(map[string]bool)
	s.custom = make(map[string]bool)
	s.updateStats = nil

	steps := []struct {
		name  string
		fn    func(context.Context) error
		fatal bool
	}{
		{"custom repositories", s.collectCustomRepos, false},
		{"update stats", s.fetchUpdateStats, false},
		{"remote metadata cache", s.fetchRemoteCache, false},
		{"submodule index", s.fetchSubmoduleIndex, true},
		{"addon metadata", s.fetchAddonMetadata, false},
	}
	for _, step := range steps {
		if cancelled(ctx) {
			return nil
		}
		if err := step.fn(ctx); err != nil {
			if step.fatal {
				return fmt.Errorf("%s: %w", step.name, err)
			}
			s.log.Warn("discovery step failed, continuing", "step", step.name, "error", err)
		}
	}

	s.applyUpdateStats()
	for _, a := range s.addons {
		if cancelled(ctx) {
			return nil
		}
		found(a)
	}
	return nil
}

// collectCustomRepos turns the configured "url [branch]" entries into addon
// shells. The name comes from the cleaned URL's last path segment.
func (s *GitIndexSource) collectCustomRepos(context.Context) error {
	for _, entry := range s.opts.CustomRepositories {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		url, name := CleanGitURL(fields[0])
		branch := "master"
		if len(fields) > 1 {
			branch = fields[1]
		}
		s.addons = append(s.addons, addon.New(name, url, branch, addon.KindWorkbench))
		s.custom[name] = true
	}
	return nil
}

// maxStatsBytes caps the update-stats feed; anything larger is assumed to
// be a server error page or a misconfigured endpoint.
const maxStatsBytes = 1024 * 1024

// fetchUpdateStats pulls the per-addon last-commit feed: a JSON object
// keyed by addon name, each value mapping a git ref to a
// [timestamp, hash] pair.
func (s *GitIndexSource) fetchUpdateStats(ctx context.Context) error {
	if s.opts.UpdateStatsURL == "" {
		return nil
	}
	data, err := s.fetcher.Get(ctx, s.opts.UpdateStatsURL)
	if err != nil {
		return err
	}
	if len(data) > maxStatsBytes {
		return fmt.Errorf("update stats feed too large (%d bytes)", len(data))
	}
	var stats map[string]map[string][]any
	if err := json.Unmarshal(data, &stats); err != nil {
		return err
	}
	s.updateStats = stats
	return nil
}

// cacheTopDir is the directory the bulk metadata zip wraps its per-addon
// entries in.
const cacheTopDir = "metadata"

// fetchRemoteCache downloads the bulk metadata zip, unpacks its
// metadata/<name>/package.xml entries into the local store, and turns each
// of them into a pre-populated addon so no per-addon fetch is needed.
func (s *GitIndexSource) fetchRemoteCache(ctx context.Context) error {
	if s.SkipCache || s.opts.RemoteCacheURL == "" {
		return nil
	}
	data, err := s.fetcher.Get(ctx, s.opts.RemoteCacheURL)
	if err != nil {
		return err
	}
	reader, err := archive.Open(data)
	if err != nil {
		return err
	}
	written, err := archive.ExtractTree(reader, cacheTopDir, s.storeDir)
	if err != nil {
		return err
	}
	for _, rel := range written {
		if cancelled(ctx) {
			return nil
		}
		name, file, ok := strings.Cut(filepath.ToSlash(rel), "/")
		if !ok || file != "package.xml" || s.cached[name] || s.custom[name] {
			continue
		}
		a := s.addonFromStore(name)
		if a == nil {
			continue
		}
		s.addons = append(s.addons, a)
		s.cached[name] = true
	}
	s.cacheGood = true
	return nil
}

// addonFromStore builds a fully populated addon from a stored package.xml,
// taking its origin from the descriptor's repository URL.
func (s *GitIndexSource) addonFromStore(name string) *addon.Addon {
	md, err := addon.LoadMetadataFile(filepath.Join(s.storeDir, name, "package.xml"))
	if err != nil {
		s.log.Warn("cached package.xml is damaged", "addon", name, "error", err)
		return nil
	}
	url, branch := md.RepositoryURL()
	url, _ = CleanGitURL(url)
	if branch == "" {
		branch = "master"
	}
	a := addon.New(name, url, branch, addon.KindWorkbench)
	a.SetMetadata(md)
	return a
}

func (s *GitIndexSource) fetchSubmoduleIndex(ctx context.Context) error {
	data, err := s.fetcher.Get(ctx, s.opts.SubmoduleIndexURL)
	if err != nil {
		return err
	}
	for _, sub := range ParseSubmodules(data) {
		if s.cached[sub.Name] {
			continue
		}
		s.addons = append(s.addons, addon.New(sub.Name, sub.URL, sub.Branch, addon.KindWorkbench))
	}
	return nil
}

// fetchAddonMetadata resolves the three metadata files per addon. When the
// bulk cache was extracted it already populated everything it indexed, so
// only the custom repositories are queried; when it failed, every addon is.
// file:// repositories are always read inline.
func (s *GitIndexSource) fetchAddonMetadata(ctx context.Context) error {
	pending := make(map[int64]metadataRequest)
	for _, a := range s.addons {
		if cancelled(ctx) {
			break
		}
		if s.cacheGood && !s.custom[a.Name] {
			continue
		}
		for _, file := range metadataFiles {
			if s.cacheGood && s.processFromStore(a, file) {
				continue
			}
			url := RawFileURL(a.URL, a.Branch, file)
			if s.async != nil && !strings.HasPrefix(a.URL, "file://") {
				handle := s.async.SubmitGet(ctx, url)
				pending[handle] = metadataRequest{addon: a, file: file}
				continue
			}
			data, err := s.fetcher.Get(ctx, url)
			if err != nil {
				s.log.Debug("no metadata file", "addon", a.Name, "file", file)
				continue
			}
			s.processMetadataFile(a, file, data)
		}
	}
	return s.drainMetadata(ctx, pending)
}

// drainMetadata waits for every outstanding async fetch, matching each
// completion to its request by handle. Cancellation aborts the remainder.
func (s *GitIndexSource) drainMetadata(ctx context.Context, pending map[int64]metadataRequest) error {
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			s.async.AbortAll()
			return nil
		case c := <-s.async.Completions():
			req, ok := pending[c.Handle]
			if !ok {
				s.log.Debug("completion for unknown request", "handle", c.Handle)
				continue
			}
			delete(pending, c.Handle)
			if c.Err != nil {
				s.log.Debug("no metadata file", "addon", req.addon.Name, "file", req.file)
				continue
			}
			s.processMetadataFile(req.addon, req.file, c.Data)
		}
	}
	return nil
}

// processFromStore applies a previously cached metadata file. It reports
// whether the file existed, so an absent file still falls through to the
// network fetch.
func (s *GitIndexSource) processFromStore(a *addon.Addon, file string) bool {
	data, err := os.ReadFile(filepath.Join(s.storeDir, a.Name, file))
	if err != nil {
		return false
	}
	s.applyMetadataFile(a, file, data)
	return true
}

// processMetadataFile applies a freshly fetched metadata file and persists
// it to the store for the next offline run.
func (s *GitIndexSource) processMetadataFile(a *addon.Addon, file string, data []byte) {
	s.applyMetadataFile(a, file, data)
	dir := filepath.Join(s.storeDir, a.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.log.Warn("cannot create metadata store dir", "addon", a.Name, "error", err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, file), data, 0o644); err != nil {
		s.log.Warn("cannot persist metadata file", "addon", a.Name, "file", file, "error", err)
	}
}

func (s *GitIndexSource) applyMetadataFile(a *addon.Addon, file string, data []byte) {
	switch file {
	case "package.xml":
		md, err := addon.ParseMetadata(data)
		if err != nil {
			s.log.Warn("invalid package.xml", "addon", a.Name, "error", err)
			return
		}
		a.SetMetadata(md)
	case "metadata.txt":
		if !utf8.Valid(data) {
			s.log.Warn("metadata.txt is not valid UTF-8, skipping", "addon", a.Name)
			return
		}
		ProcessMetadataTxt(a, data)
	case "requirements.txt":
		if !utf8.Valid(data) {
			s.log.Warn("requirements.txt is not valid UTF-8, skipping", "addon", a.Name)
			return
		}
		ProcessRequirementsTxt(a, data)
	}
}

// applyUpdateStats stamps each addon with the feed's last-commit time for
// its tracking ref, when the feed has one.
func (s *GitIndexSource) applyUpdateStats() {
	if s.updateStats == nil {
		return
	}
	for _, a := range s.addons {
		refs, ok := s.updateStats[a.Name]
		if !ok {
			continue
		}
		entry, ok := refs["refs/remotes/origin/"+a.Branch]
		if !ok || len(entry) == 0 {
			continue
		}
		if ts, ok := entry[0].(float64); ok {
			a.LastUpdated = unixTime(ts)
		}
	}
}
