// Package icons resolves addon icons in two passes: a bulk server-side zip
// cache validated by SHA-1, then a direct per-addon fetch for whatever the
// cache did not cover.
package icons

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/kestrelcad/addons/internal/addon"
	"github.com/kestrelcad/addons/internal/archive"
	"github.com/kestrelcad/addons/internal/config"
	"github.com/kestrelcad/addons/internal/source"
	"github.com/kestrelcad/addons/internal/transport"
)

// ErrIconCache reports a failed bulk icon cache download.
var ErrIconCache = errors.New("icon cache download failed")

// hashFile records the SHA-1 of the last extracted icon cache zip.
const hashFile = "cache_hash.txt"

// knownExtensions are the image formats an icon file may use. Anything else
// is not fetched.
var knownExtensions = map[string]bool{
	".svg": true, ".png": true, ".jpg": true, ".xpm": true,
	".bmp": true, ".gif": true, ".webp": true,
}

// Resolver assigns a local icon file to each addon in a catalog.
type Resolver struct {
	opts    config.Options
	fetcher transport.Fetcher
	log     *log.Logger

	// Force refetches every icon even when the cache already has one.
	Force bool

	// Progress, when set, is called after each addon of the direct pass.
	Progress func(done, total int)

	iconDir string
}

func NewResolver(opts config.Options, fetcher transport.Fetcher, logger *log.Logger) *Resolver {
	return &Resolver{
		opts:    opts,
		fetcher: fetcher,
		log:     logger,
		iconDir: filepath.Join(opts.CacheDir, "Icons"),
	}
}

// Run executes both passes over the catalog and reports how many addons
// ended up with an icon. Only a failed cache zip download is fatal; every
// per-addon problem is logged and skipped.
func (r *Resolver) Run(ctx context.Context, addons []*addon.Addon) (int, error) {
	if err := r.updateCache(ctx); err != nil {
		return 0, err
	}
	return r.directPass(ctx, addons), nil
}

// updateCache refreshes the bulk icon cache. The server publishes the zip's
// SHA-1 next to it; when it matches the hash of the last extraction the
// download is skipped. An unreachable hash just forces the download, but a
// failed zip download is a hard error since the direct pass alone would
// hammer every addon host.
func (r *Resolver) updateCache(ctx context.Context) error {
	if r.opts.IconCacheURL == "" {
		return nil
	}
	remoteHash := r.remoteCacheHash(ctx)
	if remoteHash != "" && remoteHash == r.localCacheHash() {
		r.log.Debug("icon cache is current", "sha1", remoteHash)
		return nil
	}
	data, err := r.fetcher.Get(ctx, r.opts.IconCacheURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIconCache, err)
	}
	sum := sha1.Sum(data)
	gotHash := hex.EncodeToString(sum[:])
	if remoteHash != "" && gotHash != remoteHash {
		r.log.Warn("icon cache zip does not match its published hash",
			"want", remoteHash, "got", gotHash)
	}
	reader, err := archive.Open(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIconCache, err)
	}
	if err := archive.ExtractAll(reader, r.iconDir); err != nil {
		return fmt.Errorf("%w: %v", ErrIconCache, err)
	}
	if err := os.WriteFile(filepath.Join(r.iconDir, hashFile), []byte(gotHash), 0o644); err != nil {
		r.log.Warn("cannot record icon cache hash", "error", err)
	}
	return nil
}

func (r *Resolver) remoteCacheHash(ctx context.Context) string {
	data, err := r.fetcher.Get(ctx, r.opts.IconCacheURL+".sha1")
	if err != nil {
		r.log.Debug("icon cache hash unavailable", "error", err)
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (r *Resolver) localCacheHash() string {
	data, err := os.ReadFile(filepath.Join(r.iconDir, hashFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// directPass assigns an icon to each addon, preferring files already in the
// cache directory (indexed by name stem) and fetching directly otherwise.
func (r *Resolver) directPass(ctx context.Context, addons []*addon.Addon) int {
	cached := r.indexCache()
	resolved := 0
	for i, a := range addons {
		if cancelled(ctx) {
			break
		}
		if !r.Force && a.IconFile == "" {
			if path, ok := cached[a.Name]; ok {
				a.IconFile = path
			}
		}
		if a.IconFile == "" || r.Force {
			r.fetchIcon(ctx, a)
		}
		if a.IconFile != "" || a.Kind == addon.KindWorkbench {
			resolved++
		}
		if r.Progress != nil {
			r.Progress(i+1, len(addons))
		}
	}
	return resolved
}

// indexCache maps icon filename stems to full paths for every image in the
// cache directory.
func (r *Resolver) indexCache() map[string]string {
	index := make(map[string]string)
	_ = filepath.WalkDir(r.iconDir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if !knownExtensions[ext] {
			return nil
		}
		stem := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		if _, ok := index[stem]; !ok {
			index[stem] = p
		}
		return nil
	})
	return index
}

// fetchIcon fetches one addon's icon directly from its origin. Each kind
// declares its icon differently.
func (r *Resolver) fetchIcon(ctx context.Context, a *addon.Addon) {
	switch a.Kind {
	case addon.KindPackage:
		r.fetchPackageIcon(ctx, a)
	case addon.KindWorkbench:
		// workbench icons ship with the application, nothing to fetch
	case addon.KindMacro:
		r.fetchMacroIcon(ctx, a)
	}
}

func (r *Resolver) fetchPackageIcon(ctx context.Context, a *addon.Addon) {
	rel := a.BestIconRelativePath()
	if rel == "" {
		return
	}
	ext := strings.ToLower(path.Ext(rel))
	if !knownExtensions[ext] {
		r.log.Debug("icon has unsupported extension", "addon", a.Name, "icon", rel)
		return
	}
	r.fetchToCache(ctx, a, source.RawFileURL(a.URL, a.Branch, rel), ext)
}

// fetchToCache downloads an icon and stores it under the addon's name.
func (r *Resolver) fetchToCache(ctx context.Context, a *addon.Addon, url, ext string) {
	data, err := r.fetcher.Get(ctx, url)
	if err != nil {
		r.log.Debug("cannot fetch icon", "addon", a.Name, "url", url, "error", err)
		return
	}
	r.storeIcon(a, data, ext)
}

func (r *Resolver) storeIcon(a *addon.Addon, data []byte, ext string) {
	if err := os.MkdirAll(r.iconDir, 0o755); err != nil {
		r.log.Warn("cannot create icon cache dir", "error", err)
		return
	}
	dest := filepath.Join(r.iconDir, a.Name+ext)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		r.log.Warn("cannot store icon", "addon", a.Name, "error", err)
		return
	}
	a.IconFile = dest
}

func cancelled(ctx context.Context) bool {
	return ctx.Err() != nil
}
