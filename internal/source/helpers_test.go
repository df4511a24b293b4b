package source

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/kestrelcad/addons/internal/addon"
	"github.com/kestrelcad/addons/internal/config"
)

// fakeFetcher serves canned responses by URL and counts every request.
// URLs without a canned response behave like a 404.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string][]byte
	calls     map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string][]byte),
		calls:     make(map[string]int),
	}
}

func (f *fakeFetcher) serve(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = []byte(body)
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) Get(_ context.Context, rawURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[rawURL]++
	data, ok := f.responses[rawURL]
	if !ok {
		return nil, fmt.Errorf("not found: %s", rawURL)
	}
	return data, nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

// testOptions roots every directory in a temp dir and clears the remote
// endpoints so nothing is fetched unless a test serves it.
func testOptions(root string) config.Options {
	opts := config.Default()
	opts.CacheDir = root + "/cache"
	opts.ModDir = root + "/mod"
	opts.MacroDir = root + "/macro"
	opts.SubmoduleIndexURL = "https://index.test/.gitmodules"
	opts.RemoteCacheURL = ""
	opts.UpdateStatsURL = ""
	opts.AddonFlagsURL = ""
	opts.MacroUpdateStatsURL = ""
	opts.MacroWikiURL = "https://wiki.test/Macros_recipes"
	opts.WikiBaseURL = "https://wiki.test"
	opts.IconCacheURL = ""
	return opts
}

// collect gathers everything a source reports.
func collect(dst *[]*addon.Addon) FoundFunc {
	return func(a *addon.Addon) { *dst = append(*dst, a) }
}
