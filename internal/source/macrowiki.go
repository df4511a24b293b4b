package source

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/kestrelcad/addons/internal/addon"
	"github.com/kestrelcad/addons/internal/config"
	"github.com/kestrelcad/addons/internal/transport"
)

// macroLinkRegex pulls macro page titles out of the wiki index page.
var macroLinkRegex = regexp.MustCompile(`title="(Macro.*?)"`)

// wikiWorkers bounds concurrent macro page downloads.
const wikiWorkers = 8

// MacroWikiSource discovers macros listed on the community wiki index page.
// With DownloadMacros set it also fetches each macro's wiki page and code up
// front; otherwise it emits bare shells to be filled on demand.
type MacroWikiSource struct {
	opts    config.Options
	fetcher transport.Fetcher
	log     *log.Logger

	blocked map[string]bool
}

func NewMacroWikiSource(opts config.Options, fetcher transport.Fetcher, logger *log.Logger) *MacroWikiSource {
	blocked := make(map[string]bool, len(opts.BlockedMacros))
	for _, name := range opts.BlockedMacros {
		blocked[name] = true
	}
	return &MacroWikiSource{opts: opts, fetcher: fetcher, log: logger, blocked: blocked}
}

func (s *MacroWikiSource) Name() string { return "macro wiki" }

func (s *MacroWikiSource) Run(ctx context.Context, found FoundFunc) error {
	data, err := s.fetcher.Get(ctx, s.opts.MacroWikiURL)
	if err != nil {
		s.log.Warn("macro wiki index unreachable", "url", s.opts.MacroWikiURL, "error", err)
		return nil
	}
	macros := s.collectMacros(string(data))
	if s.opts.DownloadMacros {
		s.downloadAll(ctx, macros)
	}
	for _, m := range macros {
		if cancelled(ctx) {
			return nil
		}
		a := addon.FromMacro(m)
		a.URL = s.opts.MacroWikiURL
		found(a)
	}
	return nil
}

// collectMacros extracts macro names from the index page. Translated pages
// and recipe collections are not macros; duplicates keep their first
// position; entries on the block list are dropped.
func (s *MacroWikiSource) collectMacros(page string) []*addon.Macro {
	var (
		macros []*addon.Macro
		seen   = make(map[string]bool)
	)
	for _, match := range macroLinkRegex.FindAllStringSubmatch(page, -1) {
		title := match[1]
		lower := strings.ToLower(title)
		if strings.Contains(lower, "translated") || strings.Contains(lower, "recipes") {
			continue
		}
		name := strings.TrimPrefix(html.UnescapeString(title), "Macro ")
		if seen[name] {
			continue
		}
		seen[name] = true
		if s.blocked[name] {
			s.log.Debug("skipping blocked wiki entry", "name", name)
			continue
		}
		m := addon.NewMacro(name)
		m.OnWiki = true
		macros = append(macros, m)
	}
	return macros
}

// downloadAll fetches every macro's wiki page, and its code when the page
// links a raw source URL, using a bounded worker pool.
func (s *MacroWikiSource) downloadAll(ctx context.Context, macros []*addon.Macro) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, wikiWorkers)
	for _, m := range macros {
		if cancelled(ctx) {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(m *addon.Macro) {
			defer wg.Done()
			defer func() { <-sem }()
			s.download(ctx, m)
		}(m)
	}
	wg.Wait()
}

func (s *MacroWikiSource) download(ctx context.Context, m *addon.Macro) {
	page, err := s.fetcher.Get(ctx, WikiPageURL(s.opts.WikiBaseURL, m.Name))
	if err != nil {
		s.log.Warn("cannot fetch macro wiki page", "macro", m.Name, "error", err)
		return
	}
	m.ParseWikiPage(string(page))
	if m.RawCodeURL == "" {
		// code, if any, was already taken from the page's <pre> blocks
		return
	}
	code, err := s.fetcher.Get(ctx, m.RawCodeURL)
	if err != nil {
		s.log.Warn("cannot fetch macro code", "macro", m.Name, "url", m.RawCodeURL, "error", err)
		return
	}
	m.Code = string(code)
	m.FillFromCode(m.Code)
}

// WikiPageURL builds a macro's wiki page URL. Spaces become underscores in
// page names; ampersands and plus signs must be percent-encoded.
func WikiPageURL(baseURL, macroName string) string {
	name := strings.NewReplacer(" ", "_", "&", "%26", "+", "%2B").Replace(macroName)
	return fmt.Sprintf("%s/Macro_%s", strings.TrimSuffix(baseURL, "/"), name)
}
