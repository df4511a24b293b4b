package icons

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/kestrelcad/addons/internal/addon"
)

// fetchMacroIcon resolves a macro's icon. Macros declare icons several
// ways: XPM data embedded in the macro itself, an absolute image URL, a
// path relative to where the code lives, or a link to a wiki File: page
// that only describes the image.
func (r *Resolver) fetchMacroIcon(ctx context.Context, a *addon.Addon) {
	m := a.Macro
	if m == nil {
		return
	}
	if m.XPM != "" {
		r.storeXPM(a, m.XPM)
		return
	}
	if m.Icon == "" {
		return
	}
	iconURL := m.Icon
	if !strings.HasPrefix(iconURL, "http://") && !strings.HasPrefix(iconURL, "https://") {
		iconURL = r.resolveRelativeIcon(m)
		if iconURL == "" {
			return
		}
	}
	ext := strings.ToLower(path.Ext(urlPath(iconURL)))
	if strings.Contains(iconURL, "File:") || !knownExtensions[ext] {
		// a wiki File: page describes the image rather than being one
		iconURL = r.imageFromFilePage(ctx, iconURL)
		if iconURL == "" {
			r.log.Debug("cannot resolve macro icon page", "macro", a.Name, "icon", m.Icon)
			return
		}
		if ext = strings.ToLower(path.Ext(urlPath(iconURL))); !knownExtensions[ext] {
			ext = ".png"
		}
	}
	r.fetchToCache(ctx, a, iconURL, ext)
}

// storeXPM materializes embedded XPM data as the macro's icon file.
func (r *Resolver) storeXPM(a *addon.Addon, xpm string) {
	if err := os.MkdirAll(r.iconDir, 0o755); err != nil {
		r.log.Warn("cannot create icon cache dir", "error", err)
		return
	}
	dest := filepath.Join(r.iconDir, a.Name+"_icon.xpm")
	if err := os.WriteFile(dest, []byte(xpm), 0o644); err != nil {
		r.log.Warn("cannot store xpm icon", "addon", a.Name, "error", err)
		return
	}
	a.IconFile = dest
}

// resolveRelativeIcon anchors a relative icon path next to the macro's raw
// code when that location is known, and at the wiki root otherwise.
func (r *Resolver) resolveRelativeIcon(m *addon.Macro) string {
	base := r.opts.WikiBaseURL
	if m.RawCodeURL != "" {
		if parsed, err := url.Parse(m.RawCodeURL); err == nil {
			parsed.Path = path.Dir(parsed.Path)
			base = parsed.String()
		}
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(m.Icon, "/")
}

// imageFromFilePage fetches a wiki File: description page and returns the
// URL of the full-size image it describes, or "" when none is found.
func (r *Resolver) imageFromFilePage(ctx context.Context, pageURL string) string {
	data, err := r.fetcher.Get(ctx, pageURL)
	if err != nil {
		r.log.Debug("cannot fetch icon description page", "url", pageURL, "error", err)
		return ""
	}
	src := fullImageSrc(data)
	if src == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// fullImageSrc finds the img src inside the page's fullImageLink container.
func fullImageSrc(page []byte) string {
	doc, err := html.Parse(strings.NewReader(string(page)))
	if err != nil {
		return ""
	}
	var (
		src  string
		walk func(n *html.Node, inLink bool)
	)
	walk = func(n *html.Node, inLink bool) {
		if src != "" {
			return
		}
		if n.Type == html.ElementNode {
			if n.Data == "div" && hasClass(n, "fullImageLink") {
				inLink = true
			}
			if inLink && n.Data == "img" {
				if v, ok := attr(n, "src"); ok {
					src = v
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inLink)
		}
	}
	walk(doc, false)
	return src
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// urlPath returns the path portion of a URL for extension checks, falling
// back to the raw string when it does not parse.
func urlPath(rawURL string) string {
	if parsed, err := url.Parse(rawURL); err == nil {
		return parsed.Path
	}
	return rawURL
}
