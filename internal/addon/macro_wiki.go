package addon

import (
	"html"
	"regexp"
	"strings"
)

// Wiki page parsing for macros. Each macro has a page whose description table
// cell carries author/version/date text and a "ToolBar Icon" download link;
// some pages link to an external raw-code host instead of embedding the code
// in a <pre> block.

var (
	descriptionRegex = regexp.MustCompile(`(?s)<td class="ctEven left macro-description">(.*?)</td>`)
	toolbarIconRegex = regexp.MustCompile(`href="(.*?)">ToolBar Icon`)
	rawCodeURLRegex  = regexp.MustCompile(`rawcodeurl.*?href="(http.*?)"`)
	preBlockRegex    = regexp.MustCompile(`(?s)<pre>(.*?)</pre>`)
)

// ParseWikiPage extracts macro details from the macro's wiki page HTML. If
// the page links to an external raw-code location, RawCodeURL is set and the
// caller is expected to fetch the code separately; otherwise the largest
// <pre> block on the page is taken as the macro's code.
func (m *Macro) ParseWikiPage(pageData string) {
	if match := descriptionRegex.FindStringSubmatch(pageData); match != nil {
		m.Desc = strings.ReplaceAll(match[1], "\n", " ")
	} else {
		m.Desc = strings.ReplaceAll(pageData, "\n", " ")
	}
	m.parseWikiPageForIcon(m.Desc)
	if author, ok := m.ExtractItemFromDescription("Author: "); ok {
		m.Author = author
	}
	if version, ok := m.ExtractItemFromDescription("Macro version: "); ok {
		m.Version = version
	}
	if date, ok := m.ExtractItemFromDescription("Last modified: "); ok {
		m.Date = date
	}
	if match := rawCodeURLRegex.FindStringSubmatch(pageData); match != nil {
		m.RawCodeURL = match[1]
	} else {
		m.ReadCodeFromWiki(pageData)
	}
}

// parseWikiPageForIcon finds the "ToolBar Icon" download link in a page or
// description fragment. Absence is fine: not every macro declares one.
func (m *Macro) parseWikiPageForIcon(pageData string) {
	m.Icon = ""
	if match := toolbarIconRegex.FindStringSubmatch(pageData); match != nil {
		m.Icon = match[1]
	}
}

// ExtractItemFromDescription finds a labeled value ("Author: ", "Macro
// version: ") in the description text, taking everything up to the next tag.
func (m *Macro) ExtractItemFromDescription(label string) (string, bool) {
	idx := strings.Index(m.Desc, label)
	if idx < 0 {
		return "", false
	}
	rest := m.Desc[idx+len(label):]
	if end := strings.Index(rest, "<"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}

// ReadCodeFromWiki extracts macro code embedded on the wiki page itself. The
// page may hold several <pre> blocks (usage examples, snippets); the largest
// one is taken as the code. HTML entities are unescaped and non-breaking
// spaces replaced so the result is valid source text.
func (m *Macro) ReadCodeFromWiki(pageData string) {
	var largest string
	for _, match := range preBlockRegex.FindAllStringSubmatch(pageData, -1) {
		if len(match[1]) > len(largest) {
			largest = match[1]
		}
	}
	if largest == "" {
		return
	}
	code := html.UnescapeString(largest)
	m.Code = strings.ReplaceAll(code, " ", " ")
}
