package addon

import (
	"bufio"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Macro is a single-file scripted addon. Metadata lives in specially-named
// assignments in the source's header comments (__Comment__, __Author__ and
// friends), or on the macro's wiki page.
type Macro struct {
	Name string

	// Provenance. A macro can legitimately appear in both the git mirror and
	// on the wiki; the aggregator reconciles duplicates, not the macro.
	OnGit  bool
	OnWiki bool

	Code        string
	SrcFilename string

	Comment    string
	URL        string
	Version    string
	Author     string
	Date       string
	Icon       string
	XPM        string
	OtherFiles []string

	// Desc is the raw description block scraped from the macro's wiki page.
	Desc string

	// RawCodeURL is set when the wiki page links to an external raw-code host.
	RawCodeURL string
}

// NewMacro creates an empty macro record.
func NewMacro(name string) *Macro {
	return &Macro{Name: name}
}

// Filename is the on-disk name the macro installs as.
func (m *Macro) Filename() string {
	return m.Name + ".FCMacro"
}

// assignmentRegex matches a quoted string literal after an equals sign.
var assignmentRegex = regexp.MustCompile(`^\s*(['"])(.*)['"]\s*$`)

// assignedStringLiteral extracts the value from a line of the form
// name = "literal". Bare numeric literals are stringified; anything else
// reports no match.
func assignedStringLiteral(line string) (string, bool) {
	_, after, found := strings.Cut(line, "=")
	if !found {
		return "", false
	}
	if match := assignmentRegex.FindStringSubmatch(after); match != nil {
		return match[2], true
	}
	trimmed := strings.TrimSpace(after)
	if _, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return trimmed, true
	}
	return "", false
}

// FillFromFile reads a macro file and parses its header metadata.
func (m *Macro) FillFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m.SrcFilename = path
	m.FillFromCode(string(data))
	return nil
}

// FillFromCode parses metadata from macro source text. The code itself is
// stored so it can be written to disk on install. A version declared as
// __Version__ = __Date__ resolves to the declared date regardless of the
// order of the two assignments.
func (m *Macro) FillFromCode(code string) {
	m.Code = code
	versionFromDate := false
	scanner := bufio.NewScanner(strings.NewReader(code))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		lower := strings.ToLower(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(lower, "__comment__"):
			m.Comment = stringOr(line, m.Comment)
		case strings.HasPrefix(lower, "__web__"):
			m.URL = stringOr(line, m.URL)
		case strings.HasPrefix(lower, "__version__"):
			if strings.Contains(lower, "__date__") {
				versionFromDate = true
			} else {
				m.Version = stringOr(line, m.Version)
			}
		case strings.HasPrefix(lower, "__author__"):
			m.Author = stringOr(line, m.Author)
		case strings.HasPrefix(lower, "__date__"):
			m.Date = stringOr(line, m.Date)
		case strings.HasPrefix(lower, "__icon__"):
			m.Icon = stringOr(line, m.Icon)
		case strings.HasPrefix(lower, "__files__"):
			if files, ok := assignedStringLiteral(line); ok {
				m.OtherFiles = splitAndTrim(files)
			}
		}
	}
	if versionFromDate {
		m.Version = m.Date
	}
	m.XPM = extractXPM(code)
}

func stringOr(line, fallback string) string {
	if v, ok := assignedStringLiteral(line); ok {
		return v
	}
	return fallback
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// xpmRegex matches a triple-quoted __xpm__ assignment, including multi-line
// bitmap data.
var xpmRegex = regexp.MustCompile(`(?s)__xpm__\s*=\s*"""(.*?)"""`)

func extractXPM(code string) string {
	if match := xpmRegex.FindStringSubmatch(code); match != nil {
		return strings.Trim(match[1], "\n")
	}
	return ""
}
