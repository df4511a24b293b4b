package source

import (
	"regexp"
)

// Submodule is one entry parsed from a .gitmodules index file.
type Submodule struct {
	Name   string
	URL    string
	Branch string
}

var submoduleRegex = regexp.MustCompile(
	`(?m)\[submodule\s*"(?P<name>.*?)"\]\s*` +
		`path\s*=\s*(?P<path>.+?)\s*` +
		`url\s*=\s*(?P<url>\S+)\s*` +
		`(?:branch\s*=\s*(?P<branch>\S+)\s*)?`)

// ParseSubmodules extracts the submodule entries from a .gitmodules file.
// URLs are normalized with CleanGitURL, a missing branch defaults to
// "master", and when the same submodule name appears more than once the
// first occurrence wins.
func ParseSubmodules(data []byte) []Submodule {
	var (
		mods []Submodule
		seen = make(map[string]bool)
	)
	for _, match := range submoduleRegex.FindAllSubmatch(data, -1) {
		name := string(match[submoduleRegex.SubexpIndex("name")])
		if seen[name] {
			continue
		}
		seen[name] = true
		url, _ := CleanGitURL(string(match[submoduleRegex.SubexpIndex("url")]))
		branch := string(match[submoduleRegex.SubexpIndex("branch")])
		if branch == "" {
			branch = "master"
		}
		mods = append(mods, Submodule{Name: name, URL: url, Branch: branch})
	}
	return mods
}
