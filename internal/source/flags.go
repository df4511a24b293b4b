package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// BlockStatus says whether and why an addon is excluded from the catalog.
type BlockStatus int

const (
	NotBlocked BlockStatus = iota
	BlockedObsolete
	BlockedPython2
	BlockedRejectList
)

func (s BlockStatus) String() string {
	switch s {
	case NotBlocked:
		return "not blocked"
	case BlockedObsolete:
		return "obsolete"
	case BlockedPython2:
		return "python2 only"
	case BlockedRejectList:
		return "reject list"
	default:
		return "unknown"
	}
}

var ErrBadFlags = errors.New("invalid addon flags data")

// AddonFlags holds the remote block lists plus versioned deprecations,
// already resolved against the running application version.
type AddonFlags struct {
	obsolete    map[string]bool
	macroReject map[string]bool
	addonReject map[string]bool
	python2     map[string]bool
}

// flagsFeed is the wire shape of the addon flags JSON document.
type flagsFeed struct {
	Obsolete struct {
		Addons []string `json:"Mod"`
	} `json:"obsolete"`
	Blacklisted struct {
		Addons []string `json:"Mod"`
		Macros []string `json:"Macro"`
	} `json:"blacklisted"`
	Py2Only struct {
		Addons []string `json:"Mod"`
	} `json:"py2only"`
	Deprecated []deprecation `json:"deprecated"`
}

type deprecation struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	AsOf string `json:"as_of"`
}

// NewAddonFlags returns empty flags that block nothing.
func NewAddonFlags() *AddonFlags {
	return &AddonFlags{
		obsolete:    make(map[string]bool),
		macroReject: make(map[string]bool),
		addonReject: make(map[string]bool),
		python2:     make(map[string]bool),
	}
}

// ParseAddonFlags decodes the remote flags feed and resolves each versioned
// deprecation against the given application version: entries dated at or
// before major.minor take effect, later ones are ignored. A deprecation
// without a kind, or with kind "mod", marks the addon obsolete; kind
// "macro" adds it to the macro reject list; anything else is logged and
// skipped.
func ParseAddonFlags(data []byte, major, minor int, logger *log.Logger) (*AddonFlags, error) {
	var feed flagsFeed
	if err := json.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFlags, err)
	}
	flags := NewAddonFlags()
	for _, name := range feed.Obsolete.Addons {
		flags.obsolete[name] = true
	}
	for _, name := range feed.Blacklisted.Addons {
		flags.addonReject[name] = true
	}
	for _, name := range feed.Blacklisted.Macros {
		flags.macroReject[name] = true
	}
	for _, name := range feed.Py2Only.Addons {
		flags.python2[name] = true
	}
	for _, dep := range feed.Deprecated {
		effective, err := versionReached(dep.AsOf, major, minor)
		if err != nil {
			logger.Warn("ignoring deprecation with bad as_of version",
				"addon", dep.Name, "as_of", dep.AsOf)
			continue
		}
		if !effective {
			continue
		}
		switch strings.ToLower(dep.Kind) {
		case "", "mod", "workbench":
			flags.obsolete[dep.Name] = true
		case "macro":
			flags.macroReject[dep.Name] = true
		default:
			logger.Warn("ignoring deprecation with unknown kind",
				"addon", dep.Name, "kind", dep.Kind)
		}
	}
	return flags, nil
}

// versionReached reports whether asOf ("major" or "major.minor", minor
// defaulting to 0) is at or before the given application version.
func versionReached(asOf string, major, minor int) (bool, error) {
	majorPart, minorPart, hasMinor := strings.Cut(asOf, ".")
	asMajor, err := strconv.Atoi(strings.TrimSpace(majorPart))
	if err != nil {
		return false, err
	}
	asMinor := 0
	if hasMinor {
		if asMinor, err = strconv.Atoi(strings.TrimSpace(minorPart)); err != nil {
			return false, err
		}
	}
	if asMajor != major {
		return asMajor < major, nil
	}
	return asMinor <= minor, nil
}

// Status returns the highest-priority reason the named addon is blocked.
// Obsolete outranks python2-only, which outranks the reject lists; the
// macro and non-macro reject lists only apply to the matching kind.
func (f *AddonFlags) Status(name string, isMacro bool) BlockStatus {
	if f == nil {
		return NotBlocked
	}
	switch {
	case f.obsolete[name]:
		return BlockedObsolete
	case f.python2[name]:
		return BlockedPython2
	case isMacro && f.macroReject[name]:
		return BlockedRejectList
	case !isMacro && f.addonReject[name]:
		return BlockedRejectList
	default:
		return NotBlocked
	}
}
