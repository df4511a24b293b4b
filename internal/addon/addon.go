package addon

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Kind classifies what an addon installs as. The zero value is KindPackage.
type Kind int

const (
	KindPackage Kind = iota
	KindWorkbench
	KindMacro
)

func (k Kind) String() string {
	switch k {
	case KindPackage:
		return "package"
	case KindWorkbench:
		return "workbench"
	case KindMacro:
		return "macro"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Status is the locally-detected installation state of an addon.
type Status int

const (
	StatusNotInstalled Status = iota
	StatusUnchecked
	StatusUpdateAvailable
	StatusNoUpdateAvailable
	StatusCannotCheck
)

func (s Status) String() string {
	switch s {
	case StatusNotInstalled:
		return "not installed"
	case StatusUnchecked:
		return "installed, update status unchecked"
	case StatusUpdateAvailable:
		return "update available"
	case StatusNoUpdateAvailable:
		return "up to date"
	case StatusCannotCheck:
		return "cannot check for updates"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Addon is one installable unit discovered by a data source. A source creates
// the bare shell as soon as name and origin are known; metadata, dependency
// sets and icon information are filled in later, possibly from concurrent
// fetch callbacks.
type Addon struct {
	Name   string
	URL    string
	Branch string
	Kind   Kind

	// Macro is set only when Kind == KindMacro.
	Macro *Macro

	// Metadata is nil until a package.xml has been fetched and parsed.
	Metadata *Metadata

	Status           Status
	InstalledVersion string
	UpdatedAt        time.Time
	LastUpdated      time.Time

	IconFile string

	// Dependency sets, union-accumulated across metadata files. Guarded by mu
	// because metadata fetches for the same addon can complete concurrently.
	mu             sync.Mutex
	requires       map[string]bool
	pythonRequires map[string]bool
	pythonOptional map[string]bool
}

// New creates a bare addon shell. Branch may be empty for local-only entries.
func New(name, url, branch string, kind Kind) *Addon {
	return &Addon{
		Name:           name,
		URL:            url,
		Branch:         branch,
		Kind:           kind,
		requires:       make(map[string]bool),
		pythonRequires: make(map[string]bool),
		pythonOptional: make(map[string]bool),
	}
}

// FromMacro wraps a macro in a macro-kind addon shell.
func FromMacro(m *Macro) *Addon {
	a := New(m.Name, "", "", KindMacro)
	a.Macro = m
	return a
}

// SetMetadata attaches a parsed package descriptor. A package.xml makes the
// addon a package by definition.
func (a *Addon) SetMetadata(md *Metadata) {
	a.Metadata = md
	a.Kind = KindPackage
}

// AddRequires records required workbench names.
func (a *Addon) AddRequires(names ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, n := range names {
		a.requires[n] = true
	}
}

// AddPythonRequires records required python packages.
func (a *Addon) AddPythonRequires(names ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, n := range names {
		a.pythonRequires[n] = true
	}
}

// AddPythonOptional records optional python packages.
func (a *Addon) AddPythonOptional(names ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, n := range names {
		a.pythonOptional[n] = true
	}
}

// Requires returns a copy of the required-workbench set.
func (a *Addon) Requires() map[string]bool { return a.copySet(a.requires) }

// PythonRequires returns a copy of the required-python-package set.
func (a *Addon) PythonRequires() map[string]bool { return a.copySet(a.pythonRequires) }

// PythonOptional returns a copy of the optional-python-package set.
func (a *Addon) PythonOptional() map[string]bool { return a.copySet(a.pythonOptional) }

func (a *Addon) copySet(set map[string]bool) map[string]bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]bool, len(set))
	for k := range set {
		out[k] = true
	}
	return out
}

// BestIconRelativePath returns the repo-relative path of the best icon we know
// about: the package icon if one is declared, otherwise the icon of the first
// workbench the package contains.
func (a *Addon) BestIconRelativePath() string {
	if a.Metadata == nil {
		return ""
	}
	if a.Metadata.Icon != "" {
		return a.Metadata.Icon
	}
	for _, wb := range a.Metadata.Workbenches {
		if wb.Icon == "" {
			continue
		}
		subdir := wb.Subdirectory
		if subdir == "" {
			subdir = wb.Name
		}
		return strings.TrimSuffix(subdir, "/") + "/" + wb.Icon
	}
	return ""
}

// ContainsWorkbench reports whether the addon is, or declares, a workbench.
func (a *Addon) ContainsWorkbench() bool {
	switch a.Kind {
	case KindWorkbench:
		return true
	case KindPackage:
		return a.Metadata != nil && len(a.Metadata.Workbenches) > 0
	case KindMacro:
		return false
	}
	return false
}

// VerifyURLAndBranch reconciles the remotely-discovered origin with the one
// recorded in an installed package.xml, preferring the installed values when
// they disagree (the user may have installed from a fork or another branch).
func (a *Addon) VerifyURLAndBranch(installedURL, installedBranch string) {
	if installedURL != "" && installedURL != a.URL {
		a.URL = installedURL
	}
	if installedBranch != "" && installedBranch != a.Branch {
		a.Branch = installedBranch
	}
}
