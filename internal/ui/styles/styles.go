package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/kestrelcad/addons/internal/addon"
)

// Color palette - coherent with charmbracelet style
var (
	Primary = lipgloss.Color("#7D56F4") // Purple (charmbracelet brand)
	Success = lipgloss.Color("#50FA7B") // Green
	Warning = lipgloss.Color("#FFB86C") // Orange
	Error   = lipgloss.Color("#FF5555") // Red
	Muted   = lipgloss.Color("#6272A4") // Muted blue-gray
	Text    = lipgloss.Color("#F8F8F2") // Light text
)

// Base styles
var (
	// Title style for headers
	Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFDF5")).
		Background(Primary).
		Padding(0, 1).
		Bold(true)

	// Muted text
	MutedText = lipgloss.NewStyle().
			Foreground(Muted)

	// Success text
	SuccessText = lipgloss.NewStyle().
			Foreground(Success)

	// Error text
	ErrorText = lipgloss.NewStyle().
			Foreground(Error)
)

// Symbols
var (
	CheckMark = lipgloss.NewStyle().Foreground(Success).SetString("✓")
	CrossMark = lipgloss.NewStyle().Foreground(Error).SetString("✗")
)

// Catalog list styles
var (
	AddonName = lipgloss.NewStyle().
			Foreground(Text).
			Bold(true)

	KindBadge = lipgloss.NewStyle().
			Foreground(Primary)

	StatusInstalled = lipgloss.NewStyle().
			Foreground(Success)

	StatusUpdate = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	StatusAbsent = lipgloss.NewStyle().
			Foreground(Muted)
)

// FormatStatus returns a styled install-state indicator for the catalog
// listing.
func FormatStatus(status addon.Status) string {
	switch status {
	case addon.StatusNotInstalled:
		return StatusAbsent.Render("not installed")
	case addon.StatusUpdateAvailable:
		return StatusUpdate.Render("↑ update")
	case addon.StatusNoUpdateAvailable:
		return StatusInstalled.Render("up to date")
	case addon.StatusCannotCheck:
		return StatusAbsent.Render("installed")
	default:
		return StatusInstalled.Render("installed")
	}
}

// FormatSuccess formats a success message
func FormatSuccess(msg string) string {
	return CheckMark.String() + " " + SuccessText.Render(msg)
}

// FormatError formats an error message
func FormatError(msg string) string {
	return CrossMark.String() + " " + ErrorText.Render(msg)
}
