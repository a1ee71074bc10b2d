package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/dqc/internal/api"
)

// Colors
var (
	PrimaryColor   = lipgloss.Color("39")  // Blue
	SecondaryColor = lipgloss.Color("212") // Pink
	AccentColor    = lipgloss.Color("76")  // Green
	ErrorColor     = lipgloss.Color("196") // Red
	WarningColor   = lipgloss.Color("214") // Orange
	MutedColor     = lipgloss.Color("240") // Gray
	TextColor      = lipgloss.Color("252") // Light gray
	BgColor        = lipgloss.Color("235") // Dark gray
)

// Styles
var (
	// Sidebar styles
	SidebarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(MutedColor).
			Padding(0, 1)

	SidebarTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(PrimaryColor).
				Padding(0, 1).
				MarginBottom(1)

	ScopeItemStyle = lipgloss.NewStyle().
			Padding(0, 1)

	ScopeItemSelectedStyle = lipgloss.NewStyle().
				Background(PrimaryColor).
				Foreground(lipgloss.Color("0")).
				Padding(0, 1)

	ScopeItemActiveStyle = lipgloss.NewStyle().
				Foreground(AccentColor).
				Bold(true).
				Padding(0, 1)

	// Document list styles
	DocListStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(MutedColor).
			Padding(0, 1)

	DocItemStyle = lipgloss.NewStyle().
			Padding(0, 1)

	DocItemSelectedStyle = lipgloss.NewStyle().
				Background(PrimaryColor).
				Foreground(lipgloss.Color("0")).
				Padding(0, 1)

	// Status badge styles keyed by ingestion state
	StatusUploadingStyle = lipgloss.NewStyle().
				Foreground(WarningColor)

	StatusProcessingStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor)

	StatusCompletedStyle = lipgloss.NewStyle().
				Foreground(AccentColor)

	StatusFailedStyle = lipgloss.NewStyle().
				Foreground(ErrorColor).
				Bold(true)

	// Chat view styles
	ChatViewStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(MutedColor).
			Padding(0, 1)

	UserMessageStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor).
				Bold(true)

	AssistantMessageStyle = lipgloss.NewStyle().
				Foreground(AccentColor)

	ErrorMessageStyle = lipgloss.NewStyle().
				Foreground(ErrorColor)

	SourceStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	ToolCallStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)

	// Input styles
	InputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(0, 1)

	InputFocusedStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(AccentColor).
				Padding(0, 1)

	// Status bar styles
	StatusBarStyle = lipgloss.NewStyle().
			Background(BgColor).
			Foreground(TextColor).
			Padding(0, 1)

	StatusModeStyle = lipgloss.NewStyle().
			Background(PrimaryColor).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1).
			MarginRight(1)

	StatusAgentModeStyle = lipgloss.NewStyle().
				Background(SecondaryColor).
				Foreground(lipgloss.Color("0")).
				Padding(0, 1).
				MarginRight(1)

	StatusRunningStyle = lipgloss.NewStyle().
				Background(AccentColor).
				Foreground(lipgloss.Color("0")).
				Padding(0, 1)

	StatusErrorStyle = lipgloss.NewStyle().
				Background(ErrorColor).
				Foreground(lipgloss.Color("0")).
				Padding(0, 1)

	// Help styles
	HelpStyle = lipgloss.NewStyle().
			Foreground(MutedColor)
)

// statusBadge renders a short colored badge for a document status
func statusBadge(status api.DocumentStatus) string {
	switch status {
	case api.StatusUploading:
		return StatusUploadingStyle.Render("↑ uploading")
	case api.StatusProcessing:
		return StatusProcessingStyle.Render("… processing")
	case api.StatusCompleted:
		return StatusCompletedStyle.Render("✓ ready")
	case api.StatusFailed:
		return StatusFailedStyle.Render("✗ failed")
	default:
		return HelpStyle.Render(string(status))
	}
}
