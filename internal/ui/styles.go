// Package ui holds the lipgloss styles shared by the MindCheck screens.
package ui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorRed     = lipgloss.Color("#FF5F5F")
	ColorGreen   = lipgloss.Color("#5FD787")
	ColorYellow  = lipgloss.Color("#FFD75F")
	ColorTeal    = lipgloss.Color("#5FD7D7")
	ColorGray    = lipgloss.Color("#808080")
	ColorDimGray = lipgloss.Color("#4E4E4E")
	ColorWhite   = lipgloss.Color("#FFFFFF")
	ColorViolet  = lipgloss.Color("#AF87FF")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorTeal)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	// LiveDotStyle marks a held camera or an open microphone.
	LiveDotStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	IdleDotStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ReadyDotStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	InterimTextStyle = lipgloss.NewStyle().
				Foreground(ColorYellow)

	SectionTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorWhite)

	ResultLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorViolet)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorTeal).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	UserLineStyle = lipgloss.NewStyle().
			Foreground(ColorTeal)

	AssistantLineStyle = lipgloss.NewStyle().
				Foreground(ColorWhite)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorViolet)
)
