package tui

import "github.com/charmbracelet/lipgloss"

// One Dark Pro color palette
var (
	// Background colors
	ColorBgPrimary   = lipgloss.Color("#282C34")
	ColorBgHighlight = lipgloss.Color("#2C313C")

	// Foreground colors
	ColorFgPrimary = lipgloss.Color("#ABB2BF")
	ColorFgMuted   = lipgloss.Color("#636B78")
	ColorFgComment = lipgloss.Color("#5C6370")

	// Syntax colors
	ColorRed     = lipgloss.Color("#E06C75")
	ColorGreen   = lipgloss.Color("#98C379")
	ColorYellow  = lipgloss.Color("#E5C07B")
	ColorBlue    = lipgloss.Color("#61AFEF")
	ColorMagenta = lipgloss.Color("#C678DD")
	ColorCyan    = lipgloss.Color("#56B6C2")

	// UI colors
	ColorBorder = lipgloss.Color("#3F4451")
)

// Component styles
var (
	// Header style
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true).
			PaddingLeft(1)

	HeaderAgentStyle = lipgloss.NewStyle().
				Foreground(ColorFgMuted)

	// Transcript styles
	AssistantStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(ColorBlue).
			PaddingLeft(1).
			PaddingRight(1)

	SystemStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(ColorMagenta).
			PaddingLeft(1)

	SystemTextStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	UserInputStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(ColorGreen).
			PaddingLeft(1).
			MarginTop(1).
			MarginBottom(1)

	UserTextStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	// Form panel styles
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBlue).
			Padding(1, 2)

	PanelSubmittedStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorGreen).
				Padding(0, 2)

	PanelTitleStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	SelectedRowStyle = lipgloss.NewStyle().
				Background(ColorBgHighlight).
				Foreground(ColorFgPrimary).
				Bold(true)

	RowStyle = lipgloss.NewStyle().
			Foreground(ColorFgPrimary)

	FieldLabelStyle = lipgloss.NewStyle().
			Foreground(ColorFgMuted).
			Width(18)

	FocusedLabelStyle = lipgloss.NewStyle().
				Foreground(ColorYellow).
				Bold(true).
				Width(18)

	// Status bar styles
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(ColorFgMuted).
			PaddingLeft(1).
			PaddingRight(1)

	StatusRunningStyle = lipgloss.NewStyle().
				Foreground(ColorGreen).
				Bold(true)

	// Input styles
	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	InputPromptStyle = lipgloss.NewStyle().
				Foreground(ColorGreen)

	// Step status styles
	StepEnabledStyle = lipgloss.NewStyle().
				Foreground(ColorGreen)

	StepDisabledStyle = lipgloss.NewStyle().
				Foreground(ColorFgComment).
				Strikethrough(true)

	StepExecutingStyle = lipgloss.NewStyle().
				Foreground(ColorYellow)

	// Error styles
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	// Success styles
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	// Dimmed/info style for less important messages
	DimStyle = lipgloss.NewStyle().
			Foreground(ColorFgComment)
)
