package terminal

import "github.com/charmbracelet/lipgloss"

var (
	// Kind colors: indigo for user, green for system, red for error, slate for bot.
	colorUser   = lipgloss.AdaptiveColor{Light: "#4f46e5", Dark: "#818cf8"}
	colorSystem = lipgloss.AdaptiveColor{Light: "#15803d", Dark: "#4ade80"}
	colorError  = lipgloss.AdaptiveColor{Light: "#b91c1c", Dark: "#f87171"}
	colorBot    = lipgloss.AdaptiveColor{Light: "#334155", Dark: "#cbd5e1"}

	colorBright = lipgloss.AdaptiveColor{Light: "#0f172a", Dark: "#f1f5f9"}
	colorDim    = lipgloss.AdaptiveColor{Light: "#94a3b8", Dark: "#64748b"}
)

var (
	styleUserBadge   = lipgloss.NewStyle().Foreground(colorUser).Bold(true)
	styleSystemBadge = lipgloss.NewStyle().Foreground(colorSystem).Bold(true)
	styleErrorBadge  = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleBotBadge    = lipgloss.NewStyle().Foreground(colorBot).Bold(true)

	styleErrorText = lipgloss.NewStyle().Foreground(colorError)
	styleTitle     = lipgloss.NewStyle().Foreground(colorBright).Bold(true)
	styleMeta      = lipgloss.NewStyle().Foreground(colorDim)
	styleHint      = lipgloss.NewStyle().Foreground(colorDim).Italic(true)

	styleHeader = lipgloss.NewStyle().Foreground(colorBright).Bold(true).Padding(0, 1)
	styleCell   = lipgloss.NewStyle().Padding(0, 1)
	styleBorder = lipgloss.NewStyle().Foreground(colorDim)
)
