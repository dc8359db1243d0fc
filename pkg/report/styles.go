package report

import "github.com/charmbracelet/lipgloss"

// Verdict glyphs carry meaning without relying on color alone.
const (
	GlyphPassed  = "✓"
	GlyphFailed  = "✗"
	GlyphWarning = "⚠"
)

// Palette adapts to terminal capabilities via lipgloss.
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	passStyle = cellStyle.
			Foreground(colorGreen)

	failStyle = cellStyle.
			Foreground(colorRed).
			Bold(true)

	borderStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	summaryPass = lipgloss.NewStyle().
			Foreground(colorGreen)

	summaryFail = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorYellow)
)
