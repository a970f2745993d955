// Package theme holds the shared colors and styles of the terminal UI.
package theme

import "github.com/charmbracelet/lipgloss"

// HN orange and depth colors for comment nesting.
var (
	Orange = lipgloss.Color("#FF6600")

	// DepthColors cycles through these for nested comment bars.
	DepthColors = []lipgloss.Color{
		"#828282", // gray
		"#00BFFF", // deep sky blue
		"#32CD32", // lime green
		"#FFD700", // gold
	}

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1)

	MetaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#828282"))

	HeaderMetaStyle = MetaStyle.Padding(0, 1)

	AuthorStyle = lipgloss.NewStyle().
			Foreground(Orange).
			Bold(true)

	OPBadgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(Orange).
			Bold(true)

	SelectedStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#333333"))

	DeletedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")).
			Italic(true)

	FailedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#444444"))

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// Bar returns the nesting bar of a row at depth.
func Bar(depth int, selected bool) string {
	c := DepthColors[depth%len(DepthColors)]
	if selected {
		c = Orange
	}
	return lipgloss.NewStyle().Foreground(c).Render("│")
}

// Status bar segments.
var (
	BarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#333333")).
			Foreground(lipgloss.Color("#FFFFFF"))

	BadgeStyle = lipgloss.NewStyle().
			Background(Orange).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 1)

	SegmentStyle = BarStyle.
			Foreground(lipgloss.Color("#AAAAAA")).
			Padding(0, 1)

	UserStyle = SegmentStyle.Foreground(lipgloss.Color("#00FF00"))

	AlertStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#8B0000")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 1)
)

// Composer text.
var (
	QuoteStyle = MetaStyle.Italic(true)
	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
)
