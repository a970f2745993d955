// Package statusbar renders the bottom line: ordering, loader progress,
// transient messages and the session user.
package statusbar

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fragmede/threadview/internal/thread"
	"github.com/fragmede/threadview/internal/ui/theme"
)

type Model struct {
	width    int
	stats    thread.Stats
	username string
	message  string
	alert    bool
}

func New() Model { return Model{} }

func (m *Model) SetSize(w int) { m.width = w }

// SetStats records the loader snapshot to display.
func (m *Model) SetStats(s thread.Stats) { m.stats = s }

func (m *Model) SetUser(username string) { m.username = username }

// SetStatus shows text until the next call. Alerts render in red.
func (m *Model) SetStatus(text string, alert bool) {
	m.message = text
	m.alert = alert
}

// Progress summarizes loader state, e.g. "120/340 · loading 2 · 1 failed".
func Progress(s thread.Stats) string {
	parts := []string{fmt.Sprintf("%d/%d", s.Filled, s.Total)}
	if s.LoadingPages > 0 {
		parts = append(parts, fmt.Sprintf("loading %d", s.LoadingPages))
	}
	if s.FailedPages > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.FailedPages))
	}
	if s.Blending {
		parts = append(parts, "+newest")
	}
	if s.Replies > 0 {
		parts = append(parts, fmt.Sprintf("%d open", s.Replies))
	}
	return strings.Join(parts, " · ")
}

func (m Model) View() string {
	left := theme.BadgeStyle.Render(m.stats.Ordering.String()) +
		theme.SegmentStyle.Render(Progress(m.stats))

	var right []string
	switch {
	case m.message == "":
	case m.alert:
		right = append(right, theme.AlertStyle.Render(m.message))
	default:
		right = append(right, theme.SegmentStyle.Render(m.message))
	}
	if m.username != "" {
		right = append(right, theme.UserStyle.Render(m.username))
	} else {
		right = append(right, theme.SegmentStyle.Render("logged out"))
	}
	r := strings.Join(right, "")

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(r), 0)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, theme.BarStyle.Width(gap).Render(""), r)
}
