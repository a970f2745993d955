// Package reply is the composer used for top-level comments and replies.
package reply

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fragmede/threadview/internal/render"
	"github.com/fragmede/threadview/internal/thread"
	"github.com/fragmede/threadview/internal/ui/messages"
	"github.com/fragmede/threadview/internal/ui/theme"
)

const (
	maxWidth   = 100
	minHeight  = 5
	quoteWidth = 76
)

var (
	submitKey = key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "submit"))
	cancelKey = key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel"))
)

// Model is the composer. An empty parent writes a top-level comment on the
// thread target.
type Model struct {
	input   textarea.Model
	parent  thread.ID
	author  string
	quote   string
	err     string
	pending bool
	width   int
	height  int
}

func New(open messages.OpenReplyMsg) Model {
	in := textarea.New()
	in.Placeholder = "Write your comment..."
	if open.Parent != "" {
		in.Placeholder = "Write your reply..."
	}
	in.SetWidth(80)
	in.SetHeight(10)
	in.Focus()
	return Model{
		input:  in,
		parent: open.Parent,
		author: open.ParentAuthor,
		quote:  render.Preview(open.Quote, quoteWidth),
	}
}

// Parent returns the comment being replied to, empty for a top-level
// comment.
func (m Model) Parent() thread.ID { return m.parent }

// Pending reports whether a submission is in flight.
func (m Model) Pending() bool { return m.pending }

func (m *Model) SetSize(w, h int) {
	m.width, m.height = w, h
	m.input.SetWidth(min(w-4, maxWidth))
	m.input.SetHeight(max(h-10, minHeight))
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, cancelKey):
			return m, func() tea.Msg { return messages.GoBackMsg{} }
		case key.Matches(msg, submitKey):
			return m.submit()
		}
	case messages.MutationDoneMsg:
		m.pending = false
		if !msg.Result.OK() {
			m.err = msg.Result.Message
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (Model, tea.Cmd) {
	if m.pending {
		return m, nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		m.err = "Reply cannot be empty"
		return m, nil
	}
	m.pending = true
	m.err = ""
	submit := messages.SubmitReplyMsg{Parent: m.parent, Text: text}
	return m, func() tea.Msg { return submit }
}

func (m Model) title() string {
	switch {
	case m.parent == "":
		return "Comment"
	case m.author != "":
		return "Reply to " + m.author
	default:
		return "Reply"
	}
}

func (m Model) View() string {
	rows := []string{theme.AuthorStyle.Render(m.title())}
	if m.quote != "" {
		rows = append(rows, theme.QuoteStyle.Render("> "+m.quote))
	}
	rows = append(rows, "", m.input.View(), "")
	if m.err != "" {
		rows = append(rows, theme.ErrorStyle.Render(m.err))
	}
	if m.pending {
		rows = append(rows, "Submitting...")
	} else {
		h := submitKey.Help()
		c := cancelKey.Help()
		rows = append(rows, theme.MetaStyle.Render(h.Key+" to "+h.Desc+" | "+c.Key+" to "+c.Desc))
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, lipgloss.JoinVertical(lipgloss.Left, rows...))
}
