package threadview

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fragmede/threadview/internal/api"
	"github.com/fragmede/threadview/internal/render"
	"github.com/fragmede/threadview/internal/thread"
	"github.com/fragmede/threadview/internal/ui/messages"
	"github.com/fragmede/threadview/internal/ui/theme"
)

const scrollStep = 3

type span struct {
	start int
	end   int
}

type body struct {
	width int
	lines []string
}

// Model is the comment thread view. It renders the Surface the loader
// paints and reports scrolling and selection back to the loader.
type Model struct {
	th       *thread.Thread
	sched    *Scheduler
	surface  *Surface
	header   *api.Item
	keys     KeyMap
	viewport viewport.Model
	now      func() time.Time

	lines   []Line
	offsets []span
	cursor  int
	bodies  map[thread.ID]body
	drawn   uint64

	reported  [2]int
	hasReport bool

	pendingDelete thread.ID
	username      string
	width         int
	height        int
}

// New creates a thread view over th. The surface and scheduler must be the
// ones th was built with.
func New(th *thread.Thread, sched *Scheduler, surface *Surface, header *api.Item, username string) Model {
	vp := viewport.New(0, 0)
	vp.SetContent("  Loading comments...")
	return Model{
		th:       th,
		sched:    sched,
		surface:  surface,
		header:   header,
		keys:     Keys,
		viewport: vp,
		now:      time.Now,
		bodies:   make(map[thread.ID]body),
		username: username,
	}
}

// Init opens the thread.
func (m Model) Init() tea.Cmd {
	if err := m.th.Open(); err != nil {
		return status(err.Error(), true)
	}
	return m.sched.Flush()
}

// Thread returns the loader behind the view.
func (m Model) Thread() *thread.Thread { return m.th }

// Header returns the thread target item, if loaded.
func (m Model) Header() *api.Item { return m.header }

// SetUser sets the logged-in username.
func (m *Model) SetUser(username string) { m.username = username }

// SetSize updates viewport dimensions.
func (m *Model) SetSize(w, h int) tea.Cmd {
	m.width = w
	m.height = h
	m.viewport.Width = w
	m.resizeViewport()
	m.bodies = make(map[thread.ID]body)
	m.rebuild()
	return m.settle()
}

func (m *Model) resizeViewport() {
	headerLines := lipgloss.Height(m.renderHeader())
	m.viewport.Height = m.height - headerLines
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case TaskMsg:
		msg.Run()

	case messages.HeaderLoadedMsg:
		if msg.Err == nil && msg.Item != nil {
			m.header = msg.Item
			m.resizeViewport()
		}

	case messages.TotalChangedMsg:
		list := thread.ListID(msg.ID)
		if msg.ID == m.th.Target() {
			list = thread.RootList
		}
		_ = m.th.SyncTotal(list, msg.Count)

	case messages.SubmitReplyMsg:
		done := m.done()
		if msg.Parent == "" {
			m.th.AddComment(msg.Text, done)
		} else {
			m.th.Reply(msg.Parent, msg.Text, done)
		}

	case tea.KeyMsg:
		cmd = m.handleKey(msg)

	default:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, tea.Batch(cmd, m.settle())
}

func (m *Model) done() func(thread.MutationResult) {
	sched := m.sched
	return func(r thread.MutationResult) {
		sched.Emit(messages.MutationDoneMsg{Result: r})
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if !key.Matches(msg, m.keys.Delete) {
		m.pendingDelete = ""
	}
	switch {
	case key.Matches(msg, m.keys.Down):
		if off, ok := m.currentSpan(); ok && off.end >= m.viewport.YOffset+m.viewport.Height {
			// Row extends below the viewport; scroll within it.
			m.viewport.SetYOffset(m.viewport.YOffset + scrollStep)
			return nil
		}
		m.moveTo(m.cursor + 1)
	case key.Matches(msg, m.keys.Up):
		if off, ok := m.currentSpan(); ok && off.start < m.viewport.YOffset {
			y := m.viewport.YOffset - scrollStep
			if y < off.start {
				y = off.start
			}
			m.viewport.SetYOffset(y)
			return nil
		}
		m.moveTo(m.cursor - 1)
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		m.moveTo(m.lineAt(m.viewport.YOffset))
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		m.moveTo(m.lineAt(m.viewport.YOffset))
	case key.Matches(msg, m.keys.Home):
		m.moveTo(0)
		m.viewport.GotoTop()
	case key.Matches(msg, m.keys.End):
		m.moveTo(len(m.lines) - 1)
		m.viewport.GotoBottom()
	case key.Matches(msg, m.keys.Toggle):
		return m.toggle()
	case key.Matches(msg, m.keys.More):
		if l, ok := m.current(); ok && !l.List.IsRoot() {
			_ = m.th.LoadMore(l.Root)
		}
	case key.Matches(msg, m.keys.Parent):
		if l, ok := m.current(); ok && !l.List.IsRoot() {
			if i, ok := find(m.lines, thread.Position{List: thread.RootList, Index: l.RootIndex}); ok {
				m.moveTo(i)
			}
		}
	case key.Matches(msg, m.keys.NextRoot):
		for i := m.cursor + 1; i < len(m.lines); i++ {
			if m.lines[i].List.IsRoot() {
				m.moveTo(i)
				break
			}
		}
	case key.Matches(msg, m.keys.Sort):
		next := thread.Chronological
		if m.th.Ordering() == thread.Chronological {
			next = thread.Popularity
		}
		if err := m.th.Resort(next); err != nil {
			return status(err.Error(), true)
		}
		return status("Sorted by "+next.String(), false)
	case key.Matches(msg, m.keys.Refresh):
		if err := m.th.Reload(); err != nil {
			return status(err.Error(), true)
		}
		return status("Reloading...", false)
	case key.Matches(msg, m.keys.Retry):
		return m.retry()
	case key.Matches(msg, m.keys.Reply):
		c, ok := m.selectedComment()
		if !ok || c.Deleted {
			return nil
		}
		return func() tea.Msg {
			return messages.OpenReplyMsg{Parent: c.ID, ParentAuthor: c.Author, Quote: c.Text}
		}
	case key.Matches(msg, m.keys.Comment):
		return func() tea.Msg { return messages.OpenReplyMsg{} }
	case key.Matches(msg, m.keys.Delete):
		return m.delete()
	}
	return nil
}

func (m *Model) toggle() tea.Cmd {
	l, ok := m.current()
	if !ok {
		return nil
	}
	if l.Kind == LineMore {
		_ = m.th.LoadMore(l.Root)
		return nil
	}
	if !l.List.IsRoot() {
		_ = m.th.Collapse(l.Root)
		return nil
	}
	c, ok := m.surface.Comment(l.List, l.Index)
	if !ok || c.ReplyCount == 0 {
		return nil
	}
	if m.th.Expanded(c.ID) {
		_ = m.th.Collapse(c.ID)
		return nil
	}
	if err := m.th.OnExpand(c.ID); err != nil {
		return status(err.Error(), true)
	}
	return nil
}

func (m *Model) retry() tea.Cmd {
	l, ok := m.current()
	if !ok {
		return nil
	}
	if l.Kind == LineMore {
		_ = m.th.LoadMore(l.Root)
		return nil
	}
	r := m.surface.row(l.List, l.Index)
	if r.state != rowPlaceholder || r.kind != thread.PlaceholderFailed {
		return nil
	}
	if err := m.th.OnRetryRequested(l.List, m.th.PageOf(l.List, l.Index)); err != nil {
		return status(err.Error(), true)
	}
	return nil
}

func (m *Model) delete() tea.Cmd {
	c, ok := m.selectedComment()
	if !ok || c.Deleted {
		return nil
	}
	if m.username == "" {
		return status("Login required to delete", true)
	}
	if c.Author != m.username {
		return status("Can only delete your own comments", true)
	}
	if m.pendingDelete != c.ID {
		m.pendingDelete = c.ID
		return status("Press D again to delete", false)
	}
	m.pendingDelete = ""
	m.th.Delete(c.ID, m.done())
	return status("Deleting...", false)
}

func status(text string, isError bool) tea.Cmd {
	return func() tea.Msg { return messages.StatusMsg{Text: text, IsError: isError} }
}

func (m *Model) current() (Line, bool) {
	if m.cursor < 0 || m.cursor >= len(m.lines) {
		return Line{}, false
	}
	return m.lines[m.cursor], true
}

func (m *Model) currentSpan() (span, bool) {
	if m.cursor < 0 || m.cursor >= len(m.offsets) {
		return span{}, false
	}
	return m.offsets[m.cursor], true
}

func (m *Model) selectedComment() (thread.Comment, bool) {
	l, ok := m.current()
	if !ok || l.Kind != LineComment {
		return thread.Comment{}, false
	}
	return m.surface.Comment(l.List, l.Index)
}

// moveTo moves the cursor to line i and tells the loader.
func (m *Model) moveTo(i int) {
	if len(m.lines) == 0 {
		return
	}
	if i < 0 {
		i = 0
	}
	if i >= len(m.lines) {
		i = len(m.lines) - 1
	}
	m.cursor = i
	if l := m.lines[i]; l.Kind == LineComment {
		_ = m.th.OnSelect(l.List, l.Index)
	}
	m.render()
	m.scrollToCursor()
}

// settle brings the view in line with the surface: it applies selections
// made by the loader, re-renders what changed and reports the visible root
// range until the loader stops repainting. It returns the queued loader
// work.
func (m *Model) settle() tea.Cmd {
	for i := 0; i < 4; i++ {
		if pos, ok := m.surface.takeSelection(); ok {
			m.rebuild()
			if j, ok := find(m.lines, pos); ok {
				m.cursor = j
				m.render()
				m.scrollToCursor()
			}
		}
		if m.surface.version != m.drawn {
			m.rebuild()
		}
		if !m.reportWindow() {
			break
		}
	}
	return m.sched.Flush()
}

// reportWindow sends the visible root range to the loader when it moved.
func (m *Model) reportWindow() bool {
	if len(m.offsets) == 0 || m.viewport.Height <= 0 {
		return false
	}
	first := m.lineAt(m.viewport.YOffset)
	last := m.lineAt(m.viewport.YOffset + m.viewport.Height - 1)
	r, ok := visibleRanges(m.lines, first, last)[thread.RootList]
	if !ok || (m.hasReport && r == m.reported) {
		return false
	}
	m.reported, m.hasReport = r, true
	_ = m.th.OnWindowChanged(thread.RootList, r[0], r[1])
	return true
}

// lineAt returns the line rendered at content row y.
func (m *Model) lineAt(y int) int {
	i := sort.Search(len(m.offsets), func(i int) bool { return m.offsets[i].end >= y })
	if i >= len(m.offsets) {
		i = len(m.offsets) - 1
	}
	return i
}

// rebuild re-flattens the surface, keeping the cursor on the same row.
func (m *Model) rebuild() {
	prev, had := m.current()
	m.lines = Flatten(m.surface, m.th.CanLoadMore)
	if had {
		if i, ok := relocate(m.lines, prev); ok {
			m.cursor = i
		}
	}
	if m.cursor >= len(m.lines) {
		m.cursor = len(m.lines) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.drawn = m.surface.version
	m.render()
}

func (m *Model) render() {
	if len(m.lines) == 0 {
		m.offsets = nil
		if m.th.ListPhase(thread.RootList) == thread.PhaseEmpty && m.th.Stats().LoadingPages > 0 {
			m.viewport.SetContent("  Loading comments...")
		} else {
			m.viewport.SetContent("  No comments yet.")
		}
		return
	}

	var sb strings.Builder
	m.offsets = make([]span, len(m.lines))
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	n := 0
	for i, l := range m.lines {
		start := n
		for _, s := range m.renderLine(l, i == m.cursor, width) {
			sb.WriteString(s)
			sb.WriteString("\n")
			n++
		}
		m.offsets[i] = span{start: start, end: n - 1}
	}
	m.viewport.SetContent(sb.String())
}

func (m *Model) renderLine(l Line, selected bool, width int) []string {
	depth := l.Depth()
	prefix := strings.Repeat(" ", depth*2) + theme.Bar(depth, selected) + " "
	var out []string
	emit := func(s string) {
		s = prefix + s
		if selected {
			s = theme.SelectedStyle.Render(s)
		}
		out = append(out, s)
	}

	if l.Kind == LineMore {
		left := m.th.Len(l.List) - m.surface.painted(l.List)
		label := "▸ more replies"
		if left > 0 {
			label = fmt.Sprintf("▸ %d more replies", left)
		}
		emit(theme.MetaStyle.Render(label + " (m)"))
		return append(out, "")
	}

	r := m.surface.row(l.List, l.Index)
	switch r.state {
	case rowUnset:
		emit(theme.DimStyle.Render("·"))
		return out
	case rowPlaceholder:
		if r.kind == thread.PlaceholderFailed {
			emit(theme.FailedStyle.Render("failed to load") + theme.DimStyle.Render("  R to retry"))
		} else {
			emit(theme.DimStyle.Render("loading..."))
		}
		return out
	}

	c := r.comment
	if c.Deleted {
		emit(theme.DeletedStyle.Render("[deleted]"))
		return append(out, "")
	}
	emit(m.commentHeader(l, c))
	for _, s := range m.body(c, width-depth*2-2) {
		emit(s)
	}
	return append(out, "")
}

func (m *Model) commentHeader(l Line, c thread.Comment) string {
	h := theme.AuthorStyle.Render(c.Author)
	h += " " + theme.MetaStyle.Render(render.TimeAgo(c.CreatedAt, m.now()))
	if m.header != nil && c.Author == m.header.By {
		h += " " + theme.OPBadgeStyle.Render(" OP ")
	}
	if !l.List.IsRoot() && c.RepliedTo != "" {
		h += " " + theme.MetaStyle.Render("→ "+c.RepliedTo)
	}
	if l.List.IsRoot() && c.ReplyCount > 0 {
		sign := "+"
		if m.th.Expanded(c.ID) {
			sign = "-"
		}
		h += " " + theme.MetaStyle.Render(fmt.Sprintf("[%s%d]", sign, c.ReplyCount))
	}
	return h
}

func (m *Model) body(c thread.Comment, width int) []string {
	if b, ok := m.bodies[c.ID]; ok && b.width == width {
		return b.lines
	}
	lines := render.Lines(c.Text, width)
	m.bodies[c.ID] = body{width: width, lines: lines}
	return lines
}

func (m *Model) scrollToCursor() {
	off, ok := m.currentSpan()
	if !ok {
		return
	}
	// Show the start of the selected row if it's not already visible.
	if off.start < m.viewport.YOffset || off.start >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(off.start)
	}
}

// View renders the thread view.
func (m Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), m.viewport.View())
}

func (m Model) renderHeader() string {
	var parts []string
	switch {
	case m.header == nil:
		parts = append(parts, theme.TitleStyle.Render(fmt.Sprintf("[item %s]", m.th.Target())))
	case m.header.Title != "":
		parts = append(parts, theme.TitleStyle.Render(m.header.Title))
		parts = append(parts, theme.HeaderMetaStyle.Render(fmt.Sprintf(
			"%d points | by %s | %s | %d comments",
			m.header.Score, m.header.By, render.TimeAgo(time.Unix(m.header.Time, 0), m.now()), m.header.Descendants,
		)))
		if m.header.URL != "" {
			if u, err := url.Parse(m.header.URL); err == nil {
				parts = append(parts, theme.HeaderMetaStyle.Render(u.Host))
			}
		}
	default:
		meta := fmt.Sprintf("%s by %s | %s", m.header.Type, m.header.By, render.TimeAgo(time.Unix(m.header.Time, 0), m.now()))
		if n := len(m.header.Kids()); n > 0 {
			meta += fmt.Sprintf(" | %d replies", n)
		}
		parts = append(parts, theme.HeaderMetaStyle.Render(meta))
		if m.header.Text != "" {
			parts = append(parts, theme.HeaderMetaStyle.Render(render.Preview(m.header.Text, m.width-4)))
		}
	}
	parts = append(parts, theme.SeparatorStyle.Render(strings.Repeat("─", m.width)))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
