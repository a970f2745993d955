package threadview

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fragmede/threadview/internal/api"
	"github.com/fragmede/threadview/internal/thread"
	"github.com/fragmede/threadview/internal/ui/messages"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// board serves comment lists keyed by target and records requests.
type board struct {
	mu    sync.Mutex
	lists map[thread.ID][]thread.Comment
	reqs  []thread.FetchRequest
}

func newBoard() *board {
	return &board{lists: make(map[thread.ID][]thread.Comment)}
}

func (b *board) FetchPage(_ context.Context, req thread.FetchRequest) (thread.FetchResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reqs = append(b.reqs, req)
	all := b.lists[req.Target]
	start := (req.Page - 1) * req.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + req.PageSize
	if end > len(all) {
		end = len(all)
	}
	return thread.FetchResult{
		Items:      append([]thread.Comment(nil), all[start:end]...),
		HasMore:    end < len(all),
		TotalCount: len(all),
		PageSize:   req.PageSize,
	}, nil
}

func (b *board) sawOrdering(o thread.Ordering) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.reqs {
		if r.Ordering == o {
			return true
		}
	}
	return false
}

type fakeMutator struct {
	b       *board
	deleted []thread.ID
}

func (f *fakeMutator) AddComment(_ context.Context, target thread.ID, text string) (thread.ID, error) {
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	c := thread.Comment{ID: "new", Parent: target, Author: "me", Text: text, CreatedAt: time.Now()}
	f.b.lists[target] = append([]thread.Comment{c}, f.b.lists[target]...)
	return c.ID, nil
}

func (f *fakeMutator) ReplyComment(context.Context, thread.ID, string) (thread.ID, error) {
	return "", fmt.Errorf("replies are closed")
}

func (f *fakeMutator) DeleteComment(_ context.Context, id thread.ID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func roots(n int) []thread.Comment {
	out := make([]thread.Comment, n)
	for i := range out {
		out[i] = thread.Comment{
			ID:        thread.ID(fmt.Sprintf("c%d", i)),
			Parent:    "story",
			Author:    fmt.Sprintf("user%d", i),
			Text:      fmt.Sprintf("comment number %d", i),
			CreatedAt: time.Now().Add(-time.Hour),
		}
	}
	return out
}

func replies(root thread.ID, n int) []thread.Comment {
	out := make([]thread.Comment, n)
	for i := range out {
		out[i] = thread.Comment{
			ID:        thread.ID(fmt.Sprintf("%s-r%d", root, i)),
			Parent:    root,
			Author:    "replier",
			Text:      fmt.Sprintf("reply %d", i),
			RepliedTo: "user0",
			CreatedAt: time.Now(),
		}
	}
	return out
}

func newModel(t *testing.T, b *board, mut thread.Mutator, username string) (Model, tea.Cmd) {
	t.Helper()
	sched := NewScheduler(context.Background())
	t.Cleanup(sched.Close)
	surface := NewSurface()
	th, err := thread.New(thread.Options{
		Target:          "story",
		Fetcher:         b,
		Mutator:         mut,
		Scheduler:       sched,
		Surface:         surface,
		RootPolicy:      thread.Policy{PageSize: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		ReplyPolicy:     thread.Policy{PageSize: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Padding:         2,
		SettleDelay:     time.Millisecond,
		DisableBlending: true,
	})
	require.NoError(t, err)
	header := &api.Item{ID: 1, Type: "story", Title: "A story", By: "user1", Score: 10}
	m := New(th, sched, surface, header, username)
	init := m.Init()
	size := m.SetSize(80, 40)
	return m, tea.Batch(init, size)
}

// drive runs cmd to completion, feeding loader continuations back into
// the model. Every other message is returned.
func drive(t *testing.T, m Model, cmd tea.Cmd) (Model, []tea.Msg) {
	t.Helper()
	var out []tea.Msg
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 10000, "model did not settle")
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case TaskMsg:
			var next tea.Cmd
			m, next = m.Update(msg)
			queue = append(queue, next)
		case nil:
		default:
			out = append(out, msg)
		}
	}
	return m, out
}

func press(t *testing.T, m Model, k string) (Model, []tea.Msg) {
	t.Helper()
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	m, cmd := m.Update(msg)
	return drive(t, m, cmd)
}

func TestScheduler_FlushRunsWorkAndContinuation(t *testing.T) {
	s := NewScheduler(context.Background())
	defer s.Close()

	var ran []string
	s.Go(func(ctx context.Context) func() {
		ran = append(ran, "work")
		return func() { ran = append(ran, "continue") }
	})
	s.Emit(messages.StatusMsg{Text: "hi"})

	cmd := s.Flush()
	require.NotNil(t, cmd)
	assert.Nil(t, s.Flush(), "flush drains the queue")

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	require.Len(t, batch, 2)

	task, ok := batch[0]().(TaskMsg)
	require.True(t, ok)
	assert.Equal(t, []string{"work"}, ran)
	task.Run()
	assert.Equal(t, []string{"work", "continue"}, ran)
	assert.Equal(t, messages.StatusMsg{Text: "hi"}, batch[1]())
}

func TestScheduler_CloseCancelsWork(t *testing.T) {
	s := NewScheduler(context.Background())
	var seen error
	s.Go(func(ctx context.Context) func() {
		seen = ctx.Err()
		return nil
	})
	s.Close()
	msg := s.Flush()()
	msg.(TaskMsg).Run()
	assert.ErrorIs(t, seen, context.Canceled)
}

func TestSurface_TracksPaintedRows(t *testing.T) {
	s := NewSurface()
	s.Resize(thread.RootList, 4)
	assert.Equal(t, 4, s.Len(thread.RootList))
	assert.Equal(t, 0, s.painted(thread.RootList))

	s.SetPlaceholder(thread.RootList, 0, thread.PlaceholderLoading)
	s.Materialize(thread.RootList, 1, thread.Comment{ID: "a"})
	assert.Equal(t, 2, s.painted(thread.RootList))
	c, ok := s.Comment(thread.RootList, 1)
	require.True(t, ok)
	assert.Equal(t, thread.ID("a"), c.ID)
	_, ok = s.Comment(thread.RootList, 0)
	assert.False(t, ok)

	s.Resize("a", 3)
	assert.True(t, s.Has("a"))
	s.Resize("a", 0)
	assert.False(t, s.Has("a"))
	s.Resize(thread.RootList, 0)
	assert.True(t, s.Has(thread.RootList))
	assert.Equal(t, 0, s.Len(thread.RootList))

	s.Select("a", 1)
	pos, ok := s.takeSelection()
	require.True(t, ok)
	assert.Equal(t, thread.Position{List: "a", Index: 1}, pos)
	_, ok = s.takeSelection()
	assert.False(t, ok)
}

func TestFlatten_InsertsReplyListsUnderTheirRoot(t *testing.T) {
	s := NewSurface()
	s.Resize(thread.RootList, 3)
	s.Materialize(thread.RootList, 0, thread.Comment{ID: "a", ReplyCount: 3})
	s.Materialize(thread.RootList, 1, thread.Comment{ID: "b"})
	s.Resize("a", 3)
	s.Materialize("a", 0, thread.Comment{ID: "a1"})
	s.Materialize("a", 1, thread.Comment{ID: "a2"})

	lines := Flatten(s, func(id thread.ID) bool { return id == "a" })
	require.Len(t, lines, 6)
	assert.Equal(t, Line{Kind: LineComment, List: thread.RootList, Index: 0}, lines[0])
	assert.Equal(t, Line{Kind: LineComment, List: "a", Index: 1, Root: "a", RootIndex: 0}, lines[2])
	assert.Equal(t, LineMore, lines[3].Kind)
	assert.Equal(t, 1, lines[2].Depth())
	assert.Equal(t, thread.RootList, lines[5].List, "unpainted root rows are still laid out")

	r := visibleRanges(lines, 2, 4)
	assert.Equal(t, [2]int{0, 1}, r[thread.RootList], "visible replies keep their root in range")
	assert.Equal(t, [2]int{1, 1}, r["a"])

	collapsed := append([]Line{lines[0]}, lines[4:]...)
	i, ok := relocate(collapsed, lines[2])
	assert.True(t, ok, "a dropped reply falls back to its root")
	assert.Equal(t, 0, i)
}

func TestModel_LoadsVisibleRootPages(t *testing.T) {
	b := newBoard()
	b.lists["story"] = roots(12)
	m, cmd := newModel(t, b, nil, "")
	m, _ = drive(t, m, cmd)

	assert.Equal(t, 12, m.th.Len(thread.RootList))
	assert.Equal(t, 12, m.th.Stats().Filled, "a 40-row viewport shows every root")
	view := m.View()
	assert.Contains(t, view, "A story")
	assert.Contains(t, view, "user0")
	assert.Contains(t, view, "comment number 0")

	m, _ = press(t, m, "j")
	pos, ok := m.th.Selected()
	require.True(t, ok)
	assert.Equal(t, thread.Position{List: thread.RootList, Index: 1}, pos)

	m, _ = press(t, m, "G")
	pos, _ = m.th.Selected()
	assert.Equal(t, 11, pos.Index)
}

func TestModel_ExpandsAndLoadsMoreReplies(t *testing.T) {
	b := newBoard()
	b.lists["story"] = roots(3)
	b.lists["story"][0].ReplyCount = 5
	b.lists["c0"] = replies("c0", 5)
	m, cmd := newModel(t, b, nil, "")
	m, _ = drive(t, m, cmd)

	m, _ = press(t, m, "enter")
	assert.True(t, m.th.Expanded("c0"))
	assert.Contains(t, m.View(), "reply 0")
	assert.Contains(t, m.View(), "→ user0")

	for i := 0; i < 3 && m.th.CanLoadMore("c0"); i++ {
		m, _ = press(t, m, "j")
		m, _ = press(t, m, "m")
	}
	assert.False(t, m.th.CanLoadMore("c0"))
	assert.Contains(t, m.View(), "reply 4")

	m, _ = press(t, m, "[")
	pos, _ := m.th.Selected()
	assert.Equal(t, thread.Position{List: thread.RootList, Index: 0}, pos)

	m, _ = press(t, m, "enter")
	assert.False(t, m.th.Expanded("c0"))
	assert.NotContains(t, m.View(), "reply 0")
}

func TestModel_ResortRequestsSecondaryOrdering(t *testing.T) {
	b := newBoard()
	b.lists["story"] = roots(4)
	m, cmd := newModel(t, b, nil, "")
	m, _ = drive(t, m, cmd)

	m, msgs := press(t, m, "s")
	assert.Equal(t, thread.Chronological, m.th.Ordering())
	assert.True(t, b.sawOrdering(thread.Chronological))
	assert.Contains(t, msgs, tea.Msg(messages.StatusMsg{Text: "Sorted by newest"}))
}

func TestModel_CommentSelectsNewComment(t *testing.T) {
	b := newBoard()
	b.lists["story"] = roots(3)
	mut := &fakeMutator{b: b}
	m, cmd := newModel(t, b, mut, "me")
	m, _ = drive(t, m, cmd)

	m, cmd = m.Update(messages.SubmitReplyMsg{Text: "first!"})
	m, msgs := drive(t, m, cmd)

	var done *messages.MutationDoneMsg
	for _, msg := range msgs {
		if d, ok := msg.(messages.MutationDoneMsg); ok {
			done = &d
		}
	}
	require.NotNil(t, done)
	assert.True(t, done.Result.OK())
	assert.Equal(t, 4, m.th.Len(thread.RootList))
	c, ok := m.selectedComment()
	require.True(t, ok)
	assert.Equal(t, thread.ID("new"), c.ID)

	m, cmd = m.Update(messages.SubmitReplyMsg{Parent: "c1", Text: "no"})
	_, msgs = drive(t, m, cmd)
	done = nil
	for _, msg := range msgs {
		if d, ok := msg.(messages.MutationDoneMsg); ok {
			done = &d
		}
	}
	require.NotNil(t, done)
	assert.False(t, done.Result.OK())
}

func TestModel_DeleteNeedsOwnCommentAndConfirmation(t *testing.T) {
	b := newBoard()
	b.lists["story"] = roots(2)
	b.lists["story"][1].Author = "me"
	mut := &fakeMutator{b: b}
	m, cmd := newModel(t, b, mut, "me")
	m, _ = drive(t, m, cmd)

	m, msgs := press(t, m, "D")
	assert.Contains(t, msgs, tea.Msg(messages.StatusMsg{Text: "Can only delete your own comments", IsError: true}))

	m, _ = press(t, m, "j")
	m, msgs = press(t, m, "D")
	assert.Contains(t, msgs, tea.Msg(messages.StatusMsg{Text: "Press D again to delete"}))
	assert.Empty(t, mut.deleted)
	_, _ = press(t, m, "D")
	assert.Equal(t, []thread.ID{"c1"}, mut.deleted)
}

func TestModel_TotalChangedGrowsRootList(t *testing.T) {
	b := newBoard()
	b.lists["story"] = roots(5)
	m, cmd := newModel(t, b, nil, "")
	m, _ = drive(t, m, cmd)

	b.mu.Lock()
	b.lists["story"] = roots(7)
	b.mu.Unlock()
	m, cmd = m.Update(messages.TotalChangedMsg{ID: "story", Count: 7})
	m, _ = drive(t, m, cmd)
	assert.Equal(t, 7, m.th.Len(thread.RootList))
	assert.Contains(t, m.View(), "comment number 6")
}
