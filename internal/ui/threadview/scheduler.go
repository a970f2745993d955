package threadview

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TaskMsg carries a loader continuation back to the tea event loop.
type TaskMsg struct {
	fn func()
}

// Run executes the continuation.
func (m TaskMsg) Run() {
	if m.fn != nil {
		m.fn()
	}
}

// Scheduler implements thread.Scheduler with tea commands: fetch work runs
// in a command goroutine and its continuation returns to Update as a
// TaskMsg. It must only be used from the tea event loop.
type Scheduler struct {
	ctx     context.Context
	cancel  context.CancelFunc
	pending []tea.Cmd
}

// NewScheduler returns a scheduler whose work is cancelled by Close or ctx.
func NewScheduler(ctx context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{ctx: ctx, cancel: cancel}
}

// Go implements thread.Scheduler.
func (s *Scheduler) Go(work func(ctx context.Context) func()) {
	ctx := s.ctx
	s.pending = append(s.pending, func() tea.Msg {
		return TaskMsg{fn: work(ctx)}
	})
}

// After implements thread.Scheduler.
func (s *Scheduler) After(d time.Duration, fn func()) {
	s.pending = append(s.pending, tea.Tick(d, func(time.Time) tea.Msg {
		return TaskMsg{fn: fn}
	}))
}

// Emit queues msg for delivery on the next Flush.
func (s *Scheduler) Emit(msg tea.Msg) {
	s.pending = append(s.pending, func() tea.Msg { return msg })
}

// Flush returns every queued command as one batch.
func (s *Scheduler) Flush() tea.Cmd {
	if len(s.pending) == 0 {
		return nil
	}
	cmds := s.pending
	s.pending = nil
	if len(cmds) == 1 {
		return cmds[0]
	}
	return tea.Batch(cmds...)
}

// Close cancels in-flight work.
func (s *Scheduler) Close() { s.cancel() }
