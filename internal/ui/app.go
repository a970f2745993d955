package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"pkt.systems/pslog"

	"github.com/fragmede/threadview/internal/auth"
	"github.com/fragmede/threadview/internal/monitor"
	"github.com/fragmede/threadview/internal/thread"
	"github.com/fragmede/threadview/internal/ui/messages"
	"github.com/fragmede/threadview/internal/ui/reply"
	"github.com/fragmede/threadview/internal/ui/statusbar"
	"github.com/fragmede/threadview/internal/ui/theme"
	"github.com/fragmede/threadview/internal/ui/threadview"
)

// ViewType identifies the active view.
type ViewType int

const (
	ViewThread ViewType = iota
	ViewReply
	ViewHelp
)

// Options wires an App.
type Options struct {
	Thread threadview.Model
	// Session and Store are optional; without them the thread is read-only.
	Session *auth.Session
	Store   auth.Store
	// Monitor is optional.
	Monitor *monitor.Monitor
	Logger  pslog.Logger
}

// App is the root Bubble Tea model.
type App struct {
	// View state
	activeView    ViewType
	previousViews []ViewType

	// Child models
	threadView threadview.Model
	replyForm  reply.Model
	statusBar  statusbar.Model
	help       help.Model

	// Shared state
	session *auth.Session
	store   auth.Store
	monitor *monitor.Monitor
	watched map[thread.ID]bool
	log     pslog.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	// Dimensions
	width  int
	height int

	// For passing program reference to monitor
	program *tea.Program
}

// NewApp creates the root application model.
func NewApp(ctx context.Context, opts Options) *App {
	log := opts.Logger
	if log == nil {
		log = pslog.Ctx(ctx)
	}
	ctx, cancel := context.WithCancel(ctx)
	h := help.New()
	h.ShowAll = true
	return &App{
		activeView: ViewThread,
		threadView: opts.Thread,
		statusBar:  statusbar.New(),
		help:       h,
		session:    opts.Session,
		store:      opts.Store,
		monitor:    opts.Monitor,
		watched:    make(map[thread.ID]bool),
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetProgram stores the tea.Program reference for the background monitor.
func (a *App) SetProgram(p *tea.Program) {
	a.program = p
}

// Report forwards a monitor update to the program. It is safe to call from
// the monitor goroutine.
func (a *App) Report(u monitor.Update) {
	if a.program != nil {
		a.program.Send(messages.TotalChangedMsg{ID: u.ID, Count: u.Count})
	}
}

// Init starts the application.
func (a *App) Init() tea.Cmd {
	if a.monitor != nil {
		if h := a.threadView.Header(); h != nil {
			a.monitor.Watch(a.threadView.Thread().Target(), len(h.Kids()))
		}
		a.monitor.Start(a.ctx)
	}
	return tea.Batch(a.threadView.Init(), a.tryRestoreSession())
}

func (a *App) tryRestoreSession() tea.Cmd {
	session, store, ctx, log := a.session, a.store, a.ctx, a.log
	if session == nil || store == nil {
		return nil
	}
	return func() tea.Msg {
		ok, err := session.Load(ctx, store)
		if err != nil {
			log.Warn("session restore failed", "error", err)
		}
		if ok {
			return messages.SessionRestoredMsg{Username: session.Username}
		}
		return nil
	}
}

// Update handles all messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		contentHeight := msg.Height - 1 // Reserve 1 line for status bar.
		a.statusBar.SetSize(msg.Width)
		a.help.Width = msg.Width
		if a.activeView == ViewReply {
			a.replyForm.SetSize(msg.Width, contentHeight)
		}
		return a, a.threadView.SetSize(msg.Width, contentHeight)

	case tea.KeyMsg:
		if key.Matches(msg, Keys.ForceQuit) {
			return a, a.quit()
		}
		switch a.activeView {
		case ViewThread:
			switch {
			case key.Matches(msg, Keys.Quit):
				return a, a.quit()
			case key.Matches(msg, Keys.Help):
				a.pushView(ViewHelp)
				return a, nil
			}
		case ViewHelp:
			if key.Matches(msg, Keys.Quit, Keys.Back, Keys.Help) {
				a.goBack()
			}
			return a, nil
		}

	case messages.GoBackMsg:
		a.goBack()
		return a, nil

	case messages.OpenReplyMsg:
		if a.session == nil || !a.session.LoggedIn {
			a.statusBar.SetStatus("Login required: run threadview login", true)
			return a, nil
		}
		a.pushView(ViewReply)
		a.replyForm = reply.New(msg)
		a.replyForm.SetSize(a.width, a.height-1)
		return a, nil

	case messages.SessionRestoredMsg:
		a.statusBar.SetUser(msg.Username)
		a.threadView.SetUser(msg.Username)
		return a, nil

	case messages.MutationDoneMsg:
		if a.activeView == ViewReply {
			var cmd tea.Cmd
			a.replyForm, cmd = a.replyForm.Update(msg)
			cmds = append(cmds, cmd)
			if msg.Result.OK() {
				a.goBack()
			}
		}
		if msg.Result.OK() {
			a.statusBar.SetStatus(msg.Result.Message, false)
		} else {
			a.statusBar.SetStatus(msg.Result.Message, true)
		}
		a.afterThreadUpdate()
		return a, tea.Batch(cmds...)

	case messages.StatusMsg:
		a.statusBar.SetStatus(msg.Text, msg.IsError)
		return a, nil

	case threadview.TaskMsg, messages.TotalChangedMsg, messages.SubmitReplyMsg, messages.HeaderLoadedMsg:
		// Loader traffic goes to the thread whatever view is on top.
		var cmd tea.Cmd
		a.threadView, cmd = a.threadView.Update(msg)
		a.afterThreadUpdate()
		return a, cmd
	}

	// Route to active view.
	var cmd tea.Cmd
	switch a.activeView {
	case ViewThread:
		a.threadView, cmd = a.threadView.Update(msg)
		cmds = append(cmds, cmd)
		a.afterThreadUpdate()
	case ViewReply:
		a.replyForm, cmd = a.replyForm.Update(msg)
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

// afterThreadUpdate refreshes the status bar and keeps the monitor watching
// exactly the open reply lists.
func (a *App) afterThreadUpdate() {
	th := a.threadView.Thread()
	a.statusBar.SetStats(th.Stats())
	if a.monitor == nil {
		return
	}
	open := make(map[thread.ID]bool)
	for _, list := range th.Replies() {
		id := thread.ID(list)
		open[id] = true
		if !a.watched[id] {
			a.watched[id] = true
			a.monitor.Watch(id, th.Len(list))
		}
	}
	for id := range a.watched {
		if !open[id] {
			delete(a.watched, id)
			a.monitor.Unwatch(id)
		}
	}
}

func (a *App) quit() tea.Cmd {
	if a.monitor != nil {
		a.monitor.Stop()
	}
	a.threadView.Thread().Close()
	a.cancel()
	return tea.Quit
}

// View renders the application.
func (a *App) View() string {
	var content string
	switch a.activeView {
	case ViewThread:
		content = a.threadView.View()
	case ViewReply:
		content = a.replyForm.View()
	case ViewHelp:
		content = a.helpView()
	}

	return lipgloss.JoinVertical(lipgloss.Left, content, a.statusBar.View())
}

func (a *App) helpView() string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		theme.TitleStyle.Render("Keys"),
		"",
		a.help.View(threadview.Keys),
		"",
		a.help.View(Keys),
	)
	return lipgloss.Place(a.width, a.height-1, lipgloss.Center, lipgloss.Center, body)
}

func (a *App) pushView(v ViewType) {
	a.previousViews = append(a.previousViews, a.activeView)
	a.activeView = v
}

func (a *App) goBack() {
	if len(a.previousViews) > 0 {
		a.activeView = a.previousViews[len(a.previousViews)-1]
		a.previousViews = a.previousViews[:len(a.previousViews)-1]
	}
}
