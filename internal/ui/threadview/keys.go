package threadview

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the thread view bindings.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding
	Toggle   key.Binding
	More     key.Binding
	Parent   key.Binding
	NextRoot key.Binding
	Sort     key.Binding
	Refresh  key.Binding
	Retry    key.Binding
	Reply    key.Binding
	Comment  key.Binding
	Delete   key.Binding
}

// Keys is the default key map.
var Keys = KeyMap{
	Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/up", "up")),
	Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/down", "down")),
	PageUp:   key.NewBinding(key.WithKeys("ctrl+u", "pgup"), key.WithHelp("ctrl+u", "page up")),
	PageDown: key.NewBinding(key.WithKeys("ctrl+d", "pgdown"), key.WithHelp("ctrl+d", "page down")),
	Home:     key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
	End:      key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
	Toggle:   key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("space", "replies")),
	More:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "more replies")),
	Parent:   key.NewBinding(key.WithKeys("[", "p"), key.WithHelp("[", "parent")),
	NextRoot: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next thread")),
	Sort:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "popular/newest")),
	Refresh:  key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reload")),
	Retry:    key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "retry page")),
	Reply:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reply")),
	Comment:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "comment")),
	Delete:   key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete")),
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.Toggle, k.More, k.Sort, k.Reply}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Home, k.End},
		{k.Toggle, k.More, k.Parent, k.NextRoot},
		{k.Sort, k.Refresh, k.Retry},
		{k.Reply, k.Comment, k.Delete},
	}
}
