package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the application-wide bindings. Thread bindings live in
// threadview.Keys.
type KeyMap struct {
	ForceQuit key.Binding
	Quit      key.Binding
	Back      key.Binding
	Help      key.Binding
}

var Keys = KeyMap{
	ForceQuit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
	Back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Back, k.Help}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit, k.ForceQuit, k.Back, k.Help}}
}
