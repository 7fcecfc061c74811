package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	focus    key.Binding
	next     key.Binding
	previous key.Binding
	relayout key.Binding
	reset    key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		focus: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("1-9", "focus slot"),
		),
		next: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next"),
		),
		previous: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift-tab", "previous"),
		),
		relayout: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "relayout"),
		),
		reset: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "reset"),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) bindings() []key.Binding {
	return []key.Binding{k.focus, k.next, k.previous, k.relayout, k.reset, k.quit}
}
