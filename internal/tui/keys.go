package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all dashboard key bindings with built-in help text.
type KeyMap struct {
	Quit      key.Binding
	ForceQuit key.Binding
	Help      key.Binding
	Escape    key.Binding

	NextPanel key.Binding
	PrevPanel key.Binding
	Up        key.Binding
	Down      key.Binding

	Pause        key.Binding
	IntervalUp   key.Binding
	IntervalDown key.Binding
	Routes       key.Binding
	Refresh      key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?", "h"),
			key.WithHelp("?/h", "help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		NextPanel: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next panel"),
		),
		PrevPanel: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev panel"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p/space", "pause"),
		),
		IntervalUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "slower refresh"),
		),
		IntervalDown: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "faster refresh"),
		),
		Routes: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "top routes"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "refresh now"),
		),
	}
}

// helpBindings lists the bindings shown in the help overlay, in order.
func (k KeyMap) helpBindings() []key.Binding {
	return []key.Binding{
		k.NextPanel, k.PrevPanel, k.Up, k.Down,
		k.Pause, k.IntervalUp, k.IntervalDown,
		k.Routes, k.Refresh, k.Escape, k.Help, k.Quit,
	}
}
