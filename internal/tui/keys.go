package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the board's keyboard bindings.
type KeyMap struct {
	Left         key.Binding
	Right        key.Binding
	Up           key.Binding
	Down         key.Binding
	Grab         key.Binding
	Advance      key.Binding
	Select       key.Binding
	Detail       key.Binding
	ShowClosed   key.Binding
	ExpandClosed key.Binding
	Search       key.Binding
	Refresh      key.Binding
	Cancel       key.Binding
	Quit         key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "prev column"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "next column"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "prev card"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next card"),
		),
		Grab: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "grab/drop card"),
		),
		Advance: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "advance stage"),
		),
		Select: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "select"),
		),
		Detail: key.NewBinding(
			key.WithKeys("d", "tab"),
			key.WithHelp("d", "detail pane"),
		),
		ShowClosed: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "toggle closed"),
		),
		ExpandClosed: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "expand closed"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
