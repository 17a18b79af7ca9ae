package main

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
	Enter    key.Binding
	Back     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Rescan   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Enter:    key.NewBinding(key.WithKeys("right", "l", "enter"), key.WithHelp("→/l", "open")),
		Back:     key.NewBinding(key.WithKeys("left", "h", "backspace"), key.WithHelp("←/h", "back")),
		Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		PageUp:   key.NewBinding(key.WithKeys("ctrl+u", "ctrl+b", "pgup"), key.WithHelp("^u", "page up")),
		PageDown: key.NewBinding(key.WithKeys("ctrl+d", "ctrl+f", "pgdown"), key.WithHelp("^d", "page down")),
		Rescan:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
	}
}

func (k keyMap) help() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Back, k.Top, k.Bottom, k.Rescan, k.Quit}
}
