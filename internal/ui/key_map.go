package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up     key.Binding
	down   key.Binding
	enter  key.Binding
	toggle key.Binding
	open   key.Binding
	reload key.Binding
	login  key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		toggle: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause/resume")),
		open:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open stream")),
		reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		login:  key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "login")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter},
		{k.toggle, k.open, k.reload},
		{k.login, k.quit},
	}
}
