package app

import (
	"github.com/Auto-Bike/frontend/internal/tui/views/help"
	"github.com/charmbracelet/bubbles/key"
)

// GlobalKeys work on every page.
type GlobalKeys struct {
	Quit      key.Binding
	Tab       key.Binding
	Help      key.Binding
	Log       key.Binding
	ReloadGPS key.Binding
	Escape    key.Binding
	Up        key.Binding
	Down      key.Binding
}

// ControlKeys drive the control panel.
type ControlKeys struct {
	Connect     key.Binding
	Disconnect  key.Binding
	Forward     key.Binding
	Backward    key.Binding
	Left        key.Binding
	Right       key.Binding
	Stop        key.Binding
	Send        key.Binding
	SelectPrev  key.Binding
	SelectNext  key.Binding
	SpeedUp     key.Binding
	SpeedDown   key.Binding
	SpeedUp10   key.Binding
	SpeedDown10 key.Binding
	Duration    key.Binding
}

// NavKeys drive the navigation page.
type NavKeys struct {
	Origin      key.Binding
	Destination key.Binding
	Pick        key.Binding
	UseCurrent  key.Binding
	ShowRoute   key.Binding
	Start       key.Binding
	Clear       key.Binding
	Center      key.Binding
	PanUp       key.Binding
	PanDown     key.Binding
	PanLeft     key.Binding
	PanRight    key.Binding
}

// KeyMap groups every binding.
type KeyMap struct {
	Global  GlobalKeys
	Control ControlKeys
	Nav     NavKeys
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Global: GlobalKeys{
			Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
			Tab:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch page")),
			Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "key reference")),
			Log:       key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "event log")),
			ReloadGPS: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload GPS polling")),
			Escape:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close overlay / cancel input")),
			Up:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "scroll log up")),
			Down:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "scroll log down")),
		},
		Control: ControlKeys{
			Connect:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "connect to bike")),
			Disconnect:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "disconnect (debug)")),
			Forward:     key.NewBinding(key.WithKeys("w", "up"), key.WithHelp("w/↑", "forward")),
			Backward:    key.NewBinding(key.WithKeys("s", "down"), key.WithHelp("s/↓", "backward")),
			Left:        key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "turn left")),
			Right:       key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "turn right")),
			Stop:        key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "stop")),
			Send:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send selected command")),
			SelectPrev:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "select previous command")),
			SelectNext:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "select next command")),
			SpeedUp:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "speed +5")),
			SpeedDown:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "speed -5")),
			SpeedUp10:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "speed +10")),
			SpeedDown10: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "speed -10")),
			Duration:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "cycle run time")),
		},
		Nav: NavKeys{
			Origin:      key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "set starting point")),
			Destination: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "set destination")),
			Pick:        key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "destination at map centre")),
			UseCurrent:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "start from current location")),
			ShowRoute:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "show route")),
			Start:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "start navigation")),
			Clear:       key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear route")),
			Center:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "centre on current location")),
			PanUp:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "pan north")),
			PanDown:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "pan south")),
			PanLeft:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "pan west")),
			PanRight:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "pan east")),
		},
	}
}

func section(title string, bindings ...key.Binding) help.Section {
	s := help.Section{Title: title}
	for _, b := range bindings {
		h := b.Help()
		s.Keys = append(s.Keys, [2]string{h.Key, h.Desc})
	}
	return s
}

// HelpSections lists the bindings for the help overlay.
func (k KeyMap) HelpSections() []help.Section {
	g, c, n := k.Global, k.Control, k.Nav
	return []help.Section{
		section("Everywhere", g.Tab, g.Help, g.Log, g.ReloadGPS, g.Escape, g.Quit),
		section("Control panel", c.Connect, c.Disconnect, c.Forward, c.Backward, c.Left, c.Right, c.Stop,
			c.Send, c.SelectPrev, c.SelectNext, c.SpeedUp, c.SpeedDown, c.SpeedUp10, c.SpeedDown10, c.Duration),
		section("Navigation", n.Origin, n.Destination, n.Pick, n.UseCurrent, n.ShowRoute, n.Start, n.Clear, n.Center,
			n.PanUp, n.PanDown, n.PanLeft, n.PanRight),
	}
}
