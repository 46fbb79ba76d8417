// Package control renders the bike control panel: speed, optional run time
// and the command buttons.
package control

import (
	"fmt"
	"strings"
	"time"

	"github.com/Auto-Bike/frontend/internal/client"
	"github.com/Auto-Bike/frontend/internal/session"
	"github.com/Auto-Bike/frontend/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

// Durations are the selectable run times in seconds; 0 omits the field.
var Durations = []int{0, 1, 2, 3, 5, 10}

// Model is the panel state. It never talks to the backend; the app reads
// Selected and Params when a command is fired.
type Model struct {
	Speed       int
	durationIdx int
	selected    int

	// Status is the session status display string.
	Status   string
	CanSend  bool
	Sending  bool
	LastErr  string
	LastResp string
	Width    int
}

// New returns a panel at the given default speed.
func New(speed int) Model {
	m := Model{Status: session.Disconnected.String()}
	m.SetSpeed(speed)
	return m
}

// SetSpeed clamps to 0..100.
func (m *Model) SetSpeed(v int) {
	m.Speed = max(session.MinSpeed, min(session.MaxSpeed, v))
}

func (m *Model) AdjustSpeed(delta int) { m.SetSpeed(m.Speed + delta) }

// CycleDuration moves to the next run time, wrapping to "none".
func (m *Model) CycleDuration() {
	m.durationIdx = (m.durationIdx + 1) % len(Durations)
}

// Duration is the selected run time.
func (m Model) Duration() time.Duration {
	return time.Duration(Durations[m.durationIdx]) * time.Second
}

func (m *Model) Next() { m.selected = (m.selected + 1) % len(client.Commands) }
func (m *Model) Prev() {
	m.selected = (m.selected - 1 + len(client.Commands)) % len(client.Commands)
}

// Select highlights cmd.
func (m *Model) Select(cmd client.Command) {
	for i, c := range client.Commands {
		if c == cmd {
			m.selected = i
			return
		}
	}
}

func (m Model) Selected() client.Command { return client.Commands[m.selected] }

// Params are the parameters for the next command.
func (m Model) Params() session.Params {
	return session.Params{Speed: m.Speed, Duration: m.Duration()}
}

// Disabled reports whether the buttons are inactive.
func (m Model) Disabled() bool {
	return m.Sending || !m.CanSend
}

// SetSession copies what the panel shows from a session snapshot.
func (m *Model) SetSession(st session.State) {
	m.Status = st.Status.String()
	m.Sending = st.Status == session.Sending
	m.CanSend = st.Status.CanSend()
	m.LastErr = st.LastError
}

const gaugeWidth = 20

func (m Model) gauge() string {
	filled := m.Speed * gaugeWidth / 100
	bar := lipgloss.NewStyle().Foreground(theme.SpeedColor(m.Speed)).Render(strings.Repeat("█", filled))
	rest := theme.StyleDimmed.Render(strings.Repeat("░", gaugeWidth-filled))
	return fmt.Sprintf("Speed %3d%%  %s%s", m.Speed, bar, rest)
}

func (m Model) buttons() string {
	var parts []string
	for i, c := range client.Commands {
		label := fmt.Sprintf(" %s %s ", theme.CommandGlyph(string(c)), strings.ToUpper(string(c)))
		style := lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(theme.ColorBorder)
		switch {
		case m.Disabled():
			style = style.Foreground(theme.ColorDimmed)
		case i == m.selected:
			style = style.Bold(true).Foreground(theme.ColorBright).BorderForeground(theme.ColorAccent)
		}
		parts = append(parts, style.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// View renders the panel.
func (m Model) View() string {
	dur := "none"
	if d := m.Duration(); d > 0 {
		dur = d.String()
	}

	status := lipgloss.NewStyle().Foreground(theme.StatusColor(m.Status)).Bold(true).
		Render(theme.StatusGlyph(m.Status) + " " + m.Status)

	lines := []string{
		theme.StyleHeader.Render("BIKE CONTROL PANEL"),
		"",
		"Connection: " + status,
		"",
		m.gauge(),
		"Run time:  " + dur,
		"",
		m.buttons(),
	}
	if m.LastErr != "" {
		lines = append(lines, "", theme.StyleError.Render(m.LastErr))
	} else if m.LastResp != "" {
		lines = append(lines, "", theme.StyleDimmed.Render(m.LastResp))
	}
	lines = append(lines, "",
		theme.StyleDimmed.Render("c:connect  x:disconnect  w/a/s/d:move  space:stop  enter:send selected"),
		theme.StyleDimmed.Render("+/-:speed ±5  ]/[:speed ±10  t:run time  ←/→:select"))

	width := max(m.Width-2, 40)
	return theme.StyleBorder.Width(width).Padding(0, 1).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
