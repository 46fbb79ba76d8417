// Package help renders the key reference overlay from Markdown.
package help

import (
	"strings"

	"github.com/Auto-Bike/frontend/internal/tui/theme"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Section is one titled group of key bindings.
type Section struct {
	Title string
	Keys  [][2]string // key, description
}

// Model caches the rendered document per width.
type Model struct {
	sections []Section
	style    string

	width    int
	rendered string
}

// New builds the overlay. style is a glamour standard style name ("dark",
// "light", "notty").
func New(style string, sections ...Section) Model {
	if style == "" {
		style = "dark"
	}
	return Model{sections: sections, style: style}
}

// Markdown returns the source document.
func (m Model) Markdown() string {
	var b strings.Builder
	b.WriteString("# Keys\n")
	for _, s := range m.sections {
		b.WriteString("\n## " + s.Title + "\n\n")
		b.WriteString("| key | action |\n|---|---|\n")
		for _, k := range s.Keys {
			b.WriteString("| `" + k[0] + "` | " + k[1] + " |\n")
		}
	}
	return b.String()
}

// SetWidth re-renders when the width changes.
func (m *Model) SetWidth(width int) {
	if width == m.width && m.rendered != "" {
		return
	}
	m.width = width
	m.rendered = m.render(max(width-8, 30))
}

func (m Model) render(wrap int) string {
	src := m.Markdown()
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return src
	}
	out, err := r.Render(src)
	if err != nil {
		return src
	}
	return out
}

// View renders the overlay panel.
func (m Model) View() string {
	body := m.rendered
	if body == "" {
		body = m.render(72)
	}
	return lipgloss.NewStyle().
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(strings.TrimRight(body, "\n") + "\n" + theme.StyleDimmed.Render("esc:close"))
}
