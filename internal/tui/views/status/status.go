package status

import (
	"fmt"

	"github.com/Auto-Bike/frontend/internal/geo"
	"github.com/Auto-Bike/frontend/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the status bar state.
type Model struct {
	BikeID    string
	Session   string
	Position  geo.Position
	HasFix    bool
	GPSError  string
	GPSHalted bool
	Telemetry bool
	Page      string
	Width     int
}

// New creates a status bar model.
func New(bikeID string) Model {
	return Model{BikeID: bikeID, Session: "Disconnected"}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	sessStr := lipgloss.NewStyle().Foreground(theme.StatusColor(m.Session)).
		Render(theme.StatusGlyph(m.Session) + " " + m.Session)

	var gpsStr string
	switch {
	case m.GPSHalted:
		gpsStr = theme.StyleError.Render("GPS halted")
	case m.GPSError != "":
		gpsStr = theme.StyleWarning.Render("GPS " + m.GPSError)
	case m.HasFix:
		gpsStr = fmt.Sprintf("GPS %s", m.Position)
	default:
		gpsStr = theme.StyleDimmed.Render("GPS waiting")
	}

	var wsStr string
	if m.Telemetry {
		wsStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("telemetry")
	} else {
		wsStr = theme.StyleDimmed.Render("no telemetry")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := theme.StyleHeader.Render(m.BikeID) + sep + sessStr + sep + gpsStr + sep + wsStr
	if m.Page != "" {
		content += sep + theme.StyleDimmed.Render(m.Page)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
