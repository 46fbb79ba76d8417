// Package navmap draws the navigation map as a character grid: the route,
// the endpoints and the bike marker. The marker eases towards each new fix
// on a spring so jumps between polls read as movement.
package navmap

import (
	"fmt"
	"math"
	"strings"

	"github.com/Auto-Bike/frontend/internal/geo"
	"github.com/Auto-Bike/frontend/internal/navigation"
	"github.com/Auto-Bike/frontend/internal/tui/theme"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
)

// FPS is the marker animation rate.
const FPS = 30

// settle is how close, in degrees, the marker must be to its target for the
// animation to stop.
const settle = 1e-7

// Glyphs.
const (
	glyphGround      = '·'
	glyphRoute       = '•'
	glyphFallback    = '-'
	glyphOrigin      = 'A'
	glyphDestination = 'B'
	glyphBike        = '@'
	glyphCenter      = '+'
)

// Model is the map view state.
type Model struct {
	Width  int
	Height int

	state    navigation.State
	fallback [2]geo.Position
	hasLine  bool

	spring    harmonica.Spring
	marker    geo.Position
	velLat    float64
	velLng    float64
	hasMarker bool
	animating bool
}

func New() Model {
	return Model{
		Width:  60,
		Height: 18,
		spring: harmonica.NewSpring(harmonica.FPS(FPS), 6.0, 0.9),
	}
}

// SetState replaces the planner snapshot. from/to/ok is the fallback line,
// drawn when there is a destination but no route.
func (m *Model) SetState(st navigation.State, from, to geo.Position, ok bool) {
	m.state = st
	m.fallback = [2]geo.Position{from, to}
	m.hasLine = ok
	if !st.HasFix {
		return
	}
	if !m.hasMarker {
		m.marker = st.Current
		m.hasMarker = true
		return
	}
	if m.marker != st.Current {
		m.animating = true
	}
}

// Animating reports whether Step still has work to do.
func (m Model) Animating() bool { return m.animating }

// Marker is the drawn bike position.
func (m Model) Marker() (geo.Position, bool) { return m.marker, m.hasMarker }

// Step advances the marker one frame and reports whether another frame is
// needed.
func (m *Model) Step() bool {
	if !m.animating {
		return false
	}
	target := m.state.Current
	m.marker.Lat, m.velLat = m.spring.Update(m.marker.Lat, m.velLat, target.Lat)
	m.marker.Lng, m.velLng = m.spring.Update(m.marker.Lng, m.velLng, target.Lng)

	if near(m.marker.Lat, target.Lat) && near(m.marker.Lng, target.Lng) &&
		near(m.velLat, 0) && near(m.velLng, 0) {
		m.marker = target
		m.velLat, m.velLng = 0, 0
		m.animating = false
	}
	return m.animating
}

func near(a, b float64) bool {
	d := a - b
	return d < settle && d > -settle
}

// Center is the point the map is centred on; the destination pick uses it.
func (m Model) Center() geo.Position {
	if c := m.state.Center; c != (geo.Position{}) {
		return c
	}
	return geo.DefaultCenter
}

func (m Model) placed() []geo.Position {
	var pts []geo.Position
	if m.state.Route != nil {
		pts = append(pts, m.state.Route.Path...)
	}
	if m.state.Origin.Set {
		pts = append(pts, m.state.Origin.Position)
	}
	if m.state.Destination.Set {
		pts = append(pts, m.state.Destination.Position)
	}
	if m.state.HasFix {
		pts = append(pts, m.state.Current)
	}
	return pts
}

// Viewport is the area the grid covers: centred on Center and wide enough
// to keep every placed point in view, padded.
func (m Model) Viewport() geo.Bounds {
	c := m.Center()
	var latHalf, lngHalf float64
	for _, p := range m.placed() {
		latHalf = math.Max(latHalf, math.Abs(p.Lat-c.Lat))
		lngHalf = math.Max(lngHalf, math.Abs(p.Lng-c.Lng))
	}
	b := geo.Bounds{North: c.Lat + latHalf, South: c.Lat - latHalf, West: c.Lng - lngHalf, East: c.Lng + lngHalf}
	return b.Pad(0.1)
}

// PanStep is how far one pan moves the centre: a quarter of the span the
// placed points need, so repeated pans keep a steady pace.
func (m Model) PanStep() (lat, lng float64) {
	b, ok := geo.BoundsOf(m.placed()...)
	if !ok {
		c := m.Center()
		b = geo.Bounds{North: c.Lat, South: c.Lat, West: c.Lng, East: c.Lng}
	}
	b = b.Pad(0.1)
	return (b.North - b.South) / 4, (b.East - b.West) / 4
}

// Panned returns the centre moved by rows steps north and cols steps east.
func (m Model) Panned(rows, cols int) geo.Position {
	dLat, dLng := m.PanStep()
	c := m.Center()
	return geo.Position{Lat: c.Lat + float64(rows)*dLat, Lng: c.Lng + float64(cols)*dLng}
}

func (m Model) grid() geo.Grid {
	return geo.Grid{Bounds: m.Viewport(), Width: max(m.Width-2, 10), Height: max(m.Height-2, 5)}
}

// Render returns the bare grid rows without styling.
func (m Model) Render() []string {
	g := m.grid()
	cells := make([][]rune, g.Height)
	for i := range cells {
		cells[i] = []rune(strings.Repeat(string(glyphGround), g.Width))
	}
	put := func(col, row int, r rune) {
		if row >= 0 && row < g.Height && col >= 0 && col < g.Width {
			cells[row][col] = r
		}
	}

	if col, row, ok := g.Cell(m.Center()); ok {
		put(col, row, glyphCenter)
	}
	if r := m.state.Route; r != nil {
		for i := 1; i < len(r.Path); i++ {
			for _, c := range g.Line(r.Path[i-1], r.Path[i]) {
				put(c[0], c[1], glyphRoute)
			}
		}
	} else if m.hasLine {
		for i, c := range g.Line(m.fallback[0], m.fallback[1]) {
			if i%2 == 0 {
				put(c[0], c[1], glyphFallback)
			}
		}
	}
	if m.state.Origin.Set {
		if col, row, ok := g.Cell(m.state.Origin.Position); ok {
			put(col, row, glyphOrigin)
		}
	}
	if m.state.Destination.Set {
		if col, row, ok := g.Cell(m.state.Destination.Position); ok {
			put(col, row, glyphDestination)
		}
	}
	if m.hasMarker {
		if col, row, ok := g.Cell(m.marker); ok {
			put(col, row, glyphBike)
		}
	}

	rows := make([]string, g.Height)
	for i, r := range cells {
		rows[i] = string(r)
	}
	return rows
}

func colorize(row string) string {
	var b strings.Builder
	for _, r := range row {
		var c lipgloss.Color
		switch r {
		case glyphRoute:
			c = theme.ColorRoute
		case glyphFallback:
			c = theme.ColorFallback
		case glyphOrigin:
			c = theme.ColorOrigin
		case glyphDestination:
			c = theme.ColorDestination
		case glyphBike:
			c = theme.ColorBike
		case glyphCenter:
			c = theme.ColorAccent
		default:
			c = theme.ColorGround
		}
		b.WriteString(lipgloss.NewStyle().Foreground(c).Render(string(r)))
	}
	return b.String()
}

// View renders the framed map with a legend and the route summary.
func (m Model) View() string {
	rows := m.Render()
	for i, r := range rows {
		rows[i] = colorize(r)
	}
	grid := theme.StyleBorder.Render(strings.Join(rows, "\n"))

	legend := theme.StyleDimmed.Render("@ bike  A origin  B destination  • route  - direct line  + centre")
	lines := []string{grid, legend}
	if r := m.state.Route; r != nil {
		lines = append(lines, r.Summary())
	}
	if p := m.state.Progress; p != nil && m.state.Navigating {
		lines = append(lines, fmt.Sprintf("Navigating: waypoint %d/%d", p.Waypoint, p.Total))
	} else if p != nil && p.Arrived {
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("Arrived at destination"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
