// Package theme provides the Lip Gloss palette and reusable styles for the
// console. It is a leaf package with no internal imports to avoid import
// cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Session status colors.
var (
	ColorConnected    = lipgloss.Color("#22c55e")
	ColorConnecting   = lipgloss.Color("#7c3aed")
	ColorSending      = lipgloss.Color("#2563eb")
	ColorDisconnected = lipgloss.Color("#6b7280")
	ColorFailed       = lipgloss.Color("#dc2626")
	ColorDefault      = lipgloss.Color("#9ca3af")
)

// Map colors.
var (
	ColorBike        = lipgloss.Color("#facc15")
	ColorRoute       = lipgloss.Color("#3b82f6")
	ColorFallback    = lipgloss.Color("#f97316")
	ColorOrigin      = lipgloss.Color("#22c55e")
	ColorDestination = lipgloss.Color("#ef4444")
	ColorGround      = lipgloss.Color("#374151")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorAccent  = lipgloss.Color("#06b6d4")
)

// StatusColor returns the color for a session status display string.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "Connected":
		return ColorConnected
	case "Connecting...":
		return ColorConnecting
	case "Sending...":
		return ColorSending
	case "Disconnected":
		return ColorDisconnected
	case "Error", "Connection Failed", "Connection Error":
		return ColorFailed
	default:
		return ColorDefault
	}
}

// StatusGlyph returns a glyph for a session status display string.
func StatusGlyph(status string) string {
	switch status {
	case "Connected":
		return "●"
	case "Connecting...", "Sending...":
		return "◎"
	case "Error", "Connection Failed", "Connection Error":
		return "✗"
	default:
		return "○"
	}
}

// CommandGlyph returns the arrow shown on a command button.
func CommandGlyph(cmd string) string {
	switch cmd {
	case "forward":
		return "▲"
	case "backward":
		return "▼"
	case "left":
		return "◀"
	case "right":
		return "▶"
	case "stop":
		return "■"
	default:
		return "·"
	}
}

// SpeedColor shades the speed gauge.
func SpeedColor(pct int) lipgloss.Color {
	switch {
	case pct > 80:
		return ColorDanger
	case pct > 50:
		return ColorWarning
	default:
		return ColorHealthy
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright).
			Background(ColorBorder)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)

	StyleWarning = lipgloss.NewStyle().
			Foreground(ColorWarning)
)
