package status

import (
	"strings"
	"testing"

	"github.com/Auto-Bike/frontend/internal/geo"
)

func TestViewShowsSessionAndFix(t *testing.T) {
	m := New("bike1")
	m.Width = 120
	m.Session = "Connected"
	m.HasFix = true
	m.Position = geo.Position{Lat: 43.25559, Lng: -79.93547}

	v := m.View()
	for _, want := range []string{"bike1", "Connected", "43.25559, -79.93547"} {
		if !strings.Contains(v, want) {
			t.Errorf("status bar missing %q", want)
		}
	}
}

func TestViewGPSStates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Model)
		want   string
	}{
		{"waiting", func(m *Model) {}, "GPS waiting"},
		{"transient", func(m *Model) { m.GPSError = "Error fetching GPS data" }, "Error fetching GPS data"},
		{"halted", func(m *Model) { m.GPSError = "x"; m.GPSHalted = true }, "GPS halted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New("bike1")
			m.Width = 120
			tt.mutate(&m)
			if v := m.View(); !strings.Contains(v, tt.want) {
				t.Errorf("View() missing %q:\n%s", tt.want, v)
			}
		})
	}
}
