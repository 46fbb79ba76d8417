package maps

import (
	"fmt"
	"math"
	"time"
)

// FormatDistance renders metres as "850 m" or "4.2 km".
func FormatDistance(m float64) string {
	if m < 0 {
		m = 0
	}
	if m < 1000 {
		return fmt.Sprintf("%d m", int(math.Round(m)))
	}
	return fmt.Sprintf("%.1f km", m/1000)
}

// FormatDuration renders a duration rounded to minutes: "12 min",
// "1 h 5 min", "2 h". Anything under a minute shows as "1 min".
func FormatDuration(d time.Duration) string {
	mins := int(d.Round(time.Minute) / time.Minute)
	if mins < 1 {
		mins = 1
	}
	h, m := mins/60, mins%60
	switch {
	case h == 0:
		return fmt.Sprintf("%d min", m)
	case m == 0:
		return fmt.Sprintf("%d h", h)
	default:
		return fmt.Sprintf("%d h %d min", h, m)
	}
}
