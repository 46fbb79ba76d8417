// Package geo holds the coordinate types shared by the console, the
// navigation planner and the simulated backend.
package geo

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000.0

// Position is a WGS84 coordinate. It is always replaced as a whole, never
// patched field by field.
type Position struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// DefaultCenter is where the map sits until the first GPS fix arrives.
var DefaultCenter = Position{Lat: 43.255585, Lng: -79.935473}

// Bounds is a lat/lng rectangle.
type Bounds struct {
	North float64 `json:"north" yaml:"north"`
	South float64 `json:"south" yaml:"south"`
	West  float64 `json:"west" yaml:"west"`
	East  float64 `json:"east" yaml:"east"`
}

// CanadaBounds restricts place search results.
var CanadaBounds = Bounds{
	North: 83.0956,
	South: 41.6765,
	West:  -141.0019,
	East:  -52.6363,
}

// String formats the position with five decimals, roughly one metre.
func (p Position) String() string {
	return fmt.Sprintf("%.5f, %.5f", p.Lat, p.Lng)
}

// Valid reports whether the coordinate is inside the WGS84 range.
func (p Position) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lng)
}

// Contains reports whether p lies inside b (edges inclusive).
func (b Bounds) Contains(p Position) bool {
	return p.Lat <= b.North && p.Lat >= b.South && p.Lng >= b.West && p.Lng <= b.East
}

// Center returns the midpoint of the rectangle.
func (b Bounds) Center() Position {
	return Position{Lat: (b.North + b.South) / 2, Lng: (b.West + b.East) / 2}
}

// Pad grows the rectangle by frac of its span on every side. Degenerate
// rectangles (a single point) get a minimum span so they stay drawable.
func (b Bounds) Pad(frac float64) Bounds {
	const minSpan = 0.002
	latSpan := math.Max(b.North-b.South, minSpan)
	lngSpan := math.Max(b.East-b.West, minSpan)
	c := b.Center()
	latHalf := latSpan/2 + latSpan*frac
	lngHalf := lngSpan/2 + lngSpan*frac
	return Bounds{
		North: c.Lat + latHalf,
		South: c.Lat - latHalf,
		West:  c.Lng - lngHalf,
		East:  c.Lng + lngHalf,
	}
}

// BoundsOf returns the smallest rectangle containing every point. ok is false
// for an empty input.
func BoundsOf(points ...Position) (b Bounds, ok bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	b = Bounds{North: points[0].Lat, South: points[0].Lat, West: points[0].Lng, East: points[0].Lng}
	for _, p := range points[1:] {
		b.North = math.Max(b.North, p.Lat)
		b.South = math.Min(b.South, p.Lat)
		b.West = math.Min(b.West, p.Lng)
		b.East = math.Max(b.East, p.Lng)
	}
	return b, true
}

// Distance returns the great-circle distance in metres.
func Distance(a, b Position) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := lat2 - lat1
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// PathLength sums Distance over consecutive points.
func PathLength(points []Position) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}

// Lerp interpolates linearly between a and b; t is clamped to [0,1].
func Lerp(a, b Position, t float64) Position {
	t = math.Max(0, math.Min(1, t))
	return Position{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lng: a.Lng + (b.Lng-a.Lng)*t,
	}
}

// Waypoints splits the segment a→b into legs equal steps and returns the
// legs+1 points including both ends.
func Waypoints(a, b Position, legs int) []Position {
	if legs < 1 {
		legs = 1
	}
	out := make([]Position, 0, legs+1)
	for i := 0; i <= legs; i++ {
		out = append(out, Lerp(a, b, float64(i)/float64(legs)))
	}
	return out
}

// Offset moves p by the given distance in metres along bearing (degrees
// clockwise from north). Flat-earth approximation, fine for short hops.
func Offset(p Position, bearingDeg, meters float64) Position {
	br := toRad(bearingDeg)
	dLat := meters * math.Cos(br) / earthRadiusMeters
	dLng := meters * math.Sin(br) / (earthRadiusMeters * math.Cos(toRad(p.Lat)))
	return Position{
		Lat: p.Lat + dLat*180/math.Pi,
		Lng: p.Lng + dLng*180/math.Pi,
	}
}

// Bearing returns the initial bearing from a to b in degrees [0,360).
func Bearing(a, b Position) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLng := toRad(b.Lng - a.Lng)
	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
