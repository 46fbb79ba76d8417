package maps

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Auto-Bike/frontend/internal/geo"
)

// ErrNoRoute is returned when the router finds no bicycle route.
var ErrNoRoute = errors.New("no route found")

// Route is a bicycling route between two points.
type Route struct {
	From     geo.Position
	To       geo.Position
	Distance float64 // metres
	Duration time.Duration
	// Path is the full polyline, From and To included.
	Path []geo.Position
}

// Summary is the one-line distance and time text.
func (r Route) Summary() string {
	return fmt.Sprintf("Total Distance: %s · Estimated Time: %s", FormatDistance(r.Distance), FormatDuration(r.Duration))
}

type Router struct {
	http    httpJSON
	profile string
}

// NewRouter creates a bicycle router for an OSRM-compatible service.
func NewRouter(baseURL string, timeout time.Duration) *Router {
	return &Router{http: newHTTPJSON(baseURL, timeout), profile: "bicycle"}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][2]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Route asks for the best bicycling route from a to b.
func (r *Router) Route(ctx context.Context, from, to geo.Position) (Route, error) {
	path := fmt.Sprintf("/route/v1/%s/%s;%s", r.profile, lngLat(from), lngLat(to))
	q := url.Values{}
	q.Set("overview", "full")
	q.Set("geometries", "geojson")

	var resp osrmResponse
	if err := r.http.get(ctx, path, q, &resp); err != nil {
		return Route{}, err
	}
	if resp.Code != "Ok" || len(resp.Routes) == 0 {
		if resp.Message != "" {
			return Route{}, fmt.Errorf("%w: %s", ErrNoRoute, resp.Message)
		}
		return Route{}, ErrNoRoute
	}

	best := resp.Routes[0]
	out := Route{
		From:     from,
		To:       to,
		Distance: best.Distance,
		Duration: time.Duration(best.Duration * float64(time.Second)),
		Path:     make([]geo.Position, 0, len(best.Geometry.Coordinates)),
	}
	for _, c := range best.Geometry.Coordinates {
		out.Path = append(out.Path, geo.Position{Lat: c[1], Lng: c[0]})
	}
	if len(out.Path) == 0 {
		out.Path = []geo.Position{from, to}
	}
	return out, nil
}

// OSRM takes coordinates as lng,lat.
func lngLat(p geo.Position) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lng, p.Lat)
}
