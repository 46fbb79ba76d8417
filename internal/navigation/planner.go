// Package navigation plans a bicycle trip: pick origin and destination,
// compute a route and hand it to the bike backend.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/Auto-Bike/frontend/internal/client"
	"github.com/Auto-Bike/frontend/internal/geo"
	"github.com/Auto-Bike/frontend/internal/logging"
	"github.com/Auto-Bike/frontend/internal/maps"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoFix            = errors.New("no gps fix")
	ErrNoAddress        = errors.New("no address for current location")
	ErrMissingEndpoints = errors.New("origin or destination not selected")
	ErrEndpointsNeeded  = errors.New("origin and destination required")
	ErrRoute            = errors.New("route calculation failed")
	ErrStart            = errors.New("navigation start failed")
	ErrNoRoute          = errors.New("no route shown")
	ErrNavigating       = errors.New("navigation already in progress")
	ErrPlaceNotFound    = errors.New("no matching place")
	ErrOutsideBounds    = errors.New("location outside the service area")
	ErrInvalidCenter    = errors.New("invalid map centre")
)

// messages is the text shown on the navigation page for each failure.
var messages = []struct {
	err  error
	text string
}{
	{ErrNoFix, "GPS location is not available"},
	{ErrNoAddress, "Could not find address for current location"},
	{ErrMissingEndpoints, "Please select both starting point and destination"},
	{ErrEndpointsNeeded, "Origin and destination are required"},
	{ErrRoute, "Error calculating route"},
	{ErrStart, "Failed to start navigation"},
	{ErrNoRoute, "Show the route before starting navigation"},
	{ErrNavigating, "Navigation already in progress"},
	{ErrPlaceNotFound, "No matching place found"},
	{ErrOutsideBounds, "Location is outside the service area"},
	{ErrInvalidCenter, "Map centre is not a valid coordinate"},
}

// Message returns the user-facing text for err.
func Message(err error) string {
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.text
		}
	}
	return err.Error()
}

type Geocoder interface {
	Search(ctx context.Context, query string) ([]maps.Place, error)
	Reverse(ctx context.Context, p geo.Position) (maps.Place, error)
}

type Router interface {
	Route(ctx context.Context, from, to geo.Position) (maps.Route, error)
}

// Dispatcher hands a trip to the bike backend.
type Dispatcher interface {
	SendNavigation(ctx context.Context, req client.NavigationRequest) error
}

// Endpoint is an origin or destination.
type Endpoint struct {
	Label    string
	Position geo.Position
	Set      bool
}

// Progress is the latest telemetry about an active run.
type Progress struct {
	RunID    string
	Position geo.Position
	Waypoint int
	Total    int
	Arrived  bool
}

// State is a snapshot of the planner.
type State struct {
	Current     geo.Position
	HasFix      bool
	Origin      Endpoint
	Destination Endpoint
	Center      geo.Position
	// Route is nil until ShowRoute succeeds.
	Route      *maps.Route
	Navigating bool
	Progress   *Progress
	Error      string
}

type Planner struct {
	geocoder   Geocoder
	router     Router
	dispatcher Dispatcher
	bounds     geo.Bounds
	log        *logrus.Entry

	mu      sync.Mutex
	state   State
	centred bool
}

type Options struct {
	// Center is shown until the first fix.
	Center geo.Position
	// Bounds limits picked endpoints; zero accepts anywhere.
	Bounds geo.Bounds
	Logger *logrus.Entry
}

func NewPlanner(g Geocoder, r Router, d Dispatcher, opts Options) *Planner {
	if !opts.Center.Valid() || opts.Center == (geo.Position{}) {
		opts.Center = geo.DefaultCenter
	}
	if opts.Logger == nil {
		opts.Logger = logging.For("navigation")
	}
	return &Planner{
		geocoder:   g,
		router:     r,
		dispatcher: d,
		bounds:     opts.Bounds,
		log:        opts.Logger,
		state:      State{Center: opts.Center},
	}
}

func (p *Planner) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.state
	if st.Route != nil {
		r := *st.Route
		r.Path = append([]geo.Position(nil), r.Path...)
		st.Route = &r
	}
	if st.Progress != nil {
		pr := *st.Progress
		st.Progress = &pr
	}
	return st
}

// fail shows the message for shown and returns it, wrapping cause when
// given.
func (p *Planner) fail(shown error, cause ...error) error {
	p.mu.Lock()
	p.state.Error = Message(shown)
	p.mu.Unlock()
	if len(cause) > 0 && cause[0] != nil {
		return fmt.Errorf("%w: %v", shown, cause[0])
	}
	return shown
}

// UpdateLocation records a fresh fix. The map centres on the first one only;
// later fixes move the marker, not the view.
func (p *Planner) UpdateLocation(pos geo.Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Current = pos
	p.state.HasFix = true
	if !p.centred {
		p.state.Center = pos
		p.centred = true
	}
}

// SetError shows msg; an empty msg clears the error.
func (p *Planner) SetError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Error = msg
}

// CenterOnCurrent moves the view to the bike.
func (p *Planner) CenterOnCurrent() error {
	p.mu.Lock()
	if !p.state.HasFix {
		p.mu.Unlock()
		return p.fail(ErrNoFix)
	}
	p.state.Center = p.state.Current
	p.mu.Unlock()
	return nil
}

// SetCenter moves the view, as dragging the map does. Later fixes no
// longer recentre it.
func (p *Planner) SetCenter(pos geo.Position) error {
	if !pos.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidCenter, pos)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Center = pos
	p.centred = true
	return nil
}

// UseCurrentAsOrigin sets the origin to the bike's position, labelled with
// its street address. The origin is left alone when the address lookup
// fails.
func (p *Planner) UseCurrentAsOrigin(ctx context.Context) error {
	p.mu.Lock()
	cur, ok := p.state.Current, p.state.HasFix
	p.mu.Unlock()
	if !ok {
		return p.fail(ErrNoFix)
	}

	place, err := p.geocoder.Reverse(ctx, cur)
	if err != nil {
		p.log.WithError(err).Debug("reverse geocode failed")
		return p.fail(ErrNoAddress)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.setOrigin(Endpoint{Label: place.Label(), Position: cur, Set: true})
	p.state.Error = ""
	return nil
}

// SetOrigin resolves input, either "lat,lng" or a place search.
func (p *Planner) SetOrigin(ctx context.Context, input string) error {
	ep, err := p.resolve(ctx, input)
	if err != nil {
		return p.fail(err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setOrigin(ep)
	p.state.Error = ""
	return nil
}

// SetDestination resolves input, either "lat,lng" or a place search.
func (p *Planner) SetDestination(ctx context.Context, input string) error {
	ep, err := p.resolve(ctx, input)
	if err != nil {
		return p.fail(err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setDestination(ep)
	p.state.Error = ""
	return nil
}

// PickDestination sets the destination to a point picked on the map. As on
// a map click, nothing changes unless the point has an address.
func (p *Planner) PickDestination(ctx context.Context, pos geo.Position) error {
	if err := p.checkBounds(pos); err != nil {
		return p.fail(err)
	}
	place, err := p.geocoder.Reverse(ctx, pos)
	if err != nil {
		p.log.WithError(err).Debug("reverse geocode of picked point failed")
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setDestination(Endpoint{Label: place.Label(), Position: pos, Set: true})
	return nil
}

// setOrigin and setDestination drop a route that no longer joins the
// endpoints. Progress of a finished run goes with it; a live run keeps
// reporting. Callers hold p.mu.
func (p *Planner) setOrigin(ep Endpoint) {
	if p.state.Origin != ep {
		p.dropRoute()
	}
	p.state.Origin = ep
}

func (p *Planner) setDestination(ep Endpoint) {
	if p.state.Destination != ep {
		p.dropRoute()
	}
	p.state.Destination = ep
}

func (p *Planner) dropRoute() {
	p.state.Route = nil
	if !p.state.Navigating {
		p.state.Progress = nil
	}
}

func (p *Planner) resolve(ctx context.Context, input string) (Endpoint, error) {
	input = strings.TrimSpace(input)
	if pos, ok := ParseLatLng(input); ok {
		if err := p.checkBounds(pos); err != nil {
			return Endpoint{}, err
		}
		return Endpoint{Label: pos.String(), Position: pos, Set: true}, nil
	}

	places, err := p.geocoder.Search(ctx, input)
	if err != nil {
		if !errors.Is(err, maps.ErrNoResults) {
			p.log.WithError(err).WithField("query", input).Warn("place search failed")
		}
		return Endpoint{}, ErrPlaceNotFound
	}
	for _, pl := range places {
		if p.checkBounds(pl.Position) == nil {
			return Endpoint{Label: pl.Label(), Position: pl.Position, Set: true}, nil
		}
	}
	return Endpoint{}, ErrOutsideBounds
}

func (p *Planner) checkBounds(pos geo.Position) error {
	if p.bounds == (geo.Bounds{}) || p.bounds.Contains(pos) {
		return nil
	}
	return ErrOutsideBounds
}

// ShowRoute computes the bicycling route between origin and destination.
func (p *Planner) ShowRoute(ctx context.Context) error {
	p.mu.Lock()
	origin, dest := p.state.Origin, p.state.Destination
	if !origin.Set || !dest.Set {
		p.state.Error = Message(ErrMissingEndpoints)
		p.mu.Unlock()
		return ErrMissingEndpoints
	}
	p.state.Error = ""
	p.mu.Unlock()

	route, err := p.router.Route(ctx, origin.Position, dest.Position)
	if err != nil {
		p.log.WithError(err).Warn("route request failed")
		return p.fail(ErrRoute, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// The endpoints may have changed while the router was busy.
	if p.state.Origin != origin || p.state.Destination != dest {
		return nil
	}
	p.state.Route = &route
	p.log.WithFields(logrus.Fields{
		"distance": maps.FormatDistance(route.Distance),
		"duration": maps.FormatDuration(route.Duration),
	}).Info("route calculated")
	return nil
}

// StartNavigation sends the trip to the bike.
func (p *Planner) StartNavigation(ctx context.Context) error {
	p.mu.Lock()
	st := p.state
	switch {
	case st.Navigating:
		p.mu.Unlock()
		return ErrNavigating
	case st.Route == nil:
		p.mu.Unlock()
		return p.fail(ErrNoRoute)
	case !st.Origin.Set || !st.Destination.Set:
		p.mu.Unlock()
		return p.fail(ErrEndpointsNeeded)
	}
	p.mu.Unlock()

	req := client.NavigationRequest{
		Start:       client.ToLatLon(st.Origin.Position),
		Destination: client.ToLatLon(st.Destination.Position),
	}
	if err := p.dispatcher.SendNavigation(ctx, req); err != nil {
		p.log.WithError(err).Warn("send navigation failed")
		return p.fail(ErrStart, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Navigating = true
	p.state.Progress = nil
	p.state.Error = ""
	return nil
}

// ClearRoute drops the route and any error and ends navigation.
func (p *Planner) ClearRoute() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Route = nil
	p.state.Error = ""
	p.state.Navigating = false
	p.state.Progress = nil
}

// ApplyProgress records telemetry for the active run. The bike marker moves
// with it.
func (p *Planner) ApplyProgress(pr Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Progress = &pr
	if pr.Position.Valid() && pr.Position != (geo.Position{}) {
		p.state.Current = pr.Position
		p.state.HasFix = true
	}
	if pr.Arrived {
		p.state.Navigating = false
	}
}

// FallbackLine is the straight segment from the bike to the destination,
// drawn while no route has been calculated.
func (p *Planner) FallbackLine() (from, to geo.Position, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.state
	if st.Route != nil || !st.Destination.Set {
		return geo.Position{}, geo.Position{}, false
	}
	from = st.Current
	if !st.HasFix {
		if !st.Origin.Set {
			return geo.Position{}, geo.Position{}, false
		}
		from = st.Origin.Position
	}
	return from, st.Destination.Position, true
}

// ParseLatLng accepts "43.2556, -79.9355" and similar.
func ParseLatLng(s string) (geo.Position, bool) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
	if len(parts) != 2 {
		return geo.Position{}, false
	}
	lat, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return geo.Position{}, false
	}
	lng, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return geo.Position{}, false
	}
	pos := geo.Position{Lat: lat, Lng: lng}
	return pos, pos.Valid()
}
