package sim

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/Auto-Bike/frontend/internal/client"
	"github.com/Auto-Bike/frontend/internal/geo"
	"golang.org/x/time/rate"
)

// TurnDegrees is how far left/right rotate the heading.
const TurnDegrees = 15.0

var (
	ErrUnknownBike    = errors.New("unknown bike")
	ErrUnknownCommand = errors.New("unknown command")
	ErrRateLimited    = errors.New("command rate exceeded")
	ErrGPSUnavailable = errors.New("gps read failed")
	ErrControllerDown = errors.New("bike controller unreachable")
)

// Bike is a snapshot of one simulated bike.
type Bike struct {
	ID          string       `json:"id"`
	Position    geo.Position `json:"position"`
	Heading     float64      `json:"heading"`
	Speed       int          `json:"speed"`
	LastCommand string       `json:"lastCommand,omitempty"`
	GPSReads    int          `json:"gpsReads"`
	Connected   bool         `json:"connected"`
}

type bikeState struct {
	Bike
	cfg     BikeConfig
	limiter *rate.Limiter
}

// Fleet holds the simulated bikes. Getters return copies.
type Fleet struct {
	stepMeters float64

	mu    sync.RWMutex
	bikes map[string]*bikeState
	order []string
}

func NewFleet(sc *Scenario) *Fleet {
	f := &Fleet{
		stepMeters: sc.StepMeters,
		bikes:      make(map[string]*bikeState, len(sc.Bikes)),
	}
	for _, bc := range sc.Bikes {
		st := &bikeState{
			Bike: Bike{ID: bc.ID, Position: bc.Start, Heading: normHeading(bc.Heading)},
			cfg:  bc,
		}
		if bc.RateLimit > 0 {
			st.limiter = rate.NewLimiter(rate.Limit(bc.RateLimit), bc.Burst)
		}
		f.bikes[bc.ID] = st
		f.order = append(f.order, bc.ID)
	}
	return f
}

// Primary is the bike that receives commands and navigation requests,
// whose payloads carry no bike id.
func (f *Fleet) Primary() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.order) == 0 {
		return ""
	}
	return f.order[0]
}

func (f *Fleet) Get(id string) (Bike, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	st, ok := f.bikes[id]
	if !ok {
		return Bike{}, false
	}
	return st.Bike, true
}

func (f *Fleet) All() []Bike {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Bike, 0, len(f.bikes))
	for _, st := range f.bikes {
		out = append(out, st.Bike)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Connect answers a connection test according to the bike's configured
// behaviour.
func (f *Fleet) Connect(id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.bikes[id]
	if !ok {
		return "", ErrUnknownBike
	}
	switch st.cfg.Connect {
	case ConnectError:
		return "", ErrControllerDown
	case ConnectFail:
		st.Connected = false
		return "fail", nil
	default:
		st.Connected = true
		return client.StatusSuccess, nil
	}
}

// ReadGPS returns the bike position, honouring the configured faults.
func (f *Fleet) ReadGPS(id string) (geo.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.bikes[id]
	if !ok {
		return geo.Position{}, ErrUnknownBike
	}
	st.GPSReads++
	n, faults := st.GPSReads, st.cfg.GPS
	if faults.OutageAfter > 0 && n > faults.OutageAfter {
		return geo.Position{}, ErrGPSUnavailable
	}
	if faults.FailEvery > 0 && n%faults.FailEvery == 0 {
		return geo.Position{}, ErrGPSUnavailable
	}
	return st.Position, nil
}

// Command executes one movement command on bike id.
func (f *Fleet) Command(id string, cmd client.Command, speed int) (Bike, error) {
	if _, ok := client.ParseCommand(string(cmd)); !ok {
		return Bike{}, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.bikes[id]
	if !ok {
		return Bike{}, ErrUnknownBike
	}
	if st.limiter != nil && !st.limiter.Allow() {
		return Bike{}, ErrRateLimited
	}

	speed = max(0, min(100, speed))
	step := f.stepMeters * float64(speed) / 100
	switch cmd {
	case client.CommandForward:
		st.Position = geo.Offset(st.Position, st.Heading, step)
		st.Speed = speed
	case client.CommandBackward:
		st.Position = geo.Offset(st.Position, st.Heading+180, step)
		st.Speed = speed
	case client.CommandLeft:
		st.Heading = normHeading(st.Heading - TurnDegrees)
		st.Speed = speed
	case client.CommandRight:
		st.Heading = normHeading(st.Heading + TurnDegrees)
		st.Speed = speed
	case client.CommandStop:
		st.Speed = 0
	}
	st.LastCommand = string(cmd)
	return st.Bike, nil
}

// Move places bike id at p, as a navigation step does.
func (f *Fleet) Move(id string, p geo.Position) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.bikes[id]; ok {
		if p != st.Position {
			st.Heading = geo.Bearing(st.Position, p)
		}
		st.Position = p
	}
}

func normHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}
