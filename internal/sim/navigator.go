package sim

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Auto-Bike/frontend/internal/client"
	"github.com/Auto-Bike/frontend/internal/geo"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Run is a navigation run in progress.
type Run struct {
	ID        string
	BikeID    string
	Waypoints []geo.Position
	// Next indexes the waypoint being approached; Waypoints[0] is the start.
	Next      int
	Position  geo.Position
	StartedAt time.Time
}

// Total is the number of legs.
func (r Run) Total() int { return len(r.Waypoints) - 1 }

// Navigator drives bikes along straight-line waypoint runs. Each tick moves
// a bike towards its next waypoint on both axes independently, clamped so it
// never overshoots.
type Navigator struct {
	fleet *Fleet
	bc    *Broadcaster
	step  float64
	legs  int
	log   *logrus.Entry

	mu   sync.Mutex
	runs map[string]*Run
}

func NewNavigator(fleet *Fleet, bc *Broadcaster, step float64, legs int, log *logrus.Entry) *Navigator {
	return &Navigator{
		fleet: fleet,
		bc:    bc,
		step:  step,
		legs:  legs,
		log:   log,
		runs:  make(map[string]*Run),
	}
}

// Start begins a run for bikeID from one point to another. Any run already
// active for that bike is abandoned.
func (n *Navigator) Start(bikeID string, from, to geo.Position) (Run, error) {
	if _, ok := n.fleet.Get(bikeID); !ok {
		return Run{}, ErrUnknownBike
	}

	run := &Run{
		ID:        uuid.New().String(),
		BikeID:    bikeID,
		Waypoints: geo.Waypoints(from, to, n.legs),
		Next:      1,
		Position:  from,
		StartedAt: time.Now(),
	}
	n.fleet.Move(bikeID, from)

	n.mu.Lock()
	if old, ok := n.runs[bikeID]; ok {
		n.log.WithFields(logrus.Fields{"bike": bikeID, "run": old.ID}).Info("navigation run replaced")
	}
	n.runs[bikeID] = run
	n.mu.Unlock()

	n.log.WithFields(logrus.Fields{
		"bike": bikeID,
		"run":  run.ID,
		"from": from.String(),
		"to":   to.String(),
	}).Info("navigation run started")
	return copyRun(run), nil
}

// Active returns the current run for bikeID.
func (n *Navigator) Active(bikeID string) (Run, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	r, ok := n.runs[bikeID]
	if !ok {
		return Run{}, false
	}
	return copyRun(r), true
}

// Cancel abandons the run for bikeID, if any.
func (n *Navigator) Cancel(bikeID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.runs, bikeID)
}

// Step advances every active run by one tick.
func (n *Navigator) Step() {
	n.mu.Lock()
	bikes := make([]string, 0, len(n.runs))
	for id := range n.runs {
		bikes = append(bikes, id)
	}
	sort.Strings(bikes)

	type event struct {
		typ     client.MessageType
		payload any
	}
	var events []event
	for _, id := range bikes {
		r := n.runs[id]
		target := r.Waypoints[r.Next]
		r.Position = geo.Position{
			Lat: approach(r.Position.Lat, target.Lat, n.step),
			Lng: approach(r.Position.Lng, target.Lng, n.step),
		}
		n.fleet.Move(id, r.Position)

		if r.Position == target {
			r.Next++
		}
		if r.Next >= len(r.Waypoints) {
			delete(n.runs, id)
			events = append(events, event{client.MsgNavArrived, client.NavArrivedPayload{
				RunID: r.ID, BikeID: id, Position: r.Position,
			}})
			n.log.WithFields(logrus.Fields{"bike": id, "run": r.ID}).Info("navigation run arrived")
			continue
		}
		events = append(events, event{client.MsgNavProgress, client.NavProgressPayload{
			RunID: r.ID, BikeID: id, Position: r.Position, Waypoint: r.Next, Total: r.Total(),
		}})
	}
	n.mu.Unlock()

	for _, ev := range events {
		n.bc.Publish(ev.typ, ev.payload)
	}
}

// Run ticks until ctx is cancelled.
func (n *Navigator) Run(ctx context.Context, tick time.Duration) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n.Step()
		}
	}
}

// approach moves cur towards target by at most step.
func approach(cur, target, step float64) float64 {
	switch {
	case cur < target:
		return min(cur+step, target)
	case cur > target:
		return max(cur-step, target)
	default:
		return cur
	}
}

func copyRun(r *Run) Run {
	out := *r
	out.Waypoints = append([]geo.Position(nil), r.Waypoints...)
	return out
}
