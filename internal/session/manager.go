package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Auto-Bike/frontend/internal/client"
	"github.com/Auto-Bike/frontend/internal/logging"
	"github.com/sirupsen/logrus"
)

// DefaultIdleTimeout disconnects a session after 30 s without user action.
const DefaultIdleTimeout = 30 * time.Second

// Speed limits, in percent.
const (
	MinSpeed     = 0
	MaxSpeed     = 100
	DefaultSpeed = 50
)

var (
	// ErrNotConnected rejects a command issued outside a live session.
	ErrNotConnected = errors.New("bike is not connected")
	// ErrInvalidSpeed rejects a speed outside 0..100.
	ErrInvalidSpeed = errors.New("speed must be between 0 and 100")
	// ErrInvalidDuration rejects a negative duration.
	ErrInvalidDuration = errors.New("duration must not be negative")
	// ErrUnknownCommand rejects a command the backend does not understand.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrConnectionRejected is returned when the backend answers but does
	// not acknowledge the bike.
	ErrConnectionRejected = errors.New("connection failed")
	// ErrSuperseded is returned when a newer action (disconnect, reconnect,
	// idle timeout) overtook the call while it was in flight.
	ErrSuperseded = errors.New("superseded by a newer action")
)

// Backend is the slice of the HTTP client the manager needs.
type Backend interface {
	TestConnection(ctx context.Context, bikeID string) (*client.ConnectionResponse, error)
	SendCommand(ctx context.Context, req client.CommandRequest) (client.CommandResponse, error)
}

// Params are the per-command parameters.
type Params struct {
	Speed int
	// Duration is rounded to whole seconds; zero omits time_duration.
	Duration time.Duration
}

func (p Params) validate() error {
	if p.Speed < MinSpeed || p.Speed > MaxSpeed {
		return ErrInvalidSpeed
	}
	if p.Duration < 0 {
		return ErrInvalidDuration
	}
	return nil
}

// Options configures a Manager.
type Options struct {
	BikeID      string
	IdleTimeout time.Duration
	Clock       Clock
	Logger      *logrus.Entry
}

// Manager owns the session state and its inactivity timer.
type Manager struct {
	backend Backend
	bikeID  string
	clock   Clock
	timer   *InactivityTimer
	log     *logrus.Entry

	mu     sync.Mutex
	state  State
	subs   []chan State
	closed bool
}

// New creates a manager in the Disconnected state.
func New(backend Backend, opts Options) *Manager {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.For("session")
	}
	m := &Manager{
		backend: backend,
		bikeID:  opts.BikeID,
		clock:   opts.Clock,
		log:     opts.Logger.WithField("bike", opts.BikeID),
		state:   State{Status: Disconnected, ChangedAt: opts.Clock.Now()},
	}
	m.timer = NewInactivityTimer(opts.Clock, opts.IdleTimeout, m.onTimerExpiry)
	return m
}

// BikeID returns the bike this session controls.
func (m *Manager) BikeID() string {
	return m.bikeID
}

// State returns a snapshot of the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Apply feeds ev through Reduce, runs the timer effect and notifies
// subscribers. It returns the resulting state and whether ev was applied.
func (m *Manager) Apply(ev Event) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return m.state, false
	}

	next, eff, ok := Reduce(m.state, ev)
	if !ok {
		m.log.WithFields(logrus.Fields{
			"event":  ev.Type.String(),
			"status": m.state.Status.String(),
		}).Debug("event discarded")
		return m.state, false
	}

	switch eff {
	case EffectArm:
		m.timer.Rearm()
	case EffectDisarm:
		m.timer.Stop()
	}

	prev := m.state.Status
	next.ChangedAt = m.clock.Now()
	m.state = next
	if prev != next.Status {
		m.log.WithFields(logrus.Fields{
			"event": ev.Type.String(),
			"from":  prev.String(),
			"to":    next.Status.String(),
		}).Info("session status changed")
	}
	m.notify(next)
	return next, true
}

// OnUserAction re-arms the inactivity timer. It does nothing until a
// connect succeeds: a session that has not started gets no timer.
func (m *Manager) OnUserAction() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.state.Status.Started() {
		return
	}
	m.timer.Rearm()
	if !m.state.TimerArmed {
		m.state.TimerArmed = true
		m.notify(m.state)
	}
}

// Connect checks the bike connection once. A {status:"success"} answer moves
// the session to Connected and arms the idle timer; any other answer yields
// ConnectionFailed, and a transport failure ConnectionError.
func (m *Manager) Connect(ctx context.Context) error {
	st, _ := m.Apply(Event{Type: EventConnectStarted})
	gen := st.Generation

	resp, err := m.backend.TestConnection(ctx, m.bikeID)
	switch {
	case err != nil:
		if _, ok := m.Apply(Event{Type: EventConnectFailed, Generation: gen, Err: err}); !ok {
			return ErrSuperseded
		}
		return fmt.Errorf("connecting to %s: %w", m.bikeID, err)
	case resp == nil || resp.Status != client.StatusSuccess:
		if _, ok := m.Apply(Event{Type: EventConnectRejected, Generation: gen}); !ok {
			return ErrSuperseded
		}
		return ErrConnectionRejected
	default:
		if _, ok := m.Apply(Event{Type: EventConnectSucceeded, Generation: gen}); !ok {
			return ErrSuperseded
		}
		return nil
	}
}

// SendCommand dispatches one movement command. It is rejected with
// ErrNotConnected, without any network call, unless the session is live.
// The command is never retried automatically.
func (m *Manager) SendCommand(ctx context.Context, cmd client.Command, p Params) (client.CommandResponse, error) {
	if _, ok := client.ParseCommand(string(cmd)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	st, ok := m.Apply(Event{Type: EventCommandStarted, Command: string(cmd)})
	if !ok {
		return nil, ErrNotConnected
	}
	gen := st.Generation

	req := client.CommandRequest{Command: cmd, Speed: p.Speed}
	if secs := int(p.Duration.Round(time.Second) / time.Second); secs > 0 {
		req.TimeDuration = &secs
	}

	resp, err := m.backend.SendCommand(ctx, req)
	if err != nil {
		if _, ok := m.Apply(Event{Type: EventCommandFailed, Generation: gen, Command: string(cmd), Err: err}); !ok {
			return nil, ErrSuperseded
		}
		return nil, err
	}
	if _, ok := m.Apply(Event{Type: EventCommandSucceeded, Generation: gen, Command: string(cmd)}); !ok {
		return resp, ErrSuperseded
	}
	return resp, nil
}

// Disconnect forces the Disconnected state immediately without contacting
// the backend. Operator/debug affordance.
func (m *Manager) Disconnect() {
	m.Apply(Event{Type: EventDisconnect})
}

func (m *Manager) onTimerExpiry() {
	if _, ok := m.Apply(Event{Type: EventIdleTimeout}); ok {
		m.log.WithField("idle", m.timer.Delay()).Info("no actions detected, disconnecting")
	}
}

// Subscribe returns a channel receiving every new state. Slow readers see
// the latest state; intermediate ones may be skipped. The channel is closed
// by Close.
func (m *Manager) Subscribe() <-chan State {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan State, 8)
	if m.closed {
		close(ch)
		return ch
	}
	m.subs = append(m.subs, ch)
	return ch
}

// Close cancels the timer and releases subscribers. Later events are
// ignored.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.timer.Stop()
	for _, ch := range m.subs {
		close(ch)
	}
	m.subs = nil
}

// notify must be called with mu held.
func (m *Manager) notify(st State) {
	for _, ch := range m.subs {
		select {
		case ch <- st:
		default:
			// Full: drop the oldest so the newest always lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}
