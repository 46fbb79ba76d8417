// Package session tracks the connection lifecycle between the console and
// one bike: connect, command dispatch, explicit disconnect and the idle
// disconnect timer.
//
// All transitions go through Reduce, a pure function over State. Every
// outstanding backend call is stamped with the generation current when it
// started; a completion carrying an older generation is discarded, so a late
// reply can never undo a newer user action.
package session

import "time"

// Status is the connection status shown to the user.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
	Sending
	Error
	ConnectionFailed
	ConnectionError
)

var statusNames = map[Status]string{
	Disconnected:     "Disconnected",
	Connecting:       "Connecting...",
	Connected:        "Connected",
	Sending:          "Sending...",
	Error:            "Error",
	ConnectionFailed: "Connection Failed",
	ConnectionError:  "Connection Error",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "Unknown"
}

// CanSend reports whether a command may be dispatched from this status.
// Error means the bike was reachable and the last command failed, so the
// user may retry straight away.
func (s Status) CanSend() bool {
	return s == Connected || s == Error
}

// Started reports whether a connect has succeeded in this session, so user
// activity keeps it alive.
func (s Status) Started() bool {
	return s == Connected || s == Sending || s == Error
}

// State is the full session snapshot. It is a value; copies are safe.
type State struct {
	Status     Status
	Generation uint64
	// LastError is the user-facing message of the most recent failure.
	LastError   string
	LastCommand string
	TimerArmed  bool
	ChangedAt   time.Time
}

// EventType enumerates everything that can move the state machine.
type EventType int

const (
	EventConnectStarted   EventType = iota // user pressed connect
	EventConnectSucceeded                  // backend answered {status:"success"}
	EventConnectRejected                   // backend answered with any other status
	EventConnectFailed                     // transport or decode failure
	EventCommandStarted                    // user dispatched a command
	EventCommandSucceeded
	EventCommandFailed
	EventDisconnect  // operator/debug disconnect
	EventIdleTimeout // inactivity timer fired
)

var eventNames = map[EventType]string{
	EventConnectStarted:   "connect_started",
	EventConnectSucceeded: "connect_succeeded",
	EventConnectRejected:  "connect_rejected",
	EventConnectFailed:    "connect_failed",
	EventCommandStarted:   "command_started",
	EventCommandSucceeded: "command_succeeded",
	EventCommandFailed:    "command_failed",
	EventDisconnect:       "disconnect",
	EventIdleTimeout:      "idle_timeout",
}

func (t EventType) String() string {
	if n, ok := eventNames[t]; ok {
		return n
	}
	return "unknown"
}

// Event is an input to Reduce. Completion events carry the Generation of
// the call that produced them.
type Event struct {
	Type       EventType
	Generation uint64
	Command    string
	Err        error
}

// Effect tells the owner what to do with the inactivity timer after a
// transition.
type Effect int

const (
	EffectNone Effect = iota
	EffectArm         // cancel any pending timer and schedule a new one
	EffectDisarm      // cancel any pending timer
)

// Reduce applies ev to s. applied is false when the event is stale or not
// valid in the current status; s is then returned unchanged.
func Reduce(s State, ev Event) (next State, eff Effect, applied bool) {
	next = s
	switch ev.Type {
	case EventConnectStarted:
		next.Generation++
		next.Status = Connecting
		next.LastError = ""
		next.TimerArmed = false
		return next, EffectDisarm, true

	case EventConnectSucceeded:
		if !current(s, ev, Connecting) {
			return s, EffectNone, false
		}
		next.Status = Connected
		next.TimerArmed = true
		return next, EffectArm, true

	case EventConnectRejected:
		if !current(s, ev, Connecting) {
			return s, EffectNone, false
		}
		next.Status = ConnectionFailed
		next.LastError = "Bike did not acknowledge the connection"
		next.TimerArmed = false
		return next, EffectDisarm, true

	case EventConnectFailed:
		if !current(s, ev, Connecting) {
			return s, EffectNone, false
		}
		next.Status = ConnectionError
		next.LastError = errText(ev.Err, "Could not reach the bike backend")
		next.TimerArmed = false
		return next, EffectDisarm, true

	case EventCommandStarted:
		if !s.Status.CanSend() {
			return s, EffectNone, false
		}
		next.Status = Sending
		next.LastCommand = ev.Command
		next.LastError = ""
		next.TimerArmed = true
		return next, EffectArm, true

	case EventCommandSucceeded:
		if !current(s, ev, Sending) {
			return s, EffectNone, false
		}
		next.Status = Connected
		return next, EffectNone, true

	case EventCommandFailed:
		if !current(s, ev, Sending) {
			return s, EffectNone, false
		}
		next.Status = Error
		next.LastError = errText(ev.Err, "Failed to send command")
		return next, EffectNone, true

	case EventDisconnect, EventIdleTimeout:
		if s.Status == Disconnected {
			return s, EffectNone, false
		}
		next.Generation++
		next.Status = Disconnected
		next.TimerArmed = false
		if ev.Type == EventIdleTimeout {
			next.LastError = "Disconnected after inactivity"
		} else {
			next.LastError = ""
		}
		return next, EffectDisarm, true
	}
	return s, EffectNone, false
}

// current reports whether a completion event still belongs to the live
// operation: same generation and the state still waiting for it.
func current(s State, ev Event, want Status) bool {
	return ev.Generation == s.Generation && s.Status == want
}

func errText(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
