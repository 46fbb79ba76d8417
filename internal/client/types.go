// Package client provides HTTP and WebSocket clients for the bike backend.
// Types mirror the backend wire protocol field for field.
package client

import (
	"encoding/json"
	"fmt"

	"github.com/Auto-Bike/frontend/internal/geo"
)

// Command is a movement instruction understood by the backend.
type Command string

const (
	CommandForward  Command = "forward"
	CommandBackward Command = "backward"
	CommandLeft     Command = "left"
	CommandRight    Command = "right"
	CommandStop     Command = "stop"
)

// Commands lists every command in control-panel order.
var Commands = []Command{CommandForward, CommandBackward, CommandRight, CommandLeft, CommandStop}

// ParseCommand accepts the wire name of a command.
func ParseCommand(s string) (Command, bool) {
	for _, c := range Commands {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// CommandRequest is the body of POST /send-command.
type CommandRequest struct {
	Command      Command `json:"command"`
	Speed        int     `json:"speed"`
	TimeDuration *int    `json:"time_duration,omitempty"`
}

// CommandResponse is whatever JSON object the backend acknowledges with.
type CommandResponse map[string]any

// ConnectionResponse is returned by GET /test-bike-connection/{id}.
type ConnectionResponse struct {
	Status string `json:"status"`
}

// StatusSuccess is the only positive connection acknowledgement.
const StatusSuccess = "success"

// GPSFix is returned by GET /latest-gps/{id}.
type GPSFix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Position converts the wire fix to the shared coordinate type.
func (f GPSFix) Position() geo.Position {
	return geo.Position{Lat: f.Latitude, Lng: f.Longitude}
}

// LatLon is the coordinate shape used by /send-navigation.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ToLatLon converts a position to the navigation wire shape.
func ToLatLon(p geo.Position) LatLon {
	return LatLon{Lat: p.Lat, Lon: p.Lng}
}

// NavigationRequest is the body of POST /send-navigation.
type NavigationRequest struct {
	Start       LatLon `json:"start"`
	Destination LatLon `json:"destination"`
}

// ErrorBody is the JSON body of a non-2xx response.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// APIError is a backend-reported failure. Detail is shown to the user as is.
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

// --- telemetry stream ---

// MessageType identifies the kind of telemetry message.
type MessageType string

const (
	MsgNavProgress MessageType = "nav_progress"
	MsgNavArrived  MessageType = "nav_arrived"
	MsgCommandAck  MessageType = "command_ack"
	MsgError       MessageType = "error"
)

// WSMessage is the envelope for all telemetry messages.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// NavProgressPayload reports one simulation step of a navigation run.
type NavProgressPayload struct {
	RunID    string       `json:"runId"`
	BikeID   string       `json:"bikeId"`
	Position geo.Position `json:"position"`
	Waypoint int          `json:"waypoint"`
	Total    int          `json:"total"`
}

// NavArrivedPayload is sent once the run reaches its last waypoint.
type NavArrivedPayload struct {
	RunID    string       `json:"runId"`
	BikeID   string       `json:"bikeId"`
	Position geo.Position `json:"position"`
}

// CommandAckPayload echoes an executed command.
type CommandAckPayload struct {
	BikeID  string  `json:"bikeId"`
	Command Command `json:"command"`
	Speed   int     `json:"speed"`
	Heading float64 `json:"heading"`
}
