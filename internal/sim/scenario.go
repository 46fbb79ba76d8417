// Package sim is a stand-in for the bike backend. It serves the same HTTP
// endpoints as the real one, moves simulated bikes in response to commands
// and navigation requests, and pushes telemetry over /ws.
package sim

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Auto-Bike/frontend/internal/geo"
	"gopkg.in/yaml.v3"
)

// Connect behaviours for a simulated bike.
const (
	ConnectSuccess = "success"
	ConnectFail    = "fail"
	ConnectError   = "error"
)

type Scenario struct {
	Server ServerConfig `yaml:"server"`
	// Tick is the simulation step for navigation runs.
	Tick time.Duration `yaml:"tick"`
	// StepMeters is how far one forward/backward command moves a bike at
	// 100% speed.
	StepMeters float64 `yaml:"step_meters"`
	// NavStep is the per-tick movement on each axis during navigation, in
	// degrees.
	NavStep float64      `yaml:"nav_step"`
	NavLegs int          `yaml:"nav_legs"`
	Bikes   []BikeConfig `yaml:"bikes"`
}

type ServerConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`
}

type BikeConfig struct {
	ID      string       `yaml:"id"`
	Start   geo.Position `yaml:"start"`
	Heading float64      `yaml:"heading"`
	Connect string       `yaml:"connect"`
	GPS     GPSFaults    `yaml:"gps"`
	// RateLimit caps commands per second; zero is unlimited.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// GPSFaults injects read failures.
type GPSFaults struct {
	// FailEvery fails every Nth read.
	FailEvery int `yaml:"fail_every"`
	// OutageAfter fails every read after the first N.
	OutageAfter int `yaml:"outage_after"`
}

// DefaultScenario is one healthy bike parked at the default map centre.
func DefaultScenario() *Scenario {
	s := &Scenario{}
	s.applyDefaults()
	return s
}

func (s *Scenario) applyDefaults() {
	if s.Server.Host == "" {
		s.Server.Host = "127.0.0.1"
	}
	if s.Server.Port == 0 {
		s.Server.Port = 8000
	}
	if s.Tick <= 0 {
		s.Tick = 500 * time.Millisecond
	}
	if s.StepMeters <= 0 {
		s.StepMeters = 10
	}
	if s.NavStep <= 0 {
		s.NavStep = 0.0005
	}
	if s.NavLegs <= 0 {
		s.NavLegs = 10
	}
	if len(s.Bikes) == 0 {
		s.Bikes = []BikeConfig{{ID: "bike1"}}
	}
	for i := range s.Bikes {
		b := &s.Bikes[i]
		if b.Start == (geo.Position{}) {
			b.Start = geo.DefaultCenter
		}
		if b.Connect == "" {
			b.Connect = ConnectSuccess
		}
		if b.RateLimit > 0 && b.Burst <= 0 {
			b.Burst = 1
		}
	}
}

// LoadScenario reads a YAML scenario. Missing fields take the defaults.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s := &Scenario{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return s, nil
}

func (s *Scenario) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for i, b := range s.Bikes {
		switch {
		case b.ID == "":
			errs = append(errs, fmt.Errorf("bikes[%d]: id is required", i))
		case seen[b.ID]:
			errs = append(errs, fmt.Errorf("bikes[%d]: duplicate id %q", i, b.ID))
		}
		seen[b.ID] = true
		if !b.Start.Valid() {
			errs = append(errs, fmt.Errorf("bike %s: start %s is not a valid coordinate", b.ID, b.Start))
		}
		switch b.Connect {
		case ConnectSuccess, ConnectFail, ConnectError:
		default:
			errs = append(errs, fmt.Errorf("bike %s: connect must be success, fail or error, got %q", b.ID, b.Connect))
		}
		if b.GPS.FailEvery < 0 || b.GPS.OutageAfter < 0 {
			errs = append(errs, fmt.Errorf("bike %s: gps fault counts must not be negative", b.ID))
		}
		if b.RateLimit < 0 {
			errs = append(errs, fmt.Errorf("bike %s: rate_limit must not be negative", b.ID))
		}
	}
	return errors.Join(errs...)
}

// Addr is host:port.
func (s *Scenario) Addr() string {
	return fmt.Sprintf("%s:%d", s.Server.Host, s.Server.Port)
}
