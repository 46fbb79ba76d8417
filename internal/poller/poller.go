// Package poller fetches the bike position on a fixed interval and gives up
// after too many consecutive failures.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Auto-Bike/frontend/internal/client"
	"github.com/Auto-Bike/frontend/internal/geo"
	"github.com/Auto-Bike/frontend/internal/logging"
	"github.com/sirupsen/logrus"
)

const (
	DefaultInterval  = 2 * time.Second
	DefaultThreshold = 6
	DefaultTimeout   = 10 * time.Second
)

// Messages shown to the user.
const (
	// TransientMessage follows a failed fetch while polling continues.
	TransientMessage = "Error fetching GPS data"
	// ExhaustedMessage follows the failure that stopped polling.
	ExhaustedMessage = "GPS data fetch failed too many times. Please reload to try again."
)

var (
	// ErrExhausted is the terminal failure: polling stopped after the
	// threshold of consecutive failures and stays stopped until Reset.
	ErrExhausted = errors.New("gps polling stopped after too many consecutive failures")
	// ErrRunning is returned by Start when a loop is already active.
	ErrRunning = errors.New("poller already running")
	// ErrNoFix rejects a fix that is not a usable coordinate.
	ErrNoFix = errors.New("no valid GPS fix")
)

// Fetcher returns the current bike position.
type Fetcher interface {
	Fetch(ctx context.Context) (geo.Position, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context) (geo.Position, error)

func (f FetchFunc) Fetch(ctx context.Context) (geo.Position, error) { return f(ctx) }

// GPSSource is the client call the GPS fetcher needs.
type GPSSource interface {
	LatestGPS(ctx context.Context, bikeID string) (*client.GPSFix, error)
}

// GPSFetcher polls GET /latest-gps/{bikeID}.
func GPSFetcher(src GPSSource, bikeID string) Fetcher {
	return FetchFunc(func(ctx context.Context) (geo.Position, error) {
		fix, err := src.LatestGPS(ctx, bikeID)
		if err != nil {
			return geo.Position{}, err
		}
		pos := fix.Position()
		if !pos.Valid() {
			return geo.Position{}, fmt.Errorf("%w: %s", ErrNoFix, pos)
		}
		return pos, nil
	})
}

// State is a snapshot of the poller.
type State struct {
	Position geo.Position
	HasFix   bool
	// ConsecutiveFailures resets to zero on every success.
	ConsecutiveFailures int
	// Stopped is set once the failure threshold is reached.
	Stopped bool
	Running bool
	// Message is the user-facing text for the latest failure, empty after
	// a success.
	Message   string
	Err       error
	Attempts  int
	UpdatedAt time.Time
}

// Options configures a Poller.
type Options struct {
	Threshold int
	// Timeout bounds each fetch.
	Timeout time.Duration
	Logger  *logrus.Entry
}

// Poller runs at most one fetch at a time from a single goroutine.
type Poller struct {
	fetcher   Fetcher
	threshold int
	timeout   time.Duration
	log       *logrus.Entry

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	subs   []chan State
}

func New(f Fetcher, opts Options) *Poller {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.For("poller")
	}
	return &Poller{
		fetcher:   f,
		threshold: opts.Threshold,
		timeout:   opts.Timeout,
		log:       opts.Logger,
	}
}

// Threshold returns the number of consecutive failures that stops polling.
func (p *Poller) Threshold() int { return p.threshold }

// State returns the current snapshot.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start fetches immediately and then once per interval until Stop, ctx
// cancellation or the failure threshold. A poller that hit the threshold
// must be Reset first.
func (p *Poller) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Stopped {
		return ErrExhausted
	}
	if p.cancel != nil {
		return ErrRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.state.Running = true
	p.notify(p.state)

	go p.run(runCtx, interval, done)
	p.log.WithField("interval", interval).Debug("polling started")
	return nil
}

func (p *Poller) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	defer p.finish(done)

	if st := p.PollOnce(ctx); st.Stopped {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if st := p.PollOnce(ctx); st.Stopped {
				return
			}
		}
	}
}

// finish clears the loop handles if they still belong to this run.
func (p *Poller) finish(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != done {
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = nil
	p.done = nil
	p.state.Running = false
	p.notify(p.state)
}

// PollOnce performs a single fetch and applies its outcome. It does nothing
// once the poller is stopped, and discards the result if ctx ends while the
// fetch is in flight.
func (p *Poller) PollOnce(ctx context.Context) State {
	p.mu.Lock()
	if p.state.Stopped {
		st := p.state
		p.mu.Unlock()
		return st
	}
	p.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	pos, err := p.fetcher.Fetch(fetchCtx)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil || p.state.Stopped {
		return p.state
	}

	p.state.Attempts++
	p.state.UpdatedAt = time.Now()
	if err == nil {
		p.state.Position = pos
		p.state.HasFix = true
		p.state.ConsecutiveFailures = 0
		p.state.Message = ""
		p.state.Err = nil
		p.notify(p.state)
		return p.state
	}

	p.state.ConsecutiveFailures++
	fields := logrus.Fields{"failures": p.state.ConsecutiveFailures, "threshold": p.threshold}
	if p.state.ConsecutiveFailures >= p.threshold {
		p.state.Stopped = true
		p.state.Message = ExhaustedMessage
		p.state.Err = ErrExhausted
		p.log.WithFields(fields).WithError(err).Warn("gps polling stopped")
	} else {
		p.state.Message = TransientMessage
		p.state.Err = err
		p.log.WithFields(fields).WithError(err).Debug("gps fetch failed")
	}
	p.notify(p.state)
	return p.state
}

// Stop cancels the loop and waits for it to exit. Safe to call repeatedly
// and on a poller that never started.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Reset stops any loop and clears the failure counter and the terminal
// flag. The last known position is kept.
func (p *Poller) Reset() {
	p.Stop()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.ConsecutiveFailures = 0
	p.state.Stopped = false
	p.state.Message = ""
	p.state.Err = nil
	p.notify(p.state)
}

// Subscribe returns a channel receiving every new snapshot. A slow reader
// loses intermediate snapshots, never the latest.
func (p *Poller) Subscribe() <-chan State {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan State, 8)
	p.subs = append(p.subs, ch)
	return ch
}

func (p *Poller) notify(st State) {
	for _, ch := range p.subs {
		select {
		case ch <- st:
		default:
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
