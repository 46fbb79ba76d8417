package session

import (
	"sync"
	"time"
)

// Clock schedules callbacks. Tests swap in a manual clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

// Stopper cancels a scheduled callback. *time.Timer satisfies it.
type Stopper interface {
	Stop() bool
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// InactivityTimer owns the single idle-disconnect callback. At most one
// callback is pending at any instant: Rearm cancels and reschedules under
// one lock, and a callback that lost the race with Rearm or Stop is
// recognised by its sequence number and dropped.
type InactivityTimer struct {
	clock    Clock
	delay    time.Duration
	onExpire func()

	mu      sync.Mutex
	pending Stopper
	seq     uint64
}

// NewInactivityTimer creates a disarmed timer.
func NewInactivityTimer(clock Clock, delay time.Duration, onExpire func()) *InactivityTimer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &InactivityTimer{clock: clock, delay: delay, onExpire: onExpire}
}

// Rearm cancels any pending callback and schedules a fresh one.
func (t *InactivityTimer) Rearm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		t.pending.Stop()
	}
	t.seq++
	seq := t.seq
	t.pending = t.clock.AfterFunc(t.delay, func() { t.fire(seq) })
}

// Stop cancels any pending callback. Safe to call repeatedly.
func (t *InactivityTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.seq++
}

// Pending reports whether a callback is scheduled.
func (t *InactivityTimer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

// Delay returns the configured idle period.
func (t *InactivityTimer) Delay() time.Duration {
	return t.delay
}

func (t *InactivityTimer) fire(seq uint64) {
	t.mu.Lock()
	if seq != t.seq {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.mu.Unlock()

	// Called without the lock held; onExpire normally re-enters Stop.
	if t.onExpire != nil {
		t.onExpire()
	}
}
