// Package traffic keeps sliding windows of request outcomes. It is the single
// source for the overload (request and denial counts) and degraded (error
// rate) health signals.
package traffic

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultRetention bounds how long outcomes are kept.
const DefaultRetention = 5 * time.Minute

// Outcome classifies a finished request.
type Outcome int

const (
	Success Outcome = iota
	Error
	Denied
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Error:
		return "error"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Tracker records outcome timestamps per Outcome. Windows passed to the query
// methods longer than the retention see at most the retention.
type Tracker struct {
	clock     clockwork.Clock
	retention time.Duration

	mu    sync.Mutex
	times [3][]time.Time
}

// NewTracker creates a tracker. A nil clock uses the real clock; retention <= 0 uses DefaultRetention.
func NewTracker(clock clockwork.Clock, retention time.Duration) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Tracker{clock: clock, retention: retention}
}

// Record stores one outcome at the current time.
func (t *Tracker) Record(o Outcome) {
	if o < Success || o > Denied {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	t.times[o] = append(t.times[o], now)
	t.pruneLocked(now)
}

// RecordSuccess records a request answered below 500.
func (t *Tracker) RecordSuccess() { t.Record(Success) }

// RecordError records a request that failed with a 5xx or timed out.
func (t *Tracker) RecordError() { t.Record(Error) }

// RecordDenied records a rate-limit denial (429).
func (t *Tracker) RecordDenied() { t.Record(Denied) }

// RequestCount returns all outcomes (success + error + denied) within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock.Now().Add(-window)
	n := 0
	for _, times := range t.times {
		n += countSince(times, cutoff)
	}
	return n
}

// DenialCount returns the denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.times[Denied], t.clock.Now().Add(-window))
}

// ErrorRate returns (errors, total) within the window, where total counts
// successes and errors. Denials are not part of the error rate.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock.Now().Add(-window)
	errors = countSince(t.times[Error], cutoff)
	return errors, errors + countSince(t.times[Success], cutoff)
}

// Reset clears every window.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.times = [3][]time.Time{}
}

// countSince counts timestamps not before cutoff. times is ascending.
func countSince(times []time.Time, cutoff time.Time) int {
	for i, ts := range times {
		if !ts.Before(cutoff) {
			return len(times) - i
		}
	}
	return 0
}

// pruneLocked drops outcomes older than the retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.retention)
	for o := range t.times {
		times := t.times[o]
		i := 0
		for i < len(times) && times[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			t.times[o] = append(times[:0], times[i:]...)
		}
	}
}
