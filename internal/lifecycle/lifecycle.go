// Package lifecycle tracks process state that health checks and the HTTP
// layer consult: when the process started and whether it is draining.
package lifecycle

import (
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// State is the process lifecycle. The zero value is not usable; call New.
type State struct {
	clock        clockwork.Clock
	startedAt    time.Time
	shuttingDown atomic.Bool
}

// New records the start time from clock. A nil clock uses the real clock.
func New(clock clockwork.Clock) *State {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &State{clock: clock, startedAt: clock.Now()}
}

// SetShuttingDown sets the drain flag. Call when SIGTERM/SIGINT is received.
// Health reports shutting-down with 503 while it is set.
func (s *State) SetShuttingDown(v bool) {
	s.shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining and should not receive new traffic.
func (s *State) IsShuttingDown() bool {
	return s.shuttingDown.Load()
}

// StartedAt returns the process start time.
func (s *State) StartedAt() time.Time {
	return s.startedAt
}

// Uptime returns the time since start.
func (s *State) Uptime() time.Duration {
	return s.clock.Since(s.startedAt)
}
