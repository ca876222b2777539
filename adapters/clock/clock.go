// Package clock provides Clock implementations.
package clock

import (
	"sync"
	"time"

	"github.com/artpar/appkernel/ports"
)

// Real returns the actual current time.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

// Stepping is a deterministic clock for tests. Every call to Now returns
// the current time and then advances it by the step, so that a measured
// interval between two calls is exactly one step.
type Stepping struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
	calls   int
}

// NewStepping creates a clock starting at start.
func NewStepping(start time.Time, step time.Duration) *Stepping {
	return &Stepping{current: start, step: step}
}

// Now returns the current time and advances the clock.
func (s *Stepping) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.current
	s.current = s.current.Add(s.step)
	s.calls++
	return t
}

// Calls returns how many times Now was called.
func (s *Stepping) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Ensure interface compliance.
var (
	_ ports.Clock = Real{}
	_ ports.Clock = (*Stepping)(nil)
)
