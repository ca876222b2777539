package clock_test

import (
	"testing"
	"time"

	"github.com/artpar/appkernel/adapters/clock"
)

func TestReal_Now(t *testing.T) {
	before := time.Now()
	got := clock.Real{}.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestStepping_Now(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := clock.NewStepping(start, 250*time.Millisecond)

	first := c.Now()
	second := c.Now()

	if !first.Equal(start) {
		t.Errorf("first Now() = %v, want %v", first, start)
	}
	if d := second.Sub(first); d != 250*time.Millisecond {
		t.Errorf("interval = %v, want 250ms", d)
	}
	if c.Calls() != 2 {
		t.Errorf("Calls() = %d, want 2", c.Calls())
	}
}

func TestStepping_ZeroStep(t *testing.T) {
	start := time.Unix(1700000000, 0)
	c := clock.NewStepping(start, 0)

	for i := 0; i < 3; i++ {
		if got := c.Now(); !got.Equal(start) {
			t.Fatalf("Now() = %v, want %v", got, start)
		}
	}
}
