package delivery

import (
	"context"
	"math/rand/v2"
	"time"
)

// Range is an inclusive duration range for randomized waits.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Pacing fixes every wait in a reply sequence. Ranges are constants of the
// deployment, not of a call, so pacing feels the same on every send.
type Pacing struct {
	ReadDelay     Range
	TypingDelay   Range
	BurstPause    time.Duration
	FallbackDelay time.Duration
	ReplyTimeout  time.Duration
}

// DefaultPacing returns read 5-10s, typing 8-15s, a 1.5s pause between burst
// items, a 2s fallback delay and a 20s reply timeout.
func DefaultPacing() Pacing {
	return Pacing{
		ReadDelay:     Range{Min: 5 * time.Second, Max: 10 * time.Second},
		TypingDelay:   Range{Min: 8 * time.Second, Max: 15 * time.Second},
		BurstPause:    1500 * time.Millisecond,
		FallbackDelay: 2 * time.Second,
		ReplyTimeout:  20 * time.Second,
	}
}

func (p Pacing) withDefaults() Pacing {
	d := DefaultPacing()
	if p.ReadDelay == (Range{}) {
		p.ReadDelay = d.ReadDelay
	}
	if p.TypingDelay == (Range{}) {
		p.TypingDelay = d.TypingDelay
	}
	if p.ReplyTimeout <= 0 {
		p.ReplyTimeout = d.ReplyTimeout
	}
	p.BurstPause = max(p.BurstPause, 0)
	p.FallbackDelay = max(p.FallbackDelay, 0)
	return p
}

// Rand is the injectable random source. *rand.Rand from math/rand/v2
// satisfies it.
type Rand interface {
	Int64N(n int64) int64
}

// NewRand returns a PCG source seeded with seed.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// Draw picks a duration in r using src. A degenerate range yields Min.
// The result is never negative.
func Draw(src Rand, r Range) time.Duration {
	if r.Max <= r.Min {
		return max(r.Min, 0)
	}
	return max(r.Min+time.Duration(src.Int64N(int64(r.Max-r.Min)+1)), 0)
}

// Clock reports the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Sleeper suspends the caller. Implementations must return ctx.Err() when
// ctx ends first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper waits on a real timer.
type TimerSleeper struct{}

// Sleep implements Sleeper.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
