package testutil

import (
	"context"
	"sync"
	"time"
)

// RecordingSleeper returns immediately and records every requested delay.
// With a Clock set, each sleep advances it by the delay, so timestamps
// taken after a sleep reflect the simulated wait.
type RecordingSleeper struct {
	Clock *FakeClock

	mu    sync.Mutex
	slept []time.Duration
}

// Sleep records d. It returns ctx.Err() if ctx is already done.
func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.slept = append(s.slept, d)
	s.mu.Unlock()
	if s.Clock != nil {
		s.Clock.Advance(d)
	}
	return nil
}

// Slept returns the recorded delays in call order.
func (s *RecordingSleeper) Slept() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.slept))
	copy(out, s.slept)
	return out
}

// BlockingSleeper parks every sleep until Release is called or the context
// ends. Entered receives each delay as a sleep begins, so a test can act
// while the caller is suspended.
type BlockingSleeper struct {
	Entered chan time.Duration

	// IgnoreCancel makes Sleep return nil even when ctx ends, modelling a
	// timer that fires after its owner went away.
	IgnoreCancel bool

	release chan struct{}
	once    sync.Once
}

// NewBlockingSleeper creates a sleeper whose Entered channel buffers up to
// 16 delays.
func NewBlockingSleeper() *BlockingSleeper {
	return &BlockingSleeper{
		Entered: make(chan time.Duration, 16),
		release: make(chan struct{}),
	}
}

// Sleep blocks until Release or ctx is done.
func (s *BlockingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.Entered <- d
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		if s.IgnoreCancel {
			<-s.release
			return nil
		}
		return ctx.Err()
	}
}

// Release unblocks every current and future sleep.
func (s *BlockingSleeper) Release() {
	s.once.Do(func() { close(s.release) })
}
