package chrono

import (
	"context"
	"sync"
	"time"
)

// FakeTime is a TimeAPI for tests, Sleep returns immediately and advances the clock.
type FakeTime struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func NewFakeTime(now time.Time) *FakeTime {
	return &FakeTime{now: now.In(shanghai)}
}

func (f *FakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *FakeTime) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	return nil
}

// Sleeps returns every duration passed to Sleep, in call order.
func (f *FakeTime) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.sleeps))
	copy(out, f.sleeps)
	return out
}
