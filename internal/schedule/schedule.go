package schedule

import (
	"context"
	"time"
)

// Clock is the source of time for paced components.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
	After(d time.Duration) <-chan time.Time
}

// Ticker delivers ticks at a fixed period until stopped. Like time.Ticker it
// drops ticks for slow receivers.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// System is the wall clock.
type System struct{}

var _ Clock = System{}

func (System) Now() time.Time { return time.Now() }

func (System) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

func (System) After(d time.Duration) <-chan time.Time { return time.After(d) }

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }

func (s systemTicker) Stop() { s.t.Stop() }

// Sleep waits for d on clock c or until ctx is done.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-c.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
