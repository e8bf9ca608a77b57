package schedule

import (
	"sync"
	"time"
)

// FakeClock is a Clock that only advances when told to.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	waiters []fakeWaiter
}

var _ Clock = (*FakeClock)(nil)

type fakeWaiter struct {
	at time.Time
	ch chan time.Time
}

// NewFake returns a FakeClock reading start.
func NewFake(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *FakeClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("schedule: non-positive ticker period")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{clock: f, period: d, next: f.now.Add(d), ch: make(chan time.Time, 1)}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *FakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- f.now
		return ch
	}
	f.waiters = append(f.waiters, fakeWaiter{at: f.now.Add(d), ch: ch})
	return ch
}

// Advance moves the clock forward by d, firing every ticker period and
// After deadline passed on the way, in time order.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target := f.now.Add(d)
	for {
		at, ok := f.nextEvent(target)
		if !ok {
			break
		}
		f.now = at
		f.fire(at)
	}
	f.now = target
}

// Waiters reports how many After calls have not fired yet.
func (f *FakeClock) Waiters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}

func (f *FakeClock) nextEvent(limit time.Time) (time.Time, bool) {
	var earliest time.Time
	found := false
	consider := func(t time.Time) {
		if t.After(limit) {
			return
		}
		if !found || t.Before(earliest) {
			earliest, found = t, true
		}
	}
	for _, t := range f.tickers {
		consider(t.next)
	}
	for _, w := range f.waiters {
		consider(w.at)
	}
	return earliest, found
}

func (f *FakeClock) fire(at time.Time) {
	for _, t := range f.tickers {
		if t.next.Equal(at) {
			select {
			case t.ch <- at:
			default:
			}
			t.next = t.next.Add(t.period)
		}
	}
	kept := f.waiters[:0]
	for _, w := range f.waiters {
		if w.at.After(at) {
			kept = append(kept, w)
			continue
		}
		w.ch <- at
	}
	f.waiters = kept
}

type fakeTicker struct {
	clock  *FakeClock
	period time.Duration
	next   time.Time
	ch     chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	f := t.clock
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, other := range f.tickers {
		if other == t {
			f.tickers = append(f.tickers[:i], f.tickers[i+1:]...)
			return
		}
	}
}
