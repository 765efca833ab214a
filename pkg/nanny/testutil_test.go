package nanny

import (
	"testing"
	"time"

	"github.com/bft-labs/cachenanny/pkg/appcache"
	"github.com/bft-labs/cachenanny/pkg/events"
	"github.com/bft-labs/cachenanny/pkg/loop"
	"github.com/bft-labs/cachenanny/pkg/state"
)

// fakeCache is a scripted appcache.Cache. Events are delivered
// synchronously by fire.
type fakeCache struct {
	supported bool
	status    appcache.Status

	updateErr   error
	updateCalls int

	swapErr   error
	swapPanic bool
	swapCalls int

	handlers map[int]func(appcache.Event)
	nextID   int
}

func newFakeCache(status appcache.Status) *fakeCache {
	return &fakeCache{
		supported: true,
		status:    status,
		handlers:  make(map[int]func(appcache.Event)),
	}
}

func (c *fakeCache) Supported() bool         { return c.supported }
func (c *fakeCache) Status() appcache.Status { return c.status }

func (c *fakeCache) Update() error {
	c.updateCalls++
	return c.updateErr
}

func (c *fakeCache) SwapCache() error {
	c.swapCalls++
	if c.swapPanic {
		panic("swap race")
	}
	return c.swapErr
}

func (c *fakeCache) Subscribe(fn func(appcache.Event)) func() {
	id := c.nextID
	c.nextID++
	c.handlers[id] = fn
	return func() { delete(c.handlers, id) }
}

func (c *fakeCache) fire(typ string) {
	ev := appcache.Event{Type: typ}
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.handlers[id]; ok {
			fn(ev)
		}
	}
}

// manualScheduler records timers; tests tick them by hand.
type manualScheduler struct {
	timers []*manualTimer
}

type manualTimer struct {
	interval time.Duration
	fn       func()
	stopped  bool
	stops    int
}

func (t *manualTimer) Stop() {
	t.stops++
	t.stopped = true
}

func (s *manualScheduler) Every(d time.Duration, fn func()) loop.Timer {
	t := &manualTimer{interval: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) active() []*manualTimer {
	var out []*manualTimer
	for _, t := range s.timers {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

// tick fires every active timer once.
func (s *manualScheduler) tick() {
	for _, t := range s.active() {
		if !t.stopped {
			t.fn()
		}
	}
}

// deferredLoader holds the completion until the test resolves it.
type deferredLoader struct {
	paths []string
	done  func(appcache.Cache, error)
}

func (l *deferredLoader) Load(path string, done func(appcache.Cache, error)) {
	l.paths = append(l.paths, path)
	l.done = done
}

// eventLog records every event type a Manager emits.
type eventLog struct {
	names []string
}

func (e *eventLog) attach(m *Manager) {
	for _, typ := range EventTypes() {
		m.On(typ, func(ev events.Event) { e.names = append(e.names, ev.Type) })
	}
}

func (e *eventLog) count(name string) int {
	n := 0
	for _, got := range e.names {
		if got == name {
			n++
		}
	}
	return n
}

func (e *eventLog) reset() { e.names = nil }

var testConfig = Config{
	LoaderPath:           "/loader.html",
	CheckInterval:        10 * time.Second,
	OfflineCheckInterval: time.Minute,
}

// newTestManager builds a Manager whose first-run marker is already set.
func newTestManager(t *testing.T, cache appcache.Cache, loader appcache.Loader, opts ...Option) (*Manager, *manualScheduler, *eventLog) {
	t.Helper()
	sched := &manualScheduler{}
	opts = append([]Option{WithFlagStore(state.NewMemoryFlagStore(true))}, opts...)
	m, err := New(testConfig, cache, loader, sched, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	log := &eventLog{}
	log.attach(m)
	return m, sched, log
}
