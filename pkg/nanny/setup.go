package nanny

import (
	"context"
	"fmt"

	"github.com/bft-labs/cachenanny/pkg/appcache"
	"github.com/bft-labs/cachenanny/pkg/log"
)

// pendingCall is an operation requested before setup finished.
type pendingCall struct {
	name string
	run  func() error
}

// setupCoordinator makes setup run at most once and replays the calls
// queued while it was in flight.
type setupCoordinator struct {
	done    bool
	pending bool
	err     error
	queue   []pendingCall
}

// enqueue queues call and reports whether the caller has to start setup.
func (c *setupCoordinator) enqueue(call pendingCall) bool {
	c.queue = append(c.queue, call)
	if c.pending {
		return false
	}
	c.pending = true
	return true
}

// finish marks setup done and hands back the queued calls in FIFO order.
func (c *setupCoordinator) finish() []pendingCall {
	c.pending = false
	c.done = true
	queue := c.queue
	c.queue = nil
	return queue
}

// fail records err and returns the number of dropped calls.
func (c *setupCoordinator) fail(err error) int {
	c.pending = false
	c.err = err
	n := len(c.queue)
	c.queue = nil
	return n
}

// abort drops the queue so a later call can try again.
func (c *setupCoordinator) abort() {
	c.pending = false
	c.queue = nil
}

func (m *Manager) deferUntilSetup(name string, run func() error) {
	m.logger.Debug("setup not finished, deferring call", log.String("call", name))
	if m.setup.enqueue(pendingCall{name: name, run: run}) {
		m.runSetup()
	}
}

func (m *Manager) runSetup() {
	if !m.IsSupported() {
		m.updateDisabled = true
		m.setup.abort()
		return
	}

	ctx := context.Background()
	seen, err := m.flags.Seen(ctx)
	if err != nil {
		m.logger.Warn("failed to read first-run marker", log.Err(err))
	}
	m.isInitialDownload = err == nil && !seen
	if err := m.flags.MarkSeen(ctx); err != nil {
		m.logger.Warn("failed to write first-run marker", log.Err(err))
	}

	status := m.cache.Status()
	if status != appcache.StatusUncached {
		m.logger.Debug("cache already associated", log.String("status", status.String()))
		m.finishSetup()
		return
	}

	m.logger.Info("cache uncached, loading fallback resource",
		log.String("loader_path", m.cfg.LoaderPath))

	if m.loader == nil {
		m.fallbackLoaded(nil, fmt.Errorf("%w: no loader configured", appcache.ErrLoaderFailed))
		return
	}
	m.loader.Load(m.cfg.LoaderPath, m.fallbackLoaded)
}

func (m *Manager) fallbackLoaded(cache appcache.Cache, err error) {
	if err != nil {
		serr := &SetupError{LoaderPath: m.cfg.LoaderPath, Err: err}
		dropped := m.setup.fail(serr)
		m.logger.Error("fallback resource could not be loaded",
			log.String("loader_path", m.cfg.LoaderPath),
			log.Int("dropped_calls", dropped),
			log.Err(err),
		)
		m.onFatal(serr)
		return
	}

	// The loaded resource comes with its own cache handle.
	if cache != nil {
		m.cache = cache
	}
	m.finishSetup()
}

func (m *Manager) finishSetup() {
	m.subscribe()

	queue := m.setup.finish()
	m.logger.Info("setup finished",
		log.Bool("initial_download", m.isInitialDownload),
		log.Int("replayed_calls", len(queue)),
	)

	for _, call := range queue {
		if err := call.run(); err != nil {
			m.logger.Warn("deferred call failed", log.String("call", call.name), log.Err(err))
		}
	}
}

func (m *Manager) subscribe() {
	m.unsubscribe = append(m.unsubscribe, m.cache.Subscribe(m.handleNative))
	if m.reachability != nil {
		m.unsubscribe = append(m.unsubscribe, m.reachability.Subscribe(m.handleReachability))
	}
}
