package nanny

import (
	"fmt"

	"github.com/bft-labs/cachenanny/pkg/appcache"
	"github.com/bft-labs/cachenanny/pkg/log"
)

// handleNative dispatches a native cache event. updateready goes through the
// update-ready handler first and the success handler second.
func (m *Manager) handleNative(ev appcache.Event) {
	m.logger.Debug("cache event", log.Event(ev.Type))

	switch ev.Type {
	case appcache.EventUpdateReady:
		m.handleUpdateReady()
		m.handleSuccess(ev)
	case appcache.EventError:
		m.handleNetworkError(ev)
	case appcache.EventObsolete:
		m.handleObsolete(ev)
	case appcache.EventNoUpdate, appcache.EventCached, appcache.EventProgress, appcache.EventDownloading:
		m.handleSuccess(ev)
	case appcache.EventChecking:
	default:
		m.logger.Debug("ignoring unknown cache event", log.Event(ev.Type))
	}
}

func (m *Manager) handleUpdateReady() {
	if !m.hasUpdate {
		m.hasUpdate = true
		m.bus.Emit(EventUpdateReady)
	}

	// Some engines fail the swap right after updateready; the update is
	// still applied on next load.
	if err := m.swapCache(); err != nil {
		m.logger.Debug("cache swap failed, ignoring", log.Err(err))
	}
}

func (m *Manager) swapCache() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("swap cache panicked: %v", r)
		}
	}()
	return m.cache.SwapCache()
}

func (m *Manager) handleNetworkError(ev appcache.Event) {
	m.bus.Emit(EventError, ev)

	if m.hasNetworkError {
		return
	}
	m.hasNetworkError = true

	// Private browsing modes report support but never cache anything;
	// that is not being offline.
	if m.cache.Status() == appcache.StatusUncached {
		m.logger.Debug("network error while uncached, not switching to offline")
		return
	}

	m.logger.Warn("cache unreachable, switching to offline interval",
		log.Duration("interval", m.cfg.OfflineCheckInterval),
		log.Err(ev.Err),
	)
	m.restartPolling()
	m.bus.Emit(EventOffline)
}

// handleObsolete treats a removed manifest as an applied update, not a failure.
func (m *Manager) handleObsolete(ev appcache.Event) {
	m.bus.Emit(EventObsolete, ev)

	if m.hasNetworkError {
		m.hasNetworkError = false
		m.bus.Emit(EventOnline)
	}

	// The cache rejects update requests from now on.
	m.obsolete = true
	m.updateDisabled = true
	m.logger.Info("cache obsolete, polling stopped")
	m.Stop()
}

func (m *Manager) handleSuccess(ev appcache.Event) {
	prefix := ""
	if m.isInitialDownload {
		prefix = InitPrefix
		if ev.Type == appcache.EventCached {
			m.isInitialDownload = false
		}
	}
	m.bus.Emit(prefix+ev.Type, ev)

	if !m.hasNetworkError {
		return
	}
	m.hasNetworkError = false

	m.logger.Info("cache reachable again, switching to online interval",
		log.Duration("interval", m.cfg.CheckInterval))
	m.restartPolling()
	m.bus.Emit(EventOnline)
}

// handleReachability forces a check on host online/offline signals. The
// network-error flag is left to the cache events.
func (m *Manager) handleReachability(online bool) {
	m.logger.Debug("host reachability changed", log.Bool("online", online))
	if err := m.Update(); err != nil {
		m.logger.Debug("update after reachability change failed", log.Err(err))
	}
}

func (m *Manager) restartPolling() {
	if err := m.Start(); err != nil {
		m.logger.Debug("restart polling failed", log.Err(err))
	}
}
