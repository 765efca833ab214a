package nanny

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bft-labs/cachenanny/pkg/appcache"
	"github.com/bft-labs/cachenanny/pkg/events"
	"github.com/bft-labs/cachenanny/pkg/log"
	"github.com/bft-labs/cachenanny/pkg/loop"
	"github.com/bft-labs/cachenanny/pkg/state"
)

// Manager supervises one offline cache. It is not safe for concurrent use:
// call it from the dispatcher its cache and scheduler deliver to.
type Manager struct {
	cfg          Config
	cache        appcache.Cache
	loader       appcache.Loader
	flags        state.FlagStore
	reachability appcache.Reachability
	logger       log.Logger
	onFatal      func(error)

	bus    *events.Bus
	setup  setupCoordinator
	poller *poller

	hasUpdate         bool
	hasNetworkError   bool
	isInitialDownload bool
	obsolete          bool
	updateDisabled    bool

	unsubscribe []func()
}

// New creates a Manager for cache. loader is used when the cache is still
// uncached at setup; sched arms the poll timer.
func New(cfg Config, cache appcache.Cache, loader appcache.Loader, sched loop.Scheduler, opts ...Option) (*Manager, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, fmt.Errorf("%w: scheduler is required", ErrInvalidConfig)
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager{
		cfg:          cfg,
		cache:        cache,
		loader:       loader,
		flags:        o.flags,
		reachability: o.reachability,
		logger:       o.logger,
		onFatal:      o.onFatal,
		bus:          events.New(),
	}
	if m.onFatal == nil {
		m.onFatal = func(err error) { panic(err) }
	}
	m.poller = newPoller(sched, m.tick)

	return m, nil
}

// IsSupported reports whether there is a usable cache.
func (m *Manager) IsSupported() bool {
	return m.cache != nil && m.cache.Supported()
}

// Start begins polling for updates. Before setup has finished the call is
// queued, setup is started if needed, and nil is returned; the queued call
// runs once setup completes. Calling Start while polling re-arms the timer
// with the interval that currently applies.
func (m *Manager) Start() error {
	if !m.IsSupported() {
		m.logger.Info("offline cache not supported")
		return ErrUnsupported
	}
	if m.setup.err != nil {
		return m.setup.err
	}
	if !m.setup.done {
		m.deferUntilSetup("start", m.Start)
		return nil
	}
	if m.obsolete {
		return ErrObsolete
	}

	m.Stop()

	interval := m.cfg.CheckInterval
	if m.hasNetworkError {
		interval = m.cfg.OfflineCheckInterval
	}
	m.poller.start(interval)

	m.logger.Debug("polling started", log.Duration("interval", interval))
	m.bus.Emit(EventStart)
	return nil
}

// Stop halts polling. It is a no-op when not polling.
func (m *Manager) Stop() {
	if !m.poller.running() {
		return
	}
	m.poller.stop()

	m.logger.Debug("polling stopped")
	m.bus.Emit(EventStop)
}

// Update asks the cache to check for an update. Before setup has finished
// the call is queued and nil is returned. If the cache rejects the request
// updates are disabled for the rest of the Manager's life.
func (m *Manager) Update() error {
	if !m.IsSupported() {
		return ErrUnsupported
	}
	if m.setup.err != nil {
		return m.setup.err
	}
	if m.updateDisabled {
		return ErrUpdateDisabled
	}
	if !m.setup.done {
		m.deferUntilSetup("update", m.Update)
		return nil
	}

	if err := m.cache.Update(); err != nil {
		m.updateDisabled = true
		m.logger.Warn("update request rejected, disabling updates", log.Err(err))
		return fmt.Errorf("nanny: update: %w", err)
	}

	m.bus.Emit(EventUpdate)
	return nil
}

func (m *Manager) tick() {
	if err := m.Update(); err != nil {
		m.logger.Debug("scheduled update failed", log.Err(err))
	}
}

// IsCheckingForUpdates reports whether polling is active.
func (m *Manager) IsCheckingForUpdates() bool {
	return m.poller.running()
}

// HasUpdate reports whether an update has been fully downloaded. It is
// applied on next load.
func (m *Manager) HasUpdate() bool {
	return m.hasUpdate
}

// HasNetworkError reports whether the last cache check failed to reach
// the manifest.
func (m *Manager) HasNetworkError() bool {
	return m.hasNetworkError
}

// IsInitialDownload reports whether the first-ever download is in progress.
func (m *Manager) IsInitialDownload() bool {
	return m.isInitialDownload
}

// SetupDone reports whether setup has completed.
func (m *Manager) SetupDone() bool {
	return m.setup.done
}

// SetupPending reports whether setup is in flight.
func (m *Manager) SetupPending() bool {
	return m.setup.pending
}

// PollInterval returns the interval of the armed timer, or zero.
func (m *Manager) PollInterval() time.Duration {
	return m.poller.interval
}

// Status is a point-in-time view of a Manager.
type Status struct {
	Supported       bool          `json:"supported"`
	SetupDone       bool          `json:"setup_done"`
	SetupPending    bool          `json:"setup_pending"`
	Checking        bool          `json:"checking"`
	HasUpdate       bool          `json:"has_update"`
	NetworkError    bool          `json:"network_error"`
	InitialDownload bool          `json:"initial_download"`
	Obsolete        bool          `json:"obsolete"`
	UpdateDisabled  bool          `json:"update_disabled"`
	PollInterval    time.Duration `json:"poll_interval"`
	CacheStatus     string        `json:"cache_status"`
}

// Snapshot returns the current Status.
func (m *Manager) Snapshot() Status {
	s := Status{
		Supported:       m.IsSupported(),
		SetupDone:       m.setup.done,
		SetupPending:    m.setup.pending,
		Checking:        m.poller.running(),
		HasUpdate:       m.hasUpdate,
		NetworkError:    m.hasNetworkError,
		InitialDownload: m.isInitialDownload,
		Obsolete:        m.obsolete,
		UpdateDisabled:  m.updateDisabled,
		PollInterval:    m.poller.interval,
	}
	if s.Supported {
		s.CacheStatus = m.cache.Status().String()
	}
	return s
}

// On registers a persistent event handler.
func (m *Manager) On(typ string, fn events.Handler) *events.Subscription {
	return m.bus.On(typ, fn)
}

// One registers a handler removed after its first invocation.
func (m *Manager) One(typ string, fn events.Handler) *events.Subscription {
	return m.bus.One(typ, fn)
}

// Off removes event handlers; see events.Bus.Off.
func (m *Manager) Off(typ string, subs ...*events.Subscription) {
	m.bus.Off(typ, subs...)
}

// Get returns the value of a named option.
func (m *Manager) Get(name string) (any, error) {
	switch name {
	case OptionLoaderPath:
		return m.cfg.LoaderPath, nil
	case OptionCheckInterval:
		return m.cfg.CheckInterval, nil
	case OptionOfflineCheckInterval:
		return m.cfg.OfflineCheckInterval, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOption, name)
	}
}

// Set changes a named option. Intervals accept a time.Duration, an integer
// number of milliseconds or a duration string, and take effect the next
// time polling starts.
func (m *Manager) Set(name string, value any) error {
	switch name {
	case OptionLoaderPath:
		s, ok := value.(string)
		if !ok || s == "" {
			return fmt.Errorf("%w: %s must be a non-empty string", ErrInvalidOption, name)
		}
		m.cfg.LoaderPath = s
	case OptionCheckInterval:
		d, err := toInterval(name, value)
		if err != nil {
			return err
		}
		m.cfg.CheckInterval = d
	case OptionOfflineCheckInterval:
		d, err := toInterval(name, value)
		if err != nil {
			return err
		}
		m.cfg.OfflineCheckInterval = d
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOption, name)
	}

	m.logger.Debug("option changed", log.String("name", name), log.Any("value", value))
	return nil
}

// Config returns a copy of the current options.
func (m *Manager) Config() Config {
	return m.cfg
}

// Close stops polling and unsubscribes from the cache and reachability
// source. The Manager keeps its flags but receives no more events.
func (m *Manager) Close() {
	m.Stop()
	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil
}

func toInterval(name string, value any) (time.Duration, error) {
	var d time.Duration
	switch v := value.(type) {
	case time.Duration:
		d = v
	case int:
		d = time.Duration(v) * time.Millisecond
	case int64:
		d = time.Duration(v) * time.Millisecond
	case float64:
		d = time.Duration(v * float64(time.Millisecond))
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			ms, convErr := strconv.Atoi(v)
			if convErr != nil {
				return 0, fmt.Errorf("%w: %s: %v", ErrInvalidOption, name, err)
			}
			parsed = time.Duration(ms) * time.Millisecond
		}
		d = parsed
	default:
		return 0, fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidOption, name, value)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalidOption, name)
	}
	return d, nil
}
