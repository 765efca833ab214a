package appcache

import "errors"

// Status is the state of the cache.
type Status int

const (
	StatusUncached Status = iota
	StatusIdle
	StatusChecking
	StatusDownloading
	StatusUpdateReady
	StatusObsolete
)

// String returns the canonical upper-case name.
func (s Status) String() string {
	switch s {
	case StatusUncached:
		return "UNCACHED"
	case StatusIdle:
		return "IDLE"
	case StatusChecking:
		return "CHECKING"
	case StatusDownloading:
		return "DOWNLOADING"
	case StatusUpdateReady:
		return "UPDATEREADY"
	case StatusObsolete:
		return "OBSOLETE"
	default:
		return "UNKNOWN"
	}
}

// Native event types emitted by a Cache.
const (
	EventChecking    = "checking"
	EventError       = "error"
	EventNoUpdate    = "noupdate"
	EventDownloading = "downloading"
	EventProgress    = "progress"
	EventUpdateReady = "updateready"
	EventCached      = "cached"
	EventObsolete    = "obsolete"
)

// Event is a native cache event.
type Event struct {
	Type string

	// Loaded and Total are set on progress events.
	Loaded int
	Total  int

	// Err is set on error events when the cause is known.
	Err error
}

// Common cache errors.
var (
	// ErrObsolete is returned by Update once the manifest is gone.
	ErrObsolete = errors.New("appcache: cache is obsolete")

	// ErrInvalidState is returned when an operation does not apply to the
	// current status, e.g. SwapCache without a staged update.
	ErrInvalidState = errors.New("appcache: invalid state")

	// ErrLoaderFailed is returned when the fallback resource cannot be loaded.
	ErrLoaderFailed = errors.New("appcache: fallback resource failed to load")
)

// Cache is the offline resource cache.
type Cache interface {
	// Supported reports whether the environment provides a usable cache.
	Supported() bool

	// Status returns the current status.
	Status() Status

	// Update requests an update check. Progress is reported through events.
	Update() error

	// SwapCache activates a downloaded update.
	SwapCache() error

	// Subscribe registers fn for native events and returns a function that
	// removes it.
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Loader loads the fallback resource used to associate an uncached
// environment with its cache. done is called exactly once, on the
// dispatcher, with the cache to use from then on or an error wrapping
// ErrLoaderFailed.
type Loader interface {
	Load(path string, done func(Cache, error))
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string, done func(Cache, error))

// Load calls f.
func (f LoaderFunc) Load(path string, done func(Cache, error)) { f(path, done) }

// Reachability reports host network transitions. These signals only
// prompt an update check; reachability state itself is derived from cache
// events.
type Reachability interface {
	Subscribe(fn func(online bool)) (unsubscribe func())
}
