package nanny

import (
	"github.com/bft-labs/cachenanny/pkg/appcache"
	"github.com/bft-labs/cachenanny/pkg/log"
	"github.com/bft-labs/cachenanny/pkg/state"
)

// Option configures optional behavior of a Manager.
type Option func(*options)

type options struct {
	logger       log.Logger
	flags        state.FlagStore
	reachability appcache.Reachability
	onFatal      func(error)
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
		flags:  state.NewMemoryFlagStore(false),
	}
}

// WithLogger sets a logger. If not provided, nothing is logged.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithFlagStore sets the store that remembers whether an earlier session
// already ran. If not provided, every Manager treats its session as the
// first one.
func WithFlagStore(store state.FlagStore) Option {
	return func(o *options) {
		if store != nil {
			o.flags = store
		}
	}
}

// WithReachability subscribes the Manager to host online/offline signals.
// Each signal triggers an update check.
func WithReachability(r appcache.Reachability) Option {
	return func(o *options) {
		o.reachability = r
	}
}

// WithFatalHandler receives the SetupError raised when the fallback
// resource fails to load. Without a handler the Manager panics with it.
func WithFatalHandler(fn func(error)) Option {
	return func(o *options) {
		o.onFatal = fn
	}
}
