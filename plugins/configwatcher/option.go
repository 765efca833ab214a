package configwatcher

import (
	"context"

	"github.com/bft-labs/cachenanny/pkg/nanny"
)

// Dispatcher runs a function on the goroutine that owns the manager.
type Dispatcher interface {
	Call(ctx context.Context, fn func()) error
}

// ManagerTarget returns a Target that applies options to m through d.
// Restart only re-arms polling that is already running.
//
// Usage:
//
//	w := configwatcher.New(configwatcher.DefaultConfig())
//	err := w.Initialize(ctx, path, configwatcher.ManagerTarget(l, m))
func ManagerTarget(d Dispatcher, m *nanny.Manager) Target {
	return Target{
		Set: func(ctx context.Context, name string, value any) error {
			var setErr error
			if err := d.Call(ctx, func() { setErr = m.Set(name, value) }); err != nil {
				return err
			}
			return setErr
		},
		Restart: func(ctx context.Context) error {
			var startErr error
			err := d.Call(ctx, func() {
				if m.IsCheckingForUpdates() {
					startErr = m.Start()
				}
			})
			if err != nil {
				return err
			}
			return startErr
		},
	}
}
