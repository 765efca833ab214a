// Package loop provides the serial run loop that a nanny and its cache
// share.
//
// Everything that touches a nanny.Manager runs on one [Dispatcher]: public
// calls, timer ticks, native cache events and loader completions. Each
// posted function runs to completion before the next one starts, so the
// manager needs no locks.
//
// # Usage
//
//	l := loop.New(logger, 64)
//	go l.Run(ctx)
//
//	// From other goroutines:
//	err := l.Call(ctx, func() { _ = manager.Start() })
//
//	// Recurring work, delivered on the loop:
//	t := l.Every(30*time.Second, func() { _ = manager.Update() })
//	defer t.Stop()
//
// # States
//
// A Loop moves Stopped -> Running -> Stopping -> Stopped exactly once.
// Posts made after it stopped are dropped.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package loop
