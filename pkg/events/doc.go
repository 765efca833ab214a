// Package events provides a synchronous publish/subscribe bus.
//
// Handlers are registered per event type and invoked in registration order
// on the goroutine that calls [Bus.Emit]. A handler registered with
// [Bus.One] is removed before it runs, so re-entrant emission from inside
// the handler does not trigger it again.
//
// Go functions are not comparable, so [Bus.On] and [Bus.One] return a
// [*Subscription] handle which is what [Bus.Off] removes.
//
// # Usage
//
//	bus := events.New()
//	sub := bus.On("updateready", func(e events.Event) { ... })
//	bus.Emit("updateready")
//	bus.Off("updateready", sub)
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package events
