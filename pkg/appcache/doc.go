// Package appcache defines the offline resource cache that a nanny supervises.
//
// The cache itself is an external collaborator. This package only describes
// the surface the nanny consumes: a support probe, a status probe, an update
// request, a cache swap, a native event stream and a one-time fallback load.
// [github.com/bft-labs/cachenanny/pkg/httpcache] is an implementation that
// keeps resources listed in a manifest on local disk.
//
// Implementations must deliver events and loader completions on the
// dispatcher they were given so the nanny sees them serialized with its
// own timer ticks.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package appcache
