// Package state persists the first-run marker a nanny uses to tell the very
// first download apart from later ones.
//
// # Usage
//
//	store := state.NewFileFlagStore("/var/lib/cachenanny")
//	seen, err := store.Seen(ctx)
//	...
//	err = store.MarkSeen(ctx)
//
// [MemoryFlagStore] keeps the marker in memory for tests and for callers
// that do not want anything written to disk.
//
// # Version
//
// Current version: 2.0.0
// Minimum compatible version: 2.0.0
//
// See version.go for version constants that can be used programmatically.
package state
