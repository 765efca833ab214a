package httpcache

// Version information for the httpcache module.
const (
	// Version is the current version of the httpcache module.
	Version = "1.0.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "1.0.0"
)
