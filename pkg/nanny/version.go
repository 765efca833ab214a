package nanny

import (
	"fmt"

	"github.com/bft-labs/cachenanny/pkg/appcache"
	"github.com/bft-labs/cachenanny/pkg/events"
	"github.com/bft-labs/cachenanny/pkg/log"
	"github.com/bft-labs/cachenanny/pkg/loop"
	"github.com/bft-labs/cachenanny/pkg/state"
)

// Version is the current version of the nanny module.
const Version = "1.0.0"

// ModuleVersions returns the versions of the modules a Manager is built from.
func ModuleVersions() map[string]string {
	return map[string]string{
		"nanny":    Version,
		"appcache": appcache.Version,
		"events":   events.Version,
		"loop":     loop.Version,
		"state":    state.Version,
		"log":      log.Version,
	}
}

// validateModuleVersions checks that all module versions are compatible.
func validateModuleVersions() error {
	modules := map[string]struct {
		version    string
		minVersion string
	}{
		"appcache": {appcache.Version, appcache.MinCompatibleVersion},
		"events":   {events.Version, events.MinCompatibleVersion},
		"loop":     {loop.Version, loop.MinCompatibleVersion},
		"state":    {state.Version, state.MinCompatibleVersion},
		"log":      {log.Version, log.MinCompatibleVersion},
	}

	for name, m := range modules {
		if !isVersionCompatible(m.version, m.minVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, m.version, m.minVersion)
		}
	}
	return nil
}

// isVersionCompatible reports whether version >= minVersion.
// Versions are "major.minor.patch".
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
