// Package version exposes the build id and process start time reported by
// GET /api/version.
//
// Go 1.18+ automatically embeds VCS info (git commit, dirty flag, etc.)
// into the binary via runtime/debug.BuildInfo, so no -ldflags are needed.
// BuildID is initialized by a function call, so -ldflags "-X" cannot
// override it.
package version

import (
	"runtime/debug"
	"time"
)

// AppName is the application name used in Full, which feeds logging and
// the /api/health version string.
const AppName = "autoappdev"

// BuildID is the short git commit hash (8 chars) from build info.
// Set to "dev" when build info is unavailable (e.g., `go test`, non-git builds).
var BuildID = initBuildID()

// StartedAt is recorded at process init so /api/version can report uptime.
var StartedAt = time.Now()

func initBuildID() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 8 {
				return s.Value[:8]
			}
			return s.Value
		}
	}
	return "dev"
}

// Full returns "autoappdev/<build-id>" for use in logging.
func Full() string {
	return AppName + "/" + BuildID
}
