// Package version carries build metadata injected via -ldflags.
package version

import "fmt"

var (
	// Version is the release version, "dev" for local builds.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String returns a single-line summary suitable for startup logs.
func String() string {
	return fmt.Sprintf("%s (%s)", Version, GitSHA)
}
