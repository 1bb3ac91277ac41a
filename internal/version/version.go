// Package version carries build metadata injected with -ldflags -X.
package version

import "fmt"

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String formats the build metadata for -version and startup logs.
func String(name string) string {
	return fmt.Sprintf("%s %s (%s, built %s)", name, Version, GitSHA, BuildTime)
}
