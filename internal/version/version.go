// Package version holds build metadata injected with -ldflags.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for the CLI's -version flag.
func String() string {
	return fmt.Sprintf("lidarviz %s (commit %s, built %s)", Version, GitSHA, BuildTime)
}
