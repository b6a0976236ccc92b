// Package version carries build metadata stamped in with -ldflags.
package version

import "fmt"

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version information
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// UserAgent identifies scanbridge clients to a remote scanner.
func UserAgent() string {
	return "scanbridge/" + Version
}

// String formats the full build information for --version.
func String() string {
	return fmt.Sprintf("scanbridge version %s\nCommit: %s\nDate: %s\n", Version, GitCommit, BuildDate)
}
