// Package version exposes build metadata injected through -ldflags.
package version

import "fmt"

// Set with -ldflags "-X github.com/MeKo-Tech/plotmeter/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// String formats the build metadata for `plotmeter version`.
func String() string {
	return fmt.Sprintf("plotmeter %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
