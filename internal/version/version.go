package version

import (
	"fmt"
	"runtime"
)

// Set by ldflags during build.
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

// String returns a single-line version banner.
func String() string {
	return fmt.Sprintf("snapsweep %s (commit %s, built %s, %s)",
		version, gitCommit, buildDate, runtime.Version())
}
