// Package version reports build information for reportrag.
package version

import (
	"fmt"
	"runtime"
)

// Version is injected with -ldflags "-X github.com/Aman-CERP/reportrag/pkg/version.Version=...".
var Version = "dev"

// Build metadata, injected the same way as Version.
var (
	Commit = "unknown"
	Date   = "unknown"

	// GoVersion is the toolchain that built the binary.
	GoVersion = runtime.Version()
)

// BuildInfo is the JSON form of the build metadata.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns a one-line description.
func String() string {
	return fmt.Sprintf("reportrag %s (commit: %s, built: %s, go: %s)", Version, Commit, Date, GoVersion)
}

// Short returns the bare version.
func Short() string {
	return Version
}

// GetInfo returns the build metadata for the current platform.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
