package core

import "fmt"

// Build metadata, injected with:
//
//	go build -ldflags "-X syncmonitor/core.Version=v1.0.0 -X syncmonitor/core.GitCommit=$(git rev-parse --short HEAD)" .
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GetVersionInfo returns "version (commit, built time)".
func GetVersionInfo() string {
	return fmt.Sprintf("%s (%s, built %s)", Version, GitCommit, BuildTime)
}
