// Package version identifies the running allocation service build. The
// variables are overwritten at link time with -ldflags "-X".
package version

import (
	"fmt"
	"runtime"
)

// Service is the name the allocation service reports to tracing backends
// and to the portfolio and trade-execution collaborators it calls.
const Service = "stackmotive"

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func Get() Info {
	return Info{
		Service:   Service,
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// UserAgent is sent on outbound requests, e.g. "stackmotive/1.4.0 (a1b2c3d)".
func UserAgent() string {
	if GitCommit == "unknown" || GitCommit == "" {
		return fmt.Sprintf("%s/%s", Service, Version)
	}
	commit := GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s/%s (%s)", Service, Version, commit)
}
