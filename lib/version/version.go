// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// These variables are set via -ldflags at build time:
//
//	go build -ldflags "-X github.com/bureau-foundation/tapecat/lib/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version. This is set manually for releases.
	Version = "0.1.0-dev"
)

var stampOnce sync.Once

// stamp fills unset build variables from the toolchain's VCS stamp.
func stamp() {
	stampOnce.Do(func() {
		if GitCommit != "unknown" {
			return
		}
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				GitCommit = setting.Value
				if len(GitCommit) > 7 {
					GitCommit = GitCommit[:7]
				}
			case "vcs.modified":
				GitDirty = setting.Value
			case "vcs.time":
				if BuildTime == "unknown" {
					BuildTime = setting.Value
				}
			}
		}
	})
}

// Info returns a formatted version string suitable for --version output.
func Info() string {
	stamp()
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}

// Full returns detailed version information including Go version.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// Commit returns the git commit SHA.
func Commit() string {
	stamp()
	return GitCommit
}
