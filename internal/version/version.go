// Package version carries build metadata set with -ldflags -X at link time.
package version

import "fmt"

var (
	// Version is the release tag, or "dev" for local builds.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the RFC 3339 build timestamp.
	BuildTime = "unknown"
)

// Info is the build metadata as served by /api/version.
type Info struct {
	Version   string `json:"version"`
	GitSHA    string `json:"git_sha"`
	BuildTime string `json:"build_time"`
}

// Get returns the current build metadata.
func Get() Info {
	return Info{Version: Version, GitSHA: GitSHA, BuildTime: BuildTime}
}

// String formats the metadata for `platetemp --version`.
func (i Info) String() string {
	return fmt.Sprintf("platetemp %s\ncommit: %s\nbuilt: %s\n", i.Version, i.GitSHA, i.BuildTime)
}
