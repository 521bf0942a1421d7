// Package version reports what build is running.
package version

// Set at build time via -ldflags, e.g.
//
//	go build -ldflags "-X github.com/otiai10/playerauth/internal/version.CommitHash=abc1234 -X github.com/otiai10/playerauth/internal/version.Version=v1.2.0"
var (
	// CommitHash is the git commit hash of the build
	CommitHash = "unknown"
	// Version is the release tag of the build
	Version = "dev"
)
