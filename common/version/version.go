// Package version carries the build stamp printed at startup and exposed
// for support requests.
package version

// The defaults mark a from-source build; releases override them:
//
//	go build -ldflags "-X .../common/version.Version=v1.2.0 ..."
var (
	// Version is the release tag.
	Version = "v0.0.0-dev"

	// GitCommit is the commit the binary was built from.
	GitCommit = "unknown"

	// BuildTime is when the binary was built.
	BuildTime = "unknown"
)

// Info renders the stamp as a single log-friendly line.
func Info() string {
	return Version + " (" + GitCommit + ") built at " + BuildTime
}
