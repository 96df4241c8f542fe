// Package version exposes build metadata. The release pipeline overrides
// these variables with -ldflags "-X ..." at build time.
package version

var (
	// Version is the release version, "dev" for local builds.
	Version = "dev"
	// Commit is the git commit the binary was built from.
	Commit = "unknown"
	// Date is the build timestamp.
	Date = "unknown"
)
