// Package version holds build-time version information.
package version

// Set via -ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String returns the human-readable version.
func String() string {
	return Version + " (" + Commit + ", " + Date + ")"
}
