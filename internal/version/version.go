// Package version holds build-time version information.
package version

// Set via -ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns the full version string.
func String() string {
	if Commit == "none" {
		return Version
	}
	return Version + " (" + Commit + ", " + Date + ")"
}
