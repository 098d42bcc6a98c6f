// Package version holds build metadata injected with -ldflags.
package version

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the version line printed by `mw version`.
func String() string {
	return Version + " (commit " + Commit + ", built " + Date + ")"
}
