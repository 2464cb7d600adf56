// Package version holds build-time identification for the lintsched
// binary, set via linker flags at build time (-ldflags "-X
// github.com/corvid-systems/lintsched/pkg/version.Version=...").
package version

// Version, Commit, and BuildDate are overridden at build time. Their
// zero values identify an unreleased development build.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String formats a single-line identifier suitable for --version output.
func String() string {
	return Version + " (commit " + Commit + ", built " + BuildDate + ")"
}
