// Package buildinfo carries version metadata stamped at link time.
package buildinfo

// Set via -ldflags at build time:
//
//	-X 'github.com/m3rciful/feedbackbot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/feedbackbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/feedbackbot/core/buildinfo.Date=2026-10-16T12:00:00Z'
var (
	Version = "dev"
	Commit  = "local"
	// Date is an RFC3339 timestamp, empty for local builds.
	Date = ""
)

// String formats the metadata for a startup banner.
func String() string {
	s := Version + " (" + Commit
	if Date != "" {
		s += ", " + Date
	}
	return s + ")"
}
