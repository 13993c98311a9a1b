package observability

import "runtime"

// Set via -ldflags "-X .../observability.Version=v1.2.3" at release time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "" // RFC3339 UTC
)

// BuildInfo is what /api/version and the build_info series report.
type BuildInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date,omitempty"`
	GoVersion string `json:"goVersion"`
}

func Build() BuildInfo {
	return BuildInfo{Name: "wormaceptor", Version: Version, Commit: Commit, Date: Date, GoVersion: runtime.Version()}
}

// String is the short form printed by `wormaceptor --version`.
func (b BuildInfo) String() string {
	s := b.Version + " (" + b.Commit
	if b.Date != "" {
		s += ", " + b.Date
	}
	return s + ", " + b.GoVersion + ")"
}
