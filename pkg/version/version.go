// Package version reports the build version of the soarsocket binaries.
//
// Set at compile time:
//
//	go build -ldflags "-X github.com/soarclient/soarsocket/pkg/version.tag=v1.0.0
//	  -X github.com/soarclient/soarsocket/pkg/version.commit=abc1234
//	  -X github.com/soarclient/soarsocket/pkg/version.date=2026-01-01"
package version

var (
	tag    = ""
	commit = "unknown"
	date   = "unknown"
)

// Info is the version triple served by the handshake endpoint.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Get returns the build info.
func Get() Info {
	return Info{Version: String(), Commit: commit, Date: date}
}

// String returns the tag, else the commit, else "dev".
func String() string {
	if tag != "" {
		return tag
	}
	if commit != "unknown" {
		return commit
	}
	return "dev"
}

// Full returns "tag (commit) built date" or a sensible fallback.
func Full() string {
	switch {
	case tag != "":
		return tag + " (" + commit + ") built " + date
	case commit != "unknown":
		return commit + " built " + date
	default:
		return "dev"
	}
}

// UserAgent identifies the Go client when dialing the server.
func UserAgent() string {
	return "soarclient/" + String()
}
