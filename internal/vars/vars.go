// Package vars carries the release identity stamped into the binary with
//
//	-ldflags "-X github.com/woozymasta/bedrock-status/internal/vars.Version=v1.2.3 ..."
//
// and the strings derived from it for remote services.
package vars

import (
	"fmt"
	"io"
	"os"
	"time"
)

// License of the project.
const License = "MIT"

var (
	Name    = "bedrock-status"
	URL     = "https://github.com/woozymasta/bedrock-status"
	Version = "dev"
	Commit  = "unknown"

	// built is the RFC3339 build time set by the linker, empty for local builds.
	built string
)

// BuildInfo is served by /api/version.
type BuildInfo struct {
	Built   *time.Time `json:"built,omitempty"`
	Name    string     `json:"name"`
	Version string     `json:"version"`
	Commit  string     `json:"commit"`
	URL     string     `json:"url"`
	License string     `json:"license"`
}

// Info collects the stamped values. Built stays nil when the build time is
// missing or unparsable.
func Info() BuildInfo {
	info := BuildInfo{
		Name:    Name,
		Version: Version,
		Commit:  CommitShort(),
		URL:     URL,
		License: License,
	}
	if t, err := time.Parse(time.RFC3339, built); err == nil {
		t = t.UTC()
		info.Built = &t
	}

	return info
}

// Print writes the --version output to stdout.
func Print() {
	write(os.Stdout, Info())
}

func write(w io.Writer, info BuildInfo) {
	_, _ = fmt.Fprintf(w, "%s %s (%s)\n", info.Name, info.Version, info.Commit)
	if info.Built != nil {
		_, _ = fmt.Fprintf(w, "built %s\n", info.Built.Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(w, "%s, %s license\n", info.URL, info.License)
}

// UserAgent is the bot identity Discord expects on gateway and REST requests.
func UserAgent() string {
	return fmt.Sprintf("DiscordBot (%s, %s)", URL, Version)
}

// CommitShort returns the first 7 characters of the git commit hash.
func CommitShort() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}

	return Commit
}
