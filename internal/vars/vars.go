// Package vars carries build metadata injected with -ldflags "-X".
package vars

import (
	"fmt"
	"io"
	"strconv"
	"time"
)

// License of the project
const License = "AGPL-3.0"

// Set at link time. _revision and _buildTime arrive as strings and are parsed in init.
var (
	Name    = "Masterlist"
	Version = "dev"
	Commit  = "unknown"
	URL     = "https://github.com/woozymasta/masterlist"

	Revision  int
	BuildTime = time.Unix(0, 0).UTC()

	_revision  string
	_buildTime string
)

// BuildInfo describes the running binary.
// The public /api/version route serves the reduced form from Ver, operators get Info.
type BuildInfo struct {
	BuildTime   time.Time `json:"build_time,omitzero"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Commit      string    `json:"commit"`
	CommitShort string    `json:"commit_short,omitempty"`
	URL         string    `json:"url,omitempty"`
	License     string    `json:"license,omitempty"`
	Revision    int       `json:"revision,omitempty"`
}

func init() {
	if n, err := strconv.Atoi(_revision); err == nil {
		Revision = n
	}
	if t, err := time.Parse(time.RFC3339, _buildTime); err == nil {
		BuildTime = t.UTC()
	}
}

// Info returns every known build field.
func Info() BuildInfo {
	return BuildInfo{
		BuildTime:   BuildTime,
		Name:        Name,
		Version:     Version,
		Commit:      Commit,
		CommitShort: CommitShort(),
		URL:         URL,
		License:     License,
		Revision:    Revision,
	}
}

// Ver returns the fields safe to show to game clients.
func Ver() BuildInfo {
	return BuildInfo{
		Name:     Name,
		Version:  Version,
		Commit:   CommitShort(),
		Revision: Revision,
	}
}

// Print writes Info as aligned key/value lines, as shown by --version.
func Print(w io.Writer) {
	info := Info()
	_, _ = fmt.Fprintf(w, "%-9s %s\n%-9s %s\n%-9s %s (%s)\n%-9s %d\n%-9s %s\n%-9s %s\n",
		"name:", info.Name,
		"url:", info.URL,
		"version:", info.Version, info.CommitShort,
		"revision:", info.Revision,
		"built:", info.BuildTime.Format(time.RFC3339),
		"license:", info.License,
	)
}

// UserAgent identifies the application in outgoing HTTP requests.
func UserAgent() string {
	return Name + "/" + Version + " (+" + URL + ")"
}

// CommitShort returns the first 7 characters of the git commit hash.
func CommitShort() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}

	return Commit
}
