// Package buildinfo carries the version stamped into the binary.
//
// Release builds set the variables via -ldflags:
//
//	-X 'github.com/ilyosbek9531/expense-tracker-bot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/ilyosbek9531/expense-tracker-bot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/ilyosbek9531/expense-tracker-bot/core/buildinfo.Date=2026-01-30T12:00:00Z'
package buildinfo

import (
	"runtime/debug"
	"sync"
)

var (
	Version = "dev"
	Commit  = "local"
	// Date is the RFC3339 build timestamp, empty for local builds.
	Date = ""
)

var fillOnce sync.Once

// fill falls back to the VCS stamp the go tool embeds when ldflags were not set.
func fill() {
	fillOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			Version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if Commit == "local" && s.Value != "" {
					Commit = short(s.Value)
				}
			case "vcs.time":
				if Date == "" {
					Date = s.Value
				}
			}
		}
	})
}

func short(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// String renders "version (commit)".
func String() string {
	fill()
	return Version + " (" + Commit + ")"
}

// Revision returns the commit after the VCS fallback.
func Revision() string {
	fill()
	return Commit
}
