// Package misc provides build identity helpers shared by all packages.
package misc

import "runtime/debug"

// Default values, overridden at link time for release builds.
var (
	appName = "folio"
	version = "0.0.0-dev"
	gitHash = ""
)

// GetAppName returns short program name used for logging and temporary files.
func GetAppName() string {
	return appName
}

// GetVersion returns program version.
func GetVersion() string {
	return version
}

// GetGitHash returns VCS revision the program was built from.
func GetGitHash() string {
	if gitHash != "" {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
