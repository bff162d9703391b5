// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package shared holds the global flags, exit codes and output helpers used
// by every runctl command.
package shared

import (
	"github.com/spf13/pflag"
)

// Globals holds the values of the persistent root flags.
type Globals struct {
	Verbose    bool
	Quiet      bool
	JSON       bool
	ConfigPath string
}

// BuildInfo is the version metadata injected at build time.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

var (
	globals Globals

	build = BuildInfo{
		Version:   "dev",
		Commit:    "unknown",
		BuildDate: "unknown",
	}
)

// BindGlobalFlags registers the persistent flags on fs.
func BindGlobalFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&globals.Verbose, "verbose", "v", false, "Enable debug logging")
	fs.BoolVarP(&globals.Quiet, "quiet", "q", false, "Suppress non-error output")
	fs.BoolVar(&globals.JSON, "json", false, "Output in JSON format")
	fs.StringVar(&globals.ConfigPath, "config", "", "Path to config file (default: ~/.config/runctl/config.yaml)")
}

// Global returns the current flag values.
func Global() Globals {
	return globals
}

// SetGlobalsForTest replaces the flag values and returns a function that
// restores them.
func SetGlobalsForTest(g Globals) (restore func()) {
	prev := globals
	globals = g
	return func() { globals = prev }
}

// SetBuildInfo sets the version information (called from main).
func SetBuildInfo(version, commit, buildDate string) {
	build = BuildInfo{Version: version, Commit: commit, BuildDate: buildDate}
}

// GetBuildInfo returns the version information.
func GetBuildInfo() BuildInfo {
	return build
}
