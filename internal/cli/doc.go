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


/*
Package cli provides the root command of runctl.

This package creates the Cobra command tree and handles global concerns
like version information, persistent flags, and exit codes. Individual
commands are implemented in the internal/commands subpackages.

# Command Tree

	runctl
	├── replay     Replay a scenario against a simulated target
	├── journal    Show recorded session events
	├── version    Show version
	└── help       Show help

# Global Flags

	--verbose, -v   Enable debug logging
	--quiet, -q     Suppress non-error output
	--json          Output in JSON format
	--config        Path to config file

# Exit Codes

	0   success
	1   a scenario step failed
	2   the scenario could not be loaded
	3   configuration error
	4   session not found
	70  internal error
*/
package cli
