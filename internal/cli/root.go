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


package cli

import (
	"github.com/spf13/cobra"

	"github.com/tombee/runcontrol/internal/commands/shared"
)

// SetVersion sets the version information (called from main).
func SetVersion(v, c, b string) {
	shared.SetBuildInfo(v, c, b)
}

// NewRootCommand creates the root Cobra command for runctl. Subcommands are
// added by main.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runctl",
		Short: "runctl - debugger run-control sessions",
		Long: `runctl drives run-control sessions: it tracks whether a debugged process
is suspended, running, stepping or gone, over an asynchronous GDB/MI style
protocol.

Run 'runctl replay <scenario.yaml>' to replay a scripted session against a
simulated target.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // Errors are printed by HandleExitError
	}

	shared.BindGlobalFlags(cmd.PersistentFlags())

	return cmd
}

// HandleExitError prints err and exits with its exit code.
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
