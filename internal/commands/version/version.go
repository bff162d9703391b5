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


// Package version implements the runctl version command.
package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tombee/runcontrol/internal/commands/shared"
)

// Response is the JSON output of the version command.
type Response struct {
	shared.JSONResponse
	shared.BuildInfo
	GoVersion string `json:"go_version"`
}

// NewCommand creates the version command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date for runctl.`,
		Args:  cobra.NoArgs,
		RunE:  runVersion,
	}
}

func runVersion(cmd *cobra.Command, _ []string) error {
	info := shared.GetBuildInfo()

	if shared.Global().JSON {
		return shared.EmitJSON(cmd.OutOrStdout(), Response{
			JSONResponse: shared.NewJSONResponse("version", true),
			BuildInfo:    info,
			GoVersion:    runtime.Version(),
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "runctl version %s\n", info.Version)
	fmt.Fprintf(out, "  %s %s\n", shared.RenderLabel("commit:    "), info.Commit)
	fmt.Fprintf(out, "  %s %s\n", shared.RenderLabel("build date:"), info.BuildDate)
	fmt.Fprintf(out, "  %s %s\n", shared.RenderLabel("go:        "), runtime.Version())
	return nil
}
