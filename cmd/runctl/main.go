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


package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tombee/runcontrol/internal/cli"
	"github.com/tombee/runcontrol/internal/commands/journal"
	"github.com/tombee/runcontrol/internal/commands/replay"
	versioncmd "github.com/tombee/runcontrol/internal/commands/version"
	"github.com/tombee/runcontrol/internal/log"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// Commands build their own loggers from config; this covers everything
	// that logs before that.
	slog.SetDefault(log.New(log.FromEnv()))

	// Set version information from build-time ldflags
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()

	// Session commands
	rootCmd.AddCommand(replay.NewCommand())
	rootCmd.AddCommand(journal.NewCommand())

	// Version command
	rootCmd.AddCommand(versioncmd.NewCommand())

	// Custom help command with JSON support
	rootCmd.SetHelpCommand(cli.NewHelpCommand(rootCmd))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		cli.HandleExitError(err)
	}
}
