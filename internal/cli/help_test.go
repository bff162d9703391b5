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
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/runcontrol/internal/commands/journal"
	"github.com/tombee/runcontrol/internal/commands/replay"
	"github.com/tombee/runcontrol/internal/commands/shared"
	"github.com/tombee/runcontrol/internal/commands/version"
)

// newTree builds the runctl command tree the way main does.
func newTree() *cobra.Command {
	root := NewRootCommand()
	root.AddCommand(replay.NewCommand(), journal.NewCommand(), version.NewCommand())
	hidden := &cobra.Command{Use: "internal-debug", Hidden: true, Run: func(*cobra.Command, []string) {}}
	root.AddCommand(hidden)
	root.SetHelpCommand(NewHelpCommand(root))
	return root
}

func runHelp(t *testing.T, globals shared.Globals, args ...string) (string, error) {
	t.Helper()
	// Binding the global flags resets them, so build the tree first.
	root := newTree()
	defer shared.SetGlobalsForTest(globals)()

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{"help"}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestHelp_JSONListsCommands(t *testing.T) {
	out, err := runHelp(t, shared.Globals{}, "--json")
	require.NoError(t, err)

	var resp HelpResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, shared.JSONVersion, resp.Version)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Command)

	var names []string
	for _, c := range resp.Commands {
		names = append(names, c.Name)
	}
	assert.Subset(t, names, []string{"journal", "replay", "version"})
	assert.NotContains(t, names, "internal-debug")
	assert.IsNonDecreasing(t, names)

	var global []string
	for _, f := range resp.GlobalFlags {
		global = append(global, f.Name)
	}
	assert.ElementsMatch(t, []string{"verbose", "quiet", "json", "config"}, global)
}

func TestHelp_JSONDescribesCommand(t *testing.T) {
	out, err := runHelp(t, shared.Globals{}, "replay", "--json")
	require.NoError(t, err)

	var resp HelpResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Command)
	assert.Empty(t, resp.Commands)

	meta := resp.Command
	assert.Equal(t, "replay", meta.Name)
	assert.True(t, strings.HasPrefix(meta.Usage, "runctl replay"))
	assert.Contains(t, meta.Examples, "runctl replay")

	flags := make(map[string]FlagMetadata)
	for _, f := range meta.Flags {
		flags[f.Name] = f
	}
	assert.Contains(t, flags, "watch")
	assert.Equal(t, "w", flags["watch"].Shorthand)
	assert.Equal(t, "5s", flags["step-timeout"].Default)
	assert.NotContains(t, flags, "verbose", "global flags are listed separately")
}

func TestHelp_GlobalJSONFlag(t *testing.T) {
	out, err := runHelp(t, shared.Globals{JSON: true}, "version")
	require.NoError(t, err)

	var resp HelpResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Command)
	assert.Equal(t, "version", resp.Command.Name)
}

func TestHelp_Text(t *testing.T) {
	out, err := runHelp(t, shared.Globals{})
	require.NoError(t, err)

	assert.False(t, strings.HasPrefix(strings.TrimSpace(out), "{"), "expected text help")
	assert.Contains(t, out, "replay")
	assert.NotContains(t, out, "internal-debug")
}

func TestHelp_UnknownCommand(t *testing.T) {
	_, err := runHelp(t, shared.Globals{}, "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bogus"`)
}

func TestDescribeCommand(t *testing.T) {
	cmd := &cobra.Command{
		Use:         "probe",
		Short:       "Probe command",
		Aliases:     []string{"p"},
		Annotations: map[string]string{"group": "diagnostics"},
	}
	cmd.Flags().String("target", "", "Target to probe")
	cmd.Flags().Bool("hidden", false, "Hidden flag")
	require.NoError(t, cmd.Flags().MarkHidden("hidden"))
	require.NoError(t, cmd.MarkFlagRequired("target"))
	cmd.AddCommand(&cobra.Command{Use: "b"}, &cobra.Command{Use: "a"})

	meta := describeCommand(cmd)

	assert.Equal(t, "diagnostics", meta.Group)
	assert.Equal(t, []string{"p"}, meta.Aliases)
	assert.Equal(t, []string{"a", "b"}, meta.Subcommands)
	require.Len(t, meta.Flags, 1)
	assert.Equal(t, "target", meta.Flags[0].Name)
	assert.True(t, meta.Flags[0].Required)
}
