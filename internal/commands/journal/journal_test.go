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


package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/runcontrol/internal/commands/shared"
	"github.com/tombee/runcontrol/internal/journal"
)

// seed writes entries for two sessions and returns the database path.
func seed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(journal.Config{Path: path})
	require.NoError(t, err)

	at := time.Date(2025, 12, 22, 10, 0, 0, 0, time.UTC)
	for _, e := range []journal.Entry{
		{SessionID: "s1", Kind: "resumed", Context: "s1.group[i1]", Reason: "user-request", RecordedAt: at},
		{SessionID: "s1", Kind: "suspended", Context: "s1.group[i1]", Reason: "breakpoint", Triggering: "s1.group[i1].thread[2]", RecordedAt: at},
		{SessionID: "s2", Kind: "terminated", Detail: "gdb exited", RecordedAt: at},
	} {
		require.True(t, j.Record(e))
	}
	require.NoError(t, j.Close())
	return path
}

func execute(t *testing.T, globals shared.Globals, args ...string) (string, error) {
	t.Helper()
	defer shared.SetGlobalsForTest(globals)()

	var out bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return out.String(), err
}

func TestJournal_Sessions(t *testing.T) {
	path := seed(t)

	out, err := execute(t, shared.Globals{}, "--path", path)
	require.NoError(t, err)
	assert.Equal(t, "s1\ns2\n", out)

	out, err = execute(t, shared.Globals{JSON: true}, "--path", path)
	require.NoError(t, err)
	var resp SessionsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"s1", "s2"}, resp.Sessions)
}

func TestJournal_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")

	out, err := execute(t, shared.Globals{JSON: true}, "--path", path)
	require.NoError(t, err)
	var resp SessionsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.NotNil(t, resp.Sessions)
	assert.Empty(t, resp.Sessions)
}

func TestJournal_Events(t *testing.T) {
	path := seed(t)

	out, err := execute(t, shared.Globals{}, "s1", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Session s1")
	assert.Contains(t, out, "reason=breakpoint")
	assert.Contains(t, out, "by s1.group[i1].thread[2]")
	assert.NotContains(t, out, "gdb exited")

	out, err = execute(t, shared.Globals{JSON: true}, "s1", "--path", path)
	require.NoError(t, err)
	var resp EventsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "s1", resp.SessionID)
	require.Len(t, resp.Events, 2)
	assert.Equal(t, "resumed", resp.Events[0].Kind)
	assert.Equal(t, "suspended", resp.Events[1].Kind)
}

func TestJournal_UnknownSession(t *testing.T) {
	path := seed(t)

	_, err := execute(t, shared.Globals{}, "nope", "--path", path)
	require.Error(t, err)
	assert.Equal(t, shared.ExitNotFound, shared.ExitCode(err))
}

func TestJournal_JQ(t *testing.T) {
	path := seed(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "session ids",
			args: []string{"--jq", ".sessions[]"},
			want: "\"s1\"\n\"s2\"\n",
		},
		{
			name: "select by reason",
			args: []string{"s1", "--jq", `.events[] | select(.reason == "breakpoint") | .triggering`},
			want: "\"s1.group[i1].thread[2]\"\n",
		},
		{
			name: "no results",
			args: []string{"s1", "--jq", `.events[] | select(.kind == "terminated")`},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, shared.Globals{}, append(tt.args, "--path", path)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestJournal_InvalidJQ(t *testing.T) {
	path := seed(t)

	_, err := execute(t, shared.Globals{}, "--jq", ".[", "--path", path)
	require.Error(t, err)
	assert.Equal(t, shared.ExitConfigError, shared.ExitCode(err))
}
