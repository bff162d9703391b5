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


// Package journal implements runctl journal, which prints the events
// recorded by replays.
package journal

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tombee/runcontrol/internal/commands/shared"
	"github.com/tombee/runcontrol/internal/jq"
	"github.com/tombee/runcontrol/internal/journal"
)

// NewCommand creates the journal command.
func NewCommand() *cobra.Command {
	var (
		path   string
		filter string
	)

	cmd := &cobra.Command{
		Use:   "journal [session-id]",
		Short: "Show recorded session events",
		Long: `Without arguments, journal lists the sessions recorded in the journal
database. With a session id, it prints that session's events in order.

--jq applies a jq expression to the JSON output and prints each result.`,
		Example: `  runctl journal
  runctl journal 6f1c2a9e-5d7b-4e8f-9a0b-1c2d3e4f5a6b
  runctl journal 6f1c2a9e-5d7b-4e8f-9a0b-1c2d3e4f5a6b --jq '.events[] | select(.reason == "breakpoint")'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var query *jq.Query
			if filter != "" {
				q, err := jq.Compile(filter)
				if err != nil {
					return shared.NewConfigError("invalid --jq expression", err)
				}
				query = q
			}
			if path == "" {
				cfg, err := shared.LoadConfig()
				if err != nil {
					return err
				}
				path = cfg.Journal.Path
			}
			j, err := journal.Open(journal.Config{Path: path})
			if err != nil {
				return shared.NewConfigError("failed to open journal", err)
			}
			defer j.Close()

			out := output{w: cmd.OutOrStdout(), query: query}
			if len(args) == 0 {
				return listSessions(cmd.Context(), out, j)
			}
			return listEvents(cmd.Context(), out, j, args[0])
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Journal database (default from config)")
	cmd.Flags().StringVar(&filter, "jq", "", "Filter the JSON output with a jq expression")
	return cmd
}

// SessionsResponse is the JSON output for the session list.
type SessionsResponse struct {
	shared.JSONResponse
	Sessions []string `json:"sessions"`
}

// EventsResponse is the JSON output for one session.
type EventsResponse struct {
	shared.JSONResponse
	SessionID string          `json:"session_id"`
	Events    []journal.Entry `json:"events"`
}

// output writes either text or JSON, optionally filtered by a jq query.
type output struct {
	w     io.Writer
	query *jq.Query
}

func (o output) json() bool {
	return o.query != nil || shared.Global().JSON
}

func (o output) emit(ctx context.Context, v any) error {
	if o.query == nil {
		return shared.EmitJSON(o.w, v)
	}
	results, err := o.query.Run(ctx, v)
	if err != nil {
		return fmt.Errorf("jq %q: %w", o.query, err)
	}
	for _, r := range results {
		if err := shared.EmitJSON(o.w, r); err != nil {
			return err
		}
	}
	return nil
}

func listSessions(ctx context.Context, out output, j *journal.Journal) error {
	ids, err := j.Sessions(ctx)
	if err != nil {
		return err
	}
	w := out.w
	if out.json() {
		if ids == nil {
			ids = []string{}
		}
		return out.emit(ctx, SessionsResponse{
			JSONResponse: shared.NewJSONResponse("journal", true),
			Sessions:     ids,
		})
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, shared.Muted.Render("no recorded sessions"))
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(w, id)
	}
	return nil
}

func listEvents(ctx context.Context, out output, j *journal.Journal, sessionID string) error {
	entries, err := j.List(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return shared.NewNotFoundError("session", sessionID)
	}
	if out.json() {
		return out.emit(ctx, EventsResponse{
			JSONResponse: shared.NewJSONResponse("journal", true),
			SessionID:    sessionID,
			Events:       entries,
		})
	}

	w := out.w
	fmt.Fprintln(w, shared.Header.Render("Session "+sessionID))
	for _, e := range entries {
		line := fmt.Sprintf("%s %-14s %s", e.RecordedAt.Format("15:04:05.000"), e.Kind, e.Context)
		if e.Reason != "" && e.Reason != "unknown" {
			line += " " + shared.RenderLabel("reason="+e.Reason)
		}
		if e.Triggering != "" {
			line += " " + shared.RenderLabel("by "+e.Triggering)
		}
		if e.Detail != "" {
			line += " " + shared.RenderLabel(e.Detail)
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
