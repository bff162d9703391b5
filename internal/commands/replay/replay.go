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


// Package replay implements runctl replay, which runs scenario files against
// a simulated debugger and reports whether their expectations held.
package replay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tombee/runcontrol/internal/commands/shared"
	"github.com/tombee/runcontrol/internal/config"
	"github.com/tombee/runcontrol/internal/journal"
	"github.com/tombee/runcontrol/internal/log"
	"github.com/tombee/runcontrol/internal/scenario"
	"github.com/tombee/runcontrol/internal/tracing"
	"github.com/tombee/runcontrol/internal/watch"
)

type options struct {
	trace     bool
	journal   string
	delay     int
	metrics   bool
	sessionID string
	timeout   time.Duration
	watch     bool
}

// NewCommand creates the replay command.
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml|pattern>...",
		Short: "Replay run-control scenarios against a simulated target",
		Long: `Replay runs the steps of each scenario file against an in-memory GDB/MI
target and checks each step's expectations against the session state.

Arguments may be doublestar patterns such as 'scenarios/**/*.yaml'; quote
them so the shell leaves them alone. With --watch, replay keeps running and
replays a scenario each time its file changes.

Spans are written to stderr with --trace. Published events are stored in
the SQLite journal with --journal.`,
		Example: `  runctl replay scenarios/breakpoint.yaml
  runctl replay 'scenarios/**/*.yaml' --delay 0
  runctl replay scenarios/breakpoint.yaml --trace --watch
  runctl replay scenarios/breakpoint.yaml --journal ./events.db --metrics`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := shared.LoadConfig()
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, cfg, opts); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return run(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Write OpenTelemetry spans to stderr")
	cmd.Flags().StringVar(&opts.journal, "journal", "", "Record published events in this SQLite database")
	cmd.Flags().IntVar(&opts.delay, "delay", 0, "Completion delay in dispatch turns (default from config)")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Print runcontrol metrics after the replay")
	cmd.Flags().StringVar(&opts.sessionID, "session", "", "Session id (default: random UUID)")
	cmd.Flags().DurationVar(&opts.timeout, "step-timeout", scenario.DefaultStepTimeout, "Maximum time one step may take to settle")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Replay again whenever a scenario file changes")

	return cmd
}

// applyFlags layers explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts options) error {
	flags := cmd.Flags()
	if flags.Changed("delay") {
		cfg.Session.CompletionDelay = opts.delay
	}
	if flags.Changed("trace") {
		cfg.Tracing.Enabled = opts.trace
	}
	if flags.Changed("journal") {
		cfg.Journal.Enabled = opts.journal != ""
		cfg.Journal.Path = opts.journal
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Enabled = opts.metrics
	}
	if err := cfg.Validate(); err != nil {
		return shared.NewConfigError("invalid flags", err)
	}
	return nil
}

// replayer holds what one invocation shares across scenarios.
type replayer struct {
	out, errOut io.Writer
	cfg         *config.Config
	opts        options
	logger      *slog.Logger
	registry    *prometheus.Registry
	provider    *tracing.Provider
	journal     *journal.Journal
	runs        int
}

func run(ctx context.Context, out, errOut io.Writer, cfg *config.Config, args []string, opts options) error {
	logger := log.New(cfg.LoggerConfig(errOut))

	paths, err := scenario.Discover(args)
	if err != nil {
		return shared.NewInvalidScenarioError("failed to find scenarios", err)
	}

	r := &replayer{
		out:      out,
		errOut:   errOut,
		cfg:      cfg,
		opts:     opts,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	if err := r.open(); err != nil {
		return err
	}
	defer r.close()

	if !opts.watch {
		return r.replay(ctx, paths)
	}
	return r.watch(ctx, paths)
}

func (r *replayer) open() error {
	provider, err := tracing.NewProvider(tracing.Config{
		ServiceName:    "runctl",
		ServiceVersion: shared.GetBuildInfo().Version,
		Console:        r.cfg.Tracing.Enabled,
		Pretty:         r.cfg.Tracing.Pretty,
		SampleRate:     r.cfg.Tracing.SampleRate,
		Writer:         r.errOut,
		Registerer:     r.registry,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	r.provider = provider

	if r.cfg.Journal.Enabled {
		j, err := journal.Open(journal.Config{Path: r.cfg.Journal.Path, Logger: r.logger})
		if err != nil {
			return shared.NewConfigError("failed to open journal", err)
		}
		r.journal = j
		r.logger.Debug("journal enabled", slog.String("path", r.cfg.Journal.Path))
	}
	return nil
}

func (r *replayer) close() {
	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			r.logger.Warn("failed to close journal", log.Error(err))
		}
	}
	if r.provider != nil {
		if err := r.provider.Shutdown(context.Background()); err != nil {
			r.logger.Warn("failed to shut down telemetry", log.Error(err))
		}
	}
}

// sessionID returns the id for the next run. An explicit --session id is
// used as is for the first run and suffixed for later ones so journal
// entries stay apart.
func (r *replayer) sessionID() string {
	r.runs++
	if r.opts.sessionID == "" {
		return ""
	}
	if r.runs == 1 {
		return r.opts.sessionID
	}
	return fmt.Sprintf("%s-%d", r.opts.sessionID, r.runs)
}

type result struct {
	scenario *scenario.Scenario
	report   *scenario.Report
}

// replay runs every scenario in paths and writes the results.
func (r *replayer) replay(ctx context.Context, paths []string) error {
	var results []result
	for _, path := range paths {
		sc, err := scenario.Load(path)
		if err != nil {
			return shared.NewInvalidScenarioError(fmt.Sprintf("failed to load scenario %s", path), err)
		}
		report, err := scenario.NewRunner(r.runnerOptions()).Run(ctx, sc)
		if err != nil {
			return fmt.Errorf("replay aborted: %w", err)
		}
		results = append(results, result{scenario: sc, report: report})
	}
	if err := r.provider.ForceFlush(ctx); err != nil {
		r.logger.Warn("failed to flush telemetry", log.Error(err))
	}

	if err := r.write(results); err != nil {
		return err
	}

	var failed []result
	for _, res := range results {
		if !res.report.Passed() {
			failed = append(failed, res)
		}
	}
	switch {
	case len(failed) == 0:
		return nil
	case len(results) == 1:
		step, _ := failed[0].report.Failed()
		return shared.NewScenarioFailedError(
			fmt.Sprintf("scenario %q failed at step %d (%s)", failed[0].scenario.Name, step.Index, step.Label))
	default:
		return shared.NewScenarioFailedError(fmt.Sprintf("%d of %d scenarios failed", len(failed), len(results)))
	}
}

func (r *replayer) runnerOptions() scenario.Options {
	opts := scenario.Options{
		Logger:          r.logger,
		SessionID:       r.sessionID(),
		CompletionDelay: r.cfg.Session.CompletionDelay,
		DisableFrames:   !r.cfg.Session.FrameProvider,
		TracerProvider:  r.provider.TracerProvider(),
		MeterProvider:   r.provider.MeterProvider(),
		StepTimeout:     r.opts.timeout,
	}
	if r.journal != nil {
		opts.Observers = append(opts.Observers, r.journal)
	}
	return opts
}

func (r *replayer) write(results []result) error {
	global := shared.Global()
	switch {
	case global.JSON && len(results) == 1:
		if err := shared.EmitJSON(r.out, newResponse(results[0].report)); err != nil {
			return err
		}
	case global.JSON:
		batch := BatchResponse{JSONResponse: shared.NewJSONResponse("replay", true)}
		for _, res := range results {
			resp := newResponse(res.report)
			batch.Results = append(batch.Results, resp)
			if !resp.Success {
				batch.Success = false
				batch.Failed++
			}
		}
		if err := shared.EmitJSON(r.out, batch); err != nil {
			return err
		}
	case !global.Quiet:
		for i, res := range results {
			if i > 0 {
				fmt.Fprintln(r.out)
			}
			renderReport(r.out, res.scenario, res.report)
		}
	}

	if r.cfg.Metrics.Enabled {
		gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, r.registry}
		if err := tracing.WriteMetrics(r.out, gatherers, "runcontrol_"); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

// watch replays paths once, then replays each file again when it changes.
// Failures are reported and the watch continues; it ends when ctx is done.
func (r *replayer) watch(ctx context.Context, paths []string) error {
	w, err := watch.New(paths, watch.WithLogger(r.logger))
	if err != nil {
		return shared.NewInvalidScenarioError("failed to watch scenarios", err)
	}
	defer w.Close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go w.Run(watchCtx)

	r.replayReporting(ctx, paths)
	for {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-w.Changes():
			if !ok {
				return nil
			}
			r.logger.Info("scenario changed", slog.String("path", path))
			r.replayReporting(ctx, []string{path})
		}
	}
}

func (r *replayer) replayReporting(ctx context.Context, paths []string) {
	if err := r.replay(ctx, paths); err != nil {
		shared.PrintError(r.errOut, err)
	}
	if !shared.Global().JSON && !shared.Global().Quiet {
		fmt.Fprintln(r.out, shared.RenderLabel("watching for changes..."))
	}
}

func renderReport(w io.Writer, sc *scenario.Scenario, report *scenario.Report) {
	fmt.Fprintf(w, "%s %s\n", shared.Header.Render("Scenario "+sc.Name), shared.RenderLabel("session "+report.SessionID))
	if sc.Description != "" {
		fmt.Fprintln(w, shared.Muted.Render(sc.Description))
	}
	fmt.Fprintln(w)

	for _, step := range report.Steps {
		line := fmt.Sprintf("%2d %-24s", step.Index+1, step.Label)
		if len(step.Events) > 0 {
			line += " " + shared.RenderLabel("events: "+strings.Join(step.Events, ", "))
		}
		if step.Passed() {
			fmt.Fprintln(w, shared.RenderOK(line))
			continue
		}
		fmt.Fprintln(w, shared.RenderError(line))
		fmt.Fprintf(w, "     %s\n", shared.StatusError.Render(step.Failure))
	}
	for i := len(report.Steps); i < len(report.Steps)+report.Skipped; i++ {
		fmt.Fprintln(w, shared.RenderSkipped(fmt.Sprintf("%2d %s", i+1, sc.Steps[i].Label())))
	}

	final := report.Final
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s (%s %s)\n",
		shared.RenderLabel("final state:"),
		shared.RenderPhase(string(final.Phase())),
		shared.RenderLabel("reason"),
		final.LastReason)
	fmt.Fprintf(w, "%s %d steps, %d skipped\n", shared.RenderVerdict(report.Passed()), len(report.Steps), report.Skipped)
}

// Response is the JSON output of the replay command.
type Response struct {
	shared.JSONResponse
	Scenario  string         `json:"scenario"`
	SessionID string         `json:"session_id"`
	Steps     []StepResponse `json:"steps"`
	Skipped   int            `json:"skipped"`
	Final     FinalState     `json:"final"`
}

// BatchResponse is the JSON output when more than one scenario is replayed.
type BatchResponse struct {
	shared.JSONResponse
	Failed  int        `json:"failed"`
	Results []Response `json:"results"`
}

// StepResponse is one step in the JSON output.
type StepResponse struct {
	Index      int      `json:"index"`
	Label      string   `json:"label"`
	Action     string   `json:"action"`
	Passed     bool     `json:"passed"`
	Error      string   `json:"error,omitempty"`
	Failure    string   `json:"failure,omitempty"`
	Events     []string `json:"events,omitempty"`
	Commands   []string `json:"commands,omitempty"`
	DurationMS float64  `json:"duration_ms"`
}

// FinalState is the session state after the replay.
type FinalState struct {
	Phase      string `json:"phase"`
	Reason     string `json:"reason"`
	Detail     string `json:"detail,omitempty"`
	Terminated bool   `json:"terminated"`
}

func newResponse(report *scenario.Report) Response {
	resp := Response{
		JSONResponse: shared.NewJSONResponse("replay", report.Passed()),
		Scenario:     report.Scenario,
		SessionID:    report.SessionID,
		Skipped:      report.Skipped,
		Final: FinalState{
			Phase:      string(report.Final.Phase()),
			Reason:     string(report.Final.LastReason),
			Detail:     report.Final.LastDetail,
			Terminated: report.Final.Terminated,
		},
	}
	for _, s := range report.Steps {
		step := StepResponse{
			Index:      s.Index,
			Label:      s.Label,
			Action:     string(s.Action),
			Passed:     s.Passed(),
			Failure:    s.Failure,
			Events:     s.Events,
			Commands:   s.Commands,
			DurationMS: float64(s.Duration.Microseconds()) / 1000,
		}
		if s.Err != nil {
			step.Error = s.Err.Error()
		}
		resp.Steps = append(resp.Steps, step)
	}
	return resp
}
