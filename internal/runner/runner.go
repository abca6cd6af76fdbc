// Package runner drives one analysis end to end: load the event log, build
// the report, then record history, metrics and lifecycle events.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/stxkxs/ttr/internal/aggregate"
	ttrErrors "github.com/stxkxs/ttr/internal/errors"
	"github.com/stxkxs/ttr/internal/event"
	"github.com/stxkxs/ttr/internal/loader"
	"github.com/stxkxs/ttr/internal/state"
	"github.com/stxkxs/ttr/internal/telemetry"
)

// Options wires the runner's collaborators. Only Logger is required; a nil
// History, Bus or Metrics disables that concern.
type Options struct {
	Loader  loader.Options
	History *state.Manager
	Bus     *event.Bus
	Metrics *telemetry.Metrics
	Logger  *telemetry.Logger
}

// Runner executes analyses. A Runner holds no per-run state and is safe for
// concurrent use; each call builds its own aggregator.
type Runner struct {
	opts Options
}

// Outcome is the product of a successful run.
type Outcome struct {
	RunID    string           `json:"run_id,omitempty"`
	Source   string           `json:"source"`
	Result   aggregate.Result `json:"result"`
	Duration time.Duration    `json:"duration"`
}

// New creates a runner.
func New(opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = telemetry.NewLogger(false)
	}
	if opts.Loader.Delimiter == 0 {
		opts.Loader.Delimiter = loader.DefaultOptions().Delimiter
	}
	return &Runner{opts: opts}
}

// RunFile analyzes the file at path.
func (r *Runner) RunFile(ctx context.Context, path string) (*Outcome, error) {
	f, err := os.Open(path)
	if err != nil {
		cause := ttrErrors.Wrap(ttrErrors.CodeInputUnreadable, fmt.Sprintf("cannot open %s", path), err).
			WithSuggestion("Check the file path and permissions")
		return nil, r.fail(path, nil, cause)
	}
	defer f.Close()
	return r.Run(ctx, path, f)
}

// Run analyzes the event log read from in. source names the input in
// history and events.
func (r *Runner) Run(ctx context.Context, source string, in io.Reader) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := r.opts.Logger
	start := time.Now()

	run := r.begin(source)
	runID := ""
	if run != nil {
		runID = run.ID
	}

	if err := r.opts.Bus.Emit(event.NewEvent(event.ReportStarted, map[string]interface{}{
		"run_id": runID,
		"source": source,
	})); err != nil {
		return nil, r.fail(source, run, err)
	}

	log.Debug("Loading event log", "source", source)
	records, err := loader.Load(in, r.opts.Loader)
	if err != nil {
		return nil, r.fail(source, run, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, r.fail(source, run, err)
	}

	res := aggregate.Analyze(records)
	elapsed := time.Since(start)

	data := map[string]interface{}{
		"run_id":  runID,
		"source":  source,
		"records": res.Stats.Records,
		"rows":    len(res.Rows),
	}
	if res.Summary != nil {
		data["mean_seconds"] = res.Summary.Mean
		data["median_seconds"] = res.Summary.Median
	}
	if err := r.opts.Bus.Emit(event.NewEvent(event.ReportCompleted, data)); err != nil {
		return nil, r.fail(source, run, err)
	}

	if r.opts.Metrics != nil {
		r.opts.Metrics.ObserveRun(res, elapsed)
	}
	if run != nil {
		removed, err := r.opts.History.Complete(run, res)
		if err != nil {
			log.Warn("Failed to record run", "run_id", runID, "error", err)
		}
		r.pruned(removed)
	}

	log.Info("Report complete",
		"source", source,
		"run_id", runID,
		"records", res.Stats.Records,
		"rows", len(res.Rows),
		"unpaired", res.Stats.Unpaired,
		"implausible", res.Stats.Implausible,
		"duration", elapsed,
	)

	return &Outcome{RunID: runID, Source: source, Result: res, Duration: elapsed}, nil
}

func (r *Runner) begin(source string) *state.Run {
	if r.opts.History == nil {
		return nil
	}
	run, err := r.opts.History.Begin(source)
	if err != nil {
		r.opts.Logger.Warn("History unavailable, continuing without it", "error", err)
		return nil
	}
	return run
}

// fail records a failed run everywhere and returns cause for the caller.
func (r *Runner) fail(source string, run *state.Run, cause error) error {
	if r.opts.Metrics != nil {
		r.opts.Metrics.ObserveFailure()
	}

	runID := ""
	if run == nil {
		run = r.begin(source)
	}
	if run != nil {
		runID = run.ID
		removed, err := r.opts.History.Fail(run, cause)
		if err != nil {
			r.opts.Logger.Warn("Failed to record run", "run_id", runID, "error", err)
		}
		r.pruned(removed)
	}

	if err := r.opts.Bus.Emit(event.NewEvent(event.ReportFailed, map[string]interface{}{
		"run_id": runID,
		"source": source,
		"error":  cause.Error(),
		"code":   ttrErrors.AsCode(cause),
	})); err != nil {
		r.opts.Logger.Warn("Failure hook failed", "run_id", runID, "error", err)
	}

	r.opts.Logger.Error("Report failed", "source", source, "run_id", runID, "error", cause)
	return cause
}

// pruned announces runs removed by history retention. Hook errors here are
// logged only: the run itself has already been recorded.
func (r *Runner) pruned(removed int) {
	if removed == 0 {
		return
	}
	if err := r.opts.Bus.Emit(event.NewEvent(event.HistoryPruned, map[string]interface{}{
		"removed": removed,
		"kept":    r.opts.History.Retention(),
	})); err != nil {
		r.opts.Logger.Warn("Prune hook failed", "removed", removed, "error", err)
	}
}

// Wait drains non-blocking hooks, up to timeout.
func (r *Runner) Wait(timeout time.Duration) bool {
	return r.opts.Bus.Wait(timeout)
}
