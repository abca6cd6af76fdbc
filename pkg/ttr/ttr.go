// Package ttr provides a public API for Login to Ready reporting.
//
// Example usage:
//
//	import "github.com/stxkxs/ttr/pkg/ttr"
//
//	// Report from records you already have
//	res := ttr.Analyze([]ttr.Record{
//		{Agent: "Agent1", Time: ttr.MustParseTime("09:00:00"), State: ttr.StateLogin},
//		{Agent: "Agent1", Time: ttr.MustParseTime("09:05:30"), State: ttr.StateReady},
//	})
//
//	// Report from a file, recording history and firing hooks per ./ttr.yaml
//	res, err := ttr.Run(ctx, "agent-details.csv")
package ttr

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/stxkxs/ttr/internal/aggregate"
	"github.com/stxkxs/ttr/internal/clock"
	"github.com/stxkxs/ttr/internal/config"
	"github.com/stxkxs/ttr/internal/event"
	"github.com/stxkxs/ttr/internal/loader"
	"github.com/stxkxs/ttr/internal/runner"
	"github.com/stxkxs/ttr/internal/state"
	"github.com/stxkxs/ttr/internal/telemetry"
)

type (
	// Record is one agent state change.
	Record = aggregate.Record
	// Row is one agent's line in the report.
	Row = aggregate.Row
	// Summary holds mean, min, max and median over reported rows.
	Summary = aggregate.Summary
	// Result is a report with its summary and ingestion counters.
	Result = aggregate.Result
	// TimeOfDay is seconds since midnight.
	TimeOfDay = clock.TimeOfDay
)

// State labels that take part in the interval.
const (
	StateLogin = aggregate.StateLogin
	StateReady = aggregate.StateReady
)

// defaultHookWait bounds how long Run waits for non-blocking hooks.
const defaultHookWait = 10 * time.Second

// ErrNoData is returned by Summarize when no rows qualify.
var ErrNoData = aggregate.ErrNoData

// ParseTime parses a strict 24-hour HH:MM:SS value.
func ParseTime(s string) (TimeOfDay, error) {
	return clock.Parse(s)
}

// MustParseTime is ParseTime that panics on error, for literals.
func MustParseTime(s string) TimeOfDay {
	return clock.MustParse(s)
}

// Analyze builds the report for records.
func Analyze(records []Record) Result {
	return aggregate.Analyze(records)
}

// Summarize computes statistics over rows.
func Summarize(rows []Row) (Summary, error) {
	return aggregate.Summarize(rows)
}

// AnalyzeReader loads a comma-separated event log with AGENT, TIME and STATE
// columns and builds its report.
func AnalyzeReader(r io.Reader) (Result, error) {
	records, err := loader.Load(r, loader.DefaultOptions())
	if err != nil {
		return Result{}, err
	}
	return aggregate.Analyze(records), nil
}

// Run analyzes the file at path using the project configuration in the
// current directory: loader settings, history and hooks all apply.
func Run(ctx context.Context, path string) (Result, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return Result{}, fmt.Errorf("failed to load config: %w", err)
	}

	logger := telemetry.NewLoggerWithOptions(telemetry.LoggerOptions{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	defer logger.Close()

	var history *state.Manager
	if cfg.HistoryEnabled() {
		history, err = state.NewManager(cfg.History.Driver, cfg.History.Path)
		if err != nil {
			return Result{}, fmt.Errorf("failed to initialize history: %w", err)
		}
		defer history.Close()
		history.SetRetention(cfg.History.Keep)
	}

	bus, err := event.NewBusFromConfig(cfg.Hooks, logger)
	if err != nil {
		return Result{}, err
	}

	rn := runner.New(runner.Options{
		Loader: loader.Options{
			Delimiter: cfg.Input.DelimiterRune(),
			Comment:   cfg.Input.CommentRune(),
			TrimSpace: cfg.Input.TrimSpaceEnabled(),
		},
		History: history,
		Bus:     bus,
		Logger:  logger,
	})
	defer rn.Wait(defaultHookWait)

	out, err := rn.RunFile(ctx, path)
	if err != nil {
		return Result{}, err
	}
	return out.Result, nil
}
