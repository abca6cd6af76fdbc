package aggregate

import (
	"sort"

	ttrErrors "github.com/stxkxs/ttr/internal/errors"
)

// ErrNoData is returned by Summarize when there is nothing to summarize.
var ErrNoData = ttrErrors.New(ttrErrors.CodeNoData, "no qualifying agents to summarize").
	WithSuggestion("Check that the input has agents with both a Login and a Ready event")

// Summary holds descriptive statistics over ElapsedSeconds.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
}

// Summarize computes mean, min, max and median over the report. An empty
// report has no defined statistics and yields ErrNoData.
func Summarize(rows []Row) (Summary, error) {
	if len(rows) == 0 {
		return Summary{}, ErrNoData
	}

	values := make([]int, len(rows))
	total := 0
	for i, r := range rows {
		values[i] = r.ElapsedSeconds
		total += r.ElapsedSeconds
	}
	sort.Ints(values)

	n := len(values)
	median := float64(values[n/2])
	if n%2 == 0 {
		median = float64(values[n/2-1]+values[n/2]) / 2
	}

	return Summary{
		Count:  n,
		Mean:   float64(total) / float64(n),
		Min:    float64(values[0]),
		Max:    float64(values[n-1]),
		Median: median,
	}, nil
}

// Result bundles one complete run.
type Result struct {
	Rows    []Row    `json:"rows"`
	Summary *Summary `json:"summary,omitempty"`
	Stats   Stats    `json:"stats"`
}

// Analyze runs a fresh aggregator over records. Summary is nil when no agent
// qualifies; an empty report is still a valid result.
func Analyze(records []Record) Result {
	agg := New()
	agg.Ingest(records)
	rows := agg.Report()

	res := Result{Rows: rows, Stats: agg.Stats()}
	if s, err := Summarize(rows); err == nil {
		res.Summary = &s
	}
	return res
}
