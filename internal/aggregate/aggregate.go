// Package aggregate computes, per agent, the time between the first Login and
// the first Ready event of the day.
//
// An Aggregator owns its accumulator exclusively. Build one with New for every
// run; it is not safe for concurrent use and must not be shared between runs.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/stxkxs/ttr/internal/clock"
)

// State labels that drive aggregation. Any other label is ignored.
const (
	StateLogin = "Login"
	StateReady = "Ready"
)

// MaxInterval bounds a plausible Login-to-Ready interval, exclusive.
const MaxInterval = 12 * clock.Hour

// Record is one agent state-change event.
type Record struct {
	Agent string          `json:"agent"`
	Time  clock.TimeOfDay `json:"time"`
	State string          `json:"state"`
}

// Row is one agent's line in the report. ElapsedSeconds is always in
// (0, MaxInterval).
type Row struct {
	Agent          string          `json:"agent"`
	FirstLogin     clock.TimeOfDay `json:"first_login"`
	FirstReady     clock.TimeOfDay `json:"first_ready"`
	ElapsedSeconds int             `json:"elapsed_seconds"`
	ElapsedDisplay string          `json:"elapsed_display"`
}

// Stats counts what a run saw and discarded. It never affects the report.
type Stats struct {
	Records          int `json:"records"`
	SentinelExcluded int `json:"sentinel_excluded"`
	IgnoredStates    int `json:"ignored_states"`
	Agents           int `json:"agents"`
	Unpaired         int `json:"unpaired"`
	Implausible      int `json:"implausible"`
	RolledOver       int `json:"rolled_over"`
}

type accumulator struct {
	firstLogin map[string]clock.TimeOfDay
	firstReady map[string]clock.TimeOfDay
}

// Aggregator tracks the earliest valid Login and Ready time per agent.
type Aggregator struct {
	acc   accumulator
	stats Stats
}

// New returns an empty aggregator.
func New() *Aggregator {
	return &Aggregator{
		acc: accumulator{
			firstLogin: make(map[string]clock.TimeOfDay),
			firstReady: make(map[string]clock.TimeOfDay),
		},
	}
}

// Ingest folds records into the accumulator. Input order does not matter:
// only the minimum time per agent and state is kept. Calling Ingest again
// adds to the same accumulator.
func (a *Aggregator) Ingest(records []Record) {
	for _, rec := range records {
		a.stats.Records++

		if rec.Time.IsSentinel() {
			a.stats.SentinelExcluded++
			continue
		}

		switch rec.State {
		case StateLogin:
			keepEarliest(a.acc.firstLogin, rec.Agent, rec.Time)
		case StateReady:
			keepEarliest(a.acc.firstReady, rec.Agent, rec.Time)
		default:
			a.stats.IgnoredStates++
		}
	}
}

func keepEarliest(m map[string]clock.TimeOfDay, agent string, t clock.TimeOfDay) {
	if cur, ok := m[agent]; !ok || t < cur {
		m[agent] = t
	}
}

// Report builds one row per agent that has both a Login and a Ready with a
// plausible interval between them, sorted by agent name.
func (a *Aggregator) Report() []Row {
	a.stats.Agents, a.stats.Unpaired, a.stats.Implausible, a.stats.RolledOver = 0, 0, 0, 0

	seen := make(map[string]struct{}, len(a.acc.firstLogin)+len(a.acc.firstReady))
	for agent := range a.acc.firstLogin {
		seen[agent] = struct{}{}
	}
	for agent := range a.acc.firstReady {
		seen[agent] = struct{}{}
	}
	a.stats.Agents = len(seen)

	rows := make([]Row, 0, len(a.acc.firstLogin))
	for agent, login := range a.acc.firstLogin {
		ready, ok := a.acc.firstReady[agent]
		if !ok {
			a.stats.Unpaired++
			continue
		}

		diff, rolled := Elapsed(login, ready)
		if rolled {
			a.stats.RolledOver++
		}
		if !Plausible(diff) {
			a.stats.Implausible++
			continue
		}

		rows = append(rows, Row{
			Agent:          agent,
			FirstLogin:     login,
			FirstReady:     ready,
			ElapsedSeconds: diff,
			ElapsedDisplay: FormatElapsed(diff),
		})
	}
	for agent := range a.acc.firstReady {
		if _, ok := a.acc.firstLogin[agent]; !ok {
			a.stats.Unpaired++
		}
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Agent < rows[j].Agent })
	return rows
}

// Stats returns the counters gathered so far. Agent-level counters are only
// populated after Report.
func (a *Aggregator) Stats() Stats {
	return a.stats
}

// Elapsed returns ready minus login in seconds. A difference below -12h is
// taken as a Ready just after midnight following a late-evening Login and is
// shifted forward by one day; rolled reports whether that happened.
func Elapsed(login, ready clock.TimeOfDay) (diff int, rolled bool) {
	diff = ready.Seconds() - login.Seconds()
	if diff < -MaxInterval {
		return diff + clock.Day, true
	}
	return diff, false
}

// Plausible reports whether diff lies strictly between zero and MaxInterval.
func Plausible(diff int) bool {
	return diff > 0 && diff < MaxInterval
}

// FormatElapsed renders seconds as "<m> minutes, <s> seconds".
func FormatElapsed(seconds int) string {
	return fmt.Sprintf("%d minutes, %d seconds", seconds/60, seconds%60)
}
