package aggregate

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stxkxs/ttr/internal/clock"
	ttrErrors "github.com/stxkxs/ttr/internal/errors"
)

func rec(agent, tod, state string) Record {
	return Record{Agent: agent, Time: clock.MustParse(tod), State: state}
}

func TestReport_EndToEnd(t *testing.T) {
	agg := New()
	agg.Ingest([]Record{
		rec("Agent1", "09:00:00", StateLogin),
		rec("Agent1", "09:05:30", StateReady),
		rec("Agent2", "09:15:00", StateLogin),
		rec("Agent2", "09:20:45", StateReady),
	})
	rows := agg.Report()

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Agent != "Agent1" || rows[0].ElapsedSeconds != 330 || rows[0].ElapsedDisplay != "5 minutes, 30 seconds" {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Agent != "Agent2" || rows[1].ElapsedSeconds != 345 || rows[1].ElapsedDisplay != "5 minutes, 45 seconds" {
		t.Errorf("unexpected second row: %+v", rows[1])
	}
	if rows[0].FirstLogin.String() != "09:00:00" || rows[0].FirstReady.String() != "09:05:30" {
		t.Errorf("unexpected times: %s / %s", rows[0].FirstLogin, rows[0].FirstReady)
	}

	s, err := Summarize(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Mean != 337.5 || s.Min != 330 || s.Max != 345 || s.Median != 337.5 {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestReport_RolloverCorrection(t *testing.T) {
	agg := New()
	agg.Ingest([]Record{
		rec("Night", "23:50:00", StateLogin),
		rec("Night", "00:05:00", StateReady),
	})
	rows := agg.Report()

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].ElapsedSeconds != 900 {
		t.Errorf("expected 900 seconds, got %d", rows[0].ElapsedSeconds)
	}
	if rows[0].ElapsedDisplay != "15 minutes, 0 seconds" {
		t.Errorf("unexpected display %q", rows[0].ElapsedDisplay)
	}
	if agg.Stats().RolledOver != 1 {
		t.Errorf("expected 1 rolled over, got %d", agg.Stats().RolledOver)
	}
}

func TestElapsed(t *testing.T) {
	diff, rolled := Elapsed(clock.MustParse("23:50:00"), clock.MustParse("00:05:00"))
	if diff != 900 || !rolled {
		t.Errorf("expected 900 rolled, got %d %v", diff, rolled)
	}

	diff, rolled = Elapsed(clock.MustParse("09:00:00"), clock.MustParse("08:00:00"))
	if diff != -3600 || rolled {
		t.Errorf("expected -3600 not rolled, got %d %v", diff, rolled)
	}

	// Exactly -12h is not below the threshold.
	diff, rolled = Elapsed(clock.MustParse("18:00:00"), clock.MustParse("06:00:00"))
	if diff != -43200 || rolled {
		t.Errorf("expected -43200 not rolled, got %d %v", diff, rolled)
	}
}

func TestReport_DropsImplausible(t *testing.T) {
	tests := []struct {
		name  string
		login string
		ready string
	}{
		{"ready before login", "09:00:00", "08:00:00"},
		{"zero interval", "09:00:00", "09:00:00"},
		{"exactly twelve hours", "06:00:00", "18:00:00"},
		{"over twelve hours", "01:00:00", "20:00:00"},
		{"negative twelve hours", "18:00:00", "06:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := New()
			agg.Ingest([]Record{
				rec("A", tt.login, StateLogin),
				rec("A", tt.ready, StateReady),
			})
			rows := agg.Report()
			if len(rows) != 0 {
				t.Fatalf("expected row to be dropped, got %+v", rows)
			}
			if agg.Stats().Implausible != 1 {
				t.Errorf("expected 1 implausible, got %d", agg.Stats().Implausible)
			}
		})
	}
}

func TestReport_JustUnderTwelveHours(t *testing.T) {
	agg := New()
	agg.Ingest([]Record{
		rec("A", "06:00:00", StateLogin),
		rec("A", "17:59:59", StateReady),
	})
	rows := agg.Report()
	if len(rows) != 1 || rows[0].ElapsedSeconds != 43199 {
		t.Fatalf("expected 43199, got %+v", rows)
	}
	if rows[0].ElapsedDisplay != "719 minutes, 59 seconds" {
		t.Errorf("unexpected display %q", rows[0].ElapsedDisplay)
	}
}

func TestReport_SortsByAgent(t *testing.T) {
	agg := New()
	for _, name := range []string{"Zed", "Amy", "Mo"} {
		agg.Ingest([]Record{
			rec(name, "10:00:00", StateLogin),
			rec(name, "10:01:00", StateReady),
		})
	}
	rows := agg.Report()

	want := []string{"Amy", "Mo", "Zed"}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(rows))
	}
	for i, name := range want {
		if rows[i].Agent != name {
			t.Errorf("row %d: expected %s, got %s", i, name, rows[i].Agent)
		}
	}
}

func TestReport_LexicographicOrder(t *testing.T) {
	agg := New()
	for _, name := range []string{"agent10", "Agent2", "agent9"} {
		agg.Ingest([]Record{
			rec(name, "10:00:00", StateLogin),
			rec(name, "10:01:00", StateReady),
		})
	}
	rows := agg.Report()
	got := []string{rows[0].Agent, rows[1].Agent, rows[2].Agent}
	want := []string{"Agent2", "agent10", "agent9"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestReport_UnpairedAgentsExcluded(t *testing.T) {
	agg := New()
	agg.Ingest([]Record{
		rec("LoginOnly", "08:00:00", StateLogin),
		rec("ReadyOnly", "08:10:00", StateReady),
		rec("Both", "08:00:00", StateLogin),
		rec("Both", "08:02:00", StateReady),
	})
	rows := agg.Report()

	if len(rows) != 1 || rows[0].Agent != "Both" {
		t.Fatalf("expected only Both, got %+v", rows)
	}
	st := agg.Stats()
	if st.Unpaired != 2 {
		t.Errorf("expected 2 unpaired, got %d", st.Unpaired)
	}
	if st.Agents != 3 {
		t.Errorf("expected 3 agents, got %d", st.Agents)
	}
}

func TestIngest_SentinelNeverCounts(t *testing.T) {
	agg := New()
	agg.Ingest([]Record{
		rec("A", "00:00:00", StateLogin),
		rec("A", "08:00:00", StateLogin),
		rec("A", "00:00:00", StateReady),
		rec("A", "08:03:00", StateReady),
	})
	rows := agg.Report()

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].FirstLogin.String() != "08:00:00" || rows[0].FirstReady.String() != "08:03:00" {
		t.Errorf("sentinel leaked into result: %+v", rows[0])
	}
	if agg.Stats().SentinelExcluded != 2 {
		t.Errorf("expected 2 sentinel exclusions, got %d", agg.Stats().SentinelExcluded)
	}
}

func TestIngest_SentinelOnlyAgentHasNoRow(t *testing.T) {
	agg := New()
	agg.Ingest([]Record{
		rec("A", "00:00:00", StateLogin),
		rec("A", "08:03:00", StateReady),
	})
	if rows := agg.Report(); len(rows) != 0 {
		t.Fatalf("expected no rows, got %+v", rows)
	}
}

func TestIngest_EarliestLoginWins(t *testing.T) {
	agg := New()
	agg.Ingest([]Record{
		rec("A", "09:30:00", StateLogin),
		rec("A", "08:15:00", StateLogin),
		rec("A", "10:00:00", StateReady),
		rec("A", "08:45:00", StateLogin),
		rec("A", "08:20:00", StateReady),
	})
	rows := agg.Report()

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].FirstLogin.String() != "08:15:00" {
		t.Errorf("expected earliest login 08:15:00, got %s", rows[0].FirstLogin)
	}
	if rows[0].FirstReady.String() != "08:20:00" {
		t.Errorf("expected earliest ready 08:20:00, got %s", rows[0].FirstReady)
	}
	if rows[0].ElapsedSeconds != 300 {
		t.Errorf("expected 300, got %d", rows[0].ElapsedSeconds)
	}
}

func TestIngest_IgnoresOtherStates(t *testing.T) {
	agg := New()
	agg.Ingest([]Record{
		rec("A", "07:00:00", "NotReady"),
		rec("A", "07:30:00", "login"),
		rec("A", "08:00:00", StateLogin),
		rec("A", "08:01:00", "Break"),
		rec("A", "08:02:00", StateReady),
	})
	rows := agg.Report()

	if len(rows) != 1 || rows[0].ElapsedSeconds != 120 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if agg.Stats().IgnoredStates != 3 {
		t.Errorf("expected 3 ignored states, got %d", agg.Stats().IgnoredStates)
	}
}

func TestReport_OrderIndependent(t *testing.T) {
	records := []Record{
		rec("Amy", "08:00:00", StateLogin),
		rec("Amy", "08:10:00", StateReady),
		rec("Amy", "07:55:00", StateLogin),
		rec("Amy", "08:30:00", StateReady),
		rec("Bob", "22:00:00", StateLogin),
		rec("Bob", "22:30:00", StateReady),
		rec("Bob", "21:59:00", StateLogin),
		rec("Cat", "23:45:00", StateLogin),
		rec("Cat", "00:10:00", StateReady),
		rec("Cat", "00:00:00", StateReady),
		rec("Dan", "12:00:00", StateLogin),
	}
	baseline := Analyze(records).Rows

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 25; i++ {
		shuffled := make([]Record, len(records))
		copy(shuffled, records)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := Analyze(shuffled).Rows
		if len(got) != len(baseline) {
			t.Fatalf("iteration %d: expected %d rows, got %d", i, len(baseline), len(got))
		}
		for j := range got {
			if got[j] != baseline[j] {
				t.Fatalf("iteration %d row %d: expected %+v, got %+v", i, j, baseline[j], got[j])
			}
		}
	}
}

func TestReport_AllRowsWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	records := make([]Record, 0, 2000)
	agents := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for i := 0; i < 2000; i++ {
		state := StateLogin
		if rng.Intn(2) == 0 {
			state = StateReady
		}
		records = append(records, Record{
			Agent: agents[rng.Intn(len(agents))],
			Time:  clock.TimeOfDay(rng.Intn(clock.Day)),
			State: state,
		})
	}

	for _, row := range Analyze(records).Rows {
		if row.ElapsedSeconds <= 0 || row.ElapsedSeconds >= MaxInterval {
			t.Errorf("row out of bounds: %+v", row)
		}
	}
}

func TestReport_Empty(t *testing.T) {
	agg := New()
	agg.Ingest(nil)
	rows := agg.Report()
	if rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", rows)
	}
}

func TestAggregators_Independent(t *testing.T) {
	a := New()
	b := New()
	a.Ingest([]Record{rec("A", "08:00:00", StateLogin), rec("A", "08:01:00", StateReady)})

	if rows := b.Report(); len(rows) != 0 {
		t.Fatalf("second aggregator saw first aggregator's data: %+v", rows)
	}
}

func TestSummarize_Empty(t *testing.T) {
	_, err := Summarize(nil)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if ttrErrors.AsCode(err) != ttrErrors.CodeNoData {
		t.Errorf("expected NO_DATA code, got %q", ttrErrors.AsCode(err))
	}
}

func TestSummarize_OddCount(t *testing.T) {
	rows := []Row{{ElapsedSeconds: 300}, {ElapsedSeconds: 100}, {ElapsedSeconds: 200}}
	s, err := Summarize(rows)
	if err != nil {
		t.Fatal(err)
	}
	if s.Median != 200 || s.Mean != 200 || s.Min != 100 || s.Max != 300 || s.Count != 3 {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestSummarize_Single(t *testing.T) {
	s, err := Summarize([]Row{{ElapsedSeconds: 61}})
	if err != nil {
		t.Fatal(err)
	}
	if s.Mean != 61 || s.Median != 61 || s.Min != 61 || s.Max != 61 {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestAnalyze_EmptyHasNoSummary(t *testing.T) {
	res := Analyze([]Record{rec("A", "08:00:00", StateLogin)})
	if len(res.Rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(res.Rows))
	}
	if res.Summary != nil {
		t.Errorf("expected nil summary, got %+v", res.Summary)
	}
	if res.Stats.Records != 1 || res.Stats.Unpaired != 1 {
		t.Errorf("unexpected stats: %+v", res.Stats)
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := map[int]string{
		1:    "0 minutes, 1 seconds",
		59:   "0 minutes, 59 seconds",
		60:   "1 minutes, 0 seconds",
		330:  "5 minutes, 30 seconds",
		3725: "62 minutes, 5 seconds",
	}
	for in, want := range tests {
		if got := FormatElapsed(in); got != want {
			t.Errorf("FormatElapsed(%d) = %q, want %q", in, got, want)
		}
	}
}
