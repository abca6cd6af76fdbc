//go:build integration

package integration

import (
	"bytes"
	"context"
	"strings"
	"testing"

	ttrErrors "github.com/stxkxs/ttr/internal/errors"
	"github.com/stxkxs/ttr/internal/event"
	"github.com/stxkxs/ttr/internal/report"
	"github.com/stxkxs/ttr/internal/testutil"
)

func TestReportWorkflow_EndToEnd(t *testing.T) {
	h := testutil.NewTestHarness(t)
	path := h.WriteLog("agent-details.csv", testutil.SampleLog+
		"Agent3,23:55:00,Login\n"+
		"Agent3,00:10:00,Ready\n"+
		"Agent4,00:00:00,Login\n"+
		"Agent4,08:00:00,Ready\n")

	out, err := h.Runner.RunFile(context.Background(), path)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var buf bytes.Buffer
	if err := report.WriteText(&buf, out.Result, report.TextOptions{}); err != nil {
		t.Fatal(err)
	}
	text := buf.String()

	// Agent3 rolls over midnight; Agent4's sentinel Login never counts.
	for _, want := range []string{
		"Agent1  09:00:00     09:05:30     5 minutes, 30 seconds",
		"Agent3  23:55:00     00:10:00     15 minutes, 0 seconds",
		"Average time to ready: 525.0 seconds",
		"Median time to ready: 345.0 seconds",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Agent4") {
		t.Errorf("agent without a real Login should not be reported:\n%s", text)
	}

	h.AssertEventEmitted(event.ReportStarted)
	h.AssertEventEmitted(event.ReportCompleted)
	h.AssertNoEvent(event.ReportFailed)

	run, err := h.History.Get(out.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if run.RowCount() != 3 || run.Result.Stats.SentinelExcluded != 1 || run.Result.Stats.RolledOver != 1 {
		t.Errorf("unexpected recorded run: %+v", run.Result.Stats)
	}
}

func TestReportWorkflow_MalformedInputRecorded(t *testing.T) {
	h := testutil.NewTestHarness(t)
	path := h.WriteLog("broken.csv", "AGENT,TIME,STATE\nAmy,8:00,Login\n")

	_, err := h.Runner.RunFile(context.Background(), path)
	if ttrErrors.AsCode(err) != ttrErrors.CodeMalformedTime {
		t.Fatalf("expected MALFORMED_TIME, got %v", err)
	}

	h.AssertEventEmitted(event.ReportFailed)
	h.AssertNoEvent(event.ReportCompleted)

	runs, err := h.History.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ErrorCode != ttrErrors.CodeMalformedTime {
		t.Errorf("expected a failed run with MALFORMED_TIME, got %+v", runs)
	}
	if h.Metrics.RunsFailed != 1 {
		t.Errorf("expected failure metric, got %d", h.Metrics.RunsFailed)
	}
}
