package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stxkxs/ttr/internal/aggregate"
	"github.com/stxkxs/ttr/internal/clock"
	ttrErrors "github.com/stxkxs/ttr/internal/errors"
)

func sampleResult() aggregate.Result {
	return aggregate.Analyze([]aggregate.Record{
		{Agent: "Agent1", Time: clock.MustParse("09:00:00"), State: "Login"},
		{Agent: "Agent1", Time: clock.MustParse("09:05:30"), State: "Ready"},
		{Agent: "Agent2", Time: clock.MustParse("09:15:00"), State: "Login"},
		{Agent: "Agent2", Time: clock.MustParse("09:20:45"), State: "Ready"},
	})
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "TEXT": FormatText, "json": FormatJSON, " csv ": FormatCSV} {
		got, err := ParseFormat(in)
		if err != nil {
			t.Fatalf("ParseFormat(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseFormat(%q) = %s, want %s", in, got, want)
		}
	}

	_, err := ParseFormat("xlsx")
	if ttrErrors.AsCode(err) != ttrErrors.CodeUnsupportedFormat {
		t.Errorf("expected UNSUPPORTED_FORMAT, got %v", err)
	}
}

func TestWriteCSV_HumanVariant(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleResult().Rows, false); err != nil {
		t.Fatal(err)
	}
	want := "Agent,First Login,First Ready,Time to Ready\n" +
		"Agent1,09:00:00,09:05:30,\"5 minutes, 30 seconds\"\n" +
		"Agent2,09:15:00,09:20:45,\"5 minutes, 45 seconds\"\n"
	if buf.String() != want {
		t.Errorf("unexpected CSV:\n%s", buf.String())
	}
}

func TestWriteCSV_WithSeconds(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleResult().Rows, true); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "Agent,First Login,First Ready,Time to Ready (seconds),Time to Ready" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if lines[1] != `Agent1,09:00:00,09:05:30,330,"5 minutes, 30 seconds"` {
		t.Errorf("unexpected row: %s", lines[1])
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil, false); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "Agent,First Login,First Ready,Time to Ready\n" {
		t.Errorf("expected header only, got %q", buf.String())
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResult()); err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Rows []struct {
			Agent          string `json:"agent"`
			FirstLogin     string `json:"first_login"`
			ElapsedSeconds int    `json:"elapsed_seconds"`
		} `json:"rows"`
		Summary *struct {
			Mean   float64 `json:"mean"`
			Median float64 `json:"median"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded.Rows) != 2 || decoded.Rows[0].FirstLogin != "09:00:00" || decoded.Rows[1].ElapsedSeconds != 345 {
		t.Errorf("unexpected rows: %+v", decoded.Rows)
	}
	if decoded.Summary == nil || decoded.Summary.Mean != 337.5 {
		t.Errorf("unexpected summary: %+v", decoded.Summary)
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleResult(), TextOptions{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"Agent Login to Ready Time Analysis:",
		"Agent1  09:00:00     09:05:30     5 minutes, 30 seconds",
		"Average time to ready: 337.5 seconds",
		"Minimum time to ready: 330.0 seconds",
		"Maximum time to ready: 345.0 seconds",
		"Median time to ready: 337.5 seconds",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "(seconds)") {
		t.Error("human table should not include the seconds column")
	}
}

func TestWriteText_Empty(t *testing.T) {
	var buf bytes.Buffer
	res := aggregate.Analyze(nil)
	if err := WriteText(&buf, res, TextOptions{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "No agents") {
		t.Errorf("expected empty notice:\n%s", out)
	}
	if strings.Contains(out, "NaN") || strings.Contains(out, "Average") {
		t.Errorf("statistics should not render for an empty report:\n%s", out)
	}
}

func TestWrite_Dispatch(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, sampleResult(), TextOptions{WithSeconds: true}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "Agent,First Login") {
		t.Errorf("expected CSV output, got %q", buf.String())
	}
}
