// Package report renders aggregation results as text, CSV or JSON.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/stxkxs/ttr/internal/aggregate"
	ttrErrors "github.com/stxkxs/ttr/internal/errors"
)

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", ttrErrors.New(ttrErrors.CodeUnsupportedFormat, fmt.Sprintf("unsupported output format: %s", s)).
		WithSuggestion("Use one of: text, json, csv")
}

// Column headers, shared by every tabular encoding.
const (
	HeaderAgent      = "Agent"
	HeaderFirstLogin = "First Login"
	HeaderFirstReady = "First Ready"
	HeaderSeconds    = "Time to Ready (seconds)"
	HeaderDisplay    = "Time to Ready"
)

// Headers returns the column set. The human-facing variant omits the raw
// seconds column.
func Headers(withSeconds bool) []string {
	if withSeconds {
		return []string{HeaderAgent, HeaderFirstLogin, HeaderFirstReady, HeaderSeconds, HeaderDisplay}
	}
	return []string{HeaderAgent, HeaderFirstLogin, HeaderFirstReady, HeaderDisplay}
}

func cells(r aggregate.Row, withSeconds bool) []string {
	if withSeconds {
		return []string{r.Agent, r.FirstLogin.String(), r.FirstReady.String(), strconv.Itoa(r.ElapsedSeconds), r.ElapsedDisplay}
	}
	return []string{r.Agent, r.FirstLogin.String(), r.FirstReady.String(), r.ElapsedDisplay}
}

// WriteCSV writes rows as comma-separated text with a header line.
func WriteCSV(w io.Writer, rows []aggregate.Row, withSeconds bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers(withSeconds)); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(cells(r, withSeconds)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the full result, indented.
func WriteJSON(w io.Writer, res aggregate.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// TextOptions controls the plain-text rendering.
type TextOptions struct {
	WithSeconds bool
	Color       bool
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("111"))
	noteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// WriteText prints the report table followed by summary statistics.
func WriteText(w io.Writer, res aggregate.Result, opts TextOptions) error {
	title := func(s string) string {
		underline := strings.Repeat("=", len(s))
		if opts.Color {
			return titleStyle.Render(s) + "\n" + underline
		}
		return s + "\n" + underline
	}
	note := func(s string) string {
		if opts.Color {
			return noteStyle.Render(s)
		}
		return s
	}

	fmt.Fprintf(w, "\n%s\n", title("Agent Login to Ready Time Analysis:"))

	if len(res.Rows) == 0 {
		fmt.Fprintln(w, note("No agents with both a Login and a Ready event in range."))
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(Headers(opts.WithSeconds), "\t"))
		for _, r := range res.Rows {
			fmt.Fprintln(tw, strings.Join(cells(r, opts.WithSeconds), "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\n%s\n", title("Summary Statistics:"))
	if res.Summary == nil {
		fmt.Fprintln(w, note("Not available: no qualifying agents."))
		return nil
	}
	for _, line := range SummaryLines(*res.Summary) {
		fmt.Fprintln(w, line)
	}
	return nil
}

// SummaryLines formats each statistic with one decimal place.
func SummaryLines(s aggregate.Summary) []string {
	return []string{
		fmt.Sprintf("Average time to ready: %.1f seconds", s.Mean),
		fmt.Sprintf("Minimum time to ready: %.1f seconds", s.Min),
		fmt.Sprintf("Maximum time to ready: %.1f seconds", s.Max),
		fmt.Sprintf("Median time to ready: %.1f seconds", s.Median),
	}
}

// Write dispatches on format.
func Write(w io.Writer, format Format, res aggregate.Result, opts TextOptions) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, res)
	case FormatCSV:
		return WriteCSV(w, res.Rows, opts.WithSeconds)
	default:
		return WriteText(w, res, opts)
	}
}
