// Package loader turns delimited agent event logs into aggregate records.
//
// A load either returns every record or fails; callers never see a partial
// slice. Required columns are checked from the header before any data row is
// parsed.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/stxkxs/ttr/internal/aggregate"
	"github.com/stxkxs/ttr/internal/clock"
	ttrErrors "github.com/stxkxs/ttr/internal/errors"
)

// Required column names.
const (
	ColumnAgent = "AGENT"
	ColumnTime  = "TIME"
	ColumnState = "STATE"
)

// Options controls how the delimited text is read.
type Options struct {
	Delimiter rune // field separator, default ','
	Comment   rune // lines starting with this rune are skipped; 0 disables
	TrimSpace bool // trim surrounding whitespace from every field
}

// DefaultOptions matches a plain comma-separated export.
func DefaultOptions() Options {
	return Options{Delimiter: ',', TrimSpace: true}
}

type columns struct {
	agent, time, state int
}

// Load reads records from r. The first row must be a header naming the
// AGENT, TIME and STATE columns; other columns are ignored.
func Load(r io.Reader, opts Options) ([]aggregate.Record, error) {
	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.Comment = opts.Comment
	cr.TrimLeadingSpace = opts.TrimSpace
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ttrErrors.New(ttrErrors.CodeMissingColumn, "input is empty: no header row").
			WithSuggestion("Provide a header row with AGENT, TIME and STATE columns")
	}
	if err != nil {
		return nil, readError(err)
	}

	cols, err := locateColumns(header)
	if err != nil {
		return nil, err
	}

	var records []aggregate.Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, readError(err)
		}
		line, _ := cr.FieldPos(0)

		tod, err := clock.Parse(field(row, cols.time, opts))
		if err != nil {
			return nil, ttrErrors.Wrap(ttrErrors.CodeMalformedTime,
				fmt.Sprintf("line %d: bad %s value", line, ColumnTime), err).
				WithSuggestion("Write TIME values as 24-hour HH:MM:SS, e.g. 09:05:30")
		}

		records = append(records, aggregate.Record{
			Agent: field(row, cols.agent, opts),
			Time:  tod,
			State: field(row, cols.state, opts),
		})
	}

	if records == nil {
		records = []aggregate.Record{}
	}
	return records, nil
}

// LoadFile opens path and loads it.
func LoadFile(path string, opts Options) ([]aggregate.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ttrErrors.Wrap(ttrErrors.CodeInputUnreadable,
			fmt.Sprintf("cannot open %s", path), err).
			WithSuggestion("Check the file path and permissions")
	}
	defer f.Close()

	records, err := Load(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func locateColumns(header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	lookup := func(name string) int {
		i, ok := index[name]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}

	cols := columns{
		agent: lookup(ColumnAgent),
		time:  lookup(ColumnTime),
		state: lookup(ColumnState),
	}
	if len(missing) > 0 {
		return columns{}, ttrErrors.New(ttrErrors.CodeMissingColumn,
			fmt.Sprintf("missing required column(s): %s", strings.Join(missing, ", "))).
			WithSuggestion("The header row must name AGENT, TIME and STATE columns")
	}
	return cols, nil
}

func field(row []string, i int, opts Options) string {
	v := row[i]
	if opts.TrimSpace {
		v = strings.TrimSpace(v)
	}
	return v
}

func readError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return ttrErrors.Wrap(ttrErrors.CodeMalformedRow,
			fmt.Sprintf("line %d: unreadable row", pe.Line), pe.Err).
			WithSuggestion("Every row must have the same number of fields as the header")
	}
	return ttrErrors.Wrap(ttrErrors.CodeInputUnreadable, "failed to read input", err)
}
