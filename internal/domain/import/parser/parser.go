// Package parser turns a delimited exchange export into typed rows.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/normalizer"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/sniffer"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
)

// ParseError reports a structural problem with the export. Row is the
// 1-based line number in the file; the header is line 1 when the file has
// no leading blank lines.
type ParseError struct {
	Row    int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// Record is one data line keyed by header name.
type Record struct {
	Line   int
	Fields map[string]string
}

// Options tune how fields are interpreted.
type Options struct {
	DateFormat string         // Preferred timestamp layout, e.g. "YYYY-MM-DD HH:mm:ss"
	Location   *time.Location // Zone of naive timestamps, UTC when nil
}

// Result holds everything the parser learned about an export. DateFormat is
// the single timestamp format every row matches, empty when rows differ.
type Result struct {
	Config     *sniffer.FileConfig
	Layout     *sniffer.Layout
	Records    []Record
	Rows       []ledger.RawRow
	DateFormat string
}

// Parse detects the export's shape, aligns and normalizes every line and
// converts it to a RawRow. Any problem aborts the whole parse.
func Parse(data []byte, opts Options) (*Result, error) {
	config, records, err := ParseRecords(data)
	if err != nil {
		return nil, err
	}

	layout := sniffer.SuggestLayout(config.Headers)
	if missing := layout.Missing(); len(missing) > 0 {
		return nil, &ParseError{
			Row:    config.SkipLines + 1,
			Reason: fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")),
		}
	}

	rows := make([]ledger.RawRow, 0, len(records))
	times := make([]string, 0, len(records))
	for _, rec := range records {
		row, err := ToRawRow(rec, layout, opts)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		times = append(times, rec.Fields[layout.Time])
	}

	return &Result{
		Config:     config,
		Layout:     layout,
		Records:    records,
		Rows:       rows,
		DateFormat: normalizer.DetectDateFormat(times, opts.DateFormat, opts.Location),
	}, nil
}

// ParseRecords splits the export into header-keyed records. Short lines are
// padded with empty fields, long lines are rejected.
func ParseRecords(data []byte) (*sniffer.FileConfig, []Record, error) {
	config, err := sniffer.DetectConfig(data)
	if err != nil {
		if errors.Is(err, sniffer.ErrEmptyFile) || errors.Is(err, sniffer.ErrNoHeadersFound) {
			return nil, nil, &ParseError{Row: 0, Reason: err.Error()}
		}
		return nil, nil, &ParseError{Row: 1, Reason: fmt.Sprintf("unreadable header: %v", err)}
	}

	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\ufeff"))))
	reader.Comma = config.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return nil, nil, &ParseError{Row: config.SkipLines + 1, Reason: fmt.Sprintf("unreadable header: %v", err)}
	}

	expected := len(config.Headers)
	var records []Record
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, nil, &ParseError{Row: csvErr.Line, Reason: csvErr.Err.Error()}
			}
			return nil, nil, &ParseError{Row: 0, Reason: err.Error()}
		}

		line, _ := reader.FieldPos(0)
		if isBlank(fields) {
			continue
		}
		if len(fields) > expected {
			return nil, nil, &ParseError{
				Row:    line,
				Reason: fmt.Sprintf("expected %d columns, got %d", expected, len(fields)),
			}
		}

		rec := Record{Line: line, Fields: make(map[string]string, expected)}
		for i, header := range config.Headers {
			value := ""
			if i < len(fields) {
				value = normalizer.NormalizeField(strings.TrimSpace(fields[i]))
			}
			rec.Fields[header] = value
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, nil, &ParseError{Row: config.SkipLines + 1, Reason: "file has no data rows"}
	}

	return config, records, nil
}

// ToRawRow types one record according to the layout.
func ToRawRow(rec Record, layout *sniffer.Layout, opts Options) (ledger.RawRow, error) {
	for _, col := range layout.NumericColumns() {
		if _, err := normalizer.ParseStrictAmount(rec.Fields[col]); err != nil {
			return ledger.RawRow{}, &ParseError{
				Row:    rec.Line,
				Reason: fmt.Sprintf("non-numeric value %q in column %q", rec.Fields[col], col),
			}
		}
	}

	rawTime := rec.Fields[layout.Time]
	ts, err := normalizer.ParseFlexibleDate(rawTime, opts.DateFormat, opts.Location)
	if err != nil {
		return ledger.RawRow{}, &ParseError{Row: rec.Line, Reason: fmt.Sprintf("invalid timestamp %q", rawTime)}
	}

	symbol := ledger.NormalizeSymbol(rec.Fields[layout.Coin])
	if symbol == "" {
		return ledger.RawRow{}, &ParseError{Row: rec.Line, Reason: fmt.Sprintf("empty value in column %q", layout.Coin)}
	}

	amount, _ := normalizer.ParseStrictAmount(rec.Fields[layout.Change])

	row := ledger.RawRow{
		Line:      rec.Line,
		Timestamp: ts.UTC(),
		Account:   strings.TrimSpace(rec.Fields[layout.Account]),
		Operation: normalizer.CleanDescription(rec.Fields[layout.Operation]),
		Symbol:    symbol,
		Amount:    amount,
	}
	if layout.UserID != "" {
		row.UserID = strings.TrimSpace(rec.Fields[layout.UserID])
	}
	if layout.Remark != "" {
		row.Remark = normalizer.CleanDescription(rec.Fields[layout.Remark])
	}
	return row, nil
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
