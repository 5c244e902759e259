// Package ingestion reads lending and recovery ledgers from delimited text.
package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"provision-risk-lab/internal/domain"
)

// Ingestion errors
var (
	ErrInvalidLedger = errors.New("invalid ledger")
)

// DefaultDelimiter matches the exports produced by the upstream lending system.
const DefaultDelimiter = ';'

// Options controls how a ledger table is parsed.
type Options struct {
	// Delimiter defaults to DefaultDelimiter.
	Delimiter rune
	// DateColumns are tried in order; the first present one keys buckets.
	DateColumns []string
	// IntervalColumns are tried in order; the interval column is optional.
	IntervalColumns []string
}

// DefaultOptions returns the options used by the API and CLI.
func DefaultOptions() Options {
	return Options{
		Delimiter:       DefaultDelimiter,
		DateColumns:     []string{"ref_date", "SDATE"},
		IntervalColumns: []string{"INTERVAL", "interval"},
	}
}

// ReadLedgerFile opens path and parses it with ReadLedgerCSV.
func ReadLedgerFile(path string, opts Options) (*domain.Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLedgerCSV(f, opts)
}

// ReadLedgerCSV parses a header row followed by data rows.
// Cells that are empty or not numeric become NaN. Short rows are padded
// with NaN and extra trailing fields are ignored.
func ReadLedgerCSV(r io.Reader, opts Options) (*domain.Ledger, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = DefaultDelimiter
	}
	if len(opts.DateColumns) == 0 {
		opts.DateColumns = DefaultOptions().DateColumns
	}
	if len(opts.IntervalColumns) == 0 {
		opts.IntervalColumns = DefaultOptions().IntervalColumns
	}

	cr := csv.NewReader(r)
	cr.Comma = opts.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidLedger)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrInvalidLedger, err)
	}

	labels := make([]string, len(header))
	for i, h := range header {
		labels[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	if len(labels) == 0 || (len(labels) == 1 && labels[0] == "") {
		return nil, fmt.Errorf("%w: missing header", ErrInvalidLedger)
	}

	dateIdx := indexOf(labels, opts.DateColumns)
	if dateIdx < 0 {
		return nil, fmt.Errorf("%w: no date column (want one of %v)", ErrInvalidLedger, opts.DateColumns)
	}
	intervalIdx := indexOf(labels, opts.IntervalColumns)

	var rows []domain.LedgerRow
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidLedger, line, err)
		}

		row := domain.LedgerRow{
			Cells: make([]float64, len(labels)),
		}
		for c := range labels {
			if c >= len(record) {
				row.Cells[c] = math.NaN()
				continue
			}
			row.Cells[c] = parseCell(record[c])
		}
		if dateIdx < len(record) {
			row.Bucket = strings.TrimSpace(record[dateIdx])
		}
		if intervalIdx >= 0 && intervalIdx < len(record) {
			row.Interval, row.HasInterval = parseInterval(record[intervalIdx])
		}
		rows = append(rows, row)
	}

	return domain.NewLedger(labels, rows)
}

func indexOf(labels, candidates []string) int {
	for _, want := range candidates {
		for i, l := range labels {
			if l == want {
				return i
			}
		}
	}
	return -1
}

func parseCell(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseInterval(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int(f), true
	}
	return 0, false
}
