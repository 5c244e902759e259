package domain

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Ledger errors
var (
	ErrRowWidth = errors.New("row width does not match column count")
)

// MetadataColumns are never treated as denominations even when parseable.
var MetadataColumns = map[string]struct{}{
	"ref_date":            {},
	"interval":            {},
	"SDATE":               {},
	"INTERVAL":            {},
	"SUM_CENTS_PRINCIPAL": {},
}

// Column describes one ledger column.
type Column struct {
	Label        string
	Denomination float64 // face value; 0 for metadata columns
	IsMetadata   bool
}

// LedgerRow is the input shape for building a Ledger.
// Cells align with the ledger columns; missing or non-numeric cells are NaN.
type LedgerRow struct {
	Bucket      string // time bucket key (date)
	Interval    int
	HasInterval bool
	Cells       []float64
}

// Bucket groups the row indexes sharing one bucket key.
type Bucket struct {
	Key  string
	Rows []int
}

// Ledger is an immutable, column-oriented table of transaction amounts
// keyed by time bucket. Values are stored per column (values[col][row]).
type Ledger struct {
	columns     []Column
	buckets     []string
	intervals   []int
	hasInterval []bool
	values      [][]float64
}

// NewColumn classifies a header label.
func NewColumn(label string) Column {
	label = strings.TrimSpace(label)
	if _, excluded := MetadataColumns[label]; excluded {
		return Column{Label: label, IsMetadata: true}
	}
	v, err := strconv.ParseFloat(label, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Column{Label: label, IsMetadata: true}
	}
	return Column{Label: label, Denomination: v}
}

// NewLedger builds a Ledger from column labels and rows.
// Input slices are copied; the caller may reuse them.
func NewLedger(labels []string, rows []LedgerRow) (*Ledger, error) {
	l := &Ledger{
		columns:     make([]Column, len(labels)),
		buckets:     make([]string, len(rows)),
		intervals:   make([]int, len(rows)),
		hasInterval: make([]bool, len(rows)),
		values:      make([][]float64, len(labels)),
	}
	for c, label := range labels {
		l.columns[c] = NewColumn(label)
		l.values[c] = make([]float64, len(rows))
	}
	for r, row := range rows {
		if len(row.Cells) != len(labels) {
			return nil, ErrRowWidth
		}
		l.buckets[r] = row.Bucket
		l.intervals[r] = row.Interval
		l.hasInterval[r] = row.HasInterval
		for c, v := range row.Cells {
			l.values[c][r] = v
		}
	}
	return l, nil
}

// Len returns the number of rows.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.buckets)
}

// Columns returns a copy of the column descriptors.
func (l *Ledger) Columns() []Column {
	out := make([]Column, len(l.columns))
	copy(out, l.columns)
	return out
}

// DenominationColumns returns the indexes of weighted columns.
func (l *Ledger) DenominationColumns() []int {
	var idx []int
	for c, col := range l.columns {
		if !col.IsMetadata {
			idx = append(idx, c)
		}
	}
	return idx
}

// Column returns the descriptor of column c.
func (l *Ledger) Column(c int) Column {
	return l.columns[c]
}

// Value returns the cell at (row, col). NaN marks a missing or non-numeric cell.
func (l *Ledger) Value(row, col int) float64 {
	return l.values[col][row]
}

// Key returns the bucket key of a row.
func (l *Ledger) Key(row int) string {
	return l.buckets[row]
}

// Interval returns the sub-interval of a row and whether one was present.
func (l *Ledger) Interval(row int) (int, bool) {
	return l.intervals[row], l.hasInterval[row]
}

// Buckets returns distinct bucket keys in first-appearance order.
func (l *Ledger) Buckets() []Bucket {
	pos := make(map[string]int)
	var out []Bucket
	for r, key := range l.buckets {
		i, ok := pos[key]
		if !ok {
			i = len(out)
			pos[key] = i
			out = append(out, Bucket{Key: key})
		}
		out[i].Rows = append(out[i].Rows, r)
	}
	return out
}

// Builder returns a copy-on-write builder seeded with this ledger's values.
// The receiver is never modified.
func (l *Ledger) Builder() *LedgerBuilder {
	values := make([][]float64, len(l.values))
	for c := range l.values {
		values[c] = make([]float64, len(l.values[c]))
		copy(values[c], l.values[c])
	}
	return &LedgerBuilder{src: l, values: values}
}

// LedgerBuilder stages cell replacements for a new Ledger.
type LedgerBuilder struct {
	src    *Ledger
	values [][]float64
}

// Set replaces one cell in the staged copy.
func (b *LedgerBuilder) Set(row, col int, v float64) {
	b.values[col][row] = v
}

// Build returns a new Ledger sharing structure (columns, keys) with the source.
// Structural slices are never mutated, so sharing them is safe.
// The builder must not be used after Build.
func (b *LedgerBuilder) Build() *Ledger {
	return &Ledger{
		columns:     b.src.columns,
		buckets:     b.src.buckets,
		intervals:   b.src.intervals,
		hasInterval: b.src.hasInterval,
		values:      b.values,
	}
}
