// Package dataset holds the in-memory table that moves between the document
// store, the CSV partitions, and the preprocessing step.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

var (
	ErrColumnNotFound = errors.New("column not found")
	ErrEmptyTable     = errors.New("table has no rows")
)

// Table is a row-major table of string cells. Typing happens at the point
// of use (Floats), the way the schema says, not at load time.
type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// NewTable builds a table and checks every row has one cell per column
func NewTable(columns []string, rows [][]string) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		index[c] = i
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", i, len(r), len(columns))
		}
	}
	return &Table{Columns: columns, Rows: rows, index: index}, nil
}

// MustTable is NewTable for literals in tests and fixtures
func MustTable(columns []string, rows [][]string) *Table {
	t, err := NewTable(columns, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of rows
func (t *Table) Len() int { return len(t.Rows) }

// Width returns the number of columns
func (t *Table) Width() int { return len(t.Columns) }

// Has reports whether the table has a column
func (t *Table) Has(name string) bool {
	_, ok := t.lookup()[name]
	return ok
}

// Missing returns the names that are not columns of t, in the order given
func (t *Table) Missing(names ...string) []string {
	var out []string
	for _, n := range names {
		if !t.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

func (t *Table) lookup() map[string]int {
	if t.index == nil {
		t.index = make(map[string]int, len(t.Columns))
		for i, c := range t.Columns {
			t.index[c] = i
		}
	}
	return t.index
}

func (t *Table) colIndex(name string) (int, error) {
	i, ok := t.lookup()[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return i, nil
}

// Column returns a copy of a column's cells
func (t *Table) Column(name string) ([]string, error) {
	j, err := t.colIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[j]
	}
	return out, nil
}

// Floats parses a column as float64. Missing cells become NaN.
func (t *Table) Floats(name string) ([]float64, error) {
	j, err := t.colIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		if IsMissing(r[j]) {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(r[j]), 64)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %q is not numeric", name, i, r[j])
		}
		out[i] = v
	}
	return out, nil
}

// IsNumeric reports whether every non-missing cell of a column parses as a number
func (t *Table) IsNumeric(name string) bool {
	j, err := t.colIndex(name)
	if err != nil {
		return false
	}
	seen := false
	for _, r := range t.Rows {
		if IsMissing(r[j]) {
			continue
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(r[j]), 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

// Select returns a new table with only the named columns, in the given order
func (t *Table) Select(names ...string) (*Table, error) {
	idx := make([]int, len(names))
	for k, n := range names {
		j, err := t.colIndex(n)
		if err != nil {
			return nil, err
		}
		idx[k] = j
	}
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]string, len(idx))
		for k, j := range idx {
			row[k] = r[j]
		}
		rows[i] = row
	}
	return NewTable(append([]string(nil), names...), rows)
}

// Drop returns a new table without the named columns. Naming a column that
// does not exist is an error.
func (t *Table) Drop(names ...string) (*Table, error) {
	if missing := t.Missing(names...); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, strings.Join(missing, ", "))
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	keep := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !drop[c] {
			keep = append(keep, c)
		}
	}
	return t.Select(keep...)
}

// DropNA returns a new table without rows that have any missing cell
func (t *Table) DropNA() *Table {
	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		complete := true
		for _, c := range r {
			if IsMissing(c) {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, r)
		}
	}
	return &Table{Columns: append([]string(nil), t.Columns...), Rows: rows}
}

// Subset returns the rows at the given positions, in that order
func (t *Table) Subset(idx []int) *Table {
	rows := make([][]string, len(idx))
	for k, i := range idx {
		rows[k] = t.Rows[i]
	}
	return &Table{Columns: append([]string(nil), t.Columns...), Rows: rows}
}

// Split shuffles the rows and puts ceil(n*testSize) of them into test and the
// rest into train. A nil rng is seeded from the clock.
func (t *Table) Split(testSize float64, rng *rand.Rand) (train, test *Table, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0, 1), got %v", testSize)
	}
	n := t.Len()
	if n < 2 {
		return nil, nil, fmt.Errorf("%w: need at least 2 rows to split, have %d", ErrEmptyTable, n)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest >= n {
		nTest = n - 1
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	perm := rng.Perm(n)
	return t.Subset(perm[nTest:]), t.Subset(perm[:nTest]), nil
}

// AppendColumn returns a new table with one extra column at the end
func (t *Table) AppendColumn(name string, values []string) (*Table, error) {
	if len(values) != t.Len() {
		return nil, fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), t.Len())
	}
	rows := make([][]string, t.Len())
	for i, r := range t.Rows {
		row := make([]string, 0, len(r)+1)
		row = append(row, r...)
		rows[i] = append(row, values[i])
	}
	return NewTable(append(append([]string(nil), t.Columns...), name), rows)
}

var missingTokens = map[string]bool{
	"": true, "NA": true, "N/A": true, "NaN": true, "nan": true,
	"null": true, "NULL": true, "None": true, "<NA>": true,
}

// IsMissing reports whether a cell counts as a missing value
func IsMissing(cell string) bool {
	return missingTokens[strings.TrimSpace(cell)]
}

// FormatFloat renders a float so that parsing it back gives the same value
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
