// Package records provides the in-memory record store that all detection and
// timeline components operate on. A Store holds one Dataset per ingested
// source; each Dataset is a sequence of rows over a shared, normalized column
// set. The store is read-only once built.
package records

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind discriminates the closed value variant held in a cell.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindText
	KindNumber
)

// Value is a single cell value: text, number, or null.
type Value struct {
	kind ValueKind
	text string
	num  float64
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Kind returns the variant of the value.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Text returns the textual content. Numbers render without a trailing ".0"
// when integral; null renders empty.
func (v Value) Text() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		if v.num == float64(int64(v.num)) {
			return strconv.FormatInt(int64(v.num), 10)
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// Number returns the numeric content and whether the value is a number.
func (v Value) Number() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Row maps normalized column names to cell values.
type Row map[string]Value

// Lookup returns the first alias present in the row with a non-null value.
// Aliases are compared after normalization, so callers may pass conventional
// names like "Event ID".
func (r Row) Lookup(aliases ...string) (Value, bool) {
	for _, alias := range aliases {
		if v, ok := r[NormalizeColumn(alias)]; ok && !v.IsNull() {
			return v, true
		}
	}
	return Value{}, false
}

// Clone returns a shallow copy of the row. Values are immutable, so a map
// copy is a full snapshot.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Dataset is an ordered sequence of rows sharing one column set.
type Dataset struct {
	Name    string
	Columns []string
	Rows    []Row
}

// NewDataset creates an empty dataset with the given normalized columns.
func NewDataset(name string, columns []string) *Dataset {
	normalized := make([]string, len(columns))
	for i, c := range columns {
		normalized[i] = NormalizeColumn(c)
	}
	return &Dataset{Name: name, Columns: normalized}
}

// Append adds a row, padding missing columns with null so the shared-schema
// invariant holds.
func (d *Dataset) Append(row Row) {
	for _, col := range d.Columns {
		if _, ok := row[col]; !ok {
			row[col] = Null()
		}
	}
	d.Rows = append(d.Rows, row)
}

// Len returns the row count.
func (d *Dataset) Len() int { return len(d.Rows) }

// Cell returns the value at (rowIdx, column). ok is false when the index is
// out of range or the column does not exist.
func (d *Dataset) Cell(rowIdx int, column string) (Value, bool) {
	if rowIdx < 0 || rowIdx >= len(d.Rows) {
		return Value{}, false
	}
	v, ok := d.Rows[rowIdx][NormalizeColumn(column)]
	return v, ok
}

// RowAt returns the row at the index, or nil when out of range.
func (d *Dataset) RowAt(rowIdx int) Row {
	if rowIdx < 0 || rowIdx >= len(d.Rows) {
		return nil
	}
	return d.Rows[rowIdx]
}

// HasColumn reports whether the dataset carries the (normalized) column.
func (d *Dataset) HasColumn(column string) bool {
	col := NormalizeColumn(column)
	for _, c := range d.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Store maps source names to datasets and preserves insertion order so that
// full-store scans are deterministic.
type Store struct {
	order    []string
	datasets map[string]*Dataset
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{datasets: make(map[string]*Dataset)}
}

// Add registers a dataset under its name. Re-adding a name replaces the
// dataset but keeps its original position.
func (s *Store) Add(ds *Dataset) error {
	if ds == nil || ds.Name == "" {
		return fmt.Errorf("dataset must have a name")
	}
	if _, exists := s.datasets[ds.Name]; !exists {
		s.order = append(s.order, ds.Name)
	}
	s.datasets[ds.Name] = ds
	return nil
}

// Get returns the dataset for a source name.
func (s *Store) Get(name string) (*Dataset, bool) {
	ds, ok := s.datasets[name]
	return ds, ok
}

// Names returns source names in insertion order.
func (s *Store) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of datasets.
func (s *Store) Len() int { return len(s.order) }

// NormalizeColumn lowercases a column name and replaces spaces and dashes
// with underscores. Applied once, at the ingestion boundary.
func NormalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}
