package mapping

import (
	"iter"
	"math"
)

// Cell is one column value of a row.
type Cell struct {
	Column string
	Value  any
}

// Row is an ordered set of column values. Values are string, float64, int,
// bool or missing (nil or NaN).
type Row []Cell

// Get returns the value of a column.
func (r Row) Get(column string) (any, bool) {
	for _, c := range r {
		if c.Column == column {
			return c.Value, true
		}
	}
	return nil, false
}

// Set assigns a column value. An existing column keeps its position and has
// its value replaced; a new column is appended.
func (r *Row) Set(column string, value any) {
	for i := range *r {
		if (*r)[i].Column == column {
			(*r)[i].Value = value
			return
		}
	}
	*r = append(*r, Cell{Column: column, Value: value})
}

// Columns returns the column names in row order.
func (r Row) Columns() []string {
	cols := make([]string, len(r))
	for i, c := range r {
		cols[i] = c.Column
	}
	return cols
}

// All iterates over column/value pairs in row order.
func (r Row) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, c := range r {
			if !yield(c.Column, c.Value) {
				return
			}
		}
	}
}

// Map returns the row as a plain map, mostly for logging.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r))
	for _, c := range r {
		m[c.Column] = c.Value
	}
	return m
}

// IsMissing reports whether a value counts as an empty cell.
func IsMissing(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(v)
	case float32:
		return math.IsNaN(float64(v))
	default:
		return false
	}
}
