// Package simplify flattens query results into one map per record, keyed by
// column name.
package simplify

import (
	"encoding/json"
	"iter"

	"github.com/tabsync/tabsync/internal/schema"
	"github.com/tabsync/tabsync/internal/store"
)

// Row is a flattened record. Title and select columns hold their display
// string; every other column holds its property value as received.
type Row map[string]any

// property is the part of a wire property value the simplifier reads.
type property struct {
	Type  string `json:"type"`
	Title []struct {
		PlainText string `json:"plain_text"`
	} `json:"title"`
	Select *struct {
		Name string `json:"name"`
	} `json:"select"`
}

// Simplify yields one Row per record of the page, in result order. Only
// record properties are kept; ids and timestamps are dropped.
func Simplify(result *store.QueryResult) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		if result == nil {
			return
		}
		for _, rec := range result.Results {
			if !yield(Record(rec)) {
				return
			}
		}
	}
}

// Record flattens the properties of a single record.
func Record(rec store.Record) Row {
	row := make(Row, len(rec.Properties))
	for name, raw := range rec.Properties {
		if v, ok := flatten(raw); ok {
			row[name] = v
		}
	}
	return row
}

// flatten returns the simplified value of one property and whether the key
// should be present at all.
func flatten(raw json.RawMessage) (any, bool) {
	var p property
	if err := json.Unmarshal(raw, &p); err != nil {
		return raw, true
	}

	switch schema.ParseFieldType(p.Type) {
	case schema.Title:
		if len(p.Title) == 0 {
			return nil, false
		}
		return p.Title[0].PlainText, true
	case schema.Select:
		if p.Select == nil {
			return nil, false
		}
		return p.Select.Name, true
	case schema.Number, schema.RichText, schema.Unsupported:
		return raw, true
	}
	return raw, true
}

// Collect gathers the simplified rows of result into a slice. The slice is
// empty, never nil, for a result without records.
func Collect(result *store.QueryResult) []Row {
	rows := []Row{}
	for row := range Simplify(result) {
		rows = append(rows, row)
	}
	return rows
}
