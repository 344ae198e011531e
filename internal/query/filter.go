// Package query builds the equality filters used to find the existing record
// for a mapped row.
package query

import (
	"fmt"

	"github.com/tabsync/tabsync/internal/mapping"
	"github.com/tabsync/tabsync/internal/schema"
)

// TextCondition matches title and select columns.
type TextCondition struct {
	Equals string `json:"equals"`
}

// NumberCondition matches number columns.
type NumberCondition struct {
	Equals float64 `json:"equals"`
}

// Predicate is one equality test on a column. Exactly one condition is set,
// matching the column's field type.
type Predicate struct {
	Property string           `json:"property"`
	Title    *TextCondition   `json:"title,omitempty"`
	Number   *NumberCondition `json:"number,omitempty"`
	Select   *TextCondition   `json:"select,omitempty"`
}

// Type returns the field type the predicate tests.
func (p Predicate) Type() schema.FieldType {
	switch {
	case p.Title != nil:
		return schema.Title
	case p.Number != nil:
		return schema.Number
	case p.Select != nil:
		return schema.Select
	default:
		return schema.Unsupported
	}
}

// String renders the predicate for log output.
func (p Predicate) String() string {
	switch {
	case p.Title != nil:
		return fmt.Sprintf("%s(title) = %q", p.Property, p.Title.Equals)
	case p.Number != nil:
		return fmt.Sprintf("%s(number) = %v", p.Property, p.Number.Equals)
	case p.Select != nil:
		return fmt.Sprintf("%s(select) = %q", p.Property, p.Select.Equals)
	default:
		return p.Property + "(?)"
	}
}

// Filter is a conjunction of predicates. It encodes as {"and": [...]}.
type Filter struct {
	And []Predicate `json:"and"`
}

// IsEmpty reports whether the filter has no predicates, in which case it
// matches every record.
func (f Filter) IsEmpty() bool {
	return len(f.And) == 0
}

// Build derives the lookup filter for a mapped row.
//
// Columns are visited in row order. With a non-empty primary set only its
// members contribute. Title and select columns yield string equality, number
// columns float equality; other types and columns unknown to the schema
// contribute nothing.
func Build(s schema.Schema, row mapping.Row, cfg *mapping.Config) (Filter, error) {
	f := Filter{And: []Predicate{}}

	var primary mapping.PrimarySet
	if cfg != nil {
		primary = cfg.Primary
	}

	for _, c := range row {
		if len(primary) > 0 && !primary.Has(c.Column) {
			continue
		}

		ft, _ := s.TypeOf(c.Column)
		switch ft {
		case schema.Title:
			f.And = append(f.And, Predicate{
				Property: c.Column,
				Title:    &TextCondition{Equals: schema.Stringify(c.Value)},
			})
		case schema.Number:
			n, err := schema.ToFloat(c.Value)
			if err != nil {
				return Filter{}, fmt.Errorf("filter on %q: %w", c.Column, err)
			}
			f.And = append(f.And, Predicate{
				Property: c.Column,
				Number:   &NumberCondition{Equals: n},
			})
		case schema.Select:
			f.And = append(f.And, Predicate{
				Property: c.Column,
				Select:   &TextCondition{Equals: schema.Stringify(c.Value)},
			})
		case schema.RichText, schema.Unsupported:
			// no equality filter for these
		}
	}

	return f, nil
}
