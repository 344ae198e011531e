package schema

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
)

// Schema maps column names to their descriptors.
type Schema map[string]Property

// TypeOf returns the field type of a column and whether the column exists.
func (s Schema) TypeOf(column string) (FieldType, bool) {
	p, ok := s[column]
	if !ok {
		return Unsupported, false
	}
	return p.Type, true
}

// TitleColumn returns the name of the title column, if the schema has one.
func (s Schema) TitleColumn() (string, bool) {
	for name, p := range s {
		if p.Type == Title {
			return name, true
		}
	}
	return "", false
}

// Columns returns the column names in sorted order.
func (s Schema) Columns() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that the schema has exactly one title column.
func (s Schema) Validate() error {
	titles := 0
	for name, p := range s {
		if name == "" {
			return fmt.Errorf("column name is required")
		}
		if p.Type == Title {
			titles++
		}
	}
	if titles != 1 {
		return fmt.Errorf("schema must have exactly one title column (got %d)", titles)
	}
	return nil
}

// Definition is the on-disk form of a schema used to create local mirror
// databases:
//
//	title = "Inventory"
//
//	[columns]
//	Name = "title"
//	ID = "number"
//	Category = "select"
type Definition struct {
	Title   string            `toml:"title"`
	Columns map[string]string `toml:"columns"`
}

// Schema converts the definition into a Schema.
func (d *Definition) Schema() Schema {
	s := make(Schema, len(d.Columns))
	for name, typeName := range d.Columns {
		s[name] = Property{
			ID:       name,
			Name:     name,
			Type:     ParseFieldType(typeName),
			TypeName: typeName,
		}
	}
	return s
}

// LoadDefinition reads a TOML schema definition from path.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}

	var def Definition
	if _, err := toml.Decode(string(data), &def); err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}
	if len(def.Columns) == 0 {
		return nil, fmt.Errorf("schema file %s defines no columns", path)
	}
	if err := def.Schema().Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema file %s: %w", path, err)
	}
	return &def, nil
}
