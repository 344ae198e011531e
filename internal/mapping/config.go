package mapping

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Target names the remote column a raw column is copied to.
//
// Both the full and the shorthand form are accepted:
//
//	map:
//	  "Product Name":
//	    column: Name
//	  Qty: Quantity
type Target struct {
	Column string `yaml:"column"`
}

// UnmarshalYAML accepts a mapping with a column key or a bare scalar.
func (t *Target) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		t.Column = node.Value
		return nil
	}
	type plain Target
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*t = Target(p)
	return nil
}

// Assignment is a literal value written to a column of every mapped row.
type Assignment struct {
	Column string
	Value  any
}

// Assignments keeps the document order of the assign section so that
// columns it introduces land in a stable position of the mapped row.
type Assignments []Assignment

// UnmarshalYAML decodes a YAML mapping preserving key order.
func (a *Assignments) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: assign must be a mapping", node.Line)
	}
	out := make(Assignments, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var value any
		if err := val.Decode(&value); err != nil {
			return fmt.Errorf("line %d: assign %q: %w", val.Line, key.Value, err)
		}
		out = append(out, Assignment{Column: key.Value, Value: value})
	}
	*a = out
	return nil
}

// MarshalYAML encodes the assignments as a mapping in order.
func (a Assignments) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, as := range a {
		val := &yaml.Node{}
		if err := val.Encode(as.Value); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: as.Column}, val)
	}
	return node, nil
}

// PrimarySet is the set of mapped column names used to look up existing
// records.
type PrimarySet map[string]struct{}

// NewPrimarySet builds a PrimarySet from column names.
func NewPrimarySet(columns ...string) PrimarySet {
	p := make(PrimarySet, len(columns))
	for _, c := range columns {
		p[c] = struct{}{}
	}
	return p
}

// Has reports whether column is in the set.
func (p PrimarySet) Has(column string) bool {
	_, ok := p[column]
	return ok
}

// Sorted returns the members in sorted order.
func (p PrimarySet) Sorted() []string {
	out := make([]string, 0, len(p))
	for c := range p {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// UnmarshalYAML accepts a list of names, the keys of a mapping or a single
// scalar name.
func (p *PrimarySet) UnmarshalYAML(node *yaml.Node) error {
	set := make(PrimarySet)
	switch node.Kind {
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: primary entries must be column names", item.Line)
			}
			set[item.Value] = struct{}{}
		}
	case yaml.MappingNode:
		for i := 0; i < len(node.Content); i += 2 {
			set[node.Content[i].Value] = struct{}{}
		}
	case yaml.ScalarNode:
		if node.Value != "" {
			set[node.Value] = struct{}{}
		}
	default:
		return fmt.Errorf("line %d: primary must be a list of column names", node.Line)
	}
	*p = set
	return nil
}

// MarshalYAML encodes the set as a sorted list.
func (p PrimarySet) MarshalYAML() (any, error) {
	return p.Sorted(), nil
}

// Config is the user-supplied column mapping.
//
//	map:
//	  "Product Name":
//	    column: Name
//	  ProductID:
//	    column: ID
//	assign:
//	  Status: Imported
//	primary:
//	  - ID
type Config struct {
	Map     map[string]Target `yaml:"map,omitempty"`
	Assign  Assignments       `yaml:"assign,omitempty"`
	Primary PrimarySet        `yaml:"primary,omitempty"`
}

// Validate checks that every mapping and assignment names a column.
func (c *Config) Validate() error {
	keys := make([]string, 0, len(c.Map))
	for k := range c.Map {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if c.Map[k].Column == "" {
			return fmt.Errorf("map %q: column is required", k)
		}
	}
	for _, a := range c.Assign {
		if a.Column == "" {
			return fmt.Errorf("assign: column name is required")
		}
	}
	for col := range c.Primary {
		if col == "" {
			return fmt.Errorf("primary: column name is required")
		}
	}
	return nil
}

// Lookup finds the mapping for a raw column name, falling back to its
// normalized form.
func (c *Config) Lookup(column string) (Target, bool) {
	if t, ok := c.Map[column]; ok {
		return t, true
	}
	if t, ok := c.Map[Normalize(column)]; ok {
		return t, true
	}
	return Target{}, false
}
