// Package schema describes the typed columns of a remote database and encodes
// loosely typed spreadsheet values into the remote wire format.
package schema

import (
	"encoding/json"
)

// FieldType is the declared data kind of a remote column.
//
// Only the types the importer knows how to encode have their own variant.
// Everything else parses to Unsupported so callers can report it instead of
// silently dropping values.
type FieldType int

const (
	// Unsupported covers every remote type without an encoding rule
	// (date, people, relation, formula, ...).
	Unsupported FieldType = iota
	// Title is the record's primary text column. Every record has exactly one.
	Title
	// Number is a float column.
	Number
	// Select is a single-choice option column.
	Select
	// RichText is a free-form text column.
	RichText
)

// String returns the remote type name.
func (ft FieldType) String() string {
	switch ft {
	case Title:
		return "title"
	case Number:
		return "number"
	case Select:
		return "select"
	case RichText:
		return "rich_text"
	default:
		return "unsupported"
	}
}

// ParseFieldType maps a remote type name onto a FieldType.
// Unknown names yield Unsupported.
func ParseFieldType(name string) FieldType {
	switch name {
	case "title":
		return Title
	case "number":
		return Number
	case "select":
		return Select
	case "rich_text":
		return RichText
	default:
		return Unsupported
	}
}

// MarshalText implements encoding.TextMarshaler.
func (ft FieldType) MarshalText() ([]byte, error) {
	return []byte(ft.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (ft *FieldType) UnmarshalText(text []byte) error {
	*ft = ParseFieldType(string(text))
	return nil
}

// Property is one column descriptor of a remote schema.
type Property struct {
	ID   string
	Name string
	Type FieldType
	// TypeName keeps the remote type string, which matters for Unsupported
	// columns where Type alone loses it.
	TypeName string
}

// UnmarshalJSON decodes the remote `{"id": ..., "name": ..., "type": ...}` shape.
func (p *Property) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.ID = raw.ID
	p.Name = raw.Name
	p.TypeName = raw.Type
	p.Type = ParseFieldType(raw.Type)
	return nil
}

// MarshalJSON encodes the property in the remote schema shape, with an empty
// configuration object under the type key.
func (p Property) MarshalJSON() ([]byte, error) {
	typeName := p.TypeName
	if typeName == "" {
		typeName = p.Type.String()
	}
	out := map[string]any{
		"name":   p.Name,
		"type":   typeName,
		typeName: struct{}{},
	}
	if p.ID != "" {
		out["id"] = p.ID
	}
	return json.Marshal(out)
}
