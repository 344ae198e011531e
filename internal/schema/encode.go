package schema

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTypeCoercion is returned when a value cannot be converted to the
	// representation its column requires.
	ErrTypeCoercion = errors.New("type coercion failed")

	// ErrUnsupportedType is returned when a column's type has no encoding rule.
	ErrUnsupportedType = errors.New("unsupported field type")

	// ErrUnknownColumn is returned when a column is not part of the schema.
	ErrUnknownColumn = errors.New("column not in schema")
)

// CoercionError records the value and target type of a failed conversion.
type CoercionError struct {
	Type  FieldType
	Value any
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot convert %#v to %s", e.Value, e.Type)
}

func (e *CoercionError) Unwrap() error {
	return ErrTypeCoercion
}

// Text is the content of a text segment.
type Text struct {
	Content string `json:"content"`
}

// RichTextItem is one segment of a title or rich text value. Writes only set
// Text; reads also carry PlainText.
type RichTextItem struct {
	Type      string `json:"type,omitempty"`
	Text      *Text  `json:"text,omitempty"`
	PlainText string `json:"plain_text,omitempty"`
}

// SelectOption is a single-choice option.
type SelectOption struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// PropertyValue is the wire encoding of one column value in a create or
// update request. Exactly one of the fields is set.
type PropertyValue struct {
	Title    []RichTextItem `json:"title,omitempty"`
	RichText []RichTextItem `json:"rich_text,omitempty"`
	Number   *float64       `json:"number,omitempty"`
	Select   *SelectOption  `json:"select,omitempty"`
}

// Properties is the payload of a create or update request.
type Properties map[string]PropertyValue

// HasTitle reports whether any payload column is the schema's title column.
func (p Properties) HasTitle(s Schema) bool {
	for column := range p {
		if ft, ok := s.TypeOf(column); ok && ft == Title {
			return true
		}
	}
	return false
}

func textSegments(content string) []RichTextItem {
	return []RichTextItem{{Text: &Text{Content: content}}}
}

// Encode converts a raw value into the wire encoding for the given type.
func Encode(ft FieldType, value any) (PropertyValue, error) {
	switch ft {
	case Title:
		return PropertyValue{Title: textSegments(Stringify(value))}, nil
	case RichText:
		return PropertyValue{RichText: textSegments(Stringify(value))}, nil
	case Number:
		f, err := ToFloat(value)
		if err != nil {
			return PropertyValue{}, err
		}
		return PropertyValue{Number: &f}, nil
	case Select:
		return PropertyValue{Select: &SelectOption{Name: Stringify(value)}}, nil
	case Unsupported:
		return PropertyValue{}, ErrUnsupportedType
	default:
		return PropertyValue{}, ErrUnsupportedType
	}
}

// EncodeRow builds a Properties payload from column/value pairs.
//
// Columns missing from the schema or with an unsupported type are left out of
// the payload and reported through onSkip (which may be nil). Coercion
// failures abort with an error.
func EncodeRow(s Schema, row iter.Seq2[string, any], onSkip func(column string, err error)) (Properties, error) {
	props := make(Properties)
	for column, value := range row {
		p, ok := s[column]
		if !ok {
			if onSkip != nil {
				onSkip(column, ErrUnknownColumn)
			}
			continue
		}

		pv, err := Encode(p.Type, value)
		if errors.Is(err, ErrUnsupportedType) {
			if onSkip != nil {
				onSkip(column, fmt.Errorf("%w: %s", ErrUnsupportedType, p.TypeName))
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", column, err)
		}
		props[column] = pv
	}
	return props, nil
}

// Stringify renders a raw value as text. Floats use the shortest decimal
// form, so a spreadsheet 42 becomes "42". Booleans render as "True" and
// "False", and times as "2006-01-02 15:04:05" with microseconds appended when
// present.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "True"
		}
		return "False"
	case time.Time:
		if v.Nanosecond() != 0 {
			return v.Format("2006-01-02 15:04:05.000000")
		}
		return v.Format(time.DateTime)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// ToFloat converts a raw value to float64. Strings are trimmed and parsed;
// booleans count as 1 and 0.
func ToFloat(value any) (float64, error) {
	var f float64
	switch v := value.(type) {
	case bool:
		if v {
			f = 1
		}
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case int32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, &CoercionError{Type: Number, Value: value}
		}
		f = parsed
	default:
		return 0, &CoercionError{Type: Number, Value: value}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &CoercionError{Type: Number, Value: value}
	}
	return f, nil
}
