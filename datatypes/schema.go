package datatypes

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateField reports a schema or struct declaration with two fields of
// the same name.
var ErrDuplicateField = errors.New("duplicate field name")

// Schema is an ordered mapping of unique column names to data types. The zero
// value is the empty schema. Schemas are immutable once constructed.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema builds a schema from ordered fields. Field names must be non-empty
// and unique.
func NewSchema(fields ...Field) (Schema, error) {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return Schema{}, fmt.Errorf("schema field %d has an empty name", i)
		}
		if _, dup := index[f.Name]; dup {
			return Schema{}, fmt.Errorf("%w: %q", ErrDuplicateField, f.Name)
		}
		index[f.Name] = i
	}
	owned := make([]Field, len(fields))
	copy(owned, fields)
	return Schema{fields: owned, index: index}, nil
}

// MustSchema is like NewSchema but panics on invalid fields. Intended for
// statically known schemas such as test fixtures and example catalogs.
func MustSchema(fields ...Field) Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic("datatypes: " + err.Error())
	}
	return s
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.fields) }

// Fields returns the ordered fields. The caller must not mutate the result.
func (s Schema) Fields() []Field { return s.fields }

// Field returns the field at position i.
func (s Schema) Field(i int) Field { return s.fields[i] }

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// IndexOf returns the position of the named column.
func (s Schema) IndexOf(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// TypeOf returns the type of the named column.
func (s Schema) TypeOf(name string) (DataType, bool) {
	if i, ok := s.index[name]; ok {
		return s.fields[i].Type, true
	}
	return DataType{}, false
}

// Has reports whether the schema contains the named column.
func (s Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Equal reports whether two schemas have the same columns in the same order
// with equal types.
func (s Schema) Equal(other Schema) bool {
	if len(s.fields) != len(other.fields) {
		return false
	}
	for i, f := range s.fields {
		if f.Name != other.fields[i].Name || !f.Type.Equal(other.fields[i].Type) {
			return false
		}
	}
	return true
}

// AsStruct returns the schema as an equivalent struct type.
func (s Schema) AsStruct() DataType {
	return Struct(s.fields...)
}

// String renders one "name  type" line per column.
func (s Schema) String() string {
	if len(s.fields) == 0 {
		return "schema {}"
	}
	width := 0
	for _, f := range s.fields {
		if len(f.Name) > width {
			width = len(f.Name)
		}
	}
	var sb strings.Builder
	sb.WriteString("schema {\n")
	for _, f := range s.fields {
		fmt.Fprintf(&sb, "  %-*s  %s\n", width, f.Name, f.Type)
	}
	sb.WriteString("}")
	return sb.String()
}
