// Package datatypes defines the logical type system shared by every relational
// plan: a closed set of scalar and composite data types, nullability tracking,
// implicit-cast rules and binary-operator promotion, ordered schemas, and a
// parser for the textual type syntax ("array<int64>", "decimal(9, 2)", ...).
package datatypes

import (
	"fmt"
	"strings"
)

// Kind discriminates the closed set of data type variants.
type Kind uint8

const (
	KindNull Kind = iota
	KindBoolean
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUInt8
	KindUInt16
	KindUInt32
	KindUInt64
	KindFloat32
	KindFloat64
	KindDecimal
	KindString
	KindBinary
	KindDate
	KindTime
	KindTimestamp
	KindInterval
	KindArray
	KindMap
	KindStruct
)

var kindNames = map[Kind]string{
	KindNull:      "null",
	KindBoolean:   "boolean",
	KindInt8:      "int8",
	KindInt16:     "int16",
	KindInt32:     "int32",
	KindInt64:     "int64",
	KindUInt8:     "uint8",
	KindUInt16:    "uint16",
	KindUInt32:    "uint32",
	KindUInt64:    "uint64",
	KindFloat32:   "float32",
	KindFloat64:   "float64",
	KindDecimal:   "decimal",
	KindString:    "string",
	KindBinary:    "binary",
	KindDate:      "date",
	KindTime:      "time",
	KindTimestamp: "timestamp",
	KindInterval:  "interval",
	KindArray:     "array",
	KindMap:       "map",
	KindStruct:    "struct",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Field is a named member of a struct type.
type Field struct {
	Name string
	Type DataType
}

// DataType is one logical type: a kind tag, a nullability flag, and the
// parameters of the parameterized kinds. Values are immutable; the zero value
// is the nullable null type.
type DataType struct {
	kind      Kind
	nonNull   bool
	precision int
	scale     int
	timezone  string
	unit      string
	elem      *DataType
	key       *DataType
	fields    []Field
}

// Nullable singletons for every non-parameterized kind.
var (
	Null    = DataType{kind: KindNull}
	Boolean = DataType{kind: KindBoolean}
	Int8    = DataType{kind: KindInt8}
	Int16   = DataType{kind: KindInt16}
	Int32   = DataType{kind: KindInt32}
	Int64   = DataType{kind: KindInt64}
	UInt8   = DataType{kind: KindUInt8}
	UInt16  = DataType{kind: KindUInt16}
	UInt32  = DataType{kind: KindUInt32}
	UInt64  = DataType{kind: KindUInt64}
	Float32 = DataType{kind: KindFloat32}
	Float64 = DataType{kind: KindFloat64}
	String  = DataType{kind: KindString}
	Binary  = DataType{kind: KindBinary}
	Date    = DataType{kind: KindDate}
	Time    = DataType{kind: KindTime}
)

// Timestamp returns a timestamp type. An empty timezone means a naive
// timestamp; anything else is an IANA zone name such as "UTC".
func Timestamp(timezone string) DataType {
	return DataType{kind: KindTimestamp, timezone: timezone}
}

// Decimal returns a fixed-point decimal type. It panics when precision is not
// positive, scale is negative, or scale exceeds precision, mirroring the
// constraints every SQL engine places on DECIMAL declarations.
func Decimal(precision, scale int) DataType {
	if precision <= 0 {
		panic(fmt.Sprintf("datatypes: decimal precision must be positive, got %d", precision))
	}
	if scale < 0 {
		panic(fmt.Sprintf("datatypes: decimal scale cannot be negative, got %d", scale))
	}
	if scale > precision {
		panic(fmt.Sprintf("datatypes: decimal scale %d exceeds precision %d", scale, precision))
	}
	return DataType{kind: KindDecimal, precision: precision, scale: scale}
}

// IntervalUnits enumerates the recognized interval units, from year down to
// nanosecond. Unit tokens are case sensitive: "M" is month, "m" is minute.
var IntervalUnits = []string{"Y", "Q", "M", "W", "D", "h", "m", "s", "ms", "us", "ns"}

// ValidIntervalUnit reports whether unit is one of IntervalUnits.
func ValidIntervalUnit(unit string) bool {
	for _, u := range IntervalUnits {
		if u == unit {
			return true
		}
	}
	return false
}

// Interval returns an interval type measured in the given unit. It panics on
// an unrecognized unit.
func Interval(unit string) DataType {
	if !ValidIntervalUnit(unit) {
		panic(fmt.Sprintf("datatypes: unknown interval unit %q", unit))
	}
	return DataType{kind: KindInterval, unit: unit}
}

// Array returns an array type with the given element type.
func Array(elem DataType) DataType {
	return DataType{kind: KindArray, elem: &elem}
}

// Map returns a map type with the given key and value types.
func Map(key, value DataType) DataType {
	return DataType{kind: KindMap, key: &key, elem: &value}
}

// Struct returns a struct type with the given ordered fields. It panics on
// duplicate field names.
func Struct(fields ...Field) DataType {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f.Name]; dup {
			panic(fmt.Sprintf("datatypes: duplicate struct field %q", f.Name))
		}
		seen[f.Name] = struct{}{}
	}
	return DataType{kind: KindStruct, fields: fields}
}

// Kind returns the variant tag.
func (d DataType) Kind() Kind { return d.kind }

// Nullable reports whether the type admits NULL.
func (d DataType) Nullable() bool { return !d.nonNull }

// AsNullable returns the same type with nullability switched on.
func (d DataType) AsNullable() DataType {
	d.nonNull = false
	return d
}

// AsNonNullable returns the same type with nullability switched off.
func (d DataType) AsNonNullable() DataType {
	d.nonNull = true
	return d
}

// WithNullable returns the same type with nullability set to nullable.
func (d DataType) WithNullable(nullable bool) DataType {
	d.nonNull = !nullable
	return d
}

// Precision returns the decimal precision; zero for non-decimal types.
func (d DataType) Precision() int { return d.precision }

// Scale returns the decimal scale; zero for non-decimal types.
func (d DataType) Scale() int { return d.scale }

// Timezone returns the timestamp timezone; empty for naive timestamps and
// non-timestamp types.
func (d DataType) Timezone() string { return d.timezone }

// Unit returns the interval unit; empty for non-interval types.
func (d DataType) Unit() string { return d.unit }

// Elem returns the element type of an array.
func (d DataType) Elem() DataType {
	if d.elem == nil {
		return Null
	}
	return *d.elem
}

// Key returns the key type of a map.
func (d DataType) Key() DataType {
	if d.key == nil {
		return Null
	}
	return *d.key
}

// Value returns the value type of a map.
func (d DataType) Value() DataType { return d.Elem() }

// Fields returns the ordered fields of a struct type. The caller must not
// mutate the returned slice.
func (d DataType) Fields() []Field { return d.fields }

// FieldType returns the type of the named struct field.
func (d DataType) FieldType(name string) (DataType, bool) {
	for _, f := range d.fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return DataType{}, false
}

// IsInteger reports whether the type is a signed or unsigned integer.
func (d DataType) IsInteger() bool {
	return d.kind >= KindInt8 && d.kind <= KindUInt64
}

// IsSignedInteger reports whether the type is int8 through int64.
func (d DataType) IsSignedInteger() bool {
	return d.kind >= KindInt8 && d.kind <= KindInt64
}

// IsUnsignedInteger reports whether the type is uint8 through uint64.
func (d DataType) IsUnsignedInteger() bool {
	return d.kind >= KindUInt8 && d.kind <= KindUInt64
}

// IsFloating reports whether the type is float32 or float64.
func (d DataType) IsFloating() bool {
	return d.kind == KindFloat32 || d.kind == KindFloat64
}

// IsNumeric reports whether the type is an integer, floating, or decimal.
func (d DataType) IsNumeric() bool {
	return d.IsInteger() || d.IsFloating() || d.kind == KindDecimal
}

// IsTemporal reports whether the type is a date, time, timestamp, or interval.
func (d DataType) IsTemporal() bool {
	return d.kind == KindDate || d.kind == KindTime || d.kind == KindTimestamp || d.kind == KindInterval
}

// IsComposite reports whether the type is an array, map, or struct.
func (d DataType) IsComposite() bool {
	return d.kind == KindArray || d.kind == KindMap || d.kind == KindStruct
}

// IsNull reports whether the type is the null type.
func (d DataType) IsNull() bool { return d.kind == KindNull }

// bytes returns the storage width of fixed-width numeric kinds.
func (d DataType) bytes() int {
	switch d.kind {
	case KindInt8, KindUInt8:
		return 1
	case KindInt16, KindUInt16:
		return 2
	case KindInt32, KindUInt32, KindFloat32:
		return 4
	case KindInt64, KindUInt64, KindFloat64:
		return 8
	}
	return 0
}

// Equal reports whether two types are identical, including nullability and
// all parameters.
func (d DataType) Equal(other DataType) bool {
	if d.kind != other.kind || d.nonNull != other.nonNull {
		return false
	}
	switch d.kind {
	case KindDecimal:
		return d.precision == other.precision && d.scale == other.scale
	case KindTimestamp:
		return d.timezone == other.timezone
	case KindInterval:
		return d.unit == other.unit
	case KindArray:
		return d.Elem().Equal(other.Elem())
	case KindMap:
		return d.Key().Equal(other.Key()) && d.Value().Equal(other.Value())
	case KindStruct:
		if len(d.fields) != len(other.fields) {
			return false
		}
		for i, f := range d.fields {
			if f.Name != other.fields[i].Name || !f.Type.Equal(other.fields[i].Type) {
				return false
			}
		}
		return true
	}
	return true
}

// EqualIgnoringNullability reports whether two types are identical apart from
// their top-level nullability flags.
func (d DataType) EqualIgnoringNullability(other DataType) bool {
	return d.AsNullable().Equal(other.AsNullable())
}

// String renders the canonical textual form, e.g. "int64", "decimal(9, 2)",
// "timestamp('UTC')", "array<!string>". Non-nullable types carry a "!" prefix.
// The output parses back to an equal type via Parse.
func (d DataType) String() string {
	var sb strings.Builder
	d.writeTo(&sb)
	return sb.String()
}

func (d DataType) writeTo(sb *strings.Builder) {
	if d.nonNull {
		sb.WriteByte('!')
	}
	sb.WriteString(kindNames[d.kind])
	switch d.kind {
	case KindDecimal:
		fmt.Fprintf(sb, "(%d, %d)", d.precision, d.scale)
	case KindTimestamp:
		if d.timezone != "" {
			fmt.Fprintf(sb, "('%s')", d.timezone)
		}
	case KindInterval:
		fmt.Fprintf(sb, "('%s')", d.unit)
	case KindArray:
		sb.WriteByte('<')
		d.Elem().writeTo(sb)
		sb.WriteByte('>')
	case KindMap:
		sb.WriteByte('<')
		d.Key().writeTo(sb)
		sb.WriteString(", ")
		d.Value().writeTo(sb)
		sb.WriteByte('>')
	case KindStruct:
		sb.WriteByte('<')
		for i, f := range d.fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Name)
			sb.WriteString(": ")
			f.Type.writeTo(sb)
		}
		sb.WriteByte('>')
	}
}

