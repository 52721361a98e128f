package ir

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/bawdo/goshawk/datatypes"
)

// Literal interns a constant, inferring its type from the Go value: bool,
// any integer, any float, string, []byte, time.Time, or nil. Inferred
// literals are non-nullable except the bare nil, which has the null type.
func (g *Graph) Literal(value any) (NodeID, error) {
	switch v := value.(type) {
	case nil:
		return g.internLiteral(nil, datatypes.Null), nil
	case bool:
		return g.internLiteral(v, datatypes.Boolean.AsNonNullable()), nil
	case int:
		return g.internLiteral(int64(v), datatypes.Int64.AsNonNullable()), nil
	case int8:
		return g.internLiteral(int64(v), datatypes.Int64.AsNonNullable()), nil
	case int16:
		return g.internLiteral(int64(v), datatypes.Int64.AsNonNullable()), nil
	case int32:
		return g.internLiteral(int64(v), datatypes.Int64.AsNonNullable()), nil
	case int64:
		return g.internLiteral(v, datatypes.Int64.AsNonNullable()), nil
	case uint:
		return g.internLiteral(uint64(v), datatypes.UInt64.AsNonNullable()), nil
	case uint8:
		return g.internLiteral(uint64(v), datatypes.UInt64.AsNonNullable()), nil
	case uint16:
		return g.internLiteral(uint64(v), datatypes.UInt64.AsNonNullable()), nil
	case uint32:
		return g.internLiteral(uint64(v), datatypes.UInt64.AsNonNullable()), nil
	case uint64:
		return g.internLiteral(v, datatypes.UInt64.AsNonNullable()), nil
	case float32:
		return g.internLiteral(float64(v), datatypes.Float64.AsNonNullable()), nil
	case float64:
		return g.internLiteral(v, datatypes.Float64.AsNonNullable()), nil
	case string:
		return g.internLiteral(v, datatypes.String.AsNonNullable()), nil
	case []byte:
		return g.internLiteral(append([]byte(nil), v...), datatypes.Binary.AsNonNullable()), nil
	case time.Time:
		return g.internLiteral(v.UTC().Format(timestampLayout), datatypes.Timestamp("UTC").AsNonNullable()), nil
	default:
		return InvalidNode, typef("cannot infer a literal type for %T", value)
	}
}

// TypedLiteral interns a constant with an explicit type. Temporal and decimal
// values are given as their canonical strings: "2006-01-02" for dates,
// "15:04:05" for times, "2006-01-02 15:04:05" for timestamps, and plain
// digits for decimals. Interval values are int64 counts of the type's unit.
func (g *Graph) TypedLiteral(value any, dtype datatypes.DataType) (NodeID, error) {
	if value == nil {
		if !dtype.Nullable() {
			return InvalidNode, typef("null literal of non-nullable type %s", dtype)
		}
		return g.internLiteral(nil, dtype), nil
	}
	switch dtype.Kind() {
	case datatypes.KindBoolean:
		if v, ok := value.(bool); ok {
			return g.internLiteral(v, dtype), nil
		}
	case datatypes.KindInt8, datatypes.KindInt16, datatypes.KindInt32, datatypes.KindInt64:
		if v, ok := asInt64(value); ok {
			return g.internLiteral(v, dtype), nil
		}
	case datatypes.KindUInt8, datatypes.KindUInt16, datatypes.KindUInt32, datatypes.KindUInt64:
		if v, ok := asUint64(value); ok {
			return g.internLiteral(v, dtype), nil
		}
	case datatypes.KindFloat32, datatypes.KindFloat64:
		switch v := value.(type) {
		case float64:
			return g.internLiteral(v, dtype), nil
		case float32:
			return g.internLiteral(float64(v), dtype), nil
		}
		if v, ok := asInt64(value); ok {
			return g.internLiteral(float64(v), dtype), nil
		}
	case datatypes.KindDecimal:
		if v, ok := value.(string); ok {
			if !decimalPattern.MatchString(v) {
				return InvalidNode, typef("malformed decimal literal %q", v)
			}
			return g.internLiteral(v, dtype), nil
		}
	case datatypes.KindString:
		if v, ok := value.(string); ok {
			return g.internLiteral(v, dtype), nil
		}
	case datatypes.KindBinary:
		if v, ok := value.([]byte); ok {
			return g.internLiteral(append([]byte(nil), v...), dtype), nil
		}
	case datatypes.KindDate:
		if v, ok := value.(string); ok {
			if _, err := time.Parse(dateLayout, v); err != nil {
				return InvalidNode, typef("malformed date literal %q", v)
			}
			return g.internLiteral(v, dtype), nil
		}
		if v, ok := value.(time.Time); ok {
			return g.internLiteral(v.Format(dateLayout), dtype), nil
		}
	case datatypes.KindTime:
		if v, ok := value.(string); ok {
			if _, err := time.Parse(timeLayout, v); err != nil {
				return InvalidNode, typef("malformed time literal %q", v)
			}
			return g.internLiteral(v, dtype), nil
		}
	case datatypes.KindTimestamp:
		if v, ok := value.(string); ok {
			if _, err := parseTimestamp(v); err != nil {
				return InvalidNode, typef("malformed timestamp literal %q", v)
			}
			return g.internLiteral(v, dtype), nil
		}
		if v, ok := value.(time.Time); ok {
			return g.internLiteral(v.UTC().Format(timestampLayout), dtype), nil
		}
	case datatypes.KindInterval:
		if v, ok := asInt64(value); ok {
			return g.internLiteral(v, dtype), nil
		}
	}
	return InvalidNode, typef("cannot use %T as a %s literal", value, dtype)
}

// Null interns a typed null literal.
func (g *Graph) Null(dtype datatypes.DataType) (NodeID, error) {
	return g.TypedLiteral(nil, dtype.AsNullable())
}

func (g *Graph) internLiteral(value any, dtype datatypes.DataType) NodeID {
	return g.intern(node{op: OpLiteral, dtype: dtype, extra: LiteralParams{Value: value}})
}

const (
	dateLayout      = "2006-01-02"
	timeLayout      = "15:04:05"
	timestampLayout = "2006-01-02 15:04:05"
)

var decimalPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

var timestampLayouts = []string{
	timestampLayout,
	"2006-01-02 15:04:05.999999999",
	time.RFC3339,
	time.RFC3339Nano,
	dateLayout,
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

func asUint64(value any) (uint64, bool) {
	switch v := value.(type) {
	case uint:
		return uint64(v), true
	case uint8:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	case int:
		if v >= 0 {
			return uint64(v), true
		}
	case int64:
		if v >= 0 {
			return uint64(v), true
		}
	}
	return 0, false
}

// FormatLiteral renders a literal value for dumps and debugging, in a form
// ParseDatum accepts.
func FormatLiteral(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return strconv.Quote(v)
	case []byte:
		return "0x" + hex.EncodeToString(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParseDatum parses the FormatLiteral rendering of a value for the given
// type.
func ParseDatum(s string, dtype datatypes.DataType) (any, error) {
	if s == "null" {
		return nil, nil
	}
	switch dtype.Kind() {
	case datatypes.KindBoolean:
		return strconv.ParseBool(s)
	case datatypes.KindInt8, datatypes.KindInt16, datatypes.KindInt32, datatypes.KindInt64,
		datatypes.KindInterval:
		return strconv.ParseInt(s, 10, 64)
	case datatypes.KindUInt8, datatypes.KindUInt16, datatypes.KindUInt32, datatypes.KindUInt64:
		return strconv.ParseUint(s, 10, 64)
	case datatypes.KindFloat32, datatypes.KindFloat64:
		return strconv.ParseFloat(s, 64)
	case datatypes.KindString, datatypes.KindDecimal, datatypes.KindDate,
		datatypes.KindTime, datatypes.KindTimestamp:
		if len(s) >= 2 && s[0] == '"' {
			return strconv.Unquote(s)
		}
		return s, nil
	case datatypes.KindBinary:
		if len(s) >= 2 && s[:2] == "0x" {
			out, err := hex.DecodeString(s[2:])
			if err != nil {
				return nil, fmt.Errorf("malformed binary literal %q", s)
			}
			return out, nil
		}
		return nil, fmt.Errorf("malformed binary literal %q", s)
	}
	return nil, fmt.Errorf("cannot parse %q as %s", s, dtype)
}
