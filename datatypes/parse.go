package datatypes

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// The textual type syntax mirrors the canonical String form: lowercase kind
// names, parameters in parentheses, composite element types in angle
// brackets, and a "!" prefix for non-nullable. SQL-flavored spellings such as
// VARCHAR, CHAR, BOOL, FLOAT, and DOUBLE are accepted as aliases.

var typeLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `'[^']*'`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "Punct", Pattern: `[!<>(),:]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var typeParser = participle.MustBuild[typeExpr](
	participle.Lexer(typeLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Ident"),
	participle.UseLookahead(2),
)

type typeExpr struct {
	NonNull   bool           `@"!"?`
	Decimal   *decimalExpr   `( @@`
	Timestamp *timestampExpr `| @@`
	Interval  *intervalExpr  `| @@`
	Array     *arrayExpr     `| @@`
	Map       *mapExpr       `| @@`
	Struct    *structExpr    `| @@`
	Varchar   *varcharExpr   `| @@`
	Named     string         `| @Ident )`
}

type decimalExpr struct {
	Keyword   bool `@"decimal"`
	Precision *int `( "(" @Int`
	Scale     int  `"," @Int ")" )?`
}

type timestampExpr struct {
	Keyword  bool    `@"timestamp"`
	Timezone *string `( "(" @String ")" )?`
}

type intervalExpr struct {
	Keyword bool    `@"interval"`
	Unit    *string `( "(" @String ")" )?`
}

type arrayExpr struct {
	Keyword string    `@( "array" | "set" )`
	Elem    *typeExpr `"<" @@ ">"`
}

type mapExpr struct {
	Keyword bool      `@"map"`
	Key     *typeExpr `"<" @@`
	Value   *typeExpr `"," @@ ">"`
}

type structExpr struct {
	Keyword bool        `@"struct"`
	Fields  []fieldExpr `"<" @@ ( "," @@ )* ">"`
}

type fieldExpr struct {
	Name string    `@Ident ":"`
	Type *typeExpr `@@`
}

type varcharExpr struct {
	Keyword string `@( "varchar" | "char" )`
	Length  *int   `( "(" @Int ")" )?`
}

var namedTypes = map[string]DataType{
	"null":    Null,
	"boolean": Boolean,
	"bool":    Boolean,
	"int8":    Int8,
	"int16":   Int16,
	"int32":   Int32,
	"int64":   Int64,
	"uint8":   UInt8,
	"uint16":  UInt16,
	"uint32":  UInt32,
	"uint64":  UInt64,
	"float32": Float32,
	"float64": Float64,
	"float":   Float64,
	"double":  Float64,
	"string":  String,
	"binary":  Binary,
	"date":    Date,
	"time":    Time,
}

// Parse converts a textual type such as "array<struct<a: int64>>" into a
// DataType. It accepts everything String produces.
func Parse(input string) (DataType, error) {
	expr, err := typeParser.ParseString("", input)
	if err != nil {
		return DataType{}, fmt.Errorf("parse type %q: %w", input, err)
	}
	dt, err := expr.resolve()
	if err != nil {
		return DataType{}, fmt.Errorf("parse type %q: %w", input, err)
	}
	return dt, nil
}

// MustParse is like Parse but panics on error. Intended for statically known
// type strings.
func MustParse(input string) DataType {
	dt, err := Parse(input)
	if err != nil {
		panic("datatypes: " + err.Error())
	}
	return dt
}

func (e *typeExpr) resolve() (DataType, error) {
	dt, err := e.resolveBase()
	if err != nil {
		return DataType{}, err
	}
	if e.NonNull {
		dt = dt.AsNonNullable()
	}
	return dt, nil
}

func (e *typeExpr) resolveBase() (DataType, error) {
	switch {
	case e.Decimal != nil:
		if e.Decimal.Precision == nil {
			return Decimal(9, 0), nil
		}
		p, s := *e.Decimal.Precision, e.Decimal.Scale
		if p <= 0 {
			return DataType{}, fmt.Errorf("decimal precision must be positive, got %d", p)
		}
		if s > p {
			return DataType{}, fmt.Errorf("decimal scale %d exceeds precision %d", s, p)
		}
		return Decimal(p, s), nil
	case e.Timestamp != nil:
		tz := ""
		if e.Timestamp.Timezone != nil {
			tz = unquote(*e.Timestamp.Timezone)
		}
		return Timestamp(tz), nil
	case e.Interval != nil:
		unit := "s"
		if e.Interval.Unit != nil {
			unit = unquote(*e.Interval.Unit)
		}
		if !ValidIntervalUnit(unit) {
			return DataType{}, fmt.Errorf("unknown interval unit %q", unit)
		}
		return Interval(unit), nil
	case e.Array != nil:
		elem, err := e.Array.Elem.resolve()
		if err != nil {
			return DataType{}, err
		}
		return Array(elem), nil
	case e.Map != nil:
		key, err := e.Map.Key.resolve()
		if err != nil {
			return DataType{}, err
		}
		value, err := e.Map.Value.resolve()
		if err != nil {
			return DataType{}, err
		}
		return Map(key, value), nil
	case e.Struct != nil:
		fields := make([]Field, 0, len(e.Struct.Fields))
		seen := make(map[string]struct{}, len(e.Struct.Fields))
		for _, f := range e.Struct.Fields {
			if _, dup := seen[f.Name]; dup {
				return DataType{}, fmt.Errorf("%w: %q", ErrDuplicateField, f.Name)
			}
			seen[f.Name] = struct{}{}
			ft, err := f.Type.resolve()
			if err != nil {
				return DataType{}, err
			}
			fields = append(fields, Field{Name: f.Name, Type: ft})
		}
		return Struct(fields...), nil
	case e.Varchar != nil:
		return String, nil
	default:
		if dt, ok := namedTypes[strings.ToLower(e.Named)]; ok {
			return dt, nil
		}
		return DataType{}, fmt.Errorf("unknown type name %q", e.Named)
	}
}

func unquote(s string) string {
	return strings.Trim(s, "'")
}
