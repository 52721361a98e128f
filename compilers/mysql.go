package compilers

import (
	"fmt"
	"strings"

	"github.com/bawdo/goshawk/datatypes"
	"github.com/bawdo/goshawk/internal/quoting"
	"github.com/bawdo/goshawk/ir"
)

// MySQL returns the MySQL dialect. Identifiers quote with backticks,
// string literals escape backslashes, || becomes CONCAT, and date parts
// map onto MySQL's function zoo. FULL OUTER JOIN and NULLS FIRST/LAST do
// not exist in MySQL and are reported as unsupported rather than emulated.
func MySQL() Dialect {
	d := ANSI()
	d.Name = "mysql"
	d.QuoteIdent = quoting.Backtick
	d.Literals.QuoteString = mysqlString
	d.Literals.TimestampTZ = ""
	d.Literals.Interval = mysqlInterval
	d.TypeName = mysqlTypeName
	d.FuncNames = map[ir.Op]string{
		ir.OpLength: "CHAR_LENGTH",
	}
	d.Overrides = map[ir.Op]RenderFunc{
		ir.OpStringConcat: mysqlConcat,
		ir.OpRegexMatch:   regexpKeyword,
		ir.OpExtract:      mysqlExtract,
		ir.OpField:        noCompositeAccess("mysql"),
		ir.OpIndex:        noCompositeAccess("mysql"),
	}
	d.SupportsFullJoin = false
	d.SupportsNullsOrdering = false
	d.SupportsUnnest = false
	return d
}

// MySQL treats backslash as an escape character inside string literals.
func mysqlString(s string) string {
	return "'" + quoting.EscapeString(s) + "'"
}

func mysqlConcat(_ *ir.Graph, _ ir.NodeID, args []string) (string, error) {
	return "CONCAT(" + strings.Join(args, ", ") + ")", nil
}

// regexpKeyword renders regex matching with the infix REGEXP operator.
// MySQL has it natively; SQLite exposes it when a regexp() function is
// registered, which the shipped driver does.
func regexpKeyword(_ *ir.Graph, _ ir.NodeID, args []string) (string, error) {
	return args[0] + " REGEXP " + args[1], nil
}

// noCompositeAccess reports struct field and array element access as
// unsupported, for dialects without composite column types.
func noCompositeAccess(dialect string) RenderFunc {
	return func(g *ir.Graph, id ir.NodeID, _ []string) (string, error) {
		what := "struct field access"
		if g.Op(id) == ir.OpIndex {
			what = "array element access"
		}
		return "", fmt.Errorf("%w: %s (node %s, dialect %s)", ErrUnsupportedOperator, what, g.Op(id), dialect)
	}
}

func mysqlExtract(g *ir.Graph, id ir.NodeID, args []string) (string, error) {
	x := args[0]
	switch part := g.ExtractOf(id).Part; part {
	case ir.PartDayOfWeek:
		// DAYOFWEEK counts Sunday as 1; shift to the 0-based convention.
		return "DAYOFWEEK(" + x + ") - 1", nil
	case ir.PartDayOfYear:
		return "DAYOFYEAR(" + x + ")", nil
	case ir.PartEpoch:
		return "UNIX_TIMESTAMP(" + x + ")", nil
	case ir.PartMillisecond:
		return "", fmt.Errorf("%w: EXTRACT millisecond (node %s, dialect mysql)", ErrUnsupportedOperator, g.Op(id))
	default:
		return "EXTRACT(" + extractSQL[part] + " FROM " + x + ")", nil
	}
}

var mysqlIntervalUnits = map[string]string{
	"Y":  "YEAR",
	"Q":  "QUARTER",
	"M":  "MONTH",
	"W":  "WEEK",
	"D":  "DAY",
	"h":  "HOUR",
	"m":  "MINUTE",
	"s":  "SECOND",
	"us": "MICROSECOND",
}

func mysqlInterval(count int64, unit string) (string, error) {
	if unit == "ms" {
		count, unit = count*1000, "us"
	}
	kw, ok := mysqlIntervalUnits[unit]
	if !ok {
		return "", fmt.Errorf("%w: interval unit %q (dialect mysql)", ErrUnsupportedOperator, unit)
	}
	return fmt.Sprintf("INTERVAL %d %s", count, kw), nil
}

// mysqlTypeName maps to the names CAST accepts, which are not the column
// type names: integers cast to SIGNED or UNSIGNED, strings to CHAR.
func mysqlTypeName(dt datatypes.DataType) (string, error) {
	switch dt.Kind() {
	case datatypes.KindBoolean, datatypes.KindInt8, datatypes.KindInt16,
		datatypes.KindInt32, datatypes.KindInt64:
		return "SIGNED", nil
	case datatypes.KindUInt8, datatypes.KindUInt16, datatypes.KindUInt32,
		datatypes.KindUInt64:
		return "UNSIGNED", nil
	case datatypes.KindFloat32, datatypes.KindFloat64:
		return "DOUBLE", nil
	case datatypes.KindDecimal:
		return fmt.Sprintf("DECIMAL(%d, %d)", dt.Precision(), dt.Scale()), nil
	case datatypes.KindString:
		return "CHAR", nil
	case datatypes.KindBinary:
		return "BINARY", nil
	case datatypes.KindDate:
		return "DATE", nil
	case datatypes.KindTime:
		return "TIME", nil
	case datatypes.KindTimestamp:
		return "DATETIME", nil
	}
	return "", fmt.Errorf("%w: no CAST target for %s (dialect mysql)", ErrUnsupportedOperator, dt)
}
