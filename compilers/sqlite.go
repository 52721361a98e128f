package compilers

import (
	"fmt"

	"github.com/bawdo/goshawk/datatypes"
	"github.com/bawdo/goshawk/ir"
)

// SQLite returns the SQLite dialect. Booleans are integers, temporal
// literals are bare strings in the canonical layouts, date parts go
// through STRFTIME, and INTERSECT ALL, EXCEPT ALL, and interval literals
// are unsupported. Set operands render without parentheses, which SQLite
// rejects around SELECT statements.
func SQLite() Dialect {
	d := ANSI()
	d.Name = "sqlite"
	d.Literals.True = "1"
	d.Literals.False = "0"
	d.Literals.Date = ""
	d.Literals.Time = ""
	d.Literals.Timestamp = ""
	d.Literals.TimestampTZ = ""
	// NaN has no literal and stores as NULL; out-of-range literals parse
	// to the infinities.
	d.Literals.NaN = "NULL"
	d.Literals.PosInf = "9e999"
	d.Literals.NegInf = "-9e999"
	d.TypeName = sqliteTypeName
	d.FuncNames = map[ir.Op]string{
		ir.OpGreatest:  "MAX",
		ir.OpLeast:     "MIN",
		ir.OpSubstring: "SUBSTR",
	}
	d.Overrides = map[ir.Op]RenderFunc{
		ir.OpRegexMatch: regexpKeyword,
		ir.OpExtract:    sqliteExtract,
		ir.OpField:      noCompositeAccess("sqlite"),
		ir.OpIndex:      noCompositeAccess("sqlite"),
	}
	d.SupportsSetOpAll = false
	d.ParenthesizedSetOperands = false
	d.SupportsUnnest = false
	return d
}

var sqliteStrftime = map[ir.DatePart]string{
	ir.PartYear:      "%Y",
	ir.PartMonth:     "%m",
	ir.PartWeek:      "%W",
	ir.PartDay:       "%d",
	ir.PartDayOfWeek: "%w",
	ir.PartDayOfYear: "%j",
	ir.PartHour:      "%H",
	ir.PartMinute:    "%M",
	ir.PartSecond:    "%S",
	ir.PartEpoch:     "%s",
}

func sqliteExtract(g *ir.Graph, id ir.NodeID, args []string) (string, error) {
	x := args[0]
	switch part := g.ExtractOf(id).Part; part {
	case ir.PartQuarter:
		return "CAST((CAST(STRFTIME('%m', " + x + ") AS INTEGER) + 2) / 3 AS INTEGER)", nil
	case ir.PartMillisecond:
		return "", fmt.Errorf("%w: EXTRACT millisecond (node %s, dialect sqlite)", ErrUnsupportedOperator, g.Op(id))
	default:
		return "CAST(STRFTIME('" + sqliteStrftime[part] + "', " + x + ") AS INTEGER)", nil
	}
}

// sqliteTypeName maps onto SQLite's storage affinities.
func sqliteTypeName(dt datatypes.DataType) (string, error) {
	switch dt.Kind() {
	case datatypes.KindBoolean, datatypes.KindInt8, datatypes.KindInt16,
		datatypes.KindInt32, datatypes.KindInt64, datatypes.KindUInt8,
		datatypes.KindUInt16, datatypes.KindUInt32, datatypes.KindUInt64:
		return "INTEGER", nil
	case datatypes.KindFloat32, datatypes.KindFloat64:
		return "REAL", nil
	case datatypes.KindDecimal:
		return "NUMERIC", nil
	case datatypes.KindString:
		return "TEXT", nil
	case datatypes.KindBinary:
		return "BLOB", nil
	case datatypes.KindDate, datatypes.KindTime, datatypes.KindTimestamp:
		return "TEXT", nil
	}
	return "", fmt.Errorf("%w: no CAST target for %s (dialect sqlite)", ErrUnsupportedOperator, dt)
}
