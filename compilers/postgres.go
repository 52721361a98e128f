package compilers

import (
	"encoding/hex"
	"fmt"

	"github.com/bawdo/goshawk/datatypes"
)

// Postgres returns the PostgreSQL dialect: dollar placeholders, BYTEA byte
// strings, typed spellings for the float specials, and interval literals.
// Everything else is the ANSI base.
func Postgres() Dialect {
	d := ANSI()
	d.Name = "postgres"
	d.Placeholder = func(n int) string { return fmt.Sprintf("$%d", n) }
	d.Literals.Binary = postgresBinary
	d.Literals.NaN = "'NaN'::DOUBLE PRECISION"
	d.Literals.PosInf = "'Infinity'::DOUBLE PRECISION"
	d.Literals.NegInf = "'-Infinity'::DOUBLE PRECISION"
	d.Literals.Interval = postgresInterval
	d.TypeName = postgresTypeName
	return d
}

func postgresBinary(b []byte) string {
	return `'\x` + hex.EncodeToString(b) + `'::BYTEA`
}

var postgresIntervalUnits = map[string]string{
	"Y":  "year",
	"M":  "month",
	"W":  "week",
	"D":  "day",
	"h":  "hour",
	"m":  "minute",
	"s":  "second",
	"ms": "millisecond",
	"us": "microsecond",
}

func postgresInterval(count int64, unit string) (string, error) {
	if unit == "Q" {
		count, unit = count*3, "M"
	}
	name, ok := postgresIntervalUnits[unit]
	if !ok {
		return "", fmt.Errorf("%w: interval unit %q (dialect postgres)", ErrUnsupportedOperator, unit)
	}
	return fmt.Sprintf("INTERVAL '%d %s'", count, name), nil
}

func postgresTypeName(dt datatypes.DataType) (string, error) {
	switch dt.Kind() {
	case datatypes.KindString:
		return "TEXT", nil
	case datatypes.KindBinary:
		return "BYTEA", nil
	}
	return ansiTypeName(dt)
}
