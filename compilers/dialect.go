// Package compilers lowers relational plans to executable SQL. A single
// bottom-up walk over the graph assembles each statement clause by clause:
// an operator merges into its child's statement when the clause it fills is
// still free, and wraps the child as a derived table otherwise. Everything
// engine-specific lives in a Dialect value: identifier quoting, literal
// spellings, function names, capability flags, and per-operator rendering
// overrides.
package compilers

import (
	"fmt"

	"github.com/bawdo/goshawk/datatypes"
	"github.com/bawdo/goshawk/internal/quoting"
	"github.com/bawdo/goshawk/ir"
)

// RenderFunc replaces the generic rendering of one scalar operator. args
// holds the rendered SQL of the node's scalar inputs, in input order;
// relational inputs are skipped.
type RenderFunc func(g *ir.Graph, id ir.NodeID, args []string) (string, error)

// Dialect describes one SQL target. The shipped dialects are plain values
// built by Postgres, MySQL, and SQLite; callers may copy one and adjust
// fields to derive a custom target.
type Dialect struct {
	Name string

	// QuoteIdent quotes an identifier; Placeholder renders the i-th
	// parameter marker (1-based) in parameterized mode.
	QuoteIdent  func(string) string
	Placeholder func(int) string

	// Literals spells constant values; TypeName maps a data type to the
	// dialect's CAST target name.
	Literals LiteralTable
	TypeName func(datatypes.DataType) (string, error)

	// FuncNames overrides entries in the shared function-name table;
	// Overrides replaces the whole rendering of an operator.
	FuncNames map[ir.Op]string
	Overrides map[ir.Op]RenderFunc

	SupportsFullJoin             bool
	SupportsCorrelatedSubqueries bool
	SupportsNullsOrdering        bool
	SupportsSetOpAll             bool
	SupportsUnnest               bool
	ParenthesizedSetOperands     bool
}

// genericFuncNames is the function spelling shared by the shipped dialects.
// Dialect.FuncNames entries win over it.
var genericFuncNames = map[ir.Op]string{
	ir.OpAbs:         "ABS",
	ir.OpCeil:        "CEIL",
	ir.OpFloor:       "FLOOR",
	ir.OpRound:       "ROUND",
	ir.OpSqrt:        "SQRT",
	ir.OpExp:         "EXP",
	ir.OpLn:          "LN",
	ir.OpPower:       "POWER",
	ir.OpLower:       "LOWER",
	ir.OpUpper:       "UPPER",
	ir.OpLength:      "LENGTH",
	ir.OpTrim:        "TRIM",
	ir.OpSubstring:   "SUBSTRING",
	ir.OpCoalesce:    "COALESCE",
	ir.OpNullIf:      "NULLIF",
	ir.OpGreatest:    "GREATEST",
	ir.OpLeast:       "LEAST",
	ir.OpSum:         "SUM",
	ir.OpMean:        "AVG",
	ir.OpMin:         "MIN",
	ir.OpMax:         "MAX",
	ir.OpCount:       "COUNT",
	ir.OpRowNumber:   "ROW_NUMBER",
	ir.OpRank:        "RANK",
	ir.OpDenseRank:   "DENSE_RANK",
	ir.OpPercentRank: "PERCENT_RANK",
	ir.OpCumeDist:    "CUME_DIST",
	ir.OpNtile:       "NTILE",
	ir.OpLag:         "LAG",
	ir.OpLead:        "LEAD",
	ir.OpFirstValue:  "FIRST_VALUE",
	ir.OpLastValue:   "LAST_VALUE",
}

func (d Dialect) funcName(op ir.Op) string {
	if name, ok := d.FuncNames[op]; ok {
		return name
	}
	return genericFuncNames[op]
}

// ANSI returns the dialect-neutral base the shipped dialects derive from:
// double-quoted identifiers, question-mark placeholders, keyword literals,
// and every capability enabled. It targets no particular engine; use it as
// the starting point for custom dialects.
func ANSI() Dialect {
	return Dialect{
		Name:        "ansi",
		QuoteIdent:  quoting.DoubleQuote,
		Placeholder: func(int) string { return "?" },
		Literals: LiteralTable{
			True:        "TRUE",
			False:       "FALSE",
			QuoteString: quoting.LiteralQuote,
			Binary:      ansiBinary,
			Date:        "DATE",
			Time:        "TIME",
			Timestamp:   "TIMESTAMP",
			TimestampTZ: "TIMESTAMP WITH TIME ZONE",
		},
		TypeName:                     ansiTypeName,
		SupportsFullJoin:             true,
		SupportsCorrelatedSubqueries: true,
		SupportsNullsOrdering:        true,
		SupportsSetOpAll:             true,
		SupportsUnnest:               true,
		ParenthesizedSetOperands:     true,
	}
}

func ansiTypeName(dt datatypes.DataType) (string, error) {
	switch dt.Kind() {
	case datatypes.KindBoolean:
		return "BOOLEAN", nil
	case datatypes.KindInt8, datatypes.KindInt16:
		return "SMALLINT", nil
	case datatypes.KindInt32, datatypes.KindUInt8, datatypes.KindUInt16:
		return "INTEGER", nil
	case datatypes.KindInt64, datatypes.KindUInt32:
		return "BIGINT", nil
	case datatypes.KindUInt64:
		return "NUMERIC(20)", nil
	case datatypes.KindFloat32:
		return "REAL", nil
	case datatypes.KindFloat64:
		return "DOUBLE PRECISION", nil
	case datatypes.KindDecimal:
		return fmt.Sprintf("NUMERIC(%d, %d)", dt.Precision(), dt.Scale()), nil
	case datatypes.KindString:
		return "VARCHAR", nil
	case datatypes.KindBinary:
		return "BLOB", nil
	case datatypes.KindDate:
		return "DATE", nil
	case datatypes.KindTime:
		return "TIME", nil
	case datatypes.KindTimestamp:
		if dt.Timezone() != "" {
			return "TIMESTAMP WITH TIME ZONE", nil
		}
		return "TIMESTAMP", nil
	case datatypes.KindInterval:
		return "INTERVAL", nil
	}
	return "", fmt.Errorf("%w: no SQL type name for %s", ErrUnsupportedOperator, dt)
}

// validateSQLTypeName panics if the type name contains characters outside
// the set used by SQL type declarations. Type names come from dialect
// tables, not user input; an invalid one is a programming error.
func validateSQLTypeName(name string) {
	for _, c := range name {
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') &&
			(c < '0' || c > '9') && c != ' ' && c != '(' &&
			c != ')' && c != ',' && c != '_' {
			panic(fmt.Sprintf("goshawk: invalid SQL type name character %q in %q", string(c), name))
		}
	}
}

// validateSQLFunctionName panics if the function name contains characters
// outside the set of letters, digits, and underscores. This prevents SQL
// injection through crafted function names in custom dialects.
func validateSQLFunctionName(name string) {
	for _, c := range name {
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') &&
			(c < '0' || c > '9') && c != '_' {
			panic(fmt.Sprintf("goshawk: invalid SQL function name character %q in %q", string(c), name))
		}
	}
}
