// Package ir defines the typed intermediate representation for relational
// queries: a closed set of operators stored in an immutable, hash-consed
// arena. Every node is addressed by a NodeID; building the same operator
// twice over the same inputs yields the same NodeID. Constructors validate
// their operands and resolve output types at construction time, so any
// NodeID held by a caller is known to be well typed.
package ir

import "fmt"

// Op is the closed set of operators. Relational operators produce a table
// with a schema; all others produce a single typed value.
type Op uint8

const (
	// Relational operators.
	OpDatabaseTable Op = iota
	OpView
	OpProject
	OpFilter
	OpSort
	OpLimit
	OpDistinct
	OpAggregate
	OpJoin
	OpSetOperation
	OpUnnest

	// Leaf values.
	OpLiteral
	OpColumnRef

	OpCast

	// Composite access.
	OpField
	OpIndex

	// Binary arithmetic.
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulus
	OpPower

	// Unary numeric functions.
	OpNegate
	OpAbs
	OpCeil
	OpFloor
	OpRound
	OpSqrt
	OpExp
	OpLn

	// Comparisons.
	OpEquals
	OpNotEquals
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpBetween

	// Boolean connectives.
	OpAnd
	OpOr
	OpNot

	// Null handling.
	OpIsNull
	OpNotNull
	OpCoalesce
	OpNullIf

	// Membership.
	OpInValues
	OpExists

	OpCase

	// String functions.
	OpLower
	OpUpper
	OpLength
	OpTrim
	OpSubstring
	OpStringConcat
	OpRegexMatch

	OpGreatest
	OpLeast

	OpExtract

	// Reductions.
	OpSum
	OpMean
	OpMin
	OpMax
	OpCount
	OpCountStar

	// Window expression and window-only functions.
	OpWindow
	OpRowNumber
	OpRank
	OpDenseRank
	OpPercentRank
	OpCumeDist
	OpNtile
	OpLag
	OpLead
	OpFirstValue
	OpLastValue

	opSentinel // keep last
)

var opNames = [opSentinel]string{
	OpDatabaseTable: "DatabaseTable",
	OpView:          "View",
	OpProject:       "Project",
	OpFilter:        "Filter",
	OpSort:          "Sort",
	OpLimit:         "Limit",
	OpDistinct:      "Distinct",
	OpAggregate:     "Aggregate",
	OpSetOperation:  "SetOperation",
	OpJoin:          "Join",
	OpUnnest:        "Unnest",
	OpLiteral:       "Literal",
	OpColumnRef:     "ColumnRef",
	OpCast:          "Cast",
	OpField:         "Field",
	OpIndex:         "Index",
	OpAdd:           "Add",
	OpSubtract:      "Subtract",
	OpMultiply:      "Multiply",
	OpDivide:        "Divide",
	OpModulus:       "Modulus",
	OpPower:         "Power",
	OpNegate:        "Negate",
	OpAbs:           "Abs",
	OpCeil:          "Ceil",
	OpFloor:         "Floor",
	OpRound:         "Round",
	OpSqrt:          "Sqrt",
	OpExp:           "Exp",
	OpLn:            "Ln",
	OpEquals:        "Equals",
	OpNotEquals:     "NotEquals",
	OpLess:          "Less",
	OpLessEqual:     "LessEqual",
	OpGreater:       "Greater",
	OpGreaterEqual:  "GreaterEqual",
	OpBetween:       "Between",
	OpAnd:           "And",
	OpOr:            "Or",
	OpNot:           "Not",
	OpIsNull:        "IsNull",
	OpNotNull:       "NotNull",
	OpCoalesce:      "Coalesce",
	OpNullIf:        "NullIf",
	OpInValues:      "InValues",
	OpExists:        "Exists",
	OpCase:          "Case",
	OpLower:         "Lower",
	OpUpper:         "Upper",
	OpLength:        "Length",
	OpTrim:          "Trim",
	OpSubstring:     "Substring",
	OpStringConcat:  "StringConcat",
	OpRegexMatch:    "RegexMatch",
	OpGreatest:      "Greatest",
	OpLeast:         "Least",
	OpExtract:       "Extract",
	OpSum:           "Sum",
	OpMean:          "Mean",
	OpMin:           "Min",
	OpMax:           "Max",
	OpCount:         "Count",
	OpCountStar:     "CountStar",
	OpWindow:        "Window",
	OpRowNumber:     "RowNumber",
	OpRank:          "Rank",
	OpDenseRank:     "DenseRank",
	OpPercentRank:   "PercentRank",
	OpCumeDist:      "CumeDist",
	OpNtile:         "Ntile",
	OpLag:           "Lag",
	OpLead:          "Lead",
	OpFirstValue:    "FirstValue",
	OpLastValue:     "LastValue",
}

func (op Op) String() string {
	if op < opSentinel {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

var opsByName = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for op, name := range opNames {
		m[name] = Op(op)
	}
	return m
}()

// OpByName returns the operator with the given dump name.
func OpByName(name string) (Op, bool) {
	op, ok := opsByName[name]
	return op, ok
}

// IsRelational reports whether the operator produces a table.
func (op Op) IsRelational() bool { return op <= OpUnnest }

// IsScalar reports whether the operator produces a single value.
func (op Op) IsScalar() bool { return !op.IsRelational() }

// IsReduction reports whether the operator aggregates rows into one value.
func (op Op) IsReduction() bool { return op >= OpSum && op <= OpCountStar }

// IsWindowFunc reports whether the operator is only valid inside a Window.
func (op Op) IsWindowFunc() bool { return op >= OpRowNumber && op <= OpLastValue }

// IsComparison reports whether the operator is a binary comparison.
func (op Op) IsComparison() bool { return op >= OpEquals && op <= OpGreaterEqual }

// IsBinaryArithmetic reports whether the operator is two-operand arithmetic.
func (op Op) IsBinaryArithmetic() bool { return op >= OpAdd && op <= OpPower }
