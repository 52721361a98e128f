package exprs

import (
	"fmt"

	"github.com/bawdo/goshawk/datatypes"
	"github.com/bawdo/goshawk/ir"
)

// Column is a fluent handle on a scalar expression. Method arguments
// typed any accept another Column or a plain Go value, which becomes a
// literal with its type inferred the way ir.Literal infers it.
type Column struct {
	g    *ir.Graph
	id   ir.NodeID
	name string
	err  error
}

// Literal wraps a Go value as a literal column.
func Literal(g *ir.Graph, value any) Column {
	id, err := g.Literal(value)
	return Column{g: g, id: id, err: err}
}

// TypedLiteral wraps a Go value as a literal column of an explicit type.
func TypedLiteral(g *ir.Graph, value any, dtype datatypes.DataType) Column {
	id, err := g.TypedLiteral(value, dtype)
	return Column{g: g, id: id, err: err}
}

// Err returns the first error the chain hit, if any.
func (c Column) Err() error { return c.err }

// Node returns the underlying node, or ir.InvalidNode on a failed chain.
func (c Column) Node() ir.NodeID {
	if c.err != nil {
		return ir.InvalidNode
	}
	return c.id
}

// Name returns the output name the column would project under: the name
// given by As, or the referenced column's own name, or empty.
func (c Column) Name() string {
	if c.err != nil {
		return ""
	}
	name, err := c.outputName()
	if err != nil {
		return ""
	}
	return name
}

// Type returns the column's resolved data type.
func (c Column) Type() datatypes.DataType {
	if c.err != nil {
		return datatypes.DataType{}
	}
	return c.g.DataTypeOf(c.id)
}

// As names the column for Select, Mutate, GroupBy, and Aggregate output.
func (c Column) As(name string) Column {
	c.name = name
	return c
}

func (c Column) outputName() (string, error) {
	if c.name != "" {
		return c.name, nil
	}
	if c.g.Op(c.id) == ir.OpColumnRef {
		return c.g.ColumnName(c.id), nil
	}
	return "", fmt.Errorf("expression column needs a name; use As")
}

func (c Column) fail(err error) Column {
	return Column{g: c.g, id: ir.InvalidNode, err: err}
}

func (c Column) derive(id ir.NodeID, err error) Column {
	if err != nil {
		return c.fail(err)
	}
	return Column{g: c.g, id: id}
}

// coerce turns a method argument into a node: Columns pass through,
// anything else becomes a literal.
func (c Column) coerce(v any) (ir.NodeID, error) {
	if o, ok := v.(Column); ok {
		if o.err != nil {
			return ir.InvalidNode, o.err
		}
		if o.g != c.g {
			return ir.InvalidNode, fmt.Errorf("columns belong to different graphs")
		}
		return o.id, nil
	}
	return c.g.Literal(v)
}

func (c Column) binary(build func(*ir.Graph, ir.NodeID, ir.NodeID) (ir.NodeID, error), v any) Column {
	if c.err != nil {
		return c
	}
	right, err := c.coerce(v)
	if err != nil {
		return c.fail(err)
	}
	return c.derive(build(c.g, c.id, right))
}

func (c Column) unary(build func(*ir.Graph, ir.NodeID) (ir.NodeID, error)) Column {
	if c.err != nil {
		return c
	}
	return c.derive(build(c.g, c.id))
}

// Eq creates an equality comparison: column = val.
func (c Column) Eq(val any) Column { return c.binary((*ir.Graph).Equals, val) }

// NotEq creates an inequality comparison: column != val.
func (c Column) NotEq(val any) Column { return c.binary((*ir.Graph).NotEquals, val) }

// Gt creates a greater-than comparison: column > val.
func (c Column) Gt(val any) Column { return c.binary((*ir.Graph).Greater, val) }

// GtEq creates a greater-than-or-equal comparison: column >= val.
func (c Column) GtEq(val any) Column { return c.binary((*ir.Graph).GreaterEqual, val) }

// Lt creates a less-than comparison: column < val.
func (c Column) Lt(val any) Column { return c.binary((*ir.Graph).Less, val) }

// LtEq creates a less-than-or-equal comparison: column <= val.
func (c Column) LtEq(val any) Column { return c.binary((*ir.Graph).LessEqual, val) }

// Plus creates an addition: column + val.
func (c Column) Plus(val any) Column { return c.binary((*ir.Graph).Add, val) }

// Minus creates a subtraction: column - val.
func (c Column) Minus(val any) Column { return c.binary((*ir.Graph).Subtract, val) }

// Multiply creates a multiplication: column * val.
func (c Column) Multiply(val any) Column { return c.binary((*ir.Graph).Multiply, val) }

// Divide creates a division: column / val.
func (c Column) Divide(val any) Column { return c.binary((*ir.Graph).Divide, val) }

// Modulus creates a remainder: column % val.
func (c Column) Modulus(val any) Column { return c.binary((*ir.Graph).Modulus, val) }

// Power raises the column to the given exponent.
func (c Column) Power(val any) Column { return c.binary((*ir.Graph).Power, val) }

// Concat appends val to the string column.
func (c Column) Concat(val any) Column {
	return c.binary(func(g *ir.Graph, left, right ir.NodeID) (ir.NodeID, error) {
		return g.StringConcat(left, right)
	}, val)
}

// And combines two predicates with a conjunction.
func (c Column) And(other Column) Column {
	return c.binary(func(g *ir.Graph, left, right ir.NodeID) (ir.NodeID, error) {
		return g.And(left, right)
	}, other)
}

// Or combines two predicates with a disjunction.
func (c Column) Or(other Column) Column {
	return c.binary(func(g *ir.Graph, left, right ir.NodeID) (ir.NodeID, error) {
		return g.Or(left, right)
	}, other)
}

// Not negates the predicate.
func (c Column) Not() Column { return c.unary((*ir.Graph).Not) }

// Negate flips the sign of the numeric column.
func (c Column) Negate() Column { return c.unary((*ir.Graph).Negate) }

// IsNull creates an IS NULL predicate.
func (c Column) IsNull() Column { return c.unary((*ir.Graph).IsNull) }

// IsNotNull creates an IS NOT NULL predicate.
func (c Column) IsNotNull() Column { return c.unary((*ir.Graph).NotNull) }

// Coalesce returns the first non-null of the column and the fallbacks.
func (c Column) Coalesce(fallbacks ...any) Column {
	if c.err != nil {
		return c
	}
	ids := make([]ir.NodeID, 0, len(fallbacks)+1)
	ids = append(ids, c.id)
	for _, v := range fallbacks {
		id, err := c.coerce(v)
		if err != nil {
			return c.fail(err)
		}
		ids = append(ids, id)
	}
	return c.derive(c.g.Coalesce(ids...))
}

// NullIf yields null when the column equals val, the column otherwise.
func (c Column) NullIf(val any) Column { return c.binary((*ir.Graph).NullIf, val) }

// In creates a membership predicate: column IN (vals...).
func (c Column) In(vals ...any) Column {
	if c.err != nil {
		return c
	}
	ids := make([]ir.NodeID, len(vals))
	for i, v := range vals {
		id, err := c.coerce(v)
		if err != nil {
			return c.fail(err)
		}
		ids[i] = id
	}
	return c.derive(c.g.InValues(c.id, ids...))
}

// NotIn creates a negated membership predicate: column NOT IN (vals...).
func (c Column) NotIn(vals ...any) Column {
	return c.In(vals...).Not()
}

// Between creates a range predicate: low <= column <= high.
func (c Column) Between(low, high any) Column {
	if c.err != nil {
		return c
	}
	lo, err := c.coerce(low)
	if err != nil {
		return c.fail(err)
	}
	hi, err := c.coerce(high)
	if err != nil {
		return c.fail(err)
	}
	return c.derive(c.g.Between(c.id, lo, hi))
}

// NotBetween creates a negated range predicate.
func (c Column) NotBetween(low, high any) Column {
	return c.Between(low, high).Not()
}

// Cast converts the column to the given type.
func (c Column) Cast(to datatypes.DataType) Column {
	if c.err != nil {
		return c
	}
	return c.derive(c.g.Cast(c.id, to))
}

// Field accesses the named field of the struct column.
func (c Column) Field(name string) Column {
	if c.err != nil {
		return c
	}
	return c.derive(c.g.Field(c.id, name))
}

// ElementAt accesses the array column's element at a zero-based index.
// An index past the end yields NULL.
func (c Column) ElementAt(index any) Column {
	return c.binary((*ir.Graph).ElementAt, index)
}

// Abs takes the absolute value of the numeric column.
func (c Column) Abs() Column { return c.unary((*ir.Graph).Abs) }

// Ceil rounds the column up to the nearest integer.
func (c Column) Ceil() Column { return c.unary((*ir.Graph).Ceil) }

// Floor rounds the column down to the nearest integer.
func (c Column) Floor() Column { return c.unary((*ir.Graph).Floor) }

// Round rounds the column, to the given number of digits when supplied.
func (c Column) Round(digits ...int64) Column {
	if c.err != nil {
		return c
	}
	if len(digits) == 0 {
		return c.derive(c.g.Round(c.id))
	}
	d, err := c.g.Literal(digits[0])
	if err != nil {
		return c.fail(err)
	}
	return c.derive(c.g.Round(c.id, d))
}

// Sqrt takes the square root of the numeric column.
func (c Column) Sqrt() Column { return c.unary((*ir.Graph).Sqrt) }

// Exp raises e to the column.
func (c Column) Exp() Column { return c.unary((*ir.Graph).Exp) }

// Ln takes the natural logarithm of the column.
func (c Column) Ln() Column { return c.unary((*ir.Graph).Ln) }

// Lower folds the string column to lower case.
func (c Column) Lower() Column { return c.unary((*ir.Graph).Lower) }

// Upper folds the string column to upper case.
func (c Column) Upper() Column { return c.unary((*ir.Graph).Upper) }

// Trim strips leading and trailing whitespace from the string column.
func (c Column) Trim() Column { return c.unary((*ir.Graph).Trim) }

// Length returns the character length of the string column.
func (c Column) Length() Column { return c.unary((*ir.Graph).Length) }

// Substring takes the slice of the string column starting at start
// (one-based), bounded by length when supplied.
func (c Column) Substring(start any, length ...any) Column {
	if c.err != nil {
		return c
	}
	s, err := c.coerce(start)
	if err != nil {
		return c.fail(err)
	}
	if len(length) == 0 {
		return c.derive(c.g.Substring(c.id, s))
	}
	l, err := c.coerce(length[0])
	if err != nil {
		return c.fail(err)
	}
	return c.derive(c.g.Substring(c.id, s, l))
}

// RegexMatch tests the string column against a regular expression.
func (c Column) RegexMatch(pattern any) Column {
	return c.binary((*ir.Graph).RegexMatch, pattern)
}

// Extract pulls the given component out of the temporal column.
func (c Column) Extract(part ir.DatePart) Column {
	if c.err != nil {
		return c
	}
	return c.derive(c.g.Extract(part, c.id))
}

// Sum creates a sum aggregate over the column.
func (c Column) Sum() Column { return c.reduce((*ir.Graph).Sum, false) }

// SumDistinct creates a sum aggregate over the column's distinct values.
func (c Column) SumDistinct() Column { return c.reduce((*ir.Graph).Sum, true) }

// Mean creates an arithmetic-mean aggregate over the column.
func (c Column) Mean() Column { return c.reduce((*ir.Graph).Mean, false) }

// Min creates a minimum aggregate over the column.
func (c Column) Min() Column { return c.unary((*ir.Graph).Min) }

// Max creates a maximum aggregate over the column.
func (c Column) Max() Column { return c.unary((*ir.Graph).Max) }

// Count counts the non-null values of the column.
func (c Column) Count() Column { return c.reduce((*ir.Graph).Count, false) }

// CountDistinct counts the distinct non-null values of the column.
func (c Column) CountDistinct() Column { return c.reduce((*ir.Graph).Count, true) }

func (c Column) reduce(build func(*ir.Graph, ir.NodeID, bool) (ir.NodeID, error), distinct bool) Column {
	if c.err != nil {
		return c
	}
	return c.derive(build(c.g, c.id, distinct))
}

// Lag reads the column from an earlier row of the window: an optional
// offset (default one row back) and an optional default value for rows
// with no predecessor.
func (c Column) Lag(args ...any) Column { return c.shift((*ir.Graph).Lag, args) }

// Lead reads the column from a later row of the window, with the same
// optional offset and default as Lag.
func (c Column) Lead(args ...any) Column { return c.shift((*ir.Graph).Lead, args) }

func (c Column) shift(build func(*ir.Graph, ...ir.NodeID) (ir.NodeID, error), args []any) Column {
	if c.err != nil {
		return c
	}
	ids := make([]ir.NodeID, 0, len(args)+1)
	ids = append(ids, c.id)
	for _, v := range args {
		id, err := c.coerce(v)
		if err != nil {
			return c.fail(err)
		}
		ids = append(ids, id)
	}
	return c.derive(build(c.g, ids...))
}

// FirstValue reads the column from the first row of the window frame.
func (c Column) FirstValue() Column { return c.unary((*ir.Graph).FirstValue) }

// LastValue reads the column from the last row of the window frame.
func (c Column) LastValue() Column { return c.unary((*ir.Graph).LastValue) }

// Ordering pairs a column with a sort direction and null placement, for
// Sort and the window builder's OrderBy.
type Ordering struct {
	col  Column
	spec ir.SortSpec
}

// Asc orders by the column ascending.
func (c Column) Asc() Ordering {
	return Ordering{col: c, spec: ir.SortSpec{Direction: ir.Asc}}
}

// Desc orders by the column descending.
func (c Column) Desc() Ordering {
	return Ordering{col: c, spec: ir.SortSpec{Direction: ir.Desc}}
}

// NullsFirst places null values before all others.
func (o Ordering) NullsFirst() Ordering {
	o.spec.Nulls = ir.NullsFirst
	return o
}

// NullsLast places null values after all others.
func (o Ordering) NullsLast() Ordering {
	o.spec.Nulls = ir.NullsLast
	return o
}
