package ir

import (
	"github.com/bawdo/goshawk/datatypes"
)

// DatePart identifies the component extracted from a temporal value.
type DatePart int

const (
	PartYear DatePart = iota
	PartQuarter
	PartMonth
	PartWeek
	PartDay
	PartDayOfWeek
	PartDayOfYear
	PartHour
	PartMinute
	PartSecond
	PartMillisecond
	PartEpoch
)

var datePartNames = map[DatePart]string{
	PartYear:        "year",
	PartQuarter:     "quarter",
	PartMonth:       "month",
	PartWeek:        "week",
	PartDay:         "day",
	PartDayOfWeek:   "dow",
	PartDayOfYear:   "doy",
	PartHour:        "hour",
	PartMinute:      "minute",
	PartSecond:      "second",
	PartMillisecond: "millisecond",
	PartEpoch:       "epoch",
}

func (p DatePart) String() string {
	if name, ok := datePartNames[p]; ok {
		return name
	}
	return "year"
}

// DatePartByName returns the part with the given dump name.
func DatePartByName(name string) (DatePart, bool) {
	for p, n := range datePartNames {
		if n == name {
			return p, true
		}
	}
	return 0, false
}

var timeParts = map[DatePart]bool{
	PartHour:        true,
	PartMinute:      true,
	PartSecond:      true,
	PartMillisecond: true,
}

// ColumnRef interns a reference to the named column of rel.
func (g *Graph) ColumnRef(rel NodeID, name string) (NodeID, error) {
	if err := g.checkIDs(rel); err != nil {
		return InvalidNode, err
	}
	if !g.IsRelation(rel) {
		return InvalidNode, typef("column reference target must be a relation, got %s", g.Op(rel))
	}
	index, ok := g.SchemaOf(rel).IndexOf(name)
	if !ok {
		return InvalidNode, unresolvedf("column %q is not in the schema of %s", name, g.relationLabel(rel))
	}
	return g.columnAt(rel, index), nil
}

// ColumnAt interns a reference to the column at ordinal index of rel.
func (g *Graph) ColumnAt(rel NodeID, index int) (NodeID, error) {
	if err := g.checkIDs(rel); err != nil {
		return InvalidNode, err
	}
	if !g.IsRelation(rel) {
		return InvalidNode, typef("column reference target must be a relation, got %s", g.Op(rel))
	}
	if index < 0 || index >= g.SchemaOf(rel).Len() {
		return InvalidNode, unresolvedf("column ordinal %d out of range for %s", index, g.relationLabel(rel))
	}
	return g.columnAt(rel, index), nil
}

func (g *Graph) columnAt(rel NodeID, index int) NodeID {
	return g.intern(node{
		op:     OpColumnRef,
		inputs: []NodeID{rel},
		dtype:  g.SchemaOf(rel).Field(index).Type,
		extra:  ColumnRefParams{Index: index},
	})
}

func (g *Graph) relationLabel(rel NodeID) string {
	switch g.Op(rel) {
	case OpDatabaseTable:
		return "table " + g.TableOf(rel).Name
	case OpView:
		return "view " + g.ViewOf(rel).Name
	default:
		return g.Op(rel).String()
	}
}

// Cast interns an explicit cast of expr to the target type. The cast must be
// statically valid under datatypes.Castable.
func (g *Graph) Cast(expr NodeID, to datatypes.DataType) (NodeID, error) {
	if err := g.checkIDs(expr); err != nil {
		return InvalidNode, err
	}
	if g.IsRelation(expr) {
		return InvalidNode, typef("cannot cast a relation")
	}
	from := g.DataTypeOf(expr)
	if !datatypes.Castable(from, to) {
		return InvalidNode, typef("cannot cast %s to %s", from, to)
	}
	// A cast never strips nullability from its operand.
	out := to.WithNullable(to.Nullable() || from.Nullable())
	return g.intern(node{op: OpCast, inputs: []NodeID{expr}, dtype: out}), nil
}

// Field interns access to the named field of a struct-typed expression. The
// field must be declared on the struct type.
func (g *Graph) Field(expr NodeID, name string) (NodeID, error) {
	if err := g.checkIDs(expr); err != nil {
		return InvalidNode, err
	}
	if g.IsRelation(expr) {
		return InvalidNode, typef("field access target must be a scalar, got %s", g.Op(expr))
	}
	st := g.DataTypeOf(expr)
	if st.Kind() != datatypes.KindStruct {
		return InvalidNode, typef("field access is not defined for %s", st)
	}
	ft, ok := st.FieldType(name)
	if !ok {
		return InvalidNode, unresolvedf("field %q is not in struct %s", name, st)
	}
	// A NULL struct yields NULL fields.
	if st.Nullable() {
		ft = ft.AsNullable()
	}
	return g.intern(node{op: OpField, inputs: []NodeID{expr}, dtype: ft, extra: FieldParams{Name: name}}), nil
}

// ElementAt interns zero-based element access into an array-typed
// expression. The result is always nullable: an out-of-range index yields
// NULL rather than an error.
func (g *Graph) ElementAt(arr, index NodeID) (NodeID, error) {
	if err := g.checkIDs(arr, index); err != nil {
		return InvalidNode, err
	}
	if g.IsRelation(arr) || g.IsRelation(index) {
		return InvalidNode, typef("element access operands must be scalars")
	}
	at := g.DataTypeOf(arr)
	if at.Kind() != datatypes.KindArray {
		return InvalidNode, typef("element access is not defined for %s", at)
	}
	if it := g.DataTypeOf(index); !it.IsInteger() && !it.IsNull() {
		return InvalidNode, typef("array index must be an integer, got %s", it)
	}
	return g.intern(node{op: OpIndex, inputs: []NodeID{arr, index}, dtype: at.Elem().AsNullable()}), nil
}

// Binary arithmetic.

// Add interns left + right.
func (g *Graph) Add(left, right NodeID) (NodeID, error) {
	return g.binaryArith(OpAdd, left, right)
}

// Subtract interns left - right.
func (g *Graph) Subtract(left, right NodeID) (NodeID, error) {
	return g.binaryArith(OpSubtract, left, right)
}

// Multiply interns left * right.
func (g *Graph) Multiply(left, right NodeID) (NodeID, error) {
	return g.binaryArith(OpMultiply, left, right)
}

// Divide interns left / right. Integer operands divide exactly, producing
// float64.
func (g *Graph) Divide(left, right NodeID) (NodeID, error) {
	return g.binaryArith(OpDivide, left, right)
}

// Modulus interns left % right over integers or decimals.
func (g *Graph) Modulus(left, right NodeID) (NodeID, error) {
	return g.binaryArith(OpModulus, left, right)
}

// Power interns left raised to right, always as float64.
func (g *Graph) Power(left, right NodeID) (NodeID, error) {
	return g.binaryArith(OpPower, left, right)
}

func (g *Graph) binaryArith(op Op, left, right NodeID) (NodeID, error) {
	if err := g.checkIDs(left, right); err != nil {
		return InvalidNode, err
	}
	if g.IsRelation(left) || g.IsRelation(right) {
		return InvalidNode, typef("%s operands must be scalars", op)
	}
	dtype, err := g.resolveArith(op, g.DataTypeOf(left), g.DataTypeOf(right))
	if err != nil {
		return InvalidNode, err
	}
	return g.intern(node{op: op, inputs: []NodeID{left, right}, dtype: dtype}), nil
}

func (g *Graph) resolveArith(op Op, lt, rt datatypes.DataType) (datatypes.DataType, error) {
	nullable := lt.Nullable() || rt.Nullable()
	if out, ok := resolveTemporalArith(op, lt, rt); ok {
		return out.WithNullable(nullable), nil
	}
	if !lt.IsNumeric() && !lt.IsNull() || !rt.IsNumeric() && !rt.IsNull() {
		return datatypes.DataType{}, typef("%s is not defined for %s and %s", op, lt, rt)
	}
	promoted, err := datatypes.Promote(lt, rt)
	if err != nil {
		return datatypes.DataType{}, err
	}
	switch op {
	case OpDivide:
		if promoted.IsInteger() {
			promoted = datatypes.Float64
		}
	case OpModulus:
		if promoted.IsFloating() {
			return datatypes.DataType{}, typef("%s is not defined for floating operands", op)
		}
	case OpPower:
		if promoted.Kind() != datatypes.KindDecimal {
			promoted = datatypes.Float64
		}
	}
	return promoted.WithNullable(nullable), nil
}

// resolveTemporalArith covers the operator combinations involving temporal
// operands. The bool result reports whether the combination was temporal.
func resolveTemporalArith(op Op, lt, rt datatypes.DataType) (datatypes.DataType, bool) {
	lk, rk := lt.Kind(), rt.Kind()
	switch op {
	case OpAdd:
		switch {
		case lk == datatypes.KindTimestamp && rk == datatypes.KindInterval:
			return lt, true
		case lk == datatypes.KindInterval && rk == datatypes.KindTimestamp:
			return rt, true
		case lk == datatypes.KindDate && rk == datatypes.KindInterval:
			return addToDate(rt), true
		case lk == datatypes.KindInterval && rk == datatypes.KindDate:
			return addToDate(lt), true
		case lk == datatypes.KindInterval && rk == datatypes.KindInterval && lt.Unit() == rt.Unit():
			return lt, true
		}
	case OpSubtract:
		switch {
		case lk == datatypes.KindTimestamp && rk == datatypes.KindInterval:
			return lt, true
		case lk == datatypes.KindDate && rk == datatypes.KindInterval:
			return addToDate(rt), true
		case lk == datatypes.KindTimestamp && rk == datatypes.KindTimestamp:
			return datatypes.Interval("s"), true
		case lk == datatypes.KindDate && rk == datatypes.KindDate:
			return datatypes.Interval("D"), true
		case lk == datatypes.KindInterval && rk == datatypes.KindInterval && lt.Unit() == rt.Unit():
			return lt, true
		}
	case OpMultiply:
		switch {
		case lk == datatypes.KindInterval && rt.IsSignedInteger():
			return lt, true
		case lt.IsSignedInteger() && rk == datatypes.KindInterval:
			return rt, true
		}
	}
	return datatypes.DataType{}, false
}

// addToDate returns the type of date +/- interval: still a date for units of
// a day and coarser, otherwise a naive timestamp.
func addToDate(interval datatypes.DataType) datatypes.DataType {
	switch interval.Unit() {
	case "Y", "Q", "M", "W", "D":
		return datatypes.Date
	}
	return datatypes.Timestamp("")
}

// Unary numeric functions.

// Negate interns -expr.
func (g *Graph) Negate(expr NodeID) (NodeID, error) {
	if err := g.checkIDs(expr); err != nil {
		return InvalidNode, err
	}
	dt := g.DataTypeOf(expr)
	if g.IsRelation(expr) || !(dt.IsSignedInteger() || dt.IsFloating() || dt.Kind() == datatypes.KindDecimal || dt.Kind() == datatypes.KindInterval) {
		return InvalidNode, typef("cannot negate %s", dt)
	}
	return g.intern(node{op: OpNegate, inputs: []NodeID{expr}, dtype: dt}), nil
}

// Abs interns the absolute value of expr.
func (g *Graph) Abs(expr NodeID) (NodeID, error) {
	return g.unaryNumeric(OpAbs, expr)
}

// Ceil interns the ceiling of expr: int64 for integer and floating operands,
// decimal for decimals.
func (g *Graph) Ceil(expr NodeID) (NodeID, error) {
	return g.unaryNumeric(OpCeil, expr)
}

// Floor interns the floor of expr, typed like Ceil.
func (g *Graph) Floor(expr NodeID) (NodeID, error) {
	return g.unaryNumeric(OpFloor, expr)
}

// Round interns expr rounded to the nearest integer, or to digits decimal
// places when the second argument is present.
func (g *Graph) Round(expr NodeID, digits ...NodeID) (NodeID, error) {
	if err := g.checkIDs(expr); err != nil {
		return InvalidNode, err
	}
	if len(digits) > 1 {
		return InvalidNode, typef("round takes at most one digits argument")
	}
	dt := g.DataTypeOf(expr)
	if g.IsRelation(expr) || !dt.IsNumeric() {
		return InvalidNode, typef("round is not defined for %s", dt)
	}
	inputs := []NodeID{expr}
	if len(digits) == 1 {
		d := digits[0]
		if err := g.checkIDs(d); err != nil {
			return InvalidNode, err
		}
		if g.IsRelation(d) || !g.DataTypeOf(d).IsInteger() {
			return InvalidNode, typef("round digits must be an integer")
		}
		inputs = append(inputs, d)
	}
	var out datatypes.DataType
	switch {
	case dt.Kind() == datatypes.KindDecimal:
		out = dt
	case len(inputs) == 2 && dt.IsFloating():
		out = datatypes.Float64
	default:
		out = datatypes.Int64
	}
	return g.intern(node{op: OpRound, inputs: inputs, dtype: out.WithNullable(dt.Nullable())}), nil
}

// Sqrt interns the square root of expr as float64.
func (g *Graph) Sqrt(expr NodeID) (NodeID, error) {
	return g.unaryFloat(OpSqrt, expr)
}

// Exp interns e raised to expr as float64.
func (g *Graph) Exp(expr NodeID) (NodeID, error) {
	return g.unaryFloat(OpExp, expr)
}

// Ln interns the natural logarithm of expr as float64.
func (g *Graph) Ln(expr NodeID) (NodeID, error) {
	return g.unaryFloat(OpLn, expr)
}

func (g *Graph) unaryNumeric(op Op, expr NodeID) (NodeID, error) {
	if err := g.checkIDs(expr); err != nil {
		return InvalidNode, err
	}
	dt := g.DataTypeOf(expr)
	if g.IsRelation(expr) || !dt.IsNumeric() {
		return InvalidNode, typef("%s is not defined for %s", op, dt)
	}
	out := dt
	if op == OpCeil || op == OpFloor {
		if dt.IsFloating() || dt.IsInteger() {
			out = datatypes.Int64.WithNullable(dt.Nullable())
		}
	}
	return g.intern(node{op: op, inputs: []NodeID{expr}, dtype: out}), nil
}

func (g *Graph) unaryFloat(op Op, expr NodeID) (NodeID, error) {
	if err := g.checkIDs(expr); err != nil {
		return InvalidNode, err
	}
	dt := g.DataTypeOf(expr)
	if g.IsRelation(expr) || !dt.IsNumeric() {
		return InvalidNode, typef("%s is not defined for %s", op, dt)
	}
	return g.intern(node{op: op, inputs: []NodeID{expr}, dtype: datatypes.Float64.WithNullable(dt.Nullable())}), nil
}

// Comparisons.

// Equals interns left = right.
func (g *Graph) Equals(left, right NodeID) (NodeID, error) {
	return g.compare(OpEquals, left, right)
}

// NotEquals interns left <> right.
func (g *Graph) NotEquals(left, right NodeID) (NodeID, error) {
	return g.compare(OpNotEquals, left, right)
}

// Less interns left < right.
func (g *Graph) Less(left, right NodeID) (NodeID, error) {
	return g.compare(OpLess, left, right)
}

// LessEqual interns left <= right.
func (g *Graph) LessEqual(left, right NodeID) (NodeID, error) {
	return g.compare(OpLessEqual, left, right)
}

// Greater interns left > right.
func (g *Graph) Greater(left, right NodeID) (NodeID, error) {
	return g.compare(OpGreater, left, right)
}

// GreaterEqual interns left >= right.
func (g *Graph) GreaterEqual(left, right NodeID) (NodeID, error) {
	return g.compare(OpGreaterEqual, left, right)
}

func (g *Graph) compare(op Op, left, right NodeID) (NodeID, error) {
	if err := g.checkIDs(left, right); err != nil {
		return InvalidNode, err
	}
	if g.IsRelation(left) || g.IsRelation(right) {
		return InvalidNode, typef("%s operands must be scalars", op)
	}
	lt, rt := g.DataTypeOf(left), g.DataTypeOf(right)
	if _, err := datatypes.Promote(lt, rt); err != nil {
		return InvalidNode, typef("cannot compare %s with %s", lt, rt)
	}
	dtype := datatypes.Boolean.WithNullable(lt.Nullable() || rt.Nullable())
	return g.intern(node{op: op, inputs: []NodeID{left, right}, dtype: dtype}), nil
}

// Between interns lower <= value AND value <= upper.
func (g *Graph) Between(value, lower, upper NodeID) (NodeID, error) {
	if err := g.checkIDs(value, lower, upper); err != nil {
		return InvalidNode, err
	}
	if g.IsRelation(value) || g.IsRelation(lower) || g.IsRelation(upper) {
		return InvalidNode, typef("between operands must be scalars")
	}
	vt := g.DataTypeOf(value)
	for _, bound := range []NodeID{lower, upper} {
		if _, err := datatypes.Promote(vt, g.DataTypeOf(bound)); err != nil {
			return InvalidNode, typef("cannot compare %s with %s", vt, g.DataTypeOf(bound))
		}
	}
	nullable := vt.Nullable() || g.DataTypeOf(lower).Nullable() || g.DataTypeOf(upper).Nullable()
	return g.intern(node{
		op:     OpBetween,
		inputs: []NodeID{value, lower, upper},
		dtype:  datatypes.Boolean.WithNullable(nullable),
	}), nil
}

// Boolean connectives.

// And interns the conjunction of two or more predicates, folded left.
func (g *Graph) And(predicates ...NodeID) (NodeID, error) {
	return g.connective(OpAnd, predicates)
}

// Or interns the disjunction of two or more predicates, folded left.
func (g *Graph) Or(predicates ...NodeID) (NodeID, error) {
	return g.connective(OpOr, predicates)
}

func (g *Graph) connective(op Op, predicates []NodeID) (NodeID, error) {
	if len(predicates) < 2 {
		return InvalidNode, typef("%s needs at least two operands", op)
	}
	if err := g.checkIDs(predicates...); err != nil {
		return InvalidNode, err
	}
	for _, p := range predicates {
		if g.IsRelation(p) || g.DataTypeOf(p).Kind() != datatypes.KindBoolean {
			return InvalidNode, typef("%s operands must be boolean", op)
		}
	}
	out := predicates[0]
	for _, p := range predicates[1:] {
		nullable := g.DataTypeOf(out).Nullable() || g.DataTypeOf(p).Nullable()
		out = g.intern(node{
			op:     op,
			inputs: []NodeID{out, p},
			dtype:  datatypes.Boolean.WithNullable(nullable),
		})
	}
	return out, nil
}

// Not interns the negation of a predicate.
func (g *Graph) Not(expr NodeID) (NodeID, error) {
	if err := g.checkIDs(expr); err != nil {
		return InvalidNode, err
	}
	if g.IsRelation(expr) || g.DataTypeOf(expr).Kind() != datatypes.KindBoolean {
		return InvalidNode, typef("not operand must be boolean")
	}
	return g.intern(node{op: OpNot, inputs: []NodeID{expr}, dtype: g.DataTypeOf(expr)}), nil
}

// Null handling.

// IsNull interns expr IS NULL. The result is never null itself.
func (g *Graph) IsNull(expr NodeID) (NodeID, error) {
	return g.nullTest(OpIsNull, expr)
}

// NotNull interns expr IS NOT NULL.
func (g *Graph) NotNull(expr NodeID) (NodeID, error) {
	return g.nullTest(OpNotNull, expr)
}

func (g *Graph) nullTest(op Op, expr NodeID) (NodeID, error) {
	if err := g.checkIDs(expr); err != nil {
		return InvalidNode, err
	}
	if g.IsRelation(expr) {
		return InvalidNode, typef("%s operand must be a scalar", op)
	}
	return g.intern(node{op: op, inputs: []NodeID{expr}, dtype: datatypes.Boolean.AsNonNullable()}), nil
}

// Coalesce interns the first non-null of its operands. The result is only
// nullable when every operand is.
func (g *Graph) Coalesce(exprs ...NodeID) (NodeID, error) {
	if len(exprs) == 0 {
		return InvalidNode, typef("coalesce needs at least one operand")
	}
	if err := g.checkIDs(exprs...); err != nil {
		return InvalidNode, err
	}
	types := make([]datatypes.DataType, len(exprs))
	allNullable := true
	for i, e := range exprs {
		if g.IsRelation(e) {
			return InvalidNode, typef("coalesce operands must be scalars")
		}
		types[i] = g.DataTypeOf(e)
		allNullable = allNullable && types[i].Nullable()
	}
	promoted, err := datatypes.PromoteAll(types...)
	if err != nil {
		return InvalidNode, err
	}
	return g.intern(node{
		op:     OpCoalesce,
		inputs: append([]NodeID(nil), exprs...),
		dtype:  promoted.WithNullable(allNullable),
	}), nil
}

// NullIf interns NULLIF(left, right): left, or null when the two are equal.
func (g *Graph) NullIf(left, right NodeID) (NodeID, error) {
	if err := g.checkIDs(left, right); err != nil {
		return InvalidNode, err
	}
	if g.IsRelation(left) || g.IsRelation(right) {
		return InvalidNode, typef("nullif operands must be scalars")
	}
	lt, rt := g.DataTypeOf(left), g.DataTypeOf(right)
	if _, err := datatypes.Promote(lt, rt); err != nil {
		return InvalidNode, typef("cannot compare %s with %s", lt, rt)
	}
	return g.intern(node{op: OpNullIf, inputs: []NodeID{left, right}, dtype: lt.AsNullable()}), nil
}

// Membership.

// InValues interns value IN (options...).
func (g *Graph) InValues(value NodeID, options ...NodeID) (NodeID, error) {
	if len(options) == 0 {
		return InvalidNode, typef("in list needs at least one option")
	}
	if err := g.checkIDs(append([]NodeID{value}, options...)...); err != nil {
		return InvalidNode, err
	}
	if g.IsRelation(value) {
		return InvalidNode, typef("in operand must be a scalar")
	}
	vt := g.DataTypeOf(value)
	nullable := vt.Nullable()
	for _, opt := range options {
		if g.IsRelation(opt) {
			return InvalidNode, typef("in options must be scalars")
		}
		if _, err := datatypes.Promote(vt, g.DataTypeOf(opt)); err != nil {
			return InvalidNode, typef("cannot compare %s with %s", vt, g.DataTypeOf(opt))
		}
		nullable = nullable || g.DataTypeOf(opt).Nullable()
	}
	return g.intern(node{
		op:     OpInValues,
		inputs: append([]NodeID{value}, options...),
		dtype:  datatypes.Boolean.WithNullable(nullable),
	}), nil
}

// Exists interns an EXISTS (or NOT EXISTS) test over a subquery relation.
func (g *Graph) Exists(subquery NodeID, negated bool) (NodeID, error) {
	if err := g.checkIDs(subquery); err != nil {
		return InvalidNode, err
	}
	if !g.IsRelation(subquery) {
		return InvalidNode, typef("exists operand must be a relation, got %s", g.Op(subquery))
	}
	return g.intern(node{
		op:     OpExists,
		inputs: []NodeID{subquery},
		dtype:  datatypes.Boolean.AsNonNullable(),
		extra:  ExistsParams{Negated: negated},
	}), nil
}

// Case interns a searched CASE expression. whens and thens are parallel;
// pass InvalidNode for elseExpr to omit the ELSE branch.
func (g *Graph) Case(whens, thens []NodeID, elseExpr NodeID) (NodeID, error) {
	if len(whens) == 0 || len(whens) != len(thens) {
		return InvalidNode, typef("case needs parallel when and then branches")
	}
	ids := append(append([]NodeID(nil), whens...), thens...)
	hasElse := elseExpr != InvalidNode
	if hasElse {
		ids = append(ids, elseExpr)
	}
	if err := g.checkIDs(ids...); err != nil {
		return InvalidNode, err
	}
	types := make([]datatypes.DataType, 0, len(thens)+1)
	for i := range whens {
		if g.IsRelation(whens[i]) || g.DataTypeOf(whens[i]).Kind() != datatypes.KindBoolean {
			return InvalidNode, typef("case conditions must be boolean")
		}
		if g.IsRelation(thens[i]) {
			return InvalidNode, typef("case results must be scalars")
		}
		types = append(types, g.DataTypeOf(thens[i]))
	}
	if hasElse {
		if g.IsRelation(elseExpr) {
			return InvalidNode, typef("case else must be a scalar")
		}
		types = append(types, g.DataTypeOf(elseExpr))
	}
	promoted, err := datatypes.PromoteAll(types...)
	if err != nil {
		return InvalidNode, err
	}
	if !hasElse {
		// A missing ELSE yields NULL for unmatched rows.
		promoted = promoted.AsNullable()
	}
	inputs := make([]NodeID, 0, len(ids))
	for i := range whens {
		inputs = append(inputs, whens[i], thens[i])
	}
	if hasElse {
		inputs = append(inputs, elseExpr)
	}
	return g.intern(node{
		op:     OpCase,
		inputs: inputs,
		dtype:  promoted,
		extra:  CaseParams{HasElse: hasElse},
	}), nil
}

// String functions.

// Lower interns LOWER(expr).
func (g *Graph) Lower(expr NodeID) (NodeID, error) {
	return g.unaryString(OpLower, expr)
}

// Upper interns UPPER(expr).
func (g *Graph) Upper(expr NodeID) (NodeID, error) {
	return g.unaryString(OpUpper, expr)
}

// Trim interns TRIM(expr), removing whitespace from both ends.
func (g *Graph) Trim(expr NodeID) (NodeID, error) {
	return g.unaryString(OpTrim, expr)
}

func (g *Graph) unaryString(op Op, expr NodeID) (NodeID, error) {
	if err := g.checkIDs(expr); err != nil {
		return InvalidNode, err
	}
	if g.IsRelation(expr) || g.DataTypeOf(expr).Kind() != datatypes.KindString {
		return InvalidNode, typef("%s operand must be a string", op)
	}
	return g.intern(node{op: op, inputs: []NodeID{expr}, dtype: g.DataTypeOf(expr)}), nil
}

// Length interns the character length of expr.
func (g *Graph) Length(expr NodeID) (NodeID, error) {
	if err := g.checkIDs(expr); err != nil {
		return InvalidNode, err
	}
	dt := g.DataTypeOf(expr)
	if g.IsRelation(expr) || dt.Kind() != datatypes.KindString {
		return InvalidNode, typef("length operand must be a string")
	}
	return g.intern(node{
		op:     OpLength,
		inputs: []NodeID{expr},
		dtype:  datatypes.Int32.WithNullable(dt.Nullable()),
	}), nil
}

// Substring interns SUBSTRING(str FROM start [FOR length]). start is
// one-based, as in SQL.
func (g *Graph) Substring(str, start NodeID, length ...NodeID) (NodeID, error) {
	if len(length) > 1 {
		return InvalidNode, typef("substring takes at most one length argument")
	}
	ids := append([]NodeID{str, start}, length...)
	if err := g.checkIDs(ids...); err != nil {
		return InvalidNode, err
	}
	if g.IsRelation(str) || g.DataTypeOf(str).Kind() != datatypes.KindString {
		return InvalidNode, typef("substring operand must be a string")
	}
	nullable := g.DataTypeOf(str).Nullable()
	for _, arg := range ids[1:] {
		if g.IsRelation(arg) || !g.DataTypeOf(arg).IsInteger() {
			return InvalidNode, typef("substring position arguments must be integers")
		}
		nullable = nullable || g.DataTypeOf(arg).Nullable()
	}
	return g.intern(node{
		op:     OpSubstring,
		inputs: ids,
		dtype:  datatypes.String.WithNullable(nullable),
	}), nil
}

// StringConcat interns the concatenation of two or more strings.
func (g *Graph) StringConcat(parts ...NodeID) (NodeID, error) {
	if len(parts) < 2 {
		return InvalidNode, typef("concat needs at least two operands")
	}
	if err := g.checkIDs(parts...); err != nil {
		return InvalidNode, err
	}
	nullable := false
	for _, p := range parts {
		if g.IsRelation(p) || g.DataTypeOf(p).Kind() != datatypes.KindString {
			return InvalidNode, typef("concat operands must be strings")
		}
		nullable = nullable || g.DataTypeOf(p).Nullable()
	}
	return g.intern(node{
		op:     OpStringConcat,
		inputs: append([]NodeID(nil), parts...),
		dtype:  datatypes.String.WithNullable(nullable),
	}), nil
}

// RegexMatch interns a regular expression match of str against pattern.
func (g *Graph) RegexMatch(str, pattern NodeID) (NodeID, error) {
	if err := g.checkIDs(str, pattern); err != nil {
		return InvalidNode, err
	}
	for _, arg := range []NodeID{str, pattern} {
		if g.IsRelation(arg) || g.DataTypeOf(arg).Kind() != datatypes.KindString {
			return InvalidNode, typef("regex match operands must be strings")
		}
	}
	nullable := g.DataTypeOf(str).Nullable() || g.DataTypeOf(pattern).Nullable()
	return g.intern(node{
		op:     OpRegexMatch,
		inputs: []NodeID{str, pattern},
		dtype:  datatypes.Boolean.WithNullable(nullable),
	}), nil
}

// Greatest interns the largest of its operands.
func (g *Graph) Greatest(exprs ...NodeID) (NodeID, error) {
	return g.extremum(OpGreatest, exprs)
}

// Least interns the smallest of its operands.
func (g *Graph) Least(exprs ...NodeID) (NodeID, error) {
	return g.extremum(OpLeast, exprs)
}

func (g *Graph) extremum(op Op, exprs []NodeID) (NodeID, error) {
	if len(exprs) < 2 {
		return InvalidNode, typef("%s needs at least two operands", op)
	}
	if err := g.checkIDs(exprs...); err != nil {
		return InvalidNode, err
	}
	types := make([]datatypes.DataType, len(exprs))
	for i, e := range exprs {
		if g.IsRelation(e) {
			return InvalidNode, typef("%s operands must be scalars", op)
		}
		types[i] = g.DataTypeOf(e)
	}
	promoted, err := datatypes.PromoteAll(types...)
	if err != nil {
		return InvalidNode, err
	}
	return g.intern(node{op: op, inputs: append([]NodeID(nil), exprs...), dtype: promoted}), nil
}

// Extract interns extraction of a date part from a temporal value.
func (g *Graph) Extract(part DatePart, expr NodeID) (NodeID, error) {
	if err := g.checkIDs(expr); err != nil {
		return InvalidNode, err
	}
	dt := g.DataTypeOf(expr)
	switch dt.Kind() {
	case datatypes.KindTimestamp:
	case datatypes.KindDate:
		if timeParts[part] {
			return InvalidNode, typef("cannot extract %s from %s", part, dt)
		}
	case datatypes.KindTime:
		if !timeParts[part] {
			return InvalidNode, typef("cannot extract %s from %s", part, dt)
		}
	default:
		return InvalidNode, typef("cannot extract %s from %s", part, dt)
	}
	return g.intern(node{
		op:     OpExtract,
		inputs: []NodeID{expr},
		dtype:  datatypes.Int32.WithNullable(dt.Nullable()),
		extra:  ExtractParams{Part: part},
	}), nil
}
