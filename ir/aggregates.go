package ir

import (
	"github.com/bawdo/goshawk/datatypes"
)

// Reductions. A reduction node is only meaningful as an Aggregate output or
// wrapped in a Window; checkValueExpr rejects bare reductions elsewhere.

// Sum interns a sum reduction. Integer sums widen to 64 bits; decimal sums
// widen to the maximum precision.
func (g *Graph) Sum(arg NodeID, distinct bool) (NodeID, error) {
	if err := g.checkReductionArg(arg, "sum"); err != nil {
		return InvalidNode, err
	}
	dt := g.DataTypeOf(arg)
	if !dt.IsNumeric() {
		return InvalidNode, typef("sum is not defined for %s", dt)
	}
	return g.intern(node{
		op:     OpSum,
		inputs: []NodeID{arg},
		dtype:  reductionSumType(dt),
		extra:  ReductionParams{Distinct: distinct},
	}), nil
}

func reductionSumType(dt datatypes.DataType) datatypes.DataType {
	switch {
	case dt.IsSignedInteger():
		return datatypes.Int64
	case dt.IsUnsignedInteger():
		return datatypes.UInt64
	case dt.IsFloating():
		return datatypes.Float64
	case dt.Kind() == datatypes.KindDecimal:
		return datatypes.Decimal(38, dt.Scale())
	default:
		return dt
	}
}

// Mean interns an arithmetic mean reduction. Integer and floating means are
// float64; decimal means stay decimal at maximum precision.
func (g *Graph) Mean(arg NodeID, distinct bool) (NodeID, error) {
	if err := g.checkReductionArg(arg, "mean"); err != nil {
		return InvalidNode, err
	}
	dt := g.DataTypeOf(arg)
	if !dt.IsNumeric() {
		return InvalidNode, typef("mean is not defined for %s", dt)
	}
	out := datatypes.Float64
	if dt.Kind() == datatypes.KindDecimal {
		out = datatypes.Decimal(38, dt.Scale())
	}
	return g.intern(node{
		op:     OpMean,
		inputs: []NodeID{arg},
		dtype:  out,
		extra:  ReductionParams{Distinct: distinct},
	}), nil
}

// Min interns a minimum reduction.
func (g *Graph) Min(arg NodeID) (NodeID, error) {
	return g.minMax(OpMin, arg)
}

// Max interns a maximum reduction.
func (g *Graph) Max(arg NodeID) (NodeID, error) {
	return g.minMax(OpMax, arg)
}

func (g *Graph) minMax(op Op, arg NodeID) (NodeID, error) {
	if err := g.checkReductionArg(arg, op.String()); err != nil {
		return InvalidNode, err
	}
	dt := g.DataTypeOf(arg)
	orderable := dt.IsNumeric() || dt.Kind() == datatypes.KindString || dt.IsTemporal() || dt.Kind() == datatypes.KindBoolean
	if !orderable {
		return InvalidNode, typef("%s is not defined for %s", op, dt)
	}
	return g.intern(node{op: op, inputs: []NodeID{arg}, dtype: dt.AsNullable()}), nil
}

// Count interns a count of non-null values of arg. The result is never null.
func (g *Graph) Count(arg NodeID, distinct bool) (NodeID, error) {
	if err := g.checkReductionArg(arg, "count"); err != nil {
		return InvalidNode, err
	}
	return g.intern(node{
		op:     OpCount,
		inputs: []NodeID{arg},
		dtype:  datatypes.Int64.AsNonNullable(),
		extra:  ReductionParams{Distinct: distinct},
	}), nil
}

// CountStar interns a row count over rel.
func (g *Graph) CountStar(rel NodeID) (NodeID, error) {
	if err := g.checkIDs(rel); err != nil {
		return InvalidNode, err
	}
	if !g.IsRelation(rel) {
		return InvalidNode, typef("count star operand must be a relation, got %s", g.Op(rel))
	}
	return g.intern(node{
		op:     OpCountStar,
		inputs: []NodeID{rel},
		dtype:  datatypes.Int64.AsNonNullable(),
	}), nil
}

func (g *Graph) checkReductionArg(arg NodeID, what string) error {
	if err := g.checkIDs(arg); err != nil {
		return err
	}
	if g.IsRelation(arg) {
		return typef("%s operand must be a scalar", what)
	}
	if containsOp(g, arg, func(op Op) bool {
		return op.IsReduction() || op.IsWindowFunc() || op == OpWindow
	}) {
		return typef("%s argument nests a reduction or window", what)
	}
	return nil
}

// Window wrapping.

// Window interns a windowed evaluation of fn, which must be a reduction or a
// window-only function. keys and specs describe the ORDER BY part and must be
// parallel. A nil frame is resolved to the dialect-independent default by the
// window normalization pass before compilation.
func (g *Graph) Window(fn NodeID, partitionBy, orderBy []NodeID, specs []SortSpec, frame *WindowFrame) (NodeID, error) {
	ids := append([]NodeID{fn}, partitionBy...)
	ids = append(ids, orderBy...)
	if err := g.checkIDs(ids...); err != nil {
		return InvalidNode, err
	}
	op := g.Op(fn)
	if !op.IsReduction() && !op.IsWindowFunc() {
		return InvalidNode, typef("cannot window %s", op)
	}
	if len(orderBy) != len(specs) {
		return InvalidNode, typef("window has %d order keys for %d direction specs", len(orderBy), len(specs))
	}
	for _, key := range append(append([]NodeID(nil), partitionBy...), orderBy...) {
		if g.IsRelation(key) {
			return InvalidNode, typef("window keys must be scalars")
		}
		if containsOp(g, key, func(op Op) bool {
			return op.IsReduction() || op.IsWindowFunc() || op == OpWindow
		}) {
			return InvalidNode, typef("window keys cannot nest reductions or windows")
		}
	}
	if frame != nil && !frame.valid() {
		return InvalidNode, typef("invalid window frame %s", *frame)
	}
	var fr *WindowFrame
	if frame != nil {
		f := *frame
		fr = &f
	}
	return g.intern(node{
		op:     OpWindow,
		inputs: ids,
		dtype:  g.DataTypeOf(fn),
		extra: WindowParams{
			PartitionCount: len(partitionBy),
			OrderCount:     len(orderBy),
			Specs:          append([]SortSpec(nil), specs...),
			Frame:          fr,
		},
	}), nil
}

// WindowPartition returns the partition key inputs of a Window node.
func (g *Graph) WindowPartition(id NodeID) []NodeID {
	p := g.WindowOf(id)
	return g.Inputs(id)[1 : 1+p.PartitionCount]
}

// WindowOrder returns the order key inputs of a Window node.
func (g *Graph) WindowOrder(id NodeID) []NodeID {
	p := g.WindowOf(id)
	return g.Inputs(id)[1+p.PartitionCount : 1+p.PartitionCount+p.OrderCount]
}

// Window-only functions.

// RowNumber interns a ROW_NUMBER marker for use inside Window.
func (g *Graph) RowNumber() NodeID {
	return g.intern(node{op: OpRowNumber, dtype: datatypes.Int64.AsNonNullable()})
}

// Rank interns a RANK marker for use inside Window.
func (g *Graph) Rank() NodeID {
	return g.intern(node{op: OpRank, dtype: datatypes.Int64.AsNonNullable()})
}

// DenseRank interns a DENSE_RANK marker for use inside Window.
func (g *Graph) DenseRank() NodeID {
	return g.intern(node{op: OpDenseRank, dtype: datatypes.Int64.AsNonNullable()})
}

// PercentRank interns a PERCENT_RANK marker for use inside Window.
func (g *Graph) PercentRank() NodeID {
	return g.intern(node{op: OpPercentRank, dtype: datatypes.Float64.AsNonNullable()})
}

// CumeDist interns a CUME_DIST marker for use inside Window.
func (g *Graph) CumeDist() NodeID {
	return g.intern(node{op: OpCumeDist, dtype: datatypes.Float64.AsNonNullable()})
}

// Ntile interns an NTILE(buckets) marker for use inside Window.
func (g *Graph) Ntile(buckets NodeID) (NodeID, error) {
	if err := g.checkIDs(buckets); err != nil {
		return InvalidNode, err
	}
	if g.IsRelation(buckets) || !g.DataTypeOf(buckets).IsInteger() {
		return InvalidNode, typef("ntile buckets must be an integer")
	}
	return g.intern(node{
		op:     OpNtile,
		inputs: []NodeID{buckets},
		dtype:  datatypes.Int64.AsNonNullable(),
	}), nil
}

// Lag interns LAG(expr [, offset [, default]]) for use inside Window.
func (g *Graph) Lag(args ...NodeID) (NodeID, error) {
	return g.shift(OpLag, args)
}

// Lead interns LEAD(expr [, offset [, default]]) for use inside Window.
func (g *Graph) Lead(args ...NodeID) (NodeID, error) {
	return g.shift(OpLead, args)
}

func (g *Graph) shift(op Op, args []NodeID) (NodeID, error) {
	if len(args) < 1 || len(args) > 3 {
		return InvalidNode, typef("%s takes one to three arguments", op)
	}
	if err := g.checkIDs(args...); err != nil {
		return InvalidNode, err
	}
	if g.IsRelation(args[0]) {
		return InvalidNode, typef("%s operand must be a scalar", op)
	}
	dt := g.DataTypeOf(args[0])
	if len(args) >= 2 {
		if g.IsRelation(args[1]) || !g.DataTypeOf(args[1]).IsInteger() {
			return InvalidNode, typef("%s offset must be an integer", op)
		}
	}
	if len(args) == 3 {
		if g.IsRelation(args[2]) {
			return InvalidNode, typef("%s default must be a scalar", op)
		}
		promoted, err := datatypes.Promote(dt, g.DataTypeOf(args[2]))
		if err != nil {
			return InvalidNode, err
		}
		dt = promoted
	}
	return g.intern(node{
		op:     op,
		inputs: append([]NodeID(nil), args...),
		dtype:  dt.AsNullable(),
	}), nil
}

// FirstValue interns FIRST_VALUE(expr) for use inside Window.
func (g *Graph) FirstValue(expr NodeID) (NodeID, error) {
	return g.edgeValue(OpFirstValue, expr)
}

// LastValue interns LAST_VALUE(expr) for use inside Window.
func (g *Graph) LastValue(expr NodeID) (NodeID, error) {
	return g.edgeValue(OpLastValue, expr)
}

func (g *Graph) edgeValue(op Op, expr NodeID) (NodeID, error) {
	if err := g.checkIDs(expr); err != nil {
		return InvalidNode, err
	}
	if g.IsRelation(expr) {
		return InvalidNode, typef("%s operand must be a scalar", op)
	}
	return g.intern(node{
		op:     op,
		inputs: []NodeID{expr},
		dtype:  g.DataTypeOf(expr).AsNullable(),
	}), nil
}
