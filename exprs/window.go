package exprs

import (
	"fmt"

	"github.com/bawdo/goshawk/ir"
)

// Window accumulates a window specification for Column.Over.
type Window struct {
	partition []Column
	order     []any
	frame     *ir.WindowFrame
}

// NewWindow creates an empty window specification.
func NewWindow() *Window { return &Window{} }

// PartitionBy appends columns to the window's partitioning key.
func (w *Window) PartitionBy(cols ...Column) *Window {
	w.partition = append(w.partition, cols...)
	return w
}

// OrderBy appends ordering keys to the window. Each key is a Column
// (ascending) or an Ordering from Asc or Desc.
func (w *Window) OrderBy(keys ...any) *Window {
	w.order = append(w.order, keys...)
	return w
}

// Rows sets a row-counted frame. With one bound the frame runs from that
// bound to the current row.
func (w *Window) Rows(start ir.FrameBound, end ...ir.FrameBound) *Window {
	w.frame = frameOf(ir.FrameRows, start, end)
	return w
}

// Range sets a value-range frame. With one bound the frame runs from
// that bound to the current row.
func (w *Window) Range(start ir.FrameBound, end ...ir.FrameBound) *Window {
	w.frame = frameOf(ir.FrameRange, start, end)
	return w
}

func frameOf(typ ir.FrameType, start ir.FrameBound, end []ir.FrameBound) *ir.WindowFrame {
	e := ir.CurrentRow()
	if len(end) > 0 {
		e = end[0]
	}
	if typ == ir.FrameRange {
		return ir.RangeBetween(start, e)
	}
	return ir.RowsBetween(start, e)
}

// UnboundedPreceding returns the frame bound before all rows.
func UnboundedPreceding() ir.FrameBound { return ir.UnboundedPreceding() }

// Preceding returns the frame bound n rows before the current row.
func Preceding(n int64) ir.FrameBound { return ir.Preceding(n) }

// CurrentRow returns the frame bound at the current row.
func CurrentRow() ir.FrameBound { return ir.CurrentRow() }

// Following returns the frame bound n rows after the current row.
func Following(n int64) ir.FrameBound { return ir.Following(n) }

// UnboundedFollowing returns the frame bound after all rows.
func UnboundedFollowing() ir.FrameBound { return ir.UnboundedFollowing() }

// Over turns an aggregate or window function column into a windowed
// expression. A nil window spans the whole relation.
func (c Column) Over(w *Window) Column {
	if c.err != nil {
		return c
	}
	var (
		partition []ir.NodeID
		orderIDs  []ir.NodeID
		specs     []ir.SortSpec
		frame     *ir.WindowFrame
	)
	if w != nil {
		for _, p := range w.partition {
			if p.err != nil {
				return c.fail(p.err)
			}
			partition = append(partition, p.id)
		}
		for _, key := range w.order {
			switch v := key.(type) {
			case Column:
				if v.err != nil {
					return c.fail(v.err)
				}
				orderIDs = append(orderIDs, v.id)
				specs = append(specs, ir.SortSpec{})
			case Ordering:
				if v.col.err != nil {
					return c.fail(v.col.err)
				}
				orderIDs = append(orderIDs, v.col.id)
				specs = append(specs, v.spec)
			default:
				return c.fail(fmt.Errorf("window order key must be a Column or Ordering, got %T", key))
			}
		}
		frame = w.frame
	}
	return c.derive(c.g.Window(c.id, partition, orderIDs, specs, frame))
}

// RowNumber numbers the rows of the window from one.
func RowNumber(g *ir.Graph) Column {
	return Column{g: g, id: g.RowNumber()}
}

// Rank ranks the rows of the window with gaps after ties.
func Rank(g *ir.Graph) Column {
	return Column{g: g, id: g.Rank()}
}

// DenseRank ranks the rows of the window without gaps after ties.
func DenseRank(g *ir.Graph) Column {
	return Column{g: g, id: g.DenseRank()}
}

// PercentRank gives each row's relative rank in the window, zero to one.
func PercentRank(g *ir.Graph) Column {
	return Column{g: g, id: g.PercentRank()}
}

// CumeDist gives each row's cumulative distribution in the window.
func CumeDist(g *ir.Graph) Column {
	return Column{g: g, id: g.CumeDist()}
}

// Ntile splits the window into the given number of equal buckets and
// numbers them from one.
func Ntile(g *ir.Graph, buckets int64) Column {
	b, err := g.Literal(buckets)
	if err != nil {
		return Column{g: g, id: ir.InvalidNode, err: err}
	}
	id, err := g.Ntile(b)
	return Column{g: g, id: id, err: err}
}
