package rewrite

import (
	"fmt"

	"github.com/bawdo/goshawk/ir"
)

type windowNormalization struct{}

// NormalizeWindows returns the pass that puts every window expression into
// canonical form. Windows built without a frame get the default one: rows
// from the start of the partition to the current row when the window is
// ordered, the whole partition otherwise. Filter predicates that use a
// window result cannot run where the filter sits, because the window is
// computed after filtering; such predicates move to a stage over a
// projection that materializes the window first. Projection chains the
// split leaves behind are re-fused on the way up.
func NormalizeWindows() Pass { return windowNormalization{} }

func (windowNormalization) Name() string { return "normalize-windows" }

func (windowNormalization) Apply(g *ir.Graph, root ir.NodeID) (ir.NodeID, error) {
	root, err := rewriteBottomUp(g, root, func(_, rebuilt ir.NodeID) (ir.NodeID, error) {
		switch g.Op(rebuilt) {
		case ir.OpWindow:
			return defaultFrame(g, rebuilt)
		case ir.OpFilter:
			return splitWindowFilter(g, rebuilt)
		case ir.OpProject:
			return fuseFully(g, rebuilt)
		default:
			return rebuilt, nil
		}
	})
	return root, internal(err)
}

// defaultFrame fills in the frame of a window built without one.
func defaultFrame(g *ir.Graph, win ir.NodeID) (ir.NodeID, error) {
	p := g.WindowOf(win)
	if p.Frame != nil {
		return win, nil
	}
	end := ir.UnboundedFollowing()
	if p.OrderCount > 0 {
		end = ir.CurrentRow()
	}
	inputs := g.Inputs(win)
	parts := inputs[1 : 1+p.PartitionCount]
	orders := inputs[1+p.PartitionCount:]
	return g.Window(inputs[0], parts, orders, p.Specs, ir.RowsBetween(ir.UnboundedPreceding(), end))
}

// splitWindowFilter rewrites a filter whose predicates use window results.
// The windows are materialized by a projection under the filter, the
// predicates are rebound to the materialized columns, and a projection on
// top restores the original schema:
//
//	Filter(child, preds)
//	  => Project(Filter(Project(child, cols+wins), preds'), cols)
//
// The filter's semantics are unchanged: every window was already computed
// over child's full row set, and predicates that do not mention a window
// evaluate identically on either side of the materialization.
func splitWindowFilter(g *ir.Graph, flt ir.NodeID) (ir.NodeID, error) {
	preds := exprInputs(g, flt)
	wins := windowsIn(g, preds)
	if len(wins) == 0 {
		return flt, nil
	}
	child := g.Input(flt, 0)
	schema := g.SchemaOf(child)

	names := append([]string(nil), schema.Names()...)
	exprs := make([]ir.NodeID, 0, schema.Len()+len(wins))
	for i := 0; i < schema.Len(); i++ {
		ref, err := g.ColumnAt(child, i)
		if err != nil {
			return ir.InvalidNode, err
		}
		exprs = append(exprs, ref)
	}
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[n] = true
	}
	winNames := make([]string, len(wins))
	next := 0
	for i, w := range wins {
		var name string
		for {
			name = fmt.Sprintf("_w%d", next)
			next++
			if !taken[name] {
				break
			}
		}
		taken[name] = true
		winNames[i] = name
		names = append(names, name)
		exprs = append(exprs, w)
	}
	stage, err := g.Project(child, names, exprs)
	if err != nil {
		return ir.InvalidNode, err
	}
	if stage, err = fuseFully(g, stage); err != nil {
		return ir.InvalidNode, err
	}

	repl := make(map[ir.NodeID]ir.NodeID, len(wins)+schema.Len())
	for i, w := range wins {
		ref, err := g.ColumnRef(stage, winNames[i])
		if err != nil {
			return ir.InvalidNode, err
		}
		repl[w] = ref
	}
	for i := 0; i < schema.Len(); i++ {
		from, err := g.ColumnAt(child, i)
		if err != nil {
			return ir.InvalidNode, err
		}
		to, err := g.ColumnRef(stage, schema.Field(i).Name)
		if err != nil {
			return ir.InvalidNode, err
		}
		repl[from] = to
	}
	rebound := make([]ir.NodeID, len(preds))
	for i, p := range preds {
		if rebound[i], err = substitute(g, p, repl); err != nil {
			return ir.InvalidNode, err
		}
	}
	filtered, err := g.Filter(stage, rebound...)
	if err != nil {
		return ir.InvalidNode, err
	}

	restore := make([]ir.NodeID, schema.Len())
	for i := range restore {
		if restore[i], err = g.ColumnAt(filtered, i); err != nil {
			return ir.InvalidNode, err
		}
	}
	return g.Project(filtered, schema.Names(), restore)
}

// windowsIn returns the distinct window nodes the predicates use, in first
// use order.
func windowsIn(g *ir.Graph, preds []ir.NodeID) []ir.NodeID {
	var wins []ir.NodeID
	seen := make(map[ir.NodeID]bool)
	for _, p := range preds {
		walkScalar(g, p, func(id ir.NodeID) {
			if g.Op(id) == ir.OpWindow && !seen[id] {
				seen[id] = true
				wins = append(wins, id)
			}
		})
	}
	return wins
}
