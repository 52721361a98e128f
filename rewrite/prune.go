package rewrite

import (
	"github.com/bawdo/goshawk/ir"
)

type columnPruning struct{}

// PruneColumns returns the pass that drops projection outputs nothing
// upstream uses. Requirements start at the root, whose schema is always
// preserved exactly, and flow down: an operator requires of its child the
// columns its own required outputs and expressions mention. Only
// projections shrink; tables, aggregates, and structural operators keep
// their schemas, and a projection left with no required output keeps its
// first column so the relation stays well formed.
func PruneColumns() Pass { return columnPruning{} }

func (columnPruning) Name() string { return "prune-columns" }

func (columnPruning) Apply(g *ir.Graph, root ir.NodeID) (ir.NodeID, error) {
	keep := requiredOutputs(g, root)
	if len(keep) == 0 {
		return root, nil
	}
	root, err := rewriteBottomUp(g, root, func(old, rebuilt ir.NodeID) (ir.NodeID, error) {
		ords, ok := keep[old]
		if !ok {
			return rebuilt, nil
		}
		exprs := exprInputs(g, rebuilt)
		names := g.ProjectOf(rebuilt).Names
		keptNames := make([]string, len(ords))
		keptExprs := make([]ir.NodeID, len(ords))
		for i, ord := range ords {
			keptNames[i] = names[ord]
			keptExprs[i] = exprs[ord]
		}
		return g.Project(g.Input(rebuilt, 0), keptNames, keptExprs)
	})
	return root, internal(err)
}

// requiredOutputs walks the plan from the root down and returns, for every
// projection that can shrink, the ordinals of the outputs to keep.
func requiredOutputs(g *ir.Graph, root ir.NodeID) map[ir.NodeID][]int {
	req := make(map[ir.NodeID]map[string]bool)
	ensure := func(rel ir.NodeID) map[string]bool {
		if req[rel] == nil {
			req[rel] = make(map[string]bool)
		}
		return req[rel]
	}
	need := func(rel ir.NodeID, name string) { ensure(rel)[name] = true }
	needAll := func(rel ir.NodeID) {
		for _, n := range g.SchemaOf(rel).Names() {
			need(rel, n)
		}
	}
	// seedExpr records which columns a scalar expression pins: every column
	// it references, plus an empty requirement for subquery and count-star
	// relations, whose own columns are not needed upstream.
	seedExpr := func(e ir.NodeID) {
		walkScalar(g, e, func(id ir.NodeID) {
			switch g.Op(id) {
			case ir.OpColumnRef:
				need(g.Input(id, 0), g.ColumnName(id))
			case ir.OpExists, ir.OpCountStar:
				ensure(g.Input(id, 0))
			}
		})
	}

	if g.IsRelation(root) {
		needAll(root)
	} else {
		seedExpr(root)
	}

	order := g.Topo(root)
	keep := make(map[ir.NodeID][]int)
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		if !g.IsRelation(id) {
			continue
		}
		mine := req[id]
		switch g.Op(id) {
		case ir.OpDatabaseTable:
		case ir.OpView, ir.OpLimit:
			for name := range mine {
				need(g.Input(id, 0), name)
			}
		case ir.OpFilter, ir.OpSort:
			for name := range mine {
				need(g.Input(id, 0), name)
			}
			for _, e := range exprInputs(g, id) {
				seedExpr(e)
			}
		case ir.OpDistinct:
			// DISTINCT over fewer columns eliminates different rows
			needAll(g.Input(id, 0))
		case ir.OpUnnest:
			for name := range mine {
				need(g.Input(id, 0), name)
			}
			// the expanded column must survive even when nothing upstream
			// reads it: dropping it would change the row count
			need(g.Input(id, 0), g.UnnestOf(id).Column)
		case ir.OpProject:
			names := g.ProjectOf(id).Names
			exprs := exprInputs(g, id)
			ords := make([]int, 0, len(names))
			for ord, name := range names {
				if mine[name] {
					ords = append(ords, ord)
				}
			}
			if len(ords) == 0 {
				ords = []int{0}
			}
			for _, ord := range ords {
				seedExpr(exprs[ord])
			}
			if len(ords) < len(names) {
				keep[id] = ords
			}
		case ir.OpAggregate:
			for _, e := range exprInputs(g, id) {
				seedExpr(e)
			}
		case ir.OpJoin:
			left, right := g.Input(id, 0), g.Input(id, 1)
			ls, js := g.SchemaOf(left), g.SchemaOf(id)
			for name := range mine {
				idx, ok := js.IndexOf(name)
				if !ok {
					continue
				}
				if idx < ls.Len() {
					need(left, name)
					continue
				}
				rname := g.SchemaOf(right).Field(idx - ls.Len()).Name
				need(right, rname)
				if rname != name {
					// the right column is renamed because the left has one
					// of the same name; keep the left column so the rename
					// stays stable
					need(left, rname)
				}
			}
			for _, e := range exprInputs(g, id) {
				seedExpr(e)
			}
		case ir.OpSetOperation:
			// columns correspond by position across both arms
			needAll(g.Input(id, 0))
			needAll(g.Input(id, 1))
		}
	}
	return keep
}
