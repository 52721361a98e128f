package rewrite

import (
	"github.com/bawdo/goshawk/ir"
)

type projectionFusion struct{}

// FuseProjections returns the pass that collapses chains of projections
// into a single projection over the original source. References to an
// inner projection's outputs are replaced by the expressions defining
// them, so the fused projection computes the same columns in one step.
func FuseProjections() Pass { return projectionFusion{} }

func (projectionFusion) Name() string { return "fuse-projections" }

func (projectionFusion) Apply(g *ir.Graph, root ir.NodeID) (ir.NodeID, error) {
	root, err := rewriteBottomUp(g, root, func(_, rebuilt ir.NodeID) (ir.NodeID, error) {
		return fuseFully(g, rebuilt)
	})
	return root, internal(err)
}

// fuseFully merges rel with the chain of projections under it, if rel is a
// projection. Non-projections pass through.
func fuseFully(g *ir.Graph, rel ir.NodeID) (ir.NodeID, error) {
	for g.Op(rel) == ir.OpProject && g.Op(g.Input(rel, 0)) == ir.OpProject {
		var err error
		if rel, err = mergeProjects(g, rel, g.Input(rel, 0)); err != nil {
			return ir.InvalidNode, err
		}
	}
	return rel, nil
}

// mergeProjects fuses outer, a projection whose child is the projection
// inner, into one projection over inner's child. The walk is bottom-up, so
// inner is already fused and the result never has a projection child.
func mergeProjects(g *ir.Graph, outer, inner ir.NodeID) (ir.NodeID, error) {
	repl, err := outputBindings(g, inner)
	if err != nil {
		return ir.InvalidNode, err
	}
	exprs := exprInputs(g, outer)
	fused := make([]ir.NodeID, len(exprs))
	for i, e := range exprs {
		if fused[i], err = substitute(g, e, repl); err != nil {
			return ir.InvalidNode, err
		}
	}
	return g.Project(g.Input(inner, 0), g.ProjectOf(outer).Names, fused)
}

// outputBindings maps each column reference against proj to the expression
// defining that output.
func outputBindings(g *ir.Graph, proj ir.NodeID) (map[ir.NodeID]ir.NodeID, error) {
	exprs := exprInputs(g, proj)
	repl := make(map[ir.NodeID]ir.NodeID, len(exprs))
	for i, e := range exprs {
		ref, err := g.ColumnAt(proj, i)
		if err != nil {
			return nil, err
		}
		repl[ref] = e
	}
	return repl, nil
}
