package rewrite

import (
	"errors"
	"fmt"

	"github.com/bawdo/goshawk/ir"
)

// ErrCannotDecorrelate is wrapped by errors for EXISTS subqueries whose
// correlated predicates cannot move into a join condition.
var ErrCannotDecorrelate = errors.New("cannot decorrelate subquery")

type decorrelation struct{}

// Decorrelate returns the pass that lowers correlated EXISTS predicates
// into semi joins, and correlated NOT EXISTS predicates into anti joins.
// It is not part of the standard pipeline; compilers apply it for dialects
// that cannot execute a subquery referencing the enclosing query.
//
// A subquery qualifies when its correlated predicates sit in filters along
// the spine of projections, filters, sorts, views, and distincts above its
// source. Those predicates become the join condition; the rest of the
// subquery survives as the join's right side. Correlation anywhere else,
// or below a limit or an aggregation, changes meaning if moved and is
// reported as unsupported.
func Decorrelate() Pass { return decorrelation{} }

func (decorrelation) Name() string { return "decorrelate" }

func (decorrelation) Apply(g *ir.Graph, root ir.NodeID) (ir.NodeID, error) {
	lin := make(map[ir.NodeID]map[ir.NodeID]bool)
	out, err := rewriteBottomUp(g, root, func(_, rebuilt ir.NodeID) (ir.NodeID, error) {
		if g.Op(rebuilt) != ir.OpFilter {
			return rebuilt, nil
		}
		return lowerExistsFilter(g, rebuilt, lin)
	})
	if err != nil {
		return ir.InvalidNode, err
	}
	// bind the references the lowering moved between scopes
	return aliasResolution{}.Apply(g, out)
}

// lowerExistsFilter turns each correlated EXISTS predicate of a filter into
// a semi or anti join under it. The joins keep the child's schema, so the
// remaining predicates only need rebinding, not rewriting.
func lowerExistsFilter(g *ir.Graph, flt ir.NodeID, lin map[ir.NodeID]map[ir.NodeID]bool) (ir.NodeID, error) {
	child := g.Input(flt, 0)
	type lowering struct {
		sub     ir.NodeID
		negated bool
	}
	var lowered []lowering
	var rest []ir.NodeID
	for _, p := range exprInputs(g, flt) {
		if sub, negated, ok := existsTest(g, p); ok && isCorrelated(g, sub, lin) {
			lowered = append(lowered, lowering{sub, negated})
			continue
		}
		rest = append(rest, p)
	}
	if len(lowered) == 0 {
		return flt, nil
	}

	out := child
	for _, l := range lowered {
		newSub, on, err := extractJoinConditions(g, l.sub, lin)
		if err != nil {
			return ir.InvalidNode, err
		}
		// The extracted conditions may reference relations interior to
		// either side; a join condition must resolve against the join's
		// own inputs.
		if on, err = bindJoinConditions(g, out, newSub, on, lin); err != nil {
			return ir.InvalidNode, err
		}
		jt := ir.SemiJoin
		if l.negated {
			jt = ir.AntiJoin
		}
		if out, err = g.Join(jt, out, newSub, on...); err != nil {
			return ir.InvalidNode, err
		}
	}
	if len(rest) == 0 {
		return out, nil
	}
	repl, err := columnMap(g, child, out)
	if err != nil {
		return ir.InvalidNode, err
	}
	rebound := make([]ir.NodeID, len(rest))
	for i, p := range rest {
		if rebound[i], err = substitute(g, p, repl); err != nil {
			return ir.InvalidNode, err
		}
	}
	return g.Filter(out, rebound...)
}

// bindJoinConditions rebinds every reference in on that targets a relation
// inside left or right to the surviving column of that side itself. A
// column the right side no longer surfaces cannot become a join condition.
func bindJoinConditions(g *ir.Graph, left, right ir.NodeID, on []ir.NodeID, lin map[ir.NodeID]map[ir.NodeID]bool) ([]ir.NodeID, error) {
	if len(on) == 0 {
		return on, nil
	}
	repl, err := rebindings(g, []ir.NodeID{left, right}, on, lin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotDecorrelate, err)
	}
	if len(repl) == 0 {
		return on, nil
	}
	bound := make([]ir.NodeID, len(on))
	for i, p := range on {
		if bound[i], err = substitute(g, p, repl); err != nil {
			return nil, err
		}
	}
	return bound, nil
}

// columnMap maps every column reference of from to the same ordinal of to.
// The two relations must share a schema.
func columnMap(g *ir.Graph, from, to ir.NodeID) (map[ir.NodeID]ir.NodeID, error) {
	repl := make(map[ir.NodeID]ir.NodeID, g.SchemaOf(from).Len())
	for i := 0; i < g.SchemaOf(from).Len(); i++ {
		f, err := g.ColumnAt(from, i)
		if err != nil {
			return nil, err
		}
		t, err := g.ColumnAt(to, i)
		if err != nil {
			return nil, err
		}
		repl[f] = t
	}
	return repl, nil
}

// existsTest reports whether pred is an EXISTS test, unwrapping a NOT.
func existsTest(g *ir.Graph, pred ir.NodeID) (sub ir.NodeID, negated bool, ok bool) {
	if g.Op(pred) == ir.OpNot && g.Op(g.Input(pred, 0)) == ir.OpExists {
		negated = true
		pred = g.Input(pred, 0)
	}
	if g.Op(pred) != ir.OpExists {
		return ir.InvalidNode, false, false
	}
	return g.Input(pred, 0), negated != g.ExistsOf(pred).Negated, true
}

// isCorrelated reports whether any expression inside sub references a
// relation outside it.
func isCorrelated(g *ir.Graph, sub ir.NodeID, lin map[ir.NodeID]map[ir.NodeID]bool) bool {
	inside := lineage(g, sub, lin)
	for rel := range inside {
		for _, e := range exprInputs(g, rel) {
			if touchesOutside(g, e, inside) {
				return true
			}
		}
	}
	return false
}

// touchesOutside reports whether expr references a relation not in inside.
func touchesOutside(g *ir.Graph, expr ir.NodeID, inside map[ir.NodeID]bool) bool {
	found := false
	walkScalar(g, expr, func(id ir.NodeID) {
		if g.Op(id) == ir.OpColumnRef && !inside[g.Input(id, 0)] {
			found = true
		}
	})
	return found
}

// extractJoinConditions removes the correlated predicates from the filters
// along sub's spine and returns the uncorrelated remainder of the subquery
// together with the removed predicates, rebound to the rebuilt spine.
func extractJoinConditions(g *ir.Graph, sub ir.NodeID, lin map[ir.NodeID]map[ir.NodeID]bool) (ir.NodeID, []ir.NodeID, error) {
	inside := lineage(g, sub, lin)
	var on []ir.NodeID
	var rebuild func(rel ir.NodeID) (ir.NodeID, error)
	rebuild = func(rel ir.NodeID) (ir.NodeID, error) {
		switch g.Op(rel) {
		case ir.OpFilter:
			var kept []ir.NodeID
			start := len(on)
			for _, p := range exprInputs(g, rel) {
				if touchesOutside(g, p, inside) {
					on = append(on, p)
				} else {
					kept = append(kept, p)
				}
			}
			end := len(on)
			child := g.Input(rel, 0)
			nc, err := rebuild(child)
			if err != nil {
				return ir.InvalidNode, err
			}
			if nc != child && end > start {
				repl, err := columnMap(g, child, nc)
				if err != nil {
					return ir.InvalidNode, err
				}
				for i := start; i < end; i++ {
					if on[i], err = substitute(g, on[i], repl); err != nil {
						return ir.InvalidNode, err
					}
				}
			}
			if len(kept) == 0 {
				return nc, nil
			}
			return replaceChild(g, rel, nc, kept)
		case ir.OpProject, ir.OpSort, ir.OpDistinct, ir.OpView:
			for _, e := range exprInputs(g, rel) {
				if touchesOutside(g, e, inside) {
					return ir.InvalidNode, fmt.Errorf("%w: %s uses an outer column", ErrCannotDecorrelate, g.Op(rel))
				}
			}
			nc, err := rebuild(g.Input(rel, 0))
			if err != nil {
				return ir.InvalidNode, err
			}
			return replaceChild(g, rel, nc, nil)
		default:
			// the spine ends here; any correlation deeper down cannot move
			for deep := range lineage(g, rel, lin) {
				for _, e := range exprInputs(g, deep) {
					if touchesOutside(g, e, inside) {
						return ir.InvalidNode, fmt.Errorf("%w: outer column used below %s", ErrCannotDecorrelate, g.Op(rel))
					}
				}
			}
			return rel, nil
		}
	}
	newSub, err := rebuild(sub)
	if err != nil {
		return ir.InvalidNode, nil, err
	}
	return newSub, on, nil
}

// replaceChild rebuilds a single-input relational operator over a new
// child with the same schema, rebinding its expressions column by column.
// A non-nil exprs overrides the operator's expression inputs.
func replaceChild(g *ir.Graph, rel, nc ir.NodeID, exprs []ir.NodeID) (ir.NodeID, error) {
	oldChild := g.Input(rel, 0)
	if exprs == nil {
		exprs = exprInputs(g, rel)
	}
	repl := map[ir.NodeID]ir.NodeID{}
	if oldChild != nc {
		var err error
		if repl, err = columnMap(g, oldChild, nc); err != nil {
			return ir.InvalidNode, err
		}
	}
	inputs := make([]ir.NodeID, 0, 1+len(exprs))
	inputs = append(inputs, nc)
	for _, e := range exprs {
		ne, err := substitute(g, e, repl)
		if err != nil {
			return ir.InvalidNode, err
		}
		inputs = append(inputs, ne)
	}
	if g.Op(rel) == ir.OpFilter && len(inputs) != g.NumInputs(rel) {
		return g.Filter(nc, inputs[1:]...)
	}
	return g.Rebuild(rel, inputs)
}
