package rewrite

import (
	"fmt"

	"github.com/bawdo/goshawk/ir"
)

type aliasResolution struct{}

// ResolveAliases returns the pass that binds loosely scoped column
// references to the operator input they flow through.
//
// Construction lets an expression reference any base table in scope, which
// is what makes correlated subqueries possible. The compiler, though,
// resolves a reference against the consuming operator's direct inputs and
// the enclosing query scopes, so a reference to a base table several
// operators down must be rewritten against the input carrying the column,
// under whatever name the column surfaces with there. References to a base
// table both join sides contain are ambiguous and rejected; references no
// input accounts for are genuine outer references and stay as they are.
func ResolveAliases() Pass { return aliasResolution{} }

func (aliasResolution) Name() string { return "resolve-aliases" }

func (aliasResolution) Apply(g *ir.Graph, root ir.NodeID) (ir.NodeID, error) {
	lin := make(map[ir.NodeID]map[ir.NodeID]bool)
	return rewriteBottomUp(g, root, func(_, rebuilt ir.NodeID) (ir.NodeID, error) {
		if !g.IsRelation(rebuilt) {
			return rebuilt, nil
		}
		rels := relationInputs(g, rebuilt)
		exprs := exprInputs(g, rebuilt)
		if len(rels) == 0 || len(exprs) == 0 {
			return rebuilt, nil
		}
		repl, err := rebindings(g, rels, exprs, lin)
		if err != nil {
			return ir.InvalidNode, err
		}
		if len(repl) == 0 {
			return rebuilt, nil
		}
		inputs := append([]ir.NodeID(nil), g.Inputs(rebuilt)...)
		for i := len(rels); i < len(inputs); i++ {
			if inputs[i], err = substitute(g, inputs[i], repl); err != nil {
				return ir.InvalidNode, err
			}
		}
		return g.Rebuild(rebuilt, inputs)
	})
}

// rebindings maps every reference in exprs targeting a relation outside
// rels to the reference it must become.
func rebindings(g *ir.Graph, rels, exprs []ir.NodeID, lin map[ir.NodeID]map[ir.NodeID]bool) (map[ir.NodeID]ir.NodeID, error) {
	direct := make(map[ir.NodeID]bool, len(rels))
	for _, r := range rels {
		direct[r] = true
	}
	var repl map[ir.NodeID]ir.NodeID
	var werr error
	for _, e := range exprs {
		walkScalar(g, e, func(id ir.NodeID) {
			if werr != nil || g.Op(id) != ir.OpColumnRef {
				return
			}
			target := g.Input(id, 0)
			if direct[target] {
				return
			}
			var host ir.NodeID
			hosts := 0
			for _, r := range rels {
				if lineage(g, r, lin)[target] {
					host = r
					hosts++
				}
			}
			switch {
			case hosts == 0:
				// outer reference; resolved by the compiler against the
				// enclosing query scopes
			case hosts > 1:
				werr = fmt.Errorf("%w: %s is visible through both join sides; wrap one in a view", ir.ErrAmbiguousAlias, relationName(g, target))
			default:
				name := g.ColumnName(id)
				bound, ok, err := bindThrough(g, host, target, name, lin)
				if err != nil {
					werr = err
					return
				}
				if !ok {
					werr = fmt.Errorf("%w: column %q of %s is not visible here", ir.ErrUnresolvedReference, name, relationName(g, target))
					return
				}
				ref, err := g.ColumnRef(host, bound)
				if err != nil {
					werr = err
					return
				}
				if repl == nil {
					repl = make(map[ir.NodeID]ir.NodeID)
				}
				repl[id] = ref
			}
		})
		if werr != nil {
			return nil, werr
		}
	}
	return repl, nil
}

// bindThrough reports the name under which the target relation's column
// surfaces in host's schema, following the operator chain between them one
// step at a time. ok is false when the column does not survive to host. An
// error means the target sits on both sides of a join below host, so no
// binding would be unambiguous.
func bindThrough(g *ir.Graph, host, target ir.NodeID, name string, lin map[ir.NodeID]map[ir.NodeID]bool) (string, bool, error) {
	if host == target {
		return name, g.SchemaOf(host).Has(name), nil
	}
	switch g.Op(host) {
	case ir.OpFilter, ir.OpSort, ir.OpLimit, ir.OpDistinct, ir.OpView:
		return bindThrough(g, g.Input(host, 0), target, name, lin)
	case ir.OpUnnest:
		// the expanded column holds a different value above the unnest
		if name == g.UnnestOf(host).Column {
			return "", false, nil
		}
		return bindThrough(g, g.Input(host, 0), target, name, lin)
	case ir.OpProject:
		child := g.Input(host, 0)
		inner, ok, err := bindThrough(g, child, target, name, lin)
		if !ok || err != nil {
			return "", false, err
		}
		for i, e := range exprInputs(g, host) {
			if isColumnOf(g, e, child, inner) {
				return g.ProjectOf(host).Names[i], true, nil
			}
		}
		return "", false, nil
	case ir.OpAggregate:
		child := g.Input(host, 0)
		inner, ok, err := bindThrough(g, child, target, name, lin)
		if !ok || err != nil {
			return "", false, err
		}
		p := g.AggregateOf(host)
		for i, e := range g.Inputs(host)[1 : 1+len(p.GroupNames)] {
			if isColumnOf(g, e, child, inner) {
				return p.GroupNames[i], true, nil
			}
		}
		return "", false, nil
	case ir.OpJoin:
		left, right := g.Input(host, 0), g.Input(host, 1)
		inLeft := lineage(g, left, lin)[target]
		inRight := lineage(g, right, lin)[target]
		switch {
		case inLeft && inRight:
			return "", false, fmt.Errorf("%w: %s is on both sides of a join; wrap one side in a view", ir.ErrAmbiguousAlias, relationName(g, target))
		case inLeft:
			// left-side names surface in the join schema verbatim
			return bindThrough(g, left, target, name, lin)
		case inRight:
			jt := g.JoinOf(host).Type
			if jt == ir.SemiJoin || jt == ir.AntiJoin {
				return "", false, nil
			}
			inner, ok, err := bindThrough(g, right, target, name, lin)
			if !ok || err != nil {
				return "", false, err
			}
			j, ok := g.SchemaOf(right).IndexOf(inner)
			if !ok {
				return "", false, nil
			}
			return g.SchemaOf(host).Field(g.SchemaOf(left).Len() + j).Name, true, nil
		default:
			return "", false, nil
		}
	case ir.OpSetOperation:
		left, right := g.Input(host, 0), g.Input(host, 1)
		inLeft := lineage(g, left, lin)[target]
		inRight := lineage(g, right, lin)[target]
		switch {
		case inLeft && inRight:
			return "", false, fmt.Errorf("%w: %s is on both sides of a set operation", ir.ErrAmbiguousAlias, relationName(g, target))
		case inLeft:
			return bindThrough(g, left, target, name, lin)
		case inRight:
			inner, ok, err := bindThrough(g, right, target, name, lin)
			if !ok || err != nil {
				return "", false, err
			}
			j, ok := g.SchemaOf(right).IndexOf(inner)
			if !ok {
				return "", false, nil
			}
			return g.SchemaOf(host).Field(j).Name, true, nil
		default:
			return "", false, nil
		}
	default:
		return "", false, nil
	}
}

// isColumnOf reports whether expr is exactly a reference to the named
// column of rel.
func isColumnOf(g *ir.Graph, expr, rel ir.NodeID, name string) bool {
	return g.Op(expr) == ir.OpColumnRef && g.Input(expr, 0) == rel && g.ColumnName(expr) == name
}

// relationName describes a relation in error messages.
func relationName(g *ir.Graph, id ir.NodeID) string {
	switch g.Op(id) {
	case ir.OpDatabaseTable:
		return "table " + g.TableOf(id).Name
	case ir.OpView:
		return "view " + g.ViewOf(id).Name
	default:
		return g.Op(id).String()
	}
}
