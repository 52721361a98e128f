// Package rewrite normalizes expression graphs before compilation.
//
// A Pass is a pure plan-to-plan transformation. It reads the plan rooted at
// a node, interns any replacement nodes into the same arena, and returns the
// new root. Existing nodes are never mutated, so ids held by the caller stay
// valid and shared subplans keep their identity across passes.
//
// Normalize applies the standard pipeline in a fixed order:
//
//  1. projection fusion: chains of projections collapse into one
//  2. window normalization: default frames are filled in and filter
//     predicates that use window results move to a post-window stage
//  3. alias resolution: column references against an enclosing base table
//     are bound to the operator input they flow through
//  4. column pruning: projection outputs nothing upstream uses are dropped
//
// Every pass is idempotent and no pass reintroduces a pattern an earlier
// one removed, so normalizing an already normalized plan returns a plan
// with the same fingerprint.
//
// # Custom pipelines
//
//	root, err := rewrite.FuseProjections().Apply(g, root)
//
// runs a single pass in isolation. Decorrelate is not part of the standard
// pipeline; compilers request it for dialects that cannot execute
// correlated subqueries.
package rewrite

import (
	"errors"
	"fmt"

	"github.com/bawdo/goshawk/ir"
)

// ErrInternal marks a failure while reassembling a structure a pass built
// itself. A plan that constructed successfully stays well typed under every
// pass, so this reports a defect in the pass, not in the plan.
var ErrInternal = errors.New("internal rewrite defect")

// internal tags err as a pass defect. Passes that report plan problems,
// alias resolution and decorrelation, return their own error types instead.
func internal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInternal, err)
}

// Pass is a normalization step over a plan. Apply returns the root of the
// transformed plan, which is the given root whenever the pass finds nothing
// to do.
type Pass interface {
	Name() string
	Apply(g *ir.Graph, root ir.NodeID) (ir.NodeID, error)
}

// Passes returns the standard pipeline in application order.
func Passes() []Pass {
	return []Pass{
		FuseProjections(),
		NormalizeWindows(),
		ResolveAliases(),
		PruneColumns(),
	}
}

// Normalize runs the standard pipeline over the plan rooted at root and
// returns the new root.
func Normalize(g *ir.Graph, root ir.NodeID) (ir.NodeID, error) {
	var err error
	for _, p := range Passes() {
		root, err = p.Apply(g, root)
		if err != nil {
			return ir.InvalidNode, err
		}
	}
	return root, nil
}

// rewriteFn transforms a single node after its inputs have been replaced.
// old is the node's id in the incoming plan; rebuilt is its id after input
// substitution, which equals old when no input changed.
type rewriteFn func(old, rebuilt ir.NodeID) (ir.NodeID, error)

// rewriteBottomUp rebuilds every node reachable from root in dependency
// order, replacing inputs by their rewritten versions and then applying fn.
// It is the skeleton every pass hangs off: fn sees each node exactly once,
// with all of its inputs already in final form.
func rewriteBottomUp(g *ir.Graph, root ir.NodeID, fn rewriteFn) (ir.NodeID, error) {
	memo := make(map[ir.NodeID]ir.NodeID)
	for _, id := range g.Topo(root) {
		next, err := rebuildMapped(g, id, memo)
		if err != nil {
			return ir.InvalidNode, err
		}
		if fn != nil {
			next, err = fn(id, next)
			if err != nil {
				return ir.InvalidNode, err
			}
		}
		memo[id] = next
	}
	return memo[root], nil
}

// rebuildMapped reinterns id with every input replaced per memo. Inputs
// absent from memo are kept as they are.
func rebuildMapped(g *ir.Graph, id ir.NodeID, memo map[ir.NodeID]ir.NodeID) (ir.NodeID, error) {
	inputs := g.Inputs(id)
	mapped := make([]ir.NodeID, len(inputs))
	changed := false
	for i, in := range inputs {
		m, ok := memo[in]
		if !ok {
			m = in
		}
		mapped[i] = m
		changed = changed || m != in
	}
	if !changed {
		return id, nil
	}
	return g.Rebuild(id, mapped)
}

// substitute rewrites the scalar expression expr, replacing every node that
// appears as a key of repl with its value and rebuilding the consumers
// above each replacement. The walk stops at relational nodes, so relations
// referenced by the expression (including subqueries under an EXISTS) pass
// through untouched unless repl names them directly.
func substitute(g *ir.Graph, expr ir.NodeID, repl map[ir.NodeID]ir.NodeID) (ir.NodeID, error) {
	memo := make(map[ir.NodeID]ir.NodeID)
	var walk func(id ir.NodeID) (ir.NodeID, error)
	walk = func(id ir.NodeID) (ir.NodeID, error) {
		if out, ok := repl[id]; ok {
			return out, nil
		}
		if out, ok := memo[id]; ok {
			return out, nil
		}
		if g.IsRelation(id) {
			return id, nil
		}
		inputs := g.Inputs(id)
		mapped := make([]ir.NodeID, len(inputs))
		changed := false
		for i, in := range inputs {
			m, err := walk(in)
			if err != nil {
				return ir.InvalidNode, err
			}
			mapped[i] = m
			changed = changed || m != in
		}
		out := id
		if changed {
			var err error
			out, err = g.Rebuild(id, mapped)
			if err != nil {
				return ir.InvalidNode, err
			}
		}
		memo[id] = out
		return out, nil
	}
	return walk(expr)
}

// containsNode reports whether target occurs in the scalar expression expr.
// The search does not descend into relational nodes.
func containsNode(g *ir.Graph, expr, target ir.NodeID) bool {
	found := false
	walkScalar(g, expr, func(id ir.NodeID) {
		if id == target {
			found = true
		}
	})
	return found
}

// walkScalar calls fn for expr and every scalar node under it, in input
// order, visiting shared nodes once. It does not descend into relational
// nodes.
func walkScalar(g *ir.Graph, expr ir.NodeID, fn func(ir.NodeID)) {
	seen := make(map[ir.NodeID]bool)
	var walk func(ir.NodeID)
	walk = func(id ir.NodeID) {
		if seen[id] || g.IsRelation(id) {
			return
		}
		seen[id] = true
		fn(id)
		for _, in := range g.Inputs(id) {
			walk(in)
		}
	}
	walk(expr)
}

// relationInputs returns the relational inputs of a relational node: one
// child for most operators, two for joins and set operations.
func relationInputs(g *ir.Graph, rel ir.NodeID) []ir.NodeID {
	switch g.Op(rel) {
	case ir.OpDatabaseTable:
		return nil
	case ir.OpJoin, ir.OpSetOperation:
		return g.Inputs(rel)[:2]
	default:
		return g.Inputs(rel)[:1]
	}
}

// exprInputs returns the expression inputs of a relational node: the inputs
// that are not relational children.
func exprInputs(g *ir.Graph, rel ir.NodeID) []ir.NodeID {
	return g.Inputs(rel)[len(relationInputs(g, rel)):]
}

// lineage returns the set of relations reachable from rel through
// relational inputs, including rel itself. Relations that appear only
// inside subqueries of scalar expressions are not part of the lineage.
func lineage(g *ir.Graph, rel ir.NodeID, memo map[ir.NodeID]map[ir.NodeID]bool) map[ir.NodeID]bool {
	if got, ok := memo[rel]; ok {
		return got
	}
	set := map[ir.NodeID]bool{rel: true}
	for _, in := range relationInputs(g, rel) {
		for id := range lineage(g, in, memo) {
			set[id] = true
		}
	}
	memo[rel] = set
	return set
}
