package ir

import (
	"sync"

	"github.com/bawdo/goshawk/datatypes"
)

// Graph is an arena of interned nodes. Nodes are immutable: once a NodeID is
// handed out, the node it names never changes. All methods are safe for
// concurrent use.
type Graph struct {
	mu    sync.RWMutex
	nodes []node
	index map[string]NodeID
}

// NewGraph returns an empty arena.
func NewGraph() *Graph {
	return &Graph{index: make(map[string]NodeID)}
}

// Len returns the number of interned nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// intern adds n to the arena, or returns the id it already has.
func (g *Graph) intern(n node) NodeID {
	key := n.key()
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.index[key]; ok {
		return id
	}
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, n)
	g.index[key] = id
	return id
}

// contains reports whether id names a node in the arena.
func (g *Graph) contains(id NodeID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return id >= 0 && int(id) < len(g.nodes)
}

// checkIDs verifies that every id names a node in the arena.
func (g *Graph) checkIDs(ids ...NodeID) error {
	for _, id := range ids {
		if !g.contains(id) {
			return unresolvedf("node id %d is not in the arena", id)
		}
	}
	return nil
}

func (g *Graph) node(id NodeID) node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Op returns the operator of id.
func (g *Graph) Op(id NodeID) Op { return g.node(id).op }

// Inputs returns the input ids of id. The caller must not mutate the result.
func (g *Graph) Inputs(id NodeID) []NodeID { return g.node(id).inputs }

// Input returns the i'th input of id.
func (g *Graph) Input(id NodeID, i int) NodeID { return g.node(id).inputs[i] }

// NumInputs returns the number of inputs of id.
func (g *Graph) NumInputs(id NodeID) int { return len(g.node(id).inputs) }

// DataTypeOf returns the value type of a scalar node. Relational nodes have
// the zero type.
func (g *Graph) DataTypeOf(id NodeID) datatypes.DataType { return g.node(id).dtype }

// SchemaOf returns the output schema of a relational node. Scalar nodes have
// the empty schema.
func (g *Graph) SchemaOf(id NodeID) datatypes.Schema { return g.node(id).schema }

// IsRelation reports whether id is a relational node.
func (g *Graph) IsRelation(id NodeID) bool { return g.Op(id).IsRelational() }

// Typed parameter accessors. Calling one with a node of a different operator
// panics, like an out-of-range slice index would.

// TableOf returns the parameters of a DatabaseTable node.
func (g *Graph) TableOf(id NodeID) TableParams { return g.node(id).extra.(TableParams) }

// ViewOf returns the parameters of a View node.
func (g *Graph) ViewOf(id NodeID) ViewParams { return g.node(id).extra.(ViewParams) }

// ProjectOf returns the parameters of a Project node.
func (g *Graph) ProjectOf(id NodeID) ProjectParams { return g.node(id).extra.(ProjectParams) }

// SortOf returns the parameters of a Sort node.
func (g *Graph) SortOf(id NodeID) SortParams { return g.node(id).extra.(SortParams) }

// LimitOf returns the parameters of a Limit node.
func (g *Graph) LimitOf(id NodeID) LimitParams { return g.node(id).extra.(LimitParams) }

// AggregateOf returns the parameters of an Aggregate node.
func (g *Graph) AggregateOf(id NodeID) AggregateParams { return g.node(id).extra.(AggregateParams) }

// JoinOf returns the parameters of a Join node.
func (g *Graph) JoinOf(id NodeID) JoinParams { return g.node(id).extra.(JoinParams) }

// SetOperationOf returns the parameters of a SetOperation node.
func (g *Graph) SetOperationOf(id NodeID) SetOperationParams {
	return g.node(id).extra.(SetOperationParams)
}

// UnnestOf returns the parameters of an Unnest node.
func (g *Graph) UnnestOf(id NodeID) UnnestParams { return g.node(id).extra.(UnnestParams) }

// ColumnRefOf returns the parameters of a ColumnRef node.
func (g *Graph) ColumnRefOf(id NodeID) ColumnRefParams { return g.node(id).extra.(ColumnRefParams) }

// FieldOf returns the parameters of a Field node.
func (g *Graph) FieldOf(id NodeID) FieldParams { return g.node(id).extra.(FieldParams) }

// LiteralOf returns the parameters of a Literal node.
func (g *Graph) LiteralOf(id NodeID) LiteralParams { return g.node(id).extra.(LiteralParams) }

// ExistsOf returns the parameters of an Exists node.
func (g *Graph) ExistsOf(id NodeID) ExistsParams { return g.node(id).extra.(ExistsParams) }

// CaseOf returns the parameters of a Case node.
func (g *Graph) CaseOf(id NodeID) CaseParams { return g.node(id).extra.(CaseParams) }

// ExtractOf returns the parameters of an Extract node.
func (g *Graph) ExtractOf(id NodeID) ExtractParams { return g.node(id).extra.(ExtractParams) }

// ReductionOf returns the parameters of a Sum, Mean, or Count node.
func (g *Graph) ReductionOf(id NodeID) ReductionParams {
	if p, ok := g.node(id).extra.(ReductionParams); ok {
		return p
	}
	return ReductionParams{}
}

// WindowOf returns the parameters of a Window node.
func (g *Graph) WindowOf(id NodeID) WindowParams { return g.node(id).extra.(WindowParams) }

// ColumnName returns the output column name a ColumnRef resolves to: the
// field at its ordinal in the referenced relation's schema.
func (g *Graph) ColumnName(id NodeID) string {
	n := g.node(id)
	rel := g.node(n.inputs[0])
	return rel.schema.Field(n.extra.(ColumnRefParams).Index).Name
}

// WalkSubtree calls fn for id and every node reachable from it, parents
// before children. Shared nodes are visited once.
func (g *Graph) WalkSubtree(id NodeID, fn func(NodeID)) {
	seen := make(map[NodeID]bool)
	var walk func(NodeID)
	walk = func(id NodeID) {
		if seen[id] {
			return
		}
		seen[id] = true
		fn(id)
		for _, in := range g.Inputs(id) {
			walk(in)
		}
	}
	walk(id)
}

// Topo returns the nodes reachable from root in dependency order: every
// node's inputs appear before the node itself. The order is deterministic
// for a given graph and root.
func (g *Graph) Topo(root NodeID) []NodeID {
	var order []NodeID
	seen := make(map[NodeID]bool)
	var visit func(NodeID)
	visit = func(id NodeID) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, in := range g.Inputs(id) {
			visit(in)
		}
		order = append(order, id)
	}
	visit(root)
	return order
}
