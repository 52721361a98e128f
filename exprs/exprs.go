// Package exprs provides a fluent construction API over the expression
// graph. A Relation wraps a relational node and a Column wraps a scalar
// expression; both carry the first construction error through the chain so
// a pipeline reads top to bottom without a check after every step:
//
//	t := exprs.NewTable(g, "airlines", schema)
//	q := t.Select("arrdelay", "dest").
//		Filter(t.Col("arrdelay").Gt(30)).
//		Sort(t.Col("arrdelay").Desc()).
//		Limit(10)
//	if err := q.Err(); err != nil {
//		return err
//	}
//
// Once a chain fails, every later call is a no-op and Err returns the
// first failure. Node construction itself is delegated to ir, so two
// chains building the same expression resolve to the same node.
package exprs

import (
	"fmt"

	"github.com/bawdo/goshawk/datatypes"
	"github.com/bawdo/goshawk/ir"
)

// Relation is a fluent handle on a relational node.
type Relation struct {
	g   *ir.Graph
	id  ir.NodeID
	err error
}

// NewTable registers a base table and returns a handle on it.
func NewTable(g *ir.Graph, name string, schema datatypes.Schema) Relation {
	id, err := g.Table(name, schema)
	return Relation{g: g, id: id, err: err}
}

// Wrap adopts an existing relational node, such as one produced by the
// plan parser or a rewrite pass.
func Wrap(g *ir.Graph, id ir.NodeID) Relation {
	r := Relation{g: g, id: id}
	if id < 0 || int(id) >= g.Len() {
		return r.fail(fmt.Errorf("node %d is not in the graph", id))
	}
	if !g.IsRelation(id) {
		return r.fail(fmt.Errorf("node %d is %s, not a relation", id, g.Op(id)))
	}
	return r
}

// Err returns the first error the chain hit, if any.
func (r Relation) Err() error { return r.err }

// Node returns the underlying node, or ir.InvalidNode on a failed chain.
func (r Relation) Node() ir.NodeID {
	if r.err != nil {
		return ir.InvalidNode
	}
	return r.id
}

// Graph returns the graph the relation belongs to.
func (r Relation) Graph() *ir.Graph { return r.g }

// Schema returns the relation's output schema, or an empty schema on a
// failed chain.
func (r Relation) Schema() datatypes.Schema {
	if r.err != nil {
		return datatypes.Schema{}
	}
	return r.g.SchemaOf(r.id)
}

// Dump returns the canonical plan listing rooted at the relation.
func (r Relation) Dump() string {
	if r.err != nil {
		return ""
	}
	return r.g.Dump(r.id)
}

// Col returns a handle on the named column of the relation.
func (r Relation) Col(name string) Column {
	if r.err != nil {
		return Column{g: r.g, id: ir.InvalidNode, err: r.err}
	}
	id, err := r.g.ColumnRef(r.id, name)
	return Column{g: r.g, id: id, err: err}
}

func (r Relation) fail(err error) Relation {
	return Relation{g: r.g, id: ir.InvalidNode, err: err}
}

func (r Relation) derive(id ir.NodeID, err error) Relation {
	if err != nil {
		return r.fail(err)
	}
	return Relation{g: r.g, id: id}
}
