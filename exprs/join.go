package exprs

import (
	"fmt"

	"github.com/bawdo/goshawk/ir"
)

// JoinBuilder is returned by the join methods and requires the condition
// to be supplied via On before the chain continues. CrossJoin completes
// immediately since it carries no condition.
type JoinBuilder struct {
	left  Relation
	right Relation
	typ   ir.JoinType
}

// Join starts an inner join with another relation. Joining a relation
// directly to itself is rejected; derive one side with View first and
// reference the view's columns in the condition.
func (r Relation) Join(other Relation) JoinBuilder {
	return JoinBuilder{left: r, right: other, typ: ir.InnerJoin}
}

// LeftJoin starts a left outer join with another relation.
func (r Relation) LeftJoin(other Relation) JoinBuilder {
	return JoinBuilder{left: r, right: other, typ: ir.LeftOuterJoin}
}

// RightJoin starts a right outer join with another relation.
func (r Relation) RightJoin(other Relation) JoinBuilder {
	return JoinBuilder{left: r, right: other, typ: ir.RightOuterJoin}
}

// FullJoin starts a full outer join with another relation.
func (r Relation) FullJoin(other Relation) JoinBuilder {
	return JoinBuilder{left: r, right: other, typ: ir.FullOuterJoin}
}

// SemiJoin starts a semi join: rows of the relation with at least one
// match in the other. The output schema is the left schema alone.
func (r Relation) SemiJoin(other Relation) JoinBuilder {
	return JoinBuilder{left: r, right: other, typ: ir.SemiJoin}
}

// AntiJoin starts an anti join: rows of the relation with no match in the
// other. The output schema is the left schema alone.
func (r Relation) AntiJoin(other Relation) JoinBuilder {
	return JoinBuilder{left: r, right: other, typ: ir.AntiJoin}
}

// On supplies the join condition and completes the join.
func (j JoinBuilder) On(predicates ...Column) Relation {
	r := j.left
	if r.err != nil {
		return r
	}
	if j.right.err != nil {
		return r.fail(j.right.err)
	}
	if j.right.g != r.g {
		return r.fail(fmt.Errorf("%s sides belong to different graphs", j.typ))
	}
	ids, err := columnIDs(predicates)
	if err != nil {
		return r.fail(err)
	}
	return r.derive(r.g.Join(j.typ, r.id, j.right.id, ids...))
}

// CrossJoin pairs every row of the relation with every row of the other.
// Crossing a relation with itself wraps the right side in a view named
// after it, since the two sides need distinct identities.
func (r Relation) CrossJoin(other Relation) Relation {
	if r.err != nil {
		return r
	}
	if other.err != nil {
		return r.fail(other.err)
	}
	if other.g != r.g {
		return r.fail(fmt.Errorf("%s sides belong to different graphs", ir.CrossJoin))
	}
	if other.id == r.id {
		other = other.View(selfViewName(r.g, r.id))
		if other.err != nil {
			return r.fail(other.err)
		}
	}
	return r.derive(r.g.Join(ir.CrossJoin, r.id, other.id))
}

func selfViewName(g *ir.Graph, id ir.NodeID) string {
	switch g.Op(id) {
	case ir.OpDatabaseTable:
		return g.TableOf(id).Name + ir.RightSuffix
	case ir.OpView:
		return g.ViewOf(id).Name + ir.RightSuffix
	}
	return "right"
}
