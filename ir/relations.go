package ir

import (
	"errors"

	"github.com/bawdo/goshawk/datatypes"
)

// JoinType represents the type of SQL JOIN.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftOuterJoin
	RightOuterJoin
	FullOuterJoin
	CrossJoin
	SemiJoin
	AntiJoin
)

// String returns the display name for this join type.
func (t JoinType) String() string {
	switch t {
	case InnerJoin:
		return "INNER JOIN"
	case LeftOuterJoin:
		return "LEFT OUTER JOIN"
	case RightOuterJoin:
		return "RIGHT OUTER JOIN"
	case FullOuterJoin:
		return "FULL OUTER JOIN"
	case CrossJoin:
		return "CROSS JOIN"
	case SemiJoin:
		return "SEMI JOIN"
	case AntiJoin:
		return "ANTI JOIN"
	default:
		return "JOIN"
	}
}

// SetOpType represents the type of set operation.
type SetOpType int

const (
	Union SetOpType = iota
	UnionAll
	Intersect
	IntersectAll
	Except
	ExceptAll
)

// String returns the SQL keyword for this set operation type.
func (t SetOpType) String() string {
	switch t {
	case Union:
		return "UNION"
	case UnionAll:
		return "UNION ALL"
	case Intersect:
		return "INTERSECT"
	case IntersectAll:
		return "INTERSECT ALL"
	case Except:
		return "EXCEPT"
	case ExceptAll:
		return "EXCEPT ALL"
	default:
		return "UNION"
	}
}

// RightSuffix is appended to right-side join columns whose names collide with
// a left-side column.
const RightSuffix = "_right"

// Table interns a base relation with the given name and schema.
func (g *Graph) Table(name string, schema datatypes.Schema) (NodeID, error) {
	if name == "" {
		return InvalidNode, unresolvedf("table name cannot be empty")
	}
	if schema.Len() == 0 {
		return InvalidNode, unresolvedf("table %q has no columns", name)
	}
	return g.intern(node{
		op:     OpDatabaseTable,
		schema: schema,
		extra:  TableParams{Name: name},
	}), nil
}

// View interns a named reference to child. Views give one relation several
// distinct identities, which is what makes self joins expressible.
func (g *Graph) View(child NodeID, name string) (NodeID, error) {
	if err := g.checkIDs(child); err != nil {
		return InvalidNode, err
	}
	if name == "" {
		return InvalidNode, unresolvedf("view name cannot be empty")
	}
	if !g.IsRelation(child) {
		return InvalidNode, typef("view input must be a relation, got %s", g.Op(child))
	}
	return g.intern(node{
		op:     OpView,
		inputs: []NodeID{child},
		schema: g.SchemaOf(child),
		extra:  ViewParams{Name: name},
	}), nil
}

// Project interns a projection of child onto named expressions. Names and
// expressions are parallel; names must be unique.
func (g *Graph) Project(child NodeID, names []string, exprs []NodeID) (NodeID, error) {
	if err := g.checkIDs(append([]NodeID{child}, exprs...)...); err != nil {
		return InvalidNode, err
	}
	if !g.IsRelation(child) {
		return InvalidNode, typef("projection input must be a relation, got %s", g.Op(child))
	}
	if len(names) != len(exprs) {
		return InvalidNode, typef("projection has %d names for %d expressions", len(names), len(exprs))
	}
	if len(exprs) == 0 {
		return InvalidNode, typef("projection needs at least one column")
	}
	allowed := map[NodeID]bool{child: true}
	fields := make([]datatypes.Field, len(exprs))
	for i, expr := range exprs {
		if g.IsRelation(expr) {
			return InvalidNode, typef("projection column %q is a relation", names[i])
		}
		if err := g.checkScope(expr, allowed); err != nil {
			return InvalidNode, err
		}
		if err := g.checkValueExpr(expr); err != nil {
			return InvalidNode, err
		}
		fields[i] = datatypes.Field{Name: names[i], Type: g.DataTypeOf(expr)}
	}
	schema, err := datatypes.NewSchema(fields...)
	if err != nil {
		if errors.Is(err, datatypes.ErrDuplicateField) {
			return InvalidNode, ambiguousf("%v", err)
		}
		return InvalidNode, err
	}
	return g.intern(node{
		op:     OpProject,
		inputs: append([]NodeID{child}, exprs...),
		schema: schema,
		extra:  ProjectParams{Names: append([]string(nil), names...)},
	}), nil
}

// Filter interns a filter of child by the conjunction of predicates.
func (g *Graph) Filter(child NodeID, predicates ...NodeID) (NodeID, error) {
	if err := g.checkIDs(append([]NodeID{child}, predicates...)...); err != nil {
		return InvalidNode, err
	}
	if !g.IsRelation(child) {
		return InvalidNode, typef("filter input must be a relation, got %s", g.Op(child))
	}
	if len(predicates) == 0 {
		return InvalidNode, typef("filter needs at least one predicate")
	}
	allowed := map[NodeID]bool{child: true}
	for _, pred := range predicates {
		if err := g.checkBooleanExpr(pred, allowed); err != nil {
			return InvalidNode, err
		}
		if err := g.checkValueExpr(pred); err != nil {
			return InvalidNode, err
		}
	}
	return g.intern(node{
		op:     OpFilter,
		inputs: append([]NodeID{child}, predicates...),
		schema: g.SchemaOf(child),
	}), nil
}

// Sort interns an ordering of child by the given key expressions.
func (g *Graph) Sort(child NodeID, keys []NodeID, specs []SortSpec) (NodeID, error) {
	if err := g.checkIDs(append([]NodeID{child}, keys...)...); err != nil {
		return InvalidNode, err
	}
	if !g.IsRelation(child) {
		return InvalidNode, typef("sort input must be a relation, got %s", g.Op(child))
	}
	if len(keys) == 0 {
		return InvalidNode, typef("sort needs at least one key")
	}
	if len(keys) != len(specs) {
		return InvalidNode, typef("sort has %d keys for %d direction specs", len(keys), len(specs))
	}
	allowed := map[NodeID]bool{child: true}
	for _, key := range keys {
		if g.IsRelation(key) {
			return InvalidNode, typef("sort key is a relation")
		}
		if err := g.checkScope(key, allowed); err != nil {
			return InvalidNode, err
		}
		if err := g.checkValueExpr(key); err != nil {
			return InvalidNode, err
		}
	}
	return g.intern(node{
		op:     OpSort,
		inputs: append([]NodeID{child}, keys...),
		schema: g.SchemaOf(child),
		extra:  SortParams{Specs: append([]SortSpec(nil), specs...)},
	}), nil
}

// Limit interns a row limit over child. Offset zero means no offset.
func (g *Graph) Limit(child NodeID, count, offset int64) (NodeID, error) {
	if err := g.checkIDs(child); err != nil {
		return InvalidNode, err
	}
	if !g.IsRelation(child) {
		return InvalidNode, typef("limit input must be a relation, got %s", g.Op(child))
	}
	if count < 0 {
		return InvalidNode, typef("limit count cannot be negative, got %d", count)
	}
	if offset < 0 {
		return InvalidNode, typef("limit offset cannot be negative, got %d", offset)
	}
	return g.intern(node{
		op:     OpLimit,
		inputs: []NodeID{child},
		schema: g.SchemaOf(child),
		extra:  LimitParams{Count: count, Offset: offset},
	}), nil
}

// Distinct interns duplicate elimination over child.
func (g *Graph) Distinct(child NodeID) (NodeID, error) {
	if err := g.checkIDs(child); err != nil {
		return InvalidNode, err
	}
	if !g.IsRelation(child) {
		return InvalidNode, typef("distinct input must be a relation, got %s", g.Op(child))
	}
	return g.intern(node{
		op:     OpDistinct,
		inputs: []NodeID{child},
		schema: g.SchemaOf(child),
	}), nil
}

// Aggregate interns a grouped aggregation of child. Group keys come first in
// the output schema, aggregates second; every aggregate expression must be
// rooted at a reduction.
func (g *Graph) Aggregate(child NodeID, groupNames []string, groups []NodeID, aggNames []string, aggs []NodeID) (NodeID, error) {
	ids := append([]NodeID{child}, groups...)
	ids = append(ids, aggs...)
	if err := g.checkIDs(ids...); err != nil {
		return InvalidNode, err
	}
	if !g.IsRelation(child) {
		return InvalidNode, typef("aggregate input must be a relation, got %s", g.Op(child))
	}
	if len(groupNames) != len(groups) || len(aggNames) != len(aggs) {
		return InvalidNode, typef("aggregate names and expressions are not parallel")
	}
	if len(groups)+len(aggs) == 0 {
		return InvalidNode, typef("aggregate needs at least one group or aggregate column")
	}
	allowed := map[NodeID]bool{child: true}
	fields := make([]datatypes.Field, 0, len(groups)+len(aggs))
	for i, key := range groups {
		if g.IsRelation(key) {
			return InvalidNode, typef("group key %q is a relation", groupNames[i])
		}
		if err := g.checkScope(key, allowed); err != nil {
			return InvalidNode, err
		}
		if containsOp(g, key, func(op Op) bool {
			return op.IsReduction() || op.IsWindowFunc() || op == OpWindow
		}) {
			return InvalidNode, typef("group key %q contains a reduction or window", groupNames[i])
		}
		fields = append(fields, datatypes.Field{Name: groupNames[i], Type: g.DataTypeOf(key)})
	}
	for i, agg := range aggs {
		if !g.Op(agg).IsReduction() {
			return InvalidNode, typef("aggregate %q must be rooted at a reduction, got %s", aggNames[i], g.Op(agg))
		}
		if err := g.checkScope(agg, allowed); err != nil {
			return InvalidNode, err
		}
		for _, arg := range g.Inputs(agg) {
			if !g.IsRelation(arg) && containsOp(g, arg, func(op Op) bool {
				return op.IsReduction() || op.IsWindowFunc() || op == OpWindow
			}) {
				return InvalidNode, typef("aggregate %q nests a reduction or window", aggNames[i])
			}
		}
		fields = append(fields, datatypes.Field{Name: aggNames[i], Type: g.DataTypeOf(agg)})
	}
	schema, err := datatypes.NewSchema(fields...)
	if err != nil {
		if errors.Is(err, datatypes.ErrDuplicateField) {
			return InvalidNode, ambiguousf("%v", err)
		}
		return InvalidNode, err
	}
	inputs := append([]NodeID{child}, groups...)
	inputs = append(inputs, aggs...)
	return g.intern(node{
		op:     OpAggregate,
		inputs: inputs,
		schema: schema,
		extra: AggregateParams{
			GroupNames: append([]string(nil), groupNames...),
			AggNames:   append([]string(nil), aggNames...),
		},
	}), nil
}

// Join interns a join of left and right. Right-side columns whose names
// collide with left-side columns are renamed with RightSuffix in the output
// schema. Joining a relation directly to itself is rejected; wrap one side in
// a View first.
func (g *Graph) Join(joinType JoinType, left, right NodeID, predicates ...NodeID) (NodeID, error) {
	if err := g.checkIDs(append([]NodeID{left, right}, predicates...)...); err != nil {
		return InvalidNode, err
	}
	if !g.IsRelation(left) || !g.IsRelation(right) {
		return InvalidNode, typef("join inputs must be relations")
	}
	if left == right {
		return InvalidNode, ambiguousf("self join of r%d; wrap one side in a view to disambiguate", left)
	}
	if joinType == CrossJoin && len(predicates) > 0 {
		return InvalidNode, typef("cross join cannot have predicates")
	}
	if joinType != CrossJoin && len(predicates) == 0 {
		return InvalidNode, typef("%s needs at least one predicate", joinType)
	}
	allowed := map[NodeID]bool{left: true, right: true}
	for _, pred := range predicates {
		if err := g.checkBooleanExpr(pred, allowed); err != nil {
			return InvalidNode, err
		}
		if err := g.checkValueExpr(pred); err != nil {
			return InvalidNode, err
		}
	}
	schema, err := g.joinSchema(joinType, left, right)
	if err != nil {
		return InvalidNode, err
	}
	return g.intern(node{
		op:     OpJoin,
		inputs: append([]NodeID{left, right}, predicates...),
		schema: schema,
		extra:  JoinParams{Type: joinType},
	}), nil
}

func (g *Graph) joinSchema(joinType JoinType, left, right NodeID) (datatypes.Schema, error) {
	ls, rs := g.SchemaOf(left), g.SchemaOf(right)
	if joinType == SemiJoin || joinType == AntiJoin {
		return ls, nil
	}
	leftNullable := joinType == RightOuterJoin || joinType == FullOuterJoin
	rightNullable := joinType == LeftOuterJoin || joinType == FullOuterJoin
	fields := make([]datatypes.Field, 0, ls.Len()+rs.Len())
	for _, f := range ls.Fields() {
		if leftNullable {
			f.Type = f.Type.AsNullable()
		}
		fields = append(fields, f)
	}
	for _, f := range rs.Fields() {
		name := f.Name
		if ls.Has(name) {
			name += RightSuffix
		}
		if rightNullable {
			f.Type = f.Type.AsNullable()
		}
		fields = append(fields, datatypes.Field{Name: name, Type: f.Type})
	}
	schema, err := datatypes.NewSchema(fields...)
	if err != nil {
		return datatypes.Schema{}, ambiguousf("join output: %v", err)
	}
	return schema, nil
}

// SetOperation interns a set operation over two relations with
// union-compatible schemas. Output column names and order come from the left
// side; column types are promoted pairwise.
func (g *Graph) SetOperation(typ SetOpType, left, right NodeID) (NodeID, error) {
	if err := g.checkIDs(left, right); err != nil {
		return InvalidNode, err
	}
	if !g.IsRelation(left) || !g.IsRelation(right) {
		return InvalidNode, typef("set operation inputs must be relations")
	}
	ls, rs := g.SchemaOf(left), g.SchemaOf(right)
	if ls.Len() != rs.Len() {
		return InvalidNode, typef("%s arms have %d and %d columns", typ, ls.Len(), rs.Len())
	}
	fields := make([]datatypes.Field, ls.Len())
	for i := range fields {
		lf, rf := ls.Field(i), rs.Field(i)
		promoted, err := datatypes.Promote(lf.Type, rf.Type)
		if err != nil {
			return InvalidNode, typef("%s column %q: %v", typ, lf.Name, err)
		}
		fields[i] = datatypes.Field{Name: lf.Name, Type: promoted}
	}
	schema, err := datatypes.NewSchema(fields...)
	if err != nil {
		return InvalidNode, err
	}
	return g.intern(node{
		op:     OpSetOperation,
		inputs: []NodeID{left, right},
		schema: schema,
		extra:  SetOperationParams{Type: typ},
	}), nil
}

// Unnest interns a row expansion of child: each input row repeats once per
// element of the named array column, with that column replaced by the
// element in the output schema. Rows whose array is NULL or empty produce no
// output rows.
func (g *Graph) Unnest(child NodeID, column string) (NodeID, error) {
	if err := g.checkIDs(child); err != nil {
		return InvalidNode, err
	}
	if !g.IsRelation(child) {
		return InvalidNode, typef("unnest input must be a relation, got %s", g.Op(child))
	}
	cs := g.SchemaOf(child)
	i, ok := cs.IndexOf(column)
	if !ok {
		return InvalidNode, unresolvedf("column %q is not in the schema of %s", column, g.relationLabel(child))
	}
	ct := cs.Field(i).Type
	if ct.Kind() != datatypes.KindArray {
		return InvalidNode, typef("cannot unnest column %q of type %s", column, ct)
	}
	fields := make([]datatypes.Field, cs.Len())
	copy(fields, cs.Fields())
	fields[i] = datatypes.Field{Name: column, Type: ct.Elem()}
	schema, err := datatypes.NewSchema(fields...)
	if err != nil {
		return InvalidNode, err
	}
	return g.intern(node{
		op:     OpUnnest,
		inputs: []NodeID{child},
		schema: schema,
		extra:  UnnestParams{Column: column},
	}), nil
}

// checkScope verifies that every relation referenced by expr is either in
// allowed or a base relation. Exists subqueries are self-contained and are
// not descended into.
func (g *Graph) checkScope(expr NodeID, allowed map[NodeID]bool) error {
	seen := make(map[NodeID]bool)
	var walk func(NodeID) error
	walk = func(id NodeID) error {
		if seen[id] {
			return nil
		}
		seen[id] = true
		if g.Op(id) == OpExists {
			return nil
		}
		for _, in := range g.Inputs(id) {
			if g.IsRelation(in) {
				if !allowed[in] && !g.isBase(in) {
					return unresolvedf("expression references relation r%d outside the operator's input", in)
				}
				continue
			}
			if err := walk(in); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(expr)
}

func (g *Graph) isBase(id NodeID) bool {
	op := g.Op(id)
	return op == OpDatabaseTable || op == OpView
}

// checkBooleanExpr verifies that pred is a boolean scalar in scope.
func (g *Graph) checkBooleanExpr(pred NodeID, allowed map[NodeID]bool) error {
	if g.IsRelation(pred) {
		return typef("predicate is a relation")
	}
	if g.DataTypeOf(pred).Kind() != datatypes.KindBoolean {
		return typef("predicate must be boolean, got %s", g.DataTypeOf(pred))
	}
	return g.checkScope(pred, allowed)
}

// checkValueExpr rejects bare reductions and window-only functions outside a
// Window wrapper.
func (g *Graph) checkValueExpr(expr NodeID) error {
	seen := make(map[NodeID]bool)
	var walk func(NodeID) error
	walk = func(id NodeID) error {
		if seen[id] {
			return nil
		}
		seen[id] = true
		op := g.Op(id)
		if op.IsReduction() {
			return typef("%s outside an aggregate or window", op)
		}
		if op.IsWindowFunc() {
			return typef("%s outside a window", op)
		}
		if op == OpExists {
			return nil
		}
		inputs := g.Inputs(id)
		if op == OpWindow {
			// The wrapped function is allowed to be a reduction or a
			// window-only function; its own arguments are not.
			fn := inputs[0]
			for _, arg := range g.Inputs(fn) {
				if !g.IsRelation(arg) {
					if err := walk(arg); err != nil {
						return err
					}
				}
			}
			inputs = inputs[1:]
		}
		for _, in := range inputs {
			if g.IsRelation(in) {
				continue
			}
			if err := walk(in); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(expr)
}

// containsOp reports whether the scalar subtree under id contains an operator
// satisfying pred. Relations and Exists subqueries are not descended into.
func containsOp(g *Graph, id NodeID, pred func(Op) bool) bool {
	found := false
	seen := make(map[NodeID]bool)
	var walk func(NodeID)
	walk = func(id NodeID) {
		if found || seen[id] {
			return
		}
		seen[id] = true
		if pred(g.Op(id)) {
			found = true
			return
		}
		if g.Op(id) == OpExists {
			return
		}
		for _, in := range g.Inputs(id) {
			if !g.IsRelation(in) {
				walk(in)
			}
		}
	}
	walk(id)
	return found
}
