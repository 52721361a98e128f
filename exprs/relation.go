package exprs

import (
	"fmt"

	"github.com/bawdo/goshawk/ir"
)

// Select projects the relation onto the given columns, replacing its
// schema. Each argument is a column name or a Column; expression columns
// need a name via As.
func (r Relation) Select(cols ...any) Relation {
	if r.err != nil {
		return r
	}
	names := make([]string, 0, len(cols))
	ids := make([]ir.NodeID, 0, len(cols))
	for _, col := range cols {
		switch v := col.(type) {
		case string:
			ref, err := r.g.ColumnRef(r.id, v)
			if err != nil {
				return r.fail(err)
			}
			names = append(names, v)
			ids = append(ids, ref)
		case Column:
			if v.err != nil {
				return r.fail(v.err)
			}
			name, err := v.outputName()
			if err != nil {
				return r.fail(err)
			}
			names = append(names, name)
			ids = append(ids, v.id)
		default:
			return r.fail(fmt.Errorf("select argument must be a column name or Column, got %T", col))
		}
	}
	return r.derive(r.g.Project(r.id, names, ids))
}

// Mutate projects the relation onto all of its existing columns plus the
// given derived ones. A derived column named like an existing column
// replaces it in place.
func (r Relation) Mutate(cols ...Column) Relation {
	if r.err != nil {
		return r
	}
	schema := r.g.SchemaOf(r.id)
	names := make([]string, 0, schema.Len()+len(cols))
	ids := make([]ir.NodeID, 0, schema.Len()+len(cols))
	index := make(map[string]int, schema.Len())
	for _, f := range schema.Fields() {
		ref, err := r.g.ColumnRef(r.id, f.Name)
		if err != nil {
			return r.fail(err)
		}
		index[f.Name] = len(names)
		names = append(names, f.Name)
		ids = append(ids, ref)
	}
	for _, c := range cols {
		if c.err != nil {
			return r.fail(c.err)
		}
		name, err := c.outputName()
		if err != nil {
			return r.fail(err)
		}
		if i, ok := index[name]; ok {
			ids[i] = c.id
			continue
		}
		index[name] = len(names)
		names = append(names, name)
		ids = append(ids, c.id)
	}
	return r.derive(r.g.Project(r.id, names, ids))
}

// Filter keeps the rows satisfying every predicate.
func (r Relation) Filter(predicates ...Column) Relation {
	if r.err != nil {
		return r
	}
	ids, err := columnIDs(predicates)
	if err != nil {
		return r.fail(err)
	}
	return r.derive(r.g.Filter(r.id, ids...))
}

// Sort orders the relation by the given keys. Each key is a column name,
// a Column (ascending), or an Ordering from Asc or Desc.
func (r Relation) Sort(keys ...any) Relation {
	if r.err != nil {
		return r
	}
	ids, specs, err := r.sortKeys(keys)
	if err != nil {
		return r.fail(err)
	}
	return r.derive(r.g.Sort(r.id, ids, specs))
}

func (r Relation) sortKeys(keys []any) ([]ir.NodeID, []ir.SortSpec, error) {
	ids := make([]ir.NodeID, 0, len(keys))
	specs := make([]ir.SortSpec, 0, len(keys))
	for _, key := range keys {
		switch v := key.(type) {
		case string:
			ref, err := r.g.ColumnRef(r.id, v)
			if err != nil {
				return nil, nil, err
			}
			ids = append(ids, ref)
			specs = append(specs, ir.SortSpec{})
		case Column:
			if v.err != nil {
				return nil, nil, v.err
			}
			ids = append(ids, v.id)
			specs = append(specs, ir.SortSpec{})
		case Ordering:
			if v.col.err != nil {
				return nil, nil, v.col.err
			}
			ids = append(ids, v.col.id)
			specs = append(specs, v.spec)
		default:
			return nil, nil, fmt.Errorf("sort key must be a column name, Column, or Ordering, got %T", key)
		}
	}
	return ids, specs, nil
}

// Limit keeps at most count rows, skipping offset rows first when given.
func (r Relation) Limit(count int64, offset ...int64) Relation {
	if r.err != nil {
		return r
	}
	var off int64
	if len(offset) > 0 {
		off = offset[0]
	}
	return r.derive(r.g.Limit(r.id, count, off))
}

// Distinct removes duplicate rows.
func (r Relation) Distinct() Relation {
	if r.err != nil {
		return r
	}
	return r.derive(r.g.Distinct(r.id))
}

// Unnest expands the named array column into one row per element. The
// other columns repeat for every element the array holds.
func (r Relation) Unnest(column string) Relation {
	if r.err != nil {
		return r
	}
	return r.derive(r.g.Unnest(r.id, column))
}

// View gives the relation a second, named identity. Self joins need one
// side wrapped in a view so the two sides stay distinguishable.
func (r Relation) View(name string) Relation {
	if r.err != nil {
		return r
	}
	return r.derive(r.g.View(r.id, name))
}

// Grouped is a relation with pending grouping keys, produced by GroupBy
// and consumed by Aggregate.
type Grouped struct {
	rel   Relation
	names []string
	keys  []ir.NodeID
}

// GroupBy sets the grouping keys for a following Aggregate. Each key is a
// column name or a Column; expression keys need a name via As.
func (r Relation) GroupBy(keys ...any) Grouped {
	gr := Grouped{rel: r}
	if r.err != nil {
		return gr
	}
	for _, key := range keys {
		switch v := key.(type) {
		case string:
			ref, err := r.g.ColumnRef(r.id, v)
			if err != nil {
				gr.rel = r.fail(err)
				return gr
			}
			gr.names = append(gr.names, v)
			gr.keys = append(gr.keys, ref)
		case Column:
			if v.err != nil {
				gr.rel = r.fail(v.err)
				return gr
			}
			name, err := v.outputName()
			if err != nil {
				gr.rel = r.fail(err)
				return gr
			}
			gr.names = append(gr.names, name)
			gr.keys = append(gr.keys, v.id)
		default:
			gr.rel = r.fail(fmt.Errorf("group key must be a column name or Column, got %T", key))
			return gr
		}
	}
	return gr
}

// Aggregate reduces the groups to one row each, carrying the grouping
// keys plus the given aggregate columns.
func (gr Grouped) Aggregate(aggs ...Column) Relation {
	r := gr.rel
	if r.err != nil {
		return r
	}
	names, ids, err := namedColumns(aggs)
	if err != nil {
		return r.fail(err)
	}
	return r.derive(r.g.Aggregate(r.id, gr.names, gr.keys, names, ids))
}

// Aggregate reduces the whole relation to a single row of aggregates.
func (r Relation) Aggregate(aggs ...Column) Relation {
	return Grouped{rel: r}.Aggregate(aggs...)
}

// Count returns the number-of-rows aggregate over the relation, for use
// inside Aggregate.
func (r Relation) Count() Column {
	if r.err != nil {
		return Column{g: r.g, id: ir.InvalidNode, err: r.err}
	}
	id, err := r.g.CountStar(r.id)
	return Column{g: r.g, id: id, err: err}
}

// Exists returns the predicate that is true when the relation has at
// least one row.
func (r Relation) Exists() Column {
	return r.existence(false)
}

// NotExists returns the predicate that is true when the relation is
// empty.
func (r Relation) NotExists() Column {
	return r.existence(true)
}

func (r Relation) existence(negated bool) Column {
	if r.err != nil {
		return Column{g: r.g, id: ir.InvalidNode, err: r.err}
	}
	id, err := r.g.Exists(r.id, negated)
	return Column{g: r.g, id: id, err: err}
}

// Union combines the relation with another, dropping duplicate rows.
func (r Relation) Union(other Relation) Relation { return r.setOp(ir.Union, other) }

// UnionAll combines the relation with another, keeping duplicates.
func (r Relation) UnionAll(other Relation) Relation { return r.setOp(ir.UnionAll, other) }

// Intersect keeps the rows present in both relations.
func (r Relation) Intersect(other Relation) Relation { return r.setOp(ir.Intersect, other) }

// IntersectAll keeps rows present in both relations, with multiplicity.
func (r Relation) IntersectAll(other Relation) Relation { return r.setOp(ir.IntersectAll, other) }

// Except keeps the rows of the relation that are absent from the other.
func (r Relation) Except(other Relation) Relation { return r.setOp(ir.Except, other) }

// ExceptAll keeps rows absent from the other relation, with multiplicity.
func (r Relation) ExceptAll(other Relation) Relation { return r.setOp(ir.ExceptAll, other) }

func (r Relation) setOp(typ ir.SetOpType, other Relation) Relation {
	if r.err != nil {
		return r
	}
	if other.err != nil {
		return r.fail(other.err)
	}
	if other.g != r.g {
		return r.fail(fmt.Errorf("%s arms belong to different graphs", typ))
	}
	return r.derive(r.g.SetOperation(typ, r.id, other.id))
}

// namedColumns resolves output names for a projection or aggregate list.
func namedColumns(cols []Column) ([]string, []ir.NodeID, error) {
	names := make([]string, len(cols))
	ids := make([]ir.NodeID, len(cols))
	for i, c := range cols {
		if c.err != nil {
			return nil, nil, c.err
		}
		name, err := c.outputName()
		if err != nil {
			return nil, nil, err
		}
		names[i] = name
		ids[i] = c.id
	}
	return names, ids, nil
}

func columnIDs(cols []Column) ([]ir.NodeID, error) {
	ids := make([]ir.NodeID, len(cols))
	for i, c := range cols {
		if c.err != nil {
			return nil, c.err
		}
		ids[i] = c.id
	}
	return ids, nil
}
