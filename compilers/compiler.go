package compilers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bawdo/goshawk/datatypes"
	"github.com/bawdo/goshawk/ir"
	"github.com/bawdo/goshawk/rewrite"
)

// Result is one compiled statement. Params is non-nil only in parameterized
// mode; Schema is the resolved output schema of the root relation.
type Result struct {
	SQL    string
	Params []any
	Schema datatypes.Schema
}

// Option configures a single compilation.
type Option func(*config)

type config struct {
	parameterize bool
	pretty       bool
}

// WithParams enables parameterized mode: literal values render as dialect
// placeholders, numbered in statement order, and are returned in
// Result.Params. NULL always renders inline.
func WithParams() Option {
	return func(c *config) { c.parameterize = true }
}

// WithoutParams disables parameterized mode. It is the default; the option
// exists for callers that assemble option slices conditionally.
func WithoutParams() Option {
	return func(c *config) { c.parameterize = false }
}

// WithFormatting renders multi-line SQL with each major clause on its own
// line and leading-comma continuation, for logs and debugging.
func WithFormatting() Option {
	return func(c *config) { c.pretty = true }
}

// Compile lowers the relational plan rooted at root to a SQL statement for
// the dialect. The plan should be normalized first: window frames must be
// resolved and loose column references rebound, or compilation fails. For
// dialects without correlated subqueries the decorrelation pass runs
// automatically; plans it cannot lower report rewrite.ErrCannotDecorrelate.
func Compile(g *ir.Graph, root ir.NodeID, d Dialect, opts ...Option) (Result, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	return compile(g, root, d, cfg)
}

func compile(g *ir.Graph, root ir.NodeID, d Dialect, cfg config) (Result, error) {
	if !g.IsRelation(root) {
		return Result{}, fmt.Errorf("%w: can only compile a relation, got %s", datatypes.ErrTypeMismatch, g.Op(root))
	}
	if !d.SupportsCorrelatedSubqueries {
		lowered, err := rewrite.Decorrelate().Apply(g, root)
		if err != nil {
			return Result{}, fmt.Errorf("compiling for %s: %w", d.Name, err)
		}
		root = lowered
	}
	c := &compiler{g: g, d: d, cfg: cfg}
	frag, err := c.rel(root)
	if err != nil {
		return Result{}, err
	}
	sql, params := c.finalize(c.statement(frag))
	return Result{SQL: sql, Params: params, Schema: g.SchemaOf(root)}, nil
}

type compiler struct {
	g   *ir.Graph
	d   Dialect
	cfg config

	// params collects values in render order; finalize renumbers them into
	// statement order. outer holds the bindings of enclosing statements
	// while a subquery compiles.
	params []any
	outer  []frame
	aliasN int
}

// binding resolves the column ordinals of one relational node to SQL. A
// FROM item yields qualified references, a merged projection its bare
// output aliases, an aggregate the full grouped expressions (usable in
// HAVING, where aliases are not), and a join splits ordinals across its
// sides.
type binding interface {
	// resolve returns the SQL for column i and the source column name, or
	// "" when the SQL is not a plain column reference.
	resolve(i int, quote func(string) string) (sql, name string)
}

type itemBinding struct {
	qual  string
	names []string
}

func (b itemBinding) resolve(i int, quote func(string) string) (string, string) {
	name := b.names[i]
	if b.qual == "" {
		return quote(name), name
	}
	return quote(b.qual) + "." + quote(name), name
}

type exprBinding struct {
	exprs []string
}

func (b exprBinding) resolve(i int, _ func(string) string) (string, string) {
	return b.exprs[i], ""
}

type joinBinding struct {
	left  binding
	right binding
	split int
}

func (b joinBinding) resolve(i int, quote func(string) string) (string, string) {
	if i < b.split {
		return b.left.resolve(i, quote)
	}
	return b.right.resolve(i-b.split, quote)
}

type frame map[ir.NodeID]binding

// fragment is the partially assembled statement for one relational node.
// Either compound holds a finished set-operation chain, or the SELECT
// clause slots fill up as operators merge in. binds maps the relations
// visible at this statement level to their bindings; quals tracks the FROM
// aliases in use so a join cannot introduce a duplicate.
type fragment struct {
	compound    string
	from        string
	joins       []string
	wheres      []string
	groups      []string
	havings     []string
	projections []string
	distinct    bool
	orders      []string
	limit       string
	offset      string

	binds frame
	quals map[string]bool
}

func itemFragment(id ir.NodeID, from, qual string, names []string) *fragment {
	return &fragment{
		from:  from,
		binds: frame{id: itemBinding{qual: qual, names: names}},
		quals: map[string]bool{qual: true},
	}
}

// Clause-slot tests. An operator merges into its child's statement only
// when the clause it fills is free and every clause that evaluates before
// it is untouched; otherwise the child is wrapped as a derived table first.

func canFilter(f *fragment) bool {
	return f.compound == "" && len(f.groups) == 0 && len(f.projections) == 0 &&
		!f.distinct && len(f.orders) == 0 && f.limit == "" && f.offset == ""
}

func canHaving(f *fragment) bool {
	return f.compound == "" && len(f.groups) > 0 && !f.distinct &&
		len(f.orders) == 0 && f.limit == "" && f.offset == ""
}

func canAggregate(f *fragment) bool {
	return f.compound == "" && len(f.projections) == 0 && !f.distinct &&
		len(f.orders) == 0 && f.limit == "" && f.offset == ""
}

// canProject allows replacing the projections of a grouped statement: the
// aggregate binding resolves column references to the underlying grouped
// expressions, so a projection over an aggregate stays in one SELECT.
func canProject(f *fragment) bool {
	return f.compound == "" && !f.distinct &&
		(len(f.projections) == 0 || len(f.groups) > 0)
}

func canSort(f *fragment) bool {
	return len(f.orders) == 0 && f.limit == "" && f.offset == ""
}

func canLimit(f *fragment) bool {
	return f.limit == "" && f.offset == ""
}

func canDistinct(f *fragment) bool {
	return f.compound == "" && !f.distinct && len(f.orders) == 0 &&
		f.limit == "" && f.offset == ""
}

func canJoinArm(f *fragment) bool {
	return canFilter(f) && len(f.wheres) == 0 && len(f.havings) == 0
}

func isItem(f *fragment) bool {
	return canJoinArm(f) && len(f.joins) == 0
}

func (c *compiler) alias() string {
	a := fmt.Sprintf("t%d", c.aliasN)
	c.aliasN++
	return a
}

// wrap closes f off as a derived table. The subquery's internals fall out
// of scope; the node re-binds to the new alias.
func (c *compiler) wrap(f *fragment, rel ir.NodeID) *fragment {
	alias := c.alias()
	return itemFragment(rel, "("+c.statement(f)+") AS "+c.d.QuoteIdent(alias), alias, c.g.SchemaOf(rel).Names())
}

// rel compiles one relational node bottom-up into a fragment.
func (c *compiler) rel(id ir.NodeID) (*fragment, error) {
	g := c.g
	switch g.Op(id) {
	case ir.OpDatabaseTable:
		name := g.TableOf(id).Name
		return itemFragment(id, c.d.QuoteIdent(name), name, g.SchemaOf(id).Names()), nil

	case ir.OpView:
		name := g.ViewOf(id).Name
		child := g.Input(id, 0)
		var item string
		if g.Op(child) == ir.OpDatabaseTable {
			item = c.d.QuoteIdent(g.TableOf(child).Name)
		} else {
			f, err := c.rel(child)
			if err != nil {
				return nil, err
			}
			item = "(" + c.statement(f) + ")"
		}
		return itemFragment(id, item+" AS "+c.d.QuoteIdent(name), name, g.SchemaOf(id).Names()), nil

	case ir.OpProject:
		child := g.Input(id, 0)
		f, err := c.rel(child)
		if err != nil {
			return nil, err
		}
		if !canProject(f) {
			f = c.wrap(f, child)
		}
		names := g.ProjectOf(id).Names
		exprs := g.Inputs(id)[1:]
		cols := make([]string, len(exprs))
		for i, e := range exprs {
			s, err := c.expr(e, f.binds)
			if err != nil {
				return nil, err
			}
			cols[i] = c.column(s, e, names[i], f.binds)
		}
		f.projections = cols
		f.binds[id] = itemBinding{names: names}
		return f, nil

	case ir.OpFilter:
		child := g.Input(id, 0)
		f, err := c.rel(child)
		if err != nil {
			return nil, err
		}
		having := g.Op(child) == ir.OpAggregate && canHaving(f)
		if !having && !canFilter(f) {
			f = c.wrap(f, child)
		}
		preds, err := c.predicates(g.Inputs(id)[1:], f.binds)
		if err != nil {
			return nil, err
		}
		if having {
			f.havings = append(f.havings, preds...)
		} else {
			f.wheres = append(f.wheres, preds...)
		}
		f.binds[id] = f.binds[child]
		return f, nil

	case ir.OpSort:
		child := g.Input(id, 0)
		f, err := c.rel(child)
		if err != nil {
			return nil, err
		}
		keys := g.Inputs(id)[1:]
		// A compound or DISTINCT statement can only be ordered by its own
		// output columns; expression keys force a derived table.
		if !canSort(f) || ((f.compound != "" || f.distinct) && !plainRefs(g, keys, child)) {
			f = c.wrap(f, child)
		}
		specs := g.SortOf(id).Specs
		for i, key := range keys {
			s, err := c.sortKey(key, specs[i], f.binds)
			if err != nil {
				return nil, err
			}
			f.orders = append(f.orders, s)
		}
		f.binds[id] = f.binds[child]
		return f, nil

	case ir.OpLimit:
		child := g.Input(id, 0)
		f, err := c.rel(child)
		if err != nil {
			return nil, err
		}
		if !canLimit(f) {
			f = c.wrap(f, child)
		}
		p := g.LimitOf(id)
		f.limit = strconv.FormatInt(p.Count, 10)
		if p.Offset > 0 {
			f.offset = strconv.FormatInt(p.Offset, 10)
		}
		f.binds[id] = f.binds[child]
		return f, nil

	case ir.OpDistinct:
		child := g.Input(id, 0)
		f, err := c.rel(child)
		if err != nil {
			return nil, err
		}
		if !canDistinct(f) {
			f = c.wrap(f, child)
		}
		f.distinct = true
		f.binds[id] = f.binds[child]
		return f, nil

	case ir.OpAggregate:
		return c.aggregate(id)

	case ir.OpJoin:
		return c.join(id)

	case ir.OpSetOperation:
		return c.setOperation(id)

	case ir.OpUnnest:
		return c.unnest(id)

	default:
		panic(fmt.Sprintf("goshawk: %s is not a relational operator", g.Op(id)))
	}
}

// unnest compiles row expansion as a set-returning UNNEST in the select
// list: every child column projects through under its own name, the array
// column as UNNEST of its reference. WHERE evaluates before the expansion,
// so any operator above lands in a derived table via the clause slots.
func (c *compiler) unnest(id ir.NodeID) (*fragment, error) {
	g := c.g
	if !c.d.SupportsUnnest {
		return nil, c.unsupported("UNNEST", id)
	}
	child := g.Input(id, 0)
	f, err := c.rel(child)
	if err != nil {
		return nil, err
	}
	if !canProject(f) {
		f = c.wrap(f, child)
	}
	column := g.UnnestOf(id).Column
	names := g.SchemaOf(child).Names()
	b := f.binds[child]
	cols := make([]string, len(names))
	for i, name := range names {
		s, src := b.resolve(i, c.d.QuoteIdent)
		switch {
		case name == column:
			cols[i] = "UNNEST(" + s + ") AS " + c.d.QuoteIdent(name)
		case src == name:
			cols[i] = s
		default:
			cols[i] = s + " AS " + c.d.QuoteIdent(name)
		}
	}
	f.projections = cols
	f.binds[id] = itemBinding{names: names}
	return f, nil
}

func (c *compiler) aggregate(id ir.NodeID) (*fragment, error) {
	g := c.g
	child := g.Input(id, 0)
	f, err := c.rel(child)
	if err != nil {
		return nil, err
	}
	if !canAggregate(f) {
		f = c.wrap(f, child)
	}
	p := g.AggregateOf(id)
	inputs := g.Inputs(id)[1:]
	groups := inputs[:len(p.GroupNames)]
	aggs := inputs[len(p.GroupNames):]
	outs := make([]string, 0, len(inputs))
	exprs := make([]string, 0, len(inputs))
	for i, grp := range groups {
		s, err := c.expr(grp, f.binds)
		if err != nil {
			return nil, err
		}
		f.groups = append(f.groups, s)
		exprs = append(exprs, c.bindable(s, grp))
		outs = append(outs, c.column(s, grp, p.GroupNames[i], f.binds))
	}
	for i, agg := range aggs {
		s, err := c.expr(agg, f.binds)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, c.bindable(s, agg))
		outs = append(outs, s+" AS "+c.d.QuoteIdent(p.AggNames[i]))
	}
	f.projections = outs
	f.binds[id] = exprBinding{exprs: exprs}
	return f, nil
}

func (c *compiler) join(id ir.NodeID) (*fragment, error) {
	g := c.g
	p := g.JoinOf(id)
	if p.Type == ir.SemiJoin || p.Type == ir.AntiJoin {
		return c.semiAntiJoin(id)
	}
	if p.Type == ir.FullOuterJoin && !c.d.SupportsFullJoin {
		return nil, c.unsupported("FULL OUTER JOIN", id)
	}
	left, right := g.Input(id, 0), g.Input(id, 1)
	lf, err := c.rel(left)
	if err != nil {
		return nil, err
	}
	if !canJoinArm(lf) {
		lf = c.wrap(lf, left)
	}
	rf, err := c.rel(right)
	if err != nil {
		return nil, err
	}
	if !isItem(rf) {
		rf = c.wrap(rf, right)
	}
	// A second unaliased use of the same table would leave the join
	// ambiguous; rewrap it under a fresh alias.
	for q := range rf.quals {
		if lf.quals[q] {
			rf = c.wrap(rf, right)
			break
		}
	}
	for n, b := range rf.binds {
		lf.binds[n] = b
	}
	for q := range rf.quals {
		lf.quals[q] = true
	}
	clause := p.Type.String() + " " + rf.from
	if preds := g.Inputs(id)[2:]; len(preds) > 0 {
		conds, err := c.predicates(preds, lf.binds)
		if err != nil {
			return nil, err
		}
		clause += " ON " + strings.Join(conds, " AND ")
	}
	lf.joins = append(lf.joins, clause)
	lf.binds[id] = joinBinding{
		left:  lf.binds[left],
		right: lf.binds[right],
		split: g.SchemaOf(left).Len(),
	}
	return lf, nil
}

// semiAntiJoin compiles a semi or anti join as an EXISTS filter on the left
// side. Dialects without correlated subqueries instead get the right side
// as a DISTINCT projection of its equality keys, joined INNER (semi) or
// LEFT with an IS NULL filter (anti): the distinct key matches at most one
// row per left row, so the join cannot duplicate, and NULL keys never
// match, preserving EXISTS semantics.
func (c *compiler) semiAntiJoin(id ir.NodeID) (*fragment, error) {
	g := c.g
	p := g.JoinOf(id)
	left := g.Input(id, 0)
	lf, err := c.rel(left)
	if err != nil {
		return nil, err
	}
	if !canFilter(lf) {
		lf = c.wrap(lf, left)
	}
	preds := g.Inputs(id)[2:]
	if c.d.SupportsCorrelatedSubqueries {
		c.outer = append(c.outer, lf.binds)
		sub, err := c.existsBody(g.Input(id, 1), preds)
		c.outer = c.outer[:len(c.outer)-1]
		if err != nil {
			return nil, err
		}
		kw := "EXISTS ("
		if p.Type == ir.AntiJoin {
			kw = "NOT EXISTS ("
		}
		lf.wheres = append(lf.wheres, kw+sub+")")
	} else if err := c.distinctJoin(id, lf); err != nil {
		return nil, err
	}
	lf.binds[id] = lf.binds[left]
	return lf, nil
}

// existsBody compiles sub with extra predicates folded into its WHERE
// clause, for rendering inside EXISTS. The caller pushes the outer scope.
func (c *compiler) existsBody(sub ir.NodeID, preds []ir.NodeID) (string, error) {
	f, err := c.rel(sub)
	if err != nil {
		return "", err
	}
	if len(preds) > 0 {
		if !canFilter(f) {
			f = c.wrap(f, sub)
		}
		rendered, err := c.predicates(preds, f.binds)
		if err != nil {
			return "", err
		}
		f.wheres = append(f.wheres, rendered...)
	}
	return c.statement(f), nil
}

func (c *compiler) distinctJoin(id ir.NodeID, lf *fragment) error {
	g := c.g
	right := g.Input(id, 1)
	lExprs, rExprs, err := c.equalitySides(id)
	if err != nil {
		return err
	}
	rf, err := c.rel(right)
	if err != nil {
		return err
	}
	if !canProject(rf) {
		rf = c.wrap(rf, right)
	}
	keys := make([]string, len(rExprs))
	cols := make([]string, len(rExprs))
	for i, e := range rExprs {
		s, err := c.expr(e, rf.binds)
		if err != nil {
			return err
		}
		keys[i] = fmt.Sprintf("c%d", i)
		cols[i] = s + " AS " + c.d.QuoteIdent(keys[i])
	}
	rf.projections = cols
	rf.distinct = true
	alias := c.alias()
	item := "(" + c.statement(rf) + ") AS " + c.d.QuoteIdent(alias)
	on := make([]string, len(lExprs))
	for i, e := range lExprs {
		s, err := c.expr(e, lf.binds)
		if err != nil {
			return err
		}
		on[i] = s + " = " + c.d.QuoteIdent(alias) + "." + c.d.QuoteIdent(keys[i])
	}
	if g.JoinOf(id).Type == ir.SemiJoin {
		lf.joins = append(lf.joins, "INNER JOIN "+item+" ON "+strings.Join(on, " AND "))
	} else {
		lf.joins = append(lf.joins, "LEFT OUTER JOIN "+item+" ON "+strings.Join(on, " AND "))
		lf.wheres = append(lf.wheres, c.d.QuoteIdent(alias)+"."+c.d.QuoteIdent(keys[0])+" IS NULL")
	}
	lf.quals[alias] = true
	return nil
}

// equalitySides splits semi/anti join conditions into left-side and
// right-side key expressions. Only conjunctions of equalities with one side
// per input can be expressed without correlation.
func (c *compiler) equalitySides(id ir.NodeID) ([]ir.NodeID, []ir.NodeID, error) {
	g := c.g
	leftRels := relationsUnder(g, g.Input(id, 0))
	rightRels := relationsUnder(g, g.Input(id, 1))
	preds := g.Inputs(id)[2:]
	lExprs := make([]ir.NodeID, 0, len(preds))
	rExprs := make([]ir.NodeID, 0, len(preds))
	for _, pred := range preds {
		ok := g.Op(pred) == ir.OpEquals
		var l, r ir.NodeID
		if ok {
			a, b := g.Input(pred, 0), g.Input(pred, 1)
			switch {
			case within(g, a, leftRels) && within(g, b, rightRels):
				l, r = a, b
			case within(g, b, leftRels) && within(g, a, rightRels):
				l, r = b, a
			default:
				ok = false
			}
		}
		if !ok {
			what := fmt.Sprintf("%s with non-equality or same-side conditions", g.JoinOf(id).Type)
			return nil, nil, c.unsupported(what, id)
		}
		lExprs = append(lExprs, l)
		rExprs = append(rExprs, r)
	}
	return lExprs, rExprs, nil
}

func relationsUnder(g *ir.Graph, rel ir.NodeID) map[ir.NodeID]bool {
	set := make(map[ir.NodeID]bool)
	for _, id := range g.Topo(rel) {
		if g.IsRelation(id) {
			set[id] = true
		}
	}
	return set
}

// within reports whether every relation the expression references is in
// rels. Subquery internals are not descended into.
func within(g *ir.Graph, expr ir.NodeID, rels map[ir.NodeID]bool) bool {
	ok := true
	seen := make(map[ir.NodeID]bool)
	var walk func(ir.NodeID)
	walk = func(id ir.NodeID) {
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		for _, in := range g.Inputs(id) {
			if g.IsRelation(in) {
				if !rels[in] {
					ok = false
				}
				continue
			}
			walk(in)
		}
	}
	walk(expr)
	return ok
}

func (c *compiler) setOperation(id ir.NodeID) (*fragment, error) {
	g := c.g
	p := g.SetOperationOf(id)
	if (p.Type == ir.IntersectAll || p.Type == ir.ExceptAll) && !c.d.SupportsSetOpAll {
		return nil, c.unsupported(p.Type.String(), id)
	}
	lf, err := c.rel(g.Input(id, 0))
	if err != nil {
		return nil, err
	}
	rf, err := c.rel(g.Input(id, 1))
	if err != nil {
		return nil, err
	}
	l := c.setOperand(lf, g.Input(id, 0), false)
	r := c.setOperand(rf, g.Input(id, 1), true)
	sep := " "
	if c.cfg.pretty {
		sep = "\n"
	}
	return &fragment{
		compound: l + sep + p.Type.String() + sep + r,
		binds:    frame{id: itemBinding{names: g.SchemaOf(id).Names()}},
		quals:    map[string]bool{},
	}, nil
}

// setOperand renders one arm of a set operation. Dialects that accept
// parenthesized operands get every arm in parentheses, which also keeps
// nested chains left-associative. The rest take the bare statement, with a
// derived-table wrapper where bareness would change meaning: an arm
// carrying its own ordering or limit, or a compound grafted in on the
// right.
func (c *compiler) setOperand(f *fragment, rel ir.NodeID, rightArm bool) string {
	if c.d.ParenthesizedSetOperands {
		if c.cfg.pretty {
			return "(\n" + c.statement(f) + "\n)"
		}
		return "(" + c.statement(f) + ")"
	}
	if len(f.orders) > 0 || f.limit != "" || f.offset != "" || (rightArm && f.compound != "") {
		f = c.wrap(f, rel)
		return "SELECT * FROM " + f.from
	}
	return c.statement(f)
}

func plainRefs(g *ir.Graph, keys []ir.NodeID, rel ir.NodeID) bool {
	for _, key := range keys {
		if g.Op(key) != ir.OpColumnRef || g.Input(key, 0) != rel {
			return false
		}
	}
	return true
}

// bindable parenthesizes an expression before it re-enters rendering
// through a binding, where the surrounding operator is unknown.
func (c *compiler) bindable(sql string, id ir.NodeID) string {
	if needsParens(c.g.Op(id)) {
		return "(" + sql + ")"
	}
	return sql
}

// column renders one select-list item, omitting the alias when the
// expression is a plain reference that already carries the output name.
func (c *compiler) column(sql string, expr ir.NodeID, name string, binds frame) string {
	if c.g.Op(expr) == ir.OpColumnRef {
		if b, ok := binds[c.g.Input(expr, 0)]; ok {
			if _, src := b.resolve(c.g.ColumnRefOf(expr).Index, c.d.QuoteIdent); src == name {
				return sql
			}
		}
	}
	return sql + " AS " + c.d.QuoteIdent(name)
}

// predicates renders a conjunction list; disjunctions are parenthesized so
// joining with AND keeps their grouping.
func (c *compiler) predicates(ids []ir.NodeID, binds frame) ([]string, error) {
	out := make([]string, len(ids))
	for i, id := range ids {
		s, err := c.expr(id, binds)
		if err != nil {
			return nil, err
		}
		if c.g.Op(id) == ir.OpOr {
			s = "(" + s + ")"
		}
		out[i] = s
	}
	return out, nil
}

func (c *compiler) sortKey(key ir.NodeID, spec ir.SortSpec, binds frame) (string, error) {
	s, err := c.expr(key, binds)
	if err != nil {
		return "", err
	}
	if spec.Direction == ir.Desc {
		s += " DESC"
	} else {
		s += " ASC"
	}
	if spec.Nulls != ir.NullsDefault {
		if !c.d.SupportsNullsOrdering {
			return "", c.unsupported("NULLS FIRST/LAST", key)
		}
		if spec.Nulls == ir.NullsFirst {
			s += " NULLS FIRST"
		} else {
			s += " NULLS LAST"
		}
	}
	return s, nil
}

// unsupported reports a capability gap, naming the construct, the operator,
// and the dialect.
func (c *compiler) unsupported(what string, id ir.NodeID) error {
	return fmt.Errorf("%w: %s (node %s, dialect %s)", ErrUnsupportedOperator, what, c.g.Op(id), c.d.Name)
}

var infixSQL = map[ir.Op]string{
	ir.OpAdd:          "+",
	ir.OpSubtract:     "-",
	ir.OpMultiply:     "*",
	ir.OpDivide:       "/",
	ir.OpModulus:      "%",
	ir.OpEquals:       "=",
	ir.OpNotEquals:    "!=",
	ir.OpLess:         "<",
	ir.OpLessEqual:    "<=",
	ir.OpGreater:      ">",
	ir.OpGreaterEqual: ">=",
}

// needsParens reports whether the operator renders as infix or otherwise
// loosely bound SQL that must be parenthesized as an operand.
func needsParens(op ir.Op) bool {
	if op == ir.OpPower {
		// Renders as a function call.
		return false
	}
	if op.IsBinaryArithmetic() || op.IsComparison() {
		return true
	}
	switch op {
	case ir.OpAnd, ir.OpOr, ir.OpNot, ir.OpBetween, ir.OpStringConcat,
		ir.OpIsNull, ir.OpNotNull, ir.OpNegate:
		return true
	}
	return false
}

// expr renders a scalar node against the bindings of the statement under
// assembly. Dialect overrides are consulted before the generic forms.
func (c *compiler) expr(id ir.NodeID, binds frame) (string, error) {
	g := c.g
	op := g.Op(id)
	if fn, ok := c.d.Overrides[op]; ok {
		args, err := c.scalarArgs(id, binds)
		if err != nil {
			return "", err
		}
		return fn(g, id, args)
	}
	in := g.Inputs(id)
	switch op {
	case ir.OpLiteral:
		return c.literal(id)

	case ir.OpColumnRef:
		return c.columnRef(id, binds)

	case ir.OpCast:
		inner, err := c.expr(in[0], binds)
		if err != nil {
			return "", err
		}
		name, err := c.d.TypeName(g.DataTypeOf(id))
		if err != nil {
			return "", fmt.Errorf("%s: %w", c.d.Name, err)
		}
		validateSQLTypeName(name)
		return "CAST(" + inner + " AS " + name + ")", nil

	case ir.OpField:
		inner, err := c.expr(in[0], binds)
		if err != nil {
			return "", err
		}
		// Composite access always parenthesizes its operand: a bare
		// t.geo.lat would parse as schema.table.column.
		return "(" + inner + ")." + c.d.QuoteIdent(g.FieldOf(id).Name), nil

	case ir.OpIndex:
		arr, err := c.operand(in[0], binds)
		if err != nil {
			return "", err
		}
		idx, err := c.expr(in[1], binds)
		if err != nil {
			return "", err
		}
		// SQL arrays index from one; the operator counts from zero.
		return arr + "[" + idx + " + 1]", nil

	case ir.OpAdd, ir.OpSubtract, ir.OpMultiply, ir.OpDivide, ir.OpModulus,
		ir.OpEquals, ir.OpNotEquals, ir.OpLess, ir.OpLessEqual,
		ir.OpGreater, ir.OpGreaterEqual:
		return c.infix(id, binds)

	case ir.OpPower:
		return c.call(c.d.funcName(op), in, binds)

	case ir.OpNegate:
		s, err := c.operand(in[0], binds)
		if err != nil {
			return "", err
		}
		return "-" + s, nil

	case ir.OpAbs, ir.OpCeil, ir.OpFloor, ir.OpRound, ir.OpSqrt, ir.OpExp,
		ir.OpLn, ir.OpLower, ir.OpUpper, ir.OpLength, ir.OpTrim,
		ir.OpSubstring, ir.OpCoalesce, ir.OpNullIf, ir.OpGreatest,
		ir.OpLeast:
		return c.call(c.d.funcName(op), in, binds)

	case ir.OpBetween:
		v, err := c.operand(in[0], binds)
		if err != nil {
			return "", err
		}
		lo, err := c.operand(in[1], binds)
		if err != nil {
			return "", err
		}
		hi, err := c.operand(in[2], binds)
		if err != nil {
			return "", err
		}
		return v + " BETWEEN " + lo + " AND " + hi, nil

	case ir.OpAnd, ir.OpOr:
		left, err := c.expr(in[0], binds)
		if err != nil {
			return "", err
		}
		right, err := c.expr(in[1], binds)
		if err != nil {
			return "", err
		}
		if op == ir.OpAnd {
			if g.Op(in[0]) == ir.OpOr {
				left = "(" + left + ")"
			}
			if g.Op(in[1]) == ir.OpOr {
				right = "(" + right + ")"
			}
			return left + " AND " + right, nil
		}
		return left + " OR " + right, nil

	case ir.OpNot:
		s, err := c.expr(in[0], binds)
		if err != nil {
			return "", err
		}
		return "NOT (" + s + ")", nil

	case ir.OpIsNull:
		s, err := c.operand(in[0], binds)
		if err != nil {
			return "", err
		}
		return s + " IS NULL", nil

	case ir.OpNotNull:
		s, err := c.operand(in[0], binds)
		if err != nil {
			return "", err
		}
		return s + " IS NOT NULL", nil

	case ir.OpInValues:
		v, err := c.operand(in[0], binds)
		if err != nil {
			return "", err
		}
		items := make([]string, len(in)-1)
		for i, e := range in[1:] {
			s, err := c.expr(e, binds)
			if err != nil {
				return "", err
			}
			items[i] = s
		}
		return v + " IN (" + strings.Join(items, ", ") + ")", nil

	case ir.OpExists:
		c.outer = append(c.outer, binds)
		sub, err := c.existsBody(in[0], nil)
		c.outer = c.outer[:len(c.outer)-1]
		if err != nil {
			return "", err
		}
		if g.ExistsOf(id).Negated {
			return "NOT EXISTS (" + sub + ")", nil
		}
		return "EXISTS (" + sub + ")", nil

	case ir.OpCase:
		return c.caseExpr(id, binds)

	case ir.OpStringConcat:
		parts := make([]string, len(in))
		for i, e := range in {
			s, err := c.operand(e, binds)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, " || "), nil

	case ir.OpRegexMatch:
		left, err := c.operand(in[0], binds)
		if err != nil {
			return "", err
		}
		right, err := c.operand(in[1], binds)
		if err != nil {
			return "", err
		}
		return left + " ~ " + right, nil

	case ir.OpExtract:
		s, err := c.expr(in[0], binds)
		if err != nil {
			return "", err
		}
		return "EXTRACT(" + extractSQL[g.ExtractOf(id).Part] + " FROM " + s + ")", nil

	case ir.OpSum, ir.OpMean, ir.OpMin, ir.OpMax, ir.OpCount:
		name := c.d.funcName(op)
		validateSQLFunctionName(name)
		arg, err := c.expr(in[0], binds)
		if err != nil {
			return "", err
		}
		if g.ReductionOf(id).Distinct {
			return name + "(DISTINCT " + arg + ")", nil
		}
		return name + "(" + arg + ")", nil

	case ir.OpCountStar:
		return c.d.funcName(ir.OpCount) + "(*)", nil

	case ir.OpWindow:
		return c.window(id, binds)

	case ir.OpRowNumber, ir.OpRank, ir.OpDenseRank, ir.OpPercentRank,
		ir.OpCumeDist:
		return c.d.funcName(op) + "()", nil

	case ir.OpNtile, ir.OpLag, ir.OpLead, ir.OpFirstValue, ir.OpLastValue:
		return c.call(c.d.funcName(op), in, binds)

	default:
		panic(fmt.Sprintf("goshawk: no SQL form for operator %s", op))
	}
}

func (c *compiler) infix(id ir.NodeID, binds frame) (string, error) {
	g := c.g
	left, err := c.operand(g.Input(id, 0), binds)
	if err != nil {
		return "", err
	}
	right, err := c.operand(g.Input(id, 1), binds)
	if err != nil {
		return "", err
	}
	op := g.Op(id)
	if op == ir.OpDivide && g.DataTypeOf(g.Input(id, 0)).IsInteger() &&
		g.DataTypeOf(g.Input(id, 1)).IsInteger() {
		// Division is exact in the type system; SQL integer division
		// truncates, so one operand is widened.
		name, err := c.d.TypeName(datatypes.Float64)
		if err != nil {
			return "", fmt.Errorf("%s: %w", c.d.Name, err)
		}
		left = "CAST(" + left + " AS " + name + ")"
	}
	return left + " " + infixSQL[op] + " " + right, nil
}

// operand renders a child expression, parenthesized when nesting could
// change how the surrounding operator parses.
func (c *compiler) operand(id ir.NodeID, binds frame) (string, error) {
	s, err := c.expr(id, binds)
	if err != nil {
		return "", err
	}
	if needsParens(c.g.Op(id)) {
		return "(" + s + ")", nil
	}
	return s, nil
}

func (c *compiler) call(name string, args []ir.NodeID, binds frame) (string, error) {
	validateSQLFunctionName(name)
	parts := make([]string, len(args))
	for i, a := range args {
		s, err := c.expr(a, binds)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return name + "(" + strings.Join(parts, ", ") + ")", nil
}

func (c *compiler) caseExpr(id ir.NodeID, binds frame) (string, error) {
	g := c.g
	in := g.Inputs(id)
	pairs := in
	var sb strings.Builder
	sb.WriteString("CASE")
	hasElse := g.CaseOf(id).HasElse
	if hasElse {
		pairs = in[:len(in)-1]
	}
	for i := 0; i < len(pairs); i += 2 {
		w, err := c.expr(pairs[i], binds)
		if err != nil {
			return "", err
		}
		t, err := c.expr(pairs[i+1], binds)
		if err != nil {
			return "", err
		}
		sb.WriteString(" WHEN ")
		sb.WriteString(w)
		sb.WriteString(" THEN ")
		sb.WriteString(t)
	}
	if hasElse {
		e, err := c.expr(in[len(in)-1], binds)
		if err != nil {
			return "", err
		}
		sb.WriteString(" ELSE ")
		sb.WriteString(e)
	}
	sb.WriteString(" END")
	return sb.String(), nil
}

func (c *compiler) window(id ir.NodeID, binds frame) (string, error) {
	g := c.g
	p := g.WindowOf(id)
	if p.Frame == nil {
		return "", fmt.Errorf("window frame unresolved; normalize the plan before compiling")
	}
	fn := g.Input(id, 0)
	if g.Op(fn).IsReduction() && g.ReductionOf(fn).Distinct {
		return "", c.unsupported("DISTINCT inside a window", id)
	}
	fnSQL, err := c.expr(fn, binds)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(fnSQL)
	sb.WriteString(" OVER (")
	needSpace := false
	if p.PartitionCount > 0 {
		sb.WriteString("PARTITION BY ")
		for i, part := range g.WindowPartition(id) {
			if i > 0 {
				sb.WriteString(", ")
			}
			s, err := c.expr(part, binds)
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
		}
		needSpace = true
	}
	if p.OrderCount > 0 {
		if needSpace {
			sb.WriteString(" ")
		}
		sb.WriteString("ORDER BY ")
		for i, key := range g.WindowOrder(id) {
			if i > 0 {
				sb.WriteString(", ")
			}
			s, err := c.sortKey(key, p.Specs[i], binds)
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
		}
		needSpace = true
	}
	// Window-only functions never take a frame clause; several engines
	// reject one. Reductions emit theirs whenever it differs from what the
	// engine would do with no clause at all.
	if g.Op(fn).IsReduction() && !isDefaultFrame(*p.Frame, p.OrderCount > 0) {
		if needSpace {
			sb.WriteString(" ")
		}
		sb.WriteString(p.Frame.String())
	}
	sb.WriteString(")")
	return sb.String(), nil
}

// isDefaultFrame reports whether the frame matches the implicit one: range
// from the partition start to the current row's peers when ordered, the
// whole partition otherwise.
func isDefaultFrame(f ir.WindowFrame, ordered bool) bool {
	if ordered {
		return f.Type == ir.FrameRange &&
			f.Start.Type == ir.BoundUnboundedPreceding &&
			f.End.Type == ir.BoundCurrentRow
	}
	return f.Start.Type == ir.BoundUnboundedPreceding &&
		f.End.Type == ir.BoundUnboundedFollowing
}

var extractSQL = map[ir.DatePart]string{
	ir.PartYear:        "YEAR",
	ir.PartQuarter:     "QUARTER",
	ir.PartMonth:       "MONTH",
	ir.PartWeek:        "WEEK",
	ir.PartDay:         "DAY",
	ir.PartDayOfWeek:   "DOW",
	ir.PartDayOfYear:   "DOY",
	ir.PartHour:        "HOUR",
	ir.PartMinute:      "MINUTE",
	ir.PartSecond:      "SECOND",
	ir.PartMillisecond: "MILLISECONDS",
	ir.PartEpoch:       "EPOCH",
}

func (c *compiler) columnRef(id ir.NodeID, binds frame) (string, error) {
	g := c.g
	rel := g.Input(id, 0)
	idx := g.ColumnRefOf(id).Index
	if b, ok := binds[rel]; ok {
		s, _ := b.resolve(idx, c.d.QuoteIdent)
		return s, nil
	}
	for i := len(c.outer) - 1; i >= 0; i-- {
		if b, ok := c.outer[i][rel]; ok {
			if !c.d.SupportsCorrelatedSubqueries {
				return "", c.unsupported("correlated column reference", id)
			}
			s, _ := b.resolve(idx, c.d.QuoteIdent)
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: column %q of %s is not in scope; resolve aliases before compiling",
		ir.ErrUnresolvedReference, g.ColumnName(id), g.Op(rel))
}

// scalarArgs renders the scalar inputs of id for a dialect override;
// relational inputs are skipped.
func (c *compiler) scalarArgs(id ir.NodeID, binds frame) ([]string, error) {
	var args []string
	for _, in := range c.g.Inputs(id) {
		if c.g.IsRelation(in) {
			continue
		}
		s, err := c.operand(in, binds)
		if err != nil {
			return nil, err
		}
		args = append(args, s)
	}
	return args, nil
}

func (c *compiler) literal(id ir.NodeID) (string, error) {
	v := c.g.LiteralOf(id).Value
	if c.cfg.parameterize && v != nil {
		idx := len(c.params)
		c.params = append(c.params, v)
		return "\x00" + strconv.Itoa(idx) + "\x00", nil
	}
	s, err := c.d.Literals.Encode(v, c.g.DataTypeOf(id))
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.d.Name, err)
	}
	return s, nil
}

// finalize rewrites parameter markers into dialect placeholders numbered in
// statement order and reorders the collected values to match. Markers exist
// because clauses render in merge order, not statement order.
func (c *compiler) finalize(sql string) (string, []any) {
	if len(c.params) == 0 {
		return sql, nil
	}
	parts := strings.Split(sql, "\x00")
	ordered := make([]any, 0, len(c.params))
	var sb strings.Builder
	for i, part := range parts {
		if i%2 == 0 {
			sb.WriteString(part)
			continue
		}
		k, _ := strconv.Atoi(part)
		ordered = append(ordered, c.params[k])
		sb.WriteString(c.d.Placeholder(len(ordered)))
	}
	return sb.String(), ordered
}
