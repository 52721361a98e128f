package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Dump renders the subgraph under root in the numbered textual form used for
// diagnostics:
//
//	r0 := DatabaseTable: airlines
//	  arrdelay  int32
//	  dest      string
//
//	r1 := Project[r0]
//	  arrdelay: r0.arrdelay
//	  dest: r0.dest
//
// Every relational node appears exactly once, numbered in dependency order,
// with the root last. Scalar expressions render inline. The output is
// deterministic for a given graph shape and parses back to an equivalent
// graph via parser.ParsePlan.
func (g *Graph) Dump(root NodeID) string {
	d := &dumper{g: g, names: make(map[NodeID]string), memo: make(map[NodeID]string)}
	order := g.Topo(root)

	var rels []NodeID
	for _, id := range order {
		if g.IsRelation(id) {
			d.names[id] = fmt.Sprintf("r%d", len(rels))
			rels = append(rels, id)
		}
	}

	var sb strings.Builder
	for i, id := range rels {
		if i > 0 {
			sb.WriteByte('\n')
		}
		d.writeRelation(&sb, id)
	}
	if !g.IsRelation(root) {
		if len(rels) > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(d.expr(root))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Fingerprint returns a stable hex digest of the subgraph under root. Two
// graphs with the same shape fingerprint identically even when their arenas
// assign different NodeIDs.
func (g *Graph) Fingerprint(root NodeID) string {
	sum := sha256.Sum256([]byte(g.Dump(root)))
	return hex.EncodeToString(sum[:])
}

type dumper struct {
	g     *Graph
	names map[NodeID]string
	memo  map[NodeID]string
}

func (d *dumper) writeRelation(sb *strings.Builder, id NodeID) {
	g := d.g
	name := d.names[id]
	switch g.Op(id) {
	case OpDatabaseTable:
		fmt.Fprintf(sb, "%s := DatabaseTable: %s\n", name, dumpName(g.TableOf(id).Name))
		d.writeSchema(sb, id)
	case OpView:
		fmt.Fprintf(sb, "%s := View: %s[%s]\n", name, dumpName(g.ViewOf(id).Name), d.names[g.Input(id, 0)])
	case OpProject:
		fmt.Fprintf(sb, "%s := Project[%s]\n", name, d.names[g.Input(id, 0)])
		p := g.ProjectOf(id)
		for i, out := range p.Names {
			fmt.Fprintf(sb, "  %s: %s\n", dumpName(out), d.expr(g.Input(id, i+1)))
		}
	case OpFilter:
		fmt.Fprintf(sb, "%s := Filter[%s]\n", name, d.names[g.Input(id, 0)])
		for _, in := range g.Inputs(id)[1:] {
			fmt.Fprintf(sb, "  %s\n", d.expr(in))
		}
	case OpSort:
		fmt.Fprintf(sb, "%s := Sort[%s]\n", name, d.names[g.Input(id, 0)])
		specs := g.SortOf(id).Specs
		for i, in := range g.Inputs(id)[1:] {
			fmt.Fprintf(sb, "  %s\n", d.sortKey(in, specs[i]))
		}
	case OpLimit:
		p := g.LimitOf(id)
		fmt.Fprintf(sb, "%s := Limit[%s, n=%d, offset=%d]\n", name, d.names[g.Input(id, 0)], p.Count, p.Offset)
	case OpDistinct:
		fmt.Fprintf(sb, "%s := Distinct[%s]\n", name, d.names[g.Input(id, 0)])
	case OpAggregate:
		fmt.Fprintf(sb, "%s := Aggregate[%s]\n", name, d.names[g.Input(id, 0)])
		p := g.AggregateOf(id)
		inputs := g.Inputs(id)[1:]
		if len(p.GroupNames) > 0 {
			sb.WriteString("  groups:\n")
			for i, out := range p.GroupNames {
				fmt.Fprintf(sb, "    %s: %s\n", dumpName(out), d.expr(inputs[i]))
			}
		}
		if len(p.AggNames) > 0 {
			sb.WriteString("  metrics:\n")
			for i, out := range p.AggNames {
				fmt.Fprintf(sb, "    %s: %s\n", dumpName(out), d.expr(inputs[len(p.GroupNames)+i]))
			}
		}
	case OpJoin:
		fmt.Fprintf(sb, "%s := %s[%s, %s]\n", name, joinDumpName(g.JoinOf(id).Type),
			d.names[g.Input(id, 0)], d.names[g.Input(id, 1)])
		for _, in := range g.Inputs(id)[2:] {
			fmt.Fprintf(sb, "  %s\n", d.expr(in))
		}
	case OpSetOperation:
		fmt.Fprintf(sb, "%s := %s[%s, %s]\n", name, setOpDumpName(g.SetOperationOf(id).Type),
			d.names[g.Input(id, 0)], d.names[g.Input(id, 1)])
	case OpUnnest:
		fmt.Fprintf(sb, "%s := Unnest[%s, column=%s]\n", name, d.names[g.Input(id, 0)],
			dumpName(g.UnnestOf(id).Column))
	default:
		panic(fmt.Sprintf("ir: %s is not a relational operator", g.Op(id)))
	}
}

func (d *dumper) writeSchema(sb *strings.Builder, id NodeID) {
	schema := d.g.SchemaOf(id)
	width := 0
	for _, f := range schema.Fields() {
		if n := len(dumpName(f.Name)); n > width {
			width = n
		}
	}
	for _, f := range schema.Fields() {
		fmt.Fprintf(sb, "  %-*s  %s\n", width, dumpName(f.Name), f.Type)
	}
}

func (d *dumper) sortKey(in NodeID, spec SortSpec) string {
	s := d.expr(in) + " " + spec.Direction.String()
	if spec.Nulls != NullsDefault {
		s += " " + spec.Nulls.String()
	}
	return s
}

// expr renders a scalar node inline. Shared subexpressions are rendered once
// and reused from the memo, so a diamond-shaped scalar DAG costs linear work.
func (d *dumper) expr(id NodeID) string {
	if s, ok := d.memo[id]; ok {
		return s
	}
	s := d.renderExpr(id)
	d.memo[id] = s
	return s
}

func (d *dumper) renderExpr(id NodeID) string {
	g := d.g
	in := g.Inputs(id)
	switch op := g.Op(id); op {
	case OpLiteral:
		return FormatLiteral(g.LiteralOf(id).Value) + "::" + g.DataTypeOf(id).String()
	case OpColumnRef:
		return d.names[in[0]] + "." + dumpName(g.ColumnName(id))
	case OpCast:
		return fmt.Sprintf("cast(%s as %s)", d.expr(in[0]), g.DataTypeOf(id))
	case OpField:
		return fmt.Sprintf("field(%s, %s)", d.expr(in[0]), dumpName(g.FieldOf(id).Name))
	case OpIndex:
		return fmt.Sprintf("element_at(%s, %s)", d.expr(in[0]), d.expr(in[1]))
	case OpAdd, OpSubtract, OpMultiply, OpDivide, OpModulus,
		OpEquals, OpNotEquals, OpLess, OpLessEqual, OpGreater, OpGreaterEqual,
		OpAnd, OpOr:
		return fmt.Sprintf("(%s %s %s)", d.expr(in[0]), infixToken(op), d.expr(in[1]))
	case OpPower:
		return d.call("power", in)
	case OpNegate:
		return "-" + d.expr(in[0])
	case OpAbs, OpCeil, OpFloor, OpRound, OpSqrt, OpExp, OpLn,
		OpLower, OpUpper, OpLength, OpTrim, OpSubstring,
		OpCoalesce, OpNullIf, OpGreatest, OpLeast:
		return d.call(funcDumpNames[op], in)
	case OpStringConcat:
		return d.call("concat", in)
	case OpRegexMatch:
		return d.call("regex_match", in)
	case OpBetween:
		return fmt.Sprintf("(%s between %s and %s)", d.expr(in[0]), d.expr(in[1]), d.expr(in[2]))
	case OpNot:
		return "not " + d.expr(in[0])
	case OpIsNull:
		return fmt.Sprintf("(%s is null)", d.expr(in[0]))
	case OpNotNull:
		return fmt.Sprintf("(%s is not null)", d.expr(in[0]))
	case OpInValues:
		opts := make([]string, len(in)-1)
		for i, o := range in[1:] {
			opts[i] = d.expr(o)
		}
		return fmt.Sprintf("(%s in (%s))", d.expr(in[0]), strings.Join(opts, ", "))
	case OpExists:
		if g.ExistsOf(id).Negated {
			return fmt.Sprintf("not_exists(%s)", d.names[in[0]])
		}
		return fmt.Sprintf("exists(%s)", d.names[in[0]])
	case OpCase:
		var sb strings.Builder
		sb.WriteString("case")
		pairs := in
		if g.CaseOf(id).HasElse {
			pairs = in[:len(in)-1]
		}
		for i := 0; i < len(pairs); i += 2 {
			fmt.Fprintf(&sb, " when %s then %s", d.expr(pairs[i]), d.expr(pairs[i+1]))
		}
		if g.CaseOf(id).HasElse {
			fmt.Fprintf(&sb, " else %s", d.expr(in[len(in)-1]))
		}
		sb.WriteString(" end")
		return sb.String()
	case OpExtract:
		return fmt.Sprintf("extract(%s, %s)", g.ExtractOf(id).Part, d.expr(in[0]))
	case OpSum, OpMean, OpCount:
		if g.ReductionOf(id).Distinct {
			return fmt.Sprintf("%s(distinct %s)", funcDumpNames[op], d.expr(in[0]))
		}
		return d.call(funcDumpNames[op], in)
	case OpMin, OpMax:
		return d.call(funcDumpNames[op], in)
	case OpCountStar:
		return fmt.Sprintf("count_star(%s)", d.names[in[0]])
	case OpRowNumber, OpRank, OpDenseRank, OpPercentRank, OpCumeDist:
		return funcDumpNames[op] + "()"
	case OpNtile, OpLag, OpLead, OpFirstValue, OpLastValue:
		return d.call(funcDumpNames[op], in)
	case OpWindow:
		return d.renderWindow(id)
	default:
		panic(fmt.Sprintf("ir: no dump form for operator %s", op))
	}
}

func (d *dumper) renderWindow(id NodeID) string {
	g := d.g
	p := g.WindowOf(id)
	var sb strings.Builder
	sb.WriteString("window(")
	sb.WriteString(d.expr(g.Input(id, 0)))
	if p.PartitionCount > 0 {
		sb.WriteString(", partition_by=[")
		for i, in := range g.WindowPartition(id) {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.expr(in))
		}
		sb.WriteByte(']')
	}
	if p.OrderCount > 0 {
		sb.WriteString(", order_by=[")
		for i, in := range g.WindowOrder(id) {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.sortKey(in, p.Specs[i]))
		}
		sb.WriteByte(']')
	}
	if p.Frame != nil {
		sb.WriteString(", frame=")
		sb.WriteString(p.Frame.dumpString())
	}
	sb.WriteByte(')')
	return sb.String()
}

func (d *dumper) call(fn string, args []NodeID) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = d.expr(a)
	}
	return fn + "(" + strings.Join(parts, ", ") + ")"
}

func infixToken(op Op) string {
	switch op {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpModulus:
		return "%"
	case OpEquals:
		return "="
	case OpNotEquals:
		return "!="
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	}
	panic(fmt.Sprintf("ir: %s is not an infix operator", op))
}

var funcDumpNames = map[Op]string{
	OpAbs:         "abs",
	OpCeil:        "ceil",
	OpFloor:       "floor",
	OpRound:       "round",
	OpSqrt:        "sqrt",
	OpExp:         "exp",
	OpLn:          "ln",
	OpLower:       "lower",
	OpUpper:       "upper",
	OpLength:      "length",
	OpTrim:        "trim",
	OpSubstring:   "substring",
	OpCoalesce:    "coalesce",
	OpNullIf:      "nullif",
	OpGreatest:    "greatest",
	OpLeast:       "least",
	OpSum:         "sum",
	OpMean:        "mean",
	OpMin:         "min",
	OpMax:         "max",
	OpCount:       "count",
	OpRowNumber:   "row_number",
	OpRank:        "rank",
	OpDenseRank:   "dense_rank",
	OpPercentRank: "percent_rank",
	OpCumeDist:    "cume_dist",
	OpNtile:       "ntile",
	OpLag:         "lag",
	OpLead:        "lead",
	OpFirstValue:  "first_value",
	OpLastValue:   "last_value",
}

func joinDumpName(t JoinType) string {
	switch t {
	case InnerJoin:
		return "InnerJoin"
	case LeftOuterJoin:
		return "LeftOuterJoin"
	case RightOuterJoin:
		return "RightOuterJoin"
	case FullOuterJoin:
		return "FullOuterJoin"
	case CrossJoin:
		return "CrossJoin"
	case SemiJoin:
		return "SemiJoin"
	case AntiJoin:
		return "AntiJoin"
	}
	panic(fmt.Sprintf("ir: unknown join type %d", t))
}

func setOpDumpName(t SetOpType) string {
	switch t {
	case Union:
		return "Union"
	case UnionAll:
		return "UnionAll"
	case Intersect:
		return "Intersect"
	case IntersectAll:
		return "IntersectAll"
	case Except:
		return "Except"
	case ExceptAll:
		return "ExceptAll"
	}
	panic(fmt.Sprintf("ir: unknown set operation type %d", t))
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dumpName renders an identifier, quoting it only when it would not lex as a
// bare name.
func dumpName(name string) string {
	if identPattern.MatchString(name) {
		return name
	}
	return strconv.Quote(name)
}
