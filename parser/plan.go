package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bawdo/goshawk/datatypes"
	"github.com/bawdo/goshawk/ir"
)

var joinHeads = map[string]ir.JoinType{
	"InnerJoin":      ir.InnerJoin,
	"LeftOuterJoin":  ir.LeftOuterJoin,
	"RightOuterJoin": ir.RightOuterJoin,
	"FullOuterJoin":  ir.FullOuterJoin,
	"CrossJoin":      ir.CrossJoin,
	"SemiJoin":       ir.SemiJoin,
	"AntiJoin":       ir.AntiJoin,
}

var setOpHeads = map[string]ir.SetOpType{
	"Union":        ir.Union,
	"UnionAll":     ir.UnionAll,
	"Intersect":    ir.Intersect,
	"IntersectAll": ir.IntersectAll,
	"Except":       ir.Except,
	"ExceptAll":    ir.ExceptAll,
}

// ParsePlan parses the plan listing produced by ir.Graph.Dump into g and
// returns the root node. Each "name := Operator" block rebuilds one
// relation; the root is the last relation, or a trailing expression line for
// plans whose root is not relational.
func ParsePlan(g *ir.Graph, input string) (ir.NodeID, error) {
	pp := planParser{g: g, scope: NewScope()}
	lines := strings.Split(input, "\n")
	root := ir.InvalidNode
	seen := false
	for i := 0; i < len(lines); {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			i++
			continue
		}
		if strings.HasPrefix(line, " ") {
			return ir.InvalidNode, fmt.Errorf("line %d: unexpected indented line %q", i+1, strings.TrimSpace(line))
		}
		name, head, isRelation := strings.Cut(line, " := ")
		if !isRelation {
			id, err := pp.expr(line)
			if err != nil {
				return ir.InvalidNode, fmt.Errorf("line %d: %w", i+1, err)
			}
			root = id
			seen = true
			i++
			continue
		}
		var body []string
		j := i + 1
		for ; j < len(lines) && strings.HasPrefix(lines[j], " "); j++ {
			body = append(body, lines[j])
		}
		id, err := pp.relation(head, body)
		if err != nil {
			return ir.InvalidNode, fmt.Errorf("line %d: %s: %w", i+1, name, err)
		}
		pp.scope.Bind(name, id)
		root = id
		seen = true
		i = j
	}
	if !seen {
		return ir.InvalidNode, errors.New("empty plan")
	}
	return root, nil
}

type planParser struct {
	g     *ir.Graph
	scope *Scope
}

func (pp *planParser) expr(text string) (ir.NodeID, error) {
	return ParseExpr(pp.g, pp.scope, strings.TrimSpace(text))
}

func (pp *planParser) rel(name string) (ir.NodeID, error) {
	id, ok := pp.scope.Relation(name)
	if !ok {
		return ir.InvalidNode, fmt.Errorf("unknown relation %q", name)
	}
	return id, nil
}

func (pp *planParser) relation(head string, body []string) (ir.NodeID, error) {
	if rest, ok := strings.CutPrefix(head, "DatabaseTable: "); ok {
		return pp.table(rest, body)
	}
	if rest, ok := strings.CutPrefix(head, "View: "); ok {
		return pp.view(rest, body)
	}
	open := strings.IndexByte(head, '[')
	if open < 0 || !strings.HasSuffix(head, "]") {
		return ir.InvalidNode, fmt.Errorf("malformed relation header %q", head)
	}
	op := head[:open]
	args := strings.Split(head[open+1:len(head)-1], ", ")
	if t, ok := joinHeads[op]; ok {
		return pp.join(t, args, body)
	}
	if t, ok := setOpHeads[op]; ok {
		return pp.setOp(t, args, body)
	}
	switch op {
	case "Project":
		return pp.project(args, body)
	case "Filter":
		return pp.filter(args, body)
	case "Sort":
		return pp.sort(args, body)
	case "Limit":
		return pp.limit(args, body)
	case "Distinct":
		return pp.distinct(args, body)
	case "Aggregate":
		return pp.aggregate(args, body)
	case "Unnest":
		return pp.unnest(args, body)
	}
	return ir.InvalidNode, fmt.Errorf("unknown relation operator %q", op)
}

func (pp *planParser) table(rest string, body []string) (ir.NodeID, error) {
	name, err := unquoteName(rest)
	if err != nil {
		return ir.InvalidNode, err
	}
	fields := make([]datatypes.Field, 0, len(body))
	for _, line := range body {
		colName, typeText, err := nameAndRest(strings.TrimLeft(line, " "), " ")
		if err != nil {
			return ir.InvalidNode, err
		}
		dt, err := datatypes.Parse(strings.TrimSpace(typeText))
		if err != nil {
			return ir.InvalidNode, fmt.Errorf("column %s: %w", colName, err)
		}
		fields = append(fields, datatypes.Field{Name: colName, Type: dt})
	}
	schema, err := datatypes.NewSchema(fields...)
	if err != nil {
		return ir.InvalidNode, err
	}
	return pp.g.Table(name, schema)
}

func (pp *planParser) view(rest string, body []string) (ir.NodeID, error) {
	if len(body) != 0 {
		return ir.InvalidNode, errors.New("View takes no detail lines")
	}
	var name, ref string
	if strings.HasPrefix(rest, `"`) {
		prefix, err := strconv.QuotedPrefix(rest)
		if err != nil {
			return ir.InvalidNode, fmt.Errorf("malformed view name %q", rest)
		}
		name, _ = strconv.Unquote(prefix)
		ref = rest[len(prefix):]
	} else {
		i := strings.IndexByte(rest, '[')
		if i < 0 {
			return ir.InvalidNode, fmt.Errorf("malformed view header %q", rest)
		}
		name, ref = rest[:i], rest[i:]
	}
	if !strings.HasPrefix(ref, "[") || !strings.HasSuffix(ref, "]") {
		return ir.InvalidNode, fmt.Errorf("malformed view header %q", rest)
	}
	child, err := pp.rel(ref[1 : len(ref)-1])
	if err != nil {
		return ir.InvalidNode, err
	}
	return pp.g.View(child, name)
}

func (pp *planParser) project(args, body []string) (ir.NodeID, error) {
	child, err := pp.oneInput("Project", args)
	if err != nil {
		return ir.InvalidNode, err
	}
	names := make([]string, 0, len(body))
	exprs := make([]ir.NodeID, 0, len(body))
	for _, line := range body {
		name, rest, err := nameAndRest(strings.TrimLeft(line, " "), ": ")
		if err != nil {
			return ir.InvalidNode, err
		}
		e, err := pp.expr(rest)
		if err != nil {
			return ir.InvalidNode, fmt.Errorf("output %s: %w", name, err)
		}
		names = append(names, name)
		exprs = append(exprs, e)
	}
	return pp.g.Project(child, names, exprs)
}

func (pp *planParser) filter(args, body []string) (ir.NodeID, error) {
	child, err := pp.oneInput("Filter", args)
	if err != nil {
		return ir.InvalidNode, err
	}
	preds := make([]ir.NodeID, 0, len(body))
	for _, line := range body {
		pred, err := pp.expr(line)
		if err != nil {
			return ir.InvalidNode, err
		}
		preds = append(preds, pred)
	}
	return pp.g.Filter(child, preds...)
}

func (pp *planParser) sort(args, body []string) (ir.NodeID, error) {
	child, err := pp.oneInput("Sort", args)
	if err != nil {
		return ir.InvalidNode, err
	}
	keys := make([]ir.NodeID, 0, len(body))
	specs := make([]ir.SortSpec, 0, len(body))
	for _, line := range body {
		key, spec, err := pp.sortKey(line)
		if err != nil {
			return ir.InvalidNode, err
		}
		keys = append(keys, key)
		specs = append(specs, spec)
	}
	return pp.g.Sort(child, keys, specs)
}

// sortKey parses an "expr dir [nulls]" detail line.
func (pp *planParser) sortKey(line string) (ir.NodeID, ir.SortSpec, error) {
	p := &parser{g: pp.g, scope: pp.scope, toks: tokenize(line)}
	key, err := p.parseOr()
	if err != nil {
		return ir.InvalidNode, ir.SortSpec{}, err
	}
	spec, err := p.sortSpecTail()
	if err != nil {
		return ir.InvalidNode, ir.SortSpec{}, err
	}
	if !p.atEnd() {
		return ir.InvalidNode, ir.SortSpec{}, fmt.Errorf("unexpected %q in sort key", p.peek())
	}
	return key, spec, nil
}

func (pp *planParser) limit(args, body []string) (ir.NodeID, error) {
	if len(args) != 3 {
		return ir.InvalidNode, errors.New("malformed Limit header")
	}
	if len(body) != 0 {
		return ir.InvalidNode, errors.New("Limit takes no detail lines")
	}
	child, err := pp.rel(args[0])
	if err != nil {
		return ir.InvalidNode, err
	}
	count, err := intArg(args[1], "n")
	if err != nil {
		return ir.InvalidNode, err
	}
	offset, err := intArg(args[2], "offset")
	if err != nil {
		return ir.InvalidNode, err
	}
	return pp.g.Limit(child, count, offset)
}

func (pp *planParser) distinct(args, body []string) (ir.NodeID, error) {
	if len(body) != 0 {
		return ir.InvalidNode, errors.New("Distinct takes no detail lines")
	}
	child, err := pp.oneInput("Distinct", args)
	if err != nil {
		return ir.InvalidNode, err
	}
	return pp.g.Distinct(child)
}

func (pp *planParser) unnest(args, body []string) (ir.NodeID, error) {
	if len(args) < 2 {
		return ir.InvalidNode, errors.New("malformed Unnest header")
	}
	if len(body) != 0 {
		return ir.InvalidNode, errors.New("Unnest takes no detail lines")
	}
	child, err := pp.rel(args[0])
	if err != nil {
		return ir.InvalidNode, err
	}
	// Rejoin in case a quoted column name contains ", ".
	rest, ok := strings.CutPrefix(strings.Join(args[1:], ", "), "column=")
	if !ok {
		return ir.InvalidNode, fmt.Errorf("expected column= in %q", args[1])
	}
	column, err := unquoteName(rest)
	if err != nil {
		return ir.InvalidNode, err
	}
	return pp.g.Unnest(child, column)
}

func (pp *planParser) aggregate(args, body []string) (ir.NodeID, error) {
	child, err := pp.oneInput("Aggregate", args)
	if err != nil {
		return ir.InvalidNode, err
	}
	var groupNames, aggNames []string
	var groups, aggs []ir.NodeID
	section := ""
	for _, line := range body {
		switch line {
		case "  groups:":
			section = "groups"
			continue
		case "  metrics:":
			section = "metrics"
			continue
		}
		entry, ok := strings.CutPrefix(line, "    ")
		if !ok || section == "" {
			return ir.InvalidNode, fmt.Errorf("unexpected aggregate line %q", line)
		}
		name, rest, err := nameAndRest(entry, ": ")
		if err != nil {
			return ir.InvalidNode, err
		}
		e, err := pp.expr(rest)
		if err != nil {
			return ir.InvalidNode, fmt.Errorf("%s: %w", name, err)
		}
		if section == "groups" {
			groupNames = append(groupNames, name)
			groups = append(groups, e)
		} else {
			aggNames = append(aggNames, name)
			aggs = append(aggs, e)
		}
	}
	return pp.g.Aggregate(child, groupNames, groups, aggNames, aggs)
}

func (pp *planParser) join(t ir.JoinType, args, body []string) (ir.NodeID, error) {
	if len(args) != 2 {
		return ir.InvalidNode, errors.New("join takes two inputs")
	}
	left, err := pp.rel(args[0])
	if err != nil {
		return ir.InvalidNode, err
	}
	right, err := pp.rel(args[1])
	if err != nil {
		return ir.InvalidNode, err
	}
	preds := make([]ir.NodeID, 0, len(body))
	for _, line := range body {
		pred, err := pp.expr(line)
		if err != nil {
			return ir.InvalidNode, err
		}
		preds = append(preds, pred)
	}
	return pp.g.Join(t, left, right, preds...)
}

func (pp *planParser) setOp(t ir.SetOpType, args, body []string) (ir.NodeID, error) {
	if len(args) != 2 {
		return ir.InvalidNode, errors.New("set operation takes two inputs")
	}
	if len(body) != 0 {
		return ir.InvalidNode, errors.New("set operation takes no detail lines")
	}
	left, err := pp.rel(args[0])
	if err != nil {
		return ir.InvalidNode, err
	}
	right, err := pp.rel(args[1])
	if err != nil {
		return ir.InvalidNode, err
	}
	return pp.g.SetOperation(t, left, right)
}

func (pp *planParser) oneInput(op string, args []string) (ir.NodeID, error) {
	if len(args) != 1 {
		return ir.InvalidNode, fmt.Errorf("%s takes one input", op)
	}
	return pp.rel(args[0])
}

func intArg(s, key string) (int64, error) {
	rest, ok := strings.CutPrefix(s, key+"=")
	if !ok {
		return 0, fmt.Errorf("expected %s= in %q", key, s)
	}
	return strconv.ParseInt(rest, 10, 64)
}

// nameAndRest splits a line into a leading, possibly quoted name and the
// remainder after sep. Dumps quote names that are not plain identifiers.
func nameAndRest(s, sep string) (string, string, error) {
	if strings.HasPrefix(s, `"`) {
		prefix, err := strconv.QuotedPrefix(s)
		if err != nil {
			return "", "", fmt.Errorf("malformed quoted name in %q", s)
		}
		name, err := strconv.Unquote(prefix)
		if err != nil {
			return "", "", fmt.Errorf("malformed quoted name in %q", s)
		}
		rest, ok := strings.CutPrefix(s[len(prefix):], sep)
		if !ok {
			return "", "", fmt.Errorf("expected %q in %q", sep, s)
		}
		return name, rest, nil
	}
	name, rest, ok := strings.Cut(s, sep)
	if !ok {
		return "", "", fmt.Errorf("expected %q in %q", sep, s)
	}
	return name, rest, nil
}

func unquoteName(s string) (string, error) {
	if strings.HasPrefix(s, `"`) {
		name, err := strconv.Unquote(s)
		if err != nil {
			return "", fmt.Errorf("malformed quoted name %s", s)
		}
		return name, nil
	}
	return s, nil
}
