package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bawdo/goshawk/datatypes"
	"github.com/bawdo/goshawk/ir"
)

type parser struct {
	g     *ir.Graph
	scope *Scope
	toks  []string
	pos   int
}

func (p *parser) atEnd() bool {
	return p.pos >= len(p.toks)
}

func (p *parser) peek() string {
	if p.atEnd() {
		return ""
	}
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) string {
	if p.pos+n >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() string {
	tok := p.peek()
	if !p.atEnd() {
		p.pos++
	}
	return tok
}

func (p *parser) expect(tok string) error {
	if p.peek() != tok {
		if p.atEnd() {
			return fmt.Errorf("expected %q, found end of input", tok)
		}
		return fmt.Errorf("expected %q, found %q", tok, p.peek())
	}
	p.pos++
	return nil
}

// Keyword matching is case-insensitive so both interactive input and dump
// text parse.
func (p *parser) peekKeyword(words ...string) bool {
	tok := p.peek()
	for _, w := range words {
		if strings.EqualFold(tok, w) {
			return true
		}
	}
	return false
}

func (p *parser) peekKeywordAt(n int, word string) bool {
	return strings.EqualFold(p.peekAt(n), word)
}

func (p *parser) expectKeyword(word string) error {
	if !p.peekKeyword(word) {
		if p.atEnd() {
			return fmt.Errorf("expected %s, found end of input", strings.ToUpper(word))
		}
		return fmt.Errorf("expected %s, found %q", strings.ToUpper(word), p.peek())
	}
	p.pos++
	return nil
}

// parseOr parses OR-connected terms, the lowest precedence level.
func (p *parser) parseOr() (ir.NodeID, error) {
	first, err := p.parseAnd()
	if err != nil {
		return ir.InvalidNode, err
	}
	terms := []ir.NodeID{first}
	for p.peekKeyword("or") {
		p.pos++
		term, err := p.parseAnd()
		if err != nil {
			return ir.InvalidNode, err
		}
		terms = append(terms, term)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return p.g.Or(terms...)
}

func (p *parser) parseAnd() (ir.NodeID, error) {
	first, err := p.parseNot()
	if err != nil {
		return ir.InvalidNode, err
	}
	terms := []ir.NodeID{first}
	for p.peekKeyword("and") {
		p.pos++
		term, err := p.parseNot()
		if err != nil {
			return ir.InvalidNode, err
		}
		terms = append(terms, term)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return p.g.And(terms...)
}

func (p *parser) parseNot() (ir.NodeID, error) {
	if p.peekKeyword("not") {
		p.pos++
		inner, err := p.parseNot()
		if err != nil {
			return ir.InvalidNode, err
		}
		return p.g.Not(inner)
	}
	return p.parsePredicate()
}

var comparisonOps = map[string]func(*ir.Graph, ir.NodeID, ir.NodeID) (ir.NodeID, error){
	"=":  (*ir.Graph).Equals,
	"!=": (*ir.Graph).NotEquals,
	"<>": (*ir.Graph).NotEquals,
	"<":  (*ir.Graph).Less,
	"<=": (*ir.Graph).LessEqual,
	">":  (*ir.Graph).Greater,
	">=": (*ir.Graph).GreaterEqual,
}

// parsePredicate parses comparisons and the IS NULL, IN, and BETWEEN forms
// layered on an arithmetic operand.
func (p *parser) parsePredicate() (ir.NodeID, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return ir.InvalidNode, err
	}
	for {
		if cmp, ok := comparisonOps[p.peek()]; ok {
			p.pos++
			right, err := p.parseAdditive()
			if err != nil {
				return ir.InvalidNode, err
			}
			left, err = cmp(p.g, left, right)
			if err != nil {
				return ir.InvalidNode, err
			}
			continue
		}
		switch {
		case p.peekKeyword("is"):
			p.pos++
			negated := false
			if p.peekKeyword("not") {
				p.pos++
				negated = true
			}
			if err := p.expectKeyword("null"); err != nil {
				return ir.InvalidNode, err
			}
			if negated {
				left, err = p.g.NotNull(left)
			} else {
				left, err = p.g.IsNull(left)
			}
		case p.peekKeyword("in"):
			p.pos++
			left, err = p.parseInList(left)
		case p.peekKeyword("between"):
			p.pos++
			left, err = p.parseBetween(left)
		case p.peekKeyword("not") && p.peekKeywordAt(1, "in"):
			p.pos += 2
			left, err = p.parseInList(left)
			if err == nil {
				left, err = p.g.Not(left)
			}
		case p.peekKeyword("not") && p.peekKeywordAt(1, "between"):
			p.pos += 2
			left, err = p.parseBetween(left)
			if err == nil {
				left, err = p.g.Not(left)
			}
		default:
			return left, nil
		}
		if err != nil {
			return ir.InvalidNode, err
		}
	}
}

func (p *parser) parseInList(value ir.NodeID) (ir.NodeID, error) {
	if err := p.expect("("); err != nil {
		return ir.InvalidNode, err
	}
	var options []ir.NodeID
	for {
		opt, err := p.parseOr()
		if err != nil {
			return ir.InvalidNode, err
		}
		options = append(options, opt)
		if p.peek() == "," {
			p.pos++
			continue
		}
		break
	}
	if err := p.expect(")"); err != nil {
		return ir.InvalidNode, err
	}
	return p.g.InValues(value, options...)
}

// The inner AND of BETWEEN binds to the bounds, so both bounds parse at the
// additive level.
func (p *parser) parseBetween(value ir.NodeID) (ir.NodeID, error) {
	lower, err := p.parseAdditive()
	if err != nil {
		return ir.InvalidNode, err
	}
	if err := p.expectKeyword("and"); err != nil {
		return ir.InvalidNode, err
	}
	upper, err := p.parseAdditive()
	if err != nil {
		return ir.InvalidNode, err
	}
	return p.g.Between(value, lower, upper)
}

func (p *parser) parseAdditive() (ir.NodeID, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return ir.InvalidNode, err
	}
	for {
		var combine func(ir.NodeID, ir.NodeID) (ir.NodeID, error)
		switch p.peek() {
		case "+":
			combine = p.g.Add
		case "-":
			combine = p.g.Subtract
		case "||":
			combine = func(a, b ir.NodeID) (ir.NodeID, error) { return p.g.StringConcat(a, b) }
		default:
			return left, nil
		}
		p.pos++
		right, err := p.parseMultiplicative()
		if err != nil {
			return ir.InvalidNode, err
		}
		left, err = combine(left, right)
		if err != nil {
			return ir.InvalidNode, err
		}
	}
}

func (p *parser) parseMultiplicative() (ir.NodeID, error) {
	left, err := p.parseUnary()
	if err != nil {
		return ir.InvalidNode, err
	}
	for {
		var combine func(ir.NodeID, ir.NodeID) (ir.NodeID, error)
		switch p.peek() {
		case "*":
			combine = p.g.Multiply
		case "/":
			combine = p.g.Divide
		case "%":
			combine = p.g.Modulus
		default:
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return ir.InvalidNode, err
		}
		left, err = combine(left, right)
		if err != nil {
			return ir.InvalidNode, err
		}
	}
}

// parseUnary folds a sign into a following numeric literal so that -3 parses
// as a literal rather than a negation node, matching how negative literals
// print.
func (p *parser) parseUnary() (ir.NodeID, error) {
	tok := p.peek()
	if tok == "-" || tok == "+" {
		if isNumberToken(p.peekAt(1)) {
			p.pos++
			return p.parseLiteral(tok + p.next())
		}
		p.pos++
		inner, err := p.parseUnary()
		if err != nil {
			return ir.InvalidNode, err
		}
		if tok == "+" {
			return inner, nil
		}
		return p.g.Negate(inner)
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (ir.NodeID, error) {
	tok := p.peek()
	if tok == "" {
		return ir.InvalidNode, errors.New("unexpected end of expression")
	}
	if tok == "(" {
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return ir.InvalidNode, err
		}
		if err := p.expect(")"); err != nil {
			return ir.InvalidNode, err
		}
		return inner, nil
	}
	if isNumberToken(tok) || tok[0] == '\'' {
		p.pos++
		return p.parseLiteral(tok)
	}
	lower := strings.ToLower(tok)
	if lower == "true" || lower == "false" || lower == "null" {
		p.pos++
		return p.parseLiteral(lower)
	}
	if tok[0] == '"' {
		p.pos++
		if p.peek() == "::" {
			return p.parseLiteral(tok)
		}
		return p.columnRef(tok)
	}
	if lower == "case" {
		return p.parseCase()
	}
	if p.peekAt(1) == "(" {
		return p.parseCall(lower)
	}
	p.pos++
	return p.columnRef(tok)
}

func (p *parser) parseCall(name string) (ir.NodeID, error) {
	switch name {
	case "cast":
		return p.parseCast()
	case "field":
		return p.parseField()
	case "extract":
		return p.parseExtract()
	case "exists", "not_exists":
		return p.parseExists(name == "not_exists")
	case "count_star":
		return p.parseCountStar()
	case "window":
		return p.parseWindowForm()
	case "sum", "avg", "mean", "min", "max", "count":
		return p.parseAggregate(name)
	case "row_number", "rank", "dense_rank", "percent_rank", "cume_dist",
		"ntile", "lag", "lead", "first_value", "last_value":
		return p.parseWindowFunc(name)
	}
	return p.parseScalarCall(name)
}

// parseArgs reads a parenthesized, comma-separated argument list, which may
// be empty.
func (p *parser) parseArgs() ([]ir.NodeID, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	if p.peek() == ")" {
		p.pos++
		return nil, nil
	}
	var args []ir.NodeID
	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.peek() == "," {
			p.pos++
			continue
		}
		break
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return args, nil
}

var unaryCalls = map[string]func(*ir.Graph, ir.NodeID) (ir.NodeID, error){
	"abs":     (*ir.Graph).Abs,
	"ceil":    (*ir.Graph).Ceil,
	"ceiling": (*ir.Graph).Ceil,
	"floor":   (*ir.Graph).Floor,
	"sqrt":    (*ir.Graph).Sqrt,
	"exp":     (*ir.Graph).Exp,
	"ln":      (*ir.Graph).Ln,
	"lower":   (*ir.Graph).Lower,
	"upper":   (*ir.Graph).Upper,
	"length":  (*ir.Graph).Length,
	"trim":    (*ir.Graph).Trim,
}

func (p *parser) parseScalarCall(name string) (ir.NodeID, error) {
	p.pos++ // function name
	args, err := p.parseArgs()
	if err != nil {
		return ir.InvalidNode, err
	}
	if fn, ok := unaryCalls[name]; ok {
		if len(args) != 1 {
			return ir.InvalidNode, fmt.Errorf("%s takes one argument", name)
		}
		return fn(p.g, args[0])
	}
	switch name {
	case "round":
		switch len(args) {
		case 1:
			return p.g.Round(args[0])
		case 2:
			return p.g.Round(args[0], args[1])
		}
		return ir.InvalidNode, errors.New("round takes one or two arguments")
	case "substring", "substr":
		switch len(args) {
		case 2:
			return p.g.Substring(args[0], args[1])
		case 3:
			return p.g.Substring(args[0], args[1], args[2])
		}
		return ir.InvalidNode, errors.New("substring takes two or three arguments")
	case "power", "pow":
		if len(args) != 2 {
			return ir.InvalidNode, errors.New("power takes two arguments")
		}
		return p.g.Power(args[0], args[1])
	case "nullif":
		if len(args) != 2 {
			return ir.InvalidNode, errors.New("nullif takes two arguments")
		}
		return p.g.NullIf(args[0], args[1])
	case "regex_match":
		if len(args) != 2 {
			return ir.InvalidNode, errors.New("regex_match takes two arguments")
		}
		return p.g.RegexMatch(args[0], args[1])
	case "element_at":
		if len(args) != 2 {
			return ir.InvalidNode, errors.New("element_at takes two arguments")
		}
		return p.g.ElementAt(args[0], args[1])
	case "coalesce":
		if len(args) == 0 {
			return ir.InvalidNode, errors.New("coalesce needs at least one argument")
		}
		return p.g.Coalesce(args...)
	case "concat":
		if len(args) < 2 {
			return ir.InvalidNode, errors.New("concat needs at least two arguments")
		}
		return p.g.StringConcat(args...)
	case "greatest":
		if len(args) < 2 {
			return ir.InvalidNode, errors.New("greatest needs at least two arguments")
		}
		return p.g.Greatest(args...)
	case "least":
		if len(args) < 2 {
			return ir.InvalidNode, errors.New("least needs at least two arguments")
		}
		return p.g.Least(args...)
	}
	return ir.InvalidNode, fmt.Errorf("unknown function %q", name)
}

// parseCast reads cast(expr as type).
func (p *parser) parseCast() (ir.NodeID, error) {
	p.pos++ // cast
	if err := p.expect("("); err != nil {
		return ir.InvalidNode, err
	}
	expr, err := p.parseOr()
	if err != nil {
		return ir.InvalidNode, err
	}
	if err := p.expectKeyword("as"); err != nil {
		return ir.InvalidNode, err
	}
	to, err := p.parseTypeRef()
	if err != nil {
		return ir.InvalidNode, err
	}
	if err := p.expect(")"); err != nil {
		return ir.InvalidNode, err
	}
	return p.g.Cast(expr, to)
}

// parseField reads field(expr, name): access to the named field of a
// struct-typed expression. The name is a bare or quoted identifier, not an
// expression.
func (p *parser) parseField() (ir.NodeID, error) {
	p.pos++ // field
	if err := p.expect("("); err != nil {
		return ir.InvalidNode, err
	}
	expr, err := p.parseOr()
	if err != nil {
		return ir.InvalidNode, err
	}
	if err := p.expect(","); err != nil {
		return ir.InvalidNode, err
	}
	tok := p.next()
	if tok == "" {
		return ir.InvalidNode, errors.New("expected field name")
	}
	name := tok
	if tok[0] == '"' {
		name, err = strconv.Unquote(tok)
		if err != nil {
			return ir.InvalidNode, fmt.Errorf("malformed field name %s", tok)
		}
	}
	if err := p.expect(")"); err != nil {
		return ir.InvalidNode, err
	}
	return p.g.Field(expr, name)
}

// parseTypeRef reassembles a type reference from the token stream and hands
// it to the datatypes grammar. Parameterized and nested types span several
// tokens, so parentheses and angle brackets are consumed in balance.
func (p *parser) parseTypeRef() (datatypes.DataType, error) {
	head := p.next()
	if head == "" {
		return datatypes.DataType{}, errors.New("expected type name")
	}
	parts := []string{head}
	var open, close string
	switch p.peek() {
	case "(":
		open, close = "(", ")"
	case "<":
		open, close = "<", ">"
	}
	if open != "" {
		depth := 0
		for {
			tok := p.next()
			if tok == "" {
				return datatypes.DataType{}, fmt.Errorf("unterminated type %q", strings.Join(parts, " "))
			}
			parts = append(parts, tok)
			switch tok {
			case open:
				depth++
			case close:
				depth--
			}
			if depth == 0 {
				break
			}
		}
	}
	return datatypes.Parse(strings.Join(parts, " "))
}

// parseExtract reads extract(part from expr) and the comma form
// extract(part, expr).
func (p *parser) parseExtract() (ir.NodeID, error) {
	p.pos++ // extract
	if err := p.expect("("); err != nil {
		return ir.InvalidNode, err
	}
	partName := strings.ToLower(p.next())
	part, ok := ir.DatePartByName(partName)
	if !ok {
		return ir.InvalidNode, fmt.Errorf("unknown date part %q", partName)
	}
	if p.peek() == "," {
		p.pos++
	} else if err := p.expectKeyword("from"); err != nil {
		return ir.InvalidNode, err
	}
	expr, err := p.parseOr()
	if err != nil {
		return ir.InvalidNode, err
	}
	if err := p.expect(")"); err != nil {
		return ir.InvalidNode, err
	}
	return p.g.Extract(part, expr)
}

// parseExists reads exists(rel) and not_exists(rel); the argument names a
// relation bound in the scope.
func (p *parser) parseExists(negated bool) (ir.NodeID, error) {
	p.pos++ // exists
	if err := p.expect("("); err != nil {
		return ir.InvalidNode, err
	}
	rel, err := p.relationArg()
	if err != nil {
		return ir.InvalidNode, err
	}
	if err := p.expect(")"); err != nil {
		return ir.InvalidNode, err
	}
	return p.g.Exists(rel, negated)
}

func (p *parser) parseCountStar() (ir.NodeID, error) {
	p.pos++ // count_star
	if err := p.expect("("); err != nil {
		return ir.InvalidNode, err
	}
	rel, err := p.relationArg()
	if err != nil {
		return ir.InvalidNode, err
	}
	if err := p.expect(")"); err != nil {
		return ir.InvalidNode, err
	}
	return p.g.CountStar(rel)
}

func (p *parser) relationArg() (ir.NodeID, error) {
	tok := p.next()
	if tok == "" {
		return ir.InvalidNode, errors.New("expected relation name")
	}
	name := tok
	if tok[0] == '"' {
		var err error
		name, err = strconv.Unquote(tok)
		if err != nil {
			return ir.InvalidNode, fmt.Errorf("malformed relation name %s", tok)
		}
	}
	rel, ok := p.scope.Relation(name)
	if !ok {
		return ir.InvalidNode, fmt.Errorf("unknown relation %q", name)
	}
	return rel, nil
}

// parseAggregate reads the reduction calls, including DISTINCT arguments,
// count(*), and a trailing FILTER (WHERE ...) clause. FILTER lowers to a
// CASE argument since reductions skip NULL inputs.
func (p *parser) parseAggregate(name string) (ir.NodeID, error) {
	p.pos++ // function name
	if err := p.expect("("); err != nil {
		return ir.InvalidNode, err
	}
	distinct := false
	if p.peekKeyword("distinct") {
		p.pos++
		distinct = true
	}
	star := false
	var arg ir.NodeID
	if name == "count" && p.peek() == "*" {
		if distinct {
			return ir.InvalidNode, errors.New("count(*) does not take DISTINCT")
		}
		p.pos++
		star = true
	} else {
		var err error
		arg, err = p.parseOr()
		if err != nil {
			return ir.InvalidNode, err
		}
	}
	if err := p.expect(")"); err != nil {
		return ir.InvalidNode, err
	}

	if p.peekKeyword("filter") {
		p.pos++
		if err := p.expect("("); err != nil {
			return ir.InvalidNode, err
		}
		if err := p.expectKeyword("where"); err != nil {
			return ir.InvalidNode, err
		}
		cond, err := p.parseOr()
		if err != nil {
			return ir.InvalidNode, err
		}
		if err := p.expect(")"); err != nil {
			return ir.InvalidNode, err
		}
		if star {
			arg, err = p.g.Literal(int64(1))
			if err != nil {
				return ir.InvalidNode, err
			}
			star = false
		}
		arg, err = p.g.Case([]ir.NodeID{cond}, []ir.NodeID{arg}, ir.InvalidNode)
		if err != nil {
			return ir.InvalidNode, err
		}
	}

	var agg ir.NodeID
	var err error
	switch name {
	case "sum":
		agg, err = p.g.Sum(arg, distinct)
	case "avg", "mean":
		agg, err = p.g.Mean(arg, distinct)
	case "count":
		if star {
			cur, ok := p.scope.Current()
			if !ok {
				return ir.InvalidNode, errors.New("count(*) needs a relation in scope")
			}
			agg, err = p.g.CountStar(cur)
		} else {
			agg, err = p.g.Count(arg, distinct)
		}
	case "min", "max":
		if distinct {
			return ir.InvalidNode, fmt.Errorf("%s does not take DISTINCT", name)
		}
		if name == "min" {
			agg, err = p.g.Min(arg)
		} else {
			agg, err = p.g.Max(arg)
		}
	}
	if err != nil {
		return ir.InvalidNode, err
	}
	return p.maybeOver(agg)
}

// parseWindowFunc reads the rank family and positional window functions.
// Without an OVER clause the bare node is returned, which is how dumped
// window(...) forms carry the function.
func (p *parser) parseWindowFunc(name string) (ir.NodeID, error) {
	p.pos++ // function name
	args, err := p.parseArgs()
	if err != nil {
		return ir.InvalidNode, err
	}
	var fn ir.NodeID
	switch name {
	case "row_number", "rank", "dense_rank", "percent_rank", "cume_dist":
		if len(args) != 0 {
			return ir.InvalidNode, fmt.Errorf("%s takes no arguments", name)
		}
		switch name {
		case "row_number":
			fn = p.g.RowNumber()
		case "rank":
			fn = p.g.Rank()
		case "dense_rank":
			fn = p.g.DenseRank()
		case "percent_rank":
			fn = p.g.PercentRank()
		default:
			fn = p.g.CumeDist()
		}
	case "ntile":
		if len(args) != 1 {
			return ir.InvalidNode, errors.New("ntile takes one argument")
		}
		fn, err = p.g.Ntile(args[0])
	case "lag":
		fn, err = p.g.Lag(args...)
	case "lead":
		fn, err = p.g.Lead(args...)
	case "first_value":
		if len(args) != 1 {
			return ir.InvalidNode, errors.New("first_value takes one argument")
		}
		fn, err = p.g.FirstValue(args[0])
	case "last_value":
		if len(args) != 1 {
			return ir.InvalidNode, errors.New("last_value takes one argument")
		}
		fn, err = p.g.LastValue(args[0])
	}
	if err != nil {
		return ir.InvalidNode, err
	}
	return p.maybeOver(fn)
}

func (p *parser) maybeOver(fn ir.NodeID) (ir.NodeID, error) {
	if !p.peekKeyword("over") {
		return fn, nil
	}
	p.pos++
	if err := p.expect("("); err != nil {
		return ir.InvalidNode, err
	}
	partition, orderBy, specs, frame, err := p.parseWindowDef()
	if err != nil {
		return ir.InvalidNode, err
	}
	if err := p.expect(")"); err != nil {
		return ir.InvalidNode, err
	}
	return p.g.Window(fn, partition, orderBy, specs, frame)
}

// parseWindowDef reads the inside of an OVER clause: optional PARTITION BY,
// ORDER BY, and frame sections, in that order.
func (p *parser) parseWindowDef() ([]ir.NodeID, []ir.NodeID, []ir.SortSpec, *ir.WindowFrame, error) {
	var partition, orderBy []ir.NodeID
	var specs []ir.SortSpec
	var frame *ir.WindowFrame
	if p.peekKeyword("partition") {
		p.pos++
		if err := p.expectKeyword("by"); err != nil {
			return nil, nil, nil, nil, err
		}
		for {
			e, err := p.parseOr()
			if err != nil {
				return nil, nil, nil, nil, err
			}
			partition = append(partition, e)
			if p.peek() == "," {
				p.pos++
				continue
			}
			break
		}
	}
	if p.peekKeyword("order") {
		p.pos++
		if err := p.expectKeyword("by"); err != nil {
			return nil, nil, nil, nil, err
		}
		for {
			key, err := p.parseOr()
			if err != nil {
				return nil, nil, nil, nil, err
			}
			spec, err := p.sortSpecTail()
			if err != nil {
				return nil, nil, nil, nil, err
			}
			orderBy = append(orderBy, key)
			specs = append(specs, spec)
			if p.peek() == "," {
				p.pos++
				continue
			}
			break
		}
	}
	if p.peekKeyword("rows", "range") {
		f, err := p.parseFrame()
		if err != nil {
			return nil, nil, nil, nil, err
		}
		frame = f
	}
	return partition, orderBy, specs, frame, nil
}

// sortSpecTail reads an optional direction and NULLS placement after a sort
// key, accepting both the SQL spellings and the compact dump spellings.
func (p *parser) sortSpecTail() (ir.SortSpec, error) {
	var spec ir.SortSpec
	switch {
	case p.peekKeyword("asc"):
		p.pos++
	case p.peekKeyword("desc"):
		p.pos++
		spec.Direction = ir.Desc
	}
	switch {
	case p.peekKeyword("nulls_first"):
		p.pos++
		spec.Nulls = ir.NullsFirst
	case p.peekKeyword("nulls_last"):
		p.pos++
		spec.Nulls = ir.NullsLast
	case p.peekKeyword("nulls"):
		p.pos++
		switch {
		case p.peekKeyword("first"):
			p.pos++
			spec.Nulls = ir.NullsFirst
		case p.peekKeyword("last"):
			p.pos++
			spec.Nulls = ir.NullsLast
		default:
			return spec, fmt.Errorf("expected FIRST or LAST after NULLS, found %q", p.peek())
		}
	}
	return spec, nil
}

// parseFrame reads a ROWS or RANGE frame clause. A lone start bound gets the
// SQL default CURRENT ROW end bound.
func (p *parser) parseFrame() (*ir.WindowFrame, error) {
	typ := ir.FrameRows
	if strings.EqualFold(p.next(), "range") {
		typ = ir.FrameRange
	}
	var start, end ir.FrameBound
	var err error
	if p.peekKeyword("between") {
		p.pos++
		start, err = p.parseFrameBound()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("and"); err != nil {
			return nil, err
		}
		end, err = p.parseFrameBound()
		if err != nil {
			return nil, err
		}
	} else {
		start, err = p.parseFrameBound()
		if err != nil {
			return nil, err
		}
		end = ir.CurrentRow()
	}
	return &ir.WindowFrame{Type: typ, Start: start, End: end}, nil
}

func (p *parser) parseFrameBound() (ir.FrameBound, error) {
	switch {
	case p.peekKeyword("unbounded"):
		p.pos++
		switch {
		case p.peekKeyword("preceding"):
			p.pos++
			return ir.UnboundedPreceding(), nil
		case p.peekKeyword("following"):
			p.pos++
			return ir.UnboundedFollowing(), nil
		}
		return ir.FrameBound{}, errors.New("expected PRECEDING or FOLLOWING after UNBOUNDED")
	case p.peekKeyword("current"):
		p.pos++
		if err := p.expectKeyword("row"); err != nil {
			return ir.FrameBound{}, err
		}
		return ir.CurrentRow(), nil
	default:
		n, err := strconv.ParseInt(p.next(), 10, 64)
		if err != nil {
			return ir.FrameBound{}, fmt.Errorf("expected frame offset: %w", err)
		}
		switch {
		case p.peekKeyword("preceding"):
			p.pos++
			return ir.Preceding(n), nil
		case p.peekKeyword("following"):
			p.pos++
			return ir.Following(n), nil
		}
		return ir.FrameBound{}, errors.New("expected PRECEDING or FOLLOWING after frame offset")
	}
}

// parseWindowForm reads the dumped form
// window(fn, partition_by=[...], order_by=[...], frame=rows:start:end).
func (p *parser) parseWindowForm() (ir.NodeID, error) {
	p.pos++ // window
	if err := p.expect("("); err != nil {
		return ir.InvalidNode, err
	}
	fn, err := p.parseOr()
	if err != nil {
		return ir.InvalidNode, err
	}
	var partition, orderBy []ir.NodeID
	var specs []ir.SortSpec
	var frame *ir.WindowFrame
	for p.peek() == "," {
		p.pos++
		section := strings.ToLower(p.next())
		if err := p.expect("="); err != nil {
			return ir.InvalidNode, err
		}
		switch section {
		case "partition_by":
			partition, _, err = p.parseBracketList(false)
		case "order_by":
			orderBy, specs, err = p.parseBracketList(true)
		case "frame":
			frame, err = parseFrameDump(p.next())
		default:
			return ir.InvalidNode, fmt.Errorf("unknown window section %q", section)
		}
		if err != nil {
			return ir.InvalidNode, err
		}
	}
	if err := p.expect(")"); err != nil {
		return ir.InvalidNode, err
	}
	return p.g.Window(fn, partition, orderBy, specs, frame)
}

func (p *parser) parseBracketList(sorted bool) ([]ir.NodeID, []ir.SortSpec, error) {
	if err := p.expect("["); err != nil {
		return nil, nil, err
	}
	if p.peek() == "]" {
		p.pos++
		return nil, nil, nil
	}
	var exprs []ir.NodeID
	var specs []ir.SortSpec
	for {
		e, err := p.parseOr()
		if err != nil {
			return nil, nil, err
		}
		exprs = append(exprs, e)
		if sorted {
			spec, err := p.sortSpecTail()
			if err != nil {
				return nil, nil, err
			}
			specs = append(specs, spec)
		}
		if p.peek() == "," {
			p.pos++
			continue
		}
		break
	}
	if err := p.expect("]"); err != nil {
		return nil, nil, err
	}
	return exprs, specs, nil
}

// parseFrameDump decodes the compact frame encoding, for example
// "rows:2_preceding:current_row".
func parseFrameDump(tok string) (*ir.WindowFrame, error) {
	parts := strings.Split(tok, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed frame %q", tok)
	}
	typ := ir.FrameRows
	switch parts[0] {
	case "rows":
	case "range":
		typ = ir.FrameRange
	default:
		return nil, fmt.Errorf("malformed frame %q", tok)
	}
	start, err := parseBoundDump(parts[1])
	if err != nil {
		return nil, fmt.Errorf("malformed frame %q: %w", tok, err)
	}
	end, err := parseBoundDump(parts[2])
	if err != nil {
		return nil, fmt.Errorf("malformed frame %q: %w", tok, err)
	}
	return &ir.WindowFrame{Type: typ, Start: start, End: end}, nil
}

func parseBoundDump(s string) (ir.FrameBound, error) {
	switch s {
	case "unbounded_preceding":
		return ir.UnboundedPreceding(), nil
	case "unbounded_following":
		return ir.UnboundedFollowing(), nil
	case "current_row":
		return ir.CurrentRow(), nil
	}
	if rest, ok := strings.CutSuffix(s, "_preceding"); ok {
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return ir.FrameBound{}, err
		}
		return ir.Preceding(n), nil
	}
	if rest, ok := strings.CutSuffix(s, "_following"); ok {
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return ir.FrameBound{}, err
		}
		return ir.Following(n), nil
	}
	return ir.FrameBound{}, fmt.Errorf("unknown bound %q", s)
}

// parseCase reads searched and simple CASE expressions. A simple CASE
// operand folds into an equality condition on each WHEN.
func (p *parser) parseCase() (ir.NodeID, error) {
	p.pos++ // case
	operand := ir.InvalidNode
	if !p.peekKeyword("when") {
		var err error
		operand, err = p.parseOr()
		if err != nil {
			return ir.InvalidNode, err
		}
	}
	var whens, thens []ir.NodeID
	for p.peekKeyword("when") {
		p.pos++
		cond, err := p.parseOr()
		if err != nil {
			return ir.InvalidNode, err
		}
		if operand != ir.InvalidNode {
			cond, err = p.g.Equals(operand, cond)
			if err != nil {
				return ir.InvalidNode, err
			}
		}
		if err := p.expectKeyword("then"); err != nil {
			return ir.InvalidNode, err
		}
		val, err := p.parseOr()
		if err != nil {
			return ir.InvalidNode, err
		}
		whens = append(whens, cond)
		thens = append(thens, val)
	}
	if len(whens) == 0 {
		return ir.InvalidNode, errors.New("CASE needs at least one WHEN")
	}
	elseExpr := ir.InvalidNode
	if p.peekKeyword("else") {
		p.pos++
		var err error
		elseExpr, err = p.parseOr()
		if err != nil {
			return ir.InvalidNode, err
		}
	}
	if err := p.expectKeyword("end"); err != nil {
		return ir.InvalidNode, err
	}
	return p.g.Case(whens, thens, elseExpr)
}

// parseLiteral turns a datum token into a literal node. A ::type suffix pins
// the type exactly; otherwise integers, floats, strings, and booleans are
// inferred the way Graph.Literal infers them.
func (p *parser) parseLiteral(datum string) (ir.NodeID, error) {
	if p.peek() == "::" {
		p.pos++
		dt, err := p.parseTypeRef()
		if err != nil {
			return ir.InvalidNode, err
		}
		text := datum
		if text != "" && text[0] == '\'' {
			text, err = unquoteSQL(text)
			if err != nil {
				return ir.InvalidNode, err
			}
		}
		val, err := ir.ParseDatum(text, dt)
		if err != nil {
			return ir.InvalidNode, err
		}
		return p.g.TypedLiteral(val, dt)
	}
	switch strings.ToLower(datum) {
	case "null":
		return p.g.Literal(nil)
	case "true":
		return p.g.Literal(true)
	case "false":
		return p.g.Literal(false)
	}
	if datum[0] == '\'' {
		s, err := unquoteSQL(datum)
		if err != nil {
			return ir.InvalidNode, err
		}
		return p.g.Literal(s)
	}
	if i, err := strconv.ParseInt(datum, 10, 64); err == nil {
		return p.g.Literal(i)
	}
	if u, err := strconv.ParseUint(datum, 10, 64); err == nil {
		return p.g.Literal(u)
	}
	if f, err := strconv.ParseFloat(datum, 64); err == nil {
		return p.g.Literal(f)
	}
	return ir.InvalidNode, fmt.Errorf("cannot parse literal %q", datum)
}

// unquoteSQL strips single quotes and undoubles embedded quotes.
func unquoteSQL(s string) (string, error) {
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return "", fmt.Errorf("malformed string literal %s", s)
	}
	return strings.ReplaceAll(s[1:len(s)-1], "''", "'"), nil
}

// columnRef resolves a bare or qualified column token against the scope.
func (p *parser) columnRef(tok string) (ir.NodeID, error) {
	qual, col, err := splitRef(tok)
	if err != nil {
		return ir.InvalidNode, err
	}
	if qual == "" {
		cur, ok := p.scope.Current()
		if !ok {
			return ir.InvalidNode, fmt.Errorf("no relation in scope for column %q", col)
		}
		return p.g.ColumnRef(cur, col)
	}
	rel, ok := p.scope.Relation(qual)
	if !ok {
		return ir.InvalidNode, fmt.Errorf("unknown relation %q", qual)
	}
	return p.g.ColumnRef(rel, col)
}

// splitRef splits a possibly qualified, possibly quoted reference into
// qualifier and column. Quoted segments use Go string syntax, matching how
// dumps quote names that are not plain identifiers.
func splitRef(tok string) (string, string, error) {
	name, rest, err := refPart(tok)
	if err != nil {
		return "", "", err
	}
	if rest == "" {
		return "", name, nil
	}
	if rest[0] != '.' {
		return "", "", fmt.Errorf("malformed reference %q", tok)
	}
	col, tail, err := refPart(rest[1:])
	if err != nil {
		return "", "", err
	}
	if tail != "" {
		return "", "", fmt.Errorf("malformed reference %q", tok)
	}
	return name, col, nil
}

// refPart consumes one name segment, quoted or bare, returning the rest of
// the token.
func refPart(s string) (string, string, error) {
	if s == "" {
		return "", "", errors.New("empty reference")
	}
	if s[0] == '"' {
		prefix, err := strconv.QuotedPrefix(s)
		if err != nil {
			return "", "", fmt.Errorf("malformed quoted name %s", s)
		}
		name, err := strconv.Unquote(prefix)
		if err != nil {
			return "", "", fmt.Errorf("malformed quoted name %s", s)
		}
		return name, s[len(prefix):], nil
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i], s[i:], nil
	}
	return s, "", nil
}
