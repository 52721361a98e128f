// Package parser turns expression text and dumped plan listings back into
// graph nodes. Both surfaces share one tokenizer and one expression grammar:
// ParseExpr reads a single SQL-flavored expression against a Scope, and
// ParsePlan reads the multi-line relation listing produced by ir.Graph.Dump,
// rebuilding every relation in order. Because nodes are hash-consed, parsing
// a dump back into the graph it came from yields the original node ids, and
// parsing it into a fresh graph yields a plan with the same fingerprint.
package parser

import (
	"errors"
	"fmt"

	"github.com/bawdo/goshawk/ir"
)

// Scope names the relations an expression may reference. Qualified
// references such as t.col resolve through Bind entries; bare column names
// resolve against the current relation.
type Scope struct {
	current    ir.NodeID
	hasCurrent bool
	relations  map[string]ir.NodeID
}

// NewScope returns an empty scope with no current relation.
func NewScope() *Scope {
	return &Scope{}
}

// Bind registers rel under name for qualified references.
func (s *Scope) Bind(name string, rel ir.NodeID) {
	if s.relations == nil {
		s.relations = make(map[string]ir.NodeID)
	}
	s.relations[name] = rel
}

// Relation looks up a bound relation by name.
func (s *Scope) Relation(name string) (ir.NodeID, bool) {
	rel, ok := s.relations[name]
	return rel, ok
}

// SetCurrent makes rel the relation bare column names resolve against.
func (s *Scope) SetCurrent(rel ir.NodeID) {
	s.current = rel
	s.hasCurrent = true
}

// Current returns the relation bare column names resolve against. The second
// return is false when no current relation is set.
func (s *Scope) Current() (ir.NodeID, bool) {
	return s.current, s.hasCurrent
}

// ParseExpr parses a single expression into g. Column references resolve
// through scope; a nil scope only admits expressions over literals.
func ParseExpr(g *ir.Graph, scope *Scope, input string) (ir.NodeID, error) {
	p := newParser(g, scope, input)
	if p.atEnd() {
		return ir.InvalidNode, errors.New("empty expression")
	}
	id, err := p.parseOr()
	if err != nil {
		return ir.InvalidNode, err
	}
	if !p.atEnd() {
		return ir.InvalidNode, fmt.Errorf("unexpected %q after expression", p.peek())
	}
	return id, nil
}

func newParser(g *ir.Graph, scope *Scope, input string) *parser {
	if scope == nil {
		scope = NewScope()
	}
	return &parser{g: g, scope: scope, toks: tokenize(input)}
}
