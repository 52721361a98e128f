package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bawdo/goshawk/compilers"
	"github.com/bawdo/goshawk/datatypes"
	"github.com/bawdo/goshawk/ir"
	"github.com/bawdo/goshawk/parser"
)

// dialectByName maps an engine name to its compiler dialect.
func dialectByName(name string) (compilers.Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg":
		return compilers.Postgres(), nil
	case "mysql":
		return compilers.MySQL(), nil
	case "sqlite", "sqlite3":
		return compilers.SQLite(), nil
	case "ansi":
		return compilers.ANSI(), nil
	}
	return compilers.Dialect{}, fmt.Errorf("unknown engine %q (choose: postgres, mysql, sqlite)", name)
}

// scope builds the name resolution scope for expression parsing: every
// registered table is visible by name, and bare columns resolve against
// the current pipeline.
func (s *Session) scope() *parser.Scope {
	sc := parser.NewScope()
	for name, id := range s.tables {
		sc.Bind(name, id)
	}
	if s.root != ir.InvalidNode {
		sc.SetCurrent(s.root)
	}
	return sc
}

// splitTopLevelCommas splits a string on commas that are at the top level
// (not inside parentheses). This keeps function calls with multiple args
// like lag(delay, 1, 0) intact.
func splitTopLevelCommas(s string) []string {
	var parts []string
	var cur strings.Builder
	depth := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '(':
			depth++
			cur.WriteByte(ch)
		case ch == ')':
			depth--
			cur.WriteByte(ch)
		case ch == ',' && depth == 0:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// splitAsAlias cuts a trailing top-level "as <name>" off an expression.
// CAST(x AS t) keeps its alias keyword because it sits inside parentheses.
func splitAsAlias(s string) (expr, alias string) {
	depth := 0
	idx := -1
	for i := 0; i+4 <= len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && strings.EqualFold(s[i:i+4], " as ") {
			idx = i
		}
	}
	if idx < 0 {
		return strings.TrimSpace(s), ""
	}
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+4:])
}

// parseNamedExprs parses a comma-separated projection list. Each item is an
// expression with an optional "as <name>"; plain column references default
// to their own name.
func (s *Session) parseNamedExprs(args string) ([]string, []ir.NodeID, error) {
	sc := s.scope()
	var names []string
	var ids []ir.NodeID
	for _, part := range splitTopLevelCommas(args) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		text, alias := splitAsAlias(part)
		id, err := parser.ParseExpr(s.g, sc, text)
		if err != nil {
			return nil, nil, err
		}
		if alias == "" {
			if s.g.Op(id) != ir.OpColumnRef {
				return nil, nil, fmt.Errorf("%q needs a name; add 'as <name>'", text)
			}
			alias = s.g.ColumnName(id)
		}
		if len(strings.Fields(alias)) != 1 {
			return nil, nil, fmt.Errorf("invalid column name %q", alias)
		}
		names = append(names, alias)
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil, errors.New("expected at least one expression")
	}
	return names, ids, nil
}

// parseTableDecl parses "name (col type, col type, ...)". Commas inside
// type parameters and angle brackets do not split columns.
func parseTableDecl(args string) (string, datatypes.Schema, error) {
	decl := strings.TrimSpace(args)
	open := strings.Index(decl, "(")
	if open <= 0 || !strings.HasSuffix(decl, ")") {
		return "", datatypes.Schema{}, errors.New("usage: table <name> (<col> <type>, ...)")
	}
	name := strings.TrimSpace(decl[:open])
	if len(strings.Fields(name)) != 1 {
		return "", datatypes.Schema{}, fmt.Errorf("invalid table name %q", name)
	}

	var fields []datatypes.Field
	for _, part := range splitDeclColumns(decl[open+1 : len(decl)-1]) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		words := strings.Fields(part)
		if len(words) < 2 {
			return "", datatypes.Schema{}, fmt.Errorf("column %q needs a type", part)
		}
		dt, err := datatypes.Parse(strings.Join(words[1:], " "))
		if err != nil {
			return "", datatypes.Schema{}, err
		}
		fields = append(fields, datatypes.Field{Name: words[0], Type: dt})
	}
	schema, err := datatypes.NewSchema(fields...)
	if err != nil {
		return "", datatypes.Schema{}, err
	}
	if schema.Len() == 0 {
		return "", datatypes.Schema{}, errors.New("table needs at least one column")
	}
	return name, schema, nil
}

// splitDeclColumns splits a column declaration list on top-level commas,
// tracking both parentheses and the angle brackets of composite types.
func splitDeclColumns(s string) []string {
	var parts []string
	var cur strings.Builder
	depth := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '(' || ch == '<':
			depth++
			cur.WriteByte(ch)
		case ch == ')' || ch == '>':
			depth--
			cur.WriteByte(ch)
		case ch == ',' && depth == 0:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// formatSchema renders a schema as aligned "name type" lines.
func formatSchema(schema datatypes.Schema, indent string) string {
	width := 0
	for _, f := range schema.Fields() {
		if len(f.Name) > width {
			width = len(f.Name)
		}
	}
	var sb strings.Builder
	for _, f := range schema.Fields() {
		fmt.Fprintf(&sb, "%s%-*s  %s\n", indent, width, f.Name, f.Type)
	}
	return sb.String()
}
