package main

import (
	"sort"
	"strings"

	"github.com/bawdo/goshawk/ir"
)

// completionContext describes what kind of completion is appropriate.
type completionContext int

const (
	completeNone completionContext = iota // command takes free-form args
	completeCommand
	completeTables
	completeColumns
	completeJoin // table name, then columns after 'on'
	completeOrder
	completeEngines
	completeTypes
	completeSources // after 'table <name> from'
)

var orderDirs = []string{"asc", "desc", "nulls first", "nulls last"}
var sourceNames = []string{"avro", "db"}
var engineNames = []string{"ansi", "mysql", "postgres", "sqlite"}

var typeNames = []string{
	"array<", "binary", "boolean",
	"date", "decimal(", "double", "float32", "float64",
	"int16", "int32", "int64", "int8", "interval(",
	"map<", "string", "struct<",
	"time", "timestamp", "timestamp(",
	"uint16", "uint32", "uint64", "uint8",
}

var functionNames = []string{
	"avg(", "cast(", "coalesce(", "concat(", "count(", "cume_dist(",
	"dense_rank(", "element_at(", "exists(", "extract(", "field(", "greatest(",
	"lag(", "lead(", "least(",
	"max(", "mean(", "min(",
	"not_exists(", "ntile(", "nullif(",
	"percent_rank(", "power(",
	"rank(", "regex_match(", "round(", "row_number(",
	"substring(", "sum(",
}

// replCompleter implements readline's AutoCompleter interface.
type replCompleter struct {
	sess *Session
}

// Do returns completion candidates for the current line/cursor position.
// length is the number of chars from end of line[:pos] that form the
// prefix being completed; newLine holds the suffixes to append.
func (c *replCompleter) Do(line []rune, pos int) (newLine [][]rune, length int) {
	lineStr := string(line[:pos])
	ctx, prefix := c.parseContext(lineStr)

	var candidates []string
	switch ctx {
	case completeCommand:
		candidates = filterPrefix(c.sess.commandNames(), prefix)
	case completeTables:
		candidates = c.completeTableNames(prefix)
	case completeColumns:
		candidates = c.completeColumnRef(prefix)
	case completeOrder:
		candidates = filterPrefix(orderDirs, prefix)
	case completeEngines:
		candidates = filterPrefix(engineNames, prefix)
	case completeTypes:
		candidates = filterPrefix(typeNames, prefix)
	case completeSources:
		candidates = filterPrefix(sourceNames, prefix)
	}

	for _, cand := range candidates {
		suffix := cand[len(prefix):]
		// Trailing space for convenience, except mid-expression openers.
		if !strings.HasSuffix(cand, "(") && !strings.HasSuffix(cand, "<") {
			suffix += " "
		}
		newLine = append(newLine, []rune(suffix))
	}
	length = len([]rune(prefix))
	return
}

// parseContext examines the line up to the cursor and decides what kind of
// completion is needed and the prefix being typed.
func (c *replCompleter) parseContext(line string) (completionContext, string) {
	lower := strings.ToLower(line)
	for _, cmd := range c.sess.commands {
		if !strings.HasPrefix(lower, cmd.prefix+" ") {
			continue
		}
		if cmd.context == completeNone {
			return completeNone, ""
		}
		return refineContext(cmd.context, line[len(cmd.prefix)+1:])
	}
	return completeCommand, strings.TrimSpace(line)
}

// refineContext narrows a command's base context by where the cursor sits
// in its arguments.
func refineContext(ctx completionContext, args string) (completionContext, string) {
	switch ctx {
	case completeJoin:
		if idx := strings.LastIndex(strings.ToLower(args), " on "); idx >= 0 {
			return completeColumns, lastToken(args[idx+4:])
		}
		return completeTables, lastToken(args)
	case completeOrder:
		seg := args
		if idx := strings.LastIndex(seg, ","); idx >= 0 {
			seg = seg[idx+1:]
		}
		words := strings.Fields(seg)
		if len(words) >= 2 || (len(words) == 1 && strings.HasSuffix(seg, " ")) {
			return completeOrder, lastToken(args)
		}
		return completeColumns, lastToken(args)
	case completeTypes:
		if !strings.Contains(args, "(") {
			words := strings.Fields(strings.ToLower(args))
			if len(words) >= 2 && words[1] == "from" {
				return completeSources, lastToken(args)
			}
			return completeNone, ""
		}
		idx := strings.LastIndexAny(args, ",(")
		seg := args[idx+1:]
		words := strings.Fields(seg)
		if len(words) >= 2 || (len(words) == 1 && strings.HasSuffix(seg, " ")) {
			return completeTypes, lastToken(args)
		}
		return completeNone, ""
	}
	return ctx, lastToken(args)
}

// completeTableNames returns registered table and view names.
func (c *replCompleter) completeTableNames(prefix string) []string {
	names := make([]string, 0, len(c.sess.tables))
	for name := range c.sess.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return filterPrefix(names, prefix)
}

// completeColumnRef handles bare columns, table.column, and functions.
func (c *replCompleter) completeColumnRef(prefix string) []string {
	if strings.Contains(prefix, ".") {
		parts := strings.SplitN(prefix, ".", 2)
		var candidates []string
		for _, col := range c.sess.tableColumns(parts[0]) {
			candidates = append(candidates, parts[0]+"."+col)
		}
		return filterPrefix(candidates, prefix)
	}
	var candidates []string
	for name := range c.sess.tables {
		candidates = append(candidates, name)
	}
	candidates = append(candidates, c.sess.rootColumns()...)
	candidates = append(candidates, functionNames...)
	candidates = dedup(candidates)
	sort.Strings(candidates)
	return filterPrefix(candidates, prefix)
}

// tableColumns returns the column names of a registered table, or nil.
func (s *Session) tableColumns(name string) []string {
	id, ok := s.tables[name]
	if !ok {
		return nil
	}
	return s.g.SchemaOf(id).Names()
}

// rootColumns returns the column names of the current pipeline, or nil.
func (s *Session) rootColumns() []string {
	if s.root == ir.InvalidNode {
		return nil
	}
	return s.g.SchemaOf(s.root).Names()
}

// filterPrefix returns items that start with prefix (case-insensitive).
func filterPrefix(items []string, prefix string) []string {
	if prefix == "" {
		result := make([]string, len(items))
		copy(result, items)
		return result
	}
	lowerPrefix := strings.ToLower(prefix)
	var result []string
	for _, item := range items {
		if strings.HasPrefix(strings.ToLower(item), lowerPrefix) {
			result = append(result, item)
		}
	}
	return result
}

// dedup removes duplicate strings, keeping first occurrence order.
func dedup(items []string) []string {
	seen := make(map[string]bool, len(items))
	var result []string
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}

// lastToken returns the trailing token after the last space, comma or tab.
func lastToken(s string) string {
	lastSep := -1
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ' ' || s[i] == ',' || s[i] == '\t' {
			lastSep = i
			break
		}
	}
	if lastSep >= 0 {
		return s[lastSep+1:]
	}
	return s
}
