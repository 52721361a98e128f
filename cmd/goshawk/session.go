package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ergochat/readline"

	"github.com/bawdo/goshawk/backends"
	"github.com/bawdo/goshawk/compilers"
	"github.com/bawdo/goshawk/datatypes"
	"github.com/bawdo/goshawk/ir"
	"github.com/bawdo/goshawk/parser"
)

const replPrompt = "goshawk> "

var errNoQuery = errors.New("no query defined (use 'from <table>' first)")

// pendingGroup holds grouping keys declared with 'group' until the next
// 'aggregate' consumes them.
type pendingGroup struct {
	names []string
	keys  []ir.NodeID
}

// setOpEntry is a finished query waiting on the left side of a set
// operation. The right side is whatever the user builds next.
type setOpEntry struct {
	typ  ir.SetOpType
	root ir.NodeID
}

// Session is the interactive query builder. Commands mutate the current
// pipeline root; inspection commands compile it on demand.
type Session struct {
	g      *ir.Graph
	tables map[string]ir.NodeID
	root   ir.NodeID

	engine       string
	dialect      compilers.Dialect
	parameterize bool
	pretty       bool

	pending *pendingGroup
	setOps  []setOpEntry

	commands []commandEntry
	cache    *compilers.Cache

	conn    *backends.Conn
	lastDSN string

	rl  *readline.Instance
	out io.Writer
}

// NewSession builds a session for the given engine. Unknown engines fall
// back to postgres; the caller is expected to have validated the name.
func NewSession(engine string) *Session {
	d, err := dialectByName(engine)
	if err != nil {
		d = compilers.Postgres()
	}
	s := &Session{
		g:            ir.NewGraph(),
		tables:       map[string]ir.NodeID{},
		root:         ir.InvalidNode,
		engine:       d.Name,
		dialect:      d,
		parameterize: true,
		cache:        compilers.NewCache(),
		out:          os.Stdout,
	}
	s.commands = s.initCommands()
	return s
}

// Close releases the database connection, if any.
func (s *Session) Close() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// Execute dispatches one input line to its command handler. Prefixes are
// matched longest first so 'union all' wins over 'union'.
func (s *Session) Execute(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	lower := strings.ToLower(line)
	for _, cmd := range s.commands {
		if lower == cmd.prefix {
			return cmd.handler("")
		}
		if strings.HasPrefix(lower, cmd.prefix+" ") {
			return cmd.handler(strings.TrimSpace(line[len(cmd.prefix)+1:]))
		}
	}
	return fmt.Errorf("unknown command: %s (type 'help' for commands)", strings.Fields(line)[0])
}

// currentRoot folds the pending set operation stack onto the current
// pipeline and returns the resulting relation.
func (s *Session) currentRoot() (ir.NodeID, error) {
	if len(s.setOps) == 0 {
		if s.root == ir.InvalidNode {
			return ir.InvalidNode, errNoQuery
		}
		return s.root, nil
	}
	if s.root == ir.InvalidNode {
		return ir.InvalidNode, errors.New("set operation pending; build the right side with 'from <table>'")
	}
	acc := s.setOps[0].root
	for i, entry := range s.setOps {
		right := s.root
		if i+1 < len(s.setOps) {
			right = s.setOps[i+1].root
		}
		next, err := s.g.SetOperation(entry.typ, acc, right)
		if err != nil {
			return ir.InvalidNode, err
		}
		acc = next
	}
	return acc, nil
}

func (s *Session) requireQuery() error {
	if s.root == ir.InvalidNode {
		return errNoQuery
	}
	return nil
}

// cmdTable registers a table. Three forms:
//
//	table flights (dest string, delay int64)
//	table flights from avro flights.avsc
//	table flights from db [dbname]
func (s *Session) cmdTable(args string) error {
	name, schema, err := s.tableSchema(args)
	if err != nil {
		return err
	}
	id, err := s.g.Table(name, schema)
	if err != nil {
		return err
	}
	s.tables[name] = id
	fmt.Fprintf(s.out, "Registered table %s (%d columns)\n", name, schema.Len())
	return nil
}

func (s *Session) tableSchema(args string) (string, datatypes.Schema, error) {
	fields := strings.Fields(args)
	if len(fields) >= 3 && strings.EqualFold(fields[1], "from") {
		name := fields[0]
		switch strings.ToLower(fields[2]) {
		case "avro":
			if len(fields) != 4 {
				return "", datatypes.Schema{}, errors.New("usage: table <name> from avro <file>")
			}
			schema, err := schemaFromAvroFile(fields[3])
			return name, schema, err
		case "db":
			if s.conn == nil {
				return "", datatypes.Schema{}, errors.New("not connected (use 'connect' first)")
			}
			dbTable := name
			if len(fields) == 4 {
				dbTable = fields[3]
			} else if len(fields) != 3 {
				return "", datatypes.Schema{}, errors.New("usage: table <name> from db [<dbtable>]")
			}
			schema, err := s.conn.TableSchema(s.ctx(), dbTable)
			return name, schema, err
		}
		return "", datatypes.Schema{}, fmt.Errorf("unknown table source %q (choose: avro, db)", fields[2])
	}
	return parseTableDecl(args)
}

// schemaFromAvroFile reads an Avro schema. A .avsc file holds the schema
// JSON directly; anything else is treated as an OCF data file.
func schemaFromAvroFile(path string) (datatypes.Schema, error) {
	if strings.HasSuffix(strings.ToLower(path), ".avsc") {
		data, err := os.ReadFile(path)
		if err != nil {
			return datatypes.Schema{}, err
		}
		return datatypes.SchemaFromAvro(string(data))
	}
	f, err := os.Open(path)
	if err != nil {
		return datatypes.Schema{}, err
	}
	defer f.Close()
	return datatypes.SchemaFromAvroOCF(f)
}

func (s *Session) cmdFrom(args string) error {
	name := strings.TrimSpace(args)
	if name == "" {
		return errors.New("usage: from <table>")
	}
	id, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("unknown table %q (declare it with 'table %s (...)')", name, name)
	}
	s.root = id
	s.pending = nil
	fmt.Fprintf(s.out, "from %s (%d columns)\n", name, s.g.SchemaOf(id).Len())
	return nil
}

func (s *Session) cmdSelect(args string) error {
	if err := s.requireQuery(); err != nil {
		return err
	}
	names, exprs, err := s.parseNamedExprs(args)
	if err != nil {
		return err
	}
	id, err := s.g.Project(s.root, names, exprs)
	if err != nil {
		return err
	}
	s.root = id
	fmt.Fprintf(s.out, "select %s\n", strings.Join(names, ", "))
	return nil
}

// cmdMutate projects every existing column, replacing or appending the
// named expressions.
func (s *Session) cmdMutate(args string) error {
	if err := s.requireQuery(); err != nil {
		return err
	}
	names, exprs, err := s.parseNamedExprs(args)
	if err != nil {
		return err
	}
	outNames := s.g.SchemaOf(s.root).Names()
	outExprs := make([]ir.NodeID, len(outNames))
	index := make(map[string]int, len(outNames))
	for i, n := range outNames {
		ref, err := s.g.ColumnRef(s.root, n)
		if err != nil {
			return err
		}
		outExprs[i] = ref
		index[n] = i
	}
	for i, n := range names {
		if j, ok := index[n]; ok {
			outExprs[j] = exprs[i]
			continue
		}
		outNames = append(outNames, n)
		outExprs = append(outExprs, exprs[i])
	}
	id, err := s.g.Project(s.root, outNames, outExprs)
	if err != nil {
		return err
	}
	s.root = id
	fmt.Fprintf(s.out, "mutate %s\n", strings.Join(names, ", "))
	return nil
}

func (s *Session) cmdFilter(args string) error {
	if err := s.requireQuery(); err != nil {
		return err
	}
	sc := s.scope()
	var preds []ir.NodeID
	for _, part := range splitTopLevelCommas(args) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := parser.ParseExpr(s.g, sc, part)
		if err != nil {
			return err
		}
		preds = append(preds, id)
	}
	if len(preds) == 0 {
		return errors.New("usage: filter <predicate>[, <predicate>...]")
	}
	id, err := s.g.Filter(s.root, preds...)
	if err != nil {
		return err
	}
	s.root = id
	fmt.Fprintf(s.out, "filter (%d predicates)\n", len(preds))
	return nil
}

func (s *Session) cmdGroup(args string) error {
	if err := s.requireQuery(); err != nil {
		return err
	}
	args = stripByKeyword(args)
	names, keys, err := s.parseNamedExprs(args)
	if err != nil {
		return err
	}
	s.pending = &pendingGroup{names: names, keys: keys}
	fmt.Fprintf(s.out, "group by %s\n", strings.Join(names, ", "))
	return nil
}

func (s *Session) cmdAggregate(args string) error {
	if err := s.requireQuery(); err != nil {
		return err
	}
	aggNames, aggs, err := s.parseNamedExprs(args)
	if err != nil {
		return err
	}
	var groupNames []string
	var groups []ir.NodeID
	if s.pending != nil {
		groupNames, groups = s.pending.names, s.pending.keys
	}
	id, err := s.g.Aggregate(s.root, groupNames, groups, aggNames, aggs)
	if err != nil {
		return err
	}
	s.root = id
	s.pending = nil
	fmt.Fprintf(s.out, "aggregate %s\n", strings.Join(aggNames, ", "))
	return nil
}

func (s *Session) cmdSort(args string) error {
	if err := s.requireQuery(); err != nil {
		return err
	}
	args = stripByKeyword(args)
	sc := s.scope()
	var keys []ir.NodeID
	var specs []ir.SortSpec
	for _, part := range splitTopLevelCommas(args) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		text, spec := parseSortPart(part)
		id, err := parser.ParseExpr(s.g, sc, text)
		if err != nil {
			return err
		}
		keys = append(keys, id)
		specs = append(specs, spec)
	}
	if len(keys) == 0 {
		return errors.New("usage: sort <expr> [asc|desc] [nulls first|last]")
	}
	id, err := s.g.Sort(s.root, keys, specs)
	if err != nil {
		return err
	}
	s.root = id
	fmt.Fprintf(s.out, "sort (%d keys)\n", len(keys))
	return nil
}

// stripByKeyword drops an optional leading 'by' so that 'group by x' and
// 'order by x' read naturally.
func stripByKeyword(args string) string {
	args = strings.TrimSpace(args)
	if len(args) > 3 && strings.EqualFold(args[:3], "by ") {
		args = strings.TrimSpace(args[3:])
	}
	return args
}

// parseSortPart strips the ordering suffixes off one sort key. Nulls
// placement comes last on the line, so it is peeled first.
func parseSortPart(part string) (string, ir.SortSpec) {
	spec := ir.SortSpec{Direction: ir.Asc, Nulls: ir.NullsDefault}
	lower := strings.ToLower(part)
	if strings.HasSuffix(lower, " nulls first") {
		spec.Nulls = ir.NullsFirst
		part = strings.TrimSpace(part[:len(part)-len(" nulls first")])
	} else if strings.HasSuffix(lower, " nulls last") {
		spec.Nulls = ir.NullsLast
		part = strings.TrimSpace(part[:len(part)-len(" nulls last")])
	}
	lower = strings.ToLower(part)
	if strings.HasSuffix(lower, " desc") {
		spec.Direction = ir.Desc
		part = strings.TrimSpace(part[:len(part)-len(" desc")])
	} else if strings.HasSuffix(lower, " asc") {
		part = strings.TrimSpace(part[:len(part)-len(" asc")])
	}
	return part, spec
}

func (s *Session) cmdLimit(args string) error {
	if err := s.requireQuery(); err != nil {
		return err
	}
	fields := strings.Fields(args)
	if len(fields) == 0 || len(fields) > 2 {
		return errors.New("usage: limit <count> [<offset>]")
	}
	count, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid count %q", fields[0])
	}
	var offset int64
	if len(fields) == 2 {
		offset, err = strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid offset %q", fields[1])
		}
	}
	id, err := s.g.Limit(s.root, count, offset)
	if err != nil {
		return err
	}
	s.root = id
	fmt.Fprintf(s.out, "limit %d offset %d\n", count, offset)
	return nil
}

// cmdOffset adjusts the offset of the topmost limit in place.
func (s *Session) cmdOffset(args string) error {
	if err := s.requireQuery(); err != nil {
		return err
	}
	offset, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid offset %q", strings.TrimSpace(args))
	}
	if s.g.Op(s.root) != ir.OpLimit {
		return errors.New("offset requires a limit (use 'limit <count> <offset>')")
	}
	params := s.g.LimitOf(s.root)
	child := s.g.Input(s.root, 0)
	id, err := s.g.Limit(child, params.Count, offset)
	if err != nil {
		return err
	}
	s.root = id
	fmt.Fprintf(s.out, "limit %d offset %d\n", params.Count, offset)
	return nil
}

func (s *Session) cmdDistinct(string) error {
	if err := s.requireQuery(); err != nil {
		return err
	}
	id, err := s.g.Distinct(s.root)
	if err != nil {
		return err
	}
	s.root = id
	fmt.Fprintln(s.out, "distinct")
	return nil
}

func (s *Session) cmdUnnest(args string) error {
	if err := s.requireQuery(); err != nil {
		return err
	}
	column := strings.TrimSpace(args)
	if column == "" || len(strings.Fields(column)) != 1 {
		return errors.New("usage: unnest <column>")
	}
	id, err := s.g.Unnest(s.root, column)
	if err != nil {
		return err
	}
	s.root = id
	fmt.Fprintf(s.out, "unnest %s\n", column)
	return nil
}

// joinCommand builds the handler for one join flavor. Cross joins take a
// bare table name; the others need an 'on' clause.
func (s *Session) joinCommand(typ ir.JoinType, label string) func(string) error {
	return func(args string) error {
		if err := s.requireQuery(); err != nil {
			return err
		}
		name, predText := args, ""
		if idx := indexFold(args, " on "); idx >= 0 {
			name, predText = args[:idx], args[idx+4:]
		}
		name = strings.TrimSpace(name)
		right, ok := s.tables[name]
		if !ok {
			return fmt.Errorf("unknown table %q", name)
		}
		if typ == ir.CrossJoin && strings.TrimSpace(predText) != "" {
			return errors.New("cross join takes no predicates")
		}
		if typ != ir.CrossJoin && strings.TrimSpace(predText) == "" {
			return fmt.Errorf("usage: %s <table> on <predicate>", label)
		}
		sc := s.scope()
		var preds []ir.NodeID
		for _, part := range splitTopLevelCommas(predText) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := parser.ParseExpr(s.g, sc, part)
			if err != nil {
				return err
			}
			preds = append(preds, id)
		}
		id, err := s.g.Join(typ, s.root, right, preds...)
		if err != nil {
			return err
		}
		s.root = id
		fmt.Fprintf(s.out, "%s %s\n", label, name)
		return nil
	}
}

// indexFold finds the first case-insensitive occurrence of sep outside
// parentheses.
func indexFold(s, sep string) int {
	depth := 0
	for i := 0; i+len(sep) <= len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && strings.EqualFold(s[i:i+len(sep)], sep) {
			return i
		}
	}
	return -1
}

// setOpCommand parks the current query on the set operation stack and
// waits for the user to build the right side.
func (s *Session) setOpCommand(typ ir.SetOpType) func(string) error {
	return func(string) error {
		if err := s.requireQuery(); err != nil {
			return err
		}
		s.setOps = append(s.setOps, setOpEntry{typ: typ, root: s.root})
		s.root = ir.InvalidNode
		s.pending = nil
		fmt.Fprintf(s.out, "%s queued; start the right side with 'from <table>'\n", typ)
		return nil
	}
}

// cmdView names the current query and registers it alongside the tables,
// then clears the pipeline.
func (s *Session) cmdView(args string) error {
	name := strings.TrimSpace(args)
	if name == "" || len(strings.Fields(name)) != 1 {
		return errors.New("usage: view <name>")
	}
	root, err := s.currentRoot()
	if err != nil {
		return err
	}
	id, err := s.g.View(root, name)
	if err != nil {
		return err
	}
	s.tables[name] = id
	s.root = ir.InvalidNode
	s.setOps = nil
	s.pending = nil
	fmt.Fprintf(s.out, "Registered view %s\n", name)
	return nil
}

func (s *Session) cmdReset(string) error {
	s.root = ir.InvalidNode
	s.setOps = nil
	s.pending = nil
	fmt.Fprintln(s.out, "Query cleared")
	return nil
}

func (s *Session) cmdTables(string) error {
	if len(s.tables) == 0 {
		fmt.Fprintln(s.out, "No tables registered")
		return nil
	}
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		id := s.tables[name]
		kind := "table"
		if s.g.Op(id) == ir.OpView {
			kind = "view"
		}
		fmt.Fprintf(s.out, "  %-6s %s (%d columns)\n", kind, name, s.g.SchemaOf(id).Len())
	}
	return nil
}
