package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bawdo/goshawk/compilers"
	"github.com/bawdo/goshawk/internal/debug"
	"github.com/bawdo/goshawk/ir"
	"github.com/bawdo/goshawk/rewrite"
)

// compileOpts reflects the session toggles. exec always binds params
// regardless of the display setting.
func (s *Session) compileOpts(forceParams bool) []compilers.Option {
	var opts []compilers.Option
	if s.parameterize || forceParams {
		opts = append(opts, compilers.WithParams())
	} else {
		opts = append(opts, compilers.WithoutParams())
	}
	if s.pretty {
		opts = append(opts, compilers.WithFormatting())
	}
	return opts
}

func (s *Session) cmdSQL(string) error {
	root, err := s.currentRoot()
	if err != nil {
		return err
	}
	norm, err := rewrite.Normalize(s.g, root)
	if err != nil {
		return err
	}
	start := time.Now()
	res, err := s.cache.Compile(s.g, norm, s.dialect, s.compileOpts(false)...)
	if err != nil {
		return err
	}
	debug.Debug("compiled query", "dialect", s.dialect.Name, "elapsed", time.Since(start))
	if s.pretty {
		fmt.Fprintf(s.out, "%s;\n", res.SQL)
	} else {
		fmt.Fprintf(s.out, "  %s;\n", res.SQL)
	}
	if len(res.Params) > 0 {
		fmt.Fprintf(s.out, "  Params: %v\n", res.Params)
	}
	return nil
}

// cmdPlan prints the plan listing. The output round-trips through
// 'goshawk compile -f', so it is not indented.
func (s *Session) cmdPlan(args string) error {
	root, err := s.currentRoot()
	if err != nil {
		return err
	}
	switch strings.TrimSpace(args) {
	case "":
	case "norm":
		root, err = rewrite.Normalize(s.g, root)
		if err != nil {
			return err
		}
	default:
		return errors.New("usage: plan [norm]")
	}
	dump := s.g.Dump(root)
	if !strings.HasSuffix(dump, "\n") {
		dump += "\n"
	}
	fmt.Fprint(s.out, dump)
	return nil
}

func (s *Session) cmdFingerprint(string) error {
	root, err := s.currentRoot()
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, s.g.Fingerprint(root))
	return nil
}

func (s *Session) cmdSchema(args string) error {
	args = strings.TrimSpace(args)
	var id ir.NodeID
	if args != "" {
		t, ok := s.tables[args]
		if !ok {
			return fmt.Errorf("unknown table %q", args)
		}
		id = t
	} else {
		root, err := s.currentRoot()
		if err != nil {
			return err
		}
		id = root
	}
	fmt.Fprint(s.out, formatSchema(s.g.SchemaOf(id), "  "))
	return nil
}

func (s *Session) cmdDot(args string) error {
	file := strings.TrimSpace(args)
	if file == "" {
		return errors.New("usage: dot <file>")
	}
	root, err := s.currentRoot()
	if err != nil {
		return err
	}
	if err := os.WriteFile(file, []byte(s.g.Dot(root)), 0o600); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Wrote DOT to %s\n", file)
	return nil
}

func (s *Session) cmdEngine(args string) error {
	args = strings.TrimSpace(args)
	if args == "" {
		fmt.Fprintf(s.out, "engine: %s (available: ansi, mysql, postgres, sqlite)\n", s.engine)
		return nil
	}
	d, err := dialectByName(args)
	if err != nil {
		return err
	}
	s.engine = d.Name
	s.dialect = d
	fmt.Fprintf(s.out, "engine set to %s\n", d.Name)
	return nil
}

func (s *Session) cmdParameterize(args string) error {
	v, err := toggleFlag(args, s.parameterize)
	if err != nil {
		return err
	}
	s.parameterize = v
	fmt.Fprintf(s.out, "parameterize: %s\n", onOff(v))
	return nil
}

func (s *Session) cmdPretty(args string) error {
	v, err := toggleFlag(args, s.pretty)
	if err != nil {
		return err
	}
	s.pretty = v
	fmt.Fprintf(s.out, "pretty: %s\n", onOff(v))
	return nil
}

func toggleFlag(args string, cur bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "":
		return !cur, nil
	case "on", "true":
		return true, nil
	case "off", "false":
		return false, nil
	}
	return cur, fmt.Errorf("expected 'on' or 'off', got %q", args)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

const helpText = `Query building:
  table <name> (<col> <type>, ...)  declare a table schema
  table <name> from avro <file>     declare from an Avro schema or OCF file
  table <name> from db [<dbtable>]  declare from a live database table
  from <table>                      start a query
  select <expr> [as <name>], ...    project columns
  mutate <expr> as <name>, ...      add or replace columns
  filter <predicate>, ...           keep rows matching every predicate
  group [by] <expr>, ...            stage grouping keys for aggregate
  aggregate <expr> as <name>, ...   aggregate using the staged group keys
  sort [by] <expr> [asc|desc] [nulls first|last], ...
  limit <count> [<offset>]          keep at most count rows
  offset <n>                        adjust the offset of the last limit
  distinct                          drop duplicate rows
  unnest <column>                   expand an array column into rows
  join <table> on <pred>            inner join (also: left join, right join,
                                    full join, semi join, anti join, cross join)
  union | union all | intersect | intersect all | except | except all
                                    queue a set operation over the current query
  view <name>                       save the current query as a named view
  reset                             clear the current query

Inspection:
  sql                               compile the current query
  plan [norm]                       print the plan, optionally normalized
  schema [<table>]                  print the schema
  fingerprint                       print the plan fingerprint
  dot <file>                        write the plan as Graphviz DOT
  tables                            list registered tables and views

Settings:
  engine [<name>]                   show or set the SQL dialect
  parameterize [on|off]             toggle bound parameters in compiled SQL
  pretty [on|off]                   toggle formatted SQL

Database:
  connect [<dsn>]                   connect (no argument: wizard or reconnect)
  disconnect                        close the connection
  exec                              compile and run against the connection

exit | quit                         leave the repl
`

func (s *Session) cmdHelp(string) error {
	fmt.Fprint(s.out, helpText)
	return nil
}
