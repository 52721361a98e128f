package main

import (
	"sort"

	"github.com/bawdo/goshawk/ir"
)

// commandEntry binds a command prefix to its handler and the completion
// context for its arguments. Hidden entries are aliases that dispatch but
// do not advertise themselves.
type commandEntry struct {
	prefix  string
	handler func(args string) error
	context completionContext
	hidden  bool
}

// initCommands builds the dispatch table, longest prefix first so
// 'union all' is tried before 'union' and 'left join' before 'limit'.
func (s *Session) initCommands() []commandEntry {
	cmds := []commandEntry{
		{prefix: "table", handler: s.cmdTable, context: completeTypes},
		{prefix: "tables", handler: s.cmdTables},
		{prefix: "from", handler: s.cmdFrom, context: completeTables},
		{prefix: "select", handler: s.cmdSelect, context: completeColumns},
		{prefix: "mutate", handler: s.cmdMutate, context: completeColumns},
		{prefix: "filter", handler: s.cmdFilter, context: completeColumns},
		{prefix: "where", handler: s.cmdFilter, context: completeColumns, hidden: true},
		{prefix: "group", handler: s.cmdGroup, context: completeColumns},
		{prefix: "aggregate", handler: s.cmdAggregate, context: completeColumns},
		{prefix: "agg", handler: s.cmdAggregate, context: completeColumns, hidden: true},
		{prefix: "sort", handler: s.cmdSort, context: completeOrder},
		{prefix: "order", handler: s.cmdSort, context: completeOrder, hidden: true},
		{prefix: "limit", handler: s.cmdLimit},
		{prefix: "offset", handler: s.cmdOffset},
		{prefix: "distinct", handler: s.cmdDistinct},
		{prefix: "unnest", handler: s.cmdUnnest, context: completeColumns},
		{prefix: "join", handler: s.joinCommand(ir.InnerJoin, "join"), context: completeJoin},
		{prefix: "inner join", handler: s.joinCommand(ir.InnerJoin, "inner join"), context: completeJoin, hidden: true},
		{prefix: "left join", handler: s.joinCommand(ir.LeftOuterJoin, "left join"), context: completeJoin},
		{prefix: "right join", handler: s.joinCommand(ir.RightOuterJoin, "right join"), context: completeJoin},
		{prefix: "full join", handler: s.joinCommand(ir.FullOuterJoin, "full join"), context: completeJoin},
		{prefix: "semi join", handler: s.joinCommand(ir.SemiJoin, "semi join"), context: completeJoin},
		{prefix: "anti join", handler: s.joinCommand(ir.AntiJoin, "anti join"), context: completeJoin},
		{prefix: "cross join", handler: s.joinCommand(ir.CrossJoin, "cross join"), context: completeTables},
		{prefix: "union all", handler: s.setOpCommand(ir.UnionAll)},
		{prefix: "union", handler: s.setOpCommand(ir.Union)},
		{prefix: "intersect all", handler: s.setOpCommand(ir.IntersectAll)},
		{prefix: "intersect", handler: s.setOpCommand(ir.Intersect)},
		{prefix: "except all", handler: s.setOpCommand(ir.ExceptAll)},
		{prefix: "except", handler: s.setOpCommand(ir.Except)},
		{prefix: "view", handler: s.cmdView},
		{prefix: "sql", handler: s.cmdSQL},
		{prefix: "tosql", handler: s.cmdSQL, hidden: true},
		{prefix: "plan", handler: s.cmdPlan},
		{prefix: "schema", handler: s.cmdSchema, context: completeTables},
		{prefix: "fingerprint", handler: s.cmdFingerprint},
		{prefix: "dot", handler: s.cmdDot},
		{prefix: "engine", handler: s.cmdEngine, context: completeEngines},
		{prefix: "parameterize", handler: s.cmdParameterize},
		{prefix: "params", handler: s.cmdParameterize, hidden: true},
		{prefix: "pretty", handler: s.cmdPretty},
		{prefix: "connect", handler: s.cmdConnect},
		{prefix: "disconnect", handler: s.cmdDisconnect},
		{prefix: "exec", handler: s.cmdExec},
		{prefix: "run", handler: s.cmdExec, hidden: true},
		{prefix: "reset", handler: s.cmdReset},
		{prefix: "help", handler: s.cmdHelp},
	}
	sort.Slice(cmds, func(i, j int) bool {
		return len(cmds[i].prefix) > len(cmds[j].prefix)
	})
	return cmds
}

// commandNames lists the visible command prefixes for completion, plus the
// loop-level exit words.
func (s *Session) commandNames() []string {
	names := make([]string, 0, len(s.commands)+2)
	for _, c := range s.commands {
		if !c.hidden {
			names = append(names, c.prefix)
		}
	}
	names = append(names, "exit", "quit")
	sort.Strings(names)
	return names
}
