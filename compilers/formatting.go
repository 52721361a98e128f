package compilers

import "strings"

// statement renders an assembled fragment to SQL text, compact on one line
// by default or clause-per-line under WithFormatting.
func (c *compiler) statement(f *fragment) string {
	if c.cfg.pretty {
		return prettyStatement(f)
	}
	return compactStatement(f)
}

func compactStatement(f *fragment) string {
	var sb strings.Builder
	if f.compound != "" {
		sb.WriteString(f.compound)
	} else {
		sb.WriteString("SELECT ")
		if f.distinct {
			sb.WriteString("DISTINCT ")
		}
		if len(f.projections) == 0 {
			sb.WriteString("*")
		} else {
			sb.WriteString(strings.Join(f.projections, ", "))
		}
		sb.WriteString(" FROM ")
		sb.WriteString(f.from)
		for _, j := range f.joins {
			sb.WriteString(" ")
			sb.WriteString(j)
		}
		writeClause(&sb, " WHERE ", f.wheres, " AND ")
		writeClause(&sb, " GROUP BY ", f.groups, ", ")
		writeClause(&sb, " HAVING ", f.havings, " AND ")
	}
	writeClause(&sb, " ORDER BY ", f.orders, ", ")
	if f.limit != "" {
		sb.WriteString(" LIMIT ")
		sb.WriteString(f.limit)
	}
	if f.offset != "" {
		sb.WriteString(" OFFSET ")
		sb.WriteString(f.offset)
	}
	return sb.String()
}

// prettyStatement puts each major clause on its own line. Lists continue
// with a leading comma, conjunctions with an indented AND.
func prettyStatement(f *fragment) string {
	var sb strings.Builder
	if f.compound != "" {
		sb.WriteString(f.compound)
	} else {
		sb.WriteString("SELECT")
		if f.distinct {
			sb.WriteString(" DISTINCT")
		}
		if len(f.projections) == 0 {
			sb.WriteString(" *")
		} else {
			sb.WriteString(" ")
			sb.WriteString(f.projections[0])
			for _, p := range f.projections[1:] {
				sb.WriteString("\n\t,")
				sb.WriteString(p)
			}
		}
		sb.WriteString("\nFROM ")
		sb.WriteString(f.from)
		for _, j := range f.joins {
			sb.WriteString("\n")
			sb.WriteString(j)
		}
		writeClause(&sb, "\nWHERE ", f.wheres, "\n\tAND ")
		writeClause(&sb, "\nGROUP BY ", f.groups, "\n\t,")
		writeClause(&sb, "\nHAVING ", f.havings, "\n\tAND ")
	}
	writeClause(&sb, "\nORDER BY ", f.orders, "\n\t,")
	if f.limit != "" {
		sb.WriteString("\nLIMIT ")
		sb.WriteString(f.limit)
	}
	if f.offset != "" {
		sb.WriteString("\nOFFSET ")
		sb.WriteString(f.offset)
	}
	return sb.String()
}

func writeClause(sb *strings.Builder, keyword string, items []string, sep string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(keyword)
	sb.WriteString(items[0])
	for _, item := range items[1:] {
		sb.WriteString(sep)
		sb.WriteString(item)
	}
}
