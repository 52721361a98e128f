package backends

import (
	"fmt"
	"strings"
)

// Result holds the rows one query delivered, already rendered to
// strings. NULL values appear as the literal "NULL".
type Result struct {
	Columns   []string
	Rows      [][]string
	Truncated bool
}

// String renders the result as an ASCII table with a row count footer.
func (r *Result) String() string {
	if len(r.Columns) == 0 {
		return "(no columns)\n"
	}

	widths := make([]int, len(r.Columns))
	for i, col := range r.Columns {
		widths[i] = len(col)
	}
	for _, row := range r.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	separator := buildSeparator(widths)
	b.WriteString(separator)
	for i, col := range r.Columns {
		fmt.Fprintf(&b, "| %-*s ", widths[i], col)
	}
	b.WriteString("|\n")
	b.WriteString(separator)
	for _, row := range r.Rows {
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprintf(&b, "| %-*s ", widths[i], cell)
			}
		}
		b.WriteString("|\n")
	}
	b.WriteString(separator)

	switch len(r.Rows) {
	case 0:
		b.WriteString("(0 rows)\n")
	case 1:
		b.WriteString("(1 row)\n")
	default:
		fmt.Fprintf(&b, "(%d rows)\n", len(r.Rows))
	}
	if r.Truncated {
		fmt.Fprintf(&b, "(truncated at %d rows)\n", MaxRows)
	}
	return b.String()
}

func buildSeparator(widths []int) string {
	var b strings.Builder
	for _, w := range widths {
		b.WriteString("+")
		b.WriteString(strings.Repeat("-", w+2))
	}
	b.WriteString("+\n")
	return b.String()
}
