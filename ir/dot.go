package ir

import (
	"fmt"
	"strings"
)

// Color constants for DOT node categories.
const (
	colorRelation   = "#6CA6CD" // blue: relational operators
	colorColumn     = "#B0D4E8" // light blue: column references
	colorComparison = "#FFB347" // orange: comparisons, predicates
	colorLogical    = "#FFEB80" // yellow: AND, OR, NOT, CASE
	colorLiteral    = "#D3D3D3" // grey: literals
	colorJoin       = "#77DD77" // green: joins, set operations
	colorOrdering   = "#CDA0E0" // purple: sorts
	colorArithmetic = "#98FB98" // mint green: arithmetic, math
	colorFunction   = "#87CEEB" // sky blue: functions, aggregates, windows
)

// dotNode represents a single node in the DOT graph.
type dotNode struct {
	id    string
	label string
	color string
}

// dotEdge represents a directed edge between two nodes in the DOT graph.
type dotEdge struct {
	from  string
	to    string
	label string
}

// Dot renders the subgraph under root as Graphviz DOT text. Because the
// arena hash-conses, a node shared by several consumers appears once with
// multiple incoming edges, which makes reuse visible in the drawing.
func (g *Graph) Dot(root NodeID) string {
	dg := &dotGraph{g: g}
	for _, id := range g.Topo(root) {
		dg.emit(id)
	}
	return dg.render()
}

type dotGraph struct {
	g     *Graph
	nodes []dotNode
	edges []dotEdge
}

func (dg *dotGraph) emit(id NodeID) {
	g := dg.g
	dg.nodes = append(dg.nodes, dotNode{
		id:    fmt.Sprintf("n%d", id),
		label: dotLabel(g, id),
		color: dotColor(g.Op(id)),
	})
	for i, in := range g.Inputs(id) {
		dg.addEdge(id, in, edgeLabel(g, id, i))
	}
}

func (dg *dotGraph) addEdge(from, to NodeID, label string) {
	dg.edges = append(dg.edges, dotEdge{
		from:  fmt.Sprintf("n%d", from),
		to:    fmt.Sprintf("n%d", to),
		label: label,
	})
}

// render generates the complete DOT graph text.
func (dg *dotGraph) render() string {
	var sb strings.Builder

	sb.WriteString("digraph plan {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=filled, fontname=\"Helvetica\"];\n")
	sb.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n")

	for _, n := range dg.nodes {
		sb.WriteString(fmt.Sprintf("  %s [label=\"%s\", fillcolor=\"%s\"];\n",
			n.id, escapeLabel(n.label), n.color))
	}
	for _, e := range dg.edges {
		if e.label != "" {
			sb.WriteString(fmt.Sprintf("  %s -> %s [label=\"%s\"];\n", e.from, e.to, e.label))
		} else {
			sb.WriteString(fmt.Sprintf("  %s -> %s;\n", e.from, e.to))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

// escapeLabel escapes double quotes in DOT labels.
// Backslash sequences like \n are intentional DOT line breaks and are preserved.
func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}

func dotLabel(g *Graph, id NodeID) string {
	op := g.Op(id)
	switch op {
	case OpDatabaseTable:
		return "DatabaseTable\\n" + g.TableOf(id).Name
	case OpView:
		return "View\\n" + g.ViewOf(id).Name
	case OpJoin:
		return "Join\\n" + g.JoinOf(id).Type.String()
	case OpSetOperation:
		return "SetOperation\\n" + g.SetOperationOf(id).Type.String()
	case OpLimit:
		p := g.LimitOf(id)
		return fmt.Sprintf("Limit\\nn=%d offset=%d", p.Count, p.Offset)
	case OpUnnest:
		return "Unnest\\n" + g.UnnestOf(id).Column
	case OpField:
		return "Field\\n" + g.FieldOf(id).Name
	case OpLiteral:
		return "Literal\\n" + FormatLiteral(g.LiteralOf(id).Value)
	case OpColumnRef:
		return "ColumnRef\\n" + g.ColumnName(id)
	case OpCast:
		return "Cast\\n" + g.DataTypeOf(id).String()
	case OpExtract:
		return "Extract\\n" + g.ExtractOf(id).Part.String()
	case OpExists:
		if g.ExistsOf(id).Negated {
			return "NOT EXISTS"
		}
		return "EXISTS"
	case OpSum, OpMean, OpCount:
		if g.ReductionOf(id).Distinct {
			return op.String() + "\\nDISTINCT"
		}
		return op.String()
	case OpWindow:
		p := g.WindowOf(id)
		label := "Window"
		if p.Frame != nil {
			label += "\\n" + p.Frame.Type.String()
		}
		return label
	default:
		return op.String()
	}
}

func dotColor(op Op) string {
	switch {
	case op == OpJoin, op == OpSetOperation:
		return colorJoin
	case op == OpSort:
		return colorOrdering
	case op.IsRelational():
		return colorRelation
	case op == OpColumnRef:
		return colorColumn
	case op == OpLiteral:
		return colorLiteral
	case op.IsComparison(), op == OpBetween, op == OpIsNull, op == OpNotNull,
		op == OpInValues, op == OpExists:
		return colorComparison
	case op == OpAnd, op == OpOr, op == OpNot, op == OpCase:
		return colorLogical
	case op.IsBinaryArithmetic(), op == OpNegate:
		return colorArithmetic
	default:
		return colorFunction
	}
}

func edgeLabel(g *Graph, id NodeID, i int) string {
	switch g.Op(id) {
	case OpProject:
		if i == 0 {
			return "IN"
		}
		return g.ProjectOf(id).Names[i-1]
	case OpFilter:
		if i == 0 {
			return "IN"
		}
		return fmt.Sprintf("PRED[%d]", i-1)
	case OpSort:
		if i == 0 {
			return "IN"
		}
		return fmt.Sprintf("KEY[%d]", i-1)
	case OpAggregate:
		if i == 0 {
			return "IN"
		}
		p := g.AggregateOf(id)
		if i-1 < len(p.GroupNames) {
			return "GROUP " + p.GroupNames[i-1]
		}
		return "AGG " + p.AggNames[i-1-len(p.GroupNames)]
	case OpJoin:
		switch i {
		case 0:
			return "LEFT"
		case 1:
			return "RIGHT"
		}
		return fmt.Sprintf("ON[%d]", i-2)
	case OpSetOperation:
		if i == 0 {
			return "LEFT"
		}
		return "RIGHT"
	case OpWindow:
		p := g.WindowOf(id)
		switch {
		case i == 0:
			return "FN"
		case i-1 < p.PartitionCount:
			return fmt.Sprintf("PARTITION[%d]", i-1)
		default:
			return fmt.Sprintf("ORDER[%d]", i-1-p.PartitionCount)
		}
	case OpCase:
		if g.CaseOf(id).HasElse && i == g.NumInputs(id)-1 {
			return "ELSE"
		}
		if i%2 == 0 {
			return fmt.Sprintf("WHEN[%d]", i/2)
		}
		return fmt.Sprintf("THEN[%d]", i/2)
	case OpBetween:
		return [...]string{"EXPR", "LOW", "HIGH"}[i]
	case OpView, OpLimit, OpDistinct, OpCast, OpExists, OpCountStar:
		return ""
	}
	if g.NumInputs(id) == 1 {
		return ""
	}
	return fmt.Sprintf("ARG[%d]", i)
}
