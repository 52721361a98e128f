package ir

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/bawdo/goshawk/datatypes"
)

// NodeID addresses a node inside its Graph. Ids are dense, start at zero, and
// never change once assigned.
type NodeID int32

// InvalidNode is returned alongside errors from constructors.
const InvalidNode NodeID = -1

// OrderDirection represents ASC or DESC ordering.
type OrderDirection int

const (
	Asc OrderDirection = iota
	Desc
)

func (d OrderDirection) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// NullsDirection controls NULLS FIRST/LAST positioning.
type NullsDirection int

const (
	NullsDefault NullsDirection = iota
	NullsFirst
	NullsLast
)

func (d NullsDirection) String() string {
	switch d {
	case NullsFirst:
		return "nulls_first"
	case NullsLast:
		return "nulls_last"
	}
	return "nulls_default"
}

// SortSpec carries the direction flags of one sort key. The key expression
// itself lives in the node's inputs.
type SortSpec struct {
	Direction OrderDirection
	Nulls     NullsDirection
}

// node is one interned operator. inputs reference other nodes in the same
// graph; extra holds the per-operator parameters that are not node
// references.
type node struct {
	op     Op
	inputs []NodeID
	dtype  datatypes.DataType
	schema datatypes.Schema
	extra  any
}

// Per-operator parameter payloads. Everything a node carries beyond its
// operator, inputs, and resolved type lives in one of these.
type (
	// TableParams names a base relation; its schema is the node's schema.
	TableParams struct {
		Name string
	}

	// ViewParams names a reference wrapper that gives the wrapped relation
	// a distinct identity, primarily for self joins.
	ViewParams struct {
		Name string
	}

	// ProjectParams carries the output column names, parallel to the
	// expression inputs that follow the child.
	ProjectParams struct {
		Names []string
	}

	// SortParams carries one SortSpec per key expression input.
	SortParams struct {
		Specs []SortSpec
	}

	// LimitParams carries the row count and offset.
	LimitParams struct {
		Count  int64
		Offset int64
	}

	// AggregateParams names the grouping keys and aggregate outputs, in
	// input order after the child.
	AggregateParams struct {
		GroupNames []string
		AggNames   []string
	}

	// JoinParams carries the join type.
	JoinParams struct {
		Type JoinType
	}

	// SetOperationParams carries the set operation type.
	SetOperationParams struct {
		Type SetOpType
	}

	// UnnestParams names the array column the operator expands into rows.
	UnnestParams struct {
		Column string
	}

	// ColumnRefParams carries the ordinal of the referenced column in the
	// input relation's schema.
	ColumnRefParams struct {
		Index int
	}

	// FieldParams names the struct field a Field access reads.
	FieldParams struct {
		Name string
	}

	// LiteralParams carries the constant value. Value is one of nil, bool,
	// int64, uint64, float64, string, or []byte; temporal and decimal
	// literals use their canonical string forms.
	LiteralParams struct {
		Value any
	}

	// ExistsParams marks a NOT EXISTS test.
	ExistsParams struct {
		Negated bool
	}

	// CaseParams records whether the trailing input is an ELSE branch.
	CaseParams struct {
		HasElse bool
	}

	// ExtractParams carries the date part to extract.
	ExtractParams struct {
		Part DatePart
	}

	// ReductionParams carries the DISTINCT flag of Sum, Mean, and Count.
	ReductionParams struct {
		Distinct bool
	}

	// WindowParams splits the inputs after the wrapped function into
	// partition and order keys, and carries the frame. A nil frame means
	// the default frame has not been resolved yet.
	WindowParams struct {
		PartitionCount int
		OrderCount     int
		Specs          []SortSpec
		Frame          *WindowFrame
	}
)

// key renders the canonical interning key of a node. Two nodes are the same
// node exactly when their keys are equal.
func (n node) key() string {
	var sb strings.Builder
	sb.WriteString(n.op.String())
	sb.WriteByte('|')
	sb.WriteString(n.dtype.String())
	sb.WriteByte('|')
	if n.op.IsRelational() {
		for _, f := range n.schema.Fields() {
			sb.WriteString(f.Name)
			sb.WriteByte(':')
			sb.WriteString(f.Type.String())
			sb.WriteByte(';')
		}
	}
	sb.WriteByte('|')
	for _, in := range n.inputs {
		sb.WriteString(strconv.Itoa(int(in)))
		sb.WriteByte(',')
	}
	sb.WriteByte('|')
	writeParams(&sb, n.extra)
	return sb.String()
}

func writeParams(sb *strings.Builder, extra any) {
	switch p := extra.(type) {
	case nil:
	case TableParams:
		sb.WriteString(p.Name)
	case ViewParams:
		sb.WriteString(p.Name)
	case ProjectParams:
		for _, name := range p.Names {
			sb.WriteString(name)
			sb.WriteByte(',')
		}
	case SortParams:
		writeSpecs(sb, p.Specs)
	case LimitParams:
		fmt.Fprintf(sb, "%d,%d", p.Count, p.Offset)
	case AggregateParams:
		for _, name := range p.GroupNames {
			sb.WriteString(name)
			sb.WriteByte(',')
		}
		sb.WriteByte('/')
		for _, name := range p.AggNames {
			sb.WriteString(name)
			sb.WriteByte(',')
		}
	case JoinParams:
		sb.WriteString(p.Type.String())
	case SetOperationParams:
		sb.WriteString(p.Type.String())
	case UnnestParams:
		sb.WriteString(p.Column)
	case ColumnRefParams:
		sb.WriteString(strconv.Itoa(p.Index))
	case FieldParams:
		sb.WriteString(p.Name)
	case LiteralParams:
		writeDatum(sb, p.Value)
	case ExistsParams:
		fmt.Fprintf(sb, "negated=%t", p.Negated)
	case CaseParams:
		fmt.Fprintf(sb, "else=%t", p.HasElse)
	case ExtractParams:
		sb.WriteString(p.Part.String())
	case ReductionParams:
		fmt.Fprintf(sb, "distinct=%t", p.Distinct)
	case WindowParams:
		fmt.Fprintf(sb, "%d/%d/", p.PartitionCount, p.OrderCount)
		writeSpecs(sb, p.Specs)
		sb.WriteByte('/')
		if p.Frame != nil {
			sb.WriteString(p.Frame.dumpString())
		}
	default:
		panic(fmt.Sprintf("ir: unencodable node params %T", extra))
	}
}

func writeSpecs(sb *strings.Builder, specs []SortSpec) {
	for _, s := range specs {
		sb.WriteString(s.Direction.String())
		sb.WriteByte(':')
		sb.WriteString(s.Nulls.String())
		sb.WriteByte(',')
	}
}

// writeDatum renders a literal value deterministically. Kind prefixes keep
// values of different Go types from colliding.
func writeDatum(sb *strings.Builder, v any) {
	switch v := v.(type) {
	case nil:
		sb.WriteString("null")
	case bool:
		fmt.Fprintf(sb, "b:%t", v)
	case int64:
		fmt.Fprintf(sb, "i:%d", v)
	case uint64:
		fmt.Fprintf(sb, "u:%d", v)
	case float64:
		sb.WriteString("f:")
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	case string:
		fmt.Fprintf(sb, "s:%q", v)
	case []byte:
		sb.WriteString("x:")
		sb.WriteString(hex.EncodeToString(v))
	default:
		panic(fmt.Sprintf("ir: unencodable literal value %T", v))
	}
}
