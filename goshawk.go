// Package goshawk builds typed, engine-neutral query plans and compiles
// them to SQL.
//
// This package re-exports commonly used types and functions from subpackages
// for convenience. Advanced users can import subpackages directly:
//   - github.com/bawdo/goshawk/ir (plan graph and node constructors)
//   - github.com/bawdo/goshawk/datatypes (data types and schemas)
//   - github.com/bawdo/goshawk/exprs (fluent construction chains)
//   - github.com/bawdo/goshawk/parser (expression and plan-listing parsers)
//   - github.com/bawdo/goshawk/rewrite (normalization passes)
//   - github.com/bawdo/goshawk/compilers (SQL generation per dialect)
//
// Query execution lives in github.com/bawdo/goshawk/backends and is not
// re-exported here; importing it links the database drivers.
package goshawk

import (
	"github.com/bawdo/goshawk/compilers"
	"github.com/bawdo/goshawk/datatypes"
	"github.com/bawdo/goshawk/ir"
	"github.com/bawdo/goshawk/parser"
	"github.com/bawdo/goshawk/rewrite"
)

// --- Plan Graph ---

// Graph is the arena all plan nodes live in.
type Graph = ir.Graph

// NodeID identifies a node within a Graph.
type NodeID = ir.NodeID

// InvalidNode is the zero value for node references.
const InvalidNode = ir.InvalidNode

// NewGraph creates an empty plan graph.
func NewGraph() *ir.Graph {
	return ir.NewGraph()
}

// --- Types and Schemas ---

// DataType is a logical column type.
type DataType = datatypes.DataType

// Field is a named, typed column.
type Field = datatypes.Field

// Schema is an ordered set of fields.
type Schema = datatypes.Schema

// NewSchema builds a schema from fields, rejecting duplicate names.
func NewSchema(fields ...datatypes.Field) (datatypes.Schema, error) {
	return datatypes.NewSchema(fields...)
}

// ParseType parses a type expression such as "int64", "!string" or
// "array<decimal(12, 2)>".
func ParseType(input string) (datatypes.DataType, error) {
	return datatypes.Parse(input)
}

// SchemaFromAvro derives a schema from an Avro record schema in JSON form.
func SchemaFromAvro(schemaJSON string) (datatypes.Schema, error) {
	return datatypes.SchemaFromAvro(schemaJSON)
}

// --- Sorting, Joins and Set Operations ---

// SortSpec describes sort direction and null placement for one key.
type SortSpec = ir.SortSpec

// OrderDirection represents ASC or DESC ordering.
type OrderDirection = ir.OrderDirection

// NullsDirection controls NULLS FIRST/LAST positioning.
type NullsDirection = ir.NullsDirection

// JoinType selects the join flavor.
type JoinType = ir.JoinType

// SetOpType selects the set operation flavor.
type SetOpType = ir.SetOpType

const (
	Asc  = ir.Asc
	Desc = ir.Desc

	NullsDefault = ir.NullsDefault
	NullsFirst   = ir.NullsFirst
	NullsLast    = ir.NullsLast

	InnerJoin      = ir.InnerJoin
	LeftOuterJoin  = ir.LeftOuterJoin
	RightOuterJoin = ir.RightOuterJoin
	FullOuterJoin  = ir.FullOuterJoin
	CrossJoin      = ir.CrossJoin
	SemiJoin       = ir.SemiJoin
	AntiJoin       = ir.AntiJoin

	Union        = ir.Union
	UnionAll     = ir.UnionAll
	Intersect    = ir.Intersect
	IntersectAll = ir.IntersectAll
	Except       = ir.Except
	ExceptAll    = ir.ExceptAll
)

// --- Parsing ---

// Scope resolves bare column and table names while parsing expressions.
type Scope = parser.Scope

// NewScope creates an empty resolution scope.
func NewScope() *parser.Scope {
	return parser.NewScope()
}

// ParseExpr parses one scalar expression against the scope.
func ParseExpr(g *ir.Graph, scope *parser.Scope, input string) (ir.NodeID, error) {
	return parser.ParseExpr(g, scope, input)
}

// ParsePlan parses a plan listing, as produced by Graph.Dump.
func ParsePlan(g *ir.Graph, input string) (ir.NodeID, error) {
	return parser.ParsePlan(g, input)
}

// --- Compilation ---

// Dialect carries the engine-specific SQL rules.
type Dialect = compilers.Dialect

// Result is compiled SQL with its bound parameters and output schema.
type Result = compilers.Result

// Option adjusts compilation behavior.
type Option = compilers.Option

// Cache memoizes compilation results by plan fingerprint.
type Cache = compilers.Cache

// Postgres returns the PostgreSQL dialect.
func Postgres() compilers.Dialect {
	return compilers.Postgres()
}

// MySQL returns the MySQL dialect.
func MySQL() compilers.Dialect {
	return compilers.MySQL()
}

// SQLite returns the SQLite dialect.
func SQLite() compilers.Dialect {
	return compilers.SQLite()
}

// ANSI returns the plain ANSI dialect.
func ANSI() compilers.Dialect {
	return compilers.ANSI()
}

// WithParams enables bound parameters: literals render as placeholders
// and come back in Result.Params. Code that executes the result against
// a live database should compile with this option.
func WithParams() compilers.Option {
	return compilers.WithParams()
}

// WithoutParams inlines literals into the SQL text, the default.
func WithoutParams() compilers.Option {
	return compilers.WithoutParams()
}

// WithFormatting renders the SQL one clause per line.
func WithFormatting() compilers.Option {
	return compilers.WithFormatting()
}

// NewCache creates an empty compilation cache.
func NewCache() *compilers.Cache {
	return compilers.NewCache()
}

// Normalize applies the standard rewrite passes and returns the new root.
func Normalize(g *ir.Graph, root ir.NodeID) (ir.NodeID, error) {
	return rewrite.Normalize(g, root)
}

// Compile normalizes the plan rooted at root and generates SQL for the
// dialect. It is shorthand for rewrite.Normalize followed by
// compilers.Compile.
func Compile(g *ir.Graph, root ir.NodeID, d compilers.Dialect, opts ...compilers.Option) (compilers.Result, error) {
	norm, err := rewrite.Normalize(g, root)
	if err != nil {
		return compilers.Result{}, err
	}
	return compilers.Compile(g, norm, d, opts...)
}
