package parser

import (
	"testing"

	"github.com/bawdo/goshawk/datatypes"
	"github.com/bawdo/goshawk/internal/testutil"
	"github.com/bawdo/goshawk/ir"
)

// assertPlanRoundTrip checks both directions interning gives us: parsing a
// dump back into its own graph returns the original node, and parsing it
// into a fresh graph reproduces the fingerprint.
func assertPlanRoundTrip(t *testing.T, g *ir.Graph, root ir.NodeID) {
	t.Helper()
	text := g.Dump(root)

	same, err := ParsePlan(g, text)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, same, root)

	fresh := ir.NewGraph()
	rebuilt, err := ParsePlan(fresh, text)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, fresh.Fingerprint(rebuilt), g.Fingerprint(root))
}

func TestPlanRoundTripScanFilterProject(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := airlinesTable(t, g)

	late := must(t)(g.Greater(column(t, g, tbl, "arrdelay"), intLit(t, g, 10)))
	known := must(t)(g.NotNull(column(t, g, tbl, "dest")))
	flt := must(t)(g.Filter(tbl, late, known))
	total := must(t)(g.Add(column(t, g, flt, "arrdelay"), column(t, g, flt, "depdelay")))
	pair := must(t)(g.StringConcat(column(t, g, flt, "origin"), column(t, g, flt, "dest")))
	root := must(t)(g.Project(flt, []string{"route", "total"}, []ir.NodeID{pair, total}))

	assertPlanRoundTrip(t, g, root)
}

func TestPlanRoundTripSortLimitDistinct(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := airlinesTable(t, g)

	srt := must(t)(g.Sort(tbl,
		[]ir.NodeID{column(t, g, tbl, "arrdelay"), column(t, g, tbl, "dest")},
		[]ir.SortSpec{{Direction: ir.Desc, Nulls: ir.NullsFirst}, {}}))
	lim := must(t)(g.Limit(srt, 20, 5))
	root := must(t)(g.Distinct(lim))

	assertPlanRoundTrip(t, g, root)
}

func TestPlanRoundTripAggregate(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := airlinesTable(t, g)

	arr := column(t, g, tbl, "arrdelay")
	agg := must(t)(g.Aggregate(tbl,
		[]string{"dest"}, []ir.NodeID{column(t, g, tbl, "dest")},
		[]string{"n", "avg_delay", "distinct_total"},
		[]ir.NodeID{
			must(t)(g.CountStar(tbl)),
			must(t)(g.Mean(arr, false)),
			must(t)(g.Sum(arr, true)),
		}))
	busy := must(t)(g.Greater(column(t, g, agg, "n"), intLit(t, g, 10)))
	root := must(t)(g.Filter(agg, busy))

	assertPlanRoundTrip(t, g, root)
}

func TestPlanRoundTripJoins(t *testing.T) {
	t.Parallel()
	types := []struct {
		name string
		typ  ir.JoinType
	}{
		{name: "inner", typ: ir.InnerJoin},
		{name: "left outer", typ: ir.LeftOuterJoin},
		{name: "right outer", typ: ir.RightOuterJoin},
		{name: "full outer", typ: ir.FullOuterJoin},
		{name: "semi", typ: ir.SemiJoin},
		{name: "anti", typ: ir.AntiJoin},
	}
	for _, tt := range types {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := ir.NewGraph()
			al := airlinesTable(t, g)
			ap := airportsTable(t, g)
			on := must(t)(g.Equals(column(t, g, al, "dest"), column(t, g, ap, "code")))
			root := must(t)(g.Join(tt.typ, al, ap, on))
			assertPlanRoundTrip(t, g, root)
		})
	}

	t.Run("cross", func(t *testing.T) {
		t.Parallel()
		g := ir.NewGraph()
		al := airlinesTable(t, g)
		ap := airportsTable(t, g)
		root := must(t)(g.Join(ir.CrossJoin, al, ap))
		assertPlanRoundTrip(t, g, root)
	})
}

func TestPlanRoundTripSetOps(t *testing.T) {
	t.Parallel()
	types := []struct {
		name string
		typ  ir.SetOpType
	}{
		{name: "union", typ: ir.Union},
		{name: "union all", typ: ir.UnionAll},
		{name: "intersect all", typ: ir.IntersectAll},
		{name: "except", typ: ir.Except},
	}
	for _, tt := range types {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := ir.NewGraph()
			al := airlinesTable(t, g)
			ap := airportsTable(t, g)
			left := must(t)(g.Project(al, []string{"dest"}, []ir.NodeID{column(t, g, al, "dest")}))
			right := must(t)(g.Project(ap, []string{"dest"}, []ir.NodeID{column(t, g, ap, "dest")}))
			root := must(t)(g.SetOperation(tt.typ, left, right))
			assertPlanRoundTrip(t, g, root)
		})
	}
}

func TestPlanRoundTripWindowWithFrame(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := airlinesTable(t, g)

	lagged := must(t)(g.Lag(column(t, g, tbl, "arrdelay"), intLit(t, g, 1)))
	win := must(t)(g.Window(lagged,
		[]ir.NodeID{column(t, g, tbl, "dest")},
		[]ir.NodeID{column(t, g, tbl, "depdelay")},
		[]ir.SortSpec{{Direction: ir.Desc, Nulls: ir.NullsLast}},
		ir.RowsBetween(ir.Preceding(3), ir.CurrentRow())))
	root := must(t)(g.Project(tbl,
		[]string{"dest", "previous"},
		[]ir.NodeID{column(t, g, tbl, "dest"), win}))

	assertPlanRoundTrip(t, g, root)
}

func TestPlanRoundTripSelfJoinView(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := airlinesTable(t, g)

	other := must(t)(g.View(tbl, "other"))
	chain := must(t)(g.Equals(column(t, g, tbl, "dest"), column(t, g, other, "origin")))
	root := must(t)(g.Join(ir.InnerJoin, tbl, other, chain))

	assertPlanRoundTrip(t, g, root)
}

func TestPlanRoundTripExistsSubquery(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	al := airlinesTable(t, g)
	ap := airportsTable(t, g)

	// The subquery predicate references the outer table, which the dump
	// lists first in dependency order.
	match := must(t)(g.Equals(column(t, g, ap, "code"), column(t, g, al, "dest")))
	sub := must(t)(g.Filter(ap, match))

	served := must(t)(g.Filter(al, must(t)(g.Exists(sub, false))))
	assertPlanRoundTrip(t, g, served)

	unserved := must(t)(g.Filter(al, must(t)(g.Exists(sub, true))))
	assertPlanRoundTrip(t, g, unserved)
}

func TestPlanRoundTripUnnestCompositeAccess(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	_, tbl := compositeScope(t, g)

	un := must(t)(g.Unnest(tbl, "tags"))
	lat := must(t)(g.Field(column(t, g, un, "geo"), "lat"))
	root := must(t)(g.Project(un, []string{"tag", "lat"},
		[]ir.NodeID{column(t, g, un, "tags"), lat}))
	assertPlanRoundTrip(t, g, root)

	first := must(t)(g.ElementAt(column(t, g, tbl, "tags"), intLit(t, g, 0)))
	flat := must(t)(g.Project(tbl, []string{"first_tag"}, []ir.NodeID{first}))
	assertPlanRoundTrip(t, g, flat)
}

func TestPlanRoundTripQuotedNamesAndRichTypes(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl, err := g.Table("flight stats", datatypes.MustSchema(
		datatypes.Field{Name: "total count", Type: datatypes.Int64},
		datatypes.Field{Name: "avg delay", Type: datatypes.Decimal(9, 2)},
		datatypes.Field{Name: "tags", Type: datatypes.Array(datatypes.String)},
		datatypes.Field{Name: "attrs", Type: datatypes.Map(datatypes.String.AsNonNullable(), datatypes.Int64)},
		datatypes.Field{Name: "pos", Type: datatypes.Struct(
			datatypes.Field{Name: "lat", Type: datatypes.Float64},
			datatypes.Field{Name: "lon", Type: datatypes.Float64},
		)},
		datatypes.Field{Name: "seen", Type: datatypes.Timestamp("UTC")},
	))
	testutil.AssertNoError(t, err)

	busy := must(t)(g.Greater(column(t, g, tbl, "total count"), intLit(t, g, 100)))
	flt := must(t)(g.Filter(tbl, busy))
	root := must(t)(g.Project(flt,
		[]string{"how many", "avg delay"},
		[]ir.NodeID{column(t, g, flt, "total count"), column(t, g, flt, "avg delay")}))

	assertPlanRoundTrip(t, g, root)
}

func TestPlanRoundTripTypedLiteralOutputs(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := airlinesTable(t, g)

	root := must(t)(g.Project(tbl,
		[]string{"big", "bin", "money", "seen", "gap", "drop"},
		[]ir.NodeID{
			must(t)(g.Literal(uint64(9223372036854775808))),
			must(t)(g.Literal([]byte{0x1a, 0x2b})),
			must(t)(g.TypedLiteral("12.50", datatypes.Decimal(12, 2))),
			must(t)(g.TypedLiteral("2024-01-02 15:04:05", datatypes.Timestamp("UTC"))),
			must(t)(g.TypedLiteral(int64(90), datatypes.Interval("s"))),
			must(t)(g.Literal(-2.5)),
		}))

	assertPlanRoundTrip(t, g, root)
}

func TestPlanRoundTripScalarRoot(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := airlinesTable(t, g)

	root := must(t)(g.Add(column(t, g, tbl, "arrdelay"), intLit(t, g, 5)))
	assertPlanRoundTrip(t, g, root)
}

func TestPlanErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: "\n\n"},
		{name: "indented first line", input: "  r0.dest\n"},
		{name: "unknown operator", input: "r0 := Zorp[r1]\n"},
		{name: "unknown relation", input: "r1 := Filter[r0]\n  (r0.x > 1::!int64)\n"},
		{name: "malformed limit", input: "r0 := DatabaseTable: t\n  a  int64\n\nr1 := Limit[r0, n=ten, offset=0]\n"},
		{name: "bad column type", input: "r0 := DatabaseTable: t\n  a  whatsit\n"},
		{
			name:  "aggregate entry outside section",
			input: "r0 := DatabaseTable: t\n  a  int64\n\nr1 := Aggregate[r0]\n    n: count_star(r0)\n",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := ir.NewGraph()
			_, err := ParsePlan(g, tt.input)
			testutil.AssertError(t, err)
		})
	}
}
