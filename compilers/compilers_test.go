package compilers

import (
	"strings"
	"testing"

	"github.com/bawdo/goshawk/datatypes"
	"github.com/bawdo/goshawk/internal/testutil"
	"github.com/bawdo/goshawk/ir"
	"github.com/bawdo/goshawk/rewrite"
)

func airlinesTable(t *testing.T, g *ir.Graph) ir.NodeID {
	t.Helper()
	tbl, err := g.Table("airlines", datatypes.MustSchema(
		datatypes.Field{Name: "arrdelay", Type: datatypes.Int32},
		datatypes.Field{Name: "depdelay", Type: datatypes.Int32},
		datatypes.Field{Name: "dest", Type: datatypes.String},
		datatypes.Field{Name: "origin", Type: datatypes.String},
	))
	testutil.AssertNoError(t, err)
	return tbl
}

func flightsTable(t *testing.T, g *ir.Graph) ir.NodeID {
	t.Helper()
	tbl, err := g.Table("flights", datatypes.MustSchema(
		datatypes.Field{Name: "arrdelay", Type: datatypes.Int32},
		datatypes.Field{Name: "depdelay", Type: datatypes.Int32},
		datatypes.Field{Name: "dest", Type: datatypes.String},
		datatypes.Field{Name: "origin", Type: datatypes.String},
	))
	testutil.AssertNoError(t, err)
	return tbl
}

func airportsTable(t *testing.T, g *ir.Graph) ir.NodeID {
	t.Helper()
	tbl, err := g.Table("airports", datatypes.MustSchema(
		datatypes.Field{Name: "code", Type: datatypes.String.AsNonNullable()},
		datatypes.Field{Name: "dest", Type: datatypes.String},
	))
	testutil.AssertNoError(t, err)
	return tbl
}

func shipmentsTable(t *testing.T, g *ir.Graph) ir.NodeID {
	t.Helper()
	tbl, err := g.Table("shipments", datatypes.MustSchema(
		datatypes.Field{Name: "id", Type: datatypes.Int64},
		datatypes.Field{Name: "shipped_at", Type: datatypes.Timestamp("")},
		datatypes.Field{Name: "weight", Type: datatypes.Float64},
	))
	testutil.AssertNoError(t, err)
	return tbl
}

func eventsTable(t *testing.T, g *ir.Graph) ir.NodeID {
	t.Helper()
	tbl, err := g.Table("events", datatypes.MustSchema(
		datatypes.Field{Name: "id", Type: datatypes.Int64.AsNonNullable()},
		datatypes.Field{Name: "tags", Type: datatypes.Array(datatypes.String)},
		datatypes.Field{Name: "geo", Type: datatypes.Struct(
			datatypes.Field{Name: "lat", Type: datatypes.Float64},
			datatypes.Field{Name: "lon", Type: datatypes.Float64},
		)},
	))
	testutil.AssertNoError(t, err)
	return tbl
}

func column(t *testing.T, g *ir.Graph, rel ir.NodeID, name string) ir.NodeID {
	t.Helper()
	ref, err := g.ColumnRef(rel, name)
	testutil.AssertNoError(t, err)
	return ref
}

func project(t *testing.T, g *ir.Graph, child ir.NodeID, names []string, exprs []ir.NodeID) ir.NodeID {
	t.Helper()
	p, err := g.Project(child, names, exprs)
	testutil.AssertNoError(t, err)
	return p
}

func filter(t *testing.T, g *ir.Graph, child ir.NodeID, preds ...ir.NodeID) ir.NodeID {
	t.Helper()
	f, err := g.Filter(child, preds...)
	testutil.AssertNoError(t, err)
	return f
}

func sortBy(t *testing.T, g *ir.Graph, child ir.NodeID, keys []ir.NodeID, specs []ir.SortSpec) ir.NodeID {
	t.Helper()
	s, err := g.Sort(child, keys, specs)
	testutil.AssertNoError(t, err)
	return s
}

func lit(t *testing.T, g *ir.Graph, v any) ir.NodeID {
	t.Helper()
	l, err := g.Literal(v)
	testutil.AssertNoError(t, err)
	return l
}

func mustCompile(t *testing.T, g *ir.Graph, root ir.NodeID, d Dialect, opts ...Option) Result {
	t.Helper()
	res, err := Compile(g, root, d, opts...)
	testutil.AssertNoError(t, err)
	return res
}

func TestCompileTableScan(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := flightsTable(t, g)

	res := mustCompile(t, g, tbl, Postgres())

	testutil.AssertEqual(t, res.SQL, `SELECT * FROM "flights"`)
	testutil.AssertEqual(t, res.Schema.String(), g.SchemaOf(tbl).String())
	if res.Params != nil {
		t.Fatalf("expected no params, got %v", res.Params)
	}
}

func TestFilterAndProjectionShareOneStatement(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := flightsTable(t, g)
	late, err := g.Greater(column(t, g, tbl, "arrdelay"), lit(t, g, int64(10)))
	testutil.AssertNoError(t, err)
	flt := filter(t, g, tbl, late)
	root := project(t, g, flt, []string{"dest"}, []ir.NodeID{column(t, g, flt, "dest")})

	res := mustCompile(t, g, root, Postgres())

	testutil.AssertEqual(t, res.SQL,
		`SELECT "flights"."dest" FROM "flights" WHERE "flights"."arrdelay" > 10`)
}

func TestFilterOverProjectionWrapsDerivedTable(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := flightsTable(t, g)
	proj := project(t, g, tbl, []string{"dest"}, []ir.NodeID{column(t, g, tbl, "dest")})
	eq, err := g.Equals(column(t, g, proj, "dest"), lit(t, g, "LAX"))
	testutil.AssertNoError(t, err)
	root := filter(t, g, proj, eq)

	res := mustCompile(t, g, root, Postgres())

	testutil.AssertEqual(t, res.SQL,
		`SELECT * FROM (SELECT "flights"."dest" FROM "flights") AS "t0" WHERE "t0"."dest" = 'LAX'`)
}

// windowDeviationPlan is the arrival-delay deviation query: per-destination
// average delay as a window, the difference from it, non-null rows only,
// worst first.
func windowDeviationPlan(t *testing.T, g *ir.Graph) ir.NodeID {
	t.Helper()
	tbl := airlinesTable(t, g)
	arr := column(t, g, tbl, "arrdelay")
	avg, err := g.Mean(arr, false)
	testutil.AssertNoError(t, err)
	win, err := g.Window(avg, []ir.NodeID{column(t, g, tbl, "dest")}, nil, nil, nil)
	testutil.AssertNoError(t, err)
	dev, err := g.Subtract(arr, win)
	testutil.AssertNoError(t, err)
	proj := project(t, g, tbl,
		[]string{"arrdelay", "dest", "dest_avg", "dev"},
		[]ir.NodeID{arr, column(t, g, tbl, "dest"), win, dev})
	keep, err := g.NotNull(column(t, g, proj, "dev"))
	testutil.AssertNoError(t, err)
	flt := filter(t, g, proj, keep)
	srt := sortBy(t, g, flt,
		[]ir.NodeID{column(t, g, flt, "dev")},
		[]ir.SortSpec{{Direction: ir.Desc}})
	root, err := g.Limit(srt, 10, 0)
	testutil.AssertNoError(t, err)
	return root
}

func TestCompileWindowDeviationQuery(t *testing.T) {
	t.Parallel()
	want := `SELECT * FROM (SELECT "airlines"."arrdelay", "airlines"."dest", ` +
		`AVG("airlines"."arrdelay") OVER (PARTITION BY "airlines"."dest") AS "dest_avg", ` +
		`"airlines"."arrdelay" - AVG("airlines"."arrdelay") OVER (PARTITION BY "airlines"."dest") AS "dev" ` +
		`FROM "airlines") AS "t0" WHERE "t0"."dev" IS NOT NULL ORDER BY "t0"."dev" DESC LIMIT 10`
	wantMySQL := "SELECT * FROM (SELECT `airlines`.`arrdelay`, `airlines`.`dest`, " +
		"AVG(`airlines`.`arrdelay`) OVER (PARTITION BY `airlines`.`dest`) AS `dest_avg`, " +
		"`airlines`.`arrdelay` - AVG(`airlines`.`arrdelay`) OVER (PARTITION BY `airlines`.`dest`) AS `dev` " +
		"FROM `airlines`) AS `t0` WHERE `t0`.`dev` IS NOT NULL ORDER BY `t0`.`dev` DESC LIMIT 10"
	for _, tt := range []struct {
		name    string
		dialect Dialect
		want    string
	}{
		{"postgres", Postgres(), want},
		{"mysql", MySQL(), wantMySQL},
		{"sqlite", SQLite(), want},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := ir.NewGraph()
			root := windowDeviationPlan(t, g)
			normalized, err := rewrite.Normalize(g, root)
			testutil.AssertNoError(t, err)

			res := mustCompile(t, g, normalized, tt.dialect)

			testutil.AssertEqual(t, res.SQL, tt.want)
			testutil.AssertEqual(t, res.Schema.String(), g.SchemaOf(normalized).String())
		})
	}
}

func TestGroupByHavingOrderLimit(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := flightsTable(t, g)
	n, err := g.CountStar(tbl)
	testutil.AssertNoError(t, err)
	avg, err := g.Mean(column(t, g, tbl, "arrdelay"), false)
	testutil.AssertNoError(t, err)
	agg, err := g.Aggregate(tbl,
		[]string{"dest"}, []ir.NodeID{column(t, g, tbl, "dest")},
		[]string{"n", "avg_delay"}, []ir.NodeID{n, avg})
	testutil.AssertNoError(t, err)
	busy, err := g.Greater(column(t, g, agg, "n"), lit(t, g, int64(10)))
	testutil.AssertNoError(t, err)
	hav := filter(t, g, agg, busy)
	srt := sortBy(t, g, hav,
		[]ir.NodeID{column(t, g, hav, "avg_delay")},
		[]ir.SortSpec{{Direction: ir.Desc}})
	root, err := g.Limit(srt, 5, 0)
	testutil.AssertNoError(t, err)

	res := mustCompile(t, g, root, Postgres())

	testutil.AssertEqual(t, res.SQL,
		`SELECT "flights"."dest", COUNT(*) AS "n", AVG("flights"."arrdelay") AS "avg_delay" `+
			`FROM "flights" GROUP BY "flights"."dest" HAVING COUNT(*) > 10 `+
			`ORDER BY AVG("flights"."arrdelay") DESC LIMIT 5`)
}

func TestProjectionOverAggregateStaysGrouped(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := flightsTable(t, g)
	avg, err := g.Mean(column(t, g, tbl, "arrdelay"), false)
	testutil.AssertNoError(t, err)
	agg, err := g.Aggregate(tbl,
		[]string{"dest"}, []ir.NodeID{column(t, g, tbl, "dest")},
		[]string{"avg_delay"}, []ir.NodeID{avg})
	testutil.AssertNoError(t, err)
	doubled, err := g.Multiply(column(t, g, agg, "avg_delay"), lit(t, g, 2.0))
	testutil.AssertNoError(t, err)
	root := project(t, g, agg,
		[]string{"dest", "doubled"},
		[]ir.NodeID{column(t, g, agg, "dest"), doubled})

	res := mustCompile(t, g, root, Postgres())

	testutil.AssertEqual(t, res.SQL,
		`SELECT "flights"."dest" AS "dest", AVG("flights"."arrdelay") * 2.0 AS "doubled" `+
			`FROM "flights" GROUP BY "flights"."dest"`)
}

func TestJoinRendersChainWithRenamedColumns(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	flights := flightsTable(t, g)
	airports := airportsTable(t, g)
	on, err := g.Equals(column(t, g, flights, "dest"), column(t, g, airports, "code"))
	testutil.AssertNoError(t, err)
	join, err := g.Join(ir.InnerJoin, flights, airports, on)
	testutil.AssertNoError(t, err)
	root := project(t, g, join,
		[]string{"origin", "code", "dest_right"},
		[]ir.NodeID{
			column(t, g, join, "origin"),
			column(t, g, join, "code"),
			column(t, g, join, "dest"+ir.RightSuffix),
		})

	res := mustCompile(t, g, root, Postgres())

	testutil.AssertEqual(t, res.SQL,
		`SELECT "flights"."origin", "airports"."code", "airports"."dest" AS "dest_right" `+
			`FROM "flights" INNER JOIN "airports" ON "flights"."dest" = "airports"."code"`)
}

func TestCrossJoinHasNoOnClause(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	flights := flightsTable(t, g)
	airports := airportsTable(t, g)
	join, err := g.Join(ir.CrossJoin, flights, airports)
	testutil.AssertNoError(t, err)

	res := mustCompile(t, g, join, Postgres())

	testutil.AssertEqual(t, res.SQL,
		`SELECT * FROM "flights" CROSS JOIN "airports"`)
}

func TestViewAliasesBaseTable(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	flights := flightsTable(t, g)
	second, err := g.View(flights, "f2")
	testutil.AssertNoError(t, err)
	on, err := g.Equals(column(t, g, flights, "dest"), column(t, g, second, "origin"))
	testutil.AssertNoError(t, err)
	join, err := g.Join(ir.InnerJoin, flights, second, on)
	testutil.AssertNoError(t, err)

	res := mustCompile(t, g, join, Postgres())

	testutil.AssertEqual(t, res.SQL,
		`SELECT * FROM "flights" INNER JOIN "flights" AS "f2" ON "flights"."dest" = "f2"."origin"`)
}

func TestDuplicateJoinAliasRewrapped(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	left, err := g.View(flightsTable(t, g), "a")
	testutil.AssertNoError(t, err)
	right, err := g.View(airportsTable(t, g), "a")
	testutil.AssertNoError(t, err)
	on, err := g.Equals(column(t, g, left, "dest"), column(t, g, right, "dest"))
	testutil.AssertNoError(t, err)
	join, err := g.Join(ir.InnerJoin, left, right, on)
	testutil.AssertNoError(t, err)

	res := mustCompile(t, g, join, Postgres())

	testutil.AssertEqual(t, res.SQL,
		`SELECT * FROM "flights" AS "a" INNER JOIN (SELECT * FROM "airports" AS "a") AS "t0" `+
			`ON "a"."dest" = "t0"."dest"`)
}

func TestCorrelatedExistsRendersSubquery(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	flights := flightsTable(t, g)
	airports := airportsTable(t, g)
	match, err := g.Equals(column(t, g, airports, "code"), column(t, g, flights, "dest"))
	testutil.AssertNoError(t, err)
	sub := filter(t, g, airports, match)
	ex, err := g.Exists(sub, false)
	testutil.AssertNoError(t, err)
	root := filter(t, g, flights, ex)

	res := mustCompile(t, g, root, Postgres())

	testutil.AssertEqual(t, res.SQL,
		`SELECT * FROM "flights" WHERE EXISTS (SELECT * FROM "airports" WHERE "airports"."code" = "flights"."dest")`)
}

func semiJoinPlan(t *testing.T, g *ir.Graph, joinType ir.JoinType) ir.NodeID {
	t.Helper()
	flights := flightsTable(t, g)
	airports := airportsTable(t, g)
	on, err := g.Equals(column(t, g, airports, "code"), column(t, g, flights, "dest"))
	testutil.AssertNoError(t, err)
	join, err := g.Join(joinType, flights, airports, on)
	testutil.AssertNoError(t, err)
	return join
}

func TestSemiAndAntiJoinLowering(t *testing.T) {
	t.Parallel()
	correlated := Postgres()
	flat := Postgres()
	flat.SupportsCorrelatedSubqueries = false
	tests := []struct {
		name     string
		joinType ir.JoinType
		dialect  Dialect
		want     string
	}{
		{
			"semi join as exists", ir.SemiJoin, correlated,
			`SELECT * FROM "flights" WHERE EXISTS (SELECT * FROM "airports" WHERE "airports"."code" = "flights"."dest")`,
		},
		{
			"anti join as not exists", ir.AntiJoin, correlated,
			`SELECT * FROM "flights" WHERE NOT EXISTS (SELECT * FROM "airports" WHERE "airports"."code" = "flights"."dest")`,
		},
		{
			"semi join as distinct inner join", ir.SemiJoin, flat,
			`SELECT * FROM "flights" INNER JOIN (SELECT DISTINCT "airports"."code" AS "c0" FROM "airports") AS "t0" ON "flights"."dest" = "t0"."c0"`,
		},
		{
			"anti join as distinct outer join", ir.AntiJoin, flat,
			`SELECT * FROM "flights" LEFT OUTER JOIN (SELECT DISTINCT "airports"."code" AS "c0" FROM "airports") AS "t0" ON "flights"."dest" = "t0"."c0" WHERE "t0"."c0" IS NULL`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := ir.NewGraph()
			join := semiJoinPlan(t, g, tt.joinType)

			res := mustCompile(t, g, join, tt.dialect)

			testutil.AssertEqual(t, res.SQL, tt.want)
			testutil.AssertEqual(t, res.Schema.String(), g.SchemaOf(join).String())
		})
	}
}

func TestSemiJoinNonEqualityNeedsCorrelation(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	flights := flightsTable(t, g)
	airports := airportsTable(t, g)
	near, err := g.Less(column(t, g, airports, "code"), column(t, g, flights, "dest"))
	testutil.AssertNoError(t, err)
	join, err := g.Join(ir.SemiJoin, flights, airports, near)
	testutil.AssertNoError(t, err)

	d := Postgres()
	d.SupportsCorrelatedSubqueries = false
	_, err = Compile(g, join, d)

	testutil.AssertErrorIs(t, err, ErrUnsupportedOperator)
	if !strings.Contains(err.Error(), "SEMI JOIN") {
		t.Fatalf("error should name the join type, got %v", err)
	}
}

func TestDecorrelationFailureSurfaces(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	flights := flightsTable(t, g)
	airports := airportsTable(t, g)
	match, err := g.Equals(column(t, g, airports, "code"), column(t, g, flights, "dest"))
	testutil.AssertNoError(t, err)
	one, err := g.Limit(filter(t, g, airports, match), 1, 0)
	testutil.AssertNoError(t, err)
	ex, err := g.Exists(one, false)
	testutil.AssertNoError(t, err)
	root := filter(t, g, flights, ex)

	// The correlation sits below a limit, so it cannot move into a join.
	d := Postgres()
	d.SupportsCorrelatedSubqueries = false
	_, err = Compile(g, root, d)
	testutil.AssertErrorIs(t, err, rewrite.ErrCannotDecorrelate)

	// A dialect that can run the subquery in place compiles it as written.
	res := mustCompile(t, g, root, Postgres())
	testutil.AssertEqual(t, res.SQL,
		`SELECT * FROM "flights" WHERE EXISTS (SELECT * FROM "airports" WHERE "airports"."code" = "flights"."dest" LIMIT 1)`)
}

func TestSetOperationsPerDialect(t *testing.T) {
	t.Parallel()
	build := func(t *testing.T, g *ir.Graph, typ ir.SetOpType) ir.NodeID {
		t.Helper()
		flights := flightsTable(t, g)
		airports := airportsTable(t, g)
		l := project(t, g, flights, []string{"dest"}, []ir.NodeID{column(t, g, flights, "dest")})
		r := project(t, g, airports, []string{"code"}, []ir.NodeID{column(t, g, airports, "code")})
		u, err := g.SetOperation(typ, l, r)
		testutil.AssertNoError(t, err)
		return u
	}

	t.Run("postgres parenthesizes operands", func(t *testing.T) {
		t.Parallel()
		g := ir.NewGraph()
		u := build(t, g, ir.Union)
		res := mustCompile(t, g, u, Postgres())
		testutil.AssertEqual(t, res.SQL,
			`(SELECT "flights"."dest" FROM "flights") UNION (SELECT "airports"."code" FROM "airports")`)
	})

	t.Run("sqlite renders bare operands", func(t *testing.T) {
		t.Parallel()
		g := ir.NewGraph()
		u := build(t, g, ir.UnionAll)
		res := mustCompile(t, g, u, SQLite())
		testutil.AssertEqual(t, res.SQL,
			`SELECT "flights"."dest" FROM "flights" UNION ALL SELECT "airports"."code" FROM "airports"`)
	})

	t.Run("ordering a compound uses output names", func(t *testing.T) {
		t.Parallel()
		g := ir.NewGraph()
		u := build(t, g, ir.Union)
		srt := sortBy(t, g, u,
			[]ir.NodeID{column(t, g, u, "dest")},
			[]ir.SortSpec{{Direction: ir.Asc}})
		res := mustCompile(t, g, srt, SQLite())
		testutil.AssertEqual(t, res.SQL,
			`SELECT "flights"."dest" FROM "flights" UNION SELECT "airports"."code" FROM "airports" ORDER BY "dest" ASC`)
	})

	t.Run("compound right arm wraps without parentheses", func(t *testing.T) {
		t.Parallel()
		g := ir.NewGraph()
		flights := flightsTable(t, g)
		airports := airportsTable(t, g)
		a := project(t, g, flights, []string{"dest"}, []ir.NodeID{column(t, g, flights, "dest")})
		b := project(t, g, airports, []string{"code"}, []ir.NodeID{column(t, g, airports, "code")})
		c := project(t, g, airports, []string{"dest"}, []ir.NodeID{column(t, g, airports, "dest")})
		inner, err := g.SetOperation(ir.Union, b, c)
		testutil.AssertNoError(t, err)
		outer, err := g.SetOperation(ir.Union, a, inner)
		testutil.AssertNoError(t, err)
		res := mustCompile(t, g, outer, SQLite())
		testutil.AssertEqual(t, res.SQL,
			`SELECT "flights"."dest" FROM "flights" UNION SELECT * FROM `+
				`(SELECT "airports"."code" FROM "airports" UNION SELECT "airports"."dest" FROM "airports") AS "t0"`)
	})

	t.Run("sqlite rejects except all", func(t *testing.T) {
		t.Parallel()
		g := ir.NewGraph()
		u := build(t, g, ir.ExceptAll)
		_, err := Compile(g, u, SQLite())
		testutil.AssertErrorIs(t, err, ErrUnsupportedOperator)
		if !strings.Contains(err.Error(), "EXCEPT ALL") {
			t.Fatalf("error should name the operation, got %v", err)
		}
	})
}

func TestDistinctAndSortInteraction(t *testing.T) {
	t.Parallel()
	distinctDests := func(t *testing.T, g *ir.Graph) ir.NodeID {
		t.Helper()
		tbl := flightsTable(t, g)
		proj := project(t, g, tbl, []string{"dest"}, []ir.NodeID{column(t, g, tbl, "dest")})
		dist, err := g.Distinct(proj)
		testutil.AssertNoError(t, err)
		return dist
	}

	t.Run("plain key merges", func(t *testing.T) {
		t.Parallel()
		g := ir.NewGraph()
		dist := distinctDests(t, g)
		srt := sortBy(t, g, dist,
			[]ir.NodeID{column(t, g, dist, "dest")},
			[]ir.SortSpec{{Direction: ir.Asc}})
		res := mustCompile(t, g, srt, Postgres())
		testutil.AssertEqual(t, res.SQL,
			`SELECT DISTINCT "flights"."dest" FROM "flights" ORDER BY "dest" ASC`)
	})

	t.Run("expression key wraps", func(t *testing.T) {
		t.Parallel()
		g := ir.NewGraph()
		dist := distinctDests(t, g)
		size, err := g.Length(column(t, g, dist, "dest"))
		testutil.AssertNoError(t, err)
		srt := sortBy(t, g, dist, []ir.NodeID{size}, []ir.SortSpec{{Direction: ir.Asc}})
		res := mustCompile(t, g, srt, Postgres())
		testutil.AssertEqual(t, res.SQL,
			`SELECT * FROM (SELECT DISTINCT "flights"."dest" FROM "flights") AS "t0" ORDER BY LENGTH("t0"."dest") ASC`)
	})
}

func TestSortDirectionsAndNullsOrdering(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := flightsTable(t, g)
	keys := []ir.NodeID{column(t, g, tbl, "arrdelay"), column(t, g, tbl, "dest")}
	specs := []ir.SortSpec{
		{Direction: ir.Asc, Nulls: ir.NullsLast},
		{Direction: ir.Desc},
	}
	srt := sortBy(t, g, tbl, keys, specs)

	res := mustCompile(t, g, srt, Postgres())
	testutil.AssertEqual(t, res.SQL,
		`SELECT * FROM "flights" ORDER BY "flights"."arrdelay" ASC NULLS LAST, "flights"."dest" DESC`)

	_, err := Compile(g, srt, MySQL())
	testutil.AssertErrorIs(t, err, ErrUnsupportedOperator)
	if !strings.Contains(err.Error(), "dialect mysql") {
		t.Fatalf("error should name the dialect, got %v", err)
	}
}

func TestMySQLRejectsFullOuterJoin(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	flights := flightsTable(t, g)
	airports := airportsTable(t, g)
	on, err := g.Equals(column(t, g, flights, "dest"), column(t, g, airports, "code"))
	testutil.AssertNoError(t, err)
	join, err := g.Join(ir.FullOuterJoin, flights, airports, on)
	testutil.AssertNoError(t, err)

	_, err = Compile(g, join, MySQL())
	testutil.AssertErrorIs(t, err, ErrUnsupportedOperator)

	res := mustCompile(t, g, join, Postgres())
	testutil.AssertEqual(t, res.SQL,
		`SELECT * FROM "flights" FULL OUTER JOIN "airports" ON "flights"."dest" = "airports"."code"`)
}

func TestUnnestExpandsInSelectList(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := eventsTable(t, g)
	un, err := g.Unnest(tbl, "tags")
	testutil.AssertNoError(t, err)

	res := mustCompile(t, g, un, Postgres())
	testutil.AssertEqual(t, res.SQL,
		`SELECT "events"."id", UNNEST("events"."tags") AS "tags", "events"."geo" FROM "events"`)
	testutil.AssertEqual(t, res.Schema.String(), g.SchemaOf(un).String())

	_, err = Compile(g, un, MySQL())
	testutil.AssertErrorIs(t, err, ErrUnsupportedOperator)
	if !strings.Contains(err.Error(), "UNNEST") {
		t.Fatalf("error should name the construct, got %v", err)
	}
	_, err = Compile(g, un, SQLite())
	testutil.AssertErrorIs(t, err, ErrUnsupportedOperator)
}

func TestUnnestAboveFilterSharesStatement(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := eventsTable(t, g)
	pred, err := g.NotNull(column(t, g, tbl, "geo"))
	testutil.AssertNoError(t, err)
	un, err := g.Unnest(filter(t, g, tbl, pred), "tags")
	testutil.AssertNoError(t, err)

	// The filter lands in WHERE, which evaluates before the select-list
	// expansion, so both stay in one statement.
	res := mustCompile(t, g, un, Postgres())
	testutil.AssertEqual(t, res.SQL,
		`SELECT "events"."id", UNNEST("events"."tags") AS "tags", "events"."geo" `+
			`FROM "events" WHERE "events"."geo" IS NOT NULL`)
}

func TestFilterAboveUnnestWrapsExpansion(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := eventsTable(t, g)
	un, err := g.Unnest(tbl, "tags")
	testutil.AssertNoError(t, err)
	match, err := g.Equals(column(t, g, un, "tags"), lit(t, g, "go"))
	testutil.AssertNoError(t, err)
	root := filter(t, g, un, match)

	// A predicate over the expanded rows cannot share the expansion's
	// WHERE clause; the unnest closes off as a derived table first.
	res := mustCompile(t, g, root, Postgres())
	testutil.AssertEqual(t, res.SQL,
		`SELECT * FROM (SELECT "events"."id", UNNEST("events"."tags") AS "tags", "events"."geo" `+
			`FROM "events") AS "t0" WHERE "t0"."tags" = 'go'`)
}

func TestCompositeAccessPerDialect(t *testing.T) {
	t.Parallel()

	t.Run("postgres renders both forms", func(t *testing.T) {
		t.Parallel()
		g := ir.NewGraph()
		tbl := eventsTable(t, g)
		lat, err := g.Field(column(t, g, tbl, "geo"), "lat")
		testutil.AssertNoError(t, err)
		first, err := g.ElementAt(column(t, g, tbl, "tags"), lit(t, g, int64(0)))
		testutil.AssertNoError(t, err)
		root := project(t, g, tbl, []string{"lat", "first_tag"}, []ir.NodeID{lat, first})

		res := mustCompile(t, g, root, Postgres())
		testutil.AssertEqual(t, res.SQL,
			`SELECT ("events"."geo")."lat" AS "lat", "events"."tags"[0 + 1] AS "first_tag" FROM "events"`)
	})

	t.Run("mysql rejects field access", func(t *testing.T) {
		t.Parallel()
		g := ir.NewGraph()
		tbl := eventsTable(t, g)
		lat, err := g.Field(column(t, g, tbl, "geo"), "lat")
		testutil.AssertNoError(t, err)
		root := project(t, g, tbl, []string{"lat"}, []ir.NodeID{lat})

		_, err = Compile(g, root, MySQL())
		testutil.AssertErrorIs(t, err, ErrUnsupportedOperator)
		if !strings.Contains(err.Error(), "struct field access") {
			t.Fatalf("error should name the construct, got %v", err)
		}
	})

	t.Run("sqlite rejects element access", func(t *testing.T) {
		t.Parallel()
		g := ir.NewGraph()
		tbl := eventsTable(t, g)
		first, err := g.ElementAt(column(t, g, tbl, "tags"), lit(t, g, int64(0)))
		testutil.AssertNoError(t, err)
		root := project(t, g, tbl, []string{"first_tag"}, []ir.NodeID{first})

		_, err = Compile(g, root, SQLite())
		testutil.AssertErrorIs(t, err, ErrUnsupportedOperator)
		if !strings.Contains(err.Error(), "array element access") {
			t.Fatalf("error should name the construct, got %v", err)
		}
	})
}

func TestMySQLFunctionSpellings(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := flightsTable(t, g)
	match, err := g.RegexMatch(column(t, g, tbl, "dest"), lit(t, g, "^L"))
	testutil.AssertNoError(t, err)
	flt := filter(t, g, tbl, match)
	route, err := g.StringConcat(
		column(t, g, flt, "origin"), lit(t, g, "-"), column(t, g, flt, "dest"))
	testutil.AssertNoError(t, err)
	size, err := g.Length(column(t, g, flt, "origin"))
	testutil.AssertNoError(t, err)
	root := project(t, g, flt, []string{"route", "len"}, []ir.NodeID{route, size})

	res := mustCompile(t, g, root, MySQL())

	testutil.AssertEqual(t, res.SQL,
		"SELECT CONCAT(`flights`.`origin`, '-', `flights`.`dest`) AS `route`, "+
			"CHAR_LENGTH(`flights`.`origin`) AS `len` FROM `flights` "+
			"WHERE `flights`.`dest` REGEXP '^L'")
}

func TestExtractPerDialect(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		part    ir.DatePart
		dialect func() Dialect
		want    string
	}{
		{"postgres day of week", ir.PartDayOfWeek, Postgres,
			`SELECT EXTRACT(DOW FROM "shipments"."shipped_at") AS "v" FROM "shipments"`},
		{"postgres milliseconds", ir.PartMillisecond, Postgres,
			`SELECT EXTRACT(MILLISECONDS FROM "shipments"."shipped_at") AS "v" FROM "shipments"`},
		{"mysql day of week", ir.PartDayOfWeek, MySQL,
			"SELECT DAYOFWEEK(`shipments`.`shipped_at`) - 1 AS `v` FROM `shipments`"},
		{"mysql epoch", ir.PartEpoch, MySQL,
			"SELECT UNIX_TIMESTAMP(`shipments`.`shipped_at`) AS `v` FROM `shipments`"},
		{"sqlite day of week", ir.PartDayOfWeek, SQLite,
			`SELECT CAST(STRFTIME('%w', "shipments"."shipped_at") AS INTEGER) AS "v" FROM "shipments"`},
		{"sqlite quarter", ir.PartQuarter, SQLite,
			`SELECT CAST((CAST(STRFTIME('%m', "shipments"."shipped_at") AS INTEGER) + 2) / 3 AS INTEGER) AS "v" FROM "shipments"`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := ir.NewGraph()
			tbl := shipmentsTable(t, g)
			part, err := g.Extract(tt.part, column(t, g, tbl, "shipped_at"))
			testutil.AssertNoError(t, err)
			root := project(t, g, tbl, []string{"v"}, []ir.NodeID{part})

			res := mustCompile(t, g, root, tt.dialect())
			testutil.AssertEqual(t, res.SQL, tt.want)
		})
	}

	t.Run("mysql has no millisecond part", func(t *testing.T) {
		t.Parallel()
		g := ir.NewGraph()
		tbl := shipmentsTable(t, g)
		part, err := g.Extract(ir.PartMillisecond, column(t, g, tbl, "shipped_at"))
		testutil.AssertNoError(t, err)
		root := project(t, g, tbl, []string{"v"}, []ir.NodeID{part})

		_, err = Compile(g, root, MySQL())
		testutil.AssertErrorIs(t, err, ErrUnsupportedOperator)
	})
}

func TestIntegerDivisionWidensLeftOperand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		dialect func() Dialect
		want    string
	}{
		{"postgres", Postgres,
			`SELECT CAST("flights"."arrdelay" AS DOUBLE PRECISION) / "flights"."depdelay" AS "ratio" FROM "flights"`},
		{"mysql", MySQL,
			"SELECT CAST(`flights`.`arrdelay` AS DOUBLE) / `flights`.`depdelay` AS `ratio` FROM `flights`"},
		{"sqlite", SQLite,
			`SELECT CAST("flights"."arrdelay" AS REAL) / "flights"."depdelay" AS "ratio" FROM "flights"`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := ir.NewGraph()
			tbl := flightsTable(t, g)
			ratio, err := g.Divide(column(t, g, tbl, "arrdelay"), column(t, g, tbl, "depdelay"))
			testutil.AssertNoError(t, err)
			root := project(t, g, tbl, []string{"ratio"}, []ir.NodeID{ratio})

			res := mustCompile(t, g, root, tt.dialect())
			testutil.AssertEqual(t, res.SQL, tt.want)
		})
	}
}

func TestFloatDivisionNeedsNoCast(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := shipmentsTable(t, g)
	half, err := g.Divide(column(t, g, tbl, "weight"), lit(t, g, int64(2)))
	testutil.AssertNoError(t, err)
	root := project(t, g, tbl, []string{"half"}, []ir.NodeID{half})

	res := mustCompile(t, g, root, Postgres())
	testutil.AssertEqual(t, res.SQL,
		`SELECT "shipments"."weight" / 2 AS "half" FROM "shipments"`)
}

func TestCastUsesDialectTypeNames(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		dialect func() Dialect
		want    string
	}{
		{"postgres", Postgres, `SELECT CAST("flights"."arrdelay" AS TEXT) AS "s" FROM "flights"`},
		{"mysql", MySQL, "SELECT CAST(`flights`.`arrdelay` AS CHAR) AS `s` FROM `flights`"},
		{"sqlite", SQLite, `SELECT CAST("flights"."arrdelay" AS TEXT) AS "s" FROM "flights"`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := ir.NewGraph()
			tbl := flightsTable(t, g)
			s, err := g.Cast(column(t, g, tbl, "arrdelay"), datatypes.String)
			testutil.AssertNoError(t, err)
			root := project(t, g, tbl, []string{"s"}, []ir.NodeID{s})

			res := mustCompile(t, g, root, tt.dialect())
			testutil.AssertEqual(t, res.SQL, tt.want)
		})
	}
}

func TestBooleanPrecedenceParenthesized(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := flightsTable(t, g)
	lateArr, err := g.Greater(column(t, g, tbl, "arrdelay"), lit(t, g, int64(10)))
	testutil.AssertNoError(t, err)
	lateDep, err := g.Greater(column(t, g, tbl, "depdelay"), lit(t, g, int64(10)))
	testutil.AssertNoError(t, err)
	either, err := g.Or(lateArr, lateDep)
	testutil.AssertNoError(t, err)
	fromSFO, err := g.Equals(column(t, g, tbl, "origin"), lit(t, g, "SFO"))
	testutil.AssertNoError(t, err)
	both, err := g.And(either, fromSFO)
	testutil.AssertNoError(t, err)
	root := filter(t, g, tbl, both)

	res := mustCompile(t, g, root, Postgres())

	testutil.AssertEqual(t, res.SQL,
		`SELECT * FROM "flights" WHERE ("flights"."arrdelay" > 10 OR "flights"."depdelay" > 10) `+
			`AND "flights"."origin" = 'SFO'`)
}

func TestScalarOperatorTexture(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := flightsTable(t, g)
	arr := column(t, g, tbl, "arrdelay")

	inRange, err := g.Between(arr, lit(t, g, int64(0)), lit(t, g, int64(60)))
	testutil.AssertNoError(t, err)
	negated, err := g.Not(inRange)
	testutil.AssertNoError(t, err)
	known, err := g.InValues(column(t, g, tbl, "dest"),
		lit(t, g, "LAX"), lit(t, g, "JFK"))
	testutil.AssertNoError(t, err)
	flt := filter(t, g, tbl, negated, known)

	res := mustCompile(t, g, flt, Postgres())

	testutil.AssertEqual(t, res.SQL,
		`SELECT * FROM "flights" WHERE NOT ("flights"."arrdelay" BETWEEN 0 AND 60) `+
			`AND "flights"."dest" IN ('LAX', 'JFK')`)
}

func TestCaseExpression(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := flightsTable(t, g)
	late, err := g.Greater(column(t, g, tbl, "arrdelay"), lit(t, g, int64(30)))
	testutil.AssertNoError(t, err)
	status, err := g.Case(
		[]ir.NodeID{late},
		[]ir.NodeID{lit(t, g, "late")},
		lit(t, g, "on time"))
	testutil.AssertNoError(t, err)
	root := project(t, g, tbl, []string{"status"}, []ir.NodeID{status})

	res := mustCompile(t, g, root, Postgres())

	testutil.AssertEqual(t, res.SQL,
		`SELECT CASE WHEN "flights"."arrdelay" > 30 THEN 'late' ELSE 'on time' END AS "status" FROM "flights"`)
}

func TestWindowFrameRendering(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := flightsTable(t, g)

	sum, err := g.Sum(column(t, g, tbl, "arrdelay"), false)
	testutil.AssertNoError(t, err)
	running, err := g.Window(sum, nil,
		[]ir.NodeID{column(t, g, tbl, "depdelay")},
		[]ir.SortSpec{{Direction: ir.Asc}},
		&ir.WindowFrame{
			Type:  ir.FrameRows,
			Start: ir.FrameBound{Type: ir.BoundPreceding, Offset: 3},
			End:   ir.FrameBound{Type: ir.BoundCurrentRow},
		})
	testutil.AssertNoError(t, err)

	pos, err := g.Window(g.Rank(),
		[]ir.NodeID{column(t, g, tbl, "dest")},
		[]ir.NodeID{column(t, g, tbl, "arrdelay")},
		[]ir.SortSpec{{Direction: ir.Desc}},
		&ir.WindowFrame{
			Type:  ir.FrameRange,
			Start: ir.FrameBound{Type: ir.BoundUnboundedPreceding},
			End:   ir.FrameBound{Type: ir.BoundCurrentRow},
		})
	testutil.AssertNoError(t, err)

	root := project(t, g, tbl, []string{"running", "pos"}, []ir.NodeID{running, pos})
	res := mustCompile(t, g, root, Postgres())

	// The rank window carries the default frame and window-only functions
	// never render one; the sum's explicit frame is not the default.
	testutil.AssertEqual(t, res.SQL,
		`SELECT SUM("flights"."arrdelay") OVER (ORDER BY "flights"."depdelay" ASC `+
			`ROWS BETWEEN 3 PRECEDING AND CURRENT ROW) AS "running", `+
			`RANK() OVER (PARTITION BY "flights"."dest" ORDER BY "flights"."arrdelay" DESC) AS "pos" `+
			`FROM "flights"`)
}

func TestWindowWithoutFrameFailsBeforeNormalize(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := flightsTable(t, g)
	avg, err := g.Mean(column(t, g, tbl, "arrdelay"), false)
	testutil.AssertNoError(t, err)
	win, err := g.Window(avg, []ir.NodeID{column(t, g, tbl, "dest")}, nil, nil, nil)
	testutil.AssertNoError(t, err)
	root := project(t, g, tbl, []string{"avg"}, []ir.NodeID{win})

	_, err = Compile(g, root, Postgres())
	testutil.AssertError(t, err)
	if !strings.Contains(err.Error(), "normalize") {
		t.Fatalf("error should point at normalization, got %v", err)
	}
}

func TestDistinctAggregateInsideWindowUnsupported(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := flightsTable(t, g)
	distinctCount, err := g.Count(column(t, g, tbl, "dest"), true)
	testutil.AssertNoError(t, err)
	win, err := g.Window(distinctCount, []ir.NodeID{column(t, g, tbl, "origin")}, nil, nil,
		&ir.WindowFrame{
			Start: ir.FrameBound{Type: ir.BoundUnboundedPreceding},
			End:   ir.FrameBound{Type: ir.BoundUnboundedFollowing},
		})
	testutil.AssertNoError(t, err)
	root := project(t, g, tbl, []string{"n"}, []ir.NodeID{win})

	_, err = Compile(g, root, Postgres())
	testutil.AssertErrorIs(t, err, ErrUnsupportedOperator)
}

func TestParameterizedValuesNumberInStatementOrder(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := flightsTable(t, g)
	sortExpr, err := g.Add(column(t, g, tbl, "arrdelay"), lit(t, g, int64(1)))
	testutil.AssertNoError(t, err)
	srt := sortBy(t, g, tbl, []ir.NodeID{sortExpr}, []ir.SortSpec{{Direction: ir.Asc}})
	projExpr, err := g.Add(column(t, g, srt, "arrdelay"), lit(t, g, int64(2)))
	testutil.AssertNoError(t, err)
	root := project(t, g, srt, []string{"x"}, []ir.NodeID{projExpr})

	// The sort renders before the projection, but the projection's value
	// appears first in the statement and must bind first.
	res := mustCompile(t, g, root, Postgres(), WithParams())
	testutil.AssertEqual(t, res.SQL,
		`SELECT "flights"."arrdelay" + $1 AS "x" FROM "flights" ORDER BY "flights"."arrdelay" + $2 ASC`)
	testutil.AssertEqual(t, len(res.Params), 2)
	testutil.AssertEqual(t, res.Params[0].(int64), int64(2))
	testutil.AssertEqual(t, res.Params[1].(int64), int64(1))

	questions := mustCompile(t, g, root, ANSI(), WithParams())
	testutil.AssertEqual(t, questions.SQL,
		`SELECT "flights"."arrdelay" + ? AS "x" FROM "flights" ORDER BY "flights"."arrdelay" + ? ASC`)
	testutil.AssertEqual(t, questions.Params[0].(int64), int64(2))
}

func TestParameterizedNullStaysInline(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := flightsTable(t, g)
	null, err := g.Null(datatypes.String)
	testutil.AssertNoError(t, err)
	root := project(t, g, tbl, []string{"nothing"}, []ir.NodeID{null})

	res := mustCompile(t, g, root, Postgres(), WithParams())

	testutil.AssertEqual(t, res.SQL, `SELECT NULL AS "nothing" FROM "flights"`)
	testutil.AssertEqual(t, len(res.Params), 0)
}

func TestFormattedOutput(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := flightsTable(t, g)
	late, err := g.Greater(column(t, g, tbl, "arrdelay"), lit(t, g, int64(10)))
	testutil.AssertNoError(t, err)
	known, err := g.NotNull(column(t, g, tbl, "origin"))
	testutil.AssertNoError(t, err)
	flt := filter(t, g, tbl, late, known)
	proj := project(t, g, flt, []string{"dest", "origin"},
		[]ir.NodeID{column(t, g, flt, "dest"), column(t, g, flt, "origin")})
	srt := sortBy(t, g, proj,
		[]ir.NodeID{column(t, g, proj, "dest")},
		[]ir.SortSpec{{Direction: ir.Asc}})
	root, err := g.Limit(srt, 3, 1)
	testutil.AssertNoError(t, err)

	res := mustCompile(t, g, root, Postgres(), WithFormatting())

	want := "SELECT \"flights\".\"dest\"\n" +
		"\t,\"flights\".\"origin\"\n" +
		"FROM \"flights\"\n" +
		"WHERE \"flights\".\"arrdelay\" > 10\n" +
		"\tAND \"flights\".\"origin\" IS NOT NULL\n" +
		"ORDER BY \"dest\" ASC\n" +
		"LIMIT 3\n" +
		"OFFSET 1"
	testutil.AssertEqual(t, res.SQL, want)
}

func TestLooseReferenceFailsUntilResolved(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := flightsTable(t, g)
	proj := project(t, g, tbl, []string{"dest"}, []ir.NodeID{column(t, g, tbl, "dest")})
	loose, err := g.NotNull(column(t, g, tbl, "dest"))
	testutil.AssertNoError(t, err)
	root := filter(t, g, proj, loose)

	// The predicate references the base table, which is out of scope once
	// the projection becomes a derived table.
	_, err = Compile(g, root, Postgres())
	testutil.AssertErrorIs(t, err, ir.ErrUnresolvedReference)

	normalized, err := rewrite.Normalize(g, root)
	testutil.AssertNoError(t, err)
	res := mustCompile(t, g, normalized, Postgres())
	testutil.AssertEqual(t, res.SQL,
		`SELECT * FROM (SELECT "flights"."dest" FROM "flights") AS "t0" WHERE "t0"."dest" IS NOT NULL`)
}

func TestCompileRejectsScalarRoot(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := flightsTable(t, g)

	_, err := Compile(g, column(t, g, tbl, "dest"), Postgres())

	testutil.AssertErrorIs(t, err, datatypes.ErrTypeMismatch)
}
