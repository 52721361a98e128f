package rewrite

import (
	"errors"
	"strings"
	"testing"

	"github.com/bawdo/goshawk/internal/testutil"
	"github.com/bawdo/goshawk/ir"
)

func TestRebindsBaseReferenceThroughProjection(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := airlinesTable(t, g)
	p1 := project(t, g, tbl,
		[]string{"dest", "arrdelay"},
		[]ir.NodeID{column(t, g, tbl, "dest"), column(t, g, tbl, "arrdelay")})
	known, err := g.NotNull(column(t, g, tbl, "dest"))
	testutil.AssertNoError(t, err)
	root := filter(t, g, p1, known)

	out, err := ResolveAliases().Apply(g, root)
	testutil.AssertNoError(t, err)

	dump := g.Dump(out)
	if !strings.Contains(dump, "(r1.dest is not null)") {
		t.Fatalf("predicate still references the base table:\n%s", dump)
	}
}

func TestKeepsDirectReferences(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := airlinesTable(t, g)
	p1 := project(t, g, tbl,
		[]string{"dest", "arrdelay"},
		[]ir.NodeID{column(t, g, tbl, "dest"), column(t, g, tbl, "arrdelay")})
	known, err := g.NotNull(column(t, g, p1, "dest"))
	testutil.AssertNoError(t, err)
	root := filter(t, g, p1, known)

	out, err := ResolveAliases().Apply(g, root)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, out, root)
}

func TestErrorsWhenColumnProjectedAway(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := airlinesTable(t, g)
	p1 := project(t, g, tbl,
		[]string{"arrdelay"},
		[]ir.NodeID{column(t, g, tbl, "arrdelay")})
	known, err := g.NotNull(column(t, g, tbl, "dest"))
	testutil.AssertNoError(t, err)
	root := filter(t, g, p1, known)

	_, err = ResolveAliases().Apply(g, root)
	testutil.AssertErrorIs(t, err, ir.ErrUnresolvedReference)
}

func TestErrorsOnSelfJoinLineage(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := airlinesTable(t, g)
	late, err := g.Greater(column(t, g, tbl, "arrdelay"), intLit(t, g, 30))
	testutil.AssertNoError(t, err)
	left := filter(t, g, tbl, late)
	right, err := g.View(tbl, "u")
	testutil.AssertNoError(t, err)

	// The reference names the base table, which both join sides contain.
	on, err := g.Equals(column(t, g, tbl, "dest"), column(t, g, right, "origin"))
	testutil.AssertNoError(t, err)
	root, err := g.Join(ir.InnerJoin, left, right, on)
	testutil.AssertNoError(t, err)

	_, err = ResolveAliases().Apply(g, root)
	testutil.AssertErrorIs(t, err, ir.ErrAmbiguousAlias)
	if errors.Is(err, ErrInternal) {
		t.Fatalf("plan error carries the internal marker: %v", err)
	}

	// The same plan through the full pipeline keeps the plan-error taxonomy.
	_, err = Normalize(g, root)
	testutil.AssertErrorIs(t, err, ir.ErrAmbiguousAlias)
	if errors.Is(err, ErrInternal) {
		t.Fatalf("plan error carries the internal marker: %v", err)
	}
}

func TestRebindsRenamedJoinColumn(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	flights := airlinesTable(t, g)
	airports := airportsTable(t, g)
	on, err := g.Equals(column(t, g, flights, "dest"), column(t, g, airports, "code"))
	testutil.AssertNoError(t, err)
	join, err := g.Join(ir.InnerJoin, flights, airports, on)
	testutil.AssertNoError(t, err)
	known, err := g.NotNull(column(t, g, airports, "dest"))
	testutil.AssertNoError(t, err)
	root := filter(t, g, join, known)

	out, err := ResolveAliases().Apply(g, root)
	testutil.AssertNoError(t, err)

	// airports.dest collides with flights.dest and surfaces renamed.
	dump := g.Dump(out)
	if !strings.Contains(dump, "(r2.dest_right is not null)") {
		t.Fatalf("predicate not rebound to the renamed join column:\n%s", dump)
	}
}

func TestRebindsThroughAggregateGroup(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := airlinesTable(t, g)
	n, err := g.CountStar(tbl)
	testutil.AssertNoError(t, err)
	agg, err := g.Aggregate(tbl,
		[]string{"dest"}, []ir.NodeID{column(t, g, tbl, "dest")},
		[]string{"n"}, []ir.NodeID{n})
	testutil.AssertNoError(t, err)
	lit, err := g.Literal("AA")
	testutil.AssertNoError(t, err)
	eq, err := g.Equals(column(t, g, tbl, "dest"), lit)
	testutil.AssertNoError(t, err)
	root := filter(t, g, agg, eq)

	out, err := ResolveAliases().Apply(g, root)
	testutil.AssertNoError(t, err)

	dump := g.Dump(out)
	if !strings.Contains(dump, `(r1.dest = "AA"::!string)`) {
		t.Fatalf("predicate not rebound to the grouping column:\n%s", dump)
	}
}

func TestKeepsCorrelatedOuterReferences(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	flights := airlinesTable(t, g)
	airports := airportsTable(t, g)
	match, err := g.Equals(column(t, g, airports, "code"), column(t, g, flights, "dest"))
	testutil.AssertNoError(t, err)
	sub := filter(t, g, airports, match)
	ex, err := g.Exists(sub, false)
	testutil.AssertNoError(t, err)
	root := filter(t, g, flights, ex)

	// The subquery's reference to flights has no host inside the subquery,
	// so it stays put for the compiler to resolve against the outer scope.
	out, err := ResolveAliases().Apply(g, root)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, out, root)
}
