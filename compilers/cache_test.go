package compilers

import (
	"testing"

	"github.com/bawdo/goshawk/internal/testutil"
	"github.com/bawdo/goshawk/ir"
)

// lateDestinations builds the same small plan every call: destinations of
// flights delayed past a threshold.
func lateDestinations(t *testing.T, g *ir.Graph) ir.NodeID {
	t.Helper()
	tbl := flightsTable(t, g)
	late, err := g.Greater(column(t, g, tbl, "arrdelay"), lit(t, g, int64(10)))
	testutil.AssertNoError(t, err)
	flt := filter(t, g, tbl, late)
	return project(t, g, flt, []string{"dest"}, []ir.NodeID{column(t, g, flt, "dest")})
}

func TestCacheSharesEntriesAcrossArenas(t *testing.T) {
	t.Parallel()
	cache := NewCache()

	g1 := ir.NewGraph()
	root1 := lateDestinations(t, g1)
	res1, err := cache.Compile(g1, root1, Postgres())
	testutil.AssertNoError(t, err)

	g2 := ir.NewGraph()
	root2 := lateDestinations(t, g2)
	res2, err := cache.Compile(g2, root2, Postgres())
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, res2.SQL, res1.SQL)
	testutil.AssertEqual(t, cache.Len(), 1)
}

func TestCacheKeysOnDialectAndOptions(t *testing.T) {
	t.Parallel()
	cache := NewCache()
	g := ir.NewGraph()
	root := lateDestinations(t, g)

	plain, err := cache.Compile(g, root, Postgres())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, cache.Len(), 1)

	params, err := cache.Compile(g, root, Postgres(), WithParams())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, cache.Len(), 2)
	if plain.SQL == params.SQL {
		t.Fatalf("parameterized SQL should differ, both were %q", plain.SQL)
	}

	_, err = cache.Compile(g, root, SQLite())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, cache.Len(), 3)
}

func TestCacheHandsOutFreshParamSlices(t *testing.T) {
	t.Parallel()
	cache := NewCache()
	g := ir.NewGraph()
	root := lateDestinations(t, g)

	first, err := cache.Compile(g, root, Postgres(), WithParams())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, first.Params[0].(int64), int64(10))
	first.Params[0] = int64(-1)

	second, err := cache.Compile(g, root, Postgres(), WithParams())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, second.Params[0].(int64), int64(10))
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	t.Parallel()
	cache := NewCache()
	g := ir.NewGraph()
	flights := flightsTable(t, g)
	airports := airportsTable(t, g)
	on, err := g.Equals(column(t, g, flights, "dest"), column(t, g, airports, "code"))
	testutil.AssertNoError(t, err)
	join, err := g.Join(ir.FullOuterJoin, flights, airports, on)
	testutil.AssertNoError(t, err)

	_, err = cache.Compile(g, join, MySQL())
	testutil.AssertErrorIs(t, err, ErrUnsupportedOperator)
	testutil.AssertEqual(t, cache.Len(), 0)
}
