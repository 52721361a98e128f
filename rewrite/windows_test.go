package rewrite

import (
	"strings"
	"testing"

	"github.com/bawdo/goshawk/datatypes"
	"github.com/bawdo/goshawk/internal/testutil"
	"github.com/bawdo/goshawk/ir"
)

func findOp(t *testing.T, g *ir.Graph, root ir.NodeID, op ir.Op) ir.NodeID {
	t.Helper()
	for _, id := range g.Topo(root) {
		if g.Op(id) == op {
			return id
		}
	}
	t.Fatalf("no %s node in plan", op)
	return ir.InvalidNode
}

// meanOverDest wraps a windowed mean of arrdelay partitioned by dest,
// optionally ordered by arrdelay.
func meanOverDest(t *testing.T, g *ir.Graph, tbl ir.NodeID, ordered bool, frame *ir.WindowFrame) ir.NodeID {
	t.Helper()
	mean, err := g.Mean(column(t, g, tbl, "arrdelay"), false)
	testutil.AssertNoError(t, err)
	var orders []ir.NodeID
	var specs []ir.SortSpec
	if ordered {
		orders = []ir.NodeID{column(t, g, tbl, "arrdelay")}
		specs = []ir.SortSpec{{Direction: ir.Asc}}
	}
	win, err := g.Window(mean, []ir.NodeID{column(t, g, tbl, "dest")}, orders, specs, frame)
	testutil.AssertNoError(t, err)
	return win
}

func TestDefaultFrames(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		ordered bool
		want    string
	}{
		{"ordered windows stop at the current row", true, "ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW"},
		{"unordered windows span the partition", false, "ROWS BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := ir.NewGraph()
			tbl := airlinesTable(t, g)
			win := meanOverDest(t, g, tbl, tt.ordered, nil)
			root := project(t, g, tbl, []string{"avg"}, []ir.NodeID{win})

			out, err := NormalizeWindows().Apply(g, root)
			testutil.AssertNoError(t, err)

			frame := g.WindowOf(findOp(t, g, out, ir.OpWindow)).Frame
			if frame == nil {
				t.Fatal("frame still unset after normalization")
			}
			testutil.AssertEqual(t, frame.String(), tt.want)
		})
	}
}

func TestExplicitFrameKept(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := airlinesTable(t, g)
	win := meanOverDest(t, g, tbl, true, ir.RowsBetween(ir.Preceding(3), ir.CurrentRow()))
	root := project(t, g, tbl, []string{"avg"}, []ir.NodeID{win})

	out, err := NormalizeWindows().Apply(g, root)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, out, root)
}

func TestSplitWindowFilter(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := airlinesTable(t, g)
	win := meanOverDest(t, g, tbl, false, nil)
	above, err := g.Greater(win, intLit(t, g, 0))
	testutil.AssertNoError(t, err)
	known, err := g.NotNull(column(t, g, tbl, "dest"))
	testutil.AssertNoError(t, err)
	flt := filter(t, g, tbl, above, known)

	out, err := NormalizeWindows().Apply(g, flt)
	testutil.AssertNoError(t, err)

	// the filter's schema survives behind a restoring projection
	testutil.AssertEqual(t, g.Op(out), ir.OpProject)
	testutil.AssertEqual(t, g.SchemaOf(out).String(), g.SchemaOf(tbl).String())

	inner := g.Input(out, 0)
	testutil.AssertEqual(t, g.Op(inner), ir.OpFilter)
	testutil.AssertEqual(t, g.NumInputs(inner)-1, 2)
	testutil.AssertEqual(t, len(windowsIn(g, exprInputs(g, inner))), 0)

	stage := g.Input(inner, 0)
	testutil.AssertEqual(t, g.Op(stage), ir.OpProject)
	testutil.AssertEqual(t, g.SchemaOf(stage).Has("_w0"), true)

	dump := g.Dump(out)
	if !strings.Contains(dump, "_w0: window(mean(r0.arrdelay), partition_by=[r0.dest], frame=rows:unbounded_preceding:unbounded_following)") {
		t.Fatalf("window not materialized in stage projection:\n%s", dump)
	}
	if !strings.Contains(dump, "(r1._w0 > 0::!int64)") {
		t.Fatalf("predicate not rebound to materialized window:\n%s", dump)
	}
	if !strings.Contains(dump, "(r1.dest is not null)") {
		t.Fatalf("plain predicate not rebound to stage:\n%s", dump)
	}
}

func TestSplitFusesStageIntoProjection(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl := airlinesTable(t, g)
	p1 := project(t, g, tbl,
		[]string{"arrdelay", "dest"},
		[]ir.NodeID{column(t, g, tbl, "arrdelay"), column(t, g, tbl, "dest")})
	mean, err := g.Mean(column(t, g, p1, "arrdelay"), false)
	testutil.AssertNoError(t, err)
	win, err := g.Window(mean, []ir.NodeID{column(t, g, p1, "dest")}, nil, nil, nil)
	testutil.AssertNoError(t, err)
	above, err := g.Greater(win, intLit(t, g, 0))
	testutil.AssertNoError(t, err)
	flt := filter(t, g, p1, above)

	out, err := NormalizeWindows().Apply(g, flt)
	testutil.AssertNoError(t, err)

	for _, id := range g.Topo(out) {
		if g.Op(id) == ir.OpProject && g.Op(g.Input(id, 0)) == ir.OpProject {
			t.Fatalf("split left a projection chain behind:\n%s", g.Dump(out))
		}
	}
}

func TestSplitAvoidsTakenColumnNames(t *testing.T) {
	t.Parallel()
	g := ir.NewGraph()
	tbl, err := g.Table("t", datatypes.MustSchema(
		datatypes.Field{Name: "x", Type: datatypes.Int32},
		datatypes.Field{Name: "_w0", Type: datatypes.String},
	))
	testutil.AssertNoError(t, err)
	mean, err := g.Mean(column(t, g, tbl, "x"), false)
	testutil.AssertNoError(t, err)
	win, err := g.Window(mean, nil, nil, nil, nil)
	testutil.AssertNoError(t, err)
	above, err := g.Greater(win, intLit(t, g, 0))
	testutil.AssertNoError(t, err)
	flt := filter(t, g, tbl, above)

	out, err := NormalizeWindows().Apply(g, flt)
	testutil.AssertNoError(t, err)

	stage := g.Input(g.Input(out, 0), 0)
	testutil.AssertEqual(t, g.SchemaOf(stage).Has("_w1"), true)
}
