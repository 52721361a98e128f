package ir

import (
	"fmt"
	"strings"
	"testing"

	"github.com/bawdo/goshawk/internal/testutil"
)

func TestDotRendersSharedNodesOnce(t *testing.T) {
	t.Parallel()
	g := NewGraph()
	tbl := airlinesTable(t, g)
	arr := column(t, g, tbl, "arrdelay")
	doubled, err := g.Add(arr, arr)
	testutil.AssertNoError(t, err)

	dot := g.Dot(doubled)

	if !strings.HasPrefix(dot, "digraph plan {\n") || !strings.HasSuffix(dot, "}\n") {
		t.Fatalf("not a digraph:\n%s", dot)
	}
	// The shared column is declared once but receives both operand edges.
	testutil.AssertEqual(t, strings.Count(dot, "ColumnRef\\narrdelay"), 1)
	edge := fmt.Sprintf("n%d -> n%d", doubled, arr)
	testutil.AssertEqual(t, strings.Count(dot, edge), 2)
}

func TestDotLabelsRelationalEdges(t *testing.T) {
	t.Parallel()
	g := NewGraph()
	lim := buildDelayPlan(t, g)

	dot := g.Dot(lim)
	for _, want := range []string{
		`label="DatabaseTable\nairlines"`,
		`label="Project"`,
		`[label="IN"]`,
		`[label="total"]`,
		`[label="PRED[0]"]`,
		`label="Limit\nn=10 offset=0"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("dot output is missing %q:\n%s", want, dot)
		}
	}
}

func TestDotEscapesQuotes(t *testing.T) {
	t.Parallel()
	g := NewGraph()
	tbl, err := g.Table(`a"b`, airlinesSchema())
	testutil.AssertNoError(t, err)

	dot := g.Dot(tbl)
	if !strings.Contains(dot, `DatabaseTable\na\"b`) {
		t.Fatalf("quotes not escaped:\n%s", dot)
	}
}
