package main

import (
	"strings"
	"testing"

	"github.com/bawdo/goshawk/datatypes"
	"github.com/bawdo/goshawk/internal/testutil"
)

func TestSplitTopLevelCommas(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input string
		want  []string
	}{
		{"a, b, c", []string{"a", " b", " c"}},
		{"lag(delay, 1, 0), dest", []string{"lag(delay, 1, 0)", " dest"}},
		{"coalesce(a, b)", []string{"coalesce(a, b)"}},
		{"a", []string{"a"}},
	}
	for _, tt := range tests {
		got := splitTopLevelCommas(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("split(%q) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("split(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestSplitAsAlias(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input string
		expr  string
		alias string
	}{
		{"dest", "dest", ""},
		{"a + b as total", "a + b", "total"},
		{"a + b AS total", "a + b", "total"},
		{"cast(a as int64)", "cast(a as int64)", ""},
		{"cast(a as int64) as b", "cast(a as int64)", "b"},
	}
	for _, tt := range tests {
		expr, alias := splitAsAlias(tt.input)
		if expr != tt.expr || alias != tt.alias {
			t.Errorf("splitAsAlias(%q) = (%q, %q), want (%q, %q)",
				tt.input, expr, alias, tt.expr, tt.alias)
		}
	}
}

func TestParseTableDecl(t *testing.T) {
	t.Parallel()
	name, schema, err := parseTableDecl("flights (dest string, delay int64)")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, name, "flights")
	testutil.AssertEqual(t, schema.Len(), 2)
	testutil.AssertEqual(t, schema.Field(0).Name, "dest")
	if !schema.Field(1).Type.Equal(datatypes.Int64) {
		t.Fatalf("expected int64, got %s", schema.Field(1).Type)
	}
}

func TestParseTableDeclParameterizedTypes(t *testing.T) {
	t.Parallel()
	_, schema, err := parseTableDecl("items (price decimal(12, 2), tags array<string>)")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, schema.Len(), 2)
	if !schema.Field(0).Type.Equal(datatypes.Decimal(12, 2)) {
		t.Fatalf("expected decimal(12, 2), got %s", schema.Field(0).Type)
	}
}

func TestParseTableDeclErrors(t *testing.T) {
	t.Parallel()
	for _, input := range []string{
		"",
		"flights",
		"flights ()",
		"flights (dest)",
		"flights (dest nosuchtype)",
		"two words (a int64)",
	} {
		if _, _, err := parseTableDecl(input); err == nil {
			t.Errorf("parseTableDecl(%q) should fail", input)
		}
	}
}

func TestDialectByName(t *testing.T) {
	t.Parallel()
	for input, want := range map[string]string{
		"postgres":   "postgres",
		"postgresql": "postgres",
		"pg":         "postgres",
		"MySQL":      "mysql",
		"sqlite3":    "sqlite",
		"ansi":       "ansi",
	} {
		d, err := dialectByName(input)
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, d.Name, want)
	}
	if _, err := dialectByName("oracle"); err == nil {
		t.Fatal("expected an error for unknown engine")
	}
}

func TestFormatSchemaAligns(t *testing.T) {
	t.Parallel()
	schema, err := datatypes.NewSchema(
		datatypes.Field{Name: "id", Type: datatypes.Int64},
		datatypes.Field{Name: "destination", Type: datatypes.String},
	)
	testutil.AssertNoError(t, err)
	got := formatSchema(schema, "  ")
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	testutil.AssertEqual(t, len(lines), 2)
	testutil.AssertEqual(t, lines[0], "  id           int64")
	testutil.AssertEqual(t, lines[1], "  destination  string")
}
