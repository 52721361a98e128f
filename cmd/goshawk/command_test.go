package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bawdo/goshawk/internal/testutil"
)

// planText builds a pipeline through a session and returns its plan
// listing, the same text the repl 'plan' command prints.
func planText(t *testing.T, commands ...string) string {
	t.Helper()
	sess, _ := run(t, "postgres", commands...)
	root, err := sess.currentRoot()
	if err != nil {
		t.Fatalf("currentRoot: %v", err)
	}
	return sess.g.Dump(root)
}

// runCommand executes the root command with the given stdin and args.
func runCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// --- compile ---

func TestCompileReadsPlanFromStdin(t *testing.T) {
	t.Parallel()
	plan := planText(t,
		"table flights (dest string, arrdelay int64)",
		"from flights",
	)
	out, _, err := runCommand(t, plan, "compile", "-e", "sqlite")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, out, "SELECT * FROM \"flights\";\n")
}

func TestCompileInlinesLiteralsByDefault(t *testing.T) {
	t.Parallel()
	plan := planText(t,
		"table flights (dest string, arrdelay int64)",
		"from flights",
		"filter arrdelay > 10",
		"select dest",
	)
	out, _, err := runCommand(t, plan, "compile", "-e", "postgres")
	testutil.AssertNoError(t, err)
	if !strings.Contains(out, "> 10") {
		t.Errorf("literal not inlined:\n%s", out)
	}
	if strings.Contains(out, "$1") || strings.Contains(out, "-- params") {
		t.Errorf("unexpected parameters:\n%s", out)
	}
}

func TestCompileParamsFlag(t *testing.T) {
	t.Parallel()
	plan := planText(t,
		"table flights (dest string, arrdelay int64)",
		"from flights",
		"filter arrdelay > 10",
		"select dest",
	)
	out, _, err := runCommand(t, plan, "compile", "-e", "postgres", "--params")
	testutil.AssertNoError(t, err)
	if !strings.Contains(out, "$1") {
		t.Errorf("expected a placeholder:\n%s", out)
	}
	if !strings.Contains(out, "-- params: [10]") {
		t.Errorf("expected a params comment:\n%s", out)
	}
}

func TestCompilePrettyFlag(t *testing.T) {
	t.Parallel()
	plan := planText(t,
		"table flights (dest string, arrdelay int64)",
		"from flights",
		"filter arrdelay > 10",
		"select dest",
	)
	out, _, err := runCommand(t, plan, "compile", "-e", "postgres", "--pretty")
	testutil.AssertNoError(t, err)
	if !strings.Contains(out, "\nFROM \"flights\"") || !strings.Contains(out, "\nWHERE ") {
		t.Errorf("expected one clause per line:\n%s", out)
	}
}

func TestCompileFileFlag(t *testing.T) {
	t.Parallel()
	plan := planText(t,
		"table flights (dest string, arrdelay int64)",
		"from flights",
	)
	path := filepath.Join(t.TempDir(), "plan.txt")
	if err := os.WriteFile(path, []byte(plan), 0o600); err != nil {
		t.Fatal(err)
	}
	out, _, err := runCommand(t, "", "compile", "-e", "postgres", "-f", path)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, out, "SELECT * FROM \"flights\";\n")
}

func TestCompileMissingFileErrors(t *testing.T) {
	t.Parallel()
	_, _, err := runCommand(t, "", "compile", "-f", filepath.Join(t.TempDir(), "absent.txt"))
	if err == nil {
		t.Fatal("expected an error for a missing plan file")
	}
}

func TestCompileRejectsBadPlan(t *testing.T) {
	t.Parallel()
	_, _, err := runCommand(t, "this is not a plan", "compile", "-e", "postgres")
	if err == nil {
		t.Fatal("expected a parse error")
	}
}

// --- explain ---

func TestExplainPrintsPlanSchemaFingerprint(t *testing.T) {
	t.Parallel()
	plan := planText(t,
		"table flights (dest string, arrdelay int64)",
		"from flights",
		"filter arrdelay > 10",
		"select dest",
	)
	out, _, err := runCommand(t, plan, "explain", "-e", "postgres")
	testutil.AssertNoError(t, err)
	for _, want := range []string{
		"DatabaseTable: flights",
		"schema:",
		"fingerprint: ",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("explain output missing %q:\n%s", want, out)
		}
	}
	idx := strings.Index(out, "schema:")
	if idx < 0 {
		t.Fatalf("no schema section:\n%s", out)
	}
	tail := out[idx:]
	if !strings.Contains(tail, "dest") || strings.Contains(tail, "arrdelay") {
		t.Errorf("schema should reflect the projection, not the table:\n%s", tail)
	}
}

func TestExplainRejectsBadPlan(t *testing.T) {
	t.Parallel()
	_, _, err := runCommand(t, "garbage", "explain")
	if err == nil {
		t.Fatal("expected a parse error")
	}
}

// --- engine resolution ---

func TestUnknownEngineFlagWarnsAndFallsBack(t *testing.T) {
	t.Parallel()
	plan := planText(t,
		"table flights (dest string, arrdelay int64)",
		"from flights",
	)
	out, errOut, err := runCommand(t, plan, "compile", "-e", "oracle")
	testutil.AssertNoError(t, err)
	if !strings.Contains(errOut, "Warning:") || !strings.Contains(errOut, "using postgres") {
		t.Errorf("expected a fallback warning, got:\n%s", errOut)
	}
	if !strings.Contains(out, `FROM "flights"`) {
		t.Errorf("expected postgres output after fallback:\n%s", out)
	}
}
