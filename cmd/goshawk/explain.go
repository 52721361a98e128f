package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bawdo/goshawk/ir"
	"github.com/bawdo/goshawk/parser"
	"github.com/bawdo/goshawk/rewrite"
)

type explainOptions struct {
	*rootOptions
	File string
}

func newExplainCommand(opts *rootOptions) *cobra.Command {
	eopts := &explainOptions{rootOptions: opts}
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Print the normalized plan, its schema and fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd, eopts)
		},
	}
	cmd.Flags().StringVarP(&eopts.File, "file", "f", "", "plan file (default: stdin)")
	return cmd
}

func runExplain(cmd *cobra.Command, opts *explainOptions) error {
	input, err := readPlanInput(cmd, opts.File)
	if err != nil {
		return err
	}
	g := ir.NewGraph()
	root, err := parser.ParsePlan(g, input)
	if err != nil {
		return err
	}
	norm, err := rewrite.Normalize(g, root)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	dump := g.Dump(norm)
	if !strings.HasSuffix(dump, "\n") {
		dump += "\n"
	}
	fmt.Fprint(out, dump)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "schema:")
	fmt.Fprint(out, formatSchema(g.SchemaOf(norm), "  "))
	fmt.Fprintf(out, "\nfingerprint: %s\n", g.Fingerprint(norm))
	return nil
}
