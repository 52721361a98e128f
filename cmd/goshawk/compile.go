package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bawdo/goshawk/compilers"
	"github.com/bawdo/goshawk/internal/debug"
	"github.com/bawdo/goshawk/ir"
	"github.com/bawdo/goshawk/parser"
	"github.com/bawdo/goshawk/rewrite"
)

type compileOptions struct {
	*rootOptions
	File   string
	Params bool
	Pretty bool
}

func newCompileCommand(opts *rootOptions) *cobra.Command {
	copts := &compileOptions{rootOptions: opts}
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a plan listing to SQL",
		Long: `Compile reads a plan listing, as printed by the repl 'plan' command,
normalizes it, and prints SQL for the selected engine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, copts)
		},
	}
	cmd.Flags().StringVarP(&copts.File, "file", "f", "", "plan file (default: stdin)")
	cmd.Flags().BoolVar(&copts.Params, "params", false, "emit bound parameters instead of inline literals")
	cmd.Flags().BoolVar(&copts.Pretty, "pretty", false, "format the SQL across multiple lines")
	return cmd
}

func runCompile(cmd *cobra.Command, opts *compileOptions) error {
	input, err := readPlanInput(cmd, opts.File)
	if err != nil {
		return err
	}
	d, err := dialectByName(opts.Engine)
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
	compileOpts := []compilers.Option{compilers.WithoutParams()}
	if opts.Params {
		compileOpts = []compilers.Option{compilers.WithParams()}
	}
	if opts.Pretty {
		compileOpts = append(compileOpts, compilers.WithFormatting())
	}
	start := time.Now()
	res, err := compilers.Compile(g, norm, d, compileOpts...)
	if err != nil {
		return err
	}
	debug.Debug("compiled plan", "dialect", d.Name, "elapsed", time.Since(start))
	fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", res.SQL)
	if len(res.Params) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "-- params: %v\n", res.Params)
	}
	return nil
}

// readPlanInput reads the plan listing from the file flag; "" or "-"
// means stdin.
func readPlanInput(cmd *cobra.Command, file string) (string, error) {
	if file == "" || file == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
