package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bawdo/goshawk/internal/debug"
)

// rootOptions carries settings shared by every subcommand, resolved from
// flags, environment and the optional config file.
type rootOptions struct {
	Engine  string
	DSN     string
	History string
	Debug   bool

	engineFlag string
	debugFlag  bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "goshawk",
		Short: "Build, inspect and compile portable query plans",
		Long: `goshawk builds typed relational query plans and compiles them to SQL
for postgres, mysql, sqlite or ansi engines. Run without a subcommand
to start the interactive repl.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			opts.Engine = cfg.Engine
			opts.DSN = cfg.DSN
			opts.History = cfg.History
			opts.Debug = cfg.Debug || opts.debugFlag
			if opts.engineFlag != "" {
				opts.Engine = opts.engineFlag
			}
			if _, err := dialectByName(opts.Engine); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v; using postgres\n", err)
				opts.Engine = "postgres"
			}
			debug.Init(opts.Debug)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd, opts)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.engineFlag, "engine", "e", "", "SQL engine (postgres, mysql, sqlite, ansi)")
	cmd.PersistentFlags().BoolVar(&opts.debugFlag, "debug", false, "enable debug logging")

	cmd.AddCommand(newReplCommand(opts))
	cmd.AddCommand(newCompileCommand(opts))
	cmd.AddCommand(newExplainCommand(opts))
	return cmd
}
