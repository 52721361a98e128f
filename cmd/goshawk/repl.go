package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"
)

func newReplCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive query builder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd, opts)
		},
	}
}

func runREPL(cmd *cobra.Command, opts *rootOptions) error {
	sess := NewSession(opts.Engine)
	sess.out = cmd.OutOrStdout()
	defer sess.Close()

	rl, err := readline.NewFromConfig(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     opts.History,
		HistoryLimit:    500,
		AutoComplete:    &replCompleter{sess: sess},
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	sess.rl = rl

	fmt.Fprintf(sess.out, "goshawk repl (engine: %s) - type 'help' for commands, 'exit' to quit\n", sess.engine)

	if opts.DSN != "" {
		if err := sess.Execute("connect " + opts.DSN); err != nil {
			fmt.Fprintf(sess.out, "Warning: auto-connect failed: %v\n", err)
		}
	}

	for {
		line, err := rl.ReadLine()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if err := sess.Execute(line); err != nil {
			fmt.Fprintf(sess.out, "  Error: %v\n", err)
		}
	}
	return nil
}
