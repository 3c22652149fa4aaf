package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
)

const shellPrompt = "\nEnter search (single-word, phrase \"...\", boolean using AND/OR/NOT) or 'exit':\n> "

func newShellCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell <dir>",
		Short: "Index a directory and read queries from standard input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Building index...")
			c, err := loadCorpus(ctx, opts.cfg.Corpus, args[0], nil, nil)
			if err != nil {
				return err
			}
			if err := c.printIndexed(cmd); err != nil {
				return err
			}
			fmt.Fprintf(out, "Indexing complete. Total docs: %d\n", c.engine.DocCount())

			exec := executor.New(c.engine, opts.cfg.Search.DefaultLimit)
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, shellPrompt)
				if !scanner.Scan() {
					break
				}
				line := strings.TrimRight(scanner.Text(), "\r")
				if line == "exit" {
					break
				}
				if line == "" {
					continue
				}
				result, err := exec.Search(ctx, line, 0)
				if err != nil {
					return err
				}
				if err := printResults(out, line, result); err != nil {
					return err
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("reading queries: %w", err)
			}
			_, err = fmt.Fprintln(out, "Goodbye!")
			return err
		},
	}
}
