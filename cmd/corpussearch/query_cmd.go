package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
)

func newQueryCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "query <dir> <query>...",
		Short: "Index a directory and run a single query against it",
		Long: `Index every matching file of <dir> and print the best-ranked documents
for the query. Remaining arguments are joined with spaces, so the query may be
passed as one quoted argument or as separate words.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()
			c, err := loadCorpus(ctx, opts.cfg.Corpus, args[0], nil, nil)
			if err != nil {
				return err
			}
			exec := executor.New(c.engine, opts.cfg.Search.DefaultLimit)
			raw := strings.Join(args[1:], " ")
			result, err := exec.Search(ctx, raw, limit)
			if err != nil {
				return err
			}
			return printResults(cmd.OutOrStdout(), raw, result)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of results to print (default from search.defaultLimit)")
	return cmd
}

func printResults(w io.Writer, raw string, result *executor.SearchResult) error {
	if len(result.Results) == 0 {
		_, err := fmt.Fprintf(w, "No results for '%s'\n", raw)
		return err
	}
	if _, err := fmt.Fprintf(w, "Top %d results for '%s':\n", len(result.Results), raw); err != nil {
		return err
	}
	for _, doc := range result.Results {
		if _, err := fmt.Fprintf(w, "  %s (score=%.6f)\n", doc.Name, doc.Score); err != nil {
			return err
		}
	}
	return nil
}
