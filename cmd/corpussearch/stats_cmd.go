package main

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
)

type corpusStats struct {
	Documents      []indexer.Document `json:"documents"`
	Skipped        []string           `json:"skipped,omitempty"`
	Vocabulary     int                `json:"vocabulary"`
	IndexSizeBytes int64              `json:"index_size_bytes"`
	TopTerms       []index.TermStat   `json:"top_terms,omitempty"`
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	var output string
	var top int
	cmd := &cobra.Command{
		Use:   "stats <dir>",
		Short: "Index a directory and print per-document and vocabulary statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			c, err := loadCorpus(cmd.Context(), opts.cfg.Corpus, args[0], nil, nil)
			if err != nil {
				return err
			}
			stats := collectStats(c, top)
			return printStats(cmd, stats, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text|json)")
	cmd.Flags().IntVar(&top, "top", 0, "also list the N terms found in the most documents")
	return cmd
}

func collectStats(c *corpus, top int) corpusStats {
	stats := corpusStats{
		Documents:      c.engine.Documents(),
		Vocabulary:     c.engine.Terms(),
		IndexSizeBytes: c.engine.Size(),
	}
	for _, s := range c.report.Skipped {
		stats.Skipped = append(stats.Skipped, s.Name)
	}
	if top > 0 {
		vocab := c.engine.Vocabulary()
		slices.SortStableFunc(vocab, func(a, b index.TermStat) int {
			return cmp.Compare(b.DocFrequency, a.DocFrequency)
		})
		stats.TopTerms = vocab[:min(top, len(vocab))]
	}
	return stats
}

func printStats(cmd *cobra.Command, stats corpusStats, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	case "", "text":
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Documents: %d\n", len(stats.Documents))
		for _, doc := range stats.Documents {
			fmt.Fprintf(w, "  [%d] %s terms=%d searches=%d\n", doc.ID, doc.Name, doc.IndexedTermCount, doc.SearchCount)
		}
		if len(stats.Skipped) > 0 {
			fmt.Fprintf(w, "Skipped: %d\n", len(stats.Skipped))
			for _, name := range stats.Skipped {
				fmt.Fprintf(w, "  %s\n", name)
			}
		}
		fmt.Fprintf(w, "Vocabulary: %d terms\n", stats.Vocabulary)
		fmt.Fprintf(w, "Index size: %s\n", humanize.Bytes(uint64(stats.IndexSizeBytes)))
		if len(stats.TopTerms) > 0 {
			fmt.Fprintln(w, "Top terms:")
			for _, t := range stats.TopTerms {
				fmt.Fprintf(w, "  %s docs=%d\n", t.Term, t.DocFrequency)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (expected text or json)", format)
	}
}
