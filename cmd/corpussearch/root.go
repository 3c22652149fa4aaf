package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
)

// rootOptions holds the persistent flags and the configuration they
// resolve to. Subcommands read cfg once the root pre-run has loaded it.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	capacity   int
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{capacity: -1}
	cmd := &cobra.Command{
		Use:           "corpussearch",
		Short:         "corpussearch indexes a directory of text files and ranks them against keyword, phrase and boolean queries",
		SilenceErrors: true,
		Example: `
  # One-shot query
  corpussearch query ./docs 'cat AND "sat on"'

  # Interactive prompt
  corpussearch shell ./docs

  # HTTP API with the development config
  corpussearch serve ./docs --config configs/development.yaml

  # Hammer it for ten seconds
  corpussearch loadtest --url http://localhost:8080 -c 20 -d 10s
`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Logging.Level = opts.logLevel
			}
			if opts.logFormat != "" {
				cfg.Logging.Format = opts.logFormat
			}
			if opts.capacity >= 0 {
				cfg.Corpus.Capacity = opts.capacity
			}
			logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			opts.cfg = cfg
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to a YAML config file (CS_* environment variables override it)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	flags.IntVar(&opts.capacity, "capacity", -1, "maximum number of documents to index, 0 for no limit")

	cmd.AddCommand(newQueryCommand(opts))
	cmd.AddCommand(newShellCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newAnalyticsCommand(opts))
	cmd.AddCommand(newLoadTestCommand())
	cmd.AddCommand(newKeygenCommand())
	return cmd
}

// corpus is an indexed directory.
type corpus struct {
	engine *indexer.Engine
	report *loader.Report
}

// loadCorpus indexes dir. Metrics and tracker may be nil.
func loadCorpus(ctx context.Context, cfg config.CorpusConfig, dir string, m *metrics.Metrics, tracker analytics.Tracker) (*corpus, error) {
	engine := indexer.NewEngine(cfg)
	l := loader.New(engine, cfg)
	if m != nil {
		l = l.WithMetrics(m)
	}
	if tracker != nil {
		l = l.WithTracker(tracker)
	}
	report, err := l.LoadDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	return &corpus{engine: engine, report: report}, nil
}

// printIndexed lists the loaded documents the way the shell announces them.
func (c *corpus) printIndexed(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	for _, doc := range c.report.Loaded {
		if _, err := fmt.Fprintf(out, "Indexed: %s (terms=%d)\n", filepath.Base(doc.Name), doc.TermCount); err != nil {
			return err
		}
	}
	return nil
}
