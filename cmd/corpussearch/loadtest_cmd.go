package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var defaultLoadQueries = []string{
	"cat",
	"cat AND dog",
	"cat OR night",
	"cat NOT dog",
	`"cat sat"`,
	"NOT night",
	"dogs bark",
	"zzz",
}

type loadConfig struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	requests    int64
	limit       int
	queries     []string
}

type loadStats struct {
	issued    atomic.Int64
	failed    atomic.Int64
	bytesRead atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func (s *loadStats) record(d time.Duration, code int, n int64) {
	s.bytesRead.Add(n)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, d)
	s.codes[code]++
}

func newLoadTestCommand() *cobra.Command {
	cfg := loadConfig{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Send concurrent search requests to a running serve instance and report latency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if cfg.concurrency < 1 {
				return fmt.Errorf("concurrency must be at least 1, got %d", cfg.concurrency)
			}
			if len(cfg.queries) == 0 {
				cfg.queries = defaultLoadQueries
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Target:      %s\n", cfg.baseURL)
			fmt.Fprintf(out, "Concurrency: %d\n", cfg.concurrency)
			fmt.Fprintf(out, "Duration:    %s\n", cfg.duration)
			fmt.Fprintf(out, "Queries:     %d unique\n\n", len(cfg.queries))

			start := time.Now()
			stats := runLoad(cmd.Context(), cfg, &http.Client{Timeout: 10 * time.Second})
			return printLoadReport(out, stats, time.Since(start))
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "base URL of the search service")
	flags.IntVarP(&cfg.concurrency, "concurrency", "c", 10, "number of concurrent workers")
	flags.DurationVarP(&cfg.duration, "duration", "d", 30*time.Second, "how long to send requests")
	flags.Int64VarP(&cfg.requests, "requests", "r", 0, "stop after this many requests, 0 for no cap")
	flags.IntVar(&cfg.limit, "limit", 10, "limit parameter sent with every search")
	flags.StringArrayVarP(&cfg.queries, "query", "q", nil, "query to send, repeatable (default a built-in mix)")
	return cmd
}

// runLoad keeps cfg.concurrency workers cycling through the queries until
// the duration elapses, the request cap is reached, or ctx is done.
func runLoad(ctx context.Context, cfg loadConfig, client *http.Client) *loadStats {
	stats := &loadStats{codes: make(map[int]int64)}
	ctx, cancel := context.WithTimeout(ctx, cfg.duration)
	defer cancel()

	var wg sync.WaitGroup
	for worker := range cfg.concurrency {
		wg.Go(func() {
			for i := worker; ctx.Err() == nil; i++ {
				n := stats.issued.Add(1)
				if cfg.requests > 0 && n > cfg.requests {
					stats.issued.Add(-1)
					return
				}
				q := cfg.queries[i%len(cfg.queries)]
				target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d", cfg.baseURL, url.QueryEscape(q), cfg.limit)
				if err := searchOnce(ctx, client, target, stats); err != nil {
					if ctx.Err() != nil {
						stats.issued.Add(-1)
						return
					}
					stats.failed.Add(1)
				}
			}
		})
	}
	wg.Wait()
	return stats
}

func searchOnce(ctx context.Context, client *http.Client, target string, stats *loadStats) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	n, err := io.Copy(io.Discard, resp.Body)
	stats.record(time.Since(start), resp.StatusCode, n)
	return err
}

func printLoadReport(w io.Writer, stats *loadStats, elapsed time.Duration) error {
	total := stats.issued.Load()
	stats.mu.Lock()
	latencies := slices.Clone(stats.latencies)
	codes := make(map[int]int64, len(stats.codes))
	for code, n := range stats.codes {
		codes[code] = n
	}
	stats.mu.Unlock()

	var ok int64
	for code, n := range codes {
		if code >= 200 && code < 300 {
			ok += n
		}
	}
	fmt.Fprintf(w, "Requests:    %d\n", total)
	fmt.Fprintf(w, "Successful:  %d\n", ok)
	fmt.Fprintf(w, "Non-2xx:     %d\n", int64(len(latencies))-ok)
	fmt.Fprintf(w, "Errors:      %d\n", stats.failed.Load())
	fmt.Fprintf(w, "Received:    %s\n", humanize.Bytes(uint64(stats.bytesRead.Load())))
	if total > 0 && elapsed > 0 {
		fmt.Fprintf(w, "Requests/s:  %.2f\n", float64(total)/elapsed.Seconds())
	}

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Fprintln(w, "\nLatency:")
		fmt.Fprintf(w, "  min %s\n", latencies[0])
		fmt.Fprintf(w, "  avg %s\n", sum/time.Duration(len(latencies)))
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Fprintf(w, "  p%.0f %s\n", p, percentile(latencies, p))
		}
		fmt.Fprintf(w, "  max %s\n", latencies[len(latencies)-1])
	}

	if len(codes) > 0 {
		fmt.Fprintln(w, "\nStatus codes:")
		keys := make([]int, 0, len(codes))
		for code := range codes {
			keys = append(keys, code)
		}
		slices.Sort(keys)
		for _, code := range keys {
			fmt.Fprintf(w, "  %d: %d\n", code, codes[code])
		}
	}

	if total == 0 {
		return errors.New("no requests completed; is the service running?")
	}
	return nil
}

// percentile uses the nearest-rank method on sorted latencies.
func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}
