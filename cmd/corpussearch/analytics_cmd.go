package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/middleware"
)

func newAnalyticsCommand(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Consume search and index events from Kafka and serve the aggregate",
		Long: `Run the standalone analytics service. It reads the events that serve
publishes to the analytics topic, aggregates them in memory and exposes the
result at GET /api/v1/analytics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cfg := opts.cfg
			if port > 0 {
				cfg.Server.Port = port
			}
			return runAnalytics(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (default from server.port)")
	return cmd
}

// analyticsMux serves agg with liveness and readiness probes. consuming
// reports whether the Kafka consumer loop is still running.
func analyticsMux(agg *analytics.Aggregator, consuming *atomic.Bool, stats func() kafka.ConsumerStats) http.Handler {
	checker := health.NewChecker()
	checker.Register("kafka", func(context.Context) health.ComponentHealth {
		if !consuming.Load() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "consumer stopped"}
		}
		s := stats()
		msg := fmt.Sprintf("processed=%d skipped=%d failed=%d", s.Processed, s.Skipped, s.Failed)
		if s.Failed > 0 {
			return health.Degraded(msg)
		}
		return health.Up(msg)
	})

	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/analytics", agg)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	return middleware.RequestID(mux)
}

func runAnalytics(ctx context.Context, cfg *config.Config) error {
	aggregator := analytics.NewAggregator()
	router := kafka.NewRouter()
	analytics.Subscribe(router, aggregator)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, router)

	var consuming atomic.Bool
	consuming.Store(true)
	go func() {
		defer consuming.Store(false)
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()
	slog.Info("analytics consumer started",
		"topic", cfg.Kafka.Topics.AnalyticsEvents,
		"group", cfg.Kafka.ConsumerGroup,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      analyticsMux(aggregator, &consuming, consumer.Stats),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("analytics server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	<-shutdownDone
	slog.Info("analytics service stopped")
	return nil
}
