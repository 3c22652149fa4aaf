package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/auth/apikey"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/corpus-search/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/resilience"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve <dir>",
		Short: "Index a directory and serve the search API over HTTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cfg := opts.cfg
			if port > 0 {
				cfg.Server.Port = port
			}
			return runServe(cmd.Context(), cfg, args[0])
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (default from server.port)")
	return cmd
}

// service is everything serve runs, assembled but not yet listening.
type service struct {
	corpus  *corpus
	handler http.Handler
	metrics *metrics.Metrics
	closers []func()
}

// newService indexes dir and wires the HTTP surface around it. Redis and
// Kafka are optional: a missing or unreachable Redis disables the result
// cache, and analytics events go to Kafka only when analytics is enabled.
func newService(ctx context.Context, cfg *config.Config, dir string, reg *prometheus.Registry) (*service, error) {
	svc := &service{metrics: metrics.NewWithRegistry(reg, reg)}
	ready := false
	defer func() {
		if !ready {
			svc.Close()
		}
	}()

	aggregator := analytics.NewAggregator()
	trackers := analytics.Fanout{aggregator}
	var collector *analytics.Collector
	if cfg.Analytics.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		collector = analytics.NewCollector(producer, cfg.Analytics)
		collector.Start(ctx)
		svc.closers = append(svc.closers, func() {
			collector.Close()
			if err := producer.Close(); err != nil {
				slog.Error("closing kafka producer", "error", err)
			}
		})
		trackers = append(trackers, collector)
		slog.Info("analytics publishing enabled", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}

	var err error
	svc.corpus, err = loadCorpus(ctx, cfg.Corpus, dir, svc.metrics, trackers)
	if err != nil {
		return nil, err
	}
	engine := svc.corpus.engine

	checker := health.NewChecker()
	checker.Register("index_engine", func(ctx context.Context) health.ComponentHealth {
		if engine.DocCount() == 0 {
			return health.Degraded("no documents indexed")
		}
		return health.Up(fmt.Sprintf("%d documents, %d terms", engine.DocCount(), engine.Terms()))
	})

	var queryCache *cache.QueryCache
	redisClient, redisErr := pkgredis.NewClient(ctx, cfg.Redis)
	switch {
	case errors.Is(redisErr, pkgredis.ErrDisabled):
		slog.Info("redis not configured, search caching disabled")
	case redisErr != nil:
		slog.Warn("redis unavailable, search caching disabled", "error", redisErr)
		checker.Register("redis", func(context.Context) health.ComponentHealth {
			return health.Degraded(redisErr.Error())
		})
	default:
		svc.closers = append(svc.closers, func() { redisClient.Close() })
		breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{
			FailureThreshold: cfg.Redis.BreakerThreshold,
			Cooldown:         cfg.Redis.BreakerCooldown,
		})
		queryCache = cache.New(redisClient, cfg.Redis.CacheTTL).WithMetrics(svc.metrics).WithBreaker(breaker)
		ping := health.Optional(redisClient.Ping)
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if state := breaker.State(); state != resilience.StateClosed {
				return health.Degraded("circuit " + state.String())
			}
			return ping(ctx)
		})
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	if collector != nil {
		checker.Register("kafka", func(context.Context) health.ComponentHealth {
			published, dropped, failed := collector.Counts()
			msg := fmt.Sprintf("published=%d dropped=%d failed=%d", published, dropped, failed)
			if failed > 0 {
				return health.Degraded(msg)
			}
			return health.Up(msg)
		})
	}

	h := handler.New(engine, executor.New(engine, cfg.Search.DefaultLimit), cfg.Search, handler.Options{
		Cache:      queryCache,
		Collector:  collector,
		Aggregator: aggregator,
		Metrics:    svc.metrics,
	})

	mux := http.NewServeMux()
	h.Routes(mux)
	if cfg.Server.AllowIngest {
		var guards []func(http.Handler) http.Handler
		if len(cfg.Server.IngestKeys) > 0 {
			guards = append(guards, apikey.NewValidator(cfg.Server.IngestKeys).Middleware)
		}
		ingesthandler.New(engine, trackers, svc.metrics).Routes(mux, guards...)
		slog.Info("document ingestion enabled", "api_keys", len(cfg.Server.IngestKeys))
	}
	mux.Handle("GET /metrics", svc.metrics.Handler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, time.Minute)
		pruneCtx, stopPrune := context.WithCancel(ctx)
		go limiter.Run(pruneCtx)
		svc.closers = append(svc.closers, stopPrune)
		chain = middleware.RateLimit(limiter)(chain)
		slog.Info("rate limiting enabled", "requests_per_minute", cfg.Server.RateLimit)
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins))(chain)
	}
	chain = middleware.Metrics(svc.metrics)(chain)
	chain = middleware.RequestID(chain)
	svc.handler = chain
	ready = true
	return svc, nil
}

// Close releases the service's connections in reverse order of creation.
func (s *service) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func runServe(ctx context.Context, cfg *config.Config, dir string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, err := newService(ctx, cfg, dir, reg)
	if err != nil {
		return err
	}
	defer svc.Close()

	if cfg.Metrics.Enabled {
		shutdownMetrics := svc.metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      svc.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening",
		"addr", server.Addr,
		"documents", svc.corpus.engine.DocCount(),
		"terms", svc.corpus.engine.Terms(),
	)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	<-shutdownDone
	slog.Info("search service stopped")
	return nil
}
