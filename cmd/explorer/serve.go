package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/dashboard/handler"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/dashboard/router"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/figcache"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/render"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/session"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/resilience"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load the dataset and serve the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(false)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

// serve loads the dataset, connects the optional Redis and Kafka backends,
// and runs the HTTP server until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting sentiment explorer",
		"addr", cfg.Server.Addr(),
		"dataset", cfg.Dataset.Path,
		"debug", cfg.Server.Debug,
		"session_backend", cfg.Session.Backend,
	)

	ds, err := loadDataset(cfg)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	m.DatasetRows.Set(float64(ds.Len()))

	checker := health.NewChecker(5 * time.Second)
	checker.Register("dataset", health.DatasetCheck(ds.Len))

	// Redis backs the figure cache and optionally the session store.
	var rdb *pkgredis.Client
	if cfg.Redis.Enabled {
		rdb, err = pkgredis.NewClient(ctx, cfg.Redis, 5*time.Second)
		if err != nil {
			if cfg.Session.Backend == config.SessionBackendRedis {
				return fmt.Errorf("connecting to redis: %w", err)
			}
			slog.Warn("redis unavailable, figure cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			defer rdb.Close()
			slog.Info("connected to redis", "addr", cfg.Redis.Addr)
			checker.Register("redis", health.PingCheck(rdb.Ping, cfg.Session.Backend != config.SessionBackendRedis))
		}
	}

	var cache *figcache.FigureCache
	if rdb != nil {
		breaker := resilience.NewBreaker("figure-cache", resilience.BreakerConfig{
			FailureThreshold: cfg.Redis.BreakerThreshold,
			ResetTimeout:     cfg.Redis.BreakerReset,
		})
		cache = figcache.New(rdb, cfg.Redis.CacheTTL, breaker)
	}

	var sessions session.Store
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		sessions = session.NewRedisStore(rdb, cfg.Session.TTL)
	default:
		mem := session.NewMemoryStore(cfg.Session.TTL)
		mem.StartJanitor(ctx, time.Minute)
		go reportSessions(ctx, mem, m, 15*time.Second)
		sessions = mem
	}

	hopts := handler.Options{
		Sessions: sessions,
		Cookies:  session.Cookies{Name: cfg.Session.CookieName, MaxAge: cfg.Session.TTL},
		Renderer: render.New(cfg.Render.Width, cfg.Render.Height),
		Cache:    cache,
		Metrics:  m,
		Tracing:  cfg.Tracing.Enabled,
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.InteractionEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 100, cfg.Kafka.BufferSize, 5*time.Second)
		collectorCtx, stopCollector := context.WithCancel(context.Background())
		collector.Start(collectorCtx)
		defer func() {
			stopCollector()
			collector.Close()
		}()
		hopts.Events = collector
		slog.Info("interaction analytics enabled", "topic", cfg.Kafka.Topics.InteractionEvents)
	}

	var limiter *ratelimit.Limiter
	if cfg.Limits.Enabled {
		limiter = ratelimit.New(cfg.Limits.RequestsPerMinute, time.Minute)
		go limiter.Run(ctx, 5*time.Minute)
	}

	chain := router.New(handler.New(ds, hopts), router.Options{
		Metrics:        m,
		Health:         checker,
		Limiter:        limiter,
		CookieName:     cfg.Session.CookieName,
		RequestTimeout: cfg.Server.WriteTimeout,
		ServeMetrics:   !cfg.Metrics.Enabled,
	})

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(fmt.Sprintf(":%d", cfg.Metrics.Port), prometheus.DefaultGatherer)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("dashboard listening", "addr", server.Addr, "rows", ds.Len(), "months", len(ds.Months()))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	slog.Info("sentiment explorer stopped")
	return nil
}

// reportSessions publishes the in-memory session count as a gauge.
func reportSessions(ctx context.Context, store *session.MemoryStore, m *metrics.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ActiveSessions.Set(float64(store.Len()))
		}
	}
}
