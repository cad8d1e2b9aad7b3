package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/middleware"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Consume interaction events and serve aggregated usage stats",
		Long: `Stats joins the interaction topic's consumer group, folds the dashboard's
events into running totals in memory and serves them at
GET /api/v1/interactions/stats. Totals start empty on every run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(false)
			if err != nil {
				return err
			}
			if !cfg.Kafka.Enabled {
				return errors.New("kafka.enabled is false; interaction events are not published")
			}
			return runStats(cmd.Context(), cfg, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8090", "listen address for the stats API")
	return cmd
}

// runStats consumes the interaction topic and serves the aggregate until
// ctx is cancelled.
func runStats(ctx context.Context, cfg *config.Config, addr string) error {
	topic := cfg.Kafka.Topics.InteractionEvents
	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, topic, analytics.HandleEvent(aggregator))
	defer consumer.Close()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("interaction consumer error", "error", err)
		}
	}()
	slog.Info("interaction aggregator started", "topic", topic, "group", cfg.Kafka.ConsumerGroup)

	checker := health.NewChecker(5 * time.Second)
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		consumed, failed := consumer.Counts()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d events consumed, %d rejected", consumed, failed),
		}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/interactions/stats", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.AccessLog(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         addr,
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

	slog.Info("interaction stats listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	slog.Info("interaction stats stopped")
	return nil
}
