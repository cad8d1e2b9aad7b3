// Command explorer serves the sentiment explorer dashboard and offers
// offline helpers over the same posts table.
//
// Usage:
//
//	explorer serve   [--config configs/development.yaml] [--data ProcessedTweets.csv]
//	explorer inspect [--data ProcessedTweets.csv] [--format text|json]
//	explorer render  --out figure.svg [--month Jan] [--sentiment-low -1] ...
//	explorer stats   [--config configs/development.yaml] [--addr :8090]
//	explorer loadtest [--url http://localhost:8080] [--concurrency 10] [--duration 30s]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/logger"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	dataPath   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "explorer",
		Short: "Interactive sentiment and embedding explorer for social media posts",
		Long: `Explorer loads a precomputed table of posts (2-D embedding, sentiment,
subjectivity, month, raw text) and serves a dashboard that filters the
scatter plot by month and score ranges and lists the posts selected on it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config file (defaults apply when empty)")
	cmd.PersistentFlags().StringVar(&opts.dataPath, "data", "", "path to the posts CSV (overrides dataset.path)")

	cmd.AddCommand(newServeCmd(opts), newInspectCmd(opts), newRenderCmd(opts), newStatsCmd(opts), newLoadtestCmd())
	return cmd
}

// load reads config, applies the --data override and configures logging.
// Offline commands log to stderr so their stdout stays machine-readable.
func (o *rootOptions) load(offline bool) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if o.dataPath != "" {
		cfg.Dataset.Path = o.dataPath
	}
	if offline {
		slog.SetDefault(logger.New(os.Stderr, cfg.Logging.Level, "text"))
	} else {
		logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	}
	return cfg, nil
}

func loadDataset(cfg *config.Config) (*dataset.Dataset, error) {
	ds, err := dataset.Load(cfg.Dataset.Path)
	if err != nil {
		return nil, fmt.Errorf("loading dataset: %w", err)
	}
	return ds, nil
}
