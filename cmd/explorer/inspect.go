package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/explorer"
)

type monthCount struct {
	Month string `json:"month"`
	Rows  int    `json:"rows"`
}

type summary struct {
	Source       string            `json:"source"`
	Rows         int               `json:"rows"`
	Fingerprint  string            `json:"fingerprint"`
	Months       []monthCount      `json:"months"`
	Sentiment    dataset.Bounds    `json:"sentiment"`
	Subjectivity dataset.Bounds    `json:"subjectivity"`
	Controls     explorer.Controls `json:"controls"`
}

func newInspectCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a summary of the posts table",
		Long: `Inspect loads the posts table the way serve does and prints its row
count, months (with row counts, in dashboard order) and score bounds.

Examples:
  explorer inspect --data ProcessedTweets.csv
  explorer inspect --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unsupported format %q (text|json)", format)
			}
			cfg, err := opts.load(true)
			if err != nil {
				return err
			}
			ds, err := loadDataset(cfg)
			if err != nil {
				return err
			}
			return writeSummary(cmd.OutOrStdout(), summarize(ds), format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format (text|json)")
	return cmd
}

func summarize(ds *dataset.Dataset) summary {
	counts := make(map[string]int)
	for _, row := range ds.Rows() {
		counts[row.Month]++
	}
	months := make([]monthCount, 0, len(counts))
	for _, m := range ds.Months() {
		months = append(months, monthCount{Month: m, Rows: counts[m]})
	}
	return summary{
		Source:       ds.Source(),
		Rows:         ds.Len(),
		Fingerprint:  ds.Fingerprint(),
		Months:       months,
		Sentiment:    ds.SentimentBounds(),
		Subjectivity: ds.SubjectivityBounds(),
		Controls:     explorer.NewControls(ds),
	}
}

func writeSummary(w io.Writer, s summary, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	fmt.Fprintf(w, "source:        %s\n", s.Source)
	fmt.Fprintf(w, "rows:          %d\n", s.Rows)
	fmt.Fprintf(w, "fingerprint:   %s\n", s.Fingerprint)
	fmt.Fprintf(w, "sentiment:     [%g, %g]\n", s.Sentiment.Min, s.Sentiment.Max)
	fmt.Fprintf(w, "subjectivity:  [%g, %g]\n", s.Subjectivity.Min, s.Subjectivity.Max)
	fmt.Fprintf(w, "default month: %s\n", s.Controls.DefaultMonth)
	fmt.Fprintln(w, "months:")
	for _, m := range s.Months {
		fmt.Fprintf(w, "  %-12s %d\n", m.Month, m.Rows)
	}
	return nil
}
