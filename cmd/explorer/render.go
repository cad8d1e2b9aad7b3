package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/explorer"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/render"
)

type renderOptions struct {
	out              string
	format           string
	month            string
	sentimentLow     float64
	sentimentHigh    float64
	subjectivityLow  float64
	subjectivityHigh float64
	width            int
	height           int
}

func newRenderCmd(opts *rootOptions) *cobra.Command {
	ro := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Write the scatter plot for a filter to an SVG or PNG file",
		Long: `Render applies a filter to the posts table and writes the resulting
figure without starting the server. Unset filter flags take the
dashboard's defaults; the format follows --format, else the file extension.

Examples:
  explorer render --out jan.svg
  explorer render --out feb.png --month Feb --sentiment-low 0 --sentiment-high 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(true)
			if err != nil {
				return err
			}
			ds, err := loadDataset(cfg)
			if err != nil {
				return err
			}

			state := explorer.NewControls(ds).DefaultState()
			flags := cmd.Flags()
			if flags.Changed("month") {
				state.Month = ro.month
			}
			if flags.Changed("sentiment-low") {
				state.Sentiment.Low = ro.sentimentLow
			}
			if flags.Changed("sentiment-high") {
				state.Sentiment.High = ro.sentimentHigh
			}
			if flags.Changed("subjectivity-low") {
				state.Subjectivity.Low = ro.subjectivityLow
			}
			if flags.Changed("subjectivity-high") {
				state.Subjectivity.High = ro.subjectivityHigh
			}
			if !explorer.NewControls(ds).HasMonth(state.Month) {
				return fmt.Errorf("unknown month %q (have %s)", state.Month, strings.Join(ds.Months(), ", "))
			}

			formatName := ro.format
			if formatName == "" {
				formatName = strings.TrimPrefix(filepath.Ext(ro.out), ".")
			}
			format, err := render.ParseFormat(formatName)
			if err != nil {
				return err
			}

			width, height := cfg.Render.Width, cfg.Render.Height
			if ro.width > 0 {
				width = ro.width
			}
			if ro.height > 0 {
				height = ro.height
			}

			subset := explorer.Filter(ds, state)
			if err := writeFigure(ro.out, render.New(width, height), explorer.Project(subset), format); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d points, revision %s)\n", ro.out, subset.Len(), subset.Revision)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&ro.out, "out", "o", "", "output file")
	f.StringVar(&ro.format, "format", "", "svg or png (default: from --out extension)")
	f.StringVar(&ro.month, "month", "", "month to plot (default: first month in the table)")
	f.Float64Var(&ro.sentimentLow, "sentiment-low", -1, "lowest sentiment included")
	f.Float64Var(&ro.sentimentHigh, "sentiment-high", 1, "highest sentiment included")
	f.Float64Var(&ro.subjectivityLow, "subjectivity-low", 0, "lowest subjectivity included")
	f.Float64Var(&ro.subjectivityHigh, "subjectivity-high", 1, "highest subjectivity included")
	f.IntVar(&ro.width, "width", 0, "image width in pixels (default: render.width)")
	f.IntVar(&ro.height, "height", 0, "image height in pixels (default: render.height)")
	cmd.MarkFlagRequired("out")
	return cmd
}

func writeFigure(path string, r *render.Renderer, fig explorer.Figure, format render.Format) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if err := r.Render(w, fig, format); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
