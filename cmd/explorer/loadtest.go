package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/cookiejar"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/explorer"
)

type loadConfig struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
}

// opStats collects outcomes for one kind of request.
type opStats struct {
	total       atomic.Int64
	errors      atomic.Int64
	latencies   []time.Duration
	latenciesMu sync.Mutex
	statusCodes map[int]*atomic.Int64
	codesMu     sync.Mutex
}

func newOpStats() *opStats {
	return &opStats{
		latencies:   make([]time.Duration, 0, 10000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *opStats) record(duration time.Duration, statusCode int, err error) {
	s.total.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	if statusCode < 200 || statusCode >= 300 {
		s.errors.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.codesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.codesMu.Unlock()
}

// loadStats holds one opStats per interaction step.
type loadStats struct {
	ops map[string]*opStats
}

var loadOps = []string{"figure", "select", "image"}

func newLoadStats() *loadStats {
	s := &loadStats{ops: make(map[string]*opStats, len(loadOps))}
	for _, op := range loadOps {
		s.ops[op] = newOpStats()
	}
	return s
}

func newLoadtestCmd() *cobra.Command {
	cfg := loadConfig{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive a running dashboard with concurrent simulated sessions",
		Long: `Loadtest runs one simulated session per worker against a running
dashboard. Each session cycles through the months: it applies a filter,
box-selects the centre of the plot with the returned revision and fetches
the SVG figure. Write requests count against the server's per-session rate
limit, so 429s show up in the status codes when it is exceeded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Concurrency < 1 {
				return fmt.Errorf("concurrency must be at least 1")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "=== Sentiment Explorer Load Test ===")
			fmt.Fprintf(out, "Target:      %s\n", cfg.BaseURL)
			fmt.Fprintf(out, "Concurrency: %d\n", cfg.Concurrency)
			fmt.Fprintf(out, "Duration:    %s\n\n", cfg.Duration)

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Duration)
			defer cancel()
			stats, err := runLoadTest(ctx, cfg)
			if err != nil {
				return err
			}
			return printLoadReport(out, stats, cfg.Duration)
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "base URL of the dashboard")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 10, "number of concurrent sessions")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 30*time.Second, "test duration")
	return cmd
}

// runLoadTest fetches the controls once, then runs sessions until ctx ends.
func runLoadTest(ctx context.Context, cfg loadConfig) (*loadStats, error) {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Concurrency * 2,
		MaxIdleConnsPerHost: cfg.Concurrency * 2,
		IdleConnTimeout:     90 * time.Second,
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	var controls explorer.Controls
	setupClient := &http.Client{Timeout: 10 * time.Second, Transport: transport}
	if _, err := doJSON(ctx, setupClient, http.MethodGet, base+"/api/v1/controls", nil, &controls); err != nil {
		return nil, fmt.Errorf("fetching controls: %w", err)
	}
	if len(controls.Months) == 0 {
		return nil, fmt.Errorf("dashboard at %s has no months to filter", base)
	}

	stats := newLoadStats()
	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			jar, _ := cookiejar.New(nil)
			client := &http.Client{Timeout: 10 * time.Second, Transport: transport, Jar: jar}
			runSession(ctx, client, base, controls, workerID, stats)
		}(w)
	}
	wg.Wait()
	return stats, nil
}

// runSession loops filter, select and render for one cookie-bound session.
func runSession(ctx context.Context, client *http.Client, base string, controls explorer.Controls, offset int, stats *loadStats) {
	style := explorer.DefaultStyle()
	box := explorer.Box{
		X0: style.XRange[0] / 2, X1: style.XRange[1] / 2,
		Y0: style.YRange[0] / 2, Y1: style.YRange[1] / 2,
	}
	for i := offset; ctx.Err() == nil; i++ {
		state := controls.DefaultState()
		state.Month = controls.Months[i%len(controls.Months)]

		var fig struct {
			Revision string `json:"revision"`
		}
		start := time.Now()
		code, err := doJSON(ctx, client, http.MethodPost, base+"/api/v1/figure", state, &fig)
		if ctx.Err() != nil {
			return
		}
		stats.ops["figure"].record(time.Since(start), code, err)
		if err != nil || code != http.StatusOK {
			continue
		}

		start = time.Now()
		code, err = doJSON(ctx, client, http.MethodPost, base+"/api/v1/selection/box",
			map[string]any{"revision": fig.Revision, "box": box}, nil)
		if ctx.Err() != nil {
			return
		}
		stats.ops["select"].record(time.Since(start), code, err)

		start = time.Now()
		code, err = doJSON(ctx, client, http.MethodGet, base+"/api/v1/figure.svg", nil, nil)
		if ctx.Err() != nil {
			return
		}
		stats.ops["image"].record(time.Since(start), code, err)
	}
}

// doJSON sends body as JSON and decodes a 200 response into out when out is
// non-nil. Other bodies are drained.
func doJSON(ctx context.Context, client *http.Client, method, url string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
	}
	_, err = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, err
}

func printLoadReport(w io.Writer, stats *loadStats, duration time.Duration) error {
	var total int64
	for _, op := range loadOps {
		s := stats.ops[op]
		n := s.total.Load()
		total += n

		fmt.Fprintf(w, "=== %s ===\n", op)
		fmt.Fprintf(w, "Requests:     %d\n", n)
		fmt.Fprintf(w, "Errors:       %d\n", s.errors.Load())
		if n > 0 {
			fmt.Fprintf(w, "Requests/sec: %.2f\n", float64(n)/duration.Seconds())
		}

		s.latenciesMu.Lock()
		latencies := make([]time.Duration, len(s.latencies))
		copy(latencies, s.latencies)
		s.latenciesMu.Unlock()
		if len(latencies) > 0 {
			sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
			var sum time.Duration
			for _, l := range latencies {
				sum += l
			}
			fmt.Fprintf(w, "Latency:      min %s  avg %s  p50 %s  p95 %s  p99 %s  max %s\n",
				latencies[0],
				sum/time.Duration(len(latencies)),
				durationPercentile(latencies, 50),
				durationPercentile(latencies, 95),
				durationPercentile(latencies, 99),
				latencies[len(latencies)-1],
			)
		}

		s.codesMu.Lock()
		codes := make([]int, 0, len(s.statusCodes))
		for code := range s.statusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "  %d: %d\n", code, s.statusCodes[code].Load())
		}
		s.codesMu.Unlock()
		fmt.Fprintln(w)
	}

	if total == 0 {
		return fmt.Errorf("no requests completed; is the dashboard running?")
	}
	return nil
}

func durationPercentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
