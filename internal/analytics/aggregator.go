package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/kafka"
)

// maxLatencySamples bounds the latency window; the oldest samples are
// discarded beyond it.
const maxLatencySamples = 10000

// InteractionStats summarises the events an Aggregator has consumed.
type InteractionStats struct {
	TotalEvents        int64        `json:"total_events"`
	FiguresRendered    int64        `json:"figures_rendered"`
	EmptyFigures       int64        `json:"empty_figures"`
	SelectionsResolved int64        `json:"selections_resolved"`
	SelectionsCleared  int64        `json:"selections_cleared"`
	StaleSelections    int64        `json:"stale_selections"`
	StaleRate          float64      `json:"stale_rate"`
	AvgFilteredRows    float64      `json:"avg_filtered_rows"`
	AvgSelected        float64      `json:"avg_selected"`
	AvgLatencyMs       float64      `json:"avg_latency_ms"`
	P50LatencyMs       int64        `json:"p50_latency_ms"`
	P95LatencyMs       int64        `json:"p95_latency_ms"`
	P99LatencyMs       int64        `json:"p99_latency_ms"`
	DistinctSessions   int          `json:"distinct_sessions"`
	TopMonths          []MonthCount `json:"top_months"`
	EventsPerMinute    float64      `json:"events_per_minute"`
}

// MonthCount is how many figures were rendered for one month option.
type MonthCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

// Aggregator folds interaction events into running totals.
type Aggregator struct {
	totalEvents   atomic.Int64
	figures       atomic.Int64
	emptyFigures  atomic.Int64
	selections    atomic.Int64
	clears        atomic.Int64
	stale         atomic.Int64
	filteredRows  atomic.Int64
	selectedTotal atomic.Int64

	mu          sync.RWMutex
	latencies   []int64
	monthCounts map[string]int64
	sessions    map[string]struct{}
	startTime   time.Time

	now    func() time.Time
	logger *slog.Logger
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:   make([]int64, 0, 1024),
		monthCounts: make(map[string]int64),
		sessions:    make(map[string]struct{}),
		startTime:   time.Now(),
		now:         time.Now,
		logger:      slog.Default().With("component", "interaction-aggregator"),
	}
}

// HandleEvent adapts agg to a Kafka MessageHandler. Undecodable messages are
// logged and skipped so they are still committed.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[InteractionEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode interaction event", "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Record folds one event into the totals.
func (a *Aggregator) Record(event InteractionEvent) {
	switch event.Type {
	case EventFigureRendered:
		a.figures.Add(1)
		a.filteredRows.Add(int64(event.FilteredRows))
		if event.FilteredRows == 0 {
			a.emptyFigures.Add(1)
		}
	case EventSelectionResolved:
		a.selections.Add(1)
		a.selectedTotal.Add(int64(event.Selected))
	case EventSelectionCleared:
		a.clears.Add(1)
	case EventStaleSelection:
		a.stale.Add(1)
	default:
		a.logger.Debug("ignoring unknown event type", "type", event.Type)
		return
	}
	a.totalEvents.Add(1)

	a.mu.Lock()
	defer a.mu.Unlock()
	if event.SessionID != "" {
		a.sessions[event.SessionID] = struct{}{}
	}
	switch event.Type {
	case EventFigureRendered:
		a.monthCounts[event.Filter.Month]++
		a.addLatency(event.LatencyMs)
	case EventSelectionResolved:
		a.addLatency(event.LatencyMs)
	}
}

// addLatency must be called with mu held.
func (a *Aggregator) addLatency(ms int64) {
	if len(a.latencies) >= maxLatencySamples {
		n := copy(a.latencies, a.latencies[len(a.latencies)/2:])
		a.latencies = a.latencies[:n]
	}
	a.latencies = append(a.latencies, ms)
}

// Stats returns the current summary with at most top month entries.
func (a *Aggregator) Stats(top int) InteractionStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := InteractionStats{
		TotalEvents:        a.totalEvents.Load(),
		FiguresRendered:    a.figures.Load(),
		EmptyFigures:       a.emptyFigures.Load(),
		SelectionsResolved: a.selections.Load(),
		SelectionsCleared:  a.clears.Load(),
		StaleSelections:    a.stale.Load(),
		DistinctSessions:   len(a.sessions),
	}
	if attempts := stats.SelectionsResolved + stats.StaleSelections; attempts > 0 {
		stats.StaleRate = float64(stats.StaleSelections) / float64(attempts)
	}
	if stats.FiguresRendered > 0 {
		stats.AvgFilteredRows = float64(a.filteredRows.Load()) / float64(stats.FiguresRendered)
	}
	if stats.SelectionsResolved > 0 {
		stats.AvgSelected = float64(a.selectedTotal.Load()) / float64(stats.SelectionsResolved)
	}

	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopMonths = topN(a.monthCounts, top)

	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.EventsPerMinute = float64(stats.TotalEvents) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then month, so equal counts list deterministically.
func topN(counts map[string]int64, n int) []MonthCount {
	result := make([]MonthCount, 0, len(counts))
	for month, count := range counts {
		result = append(result, MonthCount{Month: month, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Month < result[j].Month
	})
	if n >= 0 && len(result) > n {
		result = result[:n]
	}
	return result
}
