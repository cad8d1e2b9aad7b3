package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/explorer"
)

func figure(session, month string, rows int, latency int64) InteractionEvent {
	return InteractionEvent{
		Type:         EventFigureRendered,
		SessionID:    session,
		Filter:       explorer.FilterState{Month: month},
		FilteredRows: rows,
		LatencyMs:    latency,
	}
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	start := agg.startTime
	agg.now = func() time.Time { return start.Add(2 * time.Minute) }

	agg.Record(figure("s1", "Jan", 10, 4))
	agg.Record(figure("s1", "Feb", 0, 2))
	agg.Record(figure("s2", "Jan", 20, 6))
	agg.Record(InteractionEvent{Type: EventSelectionResolved, SessionID: "s1", Selected: 3, LatencyMs: 1})
	agg.Record(InteractionEvent{Type: EventStaleSelection, SessionID: "s2"})
	agg.Record(InteractionEvent{Type: EventSelectionCleared, SessionID: "s3"})
	agg.Record(InteractionEvent{Type: "bogus", SessionID: "s4"})

	stats := agg.Stats(10)
	assert.Equal(t, int64(6), stats.TotalEvents)
	assert.Equal(t, int64(3), stats.FiguresRendered)
	assert.Equal(t, int64(1), stats.EmptyFigures)
	assert.Equal(t, int64(1), stats.SelectionsResolved)
	assert.Equal(t, int64(1), stats.SelectionsCleared)
	assert.Equal(t, int64(1), stats.StaleSelections)
	assert.InDelta(t, 0.5, stats.StaleRate, 1e-9)
	assert.InDelta(t, 10.0, stats.AvgFilteredRows, 1e-9)
	assert.InDelta(t, 3.0, stats.AvgSelected, 1e-9)
	assert.InDelta(t, 3.25, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(4), stats.P50LatencyMs)
	assert.Equal(t, int64(6), stats.P99LatencyMs)
	assert.Equal(t, 3, stats.DistinctSessions)
	assert.Equal(t, []MonthCount{{Month: "Jan", Count: 2}, {Month: "Feb", Count: 1}}, stats.TopMonths)
	assert.InDelta(t, 3.0, stats.EventsPerMinute, 1e-9)
}

func TestAggregatorTopMonthsTruncates(t *testing.T) {
	agg := NewAggregator()
	for _, m := range []string{"Mar", "Jan", "Feb", "Jan"} {
		agg.Record(figure("s", m, 1, 1))
	}
	stats := agg.Stats(2)
	assert.Equal(t, []MonthCount{{Month: "Jan", Count: 2}, {Month: "Feb", Count: 1}}, stats.TopMonths)
}

func TestAggregatorEmpty(t *testing.T) {
	stats := NewAggregator().Stats(10)
	assert.Zero(t, stats.TotalEvents)
	assert.Zero(t, stats.StaleRate)
	assert.Zero(t, stats.P95LatencyMs)
	assert.Empty(t, stats.TopMonths)
}

func TestLatencyWindowIsBounded(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < maxLatencySamples+10; i++ {
		agg.Record(figure("s", "Jan", 1, int64(i)))
	}
	assert.LessOrEqual(t, len(agg.latencies), maxLatencySamples)
	assert.Equal(t, int64(maxLatencySamples+9), agg.latencies[len(agg.latencies)-1])
}

func TestHandleEventSkipsBadMessages(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)

	raw, err := json.Marshal(figure("s1", "Jan", 5, 3))
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), []byte("s1"), raw))
	require.NoError(t, handle(context.Background(), []byte("s1"), []byte("not json")))

	assert.Equal(t, int64(1), agg.Stats(10).FiguresRendered)
}

func TestStatsHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Record(figure("s1", "Jan", 5, 3))
	agg.Record(figure("s1", "Feb", 5, 3))
	h := NewHandler(agg)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/interactions/stats?top=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var stats InteractionStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(2), stats.FiguresRendered)
	assert.Len(t, stats.TopMonths, 1)

	rec = httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/interactions/stats?top=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"top must be a non-negative integer"}`, rec.Body.String())
}
