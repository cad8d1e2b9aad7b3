package analytics

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/explorer"
)

type EventType string

const (
	EventFigureRendered    EventType = "figure_rendered"
	EventSelectionResolved EventType = "selection_resolved"
	EventSelectionCleared  EventType = "selection_cleared"
	EventStaleSelection    EventType = "stale_selection"
)

// InteractionEvent records one dashboard interaction. It never carries post
// text, only counts and the filter that was applied.
type InteractionEvent struct {
	Type         EventType            `json:"type"`
	SessionID    string               `json:"session_id"`
	Revision     string               `json:"revision"`
	Filter       explorer.FilterState `json:"filter"`
	FilteredRows int                  `json:"filtered_rows,omitempty"`
	Selected     int                  `json:"selected,omitempty"`
	LatencyMs    int64                `json:"latency_ms"`
	Timestamp    time.Time            `json:"timestamp"`
	RequestID    string               `json:"request_id,omitempty"`
}
