package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const (
	defaultTopMonths = 10
	maxTopMonths     = 100
)

// Handler serves aggregated interaction stats over HTTP.
type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "interaction-stats-handler"),
	}
}

// Stats writes the current summary. The optional top parameter bounds the
// month list.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top := defaultTopMonths
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "top must be a non-negative integer"})
			return
		}
		top = min(n, maxTopMonths)
	}
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats(top))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write stats response", "error", err)
	}
}
