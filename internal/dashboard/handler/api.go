package handler

import (
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/explorer"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/render"
	apperrors "github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/logger"
)

// figureResponse is returned by every control change.
type figureResponse struct {
	Revision     string                   `json:"revision"`
	Filter       explorer.FilterState     `json:"filter"`
	FilteredRows int                      `json:"filtered_rows"`
	Figure       explorer.Figure          `json:"figure"`
	Table        []explorer.DisplayRecord `json:"table"`
}

// selectionResponse is returned by every selection endpoint.
type selectionResponse struct {
	Revision  string                   `json:"revision"`
	Positions []int                    `json:"positions"`
	Table     []explorer.DisplayRecord `json:"table"`
}

// Controls returns the month options, defaults and hard bounds.
func (h *Handler) Controls(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.controls)
}

// Dataset summarises the loaded table.
func (h *Handler) Dataset(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"source":       h.ds.Source(),
		"rows":         h.ds.Len(),
		"months":       h.ds.Months(),
		"sentiment":    h.ds.SentimentBounds(),
		"subjectivity": h.ds.SubjectivityBounds(),
		"fingerprint":  h.ds.Fingerprint(),
		"columns": []string{
			dataset.ColMonth, dataset.ColSentiment, dataset.ColSubjectivity,
			dataset.ColDim1, dataset.ColDim2, dataset.ColRawText,
		},
	})
}

// ApplyFilter recomputes the figure for the posted FilterState. Fields
// missing from the body keep the session's current values. The session's
// selection is cleared.
func (h *Handler) ApplyFilter(w http.ResponseWriter, r *http.Request) {
	ctx, done := h.trace(r, "figure")
	defer done()
	sid := h.cookies.ID(w, r)

	state, err := h.stateOrDefault(ctx, sid)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	if err := h.decode(w, r, &state); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	if err := h.validateFilter(state); err != nil {
		h.writeAppError(w, r, err)
		return
	}

	subset, fig, err := h.applyFilter(ctx, r, sid, state)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, figureResponse{
		Revision:     subset.Revision,
		Filter:       state,
		FilteredRows: subset.Len(),
		Figure:       fig,
		Table:        []explorer.DisplayRecord{},
	})
}

// FigureImage renders a figure as SVG or PNG. With filter query parameters
// it renders that state without touching the session; otherwise it renders
// the session's current figure.
func (h *Handler) FigureImage(format render.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, done := h.trace(r, "figure-image")
		defer done()
		sid := h.cookies.ID(w, r)

		state, err := h.stateOrDefault(ctx, sid)
		if err != nil {
			h.writeAppError(w, r, err)
			return
		}
		state, err = parseFilterQuery(r.URL.Query(), state)
		if err != nil {
			h.writeAppError(w, r, err)
			return
		}
		if err := h.validateFilter(state); err != nil {
			h.writeAppError(w, r, err)
			return
		}

		img, err := h.image(ctx, state, format)
		if err != nil {
			h.writeAppError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Length", strconv.Itoa(len(img)))
		w.Header().Set("X-Figure-Revision", explorer.Revision(h.ds, state))
		w.WriteHeader(http.StatusOK)
		w.Write(img)
	}
}

// SelectPoints resolves an explicit list of point positions.
func (h *Handler) SelectPoints(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Revision  string `json:"revision"`
		Positions []int  `json:"positions"`
	}
	if err := h.decode(w, r, &req); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.selectWith(w, r, "points", req.Revision, func(explorer.Subset) []int {
		if req.Positions == nil {
			return []int{}
		}
		return req.Positions
	})
}

// SelectBox selects the points inside a rectangle drawn on the plot.
func (h *Handler) SelectBox(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Revision string        `json:"revision"`
		Box      *explorer.Box `json:"box"`
	}
	if err := h.decode(w, r, &req); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	if req.Box == nil {
		h.writeAppError(w, r, apperrors.Invalid("box is required"))
		return
	}
	h.selectWith(w, r, "box", req.Revision, func(subset explorer.Subset) []int {
		return explorer.SelectBox(explorer.Project(subset), *req.Box)
	})
}

// SelectLasso selects the points inside a polygon drawn on the plot.
func (h *Handler) SelectLasso(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Revision string            `json:"revision"`
		Polygon  []explorer.Vertex `json:"polygon"`
	}
	if err := h.decode(w, r, &req); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.selectWith(w, r, "lasso", req.Revision, func(subset explorer.Subset) []int {
		return explorer.SelectLasso(explorer.Project(subset), req.Polygon)
	})
}

// selectWith checks the revision, picks positions on the current subset and
// commits them as the session's selection.
func (h *Handler) selectWith(w http.ResponseWriter, r *http.Request, kind, revision string, pick func(explorer.Subset) []int) {
	ctx, done := h.trace(r, "selection-"+kind)
	defer done()
	sid := h.cookies.ID(w, r)

	st, subset, err := h.currentSubset(ctx, r, sid, revision)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	positions := pick(subset)
	records, err := h.commitSelection(ctx, r, sid, kind, st, subset, positions)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, selectionResponse{
		Revision:  st.Revision,
		Positions: positions,
		Table:     records,
	})
}

// ClearSelection empties the session's table.
func (h *Handler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := h.cookies.ID(w, r)

	st, err := h.clearSelection(ctx, sid)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	revision := ""
	if st != nil {
		revision = st.Revision
		h.track(r, analytics.InteractionEvent{
			Type:      analytics.EventSelectionCleared,
			SessionID: sid,
			Revision:  st.Revision,
			Filter:    st.Filter,
		})
	}
	h.metrics.SelectionsTotal.WithLabelValues("clear").Inc()
	h.writeJSON(w, http.StatusOK, selectionResponse{
		Revision:  revision,
		Positions: []int{},
		Table:     []explorer.DisplayRecord{},
	})
}

// ResetSession forgets the session's filter, figure and selection, and
// returns the controls so the client can redraw from the defaults.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	sid := h.cookies.ID(w, r)
	if err := h.sessions.Delete(r.Context(), sid); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Debug("session reset")
	h.writeJSON(w, http.StatusOK, h.controls)
}

// Selection returns the session's current table.
func (h *Handler) Selection(w http.ResponseWriter, r *http.Request) {
	sid := h.cookies.ID(w, r)
	st, records, err := h.currentTable(r.Context(), sid)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	resp := selectionResponse{Positions: []int{}, Table: records}
	if st != nil {
		resp.Revision = st.Revision
		if st.Selection != nil && len(records) == len(st.Selection) {
			resp.Positions = st.Selection
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// CacheStats reports figure cache hit and miss counts.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	hits, misses := h.cache.Stats()
	hitRate := 0.0
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"enabled":  true,
		"hits":     hits,
		"misses":   misses,
		"hit_rate": hitRate,
	})
}

// InvalidateCache drops every cached figure.
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeAppError(w, r, apperrors.New(apperrors.ErrCacheUnavailable, http.StatusServiceUnavailable,
			"figure cache is not enabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.writeAppError(w, r, apperrors.Newf(apperrors.ErrCacheUnavailable, http.StatusServiceUnavailable,
			"figure cache invalidation failed: %v", err))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}
