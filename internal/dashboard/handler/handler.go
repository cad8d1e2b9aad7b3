// Package handler implements the dashboard's HTTP endpoints: the
// server-rendered page and the JSON API behind it. Every request runs one
// synchronous recompute against the shared, read-only dataset; only the
// per-session state is mutable.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/explorer"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/figcache"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/render"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/session"
	apperrors "github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/tracing"
)

// EventSink receives interaction events. *analytics.Collector satisfies it.
type EventSink interface {
	Track(event analytics.InteractionEvent)
}

// Options carries the collaborators a Handler needs. Cache and Events are
// optional.
type Options struct {
	Sessions session.Store
	Cookies  session.Cookies
	Renderer *render.Renderer
	Cache    *figcache.FigureCache
	Events   EventSink
	Metrics  *metrics.Metrics
	Tracing  bool
}

// Handler serves the dashboard.
type Handler struct {
	ds       *dataset.Dataset
	controls explorer.Controls
	sessions session.Store
	cookies  session.Cookies
	renderer *render.Renderer
	cache    *figcache.FigureCache
	events   EventSink
	metrics  *metrics.Metrics
	tracing  bool
	page     *template.Template
	logger   *slog.Logger
}

// New creates a Handler over ds.
func New(ds *dataset.Dataset, opts Options) *Handler {
	return &Handler{
		ds:       ds,
		controls: explorer.NewControls(ds),
		sessions: opts.Sessions,
		cookies:  opts.Cookies,
		renderer: opts.Renderer,
		cache:    opts.Cache,
		events:   opts.Events,
		metrics:  opts.Metrics,
		tracing:  opts.Tracing,
		page:     pageTemplate,
		logger:   slog.Default().With("component", "dashboard-handler"),
	}
}

// ---------- Recompute pipeline ----------

// trace starts a root span for one recompute when tracing is enabled. The
// returned func ends it and logs the tree.
func (h *Handler) trace(r *http.Request, name string) (context.Context, func()) {
	if !h.tracing {
		return r.Context(), func() {}
	}
	ctx, span := tracing.StartSpan(r.Context(), name, logger.RequestID(r.Context()))
	return ctx, func() {
		span.End()
		span.Log(logger.FromContext(ctx))
	}
}

// step times fn as one named pipeline stage.
func (h *Handler) step(ctx context.Context, name string, fn func(span *tracing.Span)) {
	_, span := tracing.StartChildSpan(ctx, name)
	start := time.Now()
	fn(span)
	h.metrics.RecomputeLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	span.End()
}

func (h *Handler) filter(ctx context.Context, state explorer.FilterState) explorer.Subset {
	var subset explorer.Subset
	h.step(ctx, "filter", func(span *tracing.Span) {
		subset = explorer.Filter(h.ds, state)
		span.SetAttr("month", state.Month)
		span.SetAttr("rows", subset.Len())
	})
	return subset
}

func (h *Handler) project(ctx context.Context, subset explorer.Subset) explorer.Figure {
	var fig explorer.Figure
	h.step(ctx, "project", func(span *tracing.Span) {
		fig = explorer.Project(subset)
		span.SetAttr("points", len(fig.Points))
	})
	return fig
}

// image renders the figure for state, going through the figure cache when
// one is configured. Cache keys are revisions, so a hit skips filtering.
func (h *Handler) image(ctx context.Context, state explorer.FilterState, format render.Format) ([]byte, error) {
	renderFn := func() ([]byte, error) {
		fig := h.project(ctx, h.filter(ctx, state))
		var buf bytes.Buffer
		var err error
		h.step(ctx, "render", func(span *tracing.Span) {
			err = h.renderer.Render(&buf, fig, format)
			span.SetAttr("format", string(format))
			span.SetAttr("bytes", buf.Len())
		})
		if err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	if h.cache == nil {
		return renderFn()
	}

	width, height := h.renderer.Size()
	key := figcache.Key{
		Revision: explorer.Revision(h.ds, state),
		Format:   string(format),
		Width:    width,
		Height:   height,
	}
	img, hit, err := h.cache.GetOrRender(ctx, key, renderFn)
	if err != nil {
		return nil, err
	}
	if hit {
		h.metrics.FigureCacheHits.Inc()
	} else {
		h.metrics.FigureCacheMisses.Inc()
	}
	return img, nil
}

// ---------- Session state ----------

// loadState returns the session's state, or nil when the session has not
// rendered a figure yet.
func (h *Handler) loadState(ctx context.Context, sid string) (*session.State, error) {
	st, err := h.sessions.Get(ctx, sid)
	if errors.Is(err, apperrors.ErrSessionNotFound) {
		return nil, nil
	}
	return st, err
}

// stateOrDefault is the session's filter, or the controls' defaults.
func (h *Handler) stateOrDefault(ctx context.Context, sid string) (explorer.FilterState, error) {
	st, err := h.loadState(ctx, sid)
	if err != nil {
		return explorer.FilterState{}, err
	}
	if st == nil {
		return h.controls.DefaultState(), nil
	}
	return st.Filter, nil
}

// applyFilter is a control change: it recomputes the figure for state,
// stores it as the session's current revision and clears any selection.
func (h *Handler) applyFilter(ctx context.Context, r *http.Request, sid string, state explorer.FilterState) (explorer.Subset, explorer.Figure, error) {
	start := time.Now()
	subset := h.filter(ctx, state)
	fig := h.project(ctx, subset)

	st := &session.State{
		Filter:    state,
		Revision:  subset.Revision,
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.sessions.Put(ctx, sid, st); err != nil {
		return explorer.Subset{}, explorer.Figure{}, err
	}

	h.metrics.FigureRecomputes.Inc()
	h.metrics.FilteredRows.Observe(float64(subset.Len()))
	h.track(r, analytics.InteractionEvent{
		Type:         analytics.EventFigureRendered,
		SessionID:    sid,
		Revision:     subset.Revision,
		Filter:       state,
		FilteredRows: subset.Len(),
		LatencyMs:    time.Since(start).Milliseconds(),
	})
	logger.FromContext(ctx).Debug("figure recomputed",
		"month", state.Month,
		"rows", subset.Len(),
		"revision", subset.Revision,
	)
	return subset, fig, nil
}

// currentSubset reloads the subset the session last rendered and checks
// that revision still names it. The subset is recomputed rather than
// stored; filtering is deterministic so the entries are identical.
func (h *Handler) currentSubset(ctx context.Context, r *http.Request, sid, revision string) (*session.State, explorer.Subset, error) {
	st, err := h.loadState(ctx, sid)
	if err != nil {
		return nil, explorer.Subset{}, err
	}
	if st == nil {
		return nil, explorer.Subset{}, apperrors.New(apperrors.ErrSessionNotFound, http.StatusNotFound,
			"no figure has been rendered in this session")
	}
	if revision != st.Revision {
		h.metrics.StaleSelections.Inc()
		h.track(r, analytics.InteractionEvent{
			Type:      analytics.EventStaleSelection,
			SessionID: sid,
			Revision:  revision,
			Filter:    st.Filter,
		})
		return nil, explorer.Subset{}, apperrors.Newf(apperrors.ErrStaleSelection, http.StatusConflict,
			"selection revision %q does not match current figure %q", revision, st.Revision)
	}
	return st, h.filter(ctx, st.Filter), nil
}

// commitSelection validates positions against subset, stores them and
// resolves the table.
func (h *Handler) commitSelection(ctx context.Context, r *http.Request, sid, kind string, st *session.State, subset explorer.Subset, positions []int) ([]explorer.DisplayRecord, error) {
	start := time.Now()
	if err := explorer.ValidatePositions(positions, subset); err != nil {
		return nil, apperrors.Invalid("%v", err)
	}
	var records []explorer.DisplayRecord
	h.step(ctx, "resolve", func(span *tracing.Span) {
		records = explorer.Resolve(positions, subset)
		span.SetAttr("selected", len(records))
	})

	// A filter change may have landed since currentSubset read the state;
	// only store the selection if it still belongs to the current figure.
	revision := st.Revision
	st, err := h.sessions.Update(ctx, sid, func(cur *session.State) error {
		if cur.Revision != revision {
			return apperrors.Newf(apperrors.ErrStaleSelection, http.StatusConflict,
				"figure changed to %q while selection for %q was resolving", cur.Revision, revision)
		}
		cur.Selection = positions
		cur.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrStaleSelection) {
			h.metrics.StaleSelections.Inc()
		}
		return nil, err
	}

	h.metrics.SelectionsTotal.WithLabelValues(kind).Inc()
	h.metrics.SelectedPoints.Observe(float64(len(positions)))
	h.track(r, analytics.InteractionEvent{
		Type:      analytics.EventSelectionResolved,
		SessionID: sid,
		Revision:  st.Revision,
		Filter:    st.Filter,
		Selected:  len(positions),
		LatencyMs: time.Since(start).Milliseconds(),
	})
	return records, nil
}

// clearSelection empties the stored selection of whatever figure the
// session currently shows. It returns nil when the session has none.
func (h *Handler) clearSelection(ctx context.Context, sid string) (*session.State, error) {
	st, err := h.sessions.Update(ctx, sid, func(cur *session.State) error {
		cur.Selection = nil
		cur.UpdatedAt = time.Now().UTC()
		return nil
	})
	if errors.Is(err, apperrors.ErrSessionNotFound) {
		return nil, nil
	}
	return st, err
}

// currentTable resolves the session's stored selection. Sessions without a
// figure or selection have an empty table.
func (h *Handler) currentTable(ctx context.Context, sid string) (*session.State, []explorer.DisplayRecord, error) {
	st, err := h.loadState(ctx, sid)
	if err != nil || st == nil {
		return st, []explorer.DisplayRecord{}, err
	}
	if st.Selection == nil {
		return st, []explorer.DisplayRecord{}, nil
	}
	subset := h.filter(ctx, st.Filter)
	if subset.Revision != st.Revision || explorer.ValidatePositions(st.Selection, subset) != nil {
		// The dataset changed under a persisted session.
		return st, []explorer.DisplayRecord{}, nil
	}
	return st, explorer.Resolve(st.Selection, subset), nil
}

func (h *Handler) track(r *http.Request, event analytics.InteractionEvent) {
	if h.events == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	event.RequestID = logger.RequestID(r.Context())
	h.events.Track(event)
}

// ---------- Helpers ----------

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps err to its status code. Server-side failures are
// logged; client errors are not.
func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	h.writeError(w, status, apperrors.PublicMessage(err))
}

// decode reads a JSON body into v. An empty body leaves v unchanged.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.Invalid("invalid JSON body: %v", err)
	}
	return nil
}
