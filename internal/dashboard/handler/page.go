package handler

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/explorer"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/render"
	apperrors "github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/errors"
)

// tablePageSize is the number of posts listed per table page.
const tablePageSize = 10

//go:embed templates/page.html
var templateFS embed.FS

var pageTemplate = template.Must(
	template.New("page.html").
		Funcs(template.FuncMap{
			"num": func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
		}).
		ParseFS(templateFS, "templates/page.html"),
)

type pageData struct {
	Controls     explorer.Controls
	Filter       explorer.FilterState
	Revision     string
	FilteredRows int
	Figure       template.HTML
	Box          explorer.Box
	Table        []explorer.DisplayRecord
	TotalRecords int
	Page         int
	Pages        int
	PrevPage     int
	NextPage     int
	Notice       string
}

// Page serves the dashboard. Query parameters drive it like the JSON API:
// filter parameters are a control change, x0,x1,y0,y1 with revision are a
// box selection, clear drops the selection and page pages the table.
// A rejected interaction keeps the previous view and shows a notice.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	ctx, done := h.trace(r, "page")
	defer done()
	sid := h.cookies.ID(w, r)
	q := r.URL.Query()

	status := http.StatusOK
	var notice string
	// reject records a client error for the page, or writes a server error
	// and reports that the request is finished.
	reject := func(err error) bool {
		code := apperrors.HTTPStatusCode(err)
		if code >= http.StatusInternalServerError {
			h.writeAppError(w, r, err)
			return true
		}
		status, notice = code, apperrors.PublicMessage(err)
		return false
	}

	st, err := h.loadState(ctx, sid)
	if err != nil {
		reject(err)
		return
	}
	state := h.controls.DefaultState()
	if st != nil {
		state = st.Filter
	}

	next, err := parseFilterQuery(q, state)
	if err == nil {
		err = h.validateFilter(next)
	}
	if err != nil {
		if reject(err) {
			return
		}
	} else if st == nil || next != st.Filter {
		if _, _, err := h.applyFilter(ctx, r, sid, next); err != nil {
			reject(err)
			return
		}
		state = next
	}

	if status == http.StatusOK && hasAny(q, boxParams) {
		if err := h.pageBoxSelect(ctx, r, sid); err != nil && reject(err) {
			return
		}
	}
	if status == http.StatusOK && q.Has("clear") {
		if err := h.pageClear(ctx, sid); err != nil && reject(err) {
			return
		}
	}

	data, err := h.pageView(ctx, sid, state, pageNumber(q))
	if err != nil {
		reject(err)
		return
	}
	data.Notice = notice

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.page.Execute(w, data); err != nil {
		h.logger.Error("failed to render page", "error", err)
	}
}

func (h *Handler) pageBoxSelect(ctx context.Context, r *http.Request, sid string) error {
	q := r.URL.Query()
	box, err := parseBoxQuery(q)
	if err != nil {
		return err
	}
	st, subset, err := h.currentSubset(ctx, r, sid, q.Get("revision"))
	if err != nil {
		return err
	}
	positions := explorer.SelectBox(h.project(ctx, subset), box)
	_, err = h.commitSelection(ctx, r, sid, "box", st, subset, positions)
	return err
}

func (h *Handler) pageClear(ctx context.Context, sid string) error {
	if _, err := h.clearSelection(ctx, sid); err != nil {
		return err
	}
	h.metrics.SelectionsTotal.WithLabelValues("clear").Inc()
	return nil
}

func (h *Handler) pageView(ctx context.Context, sid string, state explorer.FilterState, page int) (pageData, error) {
	svg, err := h.image(ctx, state, render.SVG)
	if err != nil {
		return pageData{}, err
	}
	_, records, err := h.currentTable(ctx, sid)
	if err != nil {
		return pageData{}, err
	}

	style := explorer.DefaultStyle()
	data := pageData{
		Controls:     h.controls,
		Filter:       state,
		Revision:     explorer.Revision(h.ds, state),
		FilteredRows: h.filter(ctx, state).Len(),
		Figure:       template.HTML(svg), // rendered by go-chart, not user input
		Box: explorer.Box{
			X0: style.XRange[0], X1: style.XRange[1],
			Y0: style.YRange[0], Y1: style.YRange[1],
		},
		TotalRecords: len(records),
	}

	data.Pages = max(1, (len(records)+tablePageSize-1)/tablePageSize)
	data.Page = min(page, data.Pages)
	data.PrevPage, data.NextPage = data.Page-1, data.Page+1
	start := (data.Page - 1) * tablePageSize
	end := min(start+tablePageSize, len(records))
	data.Table = records[start:end]
	return data, nil
}
