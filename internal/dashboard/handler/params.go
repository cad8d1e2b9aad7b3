package handler

import (
	"math"
	"net/url"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/explorer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/errors"
)

var filterParams = []string{"month", "sentiment_low", "sentiment_high", "subjectivity_low", "subjectivity_high"}

var boxParams = []string{"x0", "x1", "y0", "y1"}

func hasAny(q url.Values, keys []string) bool {
	for _, k := range keys {
		if q.Has(k) {
			return true
		}
	}
	return false
}

// parseFilterQuery overlays the filter query parameters present in q on
// base. Absent parameters keep base's value.
func parseFilterQuery(q url.Values, base explorer.FilterState) (explorer.FilterState, error) {
	state := base
	if q.Has("month") {
		state.Month = q.Get("month")
	}
	targets := []struct {
		key string
		dst *float64
	}{
		{"sentiment_low", &state.Sentiment.Low},
		{"sentiment_high", &state.Sentiment.High},
		{"subjectivity_low", &state.Subjectivity.Low},
		{"subjectivity_high", &state.Subjectivity.High},
	}
	for _, t := range targets {
		if !q.Has(t.key) {
			continue
		}
		v, err := parseFinite(q.Get(t.key))
		if err != nil {
			return base, apperrors.Invalid("%s: %v", t.key, err)
		}
		*t.dst = v
	}
	return state, nil
}

// parseBoxQuery reads a complete x0,x1,y0,y1 rectangle from q.
func parseBoxQuery(q url.Values) (explorer.Box, error) {
	var vals [4]float64
	for i, k := range boxParams {
		if !q.Has(k) {
			return explorer.Box{}, apperrors.Invalid("box selection needs %s", k)
		}
		v, err := parseFinite(q.Get(k))
		if err != nil {
			return explorer.Box{}, apperrors.Invalid("%s: %v", k, err)
		}
		vals[i] = v
	}
	return explorer.Box{X0: vals[0], X1: vals[1], Y0: vals[2], Y1: vals[3]}, nil
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrRange
	}
	return v, nil
}

// validateFilter rejects filter states the controls could never produce.
// Crossed ranges are allowed and filter to an empty figure.
func (h *Handler) validateFilter(state explorer.FilterState) error {
	if !h.controls.HasMonth(state.Month) {
		return apperrors.Invalid("unknown month %q", state.Month)
	}
	for _, v := range []float64{state.Sentiment.Low, state.Sentiment.High, state.Subjectivity.Low, state.Subjectivity.High} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperrors.Invalid("filter bounds must be finite")
		}
	}
	return nil
}

func pageNumber(q url.Values) int {
	n, err := strconv.Atoi(q.Get("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
