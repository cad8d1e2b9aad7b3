package explorer

import (
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/dataset"
)

// RangeControl is a two-ended slider: its initial value and the hard bounds
// the handles can move within.
type RangeControl struct {
	Default Range          `json:"default"`
	Bounds  dataset.Bounds `json:"bounds"`
}

// Controls describes the dashboard inputs for a loaded dataset.
type Controls struct {
	Months       []string     `json:"months"`
	DefaultMonth string       `json:"default_month"`
	Sentiment    RangeControl `json:"sentiment"`
	Subjectivity RangeControl `json:"subjectivity"`
}

// NewControls seeds the controls from the whole dataset: month options in
// first-seen order, slider bounds from the true column min/max.
func NewControls(ds *dataset.Dataset) Controls {
	months := ds.Months()
	c := Controls{
		Months: months,
		Sentiment: RangeControl{
			Default: Range{Low: -1, High: 1},
			Bounds:  ds.SentimentBounds(),
		},
		Subjectivity: RangeControl{
			Default: Range{Low: 0, High: 1},
			Bounds:  ds.SubjectivityBounds(),
		},
	}
	if len(months) > 0 {
		c.DefaultMonth = months[0]
	}
	return c
}

// DefaultState is the filter applied before the user touches anything.
func (c Controls) DefaultState() FilterState {
	return FilterState{
		Month:        c.DefaultMonth,
		Sentiment:    c.Sentiment.Default,
		Subjectivity: c.Subjectivity.Default,
	}
}

// HasMonth reports whether month is one of the selectable options.
func (c Controls) HasMonth(month string) bool {
	return slices.Contains(c.Months, month)
}
