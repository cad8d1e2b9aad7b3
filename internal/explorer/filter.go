// Package explorer holds the dashboard's pure recompute steps: filtering the
// loaded table by the control values, projecting the filtered rows to plot
// points, and resolving plot selections back to rows.
//
// Every function here only reads the shared dataset, so all of them are safe
// to call concurrently from any number of request handlers.
package explorer

import (
	"crypto/sha256"
	"fmt"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/dataset"
)

// Table is the read-only view of the dataset the filter needs.
type Table interface {
	Rows() []dataset.Row
	Fingerprint() string
}

// Range is a closed interval [Low, High].
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether Low <= v <= High. A crossed range contains nothing.
func (r Range) Contains(v float64) bool {
	return r.Low <= v && v <= r.High
}

// Crossed reports whether Low > High.
func (r Range) Crossed() bool {
	return r.Low > r.High
}

// FilterState is the current value of the three linked controls.
type FilterState struct {
	Month        string `json:"month"`
	Sentiment    Range  `json:"sentiment"`
	Subjectivity Range  `json:"subjectivity"`
}

// Matches is the conjunction of the month, sentiment and subjectivity
// predicates.
func (s FilterState) Matches(row dataset.Row) bool {
	return row.Month == s.Month &&
		s.Sentiment.Contains(row.Sentiment) &&
		s.Subjectivity.Contains(row.Subjectivity)
}

// Entry pairs a filtered row with its position in the original table.
type Entry struct {
	Index int         `json:"index"`
	Row   dataset.Row `json:"row"`
}

// Subset is the ordered output of Filter. Revision identifies the dataset and
// filter state that produced it; plot positions are only valid against the
// Subset with the same revision.
type Subset struct {
	Revision string  `json:"revision"`
	Entries  []Entry `json:"entries"`
}

// Len is the number of filtered rows.
func (s Subset) Len() int { return len(s.Entries) }

// Valid reports whether pos indexes an entry of the subset.
func (s Subset) Valid(pos int) bool { return pos >= 0 && pos < len(s.Entries) }

// Filter returns the rows of t matching state, in table order.
func Filter(t Table, state FilterState) Subset {
	out := Subset{
		Revision: Revision(t, state),
		Entries:  []Entry{},
	}
	if state.Sentiment.Crossed() || state.Subjectivity.Crossed() {
		return out
	}
	for i, row := range t.Rows() {
		if state.Matches(row) {
			out.Entries = append(out.Entries, Entry{Index: i, Row: row})
		}
	}
	return out
}

// Revision is a stable key for (dataset content, filter state).
func Revision(t Table, state FilterState) string {
	raw := fmt.Sprintf("%s|%s|%s:%s|%s:%s",
		t.Fingerprint(),
		strconv.Quote(state.Month),
		formatFloat(state.Sentiment.Low), formatFloat(state.Sentiment.High),
		formatFloat(state.Subjectivity.Low), formatFloat(state.Subjectivity.High),
	)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", hash[:12])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
