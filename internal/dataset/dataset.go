// Package dataset loads the precomputed posts table once at startup and
// exposes it as immutable, process-wide state: ordered rows, distinct months
// and per-column bounds.
package dataset

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
)

// Column names the input table must carry. Any other columns are ignored.
const (
	ColMonth        = "Month"
	ColSentiment    = "Sentiment"
	ColSubjectivity = "Subjectivity"
	ColDim1         = "Dimension 1"
	ColDim2         = "Dimension 2"
	ColRawText      = "RawTweet"
)

var requiredColumns = []string{ColMonth, ColSentiment, ColSubjectivity, ColDim1, ColDim2, ColRawText}

// ErrLoad matches every *LoadError via errors.Is.
var ErrLoad = errors.New("dataset load failed")

// LoadError reports why the table could not be loaded. It is fatal at
// startup; there is no degraded mode.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("loading dataset %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("loading dataset %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// Row is one loaded post. Its identity is its position in the table.
type Row struct {
	Month        string  `json:"month"`
	Sentiment    float64 `json:"sentiment"`
	Subjectivity float64 `json:"subjectivity"`
	Dim1         float64 `json:"dim1"`
	Dim2         float64 `json:"dim2"`
	RawText      string  `json:"raw_text"`
}

// Bounds is a closed [Min, Max] interval over one numeric column.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Dataset is read-only after Load returns and safe for concurrent readers.
type Dataset struct {
	source       string
	fingerprint  string
	rows         []Row
	months       []string
	sentiment    Bounds
	subjectivity Bounds
}

// Load reads the CSV table at path.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "opening file", Err: err}
	}
	defer f.Close()
	ds, err := Read(f, path)
	if err != nil {
		return nil, err
	}
	slog.Default().With("component", "dataset").Info("dataset loaded",
		"path", path,
		"rows", ds.Len(),
		"months", len(ds.months),
		"fingerprint", ds.fingerprint[:12],
	)
	return ds, nil
}

// Read parses a CSV table from r; source names it in errors.
func Read(r io.Reader, source string) (*Dataset, error) {
	hash := sha256.New()
	cr := csv.NewReader(io.TeeReader(r, hash))
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &LoadError{Path: source, Reason: "file is empty"}
	}
	if err != nil {
		return nil, &LoadError{Path: source, Reason: "reading header", Err: err}
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, &LoadError{Path: source, Reason: "checking columns", Err: err}
	}

	ds := &Dataset{source: source}
	seen := make(map[string]struct{})
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &LoadError{Path: source, Reason: "reading records", Err: err}
		}
		row, err := parseRow(rec, cols)
		if err != nil {
			return nil, &LoadError{Path: source, Reason: fmt.Sprintf("line %d", line), Err: err}
		}
		if _, ok := seen[row.Month]; !ok {
			seen[row.Month] = struct{}{}
			ds.months = append(ds.months, row.Month)
		}
		ds.observe(row)
		ds.rows = append(ds.rows, row)
	}
	if len(ds.rows) == 0 {
		return nil, &LoadError{Path: source, Reason: "table has no rows"}
	}
	ds.fingerprint = hex.EncodeToString(hash.Sum(nil))
	return ds, nil
}

// New builds a Dataset from rows already in memory. The slice is copied.
func New(source string, rows []Row) *Dataset {
	ds := &Dataset{source: source, rows: make([]Row, 0, len(rows))}
	hash := sha256.New()
	seen := make(map[string]struct{})
	for _, row := range rows {
		if _, ok := seen[row.Month]; !ok {
			seen[row.Month] = struct{}{}
			ds.months = append(ds.months, row.Month)
		}
		ds.observe(row)
		ds.rows = append(ds.rows, row)
		fmt.Fprintf(hash, "%s|%g|%g|%g|%g|%s\n", row.Month, row.Sentiment, row.Subjectivity, row.Dim1, row.Dim2, row.RawText)
	}
	ds.fingerprint = hex.EncodeToString(hash.Sum(nil))
	return ds
}

func (d *Dataset) observe(row Row) {
	if len(d.rows) == 0 {
		d.sentiment = Bounds{Min: row.Sentiment, Max: row.Sentiment}
		d.subjectivity = Bounds{Min: row.Subjectivity, Max: row.Subjectivity}
		return
	}
	d.sentiment.Min = min(d.sentiment.Min, row.Sentiment)
	d.sentiment.Max = max(d.sentiment.Max, row.Sentiment)
	d.subjectivity.Min = min(d.subjectivity.Min, row.Subjectivity)
	d.subjectivity.Max = max(d.subjectivity.Max, row.Subjectivity)
}

// Rows returns every row in table order. Callers must not modify the slice.
func (d *Dataset) Rows() []Row { return d.rows }

// Row returns the row at original index i.
func (d *Dataset) Row(i int) Row { return d.rows[i] }

// Len is the number of loaded rows.
func (d *Dataset) Len() int { return len(d.rows) }

// Months returns the distinct month labels in first-seen order.
func (d *Dataset) Months() []string {
	out := make([]string, len(d.months))
	copy(out, d.months)
	return out
}

// SentimentBounds is the true min/max sentiment over all rows.
func (d *Dataset) SentimentBounds() Bounds { return d.sentiment }

// SubjectivityBounds is the true min/max subjectivity over all rows.
func (d *Dataset) SubjectivityBounds() Bounds { return d.subjectivity }

// Fingerprint identifies the loaded content; it changes when the file does.
func (d *Dataset) Fingerprint() string { return d.fingerprint }

// Source is the path or name the dataset was read from.
func (d *Dataset) Source() string { return d.source }

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseRow(rec []string, cols map[string]int) (Row, error) {
	var row Row
	var err error
	row.Month = strings.TrimSpace(rec[cols[ColMonth]])
	if row.Sentiment, err = parseFloat(rec, cols, ColSentiment); err != nil {
		return Row{}, err
	}
	if row.Subjectivity, err = parseFloat(rec, cols, ColSubjectivity); err != nil {
		return Row{}, err
	}
	if row.Dim1, err = parseFloat(rec, cols, ColDim1); err != nil {
		return Row{}, err
	}
	if row.Dim2, err = parseFloat(rec, cols, ColDim2); err != nil {
		return Row{}, err
	}
	row.RawText = rec[cols[ColRawText]]
	return row, nil
}

func parseFloat(rec []string, cols map[string]int, col string) (float64, error) {
	raw := strings.TrimSpace(rec[cols[col]])
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("column %q: %q is not a finite number", col, raw)
	}
	return v, nil
}
