package explorer

import "fmt"

// DisplayRecord is one row of the text table under the plot.
type DisplayRecord struct {
	RawText string `json:"RawTweet"`
}

// Resolve looks up the raw text of each selected position, in the order the
// positions were supplied. Every position must be valid for subset; callers
// check with ValidatePositions before passing untrusted input.
func Resolve(positions []int, subset Subset) []DisplayRecord {
	out := make([]DisplayRecord, 0, len(positions))
	for _, pos := range positions {
		out = append(out, DisplayRecord{RawText: subset.Entries[pos].Row.RawText})
	}
	return out
}

// ValidatePositions returns an error naming the first position that does not
// index subset.
func ValidatePositions(positions []int, subset Subset) error {
	for _, pos := range positions {
		if !subset.Valid(pos) {
			return fmt.Errorf("position %d outside [0, %d)", pos, subset.Len())
		}
	}
	return nil
}

// Box is a rectangular drag selection in data coordinates. Corners may be
// given in either order.
type Box struct {
	X0 float64 `json:"x0"`
	X1 float64 `json:"x1"`
	Y0 float64 `json:"y0"`
	Y1 float64 `json:"y1"`
}

func (b Box) contains(x, y float64) bool {
	return Range{min(b.X0, b.X1), max(b.X0, b.X1)}.Contains(x) &&
		Range{min(b.Y0, b.Y1), max(b.Y0, b.Y1)}.Contains(y)
}

// SelectBox returns the positions of the points inside b, in figure order.
func SelectBox(fig Figure, b Box) []int {
	out := []int{}
	for _, p := range fig.Points {
		if b.contains(p.X, p.Y) {
			out = append(out, p.Position)
		}
	}
	return out
}

// Vertex is one corner of a lasso polygon.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SelectLasso returns the positions of the points inside the closed polygon,
// in figure order. Polygons with fewer than three vertices select nothing.
func SelectLasso(fig Figure, polygon []Vertex) []int {
	out := []int{}
	if len(polygon) < 3 {
		return out
	}
	for _, p := range fig.Points {
		if insidePolygon(p.X, p.Y, polygon) {
			out = append(out, p.Position)
		}
	}
	return out
}

// insidePolygon uses the even-odd crossing rule.
func insidePolygon(x, y float64, poly []Vertex) bool {
	inside := false
	j := len(poly) - 1
	for i := range poly {
		a, b := poly[i], poly[j]
		if (a.Y > y) != (b.Y > y) {
			crossX := (b.X-a.X)*(y-a.Y)/(b.Y-a.Y) + a.X
			if x < crossX {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}
