package explorer

// PlotPoint is one scatter marker. Position is its index within the Subset
// it was projected from, which is what a plot selection reports back.
type PlotPoint struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Position int     `json:"position"`
}

// Style is the fixed display policy of the scatter plot. None of it depends
// on the data.
type Style struct {
	MarkerSize     float64    `json:"marker_size"`
	Opacity        float64    `json:"opacity"`
	Color          string     `json:"color"`
	XRange         [2]float64 `json:"x_range"`
	YRange         [2]float64 `json:"y_range"`
	XTitle         string     `json:"x_title"`
	YTitle         string     `json:"y_title"`
	ShowTickLabels bool       `json:"show_tick_labels"`
	ShowAxisLine   bool       `json:"show_axis_line"`
}

// DefaultStyle is the embedding scatter's presentation.
func DefaultStyle() Style {
	return Style{
		MarkerSize: 10,
		Opacity:    0.7,
		Color:      "gray",
		XRange:     [2]float64{-50, 50},
		YRange:     [2]float64{-45, 55},
	}
}

// Figure is a plot-ready point set plus its styling.
type Figure struct {
	Revision string      `json:"revision"`
	Points   []PlotPoint `json:"points"`
	Style    Style       `json:"style"`
}

// Project maps each filtered row to its embedding coordinates. An empty
// subset gives a figure with no points.
func Project(subset Subset) Figure {
	points := make([]PlotPoint, len(subset.Entries))
	for i, e := range subset.Entries {
		points[i] = PlotPoint{X: e.Row.Dim1, Y: e.Row.Dim2, Position: i}
	}
	return Figure{
		Revision: subset.Revision,
		Points:   points,
		Style:    DefaultStyle(),
	}
}
