// Package render draws a projected figure as a static scatter chart.
package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/explorer"
)

// Format is an output image encoding.
type Format string

const (
	SVG Format = "svg"
	PNG Format = "png"
)

// ParseFormat accepts "svg" or "png" in any case.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case SVG, "":
		return SVG, nil
	case PNG:
		return PNG, nil
	default:
		return "", fmt.Errorf("unsupported figure format %q", s)
	}
}

// ContentType is the HTTP media type of f.
func (f Format) ContentType() string {
	if f == PNG {
		return "image/png"
	}
	return "image/svg+xml"
}

var namedColors = map[string]drawing.Color{
	"gray":  drawing.ColorFromHex("808080"),
	"grey":  drawing.ColorFromHex("808080"),
	"black": drawing.ColorBlack,
	"blue":  drawing.ColorBlue,
	"red":   drawing.ColorRed,
}

// Renderer turns figures into images of a fixed pixel size.
type Renderer struct {
	width  int
	height int
}

func New(width, height int) *Renderer {
	return &Renderer{width: width, height: height}
}

// Size returns the output size in pixels.
func (r *Renderer) Size() (width, height int) {
	return r.width, r.height
}

// Render writes fig to w. An empty figure still produces a valid, blank plot.
func (r *Renderer) Render(w io.Writer, fig explorer.Figure, format Format) error {
	graph := r.chartFor(fig)
	provider := chart.SVG
	if format == PNG {
		provider = chart.PNG
	}
	if err := graph.Render(provider, w); err != nil {
		return fmt.Errorf("rendering %s figure with %d points: %w", format, len(fig.Points), err)
	}
	return nil
}

func (r *Renderer) chartFor(fig explorer.Figure) chart.Chart {
	style := fig.Style
	xs, ys := visiblePoints(fig)

	markers := chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    style.MarkerSize / 2,
		DotColor:    markerColor(style),
	}
	if len(xs) == 0 {
		// go-chart refuses series without values; park one invisible dot in
		// the corner so the axes still render at their fixed ranges. This
		// also covers figures whose points all lie outside the ranges.
		xs = []float64{style.XRange[0]}
		ys = []float64{style.YRange[0]}
		markers.DotWidth = chart.Disabled
	}

	return chart.Chart{
		Width:  r.width,
		Height: r.height,
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  style.XTitle,
			Style: chart.Style{Hidden: !style.ShowTickLabels},
			Range: &chart.ContinuousRange{Min: style.XRange[0], Max: style.XRange[1]},
		},
		YAxis: chart.YAxis{
			Name:  style.YTitle,
			Style: chart.Style{Hidden: !style.ShowTickLabels},
			Range: &chart.ContinuousRange{Min: style.YRange[0], Max: style.YRange[1]},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "posts",
				Style:   markers,
				XValues: xs,
				YValues: ys,
			},
		},
	}
}

// visiblePoints returns the coordinates that fall inside the figure's fixed
// axis ranges. go-chart draws series values outside its axis range off the
// plot area, so those points are dropped here instead.
func visiblePoints(fig explorer.Figure) (xs, ys []float64) {
	xlo, xhi := orderedRange(fig.Style.XRange)
	ylo, yhi := orderedRange(fig.Style.YRange)
	xs = make([]float64, 0, len(fig.Points))
	ys = make([]float64, 0, len(fig.Points))
	for _, p := range fig.Points {
		if p.X < xlo || p.X > xhi || p.Y < ylo || p.Y > yhi {
			continue
		}
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
	}
	return xs, ys
}

func orderedRange(r [2]float64) (lo, hi float64) {
	if r[0] > r[1] {
		return r[1], r[0]
	}
	return r[0], r[1]
}

func markerColor(style explorer.Style) drawing.Color {
	c, ok := namedColors[strings.ToLower(style.Color)]
	if !ok {
		c = drawing.ColorFromHex(strings.TrimPrefix(style.Color, "#"))
	}
	alpha := math.Round(math.Max(0, math.Min(1, style.Opacity)) * 255)
	return c.WithAlpha(uint8(alpha))
}
