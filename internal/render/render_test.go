package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/explorer"
)

func sampleFigure() explorer.Figure {
	ds := dataset.New("render", []dataset.Row{
		{Month: "Jan", Sentiment: 0.1, Subjectivity: 0.5, Dim1: -20, Dim2: 10, RawText: "a"},
		{Month: "Jan", Sentiment: 0.2, Subjectivity: 0.5, Dim1: 5, Dim2: -30, RawText: "b"},
		{Month: "Jan", Sentiment: 0.3, Subjectivity: 0.5, Dim1: 45, Dim2: 50, RawText: "c"},
	})
	state := explorer.NewControls(ds).DefaultState()
	return explorer.Project(explorer.Filter(ds, state))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("PNG")
	require.NoError(t, err)
	assert.Equal(t, PNG, f)
	assert.Equal(t, "image/png", f.ContentType())

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, SVG, f)

	_, err = ParseFormat("gif")
	assert.Error(t, err)
}

func TestRenderSVG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(640, 480).Render(&buf, sampleFigure(), SVG))

	out := buf.String()
	assert.Contains(t, out, "<svg")
	assert.Contains(t, out, "<circle")
}

func TestRenderEmptyFigure(t *testing.T) {
	var buf bytes.Buffer
	empty := explorer.Project(explorer.Subset{Entries: []explorer.Entry{}})

	require.NoError(t, New(320, 240).Render(&buf, empty, SVG))
	assert.Contains(t, buf.String(), "<svg")
	assert.NotContains(t, buf.String(), "<circle")
}

func TestPointsOutsideAxisRangesAreClipped(t *testing.T) {
	fig := explorer.Figure{
		Style: explorer.DefaultStyle(),
		Points: []explorer.PlotPoint{
			{X: 0, Y: 0, Position: 0},
			{X: 400, Y: 400, Position: 1},
			{X: -50, Y: 55, Position: 2},
			{X: 10, Y: -46, Position: 3},
		},
	}
	xs, ys := visiblePoints(fig)
	assert.Equal(t, []float64{0, -50}, xs)
	assert.Equal(t, []float64{0, 55}, ys)

	fig.Style.XRange = [2]float64{50, -50}
	xs, _ = visiblePoints(fig)
	assert.Len(t, xs, 2, "reversed range")
}

func TestRenderAllPointsOutOfRange(t *testing.T) {
	fig := explorer.Figure{
		Style:  explorer.DefaultStyle(),
		Points: []explorer.PlotPoint{{X: 400, Y: 400}, {X: -400, Y: 0, Position: 1}},
	}
	var buf bytes.Buffer
	require.NoError(t, New(320, 240).Render(&buf, fig, SVG))
	assert.NotContains(t, buf.String(), "<circle")
}

func TestRenderPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(200, 200).Render(&buf, sampleFigure(), PNG))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")))
}

func TestMarkerColorAppliesOpacity(t *testing.T) {
	c := markerColor(explorer.DefaultStyle())
	assert.Equal(t, uint8(128), c.R)
	assert.Equal(t, uint8(179), c.A)
}
