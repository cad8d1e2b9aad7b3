package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSV = `,Month,Sentiment,Subjectivity,Dimension 1,Dimension 2,RawTweet
0,Jan,0.5,0.4,1.5,2.5,first post
1,Feb,-0.2,0.9,-3,4,second post
2,Jan,0.1,0.1,10,-10,third post
`

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tweets.csv")
	require.NoError(t, os.WriteFile(path, []byte(testCSV), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInspectText(t *testing.T) {
	out, err := run(t, "inspect", "--data", writeCSV(t))
	require.NoError(t, err)

	assert.Contains(t, out, "rows:          3")
	assert.Contains(t, out, "default month: Jan")
	assert.Contains(t, out, "sentiment:     [-0.2, 0.5]")
	janIdx, febIdx := strings.Index(out, "  Jan"), strings.Index(out, "  Feb")
	assert.True(t, janIdx >= 0 && febIdx > janIdx, "months keep first-seen order")
}

func TestInspectJSON(t *testing.T) {
	out, err := run(t, "inspect", "--data", writeCSV(t), "--format", "json")
	require.NoError(t, err)

	var s summary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 3, s.Rows)
	assert.Equal(t, []monthCount{{Month: "Jan", Rows: 2}, {Month: "Feb", Rows: 1}}, s.Months)
}

func TestInspectMissingDataset(t *testing.T) {
	_, err := run(t, "inspect", "--data", filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading dataset")
}

func TestRenderWritesSVG(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "jan.svg")
	out, err := run(t, "render", "--data", writeCSV(t), "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "(2 points")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
}

func TestRenderPNGWithFilter(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "feb.png")
	out, err := run(t, "render", "--data", writeCSV(t), "--out", outPath,
		"--month", "Feb", "--sentiment-low", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "(0 points")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestRenderRejectsUnknownMonth(t *testing.T) {
	_, err := run(t, "render", "--data", writeCSV(t), "--out", filepath.Join(t.TempDir(), "x.svg"), "--month", "Dec")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown month")
}

func TestStatsRequiresKafka(t *testing.T) {
	_, err := run(t, "stats")
	assert.ErrorContains(t, err, "kafka.enabled is false")
}
