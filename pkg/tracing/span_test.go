package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/logger"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "figure", "req-1")
	_, filter := StartChildSpan(ctx, "filter")
	filter.SetAttr("rows", 12)
	filter.End()
	_, project := StartChildSpan(ctx, "project")
	project.End()
	root.End()

	require.Len(t, root.Children, 2)
	assert.Equal(t, "req-1", root.Children[0].TraceID)
	assert.Equal(t, 12, root.Children[0].Attrs["rows"])
	assert.Same(t, root, SpanFromContext(ctx))
}

func TestDetachedChildSpan(t *testing.T) {
	ctx, span := StartChildSpan(context.Background(), "resolve")
	span.End()
	assert.Empty(t, span.TraceID)
	assert.Same(t, span, SpanFromContext(ctx))
}

func TestLogWritesEverySpan(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, "debug", "json")

	ctx, root := StartSpan(context.Background(), "figure", "req-2")
	_, child := StartChildSpan(ctx, "render")
	child.End()
	root.End()
	root.Log(log)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"span":"figure"`)
	assert.Contains(t, lines[1], `"span":"render"`)
	assert.Contains(t, lines[1], `"depth":1`)
}
