package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("dataset", DatasetCheck(func() int { return 10 }))
	c.Register("redis", PingCheck(func(context.Context) error { return errors.New("dial tcp: refused") }, true))

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusUp, report.Components["dataset"].Status)
	assert.Equal(t, "dial tcp: refused", report.Components["redis"].Message)

	c.Register("dataset", DatasetCheck(func() int { return 0 }))
	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
}

func TestRunAppliesTimeout(t *testing.T) {
	c := NewChecker(10 * time.Millisecond)
	c.Register("slow", PingCheck(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, false))

	report := c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("dataset", DatasetCheck(func() int { return 3 }))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, StatusUp, report.Status)

	c.Register("redis", PingCheck(func(context.Context) error { return errors.New("down") }, false))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker(0).LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
