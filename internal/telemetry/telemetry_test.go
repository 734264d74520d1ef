package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestServeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsObserver(reg)
	m.OnRequestStart("GET", testURL)
	m.OnRequestEnd("GET", testURL, 200, 0, nil)

	srv, err := ServeMetrics("127.0.0.1:0", reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `stackmob_requests_total{host="api.mob1.stackmob.com",method="GET",status="200"} 1`)
}

func TestServeMetrics_BadAddr(t *testing.T) {
	_, err := ServeMetrics("256.0.0.1:bad", prometheus.NewRegistry())
	assert.Error(t, err)
}

func TestTimeOperation(t *testing.T) {
	cfg := testConfig()
	cfg.EnableTracing = true
	cfg.ExportToFile = true
	cfg.SamplingRate = 1
	cfg.TracesFilePath = filepath.Join(t.TempDir(), "traces.json")
	require.NoError(t, InitTracing(cfg))
	t.Cleanup(func() { _ = InitTracing(&Config{}) })

	ctx, done := TimeOperation(context.Background(), "count")
	assert.True(t, trace.SpanFromContext(ctx).SpanContext().IsValid())
	done(nil)

	_, done = TimeOperation(context.Background(), "delete")
	done(errors.New("forbidden"))

	require.NoError(t, CloseTracing(context.Background()))
	spans := readSpans(t, cfg.TracesFilePath)
	require.Len(t, spans, 2)

	status := map[string]string{}
	for _, s := range spans {
		status[s.Name] = s.Status
	}
	assert.Equal(t, "Ok", status["count"])
	assert.Equal(t, "Error", status["delete"])
}

func TestInitShutdown_FileMode(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.ExportToFile = true
	cfg.EnableMetrics = true
	cfg.EnableTracing = true
	cfg.SamplingRate = 1
	cfg.MetricsInterval = 3600
	cfg.MetricsFilePath = filepath.Join(dir, "metrics.json")
	cfg.TracesFilePath = filepath.Join(dir, "traces.json")
	cfg.LogsFilePath = filepath.Join(dir, "logs.json")

	require.NoError(t, Init(cfg))
	t.Cleanup(func() {
		_ = InitTracing(&Config{})
		loggerMu.Lock()
		logger = nil
		loggerMu.Unlock()
	})

	L().Info("running")
	require.NoError(t, Shutdown(context.Background()))

	for _, name := range []string{"metrics.json", "logs.json"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.NotEmpty(t, data, name)
	}
}
