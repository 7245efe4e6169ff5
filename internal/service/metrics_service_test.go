package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceEngineRuns(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveEngineRun("optimize", "genetic", "solved", 120*time.Millisecond, 0)
	metrics.ObserveEngineRun("optimize", "backtracking", "search_exhausted", time.Second, 4)
	metrics.ObserveEngineRun("generate", "", "completed", 10*time.Millisecond, 1)
	metrics.ObserveDBQuery("timetables.save", 4*time.Millisecond)
	metrics.ObserveHTTPRequest(http.MethodPost, "/api/v1/timetables/generate", http.StatusOK, 20*time.Millisecond)

	snapshot := metrics.Snapshot()
	assert.Equal(t, map[string]int64{"optimize": 2, "generate": 1}, snapshot.EngineRuns)
	assert.Equal(t, uint64(1), snapshot.DBQueryCount)
	assert.Equal(t, uint64(1), snapshot.RequestsTotal)
	assert.InDelta(t, 20, snapshot.AverageRequestDurationMs, 0.001)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `timetable_engine_runs_total{algorithm="genetic",operation="optimize",status="solved"} 1`)
	assert.Contains(t, body, `timetable_engine_runs_total{algorithm="none",operation="generate",status="completed"} 1`)
	assert.Contains(t, body, "timetable_engine_conflicts_bucket")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.ObserveEngineRun("detect", "", "completed", time.Millisecond, 0)
	metrics.ObserveDBQuery("q", time.Millisecond)

	assert.Equal(t, 0, len(metrics.Snapshot().EngineRuns))
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
