package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshotAndHandler(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("courses", http.MethodGet, "/api/v1/courses", http.StatusOK, 20*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordProposal("course", "add")
	m.RecordResolution("course", "accepted")

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.RequestsTotal)
	assert.InDelta(t, 20.0, snap.AverageRequestDurationMs, 0.01)
	assert.Equal(t, 0.5, snap.CacheHitRatio)
	assert.Equal(t, uint64(1), snap.ProposalsTotal)
	assert.Equal(t, uint64(1), snap.ResolutionsTotal)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `proposals_total{kind="course",op="add"} 1`)
	assert.Contains(t, rec.Body.String(), `resolutions_total{decision="accepted",kind="course"} 1`)
	assert.Contains(t, rec.Body.String(), `http_requests_total{group="courses",method="GET",path="/api/v1/courses",status="200"} 1`)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordProposal("course", "add")
	m.ObserveHTTPRequest("system", http.MethodGet, "/", http.StatusOK, time.Millisecond)
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
