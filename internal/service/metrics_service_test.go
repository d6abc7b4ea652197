package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceExposesFormCounters(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodPatch, "/api/v1/jadwal-forms/:id/days/:dayId/rows/:index", http.StatusUnprocessableEntity, 5*time.Millisecond)
	m.ObserveUpstream("jadwal_terpakai", http.StatusOK, 20*time.Millisecond)
	m.RecordStaleResponse()
	m.RecordRejection("OCCUPIED")
	m.RecordSubmission("create", "SUCCESS")
	m.SetActiveSessions(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `http_requests_total{method="PATCH"`)
	assert.Contains(t, text, `upstream_request_duration_seconds_count{endpoint="jadwal_terpakai",status="200"} 1`)
	assert.Contains(t, text, "jadwal_form_stale_responses_total 1")
	assert.Contains(t, text, `jadwal_form_rejections_total{reason="OCCUPIED"} 1`)
	assert.Contains(t, text, `jadwal_form_submissions_total{mode="create",outcome="SUCCESS"} 1`)
	assert.Contains(t, text, "jadwal_form_sessions_active 3")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordStaleResponse()
	m.RecordRejection("OCCUPIED")
	m.ObserveUpstream("x", 0, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
}
