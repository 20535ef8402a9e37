package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/river-flood-recommender/internal/adapter/http"
	"github.com/couchcryptid/river-flood-recommender/internal/domain"
	"github.com/couchcryptid/river-flood-recommender/internal/recommender"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockRunner struct {
	gotOpts recommender.RunOptions
	hazards []domain.HazardEvent
	err     error
}

func (m *mockRunner) Recommend(_ context.Context, opts recommender.RunOptions) ([]domain.HazardEvent, error) {
	m.gotOpts = opts
	return m.hazards, m.err
}

func newTestServer(readyErr error, runner *mockRunner) *httpadapter.Server {
	if runner == nil {
		runner = &mockRunner{}
	}
	defaults := recommender.RunOptions{ForecastConfidencePercentage: 80}
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, runner, defaults, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("baseline not loaded"), nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "baseline not loaded", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRunUsesDefaults(t *testing.T) {
	runner := &mockRunner{hazards: []domain.HazardEvent{{ID: "h-1"}}}
	srv := newTestServer(nil, runner)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/run", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 80, runner.gotOpts.ForecastConfidencePercentage)
	assert.False(t, runner.gotOpts.IncludeNonFloodPoints)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestRunOverridesOptions(t *testing.T) {
	runner := &mockRunner{}
	srv := newTestServer(nil, runner)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/run",
		strings.NewReader(`{"forecastConfidencePercentage":60,"includeNonFloodPoints":true}`))

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 60, runner.gotOpts.ForecastConfidencePercentage)
	assert.True(t, runner.gotOpts.IncludeNonFloodPoints)
}

func TestRunRejectsBadConfidence(t *testing.T) {
	runner := &mockRunner{}
	srv := newTestServer(nil, runner)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/run",
		strings.NewReader(`{"forecastConfidencePercentage":150}`))

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunReportsFailure(t *testing.T) {
	runner := &mockRunner{err: fmt.Errorf("forecast point metadata: query failed")}
	srv := newTestServer(nil, runner)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/run", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "query failed")
}
