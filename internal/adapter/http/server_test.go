package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/city-data-etl/internal/adapter/http"
	"github.com/couchcryptid/city-data-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRuns struct {
	readyErr error
	report   *domain.RunReport
	cities   []domain.CityRecord
}

func (m *mockRuns) CheckReadiness(_ context.Context) error { return m.readyErr }

func (m *mockRuns) LastRun() (domain.RunReport, []domain.CityRecord, bool) {
	if m.report == nil {
		return domain.RunReport{}, nil, false
	}
	return *m.report, m.cities, true
}

func completedRuns() *mockRuns {
	start := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	return &mockRuns{
		report: &domain.RunReport{
			RunID:      "run-42",
			StartedAt:  start,
			FinishedAt: start.Add(1500 * time.Millisecond),
			Sources: []domain.SourceReport{
				{Name: "population", Status: domain.SourceOK, Records: 3},
				{Name: "geo", Status: domain.SourcePartial, Records: 2, Error: "fetch geo page 3: status 503"},
			},
			Merge:   domain.MergeReport{PopulationRecords: 3, Incomplete: 1, Retained: 2},
			Emitted: 2,
		},
		cities: []domain.CityRecord{
			{Name: "Navi Mumbai", Population: "1,119,477", Latitude: "19.03", Longitude: "73.02"},
			{Name: "Pune", Population: "3,124,458", Latitude: "18.52", Longitude: "73.85"},
		},
	}
}

func newTestServer(runs *mockRuns) *httpadapter.Server {
	return httpadapter.NewServer(":0", runs, slog.Default())
}

func get(t *testing.T, srv http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(&mockRuns{}), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(t, newTestServer(&mockRuns{}), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(t, newTestServer(&mockRuns{readyErr: fmt.Errorf("not ready yet")}), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(&mockRuns{}), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&mockRuns{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBeforeFirstRun(t *testing.T) {
	srv := newTestServer(&mockRuns{})
	for _, path := range []string{"/api/v1/cities", "/api/v1/cities/Pune", "/api/v1/runs/last"} {
		t.Run(path, func(t *testing.T) {
			rec := get(t, srv, path)

			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.JSONEq(t, `{"error":"no completed run"}`, rec.Body.String())
		})
	}
}

func TestListCities(t *testing.T) {
	rec := get(t, newTestServer(completedRuns()), "/api/v1/cities")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		RunID  string           `json:"run_id"`
		Count  int              `json:"count"`
		Cities []map[string]any `json:"cities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-42", body.RunID)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Cities, 2)
	assert.Equal(t, "Navi Mumbai", body.Cities[0]["city_name"])
	assert.EqualValues(t, 1119477, body.Cities[0]["population"])
}

func TestGetCity(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantCode int
		wantCity string
	}{
		{name: "exact", path: "/api/v1/cities/Pune", wantCode: http.StatusOK, wantCity: "Pune"},
		{name: "escaped space", path: "/api/v1/cities/Navi%20Mumbai", wantCode: http.StatusOK, wantCity: "Navi Mumbai"},
		{name: "footnote normalized", path: "/api/v1/cities/Pune%5B3%5D", wantCode: http.StatusOK, wantCity: "Pune"},
		{name: "unknown", path: "/api/v1/cities/Atlantis", wantCode: http.StatusNotFound},
	}

	srv := newTestServer(completedRuns())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, srv, tt.path)

			require.Equal(t, tt.wantCode, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.wantCity != "" {
				assert.Equal(t, tt.wantCity, body["city_name"])
			} else {
				assert.Equal(t, "city not found", body["error"])
			}
		})
	}
}

func TestLastRun(t *testing.T) {
	rec := get(t, newTestServer(completedRuns()), "/api/v1/runs/last")

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-42", body["run_id"])
	assert.EqualValues(t, 1500, body["duration_ms"])
	assert.EqualValues(t, 2, body["emitted"])

	sources, ok := body["sources"].([]any)
	require.True(t, ok)
	require.Len(t, sources, 2)
	geo := sources[1].(map[string]any)
	assert.Equal(t, "partial", geo["status"])

	merge := body["merge"].(map[string]any)
	assert.EqualValues(t, 1, merge["incomplete"])
	assert.NotContains(t, body, "sink_errors")
}
