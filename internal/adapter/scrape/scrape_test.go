package scrape

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/city-data-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserAgent = "city-data-etl-test"

func testClient() *Client {
	return NewClient(5*time.Second, testUserAgent, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fixtureServer serves testdata files by path, e.g. /population.html.
// Unknown paths return 404.
func fixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))
		data, err := os.ReadFile(filepath.Join("testdata", strings.TrimPrefix(r.URL.Path, "/")))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(data) //nolint:errcheck // test server
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPopulationScraper_TableColumnLayout(t *testing.T) {
	srv := fixtureServer(t)
	s := NewPopulationScraper(testClient(), srv.URL+"/population.html")

	records, err := s.FetchPopulation(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.RawCityRecord{
		{CityName: "Mumbai", Population: "12,442,373"},
		{CityName: "Delhi", Population: "11,034,555"},
		{CityName: "Pune", Population: "3,124,458"},
		{CityName: "Surat", Population: "4,467,797"},
		{CityName: "Navi Mumbai", Population: "1,119,477"},
		{CityName: "Pune", Population: "3,200,000"},
	}, records)
}

func TestPopulationScraper_NoTables(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><body><p>moved</p></body></html>")) //nolint:errcheck // test server
	}))
	defer srv.Close()

	records, err := NewPopulationScraper(testClient(), srv.URL).FetchPopulation(context.Background())

	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, domain.SourceEmpty, domain.ClassifySource(len(records), err))
}

func TestPopulationScraper_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	records, err := NewPopulationScraper(testClient(), srv.URL).FetchPopulation(context.Background())

	require.Error(t, err)
	assert.Nil(t, records)
	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusTooManyRequests, fetchErr.StatusCode)
	assert.Equal(t, SourcePopulation, fetchErr.Source)
}

func TestPopulationScraper_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewPopulationScraper(testClient(), url).FetchPopulation(context.Background())

	require.Error(t, err)
	assert.Equal(t, domain.SourceUnreachable, domain.ClassifySource(0, err))
}

func TestGeoScraper_AllPages(t *testing.T) {
	srv := fixtureServer(t)
	s := NewGeoScraper(testClient(), []string{srv.URL + "/geo_page1.html", srv.URL + "/geo_page2.html"})

	records, err := s.FetchGeo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.RawGeoRecord{
		{CityName: "Mumbai", Latitude: "19.076090", Longitude: "72.877426"},
		{CityName: "Pune", Latitude: "18.520430", Longitude: "73.856743"},
		{CityName: "Surat", Latitude: "21.170240", Longitude: "72.831062"},
		{CityName: "Nagpur", Latitude: "21.146633", Longitude: "79.088860"},
	}, records)
}

func TestGeoScraper_PageFailureKeepsOtherPages(t *testing.T) {
	srv := fixtureServer(t)
	s := NewGeoScraper(testClient(), []string{
		srv.URL + "/geo_page1.html",
		srv.URL + "/missing.html",
		srv.URL + "/geo_page2.html",
	})

	records, err := s.FetchGeo(context.Background())

	require.Error(t, err)
	assert.Len(t, records, 4)
	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Equal(t, domain.SourcePartial, domain.ClassifySource(len(records), err))
}

func TestGeoScraper_CancelledContextStops(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	records, err := NewGeoScraper(testClient(), []string{srv.URL, srv.URL, srv.URL}).FetchGeo(ctx)

	require.Error(t, err)
	assert.Empty(t, records)
	assert.Zero(t, hits)
}

func TestStationScraper(t *testing.T) {
	srv := fixtureServer(t)
	s := NewStationScraper(testClient(), []string{srv.URL + "/stations.html"})

	records, err := s.FetchStations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.RawStationRecord{
		{CityName: "Mumbai", StationName: "Chhatrapati Shivaji Maharaj Terminus", Code: "CSMT"},
		{CityName: "Pune", StationName: "Pune Junction", Code: "PUNE"},
		{CityName: "Surat", StationName: "Surat", Code: "ST"},
	}, records)
}

func TestScrapers_FeedMerge(t *testing.T) {
	srv := fixtureServer(t)
	client := testClient()
	ctx := context.Background()

	pop, err := NewPopulationScraper(client, srv.URL+"/population.html").FetchPopulation(ctx)
	require.NoError(t, err)
	geo, err := NewGeoScraper(client, []string{srv.URL + "/geo_page1.html", srv.URL + "/geo_page2.html"}).FetchGeo(ctx)
	require.NoError(t, err)
	stations, err := NewStationScraper(client, []string{srv.URL + "/stations.html"}).FetchStations(ctx)
	require.NoError(t, err)

	merged, report := domain.Merge(pop, geo, stations, domain.RequiredFields(true))

	assert.Len(t, merged, 3)
	assert.Equal(t, "3,200,000", merged["Pune"].Population)
	assert.Equal(t, "PUNE", merged["Pune"].Code)
	assert.Equal(t, "CSMT", merged["Mumbai"].Code)
	assert.Equal(t, 1, report.GeoUnmatched, "Nagpur has no population row")
	assert.Equal(t, 2, report.Incomplete, "Delhi and Navi Mumbai lack coordinates")
}
