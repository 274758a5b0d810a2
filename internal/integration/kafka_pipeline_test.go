//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/city-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/city-data-etl/internal/adapter/openweather"
	"github.com/couchcryptid/city-data-etl/internal/adapter/scrape"
	"github.com/couchcryptid/city-data-etl/internal/domain"
	"github.com/couchcryptid/city-data-etl/internal/observability"
	"github.com/couchcryptid/city-data-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopic = "test-city-records"

const populationPage = `<html><body>
<table class="wikitable">
<tr><th>City</th><th>Population</th></tr>
<tr><td>Pune[4]</td><td>3,124,458</td></tr>
<tr><td>Surat</td><td>4,467,797</td></tr>
<tr><td>Agra</td><td>1,585,704</td></tr>
</table>
</body></html>`

const geoPage = `<html><body>
<table>
<tr><th>Place Name</th><th>Latitude</th><th>Longitude</th></tr>
<tr><td><a href="/place/pune">Pune, Maharashtra, India</a></td><td>18.520430</td><td>73.856743</td></tr>
<tr><td><a href="/place/surat">Surat, Gujarat, India</a></td><td>21.170240</td><td>72.831062</td></tr>
</table>
</body></html>`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("city-etl-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func sourceServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/population", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, populationPage) //nolint:errcheck // test fixture
	})
	mux.HandleFunc("/geo/1", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, geoPage) //nolint:errcheck // test fixture
	})
	mux.HandleFunc("/geo/2", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func weatherServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lat := r.URL.Query().Get("lat")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%d,"main":{"temp":300.5,"humidity":61},"wind":{"speed":2.1},"weather":[{"description":"clear sky"}]}`, len(lat)*1000) //nolint:errcheck // test fixture
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestPipelinePublishesToKafka runs a full pass over fake HTML and weather
// servers and reads the published city records back from the broker.
func TestPipelinePublishesToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	sources := sourceServer(t)
	weatherSrv := weatherServer(t)
	metrics := observability.NewMetricsForTesting()
	logger := discardLogger()

	client := scrape.NewClient(5*time.Second, "city-data-etl-test", logger)
	weather := openweather.NewClient(openweather.Options{
		APIKey:         "test-key",
		BaseURL:        weatherSrv.URL,
		Timeout:        5 * time.Second,
		BreakerTimeout: time.Second,
	}, metrics, logger)

	writer := kafka.NewWriter([]string{broker}, testTopic, logger, metrics)
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(pipeline.Sources{
		Population: scrape.NewPopulationScraper(client, sources.URL+"/population"),
		Geo:        scrape.NewGeoScraper(client, []string{sources.URL + "/geo/1", sources.URL + "/geo/2"}),
	}, weather, []pipeline.Sink{writer}, pipeline.Options{
		RequiredFields:    domain.RequiredFields(false),
		EnrichConcurrency: 2,
	}, logger, metrics)

	report, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Emitted)
	assert.Equal(t, 2, report.Enrich.Enriched)
	assert.Equal(t, domain.SourcePartial, report.Sources[1].Status)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	got := make(map[string]domain.CityRow)
	for range 2 {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from topic")

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, report.RunID, headers["run_id"])
		_, err = time.Parse(time.RFC3339, headers["emitted_at"])
		assert.NoError(t, err, "emitted_at should be valid RFC3339")

		var row domain.CityRow
		require.NoError(t, json.Unmarshal(msg.Value, &row))
		got[string(msg.Key)] = row
	}

	require.Contains(t, got, "Pune")
	require.Contains(t, got, "Surat")
	pune := got["Pune"]
	require.NotNil(t, pune.Population)
	assert.Equal(t, int64(3124458), *pune.Population)
	require.NotNil(t, pune.WeatherConditions)
	assert.Equal(t, "clear sky", *pune.WeatherConditions)
	require.NotNil(t, pune.CityID)
}
