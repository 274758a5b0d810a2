package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "city_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the city pipeline.
type Metrics struct {
	RunsTotal            *prometheus.CounterVec // labels: outcome={success,sink_error}
	RunDuration          prometheus.Histogram
	PipelineRunning      prometheus.Gauge
	LastSuccessTimestamp prometheus.Gauge

	// Source and merge metrics.
	RecordsScraped *prometheus.CounterVec // labels: source
	SourceErrors   *prometheus.CounterVec // labels: source, kind={fetch,parse,other}
	CitiesMerged   prometheus.Gauge
	CitiesDropped  *prometheus.CounterVec // labels: reason={geo_unmatched,station_unmatched,incomplete,duplicate}

	// Weather enrichment metrics.
	WeatherRequests    *prometheus.CounterVec // labels: outcome={success,error}
	WeatherCache       *prometheus.CounterVec // labels: result={hit,miss}
	WeatherAPIDuration prometheus.Histogram
	WeatherEnabled     prometheus.Gauge

	// Sink metrics.
	SinkRows *prometheus.CounterVec // labels: sink, outcome={written,skipped,collision,failed}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete scrape-merge-enrich-sink run.",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		LastSuccessTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run whose sinks all succeeded.",
		}),
		RecordsScraped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_scraped_total",
			Help:      "Raw records produced by each source.",
		}, []string{"source"}),
		SourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Source fetch failures by source and error kind.",
		}, []string{"source", "kind"}),
		CitiesMerged: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cities_merged",
			Help:      "Complete city records retained by the last merge.",
		}),
		CitiesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cities_dropped_total",
			Help:      "Records or keys discarded during merge, by reason.",
		}, []string{"reason"}),
		WeatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_requests_total",
			Help:      "Weather API requests by outcome.",
		}, []string{"outcome"}),
		WeatherCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_cache_total",
			Help:      "Weather cache lookups by result.",
		}, []string{"result"}),
		WeatherAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_api_duration_seconds",
			Help:      "OpenWeather API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		WeatherEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weather_enabled",
			Help:      "1 when weather enrichment is enabled, 0 otherwise.",
		}),
		SinkRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_rows_total",
			Help:      "Rows handled by each sink, by outcome.",
		}, []string{"sink", "outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsTotal,
		m.RunDuration,
		m.PipelineRunning,
		m.LastSuccessTimestamp,
		m.RecordsScraped,
		m.SourceErrors,
		m.CitiesMerged,
		m.CitiesDropped,
		m.WeatherRequests,
		m.WeatherCache,
		m.WeatherAPIDuration,
		m.WeatherEnabled,
		m.SinkRows,
	}
}
