package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/city-data-etl/internal/domain"
	"github.com/couchcryptid/city-data-etl/internal/observability"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// PopulationSource produces raw population rows.
type PopulationSource interface {
	FetchPopulation(ctx context.Context) ([]domain.RawCityRecord, error)
}

// GeoSource produces raw coordinate rows.
type GeoSource interface {
	FetchGeo(ctx context.Context) ([]domain.RawGeoRecord, error)
}

// StationSource produces raw station rows.
type StationSource interface {
	FetchStations(ctx context.Context) ([]domain.RawStationRecord, error)
}

// Sink receives the final records of a run, sorted by city name.
type Sink interface {
	Name() string
	Emit(ctx context.Context, cities []domain.CityRecord) error
}

// Sources groups the scraped inputs. Stations is nil when the station source is disabled.
type Sources struct {
	Population PopulationSource
	Geo        GeoSource
	Stations   StationSource
}

// Options holds the per-run parameters.
type Options struct {
	RequiredFields    []domain.Field
	EnrichConcurrency int
}

// Source names used in reports and metric labels.
const (
	sourcePopulation = "population"
	sourceGeo        = "geo"
	sourceStations   = "stations"
)

// Pipeline runs scrape, merge, enrich, and sink in order.
type Pipeline struct {
	sources Sources
	weather domain.WeatherLookup
	sinks   []Sink
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	mu         sync.RWMutex
	lastReport *domain.RunReport
	lastCities []domain.CityRecord
}

// New creates a Pipeline. weather may be nil to disable enrichment.
func New(sources Sources, weather domain.WeatherLookup, sinks []Sink, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		sources: sources,
		weather: weather,
		sinks:   sinks,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a run has completed, or an error describing
// why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastRun returns the report and records of the most recent completed run.
func (p *Pipeline) LastRun() (domain.RunReport, []domain.CityRecord, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.lastReport == nil {
		return domain.RunReport{}, nil, false
	}
	return *p.lastReport, p.lastCities, true
}

// Run executes one complete pass. Source and enrichment failures degrade the
// output but never fail the run; the returned error joins any sink failures.
func (p *Pipeline) Run(ctx context.Context) (domain.RunReport, error) {
	report := domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: domain.Now(),
	}
	ctx = domain.WithRunID(ctx, report.RunID)
	logger := p.logger.With("run_id", report.RunID)
	logger.Info("run started")
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	raw := p.extract(ctx, logger)
	report.Sources = raw.reports

	merged, mergeReport := domain.Merge(raw.population, raw.geo, raw.stations, p.opts.RequiredFields)
	report.Merge = mergeReport
	p.recordMerge(mergeReport)
	logger.Info("merge complete",
		"retained", mergeReport.Retained,
		"dropped", mergeReport.Dropped(),
		"geo_unmatched", mergeReport.GeoUnmatched,
		"station_unmatched", mergeReport.StationUnmatched,
		"incomplete", mergeReport.Incomplete,
		"duplicate_population", mergeReport.DuplicatePopulation,
	)

	enriched, enrichReport := domain.Enrich(ctx, merged, p.weather, p.opts.EnrichConcurrency, logger)
	report.Enrich = enrichReport
	if p.weather != nil {
		logger.Info("enrichment complete", "enriched", enrichReport.Enriched, "failed", enrichReport.Failed)
	}

	cities := sortedCities(enriched)
	sinkErr := p.load(ctx, cities, &report, logger)

	report.FinishedAt = domain.Now()
	p.metrics.RunDuration.Observe(report.Duration().Seconds())
	if sinkErr != nil {
		p.metrics.RunsTotal.WithLabelValues("sink_error").Inc()
		logger.Error("run finished with sink errors", "error", sinkErr, "duration", report.Duration())
	} else {
		p.metrics.RunsTotal.WithLabelValues("success").Inc()
		p.metrics.LastSuccessTimestamp.Set(float64(report.FinishedAt.Unix()))
		logger.Info("run finished", "emitted", report.Emitted, "duration", report.Duration())
	}

	p.mu.Lock()
	p.lastReport = &report
	p.lastCities = cities
	p.mu.Unlock()
	p.ready.Store(true)

	return report, sinkErr
}

type extracted struct {
	population []domain.RawCityRecord
	geo        []domain.RawGeoRecord
	stations   []domain.RawStationRecord
	reports    []domain.SourceReport
}

// extract fetches all sources concurrently. Failures are recorded, not returned.
func (p *Pipeline) extract(ctx context.Context, logger *slog.Logger) extracted {
	var out extracted
	var popErr, geoErr, stationErr error

	var g errgroup.Group
	g.Go(func() error {
		out.population, popErr = p.sources.Population.FetchPopulation(ctx)
		return nil
	})
	g.Go(func() error {
		out.geo, geoErr = p.sources.Geo.FetchGeo(ctx)
		return nil
	})
	if p.sources.Stations != nil {
		g.Go(func() error {
			out.stations, stationErr = p.sources.Stations.FetchStations(ctx)
			return nil
		})
	}
	_ = g.Wait() // sources report failures through their own error values

	out.reports = append(out.reports, p.sourceReport(logger, sourcePopulation, len(out.population), popErr))
	out.reports = append(out.reports, p.sourceReport(logger, sourceGeo, len(out.geo), geoErr))
	if p.sources.Stations != nil {
		out.reports = append(out.reports, p.sourceReport(logger, sourceStations, len(out.stations), stationErr))
	}
	return out
}

func (p *Pipeline) sourceReport(logger *slog.Logger, name string, records int, err error) domain.SourceReport {
	r := domain.SourceReport{
		Name:    name,
		Status:  domain.ClassifySource(records, err),
		Records: records,
	}
	p.metrics.RecordsScraped.WithLabelValues(name).Add(float64(records))
	if err != nil {
		r.Error = err.Error()
		p.metrics.SourceErrors.WithLabelValues(name, domain.ErrorKind(err)).Inc()
		logger.Warn("source degraded", "source", name, "status", r.Status, "records", records, "error", err)
	} else {
		logger.Info("source fetched", "source", name, "status", r.Status, "records", records)
	}
	return r
}

func (p *Pipeline) recordMerge(r domain.MergeReport) {
	p.metrics.CitiesMerged.Set(float64(r.Retained))
	p.metrics.CitiesDropped.WithLabelValues("geo_unmatched").Add(float64(r.GeoUnmatched))
	p.metrics.CitiesDropped.WithLabelValues("station_unmatched").Add(float64(r.StationUnmatched))
	p.metrics.CitiesDropped.WithLabelValues("incomplete").Add(float64(r.Incomplete))
	p.metrics.CitiesDropped.WithLabelValues("duplicate").Add(float64(r.DuplicatePopulation))
}

// load hands the records to every sink in order. A failing sink does not stop
// the ones after it.
func (p *Pipeline) load(ctx context.Context, cities []domain.CityRecord, report *domain.RunReport, logger *slog.Logger) error {
	report.Emitted = len(cities)
	var errs []error
	for _, sink := range p.sinks {
		if err := sink.Emit(ctx, cities); err != nil {
			logger.Error("sink failed", "sink", sink.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s sink: %w", sink.Name(), err))
			report.SinkErrors = append(report.SinkErrors, err.Error())
		}
	}
	return errors.Join(errs...)
}

func sortedCities(m map[string]domain.CityRecord) []domain.CityRecord {
	cities := make([]domain.CityRecord, 0, len(m))
	for _, rec := range m {
		cities = append(cities, rec)
	}
	sort.Slice(cities, func(i, j int) bool { return cities[i].Name < cities[j].Name })
	return cities
}
