package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/city-data-etl/internal/adapter/console"
	httpadapter "github.com/couchcryptid/city-data-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/city-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/city-data-etl/internal/adapter/openweather"
	"github.com/couchcryptid/city-data-etl/internal/adapter/scrape"
	"github.com/couchcryptid/city-data-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/city-data-etl/internal/config"
	"github.com/couchcryptid/city-data-etl/internal/domain"
	"github.com/couchcryptid/city-data-etl/internal/observability"
	"github.com/couchcryptid/city-data-etl/internal/pipeline"
	"github.com/couchcryptid/city-data-etl/internal/scheduler"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

const dbConnectAttempts = 5

func main() {
	os.Exit(run())
}

// run wires the service and returns the process exit code.
func run() int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env", "error", err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := scrape.NewClient(cfg.ScrapeTimeout, cfg.ScrapeUserAgent, logger)
	sources := pipeline.Sources{
		Population: scrape.NewPopulationScraper(client, cfg.Sources.PopulationURL),
		Geo:        scrape.NewGeoScraper(client, cfg.Sources.GeoURLs),
	}
	if cfg.StationsEnabled {
		sources.Stations = scrape.NewStationScraper(client, cfg.Sources.StationURLs)
	}

	// Initialize weather enrichment (feature-flagged via WEATHER_ENABLED / OPENWEATHER_API_KEY).
	var weather domain.WeatherLookup
	if cfg.WeatherEnabled {
		ow := openweather.NewClient(openweather.Options{
			APIKey:         cfg.WeatherAPIKey,
			BaseURL:        cfg.WeatherBaseURL,
			Units:          cfg.WeatherUnits,
			Timeout:        cfg.WeatherTimeout,
			BreakerTimeout: cfg.WeatherBreakerTimeout,
		}, metrics, logger)
		weather = openweather.NewCachedLookup(ow, cfg.WeatherCacheSize, cfg.WeatherCacheTTL, clockwork.NewRealClock(), metrics)
		metrics.WeatherEnabled.Set(1)
		logger.Info("weather enrichment enabled", "cache_size", cfg.WeatherCacheSize, "cache_ttl", cfg.WeatherCacheTTL, "timeout", cfg.WeatherTimeout)
	} else {
		logger.Info("weather enrichment disabled")
	}

	var sinks []pipeline.Sink
	var closers []func() error
	var startupErr error

	if cfg.ConsoleEnabled {
		sinks = append(sinks, console.NewPrinter(os.Stdout, cfg.ConsoleFormat, cfg.ConsoleWeatherOnly, logger, metrics))
	}
	if cfg.DatabaseEnabled() {
		store, err := openStore(ctx, cfg, logger, metrics)
		if err != nil {
			logger.Error("database sink unavailable", "driver", cfg.DBDriver, "error", err)
			startupErr = err
		} else {
			sinks = append(sinks, store)
			closers = append(closers, store.Close)
		}
	}
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger, metrics)
		sinks = append(sinks, writer)
		closers = append(closers, writer.Close)
	}

	p := pipeline.New(sources, weather, sinks, pipeline.Options{
		RequiredFields:    domain.RequiredFields(cfg.StationsEnabled),
		EnrichConcurrency: cfg.EnrichConcurrency,
	}, logger, metrics)

	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Error("sink close error", "error", err)
			}
		}
	}()

	if cfg.RunInterval == 0 {
		return runOnce(ctx, p, startupErr)
	}
	return serve(ctx, cfg, p, logger, startupErr)
}

// runOnce performs a single pass. A database that could not be reached at
// startup counts as a failed sink.
func runOnce(ctx context.Context, p *pipeline.Pipeline, startupErr error) int {
	if _, err := p.Run(ctx); err != nil || startupErr != nil {
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger, startupErr error) int {
	if startupErr != nil {
		return 1
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	sched := scheduler.New(p, cfg.RunInterval, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		return 1
	}

	<-ctx.Done()
	logger.Info("shutting down")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return 0
}

// openStore connects to the database, retrying connection-level failures
// with exponential backoff, and ensures the table exists.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*sqlstore.Store, error) {
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	var lastErr error
	for attempt := 1; attempt <= dbConnectAttempts; attempt++ {
		store, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DatabaseURL, cfg.DBTable, logger, metrics)
		if err == nil {
			if err := store.EnsureSchema(ctx); err != nil {
				store.Close() //nolint:errcheck // already failing
				return nil, err
			}
			return store, nil
		}
		lastErr = err

		var perr *domain.PersistenceError
		if !errors.As(err, &perr) || !perr.Connection() {
			return nil, err
		}
		logger.Warn("database connect failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return nil, lastErr
}
